/*
 * @module service/audit/events
 * @description 规则评估事件流，每条规则评估完成后发布一条结构化事件供观测端消费
 * @architecture 适配器模式 - 封装Kafka客户端，未配置时退化为空实现
 * @documentReference ai_docs/quality_engine_req.md
 * @stateFlow 规则评估完成 -> 构造事件 -> 发布到topic
 * @rules 事件发布失败只记日志，不影响审计流程
 * @dependencies github.com/segmentio/kafka-go, encoding/json
 * @refs dispatcher.go
 */

package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// RuleEvent 单条规则评估事件
type RuleEvent struct {
	RunID        string    `json:"run_id"`
	RuleID       string    `json:"rule_id"`
	RuleType     string    `json:"rule_type"`
	Dimension    string    `json:"dimension"`
	TargetSchema string    `json:"target_schema"`
	TargetTable  string    `json:"target_table"`
	TargetColumn string    `json:"target_column"`
	Status       string    `json:"status"`
	Total        int64     `json:"total"`
	Passed       int64     `json:"passed"`
	Failed       int64     `json:"failed"`
	PassRate     float64   `json:"pass_rate"`
	ErrorMessage string    `json:"error_message,omitempty"`
	ExecutionMs  int64     `json:"execution_ms"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// RuleEventPublisher 评估事件发布器
type RuleEventPublisher interface {
	Publish(ctx context.Context, event *RuleEvent) error
	Close() error
}

// NoopEventPublisher 空实现，未配置事件流时使用
type NoopEventPublisher struct{}

// Publish 丢弃事件
func (NoopEventPublisher) Publish(ctx context.Context, event *RuleEvent) error { return nil }

// Close 无资源可释放
func (NoopEventPublisher) Close() error { return nil }

// KafkaEventPublisher 基于Kafka的事件发布器
type KafkaEventPublisher struct {
	writer *kafka.Writer
}

// NewKafkaEventPublisher 创建Kafka事件发布器
func NewKafkaEventPublisher(brokers []string, topic string) *KafkaEventPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 100 * time.Millisecond,
	}
	return &KafkaEventPublisher{writer: writer}
}

// Publish 按run_id分区键发布事件
func (p *KafkaEventPublisher) Publish(ctx context.Context, event *RuleEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.RunID),
		Value: payload,
	})
	if err != nil {
		slog.Error("规则评估事件发布失败", "run_id", event.RunID, "rule_id", event.RuleID, "error", err)
	}
	return err
}

// Close 关闭底层writer
func (p *KafkaEventPublisher) Close() error {
	return p.writer.Close()
}
