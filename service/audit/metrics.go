/*
 * @module service/audit/metrics
 * @description 审计指标采集，规则评估计数、耗时分布和运行结果通过/metrics暴露
 * @architecture 观测层 - Prometheus指标
 * @documentReference ai_docs/quality_engine_req.md
 * @stateFlow 评估/运行完成 -> 指标累加 -> promhttp拉取
 * @rules 指标注册发生在包初始化，标签基数固定为维度x状态
 * @dependencies github.com/prometheus/client_golang/prometheus
 * @refs dispatcher.go, orchestrator.go
 */

package audit

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricRulesEvaluated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dq_rules_evaluated_total",
			Help: "按维度和状态统计的规则评估总数",
		},
		[]string{"dimension", "status"},
	)

	metricRuleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dq_rule_duration_seconds",
			Help:    "单条规则评估耗时分布",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
	)

	metricAuditRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dq_audit_runs_total",
			Help: "按最终状态统计的审计运行总数",
		},
		[]string{"status"},
	)

	metricExceptionsRecorded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dq_exceptions_recorded_total",
			Help: "采样落库的质量异常记录总数",
		},
	)
)

func init() {
	prometheus.MustRegister(
		metricRulesEvaluated,
		metricRuleDuration,
		metricAuditRuns,
		metricExceptionsRecorded,
	)
}
