/*
 * @module service/models/audit_models
 * @description 质量审计相关模型，包含审计运行、检查结果、异常记录、表评分和审计调度
 * @architecture 数据模型层
 * @documentReference ai_docs/quality_engine_req.md
 * @stateFlow 审计发起 -> 规则评估 -> 结果追加 -> 评分汇总
 * @rules 检查结果只追加不修改，异常记录是模型中唯一可变的实体
 * @dependencies gorm.io/gorm, github.com/google/uuid
 * @refs service/audit/, service/models/rule.go
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditRun 审计运行记录模型
// 一次运行由run_id标识，仅用于聚合该次运行产生的检查结果
type AuditRun struct {
	ID             string     `gorm:"type:varchar(50);primaryKey" json:"id"`
	TargetSchema   string     `gorm:"type:varchar(100);not null;index" json:"target_schema"`
	TargetTable    string     `gorm:"type:varchar(100)" json:"target_table"` // 为空表示该schema下所有配置了规则的表
	Status         string     `gorm:"type:varchar(20);not null;default:'initiated'" json:"status"` // initiated, dispatching, scoring, complete, failed
	RulesEvaluated int        `json:"rules_evaluated"`
	RulesErrored   int        `json:"rules_errored"`
	RulesSkipped   int        `json:"rules_skipped"`
	ErrorMessage   string     `gorm:"type:text" json:"error_message,omitempty"`
	StartTime      time.Time  `json:"start_time"`
	EndTime        *time.Time `json:"end_time,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TableName 指定表名
func (AuditRun) TableName() string {
	return "audit_runs"
}

// BeforeCreate 创建前钩子
func (a *AuditRun) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}

// CheckResult 检查结果模型
// 一条规则在一次运行中的评估结果，创建后不再修改，构成历史趋势序列
type CheckResult struct {
	ID           string    `gorm:"type:varchar(50);primaryKey" json:"id"`
	RunID        string    `gorm:"type:varchar(50);not null;index:idx_result_run" json:"run_id"`
	RuleID       string    `gorm:"type:varchar(50);not null;index:idx_result_run" json:"rule_id"`
	TargetSchema string    `gorm:"type:varchar(100);not null" json:"target_schema"`
	TargetTable  string    `gorm:"type:varchar(100);not null;index:idx_result_table" json:"target_table"`
	TargetColumn string    `gorm:"type:varchar(100)" json:"target_column"`
	RuleType     string    `gorm:"type:varchar(30);not null" json:"rule_type"`
	Dimension    string    `gorm:"type:varchar(20);not null" json:"dimension"`
	Total        int64     `json:"total"`
	Passed       int64     `json:"passed"`
	Failed       int64     `json:"failed"`
	PassRate     float64   `json:"pass_rate"`                               // 0-100，total=0时约定为100
	Status       string    `gorm:"type:varchar(10);not null" json:"status"` // PASS, WARN, FAIL, ERROR
	ErrorMessage string    `gorm:"type:text" json:"error_message,omitempty"`
	ExecutionMs  int64     `json:"execution_ms"`
	RunDate      time.Time `gorm:"type:date;index:idx_result_table" json:"run_date"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName 指定表名
func (CheckResult) TableName() string {
	return "check_results"
}

// BeforeCreate 创建前钩子
func (c *CheckResult) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

// QualityException 质量异常记录模型
// 按失败记录粒度采样保存，供人工处置，无需重跑整个审计
type QualityException struct {
	ID              string     `gorm:"type:varchar(50);primaryKey" json:"id"`
	ResultID        string     `gorm:"type:varchar(50);not null;index" json:"result_id"`
	RuleID          string     `gorm:"type:varchar(50);not null;index" json:"rule_id"`
	PrimaryKeyValue string     `gorm:"type:text" json:"primary_key_value"`
	ColumnValue     string     `gorm:"type:text" json:"column_value"`
	Reason          string     `gorm:"type:text;not null" json:"reason"`
	IsResolved      bool       `gorm:"default:false;index" json:"is_resolved"`
	ResolvedBy      string     `gorm:"type:varchar(50)" json:"resolved_by"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
	Notes           string     `gorm:"type:text" json:"notes"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TableName 指定表名
func (QualityException) TableName() string {
	return "quality_exceptions"
}

// BeforeCreate 创建前钩子
func (q *QualityException) BeforeCreate(tx *gorm.DB) error {
	if q.ID == "" {
		q.ID = uuid.New().String()
	}
	return nil
}

// TableScore 表质量评分模型
// 每个(schema, table, run_date)唯一一行，同日重算走upsert不产生重复行
type TableScore struct {
	ID                string    `gorm:"type:varchar(50);primaryKey" json:"id"`
	RunID             string    `gorm:"type:varchar(50);not null;index" json:"run_id"`
	TargetSchema      string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_score_day" json:"target_schema"`
	TargetTable       string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_score_day" json:"target_table"`
	RunDate           time.Time `gorm:"type:date;not null;uniqueIndex:idx_score_day" json:"run_date"`
	CompletenessScore float64   `json:"completeness_score"` // 0-25
	UniquenessScore   float64   `json:"uniqueness_score"`   // 0-25
	ValidityScore     float64   `json:"validity_score"`     // 0-25
	ConsistencyScore  float64   `json:"consistency_score"`  // 0-25
	OverallScore      float64   `json:"overall_score"`      // 0-100
	Grade             string    `gorm:"type:varchar(1)" json:"grade"` // A, B, C, D, F
	TotalRules        int       `json:"total_rules"`
	PassedRules       int       `json:"passed_rules"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// TableName 指定表名
func (TableScore) TableName() string {
	return "table_scores"
}

// BeforeCreate 创建前钩子
func (t *TableScore) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	return nil
}

// AuditSchedule 审计调度配置模型
type AuditSchedule struct {
	ID              string     `gorm:"type:varchar(50);primaryKey" json:"id"`
	Name            string     `gorm:"type:varchar(100);not null" json:"name"`
	TargetSchema    string     `gorm:"type:varchar(100);not null" json:"target_schema"`
	TargetTable     string     `gorm:"type:varchar(100)" json:"target_table"`
	ScheduleType    string     `gorm:"type:varchar(20);not null" json:"schedule_type"` // cron, interval
	CronExpression  string     `gorm:"type:varchar(100)" json:"cron_expression"`
	IntervalSeconds int64      `gorm:"default:0" json:"interval_seconds"`
	IsEnabled       bool       `gorm:"default:true" json:"is_enabled"`
	LastRunAt       *time.Time `json:"last_run_at,omitempty"`
	NextRunAt       *time.Time `json:"next_run_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TableName 指定表名
func (AuditSchedule) TableName() string {
	return "audit_schedules"
}

// BeforeCreate 创建前钩子
func (a *AuditSchedule) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}
