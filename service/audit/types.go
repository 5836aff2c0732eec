/*
 * @module service/audit/types
 * @description 质量审计相关的类型定义，包含维度/规则类型映射、状态常量、错误分类和请求响应模型
 * @architecture 服务层 - 类型定义
 * @documentReference ai_docs/quality_engine_req.md
 * @stateFlow 业务数据结构定义
 * @rules 规则类型是封闭集合，每个类型固定映射到一个质量维度
 * @dependencies fmt, time
 * @refs service/models/rule.go, dispatcher.go
 */

package audit

import (
	"fmt"
	"math"
	"time"

	"dataquality-service/service/models"
)

// === 维度与规则类型 ===

// 质量维度，每张表按四个独立维度评分
const (
	DimensionCompleteness = "completeness"
	DimensionUniqueness   = "uniqueness"
	DimensionValidity     = "validity"
	DimensionConsistency  = "consistency"
)

// 规则类型常量
const (
	RuleTypeNullCheck   = "NULL_CHECK"
	RuleTypeEmptyCheck  = "EMPTY_CHECK"
	RuleTypeRequired    = "REQUIRED"
	RuleTypeDuplicate   = "DUPLICATE"
	RuleTypePKViolation = "PK_VIOLATION"
	RuleTypeRangeCheck  = "RANGE_CHECK"
	RuleTypeDomainCheck = "DOMAIN_CHECK"
	RuleTypeRegexMatch  = "REGEX_MATCH"
	RuleTypeFormatEmail = "FORMAT_EMAIL"
	RuleTypeFormatPhone = "FORMAT_PHONE"
	RuleTypeFKCheck     = "FK_CHECK"
	RuleTypeCrossField  = "CROSS_FIELD"
	RuleTypeCrossTable  = "CROSS_TABLE"
)

// ruleDimensions 规则类型到维度的固定映射
var ruleDimensions = map[string]string{
	RuleTypeNullCheck:   DimensionCompleteness,
	RuleTypeEmptyCheck:  DimensionCompleteness,
	RuleTypeRequired:    DimensionCompleteness,
	RuleTypeDuplicate:   DimensionUniqueness,
	RuleTypePKViolation: DimensionUniqueness,
	RuleTypeRangeCheck:  DimensionValidity,
	RuleTypeDomainCheck: DimensionValidity,
	RuleTypeRegexMatch:  DimensionValidity,
	RuleTypeFormatEmail: DimensionValidity,
	RuleTypeFormatPhone: DimensionValidity,
	RuleTypeFKCheck:     DimensionConsistency,
	RuleTypeCrossField:  DimensionConsistency,
	RuleTypeCrossTable:  DimensionConsistency,
}

// DimensionOf 返回规则类型所属的质量维度，未知类型返回空串
func DimensionOf(ruleType string) string {
	return ruleDimensions[ruleType]
}

// 检查结果状态
const (
	StatusPass  = "PASS"
	StatusWarn  = "WARN"
	StatusFail  = "FAIL"
	StatusError = "ERROR"
)

// 严重程度
var validSeverities = map[string]bool{
	"CRITICAL": true,
	"HIGH":     true,
	"MEDIUM":   true,
	"LOW":      true,
	"INFO":     true,
}

// 跨字段比较允许的操作符
var validComparisonOperators = map[string]bool{
	">": true, "<": true, ">=": true, "<=": true, "=": true, "<>": true,
}

// === 错误分类 ===

// InvalidRuleError 规则配置错误，注册时拒绝，不会进入评估
type InvalidRuleError struct {
	Reason string
}

func (e *InvalidRuleError) Error() string {
	return fmt.Sprintf("无效的质量规则: %s", e.Reason)
}

// InvalidIdentifierError 不安全的schema/表/字段名，派发时拒绝
type InvalidIdentifierError struct {
	Name string
}

func (e *InvalidIdentifierError) Error() string {
	return fmt.Sprintf("非法标识符: %q", e.Name)
}

// ExecutionError 查询执行器错误分类
const (
	ErrKindTargetMissing = "target_missing" // 目标表/字段不存在
	ErrKindTypeMismatch  = "type_mismatch"  // 值与声明类型不可比较
	ErrKindTransient     = "transient"      // 连接或其他暂时性故障
)

// ExecutionError 查询执行器无法完成查询时返回的类型化错误
// 记录为 status=ERROR 的检查结果，审计继续执行其余规则
type ExecutionError struct {
	Kind string
	Op   string
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("查询执行失败(%s, %s): %v", e.Op, e.Kind, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// OrchestratorError 编排器级别故障（无法读取规则集或分配运行ID），中止整次运行
type OrchestratorError struct {
	Stage string
	Err   error
}

func (e *OrchestratorError) Error() string {
	return fmt.Sprintf("审计编排失败(阶段 %s): %v", e.Stage, e.Err)
}

func (e *OrchestratorError) Unwrap() error {
	return e.Err
}

// === 请求响应模型 ===

// Scope 审计范围，table为空表示该schema下所有配置了启用规则的表
type Scope struct {
	Schema string `json:"schema"`
	Table  string `json:"table,omitempty"`
}

// RuleDraft 规则创建请求
type RuleDraft struct {
	Name         string                 `json:"name" example:"邮箱非空检查"`
	TargetSchema string                 `json:"target_schema" binding:"required" example:"crm"`
	TargetTable  string                 `json:"target_table" binding:"required" example:"customers"`
	TargetColumn string                 `json:"target_column" example:"email"`
	RuleType     string                 `json:"rule_type" binding:"required" example:"NULL_CHECK"`
	Params       map[string]interface{} `json:"params" swaggertype:"object"`
	ThresholdPct float64                `json:"threshold_pct" example:"95"`
	WarningPct   float64                `json:"warning_pct" example:"90"`
	Severity     string                 `json:"severity" example:"HIGH"`
	IsActive     *bool                  `json:"is_active,omitempty"`
}

// RunSummary 一次审计的汇总结果
// 即使部分规则出错，完成的运行也总是产出汇总
type RunSummary struct {
	RunID          string              `json:"run_id"`
	Scope          Scope               `json:"scope"`
	RulesEvaluated int                 `json:"rules_evaluated"`
	RulesErrored   int                 `json:"rules_errored"`
	RulesSkipped   int                 `json:"rules_skipped"`
	TableScores    []models.TableScore `json:"table_scores"`
	StartTime      time.Time           `json:"start_time"`
	EndTime        time.Time           `json:"end_time"`
}

// evalOutcome 单条规则的评估计数
// binary=true 的维度（唯一性、引用完整性）状态不看阈值，只看failed是否为0
type evalOutcome struct {
	Total      int64
	Passed     int64
	Failed     int64
	Binary     bool
	Violations []violationSample
}

// violationSample 失败记录采样，落为异常记录供人工处置
type violationSample struct {
	PrimaryKeyValue string
	ColumnValue     string
	Reason          string
}

// passRate 计算通过率，total=0时约定为100（空表视为全部通过）
func passRate(passed, total int64) float64 {
	if total <= 0 {
		return 100.0
	}
	return round2(float64(passed) / float64(total) * 100.0)
}

// deriveStatus 按阈值推导状态: 达到threshold为PASS，达到warning为WARN，否则FAIL
func deriveStatus(rate, thresholdPct, warningPct float64) string {
	if rate >= thresholdPct {
		return StatusPass
	}
	if rate >= warningPct {
		return StatusWarn
	}
	return StatusFail
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
