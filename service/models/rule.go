/*
 * @module service/models/rule
 * @description 数据质量规则模型，规则以配置行的形式声明质量期望，按维度分类
 * @architecture 数据模型层
 * @documentReference ai_docs/quality_engine_req.md
 * @stateFlow 规则创建 -> 激活/停用 -> 审计执行引用
 * @rules 规则只停用不删除，历史检查结果通过规则ID保持可追溯
 * @dependencies gorm.io/gorm, github.com/google/uuid
 * @refs service/audit/, service/models/audit_models.go
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// QualityRule 数据质量规则模型
// 一条规则绑定一个表/字段和一个规则类型，参数存放在Params中
type QualityRule struct {
	ID           string `gorm:"type:varchar(50);primaryKey" json:"id"`
	Name         string `gorm:"type:varchar(100)" json:"name"`
	TargetSchema string `gorm:"type:varchar(100);not null;index:idx_rule_scope" json:"target_schema"`
	TargetTable  string `gorm:"type:varchar(100);not null;index:idx_rule_scope" json:"target_table"`
	TargetColumn string `gorm:"type:varchar(100)" json:"target_column"`
	RuleType     string `gorm:"type:varchar(30);not null" json:"rule_type"` // NULL_CHECK, EMPTY_CHECK, REQUIRED, DUPLICATE, PK_VIOLATION, RANGE_CHECK, DOMAIN_CHECK, REGEX_MATCH, FORMAT_EMAIL, FORMAT_PHONE, FK_CHECK, CROSS_FIELD, CROSS_TABLE
	Dimension    string `gorm:"type:varchar(20);not null;index" json:"dimension"`
	// 类型相关参数: min_value/max_value, allowed_values, regex_pattern,
	// reference_schema/reference_table/reference_column,
	// related_column/comparison_operator, min_digits/max_digits, value_kind
	Params       JSONB     `gorm:"type:jsonb" json:"params"`
	ThresholdPct float64   `gorm:"not null;default:100" json:"threshold_pct"` // 通过线 [0,100]
	WarningPct   float64   `gorm:"not null;default:0" json:"warning_pct"`     // 告警线 [0,threshold_pct]
	Severity     string    `gorm:"type:varchar(20);default:'MEDIUM'" json:"severity"` // CRITICAL, HIGH, MEDIUM, LOW, INFO
	IsActive     bool      `gorm:"default:true;index:idx_rule_scope" json:"is_active"`
	CreatedBy    string    `gorm:"type:varchar(50)" json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName 指定表名
func (QualityRule) TableName() string {
	return "quality_rules"
}

// BeforeCreate 创建前钩子
func (q *QualityRule) BeforeCreate(tx *gorm.DB) error {
	if q.ID == "" {
		q.ID = uuid.New().String()
	}
	if q.CreatedBy == "" {
		q.CreatedBy = "system"
	}
	return nil
}
