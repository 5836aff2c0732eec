/*
 * @module service/audit/registry
 * @description 规则注册表，负责规则的创建校验、范围查询和激活状态切换
 * @architecture 服务层 - 规则生命周期管理
 * @documentReference ai_docs/quality_engine_req.md
 * @stateFlow 规则草稿校验 -> 入库 -> get按范围返回有序规则 -> 激活/停用
 * @rules 配置错误在注册时快速失败; 规则只停用不删除; get按(表名, 规则类型)排序保证审计输出可复现
 * @dependencies gorm.io/gorm, service/models
 * @refs params.go, identifier.go, orchestrator.go
 */

package audit

import (
	"fmt"

	"gorm.io/gorm"

	"dataquality-service/service/models"
)

// RuleRegistry 规则注册表
type RuleRegistry struct {
	db *gorm.DB
}

// NewRuleRegistry 创建规则注册表
func NewRuleRegistry(db *gorm.DB) *RuleRegistry {
	return &RuleRegistry{db: db}
}

// Add 校验并创建规则，返回规则ID
// 配置错误返回 InvalidRuleError，调用方必须先修复配置
func (r *RuleRegistry) Add(draft *RuleDraft) (string, error) {
	dimension := DimensionOf(draft.RuleType)
	if dimension == "" {
		return "", &InvalidRuleError{Reason: fmt.Sprintf("未知的规则类型: %s", draft.RuleType)}
	}

	// 当前定义的规则类型都是字段级的，表级规则暂未引入
	if draft.TargetColumn == "" {
		return "", &InvalidRuleError{Reason: fmt.Sprintf("规则类型 %s 需要配置 target_column", draft.RuleType)}
	}

	if draft.ThresholdPct < 0 || draft.ThresholdPct > 100 {
		return "", &InvalidRuleError{Reason: fmt.Sprintf("threshold_pct 超出 [0,100]: %v", draft.ThresholdPct)}
	}
	if draft.WarningPct < 0 || draft.WarningPct > draft.ThresholdPct {
		return "", &InvalidRuleError{Reason: fmt.Sprintf("warning_pct 必须落在 [0,threshold_pct]: %v", draft.WarningPct)}
	}

	severity := draft.Severity
	if severity == "" {
		severity = "MEDIUM"
	}
	if !validSeverities[severity] {
		return "", &InvalidRuleError{Reason: fmt.Sprintf("未知的严重程度: %s", severity)}
	}

	isActive := true
	if draft.IsActive != nil {
		isActive = *draft.IsActive
	}

	rule := &models.QualityRule{
		Name:         draft.Name,
		TargetSchema: draft.TargetSchema,
		TargetTable:  draft.TargetTable,
		TargetColumn: draft.TargetColumn,
		RuleType:     draft.RuleType,
		Dimension:    dimension,
		Params:       models.JSONB(draft.Params),
		ThresholdPct: draft.ThresholdPct,
		WarningPct:   draft.WarningPct,
		Severity:     severity,
		IsActive:     isActive,
	}

	// 类型特定参数契约在注册时即解析一遍，缺参/坏参不入库
	view, err := newRuleView(rule)
	if err != nil {
		return "", err
	}
	// 标识符文法在注册时先挡一道，派发层还会复查
	if err := checkIdentifiers(ruleIdentifiers(view)...); err != nil {
		return "", &InvalidRuleError{Reason: err.Error()}
	}

	if err := r.db.Create(rule).Error; err != nil {
		return "", fmt.Errorf("创建规则失败: %w", err)
	}
	return rule.ID, nil
}

// Get 返回范围内的启用规则，按(表名, 规则类型)排序
func (r *RuleRegistry) Get(scope Scope) ([]models.QualityRule, error) {
	query := r.db.Where("target_schema = ? AND is_active = ?", scope.Schema, true)
	if scope.Table != "" {
		query = query.Where("target_table = ?", scope.Table)
	}

	var rules []models.QualityRule
	if err := query.Order("target_table ASC, rule_type ASC").Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("查询规则失败: %w", err)
	}
	return rules, nil
}

// SetActive 切换规则激活状态，规则不存在返回 gorm.ErrRecordNotFound
func (r *RuleRegistry) SetActive(id string, active bool) error {
	result := r.db.Model(&models.QualityRule{}).Where("id = ?", id).Update("is_active", active)
	if result.Error != nil {
		return fmt.Errorf("更新规则状态失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// GetByID 按ID查询单条规则
func (r *RuleRegistry) GetByID(id string) (*models.QualityRule, error) {
	var rule models.QualityRule
	if err := r.db.First(&rule, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

// List 分页查询规则（管理接口用），不限激活状态
func (r *RuleRegistry) List(schema, table string, page, pageSize int) ([]models.QualityRule, int64, error) {
	query := r.db.Model(&models.QualityRule{})
	if schema != "" {
		query = query.Where("target_schema = ?", schema)
	}
	if table != "" {
		query = query.Where("target_table = ?", table)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rules []models.QualityRule
	offset := (page - 1) * pageSize
	if err := query.Order("target_table ASC, rule_type ASC").Offset(offset).Limit(pageSize).Find(&rules).Error; err != nil {
		return nil, 0, err
	}
	return rules, total, nil
}
