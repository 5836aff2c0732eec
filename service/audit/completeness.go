/*
 * @module service/audit/completeness
 * @description 完整性评估器，检查字段非空/非空白，空表按约定视为全部通过
 * @architecture 服务层 - 检查评估器
 * @documentReference ai_docs/quality_engine_req.md
 * @stateFlow 统计总行数 -> 统计非空(非空白)行数 -> 计数结果
 * @rules NULL_CHECK只看NULL；EMPTY_CHECK/REQUIRED还要求去除空白后非空串
 * @dependencies context, fmt
 * @refs executor.go, dispatcher.go
 */

package audit

import (
	"context"
	"fmt"
)

// CompletenessEvaluator 完整性评估器
type CompletenessEvaluator struct {
	executor QueryExecutor
}

// NewCompletenessEvaluator 创建完整性评估器
func NewCompletenessEvaluator(executor QueryExecutor) *CompletenessEvaluator {
	return &CompletenessEvaluator{executor: executor}
}

// Evaluate 执行完整性检查
func (e *CompletenessEvaluator) Evaluate(ctx context.Context, rule *ruleView) (*evalOutcome, error) {
	total, err := e.executor.CountRows(ctx, rule.TargetSchema, rule.TargetTable)
	if err != nil {
		return nil, err
	}

	var predicate string
	switch rule.RuleType {
	case RuleTypeNullCheck:
		predicate = fmt.Sprintf("%s IS NOT NULL", rule.TargetColumn)
	case RuleTypeEmptyCheck, RuleTypeRequired:
		predicate = fmt.Sprintf("%s IS NOT NULL AND TRIM(CAST(%s AS TEXT)) <> ''",
			rule.TargetColumn, rule.TargetColumn)
	default:
		return nil, &InvalidRuleError{Reason: fmt.Sprintf("完整性评估器不支持规则类型 %s", rule.RuleType)}
	}

	passed, err := e.executor.CountWhere(ctx, rule.TargetSchema, rule.TargetTable, predicate)
	if err != nil {
		return nil, err
	}

	return &evalOutcome{Total: total, Passed: passed, Failed: total - passed}, nil
}
