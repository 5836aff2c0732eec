/*
 * @module service/audit/consistency
 * @description 一致性评估器，外键引用反连接检查与跨字段比较检查
 * @architecture 服务层 - 检查评估器
 * @documentReference ai_docs/quality_engine_req.md
 * @stateFlow FK走反连接模板统计孤儿值; CROSS_FIELD统计两侧非空行中比较成立的行
 * @rules 引用断裂与唯一性同样按二值处理，孤儿数大于0即FAIL; 任一侧为空的行不进分母
 * @dependencies context, fmt
 * @refs executor.go, params.go, dispatcher.go
 */

package audit

import (
	"context"
	"fmt"
)

// ConsistencyEvaluator 一致性评估器
type ConsistencyEvaluator struct {
	executor QueryExecutor
}

// NewConsistencyEvaluator 创建一致性评估器
func NewConsistencyEvaluator(executor QueryExecutor) *ConsistencyEvaluator {
	return &ConsistencyEvaluator{executor: executor}
}

// Evaluate 按规则子类型派发
func (e *ConsistencyEvaluator) Evaluate(ctx context.Context, rule *ruleView) (*evalOutcome, error) {
	switch rule.RuleType {
	case RuleTypeFKCheck, RuleTypeCrossTable:
		return e.evaluateReference(ctx, rule)
	case RuleTypeCrossField:
		return e.evaluateCrossField(ctx, rule)
	default:
		return nil, &InvalidRuleError{Reason: fmt.Sprintf("一致性评估器不支持规则类型 %s", rule.RuleType)}
	}
}

// evaluateReference 外键/跨表引用检查，分母为子表非空值条数
func (e *ConsistencyEvaluator) evaluateReference(ctx context.Context, rule *ruleView) (*evalOutcome, error) {
	total, err := e.executor.CountWhere(ctx, rule.TargetSchema, rule.TargetTable,
		fmt.Sprintf("%s IS NOT NULL", rule.TargetColumn))
	if err != nil {
		return nil, err
	}

	orphans, err := e.executor.CountAntiJoin(ctx,
		rule.TargetSchema, rule.TargetTable, rule.TargetColumn,
		rule.ReferenceSchema, rule.ReferenceTable, rule.ReferenceColumn)
	if err != nil {
		return nil, err
	}

	return &evalOutcome{
		Total:  total,
		Passed: total - orphans,
		Failed: orphans,
		Binary: true,
	}, nil
}

// evaluateCrossField 跨字段比较，两侧都非空的行才参与评估
func (e *ConsistencyEvaluator) evaluateCrossField(ctx context.Context, rule *ruleView) (*evalOutcome, error) {
	col, related := rule.TargetColumn, rule.RelatedColumn
	bothPresent := fmt.Sprintf("%s IS NOT NULL AND %s IS NOT NULL", col, related)

	total, err := e.executor.CountWhere(ctx, rule.TargetSchema, rule.TargetTable, bothPresent)
	if err != nil {
		return nil, err
	}

	// 操作符来自封闭白名单，注册时已校验
	predicate := fmt.Sprintf("%s AND %s %s %s", bothPresent, col, rule.ComparisonOperator, related)
	passed, err := e.executor.CountWhere(ctx, rule.TargetSchema, rule.TargetTable, predicate)
	if err != nil {
		return nil, err
	}

	return &evalOutcome{Total: total, Passed: passed, Failed: total - passed}, nil
}
