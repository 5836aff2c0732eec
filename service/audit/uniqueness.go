/*
 * @module service/audit/uniqueness
 * @description 唯一性评估器，统计重复值条数；该维度状态是二值的，存在任何重复即FAIL
 * @architecture 服务层 - 检查评估器
 * @documentReference ai_docs/quality_engine_req.md
 * @stateFlow 统计非空值总数 -> 统计重复条数 -> 计数结果
 * @rules 每个值组中超出首次出现的记录都计为重复；pass_rate仍然记录以保持趋势可比
 * @dependencies context, fmt
 * @refs executor.go, dispatcher.go
 */

package audit

import (
	"context"
	"fmt"
)

// UniquenessEvaluator 唯一性评估器，处理 DUPLICATE 和 PK_VIOLATION
type UniquenessEvaluator struct {
	executor QueryExecutor
}

// NewUniquenessEvaluator 创建唯一性评估器
func NewUniquenessEvaluator(executor QueryExecutor) *UniquenessEvaluator {
	return &UniquenessEvaluator{executor: executor}
}

// Evaluate 执行唯一性检查，分母为非空值条数
func (e *UniquenessEvaluator) Evaluate(ctx context.Context, rule *ruleView) (*evalOutcome, error) {
	predicate := fmt.Sprintf("%s IS NOT NULL", rule.TargetColumn)
	total, err := e.executor.CountWhere(ctx, rule.TargetSchema, rule.TargetTable, predicate)
	if err != nil {
		return nil, err
	}

	duplicates, err := e.executor.CountGroupedDuplicates(ctx, rule.TargetSchema, rule.TargetTable, rule.TargetColumn)
	if err != nil {
		return nil, err
	}

	return &evalOutcome{
		Total:  total,
		Passed: total - duplicates,
		Failed: duplicates,
		Binary: true,
	}, nil
}
