/*
 * @module service/audit/validity
 * @description 有效性评估器，覆盖范围/值域/正则/邮箱/电话五类子检查，空值一律不进分母
 * @architecture 服务层 - 检查评估器
 * @documentReference ai_docs/quality_engine_req.md
 * @stateFlow 范围/值域走聚合计数模板; 正则类取出非空值在引擎内逐个匹配并采样违规值
 * @rules 空值既不算通过也不算失败，NULL由完整性规则负责; 邮箱/电话是宽松的形状检查，不是严格校验
 * @dependencies context, fmt, strings
 * @refs executor.go, params.go, dispatcher.go
 */

package audit

import (
	"context"
	"fmt"
	"strings"
)

// 违规值采样上限，超出部分只计数不落异常记录
const violationSampleLimit = 100

// ValidityEvaluator 有效性评估器
type ValidityEvaluator struct {
	executor QueryExecutor
}

// NewValidityEvaluator 创建有效性评估器
func NewValidityEvaluator(executor QueryExecutor) *ValidityEvaluator {
	return &ValidityEvaluator{executor: executor}
}

// Evaluate 按规则子类型派发
func (e *ValidityEvaluator) Evaluate(ctx context.Context, rule *ruleView) (*evalOutcome, error) {
	switch rule.RuleType {
	case RuleTypeRangeCheck:
		return e.evaluateRange(ctx, rule)
	case RuleTypeDomainCheck:
		return e.evaluateDomain(ctx, rule)
	case RuleTypeRegexMatch, RuleTypeFormatEmail:
		return e.evaluatePattern(ctx, rule)
	case RuleTypeFormatPhone:
		return e.evaluatePhone(ctx, rule)
	default:
		return nil, &InvalidRuleError{Reason: fmt.Sprintf("有效性评估器不支持规则类型 %s", rule.RuleType)}
	}
}

// evaluateRange 范围检查，闭区间，分母排除空值
func (e *ValidityEvaluator) evaluateRange(ctx context.Context, rule *ruleView) (*evalOutcome, error) {
	col := rule.TargetColumn
	total, err := e.executor.CountWhere(ctx, rule.TargetSchema, rule.TargetTable,
		fmt.Sprintf("%s IS NOT NULL", col))
	if err != nil {
		return nil, err
	}

	predicate := fmt.Sprintf("%s IS NOT NULL AND %s >= ? AND %s <= ?", col, col, col)
	passed, err := e.executor.CountWhere(ctx, rule.TargetSchema, rule.TargetTable,
		predicate, rule.MinArg, rule.MaxArg)
	if err != nil {
		return nil, err
	}

	return &evalOutcome{Total: total, Passed: passed, Failed: total - passed}, nil
}

// evaluateDomain 值域检查，精确大小写敏感匹配配置列表
func (e *ValidityEvaluator) evaluateDomain(ctx context.Context, rule *ruleView) (*evalOutcome, error) {
	col := rule.TargetColumn
	total, err := e.executor.CountWhere(ctx, rule.TargetSchema, rule.TargetTable,
		fmt.Sprintf("%s IS NOT NULL", col))
	if err != nil {
		return nil, err
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(rule.AllowedValues)), ",")
	predicate := fmt.Sprintf("%s IS NOT NULL AND %s IN (%s)", col, col, placeholders)
	args := make([]interface{}, len(rule.AllowedValues))
	for i, v := range rule.AllowedValues {
		args[i] = v
	}

	passed, err := e.executor.CountWhere(ctx, rule.TargetSchema, rule.TargetTable, predicate, args...)
	if err != nil {
		return nil, err
	}

	return &evalOutcome{Total: total, Passed: passed, Failed: total - passed}, nil
}

// evaluatePattern 正则/邮箱检查，非空值取回后在引擎内全匹配
func (e *ValidityEvaluator) evaluatePattern(ctx context.Context, rule *ruleView) (*evalOutcome, error) {
	values, err := e.executor.SelectNonNull(ctx, rule.TargetSchema, rule.TargetTable, rule.TargetColumn, 0)
	if err != nil {
		return nil, err
	}

	reason := "不匹配配置的正则模式"
	if rule.RuleType == RuleTypeFormatEmail {
		reason = "不符合邮箱格式"
	}

	outcome := &evalOutcome{Total: int64(len(values))}
	for _, value := range values {
		if rule.Regex.MatchString(value) {
			outcome.Passed++
			continue
		}
		outcome.Failed++
		if len(outcome.Violations) < violationSampleLimit {
			outcome.Violations = append(outcome.Violations, violationSample{
				ColumnValue: value,
				Reason:      reason,
			})
		}
	}
	return outcome, nil
}

// evaluatePhone 电话形状检查: 只含数字和分隔符，有效位数落在配置区间
func (e *ValidityEvaluator) evaluatePhone(ctx context.Context, rule *ruleView) (*evalOutcome, error) {
	values, err := e.executor.SelectNonNull(ctx, rule.TargetSchema, rule.TargetTable, rule.TargetColumn, 0)
	if err != nil {
		return nil, err
	}

	outcome := &evalOutcome{Total: int64(len(values))}
	for _, value := range values {
		digits := phoneDigits(value)
		if phoneCharsPattern.MatchString(value) && digits >= rule.MinDigits && digits <= rule.MaxDigits {
			outcome.Passed++
			continue
		}
		outcome.Failed++
		if len(outcome.Violations) < violationSampleLimit {
			outcome.Violations = append(outcome.Violations, violationSample{
				ColumnValue: value,
				Reason:      fmt.Sprintf("不符合电话号码形状(有效位数 %d-%d)", rule.MinDigits, rule.MaxDigits),
			})
		}
	}
	return outcome, nil
}
