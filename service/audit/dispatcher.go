/*
 * @module service/audit/dispatcher
 * @description 检查派发器，把每条启用规则路由到对应维度的评估器，按有界工作池并发执行
 * @architecture 服务层 - 扇出/扇入工作池
 * @documentReference ai_docs/quality_engine_req.md
 * @stateFlow 标识符校验 -> 参数解析 -> 工作池评估 -> 结果追加落库 -> 事件与指标
 * @rules 单条规则失败被隔离为 status=ERROR 的结果，不中止批次；工作池规模受连接池约束而非规则数
 * @dependencies gorm.io/gorm, context, sync
 * @refs completeness.go, uniqueness.go, validity.go, consistency.go, orchestrator.go
 */

package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"dataquality-service/service/models"
)

const defaultWorkerCount = 4

// Dispatcher 检查派发器
type Dispatcher struct {
	db           *gorm.DB
	publisher    RuleEventPublisher
	workers      int
	completeness *CompletenessEvaluator
	uniqueness   *UniquenessEvaluator
	validity     *ValidityEvaluator
	consistency  *ConsistencyEvaluator
}

// NewDispatcher 创建检查派发器
// workers<=0时取默认并发度
func NewDispatcher(db *gorm.DB, executor QueryExecutor, publisher RuleEventPublisher, workers int) *Dispatcher {
	if workers <= 0 {
		workers = defaultWorkerCount
	}
	if publisher == nil {
		publisher = NoopEventPublisher{}
	}
	return &Dispatcher{
		db:           db,
		publisher:    publisher,
		workers:      workers,
		completeness: NewCompletenessEvaluator(executor),
		uniqueness:   NewUniquenessEvaluator(executor),
		validity:     NewValidityEvaluator(executor),
		consistency:  NewConsistencyEvaluator(executor),
	}
}

// DispatchOutcome 一次派发的结果集合与计数
type DispatchOutcome struct {
	Results   []models.CheckResult
	Evaluated int // 产出 PASS/WARN/FAIL 的规则数
	Errored   int // 产出 ERROR 的规则数
	Skipped   int // 派发前被标识符校验拒绝的规则数
}

// Run 评估一批规则并返回全部检查结果
// 每条规则的失败都被隔离记录，批次只有在上下文取消时提前结束
func (d *Dispatcher) Run(ctx context.Context, runID string, rules []models.QualityRule) (*DispatchOutcome, error) {
	outcome := &DispatchOutcome{}
	runDate := time.Now().Truncate(24 * time.Hour)

	// 派发前校验: 非法标识符的规则不进入查询构造路径
	views := make([]*ruleView, 0, len(rules))
	for i := range rules {
		rule := &rules[i]
		view, err := newRuleView(rule)
		if err != nil {
			// 参数契约损坏的存量规则在派发时兜底拦截，记为ERROR结果保持趋势可见
			result := d.errorResult(runID, runDate, rule, err.Error())
			d.appendResult(ctx, outcome, result, nil)
			continue
		}
		if err := checkIdentifiers(ruleIdentifiers(view)...); err != nil {
			slog.Warn("规则标识符校验失败，跳过派发",
				"rule_id", rule.ID, "table", rule.TargetTable, "error", err)
			outcome.Skipped++
			continue
		}
		views = append(views, view)
	}

	jobs := make(chan *ruleView)
	results := make(chan ruleEvaluation, len(views))

	workers := d.workers
	if workers > len(views) {
		workers = len(views)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for view := range jobs {
				results <- d.evaluateOne(ctx, runID, runDate, view)
			}
		}()
	}

	// 投递循环在每次迭代做协作式取消检查，进行中的查询交由执行器的语句超时处理
	cancelled := false
	for _, view := range views {
		if ctx.Err() != nil {
			cancelled = true
			outcome.Skipped++
			continue
		}
		jobs <- view
	}
	close(jobs)
	wg.Wait()
	close(results)

	for eval := range results {
		d.appendResult(ctx, outcome, eval.result, eval.violations)
	}

	if cancelled {
		return outcome, ctx.Err()
	}
	return outcome, nil
}

type ruleEvaluation struct {
	result     *models.CheckResult
	violations []violationSample
}

// evaluateOne 评估单条规则，任何评估器错误都折叠为ERROR结果
func (d *Dispatcher) evaluateOne(ctx context.Context, runID string, runDate time.Time, view *ruleView) ruleEvaluation {
	start := time.Now()

	evalResult, err := d.dispatch(ctx, view)
	elapsed := time.Since(start)
	metricRuleDuration.Observe(elapsed.Seconds())

	if err != nil {
		slog.Error("规则评估失败",
			"rule_id", view.ID, "rule_type", view.RuleType,
			"table", view.TargetTable, "error", err)
		result := d.errorResult(runID, runDate, view.QualityRule, err.Error())
		result.ExecutionMs = elapsed.Milliseconds()
		return ruleEvaluation{result: result}
	}

	rate := passRate(evalResult.Passed, evalResult.Total)
	var status string
	if evalResult.Binary {
		// 唯一性与引用完整性按二值处理，存在失败即FAIL，不看阈值
		if evalResult.Failed == 0 {
			status = StatusPass
		} else {
			status = StatusFail
		}
	} else {
		status = deriveStatus(rate, view.ThresholdPct, view.WarningPct)
	}

	result := &models.CheckResult{
		RunID:        runID,
		RuleID:       view.ID,
		TargetSchema: view.TargetSchema,
		TargetTable:  view.TargetTable,
		TargetColumn: view.TargetColumn,
		RuleType:     view.RuleType,
		Dimension:    view.Dimension,
		Total:        evalResult.Total,
		Passed:       evalResult.Passed,
		Failed:       evalResult.Failed,
		PassRate:     rate,
		Status:       status,
		ExecutionMs:  elapsed.Milliseconds(),
		RunDate:      runDate,
	}
	return ruleEvaluation{result: result, violations: evalResult.Violations}
}

// dispatch 按维度路由到评估器
func (d *Dispatcher) dispatch(ctx context.Context, view *ruleView) (*evalOutcome, error) {
	switch view.Dimension {
	case DimensionCompleteness:
		return d.completeness.Evaluate(ctx, view)
	case DimensionUniqueness:
		return d.uniqueness.Evaluate(ctx, view)
	case DimensionValidity:
		return d.validity.Evaluate(ctx, view)
	case DimensionConsistency:
		return d.consistency.Evaluate(ctx, view)
	default:
		return nil, &InvalidRuleError{Reason: "规则未映射到任何维度: " + view.RuleType}
	}
}

// appendResult 结果落库并累加计数、异常采样、事件和指标
func (d *Dispatcher) appendResult(ctx context.Context, outcome *DispatchOutcome, result *models.CheckResult, violations []violationSample) {
	if err := d.db.Create(result).Error; err != nil {
		slog.Error("检查结果落库失败", "run_id", result.RunID, "rule_id", result.RuleID, "error", err)
	}

	if result.Status == StatusError {
		outcome.Errored++
	} else {
		outcome.Evaluated++
	}
	outcome.Results = append(outcome.Results, *result)
	metricRulesEvaluated.WithLabelValues(result.Dimension, result.Status).Inc()

	if len(violations) > 0 {
		exceptions := make([]models.QualityException, len(violations))
		for i, v := range violations {
			exceptions[i] = models.QualityException{
				ResultID:        result.ID,
				RuleID:          result.RuleID,
				PrimaryKeyValue: v.PrimaryKeyValue,
				ColumnValue:     v.ColumnValue,
				Reason:          v.Reason,
			}
		}
		if err := d.db.Create(&exceptions).Error; err != nil {
			slog.Error("异常记录落库失败", "result_id", result.ID, "error", err)
		} else {
			metricExceptionsRecorded.Add(float64(len(exceptions)))
		}
	}

	_ = d.publisher.Publish(ctx, &RuleEvent{
		RunID:        result.RunID,
		RuleID:       result.RuleID,
		RuleType:     result.RuleType,
		Dimension:    result.Dimension,
		TargetSchema: result.TargetSchema,
		TargetTable:  result.TargetTable,
		TargetColumn: result.TargetColumn,
		Status:       result.Status,
		Total:        result.Total,
		Passed:       result.Passed,
		Failed:       result.Failed,
		PassRate:     result.PassRate,
		ErrorMessage: result.ErrorMessage,
		ExecutionMs:  result.ExecutionMs,
		OccurredAt:   time.Now(),
	})
}

// errorResult 构造 status=ERROR 的检查结果
func (d *Dispatcher) errorResult(runID string, runDate time.Time, rule *models.QualityRule, message string) *models.CheckResult {
	return &models.CheckResult{
		RunID:        runID,
		RuleID:       rule.ID,
		TargetSchema: rule.TargetSchema,
		TargetTable:  rule.TargetTable,
		TargetColumn: rule.TargetColumn,
		RuleType:     rule.RuleType,
		Dimension:    rule.Dimension,
		Status:       StatusError,
		ErrorMessage: message,
		RunDate:      runDate,
	}
}
