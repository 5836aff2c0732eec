/*
 * @module service/audit/orchestrator
 * @description 审计编排器，顶层入口，按范围发起一次审计: 读取规则 -> 派发评估 -> 评分汇总
 * @architecture 服务层 - 流程编排
 * @documentReference ai_docs/quality_engine_req.md
 * @stateFlow initiated -> dispatching -> scoring -> complete; 仅基础设施故障进入failed
 * @rules 完成的运行总是产出RunSummary，即使部分规则出错; 单条规则失败不会让运行进入failed
 * @dependencies gorm.io/gorm, service/distributed_lock
 * @refs dispatcher.go, scoring.go, registry.go
 */

package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"dataquality-service/service/distributed_lock"
	"dataquality-service/service/models"
)

// 审计运行状态
const (
	RunStatusInitiated   = "initiated"
	RunStatusDispatching = "dispatching"
	RunStatusScoring     = "scoring"
	RunStatusComplete    = "complete"
	RunStatusFailed      = "failed"
)

const runLockTTL = 30 * time.Minute

// AuditService 审计编排器
type AuditService struct {
	db         *gorm.DB
	registry   *RuleRegistry
	dispatcher *Dispatcher
	scoring    *ScoringService
	lock       distributed_lock.DistributedLock
}

// NewAuditService 创建审计编排器
func NewAuditService(db *gorm.DB, registry *RuleRegistry, dispatcher *Dispatcher, scoring *ScoringService) *AuditService {
	return &AuditService{
		db:         db,
		registry:   registry,
		dispatcher: dispatcher,
		scoring:    scoring,
	}
}

// SetDistributedLock 设置分布式锁，多实例部署时防止同范围审计并发执行
func (s *AuditService) SetDistributedLock(lock distributed_lock.DistributedLock) {
	s.lock = lock
	if lock != nil {
		slog.Info("审计编排器已启用分布式锁")
	}
}

// RunAudit 发起一次审计
// 返回 OrchestratorError 仅当无法分配运行ID或无法读取规则集
func (s *AuditService) RunAudit(ctx context.Context, scope Scope) (*RunSummary, error) {
	if scope.Schema == "" {
		return nil, &OrchestratorError{Stage: "initiate", Err: fmt.Errorf("scope.schema 不能为空")}
	}

	if s.lock != nil {
		lockKey := fmt.Sprintf("dq:audit:%s:%s", scope.Schema, scope.Table)
		acquired, err := s.lock.TryLock(ctx, lockKey, runLockTTL)
		if err != nil {
			return nil, &OrchestratorError{Stage: "initiate", Err: fmt.Errorf("获取审计锁失败: %w", err)}
		}
		if !acquired {
			return nil, &OrchestratorError{Stage: "initiate", Err: fmt.Errorf("范围 %s.%s 已有审计在运行", scope.Schema, scope.Table)}
		}
		defer func() {
			if err := s.lock.Unlock(context.Background(), lockKey); err != nil {
				slog.Warn("释放审计锁失败", "key", lockKey, "error", err)
			}
		}()
	}

	// initiated: 分配运行ID，失败属于基础设施故障，整次运行中止
	run := &models.AuditRun{
		TargetSchema: scope.Schema,
		TargetTable:  scope.Table,
		Status:       RunStatusInitiated,
		StartTime:    time.Now(),
	}
	if err := s.db.Create(run).Error; err != nil {
		metricAuditRuns.WithLabelValues(RunStatusFailed).Inc()
		return nil, &OrchestratorError{Stage: "initiate", Err: fmt.Errorf("分配运行ID失败: %w", err)}
	}

	rules, err := s.registry.Get(scope)
	if err != nil {
		s.failRun(run, fmt.Sprintf("读取规则集失败: %v", err))
		return nil, &OrchestratorError{Stage: "initiate", Err: err}
	}

	slog.Info("审计开始",
		"run_id", run.ID, "schema", scope.Schema, "table", scope.Table, "rules", len(rules))

	// dispatching: 规则逐条隔离评估
	s.updateRunStatus(run, RunStatusDispatching)
	dispatched, err := s.dispatcher.Run(ctx, run.ID, rules)
	if err != nil {
		// 协作式取消: 已产出的结果保留，运行标记失败
		s.failRun(run, fmt.Sprintf("审计被取消: %v", err))
		return nil, &OrchestratorError{Stage: "dispatch", Err: err}
	}

	// scoring: 所有规则出结果后才聚合，这是系统要求的唯一顺序屏障
	s.updateRunStatus(run, RunStatusScoring)
	scores, err := s.scoring.ScoreRun(run.ID)
	if err != nil {
		s.failRun(run, fmt.Sprintf("评分失败: %v", err))
		return nil, &OrchestratorError{Stage: "score", Err: err}
	}

	endTime := time.Now()
	s.db.Model(run).Updates(map[string]interface{}{
		"status":          RunStatusComplete,
		"rules_evaluated": dispatched.Evaluated,
		"rules_errored":   dispatched.Errored,
		"rules_skipped":   dispatched.Skipped,
		"end_time":        &endTime,
	})
	metricAuditRuns.WithLabelValues(RunStatusComplete).Inc()

	slog.Info("审计完成",
		"run_id", run.ID,
		"evaluated", dispatched.Evaluated,
		"errored", dispatched.Errored,
		"skipped", dispatched.Skipped,
		"tables_scored", len(scores))

	return &RunSummary{
		RunID:          run.ID,
		Scope:          scope,
		RulesEvaluated: dispatched.Evaluated,
		RulesErrored:   dispatched.Errored,
		RulesSkipped:   dispatched.Skipped,
		TableScores:    scores,
		StartTime:      run.StartTime,
		EndTime:        endTime,
	}, nil
}

// GetRun 查询一次运行的记录
func (s *AuditService) GetRun(runID string) (*models.AuditRun, error) {
	var run models.AuditRun
	if err := s.db.First(&run, "id = ?", runID).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// GetRunResults 查询一次运行的全部检查结果
func (s *AuditService) GetRunResults(runID string) ([]models.CheckResult, error) {
	var results []models.CheckResult
	if err := s.db.Where("run_id = ?", runID).
		Order("target_table ASC, rule_type ASC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// GetTableScores 按条件查询表评分（趋势序列）
func (s *AuditService) GetTableScores(schema, table string, from, to *time.Time) ([]models.TableScore, error) {
	query := s.db.Model(&models.TableScore{})
	if schema != "" {
		query = query.Where("target_schema = ?", schema)
	}
	if table != "" {
		query = query.Where("target_table = ?", table)
	}
	if from != nil {
		query = query.Where("run_date >= ?", *from)
	}
	if to != nil {
		query = query.Where("run_date <= ?", *to)
	}

	var scores []models.TableScore
	if err := query.Order("run_date DESC, target_table ASC").Find(&scores).Error; err != nil {
		return nil, err
	}
	return scores, nil
}

func (s *AuditService) updateRunStatus(run *models.AuditRun, status string) {
	run.Status = status
	if err := s.db.Model(run).Update("status", status).Error; err != nil {
		slog.Error("更新运行状态失败", "run_id", run.ID, "status", status, "error", err)
	}
}

func (s *AuditService) failRun(run *models.AuditRun, message string) {
	endTime := time.Now()
	s.db.Model(run).Updates(map[string]interface{}{
		"status":        RunStatusFailed,
		"error_message": message,
		"end_time":      &endTime,
	})
	metricAuditRuns.WithLabelValues(RunStatusFailed).Inc()
	slog.Error("审计失败", "run_id", run.ID, "error", message)
}
