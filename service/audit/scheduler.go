/*
 * @module service/audit/scheduler
 * @description 审计调度器，按cron表达式或固定间隔定时发起审计
 * @architecture 服务层 - 调度
 * @documentReference ai_docs/quality_engine_req.md
 * @stateFlow 启动调度器 -> 加载调度配置 -> 定时检查 -> 发起审计
 * @rules 支持cron和interval两种调度类型，多实例部署时通过分布式锁防重
 * @dependencies github.com/robfig/cron/v3, gorm.io/gorm, service/distributed_lock
 * @refs orchestrator.go, service/models/audit_models.go
 */

package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"dataquality-service/service/distributed_lock"
	"dataquality-service/service/models"
)

// AuditScheduler 审计调度器
type AuditScheduler struct {
	db               *gorm.DB
	audits           *AuditService
	cron             *cron.Cron
	intervalTicker   *time.Ticker
	ctx              context.Context
	cancel           context.CancelFunc
	schedulerStarted bool
	distributedLock  distributed_lock.DistributedLock
}

// NewAuditScheduler 创建审计调度器
func NewAuditScheduler(db *gorm.DB, audits *AuditService) *AuditScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	c := cron.New(cron.WithSeconds())

	return &AuditScheduler{
		db:     db,
		audits: audits,
		cron:   c,
		ctx:    ctx,
		cancel: cancel,
	}
}

// SetDistributedLock 设置分布式锁
func (as *AuditScheduler) SetDistributedLock(lock distributed_lock.DistributedLock) {
	as.distributedLock = lock
	if lock != nil {
		slog.Info("审计调度器已启用分布式锁")
	}
}

// StartScheduler 启动调度器
func (as *AuditScheduler) StartScheduler() error {
	if as.schedulerStarted {
		return fmt.Errorf("调度器已经启动")
	}

	slog.Info("启动质量审计调度器")

	as.cron.Start()

	// 间隔调度每分钟检查一次
	as.intervalTicker = time.NewTicker(1 * time.Minute)
	go as.runIntervalChecker()

	if err := as.loadSchedules(); err != nil {
		slog.Error("加载审计调度配置失败", "error", err)
		return err
	}

	as.schedulerStarted = true
	slog.Info("质量审计调度器启动完成")
	return nil
}

// StopScheduler 停止调度器
func (as *AuditScheduler) StopScheduler() {
	if !as.schedulerStarted {
		return
	}

	slog.Info("停止质量审计调度器")

	as.cancel()

	if as.cron != nil {
		as.cron.Stop()
	}

	if as.intervalTicker != nil {
		as.intervalTicker.Stop()
	}

	as.schedulerStarted = false
	slog.Info("质量审计调度器已停止")
}

// loadSchedules 加载调度配置
func (as *AuditScheduler) loadSchedules() error {
	var schedules []models.AuditSchedule
	err := as.db.Where("is_enabled = ? AND schedule_type IN (?, ?)",
		true, "cron", "interval").
		Find(&schedules).Error
	if err != nil {
		return fmt.Errorf("获取审计调度配置失败: %w", err)
	}

	slog.Info("找到审计调度配置", "count", len(schedules))

	successCount := 0
	failedCount := 0
	for _, schedule := range schedules {
		if err := as.addScheduleToCron(&schedule); err != nil {
			slog.Error("添加调度配置失败", "schedule_id", schedule.ID, "error", err)
			failedCount++
		} else {
			successCount++
		}
	}

	slog.Info("审计调度配置加载完成", "total", len(schedules), "success", successCount, "failed", failedCount)
	return nil
}

// addScheduleToCron 注册单条调度配置
func (as *AuditScheduler) addScheduleToCron(schedule *models.AuditSchedule) error {
	switch schedule.ScheduleType {
	case "cron":
		if schedule.CronExpression == "" {
			return fmt.Errorf("cron调度缺少表达式")
		}

		scheduleID := schedule.ID
		_, err := as.cron.AddFunc(schedule.CronExpression, func() {
			as.executeSchedule(scheduleID)
		})
		if err != nil {
			slog.Error("添加cron调度失败",
				"schedule_id", schedule.ID,
				"cron_expression", schedule.CronExpression,
				"error", err,
				"help", "Cron表达式需要6个字段（秒 分 时 日 月 周），例如：0 0 2 * * *（每天凌晨2点）")
			return fmt.Errorf("添加cron调度失败: %w", err)
		}

		slog.Info("添加cron调度成功", "schedule_id", schedule.ID, "cron_expression", schedule.CronExpression)

	case "interval":
		if schedule.IntervalSeconds <= 0 {
			return fmt.Errorf("间隔调度的间隔时间必须大于0")
		}
		slog.Info("添加间隔调度成功", "schedule_id", schedule.ID, "interval_seconds", schedule.IntervalSeconds)

	default:
		return fmt.Errorf("不支持的调度类型: %s", schedule.ScheduleType)
	}

	return nil
}

// runIntervalChecker 间隔调度检查器
func (as *AuditScheduler) runIntervalChecker() {
	for {
		select {
		case <-as.intervalTicker.C:
			as.checkIntervalSchedules()
		case <-as.ctx.Done():
			return
		}
	}
}

// checkIntervalSchedules 检查到期的间隔调度
func (as *AuditScheduler) checkIntervalSchedules() {
	var schedules []models.AuditSchedule
	now := time.Now()

	err := as.db.Where("is_enabled = ? AND schedule_type = ? AND (next_run_at IS NULL OR next_run_at <= ?)",
		true, "interval", now).
		Find(&schedules).Error
	if err != nil {
		slog.Error("获取间隔调度配置失败", "error", err)
		return
	}

	for _, schedule := range schedules {
		slog.Info("间隔调度到期，准备发起审计",
			"schedule_id", schedule.ID,
			"name", schedule.Name,
			"next_run_at", schedule.NextRunAt)
		go as.executeSchedule(schedule.ID)
	}
}

// executeSchedule 执行一条调度（带分布式锁）
func (as *AuditScheduler) executeSchedule(scheduleID string) {
	slog.Info("执行审计调度", "schedule_id", scheduleID)

	if as.distributedLock != nil {
		lockKey := fmt.Sprintf("audit_schedule:%s", scheduleID)
		lockTTL := 30 * time.Minute

		locked, err := as.distributedLock.TryLock(as.ctx, lockKey, lockTTL)
		if err != nil {
			slog.Error("获取分布式锁失败", "schedule_id", scheduleID, "error", err)
			return
		}

		if !locked {
			slog.Warn("调度正在其他实例执行，跳过", "schedule_id", scheduleID)
			return
		}

		defer func() {
			if unlockErr := as.distributedLock.Unlock(as.ctx, lockKey); unlockErr != nil {
				slog.Error("释放分布式锁失败", "schedule_id", scheduleID, "error", unlockErr)
			}
		}()
	}

	var schedule models.AuditSchedule
	if err := as.db.First(&schedule, "id = ?", scheduleID).Error; err != nil {
		slog.Error("获取审计调度配置失败", "schedule_id", scheduleID, "error", err)
		return
	}

	if !schedule.IsEnabled {
		slog.Warn("调度已禁用，跳过执行", "schedule_id", scheduleID)
		return
	}

	scope := Scope{Schema: schedule.TargetSchema, Table: schedule.TargetTable}
	summary, err := as.audits.RunAudit(as.ctx, scope)
	if err != nil {
		slog.Error("调度审计执行失败", "schedule_id", scheduleID, "error", err)
	} else {
		slog.Info("调度审计执行完成",
			"schedule_id", scheduleID,
			"run_id", summary.RunID,
			"evaluated", summary.RulesEvaluated,
			"errored", summary.RulesErrored)
	}

	if err := as.updateNextRun(&schedule); err != nil {
		slog.Error("更新下次执行时间失败", "schedule_id", scheduleID, "error", err)
	}
}

// updateNextRun 回写上次/下次执行时间
func (as *AuditScheduler) updateNextRun(schedule *models.AuditSchedule) error {
	now := time.Now()
	updates := map[string]interface{}{
		"last_run_at": &now,
		"updated_at":  now,
	}

	if schedule.ScheduleType == "interval" && schedule.IntervalSeconds > 0 {
		next := now.Add(time.Duration(schedule.IntervalSeconds) * time.Second)
		updates["next_run_at"] = &next
	}

	return as.db.Model(&models.AuditSchedule{}).
		Where("id = ?", schedule.ID).Updates(updates).Error
}

// CreateSchedule 创建调度配置，启用时立即注册
func (as *AuditScheduler) CreateSchedule(schedule *models.AuditSchedule) error {
	if schedule.TargetSchema == "" {
		return fmt.Errorf("调度配置缺少target_schema")
	}
	if err := as.addScheduleValidate(schedule); err != nil {
		return err
	}

	if err := as.db.Create(schedule).Error; err != nil {
		return err
	}

	if as.schedulerStarted && schedule.IsEnabled {
		if err := as.addScheduleToCron(schedule); err != nil {
			slog.Error("注册新调度配置失败", "schedule_id", schedule.ID, "error", err)
		}
	}
	return nil
}

// ListSchedules 查询全部调度配置
func (as *AuditScheduler) ListSchedules() ([]models.AuditSchedule, error) {
	var schedules []models.AuditSchedule
	if err := as.db.Order("created_at DESC").Find(&schedules).Error; err != nil {
		return nil, err
	}
	return schedules, nil
}

func (as *AuditScheduler) addScheduleValidate(schedule *models.AuditSchedule) error {
	switch schedule.ScheduleType {
	case "cron":
		if schedule.CronExpression == "" {
			return fmt.Errorf("cron调度缺少表达式")
		}
		parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		if _, err := parser.Parse(schedule.CronExpression); err != nil {
			return fmt.Errorf("cron表达式无效: %w", err)
		}
	case "interval":
		if schedule.IntervalSeconds <= 0 {
			return fmt.Errorf("间隔调度的间隔时间必须大于0")
		}
	default:
		return fmt.Errorf("不支持的调度类型: %s", schedule.ScheduleType)
	}
	return nil
}
