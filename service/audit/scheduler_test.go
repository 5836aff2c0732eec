/*
 * @module service/audit/scheduler_test
 * @description 审计调度器的单元测试，覆盖调度配置校验与查询
 * @architecture 测试层
 * @documentReference .specify/memory/test_plan.md
 * @stateFlow 创建调度配置 -> 校验 -> 查询
 * @rules cron表达式按6字段校验; interval间隔必须为正
 * @dependencies testing, stretchr/testify, testutil
 */

package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataquality-service/service/models"
	"dataquality-service/testutil"
)

func newSchedulerTest(t *testing.T) (*testutil.TestDB, *AuditScheduler) {
	t.Helper()
	tdb := testutil.NewTestDB()
	t.Cleanup(tdb.Close)

	registry := NewRuleRegistry(tdb.DB)
	dispatcher := NewDispatcher(tdb.DB, NewGormExecutor(tdb.DB), nil, 2)
	scoring := NewScoringService(tdb.DB, false)
	audits := NewAuditService(tdb.DB, registry, dispatcher, scoring)
	return tdb, NewAuditScheduler(tdb.DB, audits)
}

// TestCreateScheduleCron cron类型需要合法的6字段表达式
func TestCreateScheduleCron(t *testing.T) {
	_, scheduler := newSchedulerTest(t)

	schedule := &models.AuditSchedule{
		Name:           "每日凌晨审计",
		TargetSchema:   "crm",
		TargetTable:    "customers",
		ScheduleType:   "cron",
		CronExpression: "0 0 2 * * *",
		IsEnabled:      true,
	}
	require.NoError(t, scheduler.CreateSchedule(schedule))
	assert.NotEmpty(t, schedule.ID)

	schedules, err := scheduler.ListSchedules()
	require.NoError(t, err)
	require.Len(t, schedules, 1)
	assert.Equal(t, "每日凌晨审计", schedules[0].Name)
}

// TestCreateScheduleValidation 非法配置在落库前被拒绝
func TestCreateScheduleValidation(t *testing.T) {
	tdb, scheduler := newSchedulerTest(t)

	cases := []struct {
		name     string
		schedule models.AuditSchedule
	}{
		{"缺少target_schema", models.AuditSchedule{
			ScheduleType: "cron", CronExpression: "0 0 2 * * *",
		}},
		{"cron缺表达式", models.AuditSchedule{
			TargetSchema: "crm", ScheduleType: "cron",
		}},
		{"cron表达式字段数不对", models.AuditSchedule{
			TargetSchema: "crm", ScheduleType: "cron", CronExpression: "0 2 * * *",
		}},
		{"interval间隔为0", models.AuditSchedule{
			TargetSchema: "crm", ScheduleType: "interval", IntervalSeconds: 0,
		}},
		{"未知调度类型", models.AuditSchedule{
			TargetSchema: "crm", ScheduleType: "hourly",
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			schedule := tc.schedule
			assert.Error(t, scheduler.CreateSchedule(&schedule))
		})
	}

	var count int64
	tdb.DB.Model(&models.AuditSchedule{}).Count(&count)
	assert.Zero(t, count)
}

// TestCreateScheduleInterval interval类型只要求正间隔
func TestCreateScheduleInterval(t *testing.T) {
	_, scheduler := newSchedulerTest(t)

	schedule := &models.AuditSchedule{
		Name:            "每小时增量审计",
		TargetSchema:    "crm",
		ScheduleType:    "interval",
		IntervalSeconds: 3600,
		IsEnabled:       true,
	}
	require.NoError(t, scheduler.CreateSchedule(schedule))
	assert.Nil(t, schedule.NextRunAt)
}
