/*
 * @module service/audit/orchestrator_test
 * @description 审计编排器的集成测试，走内存库全链路: 注册规则 -> 发起审计 -> 验证状态机与汇总
 * @architecture 测试层
 * @documentReference .specify/memory/test_plan.md
 * @stateFlow 建表灌数 -> 注册规则 -> RunAudit -> 校验运行记录/结果/评分
 * @rules 部分规则出错的运行仍进complete; failed仅基础设施故障
 * @dependencies testing, stretchr/testify, testutil
 */

package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataquality-service/service/models"
	"dataquality-service/testutil"
)

func newAuditServiceTest(t *testing.T) (*testutil.TestDB, *AuditService) {
	t.Helper()
	tdb := testutil.NewTestDB()
	t.Cleanup(tdb.Close)

	registry := NewRuleRegistry(tdb.DB)
	dispatcher := NewDispatcher(tdb.DB, NewGormExecutor(tdb.DB), nil, 2)
	scoring := NewScoringService(tdb.DB, false)
	return tdb, NewAuditService(tdb.DB, registry, dispatcher, scoring)
}

// TestRunAuditFullCycle 全链路: 规则评估出结果、表产出评分、运行进complete
func TestRunAuditFullCycle(t *testing.T) {
	tdb, audits := newAuditServiceTest(t)
	require.NoError(t, tdb.DB.Exec(
		`CREATE TABLE customers (id INTEGER PRIMARY KEY, email TEXT, age INTEGER)`).Error)
	require.NoError(t, tdb.DB.Exec(
		`INSERT INTO customers (id, email, age) VALUES
		 (1, 'a@x.com', 30), (2, NULL, 45), (3, 'c@x.com', 200), (4, 'd@x.com', 28)`).Error)

	registry := NewRuleRegistry(tdb.DB)
	_, err := registry.Add(&RuleDraft{
		Name: "邮箱非空", TargetSchema: "main", TargetTable: "customers",
		TargetColumn: "email", RuleType: RuleTypeNullCheck,
		ThresholdPct: 95, WarningPct: 70,
	})
	require.NoError(t, err)
	_, err = registry.Add(&RuleDraft{
		Name: "年龄区间", TargetSchema: "main", TargetTable: "customers",
		TargetColumn: "age", RuleType: RuleTypeRangeCheck,
		Params:       map[string]interface{}{"min_value": float64(0), "max_value": float64(120)},
		ThresholdPct: 90, WarningPct: 70,
	})
	require.NoError(t, err)

	summary, err := audits.RunAudit(context.Background(), Scope{Schema: "main", Table: "customers"})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.RulesEvaluated)
	assert.Equal(t, 0, summary.RulesErrored)
	assert.Equal(t, 0, summary.RulesSkipped)
	require.Len(t, summary.TableScores, 1)
	assert.True(t, summary.EndTime.After(summary.StartTime) || summary.EndTime.Equal(summary.StartTime))

	run, err := audits.GetRun(summary.RunID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusComplete, run.Status)
	assert.Equal(t, 2, run.RulesEvaluated)
	require.NotNil(t, run.EndTime)

	results, err := audits.GetRunResults(summary.RunID)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// NULL_CHECK: 3/4=75 在警戒70与阈值95之间 -> WARN
	// RANGE_CHECK: 非空4条里3条在[0,120] -> 75 -> WARN
	for _, result := range results {
		assert.Equal(t, StatusWarn, result.Status)
		assert.Equal(t, 75.0, result.PassRate)
	}

	// completeness 75/4=18.75, validity 75/4=18.75, 其余两维满分 -> 87.5
	score := summary.TableScores[0]
	assert.Equal(t, 87.5, score.OverallScore)
	assert.Equal(t, "B", score.Grade)
}

// TestRunAuditPartialError 规则出错不拖垮运行，计数进RulesErrored
func TestRunAuditPartialError(t *testing.T) {
	tdb, audits := newAuditServiceTest(t)
	require.NoError(t, tdb.DB.Exec(
		`CREATE TABLE customers (id INTEGER PRIMARY KEY, email TEXT)`).Error)
	require.NoError(t, tdb.DB.Exec(
		`INSERT INTO customers (id, email) VALUES (1, 'a@x.com')`).Error)

	registry := NewRuleRegistry(tdb.DB)
	_, err := registry.Add(&RuleDraft{
		Name: "邮箱非空", TargetSchema: "main", TargetTable: "customers",
		TargetColumn: "email", RuleType: RuleTypeNullCheck,
		ThresholdPct: 95, WarningPct: 90,
	})
	require.NoError(t, err)
	// 注册后表被删掉的场景
	_, err = registry.Add(&RuleDraft{
		Name: "幽灵表检查", TargetSchema: "main", TargetTable: "dropped_table",
		TargetColumn: "email", RuleType: RuleTypeNullCheck,
		ThresholdPct: 95, WarningPct: 90,
	})
	require.NoError(t, err)

	summary, err := audits.RunAudit(context.Background(), Scope{Schema: "main"})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.RulesEvaluated)
	assert.Equal(t, 1, summary.RulesErrored)

	run, err := audits.GetRun(summary.RunID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusComplete, run.Status)
	assert.Equal(t, 1, run.RulesErrored)
	assert.Empty(t, run.ErrorMessage)
}

// TestRunAuditEmptyScope 范围内没有启用规则: 空结果的完整运行，不是错误
func TestRunAuditEmptyScope(t *testing.T) {
	_, audits := newAuditServiceTest(t)

	summary, err := audits.RunAudit(context.Background(), Scope{Schema: "main", Table: "nothing"})
	require.NoError(t, err)

	assert.Equal(t, 0, summary.RulesEvaluated)
	assert.Empty(t, summary.TableScores)

	run, err := audits.GetRun(summary.RunID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusComplete, run.Status)
}

// TestRunAuditMissingSchema schema为空直接拒绝
func TestRunAuditMissingSchema(t *testing.T) {
	_, audits := newAuditServiceTest(t)

	_, err := audits.RunAudit(context.Background(), Scope{})
	require.Error(t, err)

	var orchErr *OrchestratorError
	require.True(t, errors.As(err, &orchErr))
	assert.Equal(t, "initiate", orchErr.Stage)
}

// TestRunAuditCancelled 取消的运行进failed，已产出结果保留
func TestRunAuditCancelled(t *testing.T) {
	tdb, audits := newAuditServiceTest(t)

	registry := NewRuleRegistry(tdb.DB)
	_, err := registry.Add(&RuleDraft{
		Name: "邮箱非空", TargetSchema: "main", TargetTable: "customers",
		TargetColumn: "email", RuleType: RuleTypeNullCheck,
		ThresholdPct: 95, WarningPct: 90,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = audits.RunAudit(ctx, Scope{Schema: "main"})
	require.Error(t, err)

	var orchErr *OrchestratorError
	require.True(t, errors.As(err, &orchErr))
	assert.Equal(t, "dispatch", orchErr.Stage)

	var run models.AuditRun
	require.NoError(t, tdb.DB.Order("created_at DESC").First(&run).Error)
	assert.Equal(t, RunStatusFailed, run.Status)
	assert.Contains(t, run.ErrorMessage, "取消")
}

// TestGetTableScoresFilter 评分趋势查询按范围与日期过滤
func TestGetTableScoresFilter(t *testing.T) {
	tdb, audits := newAuditServiceTest(t)

	require.NoError(t, tdb.DB.Exec(
		`CREATE TABLE customers (id INTEGER PRIMARY KEY, email TEXT)`).Error)
	require.NoError(t, tdb.DB.Exec(
		`INSERT INTO customers (id, email) VALUES (1, 'a@x.com')`).Error)

	registry := NewRuleRegistry(tdb.DB)
	_, err := registry.Add(&RuleDraft{
		Name: "邮箱非空", TargetSchema: "main", TargetTable: "customers",
		TargetColumn: "email", RuleType: RuleTypeNullCheck,
		ThresholdPct: 95, WarningPct: 90,
	})
	require.NoError(t, err)

	_, err = audits.RunAudit(context.Background(), Scope{Schema: "main", Table: "customers"})
	require.NoError(t, err)

	scores, err := audits.GetTableScores("main", "customers", nil, nil)
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, "A", scores[0].Grade)

	scores, err = audits.GetTableScores("other_schema", "", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, scores)
}
