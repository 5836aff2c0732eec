/*
 * @module service/audit/scoring_test
 * @description 评分引擎的单元测试，覆盖维度平均、缺维度记满分、等级映射与同日重算upsert
 * @architecture 测试层
 * @documentReference .specify/memory/test_plan.md
 * @stateFlow 造检查结果 -> 评分 -> 验证子分/总分/等级/行数
 * @rules ERROR结果默认不参与评分; 同一(schema,table,run_date)重算覆盖而非累积
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

func newScoringTest(t *testing.T, errorAsFail bool) (*testutil.TestDB, *ScoringService, *testutil.TestDataFactory) {
	t.Helper()
	tdb := testutil.NewTestDB()
	t.Cleanup(tdb.Close)
	return tdb, NewScoringService(tdb.DB, errorAsFail), testutil.NewTestDataFactory(tdb.DB)
}

// TestScoreRunDimensionAverage 每个维度取通过率均值映射到0-25
func TestScoreRunDimensionAverage(t *testing.T) {
	_, scoring, factory := newScoringTest(t, false)
	run := factory.CreateAuditRun()

	// completeness: (100+80)/2 = 90 -> 22.5
	factory.CreateCheckResult(run.ID, "r1", func(r *models.CheckResult) {
		r.Dimension = DimensionCompleteness
		r.PassRate = 100
		r.Status = StatusPass
	})
	factory.CreateCheckResult(run.ID, "r2", func(r *models.CheckResult) {
		r.Dimension = DimensionCompleteness
		r.PassRate = 80
		r.Status = StatusFail
	})
	// validity: 60 -> 15
	factory.CreateCheckResult(run.ID, "r3", func(r *models.CheckResult) {
		r.Dimension = DimensionValidity
		r.PassRate = 60
		r.Status = StatusFail
	})

	scores, err := scoring.ScoreRun(run.ID)
	require.NoError(t, err)
	require.Len(t, scores, 1)

	score := scores[0]
	assert.Equal(t, 22.5, score.CompletenessScore)
	assert.Equal(t, 15.0, score.ValidityScore)
	// 未配置规则的维度记满分
	assert.Equal(t, 25.0, score.UniquenessScore)
	assert.Equal(t, 25.0, score.ConsistencyScore)
	assert.Equal(t, 87.5, score.OverallScore)
	assert.Equal(t, "B", score.Grade)
	assert.Equal(t, 3, score.TotalRules)
	assert.Equal(t, 1, score.PassedRules)
}

// TestScoreRunGrades 等级按固定分界映射
func TestScoreRunGrades(t *testing.T) {
	cases := []struct {
		overall float64
		grade   string
	}{
		{100, "A"},
		{95, "A"},
		{94.99, "B"},
		{85, "B"},
		{84.9, "C"},
		{70, "C"},
		{69.5, "D"},
		{60, "D"},
		{59.99, "F"},
		{0, "F"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.grade, gradeOf(tc.overall), "overall=%v", tc.overall)
	}
}

// TestScoreRunErrorExcluded ERROR结果默认既不进分子也不进分母
func TestScoreRunErrorExcluded(t *testing.T) {
	_, scoring, factory := newScoringTest(t, false)
	run := factory.CreateAuditRun()

	factory.CreateCheckResult(run.ID, "r1", func(r *models.CheckResult) {
		r.Dimension = DimensionCompleteness
		r.PassRate = 80
		r.Status = StatusWarn
	})
	factory.CreateCheckResult(run.ID, "r2", func(r *models.CheckResult) {
		r.Dimension = DimensionCompleteness
		r.PassRate = 0
		r.Status = StatusError
	})

	scores, err := scoring.ScoreRun(run.ID)
	require.NoError(t, err)
	require.Len(t, scores, 1)

	// 均值只看非ERROR的那条: 80/4 = 20
	assert.Equal(t, 20.0, scores[0].CompletenessScore)
	assert.Equal(t, 2, scores[0].TotalRules)
}

// TestScoreRunErrorAsFail 开启errorAsFail后ERROR按通过率0只进分母
func TestScoreRunErrorAsFail(t *testing.T) {
	_, scoring, factory := newScoringTest(t, true)
	run := factory.CreateAuditRun()

	factory.CreateCheckResult(run.ID, "r1", func(r *models.CheckResult) {
		r.Dimension = DimensionCompleteness
		r.PassRate = 80
		r.Status = StatusWarn
	})
	factory.CreateCheckResult(run.ID, "r2", func(r *models.CheckResult) {
		r.Dimension = DimensionCompleteness
		r.PassRate = 0
		r.Status = StatusError
	})

	scores, err := scoring.ScoreRun(run.ID)
	require.NoError(t, err)
	require.Len(t, scores, 1)

	// (80+0)/2/4 = 10
	assert.Equal(t, 10.0, scores[0].CompletenessScore)
}

// TestScoreRunMultipleTables 每张表各出一行评分
func TestScoreRunMultipleTables(t *testing.T) {
	_, scoring, factory := newScoringTest(t, false)
	run := factory.CreateAuditRun()

	factory.CreateCheckResult(run.ID, "r1", func(r *models.CheckResult) {
		r.TargetTable = "users"
		r.PassRate = 100
		r.Status = StatusPass
	})
	factory.CreateCheckResult(run.ID, "r2", func(r *models.CheckResult) {
		r.TargetTable = "orders"
		r.PassRate = 40
		r.Status = StatusFail
	})

	scores, err := scoring.ScoreRun(run.ID)
	require.NoError(t, err)
	require.Len(t, scores, 2)

	byTable := make(map[string]models.TableScore)
	for _, s := range scores {
		byTable[s.TargetTable] = s
	}
	assert.Equal(t, 100.0, byTable["users"].OverallScore)
	assert.Equal(t, "A", byTable["users"].Grade)
	// orders: completeness 40/4=10, 其余三维满分 -> 85
	assert.Equal(t, 85.0, byTable["orders"].OverallScore)
	assert.Equal(t, "B", byTable["orders"].Grade)
}

// TestScoreRunUpsert 同日重算覆盖既有评分行而不累积
func TestScoreRunUpsert(t *testing.T) {
	tdb, scoring, factory := newScoringTest(t, false)
	run := factory.CreateAuditRun()

	factory.CreateCheckResult(run.ID, "r1", func(r *models.CheckResult) {
		r.PassRate = 100
		r.Status = StatusPass
	})

	_, err := scoring.ScoreRun(run.ID)
	require.NoError(t, err)

	// 同表同日追加一条失败结果后重算
	factory.CreateCheckResult(run.ID, "r2", func(r *models.CheckResult) {
		r.PassRate = 50
		r.Status = StatusFail
	})
	scores, err := scoring.ScoreRun(run.ID)
	require.NoError(t, err)
	require.Len(t, scores, 1)

	var rows []models.TableScore
	require.NoError(t, tdb.DB.Find(&rows).Error)
	require.Len(t, rows, 1)
	// (100+50)/2/4 = 18.75
	assert.Equal(t, 18.75, rows[0].CompletenessScore)
	assert.Equal(t, 93.75, rows[0].OverallScore)
	assert.Equal(t, 2, rows[0].TotalRules)
}

// TestScoreRunEmpty 没有检查结果时不产生评分行
func TestScoreRunEmpty(t *testing.T) {
	_, scoring, _ := newScoringTest(t, false)

	scores, err := scoring.ScoreRun("missing-run")
	require.NoError(t, err)
	assert.Empty(t, scores)
}
