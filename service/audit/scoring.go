/*
 * @module service/audit/scoring
 * @description 评分引擎，把一次运行的检查结果按表聚合为四维子分和总分，同日重算走upsert
 * @architecture 服务层 - 聚合计算
 * @documentReference ai_docs/quality_engine_req.md
 * @stateFlow 拉取run内结果 -> 按表分组 -> 维度平均 -> 评分入库
 * @rules 必须在run内全部规则出结果后调用; ERROR结果默认不进分子也不进分母，未配置规则的维度记满分25
 * @dependencies gorm.io/gorm, gorm.io/gorm/clause
 * @refs dispatcher.go, orchestrator.go
 */

package audit

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"dataquality-service/service/models"
)

// 等级固定分界点
const (
	gradeABoundary = 95.0
	gradeBBoundary = 85.0
	gradeCBoundary = 70.0
	gradeDBoundary = 60.0
)

// ScoringService 评分引擎
type ScoringService struct {
	db *gorm.DB
	// errorAsFail 为真时ERROR结果按通过率0计入维度平均
	// 默认关闭: ERROR结果静默退出评分，这是沿用的既有策略，见DESIGN.md
	errorAsFail bool
}

// NewScoringService 创建评分引擎
func NewScoringService(db *gorm.DB, errorAsFail bool) *ScoringService {
	return &ScoringService{db: db, errorAsFail: errorAsFail}
}

// ScoreRun 聚合一次运行的检查结果，每张表upsert一行评分
func (s *ScoringService) ScoreRun(runID string) ([]models.TableScore, error) {
	var results []models.CheckResult
	if err := s.db.Where("run_id = ?", runID).Find(&results).Error; err != nil {
		return nil, fmt.Errorf("查询检查结果失败: %w", err)
	}

	type tableKey struct{ schema, table string }
	grouped := make(map[tableKey][]models.CheckResult)
	order := make([]tableKey, 0)
	for _, result := range results {
		key := tableKey{result.TargetSchema, result.TargetTable}
		if _, seen := grouped[key]; !seen {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], result)
	}

	scores := make([]models.TableScore, 0, len(grouped))
	for _, key := range order {
		tableResults := grouped[key]
		score := s.scoreTable(runID, key.schema, key.table, tableResults)

		// 同一(schema, table, run_date)重算覆盖既有行，不累积重复
		err := s.db.Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "target_schema"}, {Name: "target_table"}, {Name: "run_date"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"run_id", "completeness_score", "uniqueness_score",
				"validity_score", "consistency_score", "overall_score",
				"grade", "total_rules", "passed_rules", "updated_at",
			}),
		}).Create(&score).Error
		if err != nil {
			return nil, fmt.Errorf("表评分写入失败(%s.%s): %w", key.schema, key.table, err)
		}
		scores = append(scores, score)
	}
	return scores, nil
}

// scoreTable 计算单表评分
func (s *ScoringService) scoreTable(runID, schema, table string, results []models.CheckResult) models.TableScore {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	totalRules, passedRules := 0, 0
	runDate := time.Now().Truncate(24 * time.Hour)

	for _, result := range results {
		totalRules++
		runDate = result.RunDate
		if result.Status == StatusPass {
			passedRules++
		}
		if result.Status == StatusError {
			if !s.errorAsFail {
				continue
			}
			counts[result.Dimension]++
			continue // 视为通过率0，只进分母
		}
		sums[result.Dimension] += result.PassRate
		counts[result.Dimension]++
	}

	score := models.TableScore{
		RunID:             runID,
		TargetSchema:      schema,
		TargetTable:       table,
		RunDate:           runDate,
		CompletenessScore: dimensionScore(sums, counts, DimensionCompleteness),
		UniquenessScore:   dimensionScore(sums, counts, DimensionUniqueness),
		ValidityScore:     dimensionScore(sums, counts, DimensionValidity),
		ConsistencyScore:  dimensionScore(sums, counts, DimensionConsistency),
		TotalRules:        totalRules,
		PassedRules:       passedRules,
	}
	score.OverallScore = round2(score.CompletenessScore + score.UniquenessScore +
		score.ValidityScore + score.ConsistencyScore)
	score.Grade = gradeOf(score.OverallScore)
	return score
}

// dimensionScore 维度子分: 通过率均值除以4映射到0-25
// 没有任何规则参与的维度记满分，即"未配置规则视为干净"，这是显式的策略选择
func dimensionScore(sums map[string]float64, counts map[string]int, dimension string) float64 {
	count := counts[dimension]
	if count == 0 {
		return 25.0
	}
	return round2(sums[dimension] / float64(count) / 4.0)
}

// gradeOf 按固定分界映射等级
func gradeOf(overall float64) string {
	switch {
	case overall >= gradeABoundary:
		return "A"
	case overall >= gradeBBoundary:
		return "B"
	case overall >= gradeCBoundary:
		return "C"
	case overall >= gradeDBoundary:
		return "D"
	default:
		return "F"
	}
}
