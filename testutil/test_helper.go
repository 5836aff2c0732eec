/*
 * @module testutil/test_helper
 * @description 测试工具和辅助函数
 * @architecture 测试基础设施 - 提供测试通用工具和数据工厂
 * @documentReference .specify/memory/test_plan.md
 * @stateFlow 测试环境初始化 -> 测试数据创建 -> 测试执行 -> 清理资源
 * @rules 提供可重用的测试工具，确保测试环境的一致性
 * @dependencies gorm, sqlite, testify, time
 * @refs service/models
 */

package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"dataquality-service/service/models"
)

// TestDB 测试数据库配置
type TestDB struct {
	DB *gorm.DB
}

// NewTestDB 创建测试数据库
func NewTestDB() *TestDB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		panic(fmt.Sprintf("failed to connect test database: %v", err))
	}

	// 自动迁移所有模型
	err = db.AutoMigrate(
		&models.QualityRule{},
		&models.AuditRun{},
		&models.CheckResult{},
		&models.QualityException{},
		&models.TableScore{},
		&models.AuditSchedule{},
	)
	if err != nil {
		panic(fmt.Sprintf("failed to migrate test database: %v", err))
	}

	return &TestDB{DB: db}
}

// CleanDB 清理数据库
func (tdb *TestDB) CleanDB() {
	// 清空所有表的数据
	tables := []string{
		"quality_rules",
		"audit_runs",
		"check_results",
		"quality_exceptions",
		"table_scores",
		"audit_schedules",
	}

	for _, table := range tables {
		tdb.DB.Exec(fmt.Sprintf("DELETE FROM %s", table))
	}
}

// Close 关闭数据库连接
func (tdb *TestDB) Close() {
	if db, err := tdb.DB.DB(); err == nil {
		db.Close()
	}
}

// TestDataFactory 测试数据工厂
type TestDataFactory struct {
	DB *gorm.DB
}

// NewTestDataFactory 创建测试数据工厂
func NewTestDataFactory(db *gorm.DB) *TestDataFactory {
	return &TestDataFactory{DB: db}
}

// QualityRuleOption 质量规则选项函数类型
type QualityRuleOption func(*models.QualityRule)

// CreateQualityRule 创建测试质量规则
func (f *TestDataFactory) CreateQualityRule(opts ...QualityRuleOption) *models.QualityRule {
	rule := &models.QualityRule{
		ID:           generateID("qr"),
		Name:         "测试质量规则",
		TargetSchema: "main",
		TargetTable:  "users",
		TargetColumn: "email",
		RuleType:     "NULL_CHECK",
		Dimension:    "completeness",
		Params:       models.JSONB{},
		ThresholdPct: 95,
		WarningPct:   90,
		Severity:     "MEDIUM",
		IsActive:     true,
		CreatedBy:    "test",
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	// 应用选项
	for _, opt := range opts {
		opt(rule)
	}

	err := f.DB.Create(rule).Error
	if err != nil {
		panic(fmt.Sprintf("failed to create test quality rule: %v", err))
	}

	return rule
}

// AuditRunOption 审计运行选项函数类型
type AuditRunOption func(*models.AuditRun)

// CreateAuditRun 创建测试审计运行记录
func (f *TestDataFactory) CreateAuditRun(opts ...AuditRunOption) *models.AuditRun {
	run := &models.AuditRun{
		ID:           generateID("run"),
		TargetSchema: "main",
		TargetTable:  "users",
		Status:       "initiated",
		StartTime:    time.Now(),
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	// 应用选项
	for _, opt := range opts {
		opt(run)
	}

	err := f.DB.Create(run).Error
	if err != nil {
		panic(fmt.Sprintf("failed to create test audit run: %v", err))
	}

	return run
}

// CheckResultOption 检查结果选项函数类型
type CheckResultOption func(*models.CheckResult)

// CreateCheckResult 创建测试检查结果
func (f *TestDataFactory) CreateCheckResult(runID, ruleID string, opts ...CheckResultOption) *models.CheckResult {
	result := &models.CheckResult{
		ID:           generateID("cr"),
		RunID:        runID,
		RuleID:       ruleID,
		TargetSchema: "main",
		TargetTable:  "users",
		TargetColumn: "email",
		RuleType:     "NULL_CHECK",
		Dimension:    "completeness",
		Total:        100,
		Passed:       100,
		Failed:       0,
		PassRate:     100,
		Status:       "PASS",
		RunDate:      truncateToDay(time.Now()),
		CreatedAt:    time.Now(),
	}

	// 应用选项
	for _, opt := range opts {
		opt(result)
	}

	err := f.DB.Create(result).Error
	if err != nil {
		panic(fmt.Sprintf("failed to create test check result: %v", err))
	}

	return result
}

// 辅助函数
func generateID(prefix string) string {
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixNano(), generateSuffix())
}

func generateSuffix() string {
	return fmt.Sprintf("%d", time.Now().UnixNano()%100000)
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// HTTPTestHelper HTTP测试辅助工具
type HTTPTestHelper struct{}

// NewHTTPTestHelper 创建HTTP测试辅助工具
func NewHTTPTestHelper() *HTTPTestHelper {
	return &HTTPTestHelper{}
}

// CreateJSONRequest 创建JSON请求
func (h *HTTPTestHelper) CreateJSONRequest(method, url string, body interface{}) (*http.Request, error) {
	var reqBody io.Reader

	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

// AssertJSONResponse 断言JSON响应
func (h *HTTPTestHelper) AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedBody interface{}) {
	assert.Equal(t, expectedStatus, w.Code)

	if expectedBody != nil {
		var actualBody interface{}
		err := json.Unmarshal(w.Body.Bytes(), &actualBody)
		assert.NoError(t, err)

		expectedJSON, _ := json.Marshal(expectedBody)
		actualJSON, _ := json.Marshal(actualBody)

		assert.JSONEq(t, string(expectedJSON), string(actualJSON))
	}
}
