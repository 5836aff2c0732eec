/*
 * @module service/audit/exception_service_test
 * @description 异常处置服务的单元测试，覆盖过滤分页、解决与重开、幂等覆盖
 * @architecture 测试层
 * @documentReference .specify/memory/test_plan.md
 * @stateFlow 造异常记录 -> 查询/解决/重开 -> 验证状态字段
 * @rules 重复解决后写覆盖; 重开清空处置人与处置时间
 * @dependencies testing, stretchr/testify, testutil
 */

package audit

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"dataquality-service/service/models"
	"dataquality-service/testutil"
)

func newExceptionTest(t *testing.T) (*testutil.TestDB, *ExceptionService) {
	t.Helper()
	tdb := testutil.NewTestDB()
	t.Cleanup(tdb.Close)
	return tdb, NewExceptionService(tdb.DB)
}

func seedException(t *testing.T, db *gorm.DB, resultID, ruleID, value string) *models.QualityException {
	t.Helper()
	exc := &models.QualityException{
		ResultID:    resultID,
		RuleID:      ruleID,
		ColumnValue: value,
		Reason:      "不符合邮箱格式",
	}
	require.NoError(t, db.Create(exc).Error)
	return exc
}

// TestExceptionList 按结果/规则/解决状态过滤
func TestExceptionList(t *testing.T) {
	tdb, svc := newExceptionTest(t)

	seedException(t, tdb.DB, "res-1", "rule-a", "bad1")
	seedException(t, tdb.DB, "res-1", "rule-a", "bad2")
	resolved := seedException(t, tdb.DB, "res-2", "rule-b", "bad3")
	_, err := svc.Resolve(resolved.ID, "张三", "手工修复")
	require.NoError(t, err)

	items, total, err := svc.List(ExceptionFilter{ResultID: "res-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, items, 2)

	items, total, err = svc.List(ExceptionFilter{RuleID: "rule-b"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, items, 1)
	assert.Equal(t, "bad3", items[0].ColumnValue)

	unresolvedOnly := false
	items, total, err = svc.List(ExceptionFilter{IsResolved: &unresolvedOnly})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, items, 2)
}

// TestExceptionListPagination 分页尺寸越界时回落默认值
func TestExceptionListPagination(t *testing.T) {
	tdb, svc := newExceptionTest(t)
	for i := 0; i < 5; i++ {
		seedException(t, tdb.DB, "res-1", "rule-a", fmt.Sprintf("bad%d", i))
	}

	items, total, err := svc.List(ExceptionFilter{Page: 1, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, items, 2)

	items, _, err = svc.List(ExceptionFilter{Page: 3, Size: 2})
	require.NoError(t, err)
	assert.Len(t, items, 1)

	// size=0 回落为默认50
	items, _, err = svc.List(ExceptionFilter{})
	require.NoError(t, err)
	assert.Len(t, items, 5)
}

// TestExceptionResolve 解决记录处置人/时间，重复解决后写覆盖
func TestExceptionResolve(t *testing.T) {
	tdb, svc := newExceptionTest(t)
	exc := seedException(t, tdb.DB, "res-1", "rule-a", "bad")

	_, err := svc.Resolve(exc.ID, "张三", "第一次处理")
	require.NoError(t, err)

	got, err := svc.GetByID(exc.ID)
	require.NoError(t, err)
	assert.True(t, got.IsResolved)
	assert.Equal(t, "张三", got.ResolvedBy)
	require.NotNil(t, got.ResolvedAt)
	assert.Equal(t, "第一次处理", got.Notes)

	// 后写覆盖
	_, err = svc.Resolve(exc.ID, "李四", "复核后重新归档")
	require.NoError(t, err)

	got, err = svc.GetByID(exc.ID)
	require.NoError(t, err)
	assert.Equal(t, "李四", got.ResolvedBy)
	assert.Equal(t, "复核后重新归档", got.Notes)
}

// TestExceptionReopen 重开清空处置字段
func TestExceptionReopen(t *testing.T) {
	tdb, svc := newExceptionTest(t)
	exc := seedException(t, tdb.DB, "res-1", "rule-a", "bad")

	_, err := svc.Resolve(exc.ID, "张三", "")
	require.NoError(t, err)
	_, err = svc.Reopen(exc.ID)
	require.NoError(t, err)

	got, err := svc.GetByID(exc.ID)
	require.NoError(t, err)
	assert.False(t, got.IsResolved)
	assert.Empty(t, got.ResolvedBy)
	assert.Nil(t, got.ResolvedAt)
}

// TestExceptionNotFound 不存在的异常ID返回记录未找到
func TestExceptionNotFound(t *testing.T) {
	_, svc := newExceptionTest(t)

	_, err := svc.Resolve("missing-id", "张三", "")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	_, err = svc.Reopen("missing-id")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

// TestCountUnresolved 未解决计数只看指定规则
func TestCountUnresolved(t *testing.T) {
	tdb, svc := newExceptionTest(t)

	seedException(t, tdb.DB, "res-1", "rule-a", "bad1")
	seedException(t, tdb.DB, "res-1", "rule-a", "bad2")
	resolved := seedException(t, tdb.DB, "res-1", "rule-a", "bad3")
	seedException(t, tdb.DB, "res-2", "rule-b", "bad4")
	_, err := svc.Resolve(resolved.ID, "张三", "")
	require.NoError(t, err)

	count, err := svc.CountUnresolved("rule-a")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}
