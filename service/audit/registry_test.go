/*
 * @module service/audit/registry_test
 * @description 规则注册表的单元测试
 * @architecture 测试层
 * @documentReference .specify/memory/test_plan.md
 * @stateFlow 注册规则 -> 范围查询 -> 状态切换
 * @rules 配置错误的规则不得入库; get只返回启用规则且排序稳定
 * @dependencies testing, stretchr/testify, testutil
 */

package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"dataquality-service/testutil"
)

func newRegistryTest(t *testing.T) *RuleRegistry {
	t.Helper()
	tdb := testutil.NewTestDB()
	t.Cleanup(tdb.Close)
	return NewRuleRegistry(tdb.DB)
}

func validDraft() *RuleDraft {
	return &RuleDraft{
		Name:         "邮箱非空",
		TargetSchema: "crm",
		TargetTable:  "customers",
		TargetColumn: "email",
		RuleType:     RuleTypeNullCheck,
		ThresholdPct: 95,
		WarningPct:   90,
	}
}

func TestRegistryAdd(t *testing.T) {
	registry := newRegistryTest(t)

	ruleID, err := registry.Add(validDraft())
	require.NoError(t, err)
	require.NotEmpty(t, ruleID)

	rule, err := registry.GetByID(ruleID)
	require.NoError(t, err)
	assert.Equal(t, DimensionCompleteness, rule.Dimension)
	assert.Equal(t, "MEDIUM", rule.Severity)
	assert.True(t, rule.IsActive)
}

func TestRegistryAddRejectsInvalid(t *testing.T) {
	registry := newRegistryTest(t)

	tests := []struct {
		name   string
		mutate func(*RuleDraft)
	}{
		{"unknown rule type", func(d *RuleDraft) { d.RuleType = "BOGUS" }},
		{"missing column", func(d *RuleDraft) { d.TargetColumn = "" }},
		{"threshold above 100", func(d *RuleDraft) { d.ThresholdPct = 150 }},
		{"warning above threshold", func(d *RuleDraft) { d.WarningPct = 99 }},
		{"unknown severity", func(d *RuleDraft) { d.Severity = "URGENT" }},
		{"injection in table name", func(d *RuleDraft) { d.TargetTable = "users; DROP TABLE users" }},
		{"range missing params", func(d *RuleDraft) { d.RuleType = RuleTypeRangeCheck }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draft := validDraft()
			tt.mutate(draft)

			_, err := registry.Add(draft)
			require.Error(t, err)
			assert.IsType(t, &InvalidRuleError{}, err)
		})
	}

	// 被拒绝的规则一条都不应入库
	rules, total, err := registry.List("", "", 1, 100)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, rules)
}

func TestRegistryGetScope(t *testing.T) {
	registry := newRegistryTest(t)

	// 两张表各一条规则，外加一条停用规则和一条别的schema的规则
	d1 := validDraft()
	d1.TargetTable = "orders"
	d1.RuleType = RuleTypeDuplicate
	_, err := registry.Add(d1)
	require.NoError(t, err)

	d2 := validDraft()
	_, err = registry.Add(d2)
	require.NoError(t, err)

	inactive := false
	d3 := validDraft()
	d3.RuleType = RuleTypeEmptyCheck
	d3.IsActive = &inactive
	_, err = registry.Add(d3)
	require.NoError(t, err)

	d4 := validDraft()
	d4.TargetSchema = "hr"
	_, err = registry.Add(d4)
	require.NoError(t, err)

	// schema级范围: 停用的和别的schema的都不在内，排序按(表, 规则类型)
	rules, err := registry.Get(Scope{Schema: "crm"})
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "customers", rules[0].TargetTable)
	assert.Equal(t, "orders", rules[1].TargetTable)

	// 表级范围
	rules, err = registry.Get(Scope{Schema: "crm", Table: "orders"})
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, RuleTypeDuplicate, rules[0].RuleType)

	// 没有规则的范围返回空集
	rules, err = registry.Get(Scope{Schema: "crm", Table: "nothing"})
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestRegistrySetActive(t *testing.T) {
	registry := newRegistryTest(t)

	ruleID, err := registry.Add(validDraft())
	require.NoError(t, err)

	require.NoError(t, registry.SetActive(ruleID, false))
	rule, err := registry.GetByID(ruleID)
	require.NoError(t, err)
	assert.False(t, rule.IsActive)

	// 停用的规则不再被get返回，但仍可按ID查询
	rules, err := registry.Get(Scope{Schema: "crm"})
	require.NoError(t, err)
	assert.Empty(t, rules)

	// 幂等: 重复停用不报错
	require.NoError(t, registry.SetActive(ruleID, false))

	err = registry.SetActive("does-not-exist", true)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
