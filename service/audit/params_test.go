/*
 * @module service/audit/params_test
 * @description 规则参数契约解析的单元测试
 * @architecture 测试层
 * @documentReference .specify/memory/test_plan.md
 * @stateFlow 构造规则 -> 解析视图 -> 验证类型化参数或错误
 * @rules 每个规则类型的必选参数缺失或类型不符都必须在解析期报错
 * @dependencies testing, stretchr/testify
 */

package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataquality-service/service/models"
)

func makeRule(ruleType string, params map[string]interface{}) *models.QualityRule {
	return &models.QualityRule{
		TargetSchema: "crm",
		TargetTable:  "customers",
		TargetColumn: "email",
		RuleType:     ruleType,
		Dimension:    DimensionOf(ruleType),
		Params:       models.JSONB(params),
	}
}

func TestNewRuleView(t *testing.T) {
	tests := []struct {
		name        string
		ruleType    string
		params      map[string]interface{}
		expectError bool
	}{
		{name: "null check without params", ruleType: RuleTypeNullCheck, params: nil},
		{name: "duplicate without params", ruleType: RuleTypeDuplicate, params: nil},
		{
			name:     "range with numeric bounds",
			ruleType: RuleTypeRangeCheck,
			params:   map[string]interface{}{"min_value": 0, "max_value": 120},
		},
		{
			name:        "range missing max",
			ruleType:    RuleTypeRangeCheck,
			params:      map[string]interface{}{"min_value": 0},
			expectError: true,
		},
		{
			name:        "range min greater than max",
			ruleType:    RuleTypeRangeCheck,
			params:      map[string]interface{}{"min_value": 10, "max_value": 1},
			expectError: true,
		},
		{
			name:        "range non numeric bound",
			ruleType:    RuleTypeRangeCheck,
			params:      map[string]interface{}{"min_value": "abc", "max_value": 10},
			expectError: true,
		},
		{
			name:     "range with date bounds",
			ruleType: RuleTypeRangeCheck,
			params: map[string]interface{}{
				"value_kind": "date", "min_value": "2020-01-01", "max_value": "2026-12-31",
			},
		},
		{
			name:        "range with bad date",
			ruleType:    RuleTypeRangeCheck,
			params:      map[string]interface{}{"value_kind": "date", "min_value": "2020/01/01", "max_value": "2026-12-31"},
			expectError: true,
		},
		{
			name:     "domain with values",
			ruleType: RuleTypeDomainCheck,
			params:   map[string]interface{}{"allowed_values": []interface{}{"a", "b"}},
		},
		{
			name:        "domain empty list",
			ruleType:    RuleTypeDomainCheck,
			params:      map[string]interface{}{"allowed_values": []interface{}{}},
			expectError: true,
		},
		{
			name:     "regex valid",
			ruleType: RuleTypeRegexMatch,
			params:   map[string]interface{}{"regex_pattern": `[0-9]+`},
		},
		{
			name:        "regex invalid pattern",
			ruleType:    RuleTypeRegexMatch,
			params:      map[string]interface{}{"regex_pattern": `([0-9`},
			expectError: true,
		},
		{
			name:        "regex missing pattern",
			ruleType:    RuleTypeRegexMatch,
			params:      nil,
			expectError: true,
		},
		{name: "email without params", ruleType: RuleTypeFormatEmail, params: nil},
		{name: "phone defaults", ruleType: RuleTypeFormatPhone, params: nil},
		{
			name:        "phone min above max",
			ruleType:    RuleTypeFormatPhone,
			params:      map[string]interface{}{"min_digits": 12, "max_digits": 8},
			expectError: true,
		},
		{
			name:     "fk with reference",
			ruleType: RuleTypeFKCheck,
			params:   map[string]interface{}{"reference_table": "departments", "reference_column": "id"},
		},
		{
			name:        "fk missing reference column",
			ruleType:    RuleTypeFKCheck,
			params:      map[string]interface{}{"reference_table": "departments"},
			expectError: true,
		},
		{
			name:     "cross field with operator",
			ruleType: RuleTypeCrossField,
			params:   map[string]interface{}{"related_column": "start_date", "comparison_operator": ">="},
		},
		{
			name:        "cross field operator outside whitelist",
			ruleType:    RuleTypeCrossField,
			params:      map[string]interface{}{"related_column": "start_date", "comparison_operator": "LIKE"},
			expectError: true,
		},
		{name: "unknown rule type", ruleType: "BOGUS", params: nil, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view, err := newRuleView(makeRule(tt.ruleType, tt.params))
			if tt.expectError {
				require.Error(t, err)
				assert.IsType(t, &InvalidRuleError{}, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, view)
		})
	}
}

// TestFKReferenceSchemaDefault 引用schema缺省时继承规则自身的schema
func TestFKReferenceSchemaDefault(t *testing.T) {
	view, err := newRuleView(makeRule(RuleTypeFKCheck, map[string]interface{}{
		"reference_table": "departments", "reference_column": "id",
	}))
	require.NoError(t, err)
	assert.Equal(t, "crm", view.ReferenceSchema)
}

// TestCompileAnchored 模式统一转为整串匹配
func TestCompileAnchored(t *testing.T) {
	re, err := compileAnchored(`[0-9]{3}`)
	require.NoError(t, err)

	assert.True(t, re.MatchString("123"))
	assert.False(t, re.MatchString("1234"))
	assert.False(t, re.MatchString("a123"))
}

// TestPhoneDigits 分隔符不计入有效位数
func TestPhoneDigits(t *testing.T) {
	assert.Equal(t, 11, phoneDigits("+86 010-6552-98"))
	assert.Equal(t, 0, phoneDigits("abc"))
}
