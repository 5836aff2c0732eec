/*
 * @module service/audit/params
 * @description 规则参数的类型化视图，JSONB参数在注册和派发时被解析为强类型值
 * @architecture 服务层 - 参数契约
 * @documentReference ai_docs/quality_engine_req.md
 * @stateFlow JSONB参数 -> cast类型转换 -> 类型化视图 -> 评估器
 * @rules 每个规则类型有固定的必选参数集，缺失或类型不符在进入行级评估前报 InvalidRule
 * @dependencies github.com/spf13/cast, regexp, time
 * @refs registry.go, dispatcher.go, validity.go, consistency.go
 */

package audit

import (
	"fmt"
	"regexp"
	"time"

	"github.com/spf13/cast"

	"dataquality-service/service/models"
)

// 规则参数键名
const (
	paramMinValue        = "min_value"
	paramMaxValue        = "max_value"
	paramValueKind       = "value_kind" // number(默认) 或 date
	paramAllowedValues   = "allowed_values"
	paramRegexPattern    = "regex_pattern"
	paramReferenceSchema = "reference_schema"
	paramReferenceTable  = "reference_table"
	paramReferenceColumn = "reference_column"
	paramRelatedColumn   = "related_column"
	paramComparisonOp    = "comparison_operator"
	paramMinDigits       = "min_digits"
	paramMaxDigits       = "max_digits"
)

const dateLayout = "2006-01-02"

// ruleView 一条规则的类型化视图，参数已按规则类型解析完毕
type ruleView struct {
	*models.QualityRule

	// RANGE_CHECK: 按 value_kind 解析后的边界，作为绑定参数传入查询
	MinArg interface{}
	MaxArg interface{}

	// DOMAIN_CHECK
	AllowedValues []string

	// REGEX_MATCH / FORMAT_*: 全匹配（锚定）正则
	Regex *regexp.Regexp

	// FK_CHECK / CROSS_TABLE
	ReferenceSchema string
	ReferenceTable  string
	ReferenceColumn string

	// CROSS_FIELD
	RelatedColumn      string
	ComparisonOperator string

	// FORMAT_PHONE: 有效位数范围
	MinDigits int
	MaxDigits int
}

// newRuleView 解析规则参数，参数缺失或无法转换时返回 InvalidRuleError
func newRuleView(rule *models.QualityRule) (*ruleView, error) {
	v := &ruleView{QualityRule: rule}
	params := rule.Params

	switch rule.RuleType {
	case RuleTypeRangeCheck:
		kind := "number"
		if raw, ok := params[paramValueKind]; ok {
			kind = cast.ToString(raw)
		}
		minRaw, hasMin := params[paramMinValue]
		maxRaw, hasMax := params[paramMaxValue]
		if !hasMin || !hasMax {
			return nil, &InvalidRuleError{Reason: "RANGE_CHECK 需要同时配置 min_value 和 max_value"}
		}
		switch kind {
		case "number":
			minVal, err := cast.ToFloat64E(minRaw)
			if err != nil {
				return nil, &InvalidRuleError{Reason: fmt.Sprintf("min_value 不是数值: %v", minRaw)}
			}
			maxVal, err := cast.ToFloat64E(maxRaw)
			if err != nil {
				return nil, &InvalidRuleError{Reason: fmt.Sprintf("max_value 不是数值: %v", maxRaw)}
			}
			if minVal > maxVal {
				return nil, &InvalidRuleError{Reason: "min_value 不能大于 max_value"}
			}
			v.MinArg, v.MaxArg = minVal, maxVal
		case "date":
			minVal, err := time.Parse(dateLayout, cast.ToString(minRaw))
			if err != nil {
				return nil, &InvalidRuleError{Reason: fmt.Sprintf("min_value 不是日期(YYYY-MM-DD): %v", minRaw)}
			}
			maxVal, err := time.Parse(dateLayout, cast.ToString(maxRaw))
			if err != nil {
				return nil, &InvalidRuleError{Reason: fmt.Sprintf("max_value 不是日期(YYYY-MM-DD): %v", maxRaw)}
			}
			if minVal.After(maxVal) {
				return nil, &InvalidRuleError{Reason: "min_value 不能晚于 max_value"}
			}
			v.MinArg, v.MaxArg = minVal.Format(dateLayout), maxVal.Format(dateLayout)
		default:
			return nil, &InvalidRuleError{Reason: fmt.Sprintf("不支持的 value_kind: %s", kind)}
		}

	case RuleTypeDomainCheck:
		values, err := cast.ToStringSliceE(params[paramAllowedValues])
		if err != nil || len(values) == 0 {
			return nil, &InvalidRuleError{Reason: "DOMAIN_CHECK 需要非空的 allowed_values 列表"}
		}
		v.AllowedValues = values

	case RuleTypeRegexMatch:
		pattern := cast.ToString(params[paramRegexPattern])
		if pattern == "" {
			return nil, &InvalidRuleError{Reason: "REGEX_MATCH 需要配置 regex_pattern"}
		}
		re, err := compileAnchored(pattern)
		if err != nil {
			return nil, &InvalidRuleError{Reason: fmt.Sprintf("regex_pattern 编译失败: %v", err)}
		}
		v.Regex = re

	case RuleTypeFormatEmail:
		v.Regex = emailPattern

	case RuleTypeFormatPhone:
		v.MinDigits, v.MaxDigits = 7, 15
		if raw, ok := params[paramMinDigits]; ok {
			n, err := cast.ToIntE(raw)
			if err != nil || n <= 0 {
				return nil, &InvalidRuleError{Reason: fmt.Sprintf("min_digits 不是正整数: %v", raw)}
			}
			v.MinDigits = n
		}
		if raw, ok := params[paramMaxDigits]; ok {
			n, err := cast.ToIntE(raw)
			if err != nil || n <= 0 {
				return nil, &InvalidRuleError{Reason: fmt.Sprintf("max_digits 不是正整数: %v", raw)}
			}
			v.MaxDigits = n
		}
		if v.MinDigits > v.MaxDigits {
			return nil, &InvalidRuleError{Reason: "min_digits 不能大于 max_digits"}
		}

	case RuleTypeFKCheck, RuleTypeCrossTable:
		v.ReferenceTable = cast.ToString(params[paramReferenceTable])
		v.ReferenceColumn = cast.ToString(params[paramReferenceColumn])
		if v.ReferenceTable == "" || v.ReferenceColumn == "" {
			return nil, &InvalidRuleError{Reason: fmt.Sprintf("%s 需要配置 reference_table 和 reference_column", rule.RuleType)}
		}
		v.ReferenceSchema = cast.ToString(params[paramReferenceSchema])
		if v.ReferenceSchema == "" {
			v.ReferenceSchema = rule.TargetSchema
		}

	case RuleTypeCrossField:
		v.RelatedColumn = cast.ToString(params[paramRelatedColumn])
		v.ComparisonOperator = cast.ToString(params[paramComparisonOp])
		if v.RelatedColumn == "" {
			return nil, &InvalidRuleError{Reason: "CROSS_FIELD 需要配置 related_column"}
		}
		if !validComparisonOperators[v.ComparisonOperator] {
			return nil, &InvalidRuleError{Reason: fmt.Sprintf("不支持的 comparison_operator: %q", v.ComparisonOperator)}
		}

	case RuleTypeNullCheck, RuleTypeEmptyCheck, RuleTypeRequired,
		RuleTypeDuplicate, RuleTypePKViolation:
		// 无类型特定参数

	default:
		return nil, &InvalidRuleError{Reason: fmt.Sprintf("未知的规则类型: %s", rule.RuleType)}
	}

	return v, nil
}

// compileAnchored 编译为全匹配正则，模式统一包上 \A...\z 保证整串匹配
func compileAnchored(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile(`\A(?:` + pattern + `)\z`)
}

// 宽松的邮箱形状: 本地部分@带点域名，不声称覆盖RFC 5322
var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)

// 电话号码允许的字符集: 数字和常见分隔符，可选前导+，不区分地区
var phoneCharsPattern = regexp.MustCompile(`^\+?[0-9][0-9 ()./\-]*$`)

// phoneDigits 去掉分隔符后的有效位数
func phoneDigits(value string) int {
	n := 0
	for _, c := range value {
		if c >= '0' && c <= '9' {
			n++
		}
	}
	return n
}
