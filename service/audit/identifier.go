/*
 * @module service/audit/identifier
 * @description 标识符安全校验，规则中的schema/表/字段名在进入查询构造路径前按白名单文法检查
 * @architecture 服务层 - 防御性校验
 * @documentReference ai_docs/quality_engine_req.md
 * @stateFlow 规则派发前校验 -> 通过后才允许拼入查询模板
 * @rules 只允许字母、数字、下划线，且以字母或下划线开头；未通过校验的名称不得出现在任何查询文本里
 * @dependencies regexp
 * @refs dispatcher.go, registry.go
 */

package audit

import "regexp"

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier 判断名称是否符合标识符文法
func ValidIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// checkIdentifiers 逐个校验名称，任何一个非法即返回 InvalidIdentifierError
// 空串跳过（可选字段未配置）
func checkIdentifiers(names ...string) error {
	for _, name := range names {
		if name == "" {
			continue
		}
		if !ValidIdentifier(name) {
			return &InvalidIdentifierError{Name: name}
		}
	}
	return nil
}

// ruleIdentifiers 收集一条规则涉及的所有标识符
func ruleIdentifiers(rule *ruleView) []string {
	names := []string{rule.TargetSchema, rule.TargetTable, rule.TargetColumn}
	if rule.ReferenceSchema != "" {
		names = append(names, rule.ReferenceSchema)
	}
	if rule.ReferenceTable != "" {
		names = append(names, rule.ReferenceTable)
	}
	if rule.ReferenceColumn != "" {
		names = append(names, rule.ReferenceColumn)
	}
	if rule.RelatedColumn != "" {
		names = append(names, rule.RelatedColumn)
	}
	return names
}
