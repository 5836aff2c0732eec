/*
 * @module service/audit/identifier_test
 * @description 标识符白名单文法校验的单元测试
 * @architecture 测试层
 * @documentReference .specify/memory/test_plan.md
 * @stateFlow 名称 -> 文法校验 -> 接受/拒绝
 * @rules 带引号、空格、分号等注入载荷的名称一律拒绝
 * @dependencies testing, stretchr/testify
 */

package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidIdentifier(t *testing.T) {
	valid := []string{"users", "user_accounts", "_tmp", "Table1", "a"}
	for _, name := range valid {
		assert.True(t, ValidIdentifier(name), name)
	}

	invalid := []string{
		"",
		"1users",
		"user-accounts",
		"users; DROP TABLE users",
		`users"`,
		"users table",
		"用户表",
		"users.accounts",
	}
	for _, name := range invalid {
		assert.False(t, ValidIdentifier(name), name)
	}
}

func TestCheckIdentifiers(t *testing.T) {
	// 空串跳过，可选字段未配置不算错
	assert.NoError(t, checkIdentifiers("crm", "users", ""))

	err := checkIdentifiers("crm", "users; --")
	require.Error(t, err)
	assert.IsType(t, &InvalidIdentifierError{}, err)
}
