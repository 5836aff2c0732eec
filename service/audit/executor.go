/*
 * @module service/audit/executor
 * @description 查询执行器契约与gorm实现，评估器通过固定的参数化查询模板访问被审计表
 * @architecture 服务层 - 数据访问抽象
 * @documentReference ai_docs/quality_engine_req.md
 * @stateFlow 评估器请求聚合计数 -> 执行器拼装固定模板 -> 返回标量
 * @rules 标识符只允许已通过白名单校验的名称进入模板，值一律走绑定参数
 * @dependencies gorm.io/gorm, context, strings
 * @refs completeness.go, uniqueness.go, validity.go, consistency.go, service/datasource/postgresql.go
 */

package audit

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// QueryExecutor 被审计数据源的查询执行器
// 核心不实现数据库驱动，只依赖这组聚合计数契约；失败必须返回 *ExecutionError
type QueryExecutor interface {
	// CountRows 表总行数
	CountRows(ctx context.Context, schema, table string) (int64, error)
	// CountWhere 满足谓词的行数，谓词中的标识符由调用方先校验，值走args绑定
	CountWhere(ctx context.Context, schema, table, predicate string, args ...interface{}) (int64, error)
	// CountGroupedDuplicates 非空值按分组统计的重复条数（每组超出首次出现的部分）
	CountGroupedDuplicates(ctx context.Context, schema, table, column string) (int64, error)
	// CountAntiJoin 子表非空值中在父表找不到对应值的孤儿条数
	CountAntiJoin(ctx context.Context, childSchema, childTable, childColumn, parentSchema, parentTable, parentColumn string) (int64, error)
	// SelectNonNull 取出字段的非空值（文本形态），limit<=0表示不限制
	SelectNonNull(ctx context.Context, schema, table, column string, limit int) ([]string, error)
}

// GormExecutor 基于gorm连接的执行器实现
// 元数据库与被审计表同库时使用；独立数据源走 datasource.PostgresExecutor
type GormExecutor struct {
	db *gorm.DB
}

// NewGormExecutor 创建gorm查询执行器
func NewGormExecutor(db *gorm.DB) *GormExecutor {
	return &GormExecutor{db: db}
}

// qualify 拼接schema限定的表名，标识符已由派发层校验
func qualify(schema, table string) string {
	if schema == "" {
		return table
	}
	return schema + "." + table
}

func (e *GormExecutor) scanCount(ctx context.Context, op, query string, args ...interface{}) (int64, error) {
	var count int64
	if err := e.db.WithContext(ctx).Raw(query, args...).Scan(&count).Error; err != nil {
		return 0, classifySQLError(op, err)
	}
	return count, nil
}

// CountRows 表总行数
func (e *GormExecutor) CountRows(ctx context.Context, schema, table string) (int64, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", qualify(schema, table))
	return e.scanCount(ctx, "count_rows", query)
}

// CountWhere 满足谓词的行数
func (e *GormExecutor) CountWhere(ctx context.Context, schema, table, predicate string, args ...interface{}) (int64, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", qualify(schema, table), predicate)
	return e.scanCount(ctx, "count_where", query, args...)
}

// CountGroupedDuplicates 重复条数 = 非空总数 - 去重后数量
func (e *GormExecutor) CountGroupedDuplicates(ctx context.Context, schema, table, column string) (int64, error) {
	query := fmt.Sprintf("SELECT COUNT(%s) - COUNT(DISTINCT %s) FROM %s",
		column, column, qualify(schema, table))
	return e.scanCount(ctx, "count_duplicates", query)
}

// CountAntiJoin 反连接统计孤儿值
func (e *GormExecutor) CountAntiJoin(ctx context.Context, childSchema, childTable, childColumn, parentSchema, parentTable, parentColumn string) (int64, error) {
	query := fmt.Sprintf(
		"SELECT COUNT(*) FROM %s c WHERE c.%s IS NOT NULL AND NOT EXISTS (SELECT 1 FROM %s p WHERE p.%s = c.%s)",
		qualify(childSchema, childTable), childColumn,
		qualify(parentSchema, parentTable), parentColumn, childColumn)
	return e.scanCount(ctx, "count_anti_join", query)
}

// SelectNonNull 取出字段的非空文本值
func (e *GormExecutor) SelectNonNull(ctx context.Context, schema, table, column string, limit int) ([]string, error) {
	query := fmt.Sprintf("SELECT CAST(%s AS TEXT) FROM %s WHERE %s IS NOT NULL",
		column, qualify(schema, table), column)
	if limit > 0 {
		query = fmt.Sprintf("%s LIMIT %d", query, limit)
	}

	var values []string
	if err := e.db.WithContext(ctx).Raw(query).Scan(&values).Error; err != nil {
		return nil, classifySQLError("select_non_null", err)
	}
	return values, nil
}

// classifySQLError 把底层SQL错误归类为类型化的 ExecutionError
// gorm路径只能按消息文本区分目标缺失与暂时性故障
func classifySQLError(op string, err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "no such table"),
		strings.Contains(msg, "no such column"),
		strings.Contains(msg, "does not exist"),
		strings.Contains(msg, "undefined table"),
		strings.Contains(msg, "undefined column"):
		return &ExecutionError{Kind: ErrKindTargetMissing, Op: op, Err: err}
	case strings.Contains(msg, "datatype mismatch"),
		strings.Contains(msg, "invalid input syntax"),
		strings.Contains(msg, "cannot be cast"):
		return &ExecutionError{Kind: ErrKindTypeMismatch, Op: op, Err: err}
	default:
		return &ExecutionError{Kind: ErrKindTransient, Op: op, Err: err}
	}
}
