/*
 * @module service/datasource/postgresql
 * @description 独立PostgreSQL被审计数据源，维护连接池并实现审计查询执行器契约
 * @architecture 连接池模式 - 管理数据库连接的生命周期
 * @documentReference ai_docs/quality_engine_req.md
 * @stateFlow 初始化连接池 -> 获取连接 -> 执行聚合查询 -> 归还连接 -> 关闭连接池
 * @rules 错误按pq错误码归类，42P01/42703为目标缺失，类型转换失败为类型不匹配，其余视为暂时性故障
 * @dependencies database/sql, github.com/lib/pq
 * @refs service/audit/executor.go, service/init.go
 */

package datasource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lib/pq"

	"dataquality-service/service/audit"
)

// PostgresExecutor 独立被审计库的查询执行器
// 元数据库与被审计数据不同库时使用，通过AUDIT_SOURCE_DSN配置
type PostgresExecutor struct {
	db          *sql.DB
	connTimeout time.Duration
}

// NewPostgresExecutor 创建PostgreSQL查询执行器
func NewPostgresExecutor(dsn string) (*PostgresExecutor, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("创建数据库连接失败: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("数据库连接测试失败: %w", err)
	}

	slog.Info("被审计数据源连接成功")

	return &PostgresExecutor{
		db:          db,
		connTimeout: 30 * time.Second,
	}, nil
}

// Close 关闭连接池
func (p *PostgresExecutor) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

func qualify(schema, table string) string {
	if schema == "" {
		return table
	}
	return schema + "." + table
}

func (p *PostgresExecutor) scanCount(ctx context.Context, op, query string, args ...interface{}) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, p.connTimeout)
	defer cancel()

	var count int64
	if err := p.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, classifyPQError(op, err)
	}
	return count, nil
}

// CountRows 表总行数
func (p *PostgresExecutor) CountRows(ctx context.Context, schema, table string) (int64, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", qualify(schema, table))
	return p.scanCount(ctx, "count_rows", query)
}

// CountWhere 满足谓词的行数，值走绑定参数
// 谓词中的?占位符改写为pq要求的$N序号形式
func (p *PostgresExecutor) CountWhere(ctx context.Context, schema, table, predicate string, args ...interface{}) (int64, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", qualify(schema, table), ordinalize(predicate))
	return p.scanCount(ctx, "count_where", query, args...)
}

// ordinalize 把?占位符按出现顺序替换为$1..$N
func ordinalize(predicate string) string {
	var b strings.Builder
	n := 0
	for _, c := range predicate {
		if c == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

// CountGroupedDuplicates 重复条数 = 非空总数 - 去重后数量
func (p *PostgresExecutor) CountGroupedDuplicates(ctx context.Context, schema, table, column string) (int64, error) {
	query := fmt.Sprintf("SELECT COUNT(%s) - COUNT(DISTINCT %s) FROM %s",
		column, column, qualify(schema, table))
	return p.scanCount(ctx, "count_duplicates", query)
}

// CountAntiJoin 反连接统计孤儿值
func (p *PostgresExecutor) CountAntiJoin(ctx context.Context, childSchema, childTable, childColumn, parentSchema, parentTable, parentColumn string) (int64, error) {
	query := fmt.Sprintf(
		"SELECT COUNT(*) FROM %s c WHERE c.%s IS NOT NULL AND NOT EXISTS (SELECT 1 FROM %s p WHERE p.%s = c.%s)",
		qualify(childSchema, childTable), childColumn,
		qualify(parentSchema, parentTable), parentColumn, childColumn)
	return p.scanCount(ctx, "count_anti_join", query)
}

// SelectNonNull 取出字段的非空文本值
func (p *PostgresExecutor) SelectNonNull(ctx context.Context, schema, table, column string, limit int) ([]string, error) {
	query := fmt.Sprintf("SELECT CAST(%s AS TEXT) FROM %s WHERE %s IS NOT NULL",
		column, qualify(schema, table), column)
	if limit > 0 {
		query = fmt.Sprintf("%s LIMIT %d", query, limit)
	}

	ctx, cancel := context.WithTimeout(ctx, p.connTimeout)
	defer cancel()

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, classifyPQError("select_non_null", err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, classifyPQError("select_non_null", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyPQError("select_non_null", err)
	}
	return values, nil
}

// classifyPQError 按PostgreSQL错误码归类为类型化执行错误
func classifyPQError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "42P01", "42703", "3F000": // undefined_table, undefined_column, invalid_schema_name
			return &audit.ExecutionError{Kind: audit.ErrKindTargetMissing, Op: op, Err: err}
		case "22P02", "42804", "42883": // invalid_text_representation, datatype_mismatch, undefined_function
			return &audit.ExecutionError{Kind: audit.ErrKindTypeMismatch, Op: op, Err: err}
		}
	}
	return &audit.ExecutionError{Kind: audit.ErrKindTransient, Op: op, Err: err}
}
