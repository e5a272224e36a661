package postgres

import (
	"github.com/Masterminds/squirrel"
	"github.com/cockroachdb/errors"
)

// QueryBuilder SQL 查询构建器（基于 squirrel，使用 $n 占位符）
var QueryBuilder = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// Statement 一次执行的 SQL 与参数
type Statement struct {
	SQL  string
	Args []any
}

// NewStatement 创建语句
func NewStatement(sql string, args ...any) Statement {
	return Statement{SQL: sql, Args: args}
}

// Build 把 squirrel 构建器转换为语句
//
//	stmt, err := postgres.Build(postgres.QueryBuilder.
//		Select("id", "name").From("users").Where(squirrel.Eq{"id": 1}))
func Build(b squirrel.Sqlizer) (Statement, error) {
	sql, args, err := b.ToSql()
	if err != nil {
		return Statement{}, errors.Wrap(err, "postgres: build statement")
	}
	return Statement{SQL: sql, Args: args}, nil
}
