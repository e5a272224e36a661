package postgres

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/pgpool/pkg/database/pool"
)

var (
	// ErrNilConfig 配置为空
	ErrNilConfig = errors.New("postgres: config is nil")

	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = errors.New("postgres: invalid config")

	// ErrNoRows 没有查询到数据
	ErrNoRows = errors.New("postgres: no rows in result set")

	// ErrStatementFailed 语句执行失败，具体原因见 StatementError.Cause
	ErrStatementFailed = errors.New("postgres: statement failed")

	// ErrTxDone 事务已提交或回滚
	ErrTxDone = errors.New("postgres: transaction already committed or rolled back")
)

// StatementError 语句执行失败
type StatementError struct {
	SQL   string
	Cause error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("postgres: statement failed: %v (sql: %s)", e.Cause, e.SQL)
}

func (e *StatementError) Unwrap() error {
	return e.Cause
}

// Is 使 errors.Is(err, ErrStatementFailed) 成立
func (e *StatementError) Is(target error) bool {
	return target == ErrStatementFailed
}

func statementError(sql string, cause error) error {
	return &StatementError{SQL: sql, Cause: cause}
}

// Outcome 把 Executor 返回的错误归类为指标标签
//
//	ok、exhausted、closed、canceled、broken、no_rows、statement_failed、failed
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, pool.ErrPoolExhausted):
		return "exhausted"
	case errors.Is(err, pool.ErrPoolClosed):
		return "closed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, ErrNoRows):
		return "no_rows"
	case pool.IsBrokenError(err):
		return "broken"
	case errors.Is(err, ErrStatementFailed):
		return "statement_failed"
	default:
		return "failed"
	}
}
