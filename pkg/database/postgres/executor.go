package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lk2023060901/pgpool/pkg/database/pool"
	"github.com/lk2023060901/pgpool/pkg/logger"
)

// Executor 在连接池上执行语句
//
// 每次调用借出一条连接，执行结束后无论成功、失败、取消还是 panic 都会归还。
type Executor struct {
	pool         *pool.Pool
	queryTimeout time.Duration
	logger       logger.Logger
}

// ExecutorOption 执行器选项
type ExecutorOption func(*Executor)

// WithQueryTimeout 单条语句的超时时间，0 表示只受调用方 ctx 约束
func WithQueryTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.queryTimeout = d
	}
}

// WithExecutorLogger 设置日志器
func WithExecutorLogger(l logger.Logger) ExecutorOption {
	return func(e *Executor) {
		if l != nil {
			e.logger = l.Named("executor")
		}
	}
}

// NewExecutor 创建执行器
func NewExecutor(p *pool.Pool, opts ...ExecutorOption) *Executor {
	e := &Executor{
		pool:   p,
		logger: logger.NewNoop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Pool 底层连接池
func (e *Executor) Pool() *pool.Pool {
	return e.pool
}

// applyQueryTimeout 应用查询超时到 context
func (e *Executor) applyQueryTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.queryTimeout > 0 {
		return context.WithTimeout(ctx, e.queryTimeout)
	}
	return ctx, func() {}
}

// withConn 借出连接执行 fn，保证连接被归还
// fn 中发生 panic 时连接状态未知，标记损坏后归还并继续 panic
func (e *Executor) withConn(ctx context.Context, fn func(*pool.Conn) error) (err error) {
	conn, err := e.pool.Acquire(ctx, 0)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			conn.MarkBroken()
			conn.Release()
			panic(r)
		}
		conn.Release()
	}()

	return fn(conn)
}

// Execute 执行一条语句并返回全部结果行
//
// 获取连接失败时原样返回 pool.ErrPoolExhausted / pool.ErrPoolClosed 等错误；
// 语句失败返回 *StatementError，可用 errors.Is(err, ErrStatementFailed) 判断。
func (e *Executor) Execute(ctx context.Context, stmt Statement) (*Result, error) {
	var res *Result
	err := e.withConn(ctx, func(conn *pool.Conn) error {
		ctx, cancel := e.applyQueryTimeout(ctx)
		defer cancel()

		rows, err := conn.Query(ctx, stmt.SQL, stmt.Args...)
		if err != nil {
			return e.failed(ctx, conn, stmt.SQL, err)
		}

		res, err = collectResult(rows)
		if err != nil {
			return e.failed(ctx, conn, stmt.SQL, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Exec 执行写操作（INSERT/UPDATE/DELETE），返回影响行数
func (e *Executor) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	var affected int64
	err := e.withConn(ctx, func(conn *pool.Conn) error {
		ctx, cancel := e.applyQueryTimeout(ctx)
		defer cancel()

		tag, err := conn.Exec(ctx, sql, args...)
		if err != nil {
			return e.failed(ctx, conn, sql, err)
		}
		affected = tag.RowsAffected()
		return nil
	})
	return affected, err
}

// Exists 执行返回单个布尔值的查询，通常为 SELECT EXISTS(...)
func (e *Executor) Exists(ctx context.Context, sql string, args ...any) (bool, error) {
	var exists bool
	err := e.withConn(ctx, func(conn *pool.Conn) error {
		ctx, cancel := e.applyQueryTimeout(ctx)
		defer cancel()

		if err := conn.QueryRow(ctx, sql, args...).Scan(&exists); err != nil {
			return e.failed(ctx, conn, sql, err)
		}
		return nil
	})
	return exists, err
}

// ExecBatch 以 pipeline 方式对每组参数执行同一条语句，返回影响行数之和
// 出错时返回出错前已累计的影响行数
func (e *Executor) ExecBatch(ctx context.Context, sql string, argsList [][]any) (int64, error) {
	if len(argsList) == 0 {
		return 0, nil
	}

	var total int64
	err := e.withConn(ctx, func(conn *pool.Conn) error {
		ctx, cancel := e.applyQueryTimeout(ctx)
		defer cancel()

		batch := &pgx.Batch{}
		for _, args := range argsList {
			batch.Queue(sql, args...)
		}
		return e.runBatch(ctx, conn, conn.SendBatch(ctx, batch), sql, len(argsList), &total)
	})
	return total, err
}

func (e *Executor) runBatch(ctx context.Context, conn *pool.Conn, results pgx.BatchResults, sql string, n int, total *int64) error {
	for i := 0; i < n; i++ {
		tag, err := results.Exec()
		if err != nil {
			_ = results.Close()
			return e.failed(ctx, conn, sql, fmt.Errorf("batch index %d: %w", i, err))
		}
		*total += tag.RowsAffected()
	}
	if err := results.Close(); err != nil {
		return e.failed(ctx, conn, sql, err)
	}
	return nil
}

// failed 检查驱动错误并包装为 StatementError
func (e *Executor) failed(ctx context.Context, conn *pool.Conn, sql string, err error) error {
	conn.Inspect(err)
	e.logger.DebugContext(ctx, "statement failed",
		"sql", sql,
		"conn_id", conn.ID(),
		"broken", conn.IsBroken(),
		"error", err,
	)
	return statementError(sql, err)
}

// QueryOne 查询单条记录并映射到 T，没有结果时返回 ErrNoRows
func QueryOne[T any](e *Executor, ctx context.Context, sql string, args ...any) (*T, error) {
	var item *T
	err := e.withConn(ctx, func(conn *pool.Conn) error {
		ctx, cancel := e.applyQueryTimeout(ctx)
		defer cancel()

		rows, err := conn.Query(ctx, sql, args...)
		if err != nil {
			return e.failed(ctx, conn, sql, err)
		}
		item, err = scanOne[T](rows)
		if err == ErrNoRows {
			return err
		}
		if err != nil {
			return e.failed(ctx, conn, sql, err)
		}
		return nil
	})
	return item, err
}

// QueryAll 查询多条记录并映射到 T
func QueryAll[T any](e *Executor, ctx context.Context, sql string, args ...any) ([]*T, error) {
	var items []*T
	err := e.withConn(ctx, func(conn *pool.Conn) error {
		ctx, cancel := e.applyQueryTimeout(ctx)
		defer cancel()

		rows, err := conn.Query(ctx, sql, args...)
		if err != nil {
			return e.failed(ctx, conn, sql, err)
		}
		items, err = scanAll[T](rows)
		if err != nil {
			return e.failed(ctx, conn, sql, err)
		}
		return nil
	})
	return items, err
}
