package postgres

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/lk2023060901/pgpool/pkg/database/pool"
)

// Tx 事务
// 事务期间独占一条连接，Commit 或 Rollback 后连接归还连接池
type Tx interface {
	// Execute 执行语句并返回全部结果行
	Execute(ctx context.Context, stmt Statement) (*Result, error)
	// QueryOne 查询单条记录到 dest（结构体指针）
	QueryOne(ctx context.Context, dest any, sql string, args ...any) error
	// QueryAll 查询多条记录到 dest（结构体切片指针）
	QueryAll(ctx context.Context, dest any, sql string, args ...any) error
	// Exec 执行写操作
	Exec(ctx context.Context, sql string, args ...any) (int64, error)
	// Exists 检查记录是否存在
	Exists(ctx context.Context, sql string, args ...any) (bool, error)
	// ExecBatch 批量执行
	ExecBatch(ctx context.Context, sql string, argsList [][]any) (int64, error)
	// Commit 提交事务
	Commit(ctx context.Context) error
	// Rollback 回滚事务
	Rollback(ctx context.Context) error
}

// TxIsolationLevel 事务隔离级别
type TxIsolationLevel string

const (
	TxIsolationLevelDefault         TxIsolationLevel = ""
	TxIsolationLevelReadUncommitted TxIsolationLevel = "read uncommitted"
	TxIsolationLevelReadCommitted   TxIsolationLevel = "read committed"
	TxIsolationLevelRepeatableRead  TxIsolationLevel = "repeatable read"
	TxIsolationLevelSerializable    TxIsolationLevel = "serializable"
)

// TxAccessMode 事务访问模式
type TxAccessMode string

const (
	TxAccessModeDefault   TxAccessMode = ""
	TxAccessModeReadWrite TxAccessMode = "read write"
	TxAccessModeReadOnly  TxAccessMode = "read only"
)

// TxOptions 事务选项
type TxOptions struct {
	IsoLevel   TxIsolationLevel
	AccessMode TxAccessMode
}

func (o TxOptions) toPgx() pgx.TxOptions {
	return pgx.TxOptions{
		IsoLevel:   pgx.TxIsoLevel(o.IsoLevel),
		AccessMode: pgx.TxAccessMode(o.AccessMode),
	}
}

type txWrapper struct {
	e    *Executor
	conn *pool.Conn
	tx   pgx.Tx

	mu   sync.Mutex
	done bool
}

// BeginTx 开启事务
func (e *Executor) BeginTx(ctx context.Context) (Tx, error) {
	return e.BeginTxWithOptions(ctx, TxOptions{})
}

// BeginTxWithOptions 使用选项开启事务
func (e *Executor) BeginTxWithOptions(ctx context.Context, opts TxOptions) (Tx, error) {
	conn, err := e.pool.Acquire(ctx, 0)
	if err != nil {
		return nil, err
	}

	tx, err := conn.BeginTx(ctx, opts.toPgx())
	if err != nil {
		conn.Release()
		return nil, fmt.Errorf("postgres: begin transaction: %w", err)
	}
	return &txWrapper{e: e, conn: conn, tx: tx}, nil
}

// WithTx 在事务中执行 fn：返回 nil 时提交，返回错误或 panic 时回滚
func (e *Executor) WithTx(ctx context.Context, fn func(Tx) error) error {
	return e.WithTxOptions(ctx, TxOptions{}, fn)
}

// WithTxOptions 使用选项在事务中执行 fn
func (e *Executor) WithTxOptions(ctx context.Context, opts TxOptions, fn func(Tx) error) error {
	tx, err := e.BeginTxWithOptions(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("transaction error: %w, rollback error: %v", err, rbErr)
		}
		return err
	}

	return tx.Commit(ctx)
}

func (t *txWrapper) Execute(ctx context.Context, stmt Statement) (*Result, error) {
	rows, err := t.tx.Query(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, t.e.failed(ctx, t.conn, stmt.SQL, err)
	}
	res, err := collectResult(rows)
	if err != nil {
		return nil, t.e.failed(ctx, t.conn, stmt.SQL, err)
	}
	return res, nil
}

func (t *txWrapper) QueryOne(ctx context.Context, dest any, sql string, args ...any) error {
	return t.query(ctx, dest, sql, args)
}

func (t *txWrapper) QueryAll(ctx context.Context, dest any, sql string, args ...any) error {
	return t.query(ctx, dest, sql, args)
}

func (t *txWrapper) query(ctx context.Context, dest any, sql string, args []any) error {
	rows, err := t.tx.Query(ctx, sql, args...)
	if err != nil {
		return t.e.failed(ctx, t.conn, sql, err)
	}
	if err := scanInto(rows, dest); err != nil {
		if err == ErrNoRows {
			return err
		}
		return t.e.failed(ctx, t.conn, sql, err)
	}
	return nil
}

func (t *txWrapper) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	tag, err := t.tx.Exec(ctx, sql, args...)
	if err != nil {
		return 0, t.e.failed(ctx, t.conn, sql, err)
	}
	return tag.RowsAffected(), nil
}

func (t *txWrapper) Exists(ctx context.Context, sql string, args ...any) (bool, error) {
	var exists bool
	if err := t.tx.QueryRow(ctx, sql, args...).Scan(&exists); err != nil {
		return false, t.e.failed(ctx, t.conn, sql, err)
	}
	return exists, nil
}

func (t *txWrapper) ExecBatch(ctx context.Context, sql string, argsList [][]any) (int64, error) {
	if len(argsList) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, args := range argsList {
		batch.Queue(sql, args...)
	}

	var total int64
	err := t.e.runBatch(ctx, t.conn, t.tx.SendBatch(ctx, batch), sql, len(argsList), &total)
	return total, err
}

func (t *txWrapper) Commit(ctx context.Context) error {
	return t.finish(ctx, t.tx.Commit, "commit")
}

func (t *txWrapper) Rollback(ctx context.Context) error {
	return t.finish(ctx, t.tx.Rollback, "rollback")
}

// finish 结束事务并归还连接，只执行一次
func (t *txWrapper) finish(ctx context.Context, end func(context.Context) error, op string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return ErrTxDone
	}
	t.done = true
	defer t.conn.Release()

	if err := t.conn.Inspect(end(ctx)); err != nil {
		return fmt.Errorf("postgres: %s transaction: %w", op, err)
	}
	return nil
}
