package pool

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/atomic"
)

// State 连接状态
//
//	Idle -> Borrowed -> Idle            正常借还
//	Idle|Borrowed -> Broken -> Closed   驱动失败
//	Idle -> Closed                      关闭、空闲超时、超过生命周期
type State int32

const (
	StateIdle State = iota
	StateBorrowed
	StateBroken
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBorrowed:
		return "borrowed"
	case StateBroken:
		return "broken"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Conn 连接池中的一条连接
// 借出期间由调用方独占，用完必须调用 Release
type Conn struct {
	id        string
	raw       DriverConn
	pool      *Pool
	createdAt time.Time
	broken    atomic.Bool

	// 以下字段由 pool.mu 保护
	state    State
	lastUsed time.Time
}

// ID 连接标识
func (c *Conn) ID() string {
	return c.id
}

// CreatedAt 连接建立时间
func (c *Conn) CreatedAt() time.Time {
	return c.createdAt
}

// State 当前状态
func (c *Conn) State() State {
	c.pool.mu.Lock()
	defer c.pool.mu.Unlock()
	return c.state
}

// LastUsed 最近一次归还时间
func (c *Conn) LastUsed() time.Time {
	c.pool.mu.Lock()
	defer c.pool.mu.Unlock()
	return c.lastUsed
}

// Raw 底层驱动连接，仅在借出期间使用
func (c *Conn) Raw() DriverConn {
	return c.raw
}

// MarkBroken 标记连接已损坏，Release 时会被销毁而不是放回空闲队列
func (c *Conn) MarkBroken() {
	c.broken.Store(true)
}

// IsBroken 连接是否已被标记损坏
func (c *Conn) IsBroken() bool {
	return c.broken.Load()
}

// Release 归还连接，等价于 pool.Release(c)
func (c *Conn) Release() {
	c.pool.Release(c)
}

// Inspect 检查驱动返回的错误，驱动层失败时标记连接损坏；原样返回 err
func (c *Conn) Inspect(err error) error {
	if IsBrokenError(err) {
		c.MarkBroken()
	} else if err != nil {
		if closer, ok := c.raw.(interface{ IsClosed() bool }); ok && closer.IsClosed() {
			c.MarkBroken()
		}
	}
	return err
}

// Exec 执行写语句
func (c *Conn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	tag, err := c.raw.Exec(ctx, sql, args...)
	return tag, c.Inspect(err)
}

// Query 执行查询，迭代结束后应把 rows.Err() 交给 Inspect
func (c *Conn) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	rows, err := c.raw.Query(ctx, sql, args...)
	return rows, c.Inspect(err)
}

// QueryRow 查询单行，Scan 错误同样会被检查
func (c *Conn) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return &inspectedRow{row: c.raw.QueryRow(ctx, sql, args...), conn: c}
}

// SendBatch 发送批量语句
func (c *Conn) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	return c.raw.SendBatch(ctx, b)
}

// Begin 开启事务
func (c *Conn) Begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := c.raw.Begin(ctx)
	return tx, c.Inspect(err)
}

// BeginTx 使用选项开启事务
func (c *Conn) BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	tx, err := c.raw.BeginTx(ctx, opts)
	return tx, c.Inspect(err)
}

// Ping 检查连接可用性
func (c *Conn) Ping(ctx context.Context) error {
	return c.Inspect(c.raw.Ping(ctx))
}

type inspectedRow struct {
	row  pgx.Row
	conn *Conn
}

func (r *inspectedRow) Scan(dest ...any) error {
	return r.conn.Inspect(r.row.Scan(dest...))
}

// IsBrokenError 判断错误是否意味着连接已不可用
// PostgreSQL 服务端返回的普通错误（语法错误、约束冲突等）不会损坏连接；
// 网络错误、EOF、上下文取消（pgx 会在取消时关闭连接）以及 FATAL 级别错误会
func IsBrokenError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConnectionBroken) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Severity == "FATAL" || pgErr.Severity == "PANIC"
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
