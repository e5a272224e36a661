package pool

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/atomic"
)

var errFake = errors.New("fake: not supported")

// fakeConn 仅模拟 Ping 与 Close 的驱动连接
type fakeConn struct {
	id      int64
	pingErr atomic.Error
	closed  atomic.Bool
	owner   *fakeConnector
}

func (c *fakeConn) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag("SELECT 1"), nil
}

func (c *fakeConn) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errFake
}

func (c *fakeConn) QueryRow(context.Context, string, ...any) pgx.Row {
	return nil
}

func (c *fakeConn) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults {
	return nil
}

func (c *fakeConn) Begin(context.Context) (pgx.Tx, error) {
	return nil, errFake
}

func (c *fakeConn) BeginTx(context.Context, pgx.TxOptions) (pgx.Tx, error) {
	return nil, errFake
}

func (c *fakeConn) Ping(ctx context.Context) error {
	c.owner.pings.Inc()
	if d := c.owner.pingDelay.Load(); d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return c.pingErr.Load()
}

func (c *fakeConn) Close(context.Context) error {
	if c.closed.CAS(false, true) {
		c.owner.open.Add(-1)
	}
	return nil
}

func (c *fakeConn) failPing(err error) {
	c.pingErr.Store(err)
}

// fakeConnector 统计建立与同时打开的连接数
type fakeConnector struct {
	mu      sync.Mutex
	conns   []*fakeConn
	err     error
	delay   time.Duration
	dialed  atomic.Int64
	open    atomic.Int64
	maxOpen atomic.Int64

	pings     atomic.Int64
	pingDelay atomic.Duration
}

func (f *fakeConnector) Connect(ctx context.Context) (DriverConn, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}

	c := &fakeConn{id: f.dialed.Add(1), owner: f}
	f.conns = append(f.conns, c)
	open := f.open.Add(1)
	for {
		cur := f.maxOpen.Load()
		if open <= cur || f.maxOpen.CAS(cur, open) {
			break
		}
	}
	return c, nil
}

func (f *fakeConnector) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

// fakeClock 可手动推进的时钟
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func fakeRaw(c *Conn) *fakeConn {
	return c.Raw().(*fakeConn)
}
