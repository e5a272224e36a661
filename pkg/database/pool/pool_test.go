package pool

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

var _ DriverConn = (*fakeConn)(nil)

func newTestPool(t *testing.T, cfg *Config, opts ...Option) (*Pool, *fakeConnector) {
	t.Helper()

	fc := &fakeConnector{}
	if cfg.HealthCheckPeriod == 0 {
		cfg.HealthCheckPeriod = time.Hour
	}
	p, err := New(context.Background(), cfg, fc, opts...)
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = p.Shutdown(ctx)
	})
	return p, fc
}

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		cfg       *Config
		connector Connector
		wantErr   error
	}{
		{name: "nil config uses defaults", cfg: nil, connector: &fakeConnector{}},
		{name: "nil connector", cfg: &Config{}, connector: nil, wantErr: ErrNilConnector},
		{name: "min greater than max", cfg: &Config{MinConns: 5, MaxConns: 2}, connector: &fakeConnector{}, wantErr: ErrInvalidConfig},
		{name: "negative min", cfg: &Config{MinConns: -1}, connector: &fakeConnector{}, wantErr: ErrInvalidConfig},
		{name: "warm up failure", cfg: &Config{MinConns: 1}, connector: &fakeConnector{err: errors.New("refused")}, wantErr: ErrConnectionBroken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(context.Background(), tt.cfg, tt.connector)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, p)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 10, p.Config().MaxConns)
			assert.Equal(t, 30*time.Second, p.Config().AcquireTimeout)
			require.NoError(t, p.Shutdown(context.Background()))
		})
	}
}

func TestNewWarmsUpMinConns(t *testing.T) {
	p, fc := newTestPool(t, &Config{MinConns: 2, MaxConns: 4})

	s := p.Stats()
	assert.Equal(t, 2, s.TotalConns)
	assert.Equal(t, 2, s.IdleConns)
	assert.Equal(t, int64(2), fc.dialed.Load())
}

func TestAcquireReusesIdleConnection(t *testing.T) {
	p, fc := newTestPool(t, &Config{MaxConns: 2})
	ctx := context.Background()

	c1, err := p.Acquire(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, StateBorrowed, c1.State())
	c1.Release()
	assert.Equal(t, StateIdle, c1.State())

	c2, err := p.Acquire(ctx, 0)
	require.NoError(t, err)
	defer c2.Release()

	assert.Same(t, c1, c2)
	assert.Equal(t, int64(1), fc.dialed.Load())
}

func TestAcquireLIFO(t *testing.T) {
	p, _ := newTestPool(t, &Config{MaxConns: 3})
	ctx := context.Background()

	a, err := p.Acquire(ctx, 0)
	require.NoError(t, err)
	b, err := p.Acquire(ctx, 0)
	require.NoError(t, err)

	a.Release()
	b.Release()

	c, err := p.Acquire(ctx, 0)
	require.NoError(t, err)
	defer c.Release()
	assert.Same(t, b, c)
}

func TestAcquireExhausted(t *testing.T) {
	p, _ := newTestPool(t, &Config{MinConns: 1, MaxConns: 2, AcquireTimeout: time.Second})
	ctx := context.Background()

	c1, err := p.Acquire(ctx, 0)
	require.NoError(t, err)
	c2, err := p.Acquire(ctx, 0)
	require.NoError(t, err)

	start := time.Now()
	c3, err := p.Acquire(ctx, 100*time.Millisecond)
	elapsed := time.Since(start)

	assert.Nil(t, c3)
	assert.ErrorIs(t, err, ErrPoolExhausted)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, time.Second)

	s := p.Stats()
	assert.Equal(t, 2, s.TotalConns)
	assert.Equal(t, 0, s.WaitingCount)
	assert.Equal(t, int64(1), s.ExhaustedAcquireCount)

	c1.Release()
	c2.Release()
}

func TestAcquireWaiterReceivesReleasedConnection(t *testing.T) {
	p, fc := newTestPool(t, &Config{MaxConns: 1})
	ctx := context.Background()

	held, err := p.Acquire(ctx, 0)
	require.NoError(t, err)

	got := make(chan *Conn, 1)
	go func() {
		c, err := p.Acquire(ctx, 5*time.Second)
		assert.NoError(t, err)
		got <- c
	}()

	require.Eventually(t, func() bool { return p.Stats().WaitingCount == 1 }, time.Second, 5*time.Millisecond)
	held.Release()

	select {
	case c := <-got:
		assert.Same(t, held, c)
		c.Release()
	case <-time.After(2 * time.Second):
		t.Fatal("waiter was not woken by release")
	}
	assert.Equal(t, int64(1), fc.dialed.Load())
}

func TestAcquireWaitersFIFO(t *testing.T) {
	p, _ := newTestPool(t, &Config{MaxConns: 1})
	ctx := context.Background()

	held, err := p.Acquire(ctx, 0)
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		order []int
		wg    sync.WaitGroup
	)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := p.Acquire(ctx, 5*time.Second)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			c.Release()
		}(i)
		require.Eventually(t, func() bool { return p.Stats().WaitingCount == i+1 }, time.Second, 5*time.Millisecond)
	}

	held.Release()
	wg.Wait()
	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestAcquireNeverExceedsMax(t *testing.T) {
	const maxConns = 3
	p, fc := newTestPool(t, &Config{MaxConns: maxConns, AcquireTimeout: 5 * time.Second})
	fc.delay = time.Millisecond

	var (
		inUse   atomic.Int64
		maxSeen atomic.Int64
		wg      sync.WaitGroup
	)
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 30; i++ {
				c, err := p.Acquire(context.Background(), 0)
				if !assert.NoError(t, err) {
					return
				}
				n := inUse.Add(1)
				for {
					cur := maxSeen.Load()
					if n <= cur || maxSeen.CAS(cur, n) {
						break
					}
				}
				time.Sleep(100 * time.Microsecond)
				inUse.Add(-1)
				if i%7 == 0 {
					c.MarkBroken()
				}
				c.Release()
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, maxSeen.Load(), int64(maxConns))
	assert.LessOrEqual(t, fc.maxOpen.Load(), int64(maxConns))
	assert.LessOrEqual(t, p.Stats().TotalConns, maxConns)
}

func TestAcquireContextCanceled(t *testing.T) {
	p, _ := newTestPool(t, &Config{MaxConns: 1})

	held, err := p.Acquire(context.Background(), 0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := p.Acquire(ctx, 5*time.Second)
		errCh <- err
	}()

	require.Eventually(t, func() bool { return p.Stats().WaitingCount == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-errCh, context.Canceled)
	assert.Equal(t, 0, p.Stats().WaitingCount)

	// 被取消的等待者不能占用连接
	held.Release()
	c, err := p.Acquire(context.Background(), 100*time.Millisecond)
	require.NoError(t, err)
	assert.Same(t, held, c)
	c.Release()
}

func TestAcquireDialFailure(t *testing.T) {
	p, fc := newTestPool(t, &Config{MaxConns: 1})
	fc.setErr(errors.New("connection refused"))

	c, err := p.Acquire(context.Background(), time.Second)
	assert.Nil(t, c)
	assert.ErrorIs(t, err, ErrConnectionBroken)
	assert.Equal(t, 0, p.Stats().TotalConns)

	// 名额已归还，恢复后可以正常获取
	fc.setErr(nil)
	c, err = p.Acquire(context.Background(), time.Second)
	require.NoError(t, err)
	c.Release()
}

func TestReleaseBrokenConnection(t *testing.T) {
	p, fc := newTestPool(t, &Config{MaxConns: 1})
	ctx := context.Background()

	c1, err := p.Acquire(ctx, 0)
	require.NoError(t, err)
	c1.MarkBroken()
	c1.Release()

	assert.True(t, fakeRaw(c1).closed.Load())
	assert.Equal(t, StateClosed, c1.State())

	c2, err := p.Acquire(ctx, 0)
	require.NoError(t, err)
	defer c2.Release()

	assert.NotSame(t, c1, c2)
	assert.Equal(t, int64(2), fc.dialed.Load())
	assert.Equal(t, int64(1), p.Stats().BrokenDestroyCount)
}

func TestReleaseBrokenWakesWaiter(t *testing.T) {
	p, _ := newTestPool(t, &Config{MaxConns: 1})
	ctx := context.Background()

	held, err := p.Acquire(ctx, 0)
	require.NoError(t, err)

	got := make(chan *Conn, 1)
	go func() {
		c, err := p.Acquire(ctx, 5*time.Second)
		assert.NoError(t, err)
		got <- c
	}()
	require.Eventually(t, func() bool { return p.Stats().WaitingCount == 1 }, time.Second, 5*time.Millisecond)

	held.MarkBroken()
	held.Release()

	select {
	case c := <-got:
		require.NotNil(t, c)
		assert.NotSame(t, held, c)
		c.Release()
	case <-time.After(2 * time.Second):
		t.Fatal("waiter was not woken after broken release")
	}
}

func TestReleaseBrokenReplenishesMinConns(t *testing.T) {
	p, _ := newTestPool(t, &Config{MinConns: 1, MaxConns: 2})

	c, err := p.Acquire(context.Background(), 0)
	require.NoError(t, err)
	c.MarkBroken()
	c.Release()

	require.Eventually(t, func() bool {
		s := p.Stats()
		return s.TotalConns == 1 && s.IdleConns == 1
	}, time.Second, 5*time.Millisecond)
}

func TestReleaseTwiceIgnored(t *testing.T) {
	p, _ := newTestPool(t, &Config{MaxConns: 2})

	c, err := p.Acquire(context.Background(), 0)
	require.NoError(t, err)
	c.Release()
	c.Release()

	s := p.Stats()
	assert.Equal(t, 1, s.IdleConns)
	assert.Equal(t, 1, s.TotalConns)
}

func TestReleaseExpiredLifetime(t *testing.T) {
	clock := newFakeClock()
	p, _ := newTestPool(t, &Config{MaxConns: 1, MaxConnLifetime: time.Minute}, WithClock(clock.Now))

	c, err := p.Acquire(context.Background(), 0)
	require.NoError(t, err)
	clock.Advance(2 * time.Minute)
	c.Release()

	assert.True(t, fakeRaw(c).closed.Load())
	assert.Equal(t, int64(1), p.Stats().MaxLifetimeDestroyCount)
	assert.Equal(t, 0, p.Stats().TotalConns)
}

func TestAcquireAfterShutdown(t *testing.T) {
	p, _ := newTestPool(t, &Config{MinConns: 1, MaxConns: 2})

	require.NoError(t, p.Shutdown(context.Background()))
	assert.True(t, p.Closed())

	c, err := p.Acquire(context.Background(), 0)
	assert.Nil(t, c)
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestShutdownClosesIdleAndWaitsForBorrowed(t *testing.T) {
	p, fc := newTestPool(t, &Config{MinConns: 2, MaxConns: 2})
	ctx := context.Background()

	borrowed, err := p.Acquire(ctx, 0)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- p.Shutdown(context.Background())
	}()

	require.Eventually(t, func() bool { return fc.open.Load() == 1 }, time.Second, 5*time.Millisecond)
	select {
	case <-done:
		t.Fatal("shutdown returned before borrowed connection was released")
	case <-time.After(50 * time.Millisecond):
	}

	borrowed.Release()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not return after release")
	}
	assert.Equal(t, int64(0), fc.open.Load())
	assert.Equal(t, 0, p.Stats().TotalConns)
}

func TestShutdownWakesWaiters(t *testing.T) {
	p, _ := newTestPool(t, &Config{MaxConns: 1})

	held, err := p.Acquire(context.Background(), 0)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := p.Acquire(context.Background(), 5*time.Second)
		errCh <- err
	}()
	require.Eventually(t, func() bool { return p.Stats().WaitingCount == 1 }, time.Second, 5*time.Millisecond)

	go func() {
		_ = p.Shutdown(context.Background())
	}()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrPoolClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter was not woken by shutdown")
	}
	held.Release()
}

func TestShutdownTimeout(t *testing.T) {
	p, _ := newTestPool(t, &Config{MaxConns: 1})

	c, err := p.Acquire(context.Background(), 0)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = p.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// 超时后归还的连接仍然会被关闭
	c.Release()
	assert.True(t, fakeRaw(c).closed.Load())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestShutdownIdempotent(t *testing.T) {
	p, fc := newTestPool(t, &Config{MinConns: 1, MaxConns: 1})

	require.NoError(t, p.Shutdown(context.Background()))
	require.NoError(t, p.Shutdown(context.Background()))
	assert.Equal(t, int64(0), fc.open.Load())
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "idle"},
		{StateBorrowed, "borrowed"},
		{StateBroken, "broken"},
		{StateClosed, "closed"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.state.String())
	}
}
