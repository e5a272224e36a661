package pool

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/lk2023060901/pgpool/pkg/logger"
)

// destroyReason 连接被销毁的原因
type destroyReason string

const (
	reasonBroken   destroyReason = "broken"
	reasonIdle     destroyReason = "idle_timeout"
	reasonLifetime destroyReason = "max_lifetime"
	reasonShutdown destroyReason = "shutdown"
)

// Pool 有界的 PostgreSQL 连接池
//
// 同时打开的连接数（空闲 + 借出 + 正在建立）不超过 MaxConns。
// 所有共享状态由 mu 保护；建立和关闭连接在锁外进行。
type Pool struct {
	cfg       *Config
	connector Connector
	logger    logger.Logger
	metrics   *Metrics
	now       func() time.Time

	ctx    context.Context // Shutdown 时取消，用于后台建连与维护
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	idle     []*Conn // 栈顶为最近归还的连接
	borrowed map[*Conn]struct{}
	numOpen  int        // 空闲 + 借出 + 正在建立 + 正在关闭
	waiters  *list.List // *waiter，先进先出
	closed   bool
	drained  chan struct{} // 关闭后所有连接都已释放时 close

	stats counters
}

// waiter 排队等待连接的调用方
type waiter struct {
	ch     chan grant // 容量为 1，发送方在持锁时写入，永不阻塞
	queued bool       // 是否仍在 waiters 中，由 mu 保护
}

// grant 交给等待者的结果：一条连接、一个建连名额或一个错误
type grant struct {
	conn *Conn
	slot bool
	err  error
}

// New 创建连接池并预先建立 MinConns 条连接
func New(ctx context.Context, cfg *Config, connector Connector, opts ...Option) (*Pool, error) {
	if connector == nil {
		return nil, ErrNilConnector
	}

	merged, err := mergeConfig(cfg)
	if err != nil {
		return nil, err
	}

	poolCtx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		cfg:       merged,
		connector: connector,
		logger:    logger.NewNoop(),
		now:       time.Now,
		ctx:       poolCtx,
		cancel:    cancel,
		borrowed:  make(map[*Conn]struct{}),
		waiters:   list.New(),
		drained:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	for i := 0; i < merged.MinConns; i++ {
		p.mu.Lock()
		p.numOpen++
		p.mu.Unlock()

		c, err := p.dial(ctx)
		if err != nil {
			p.mu.Lock()
			p.numOpen--
			p.mu.Unlock()
			_ = p.Shutdown(ctx)
			return nil, errors.Wrapf(err, "pool: warm up connection %d/%d", i+1, merged.MinConns)
		}

		p.mu.Lock()
		p.pushIdleLocked(c)
		p.mu.Unlock()
	}

	p.wg.Add(1)
	go p.maintain()

	p.logger.Info("connection pool started",
		"min_conns", merged.MinConns,
		"max_conns", merged.MaxConns,
		"acquire_timeout", merged.AcquireTimeout,
		"idle_timeout", merged.IdleTimeout,
	)
	return p, nil
}

// Config 返回生效的配置
func (p *Pool) Config() Config {
	return *p.cfg
}

// Acquire 借出一条连接
//
// timeout <= 0 时使用 Config.AcquireTimeout。超时返回 ErrPoolExhausted，
// 连接池关闭返回 ErrPoolClosed，ctx 取消返回 ctx.Err()。
// 成功借出的连接必须通过 Release 归还。
func (p *Pool) Acquire(ctx context.Context, timeout time.Duration) (*Conn, error) {
	if timeout <= 0 {
		timeout = p.cfg.AcquireTimeout
	}
	start := time.Now()

	acqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c, err := p.acquire(ctx, acqCtx)
	p.recordAcquire(time.Since(start), err)
	return c, err
}

func (p *Pool) acquire(parent, ctx context.Context) (*Conn, error) {
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, ErrPoolClosed
		}
		if err := ctx.Err(); err != nil {
			p.mu.Unlock()
			return nil, p.waitError(parent)
		}

		if c := p.popIdleLocked(); c != nil {
			if reason, stale := p.staleLocked(c, p.numOpen); stale {
				p.retireLocked(c, reason)
				p.mu.Unlock()
				p.closeRaw(c, reason)
				p.fillMinConns()
				continue
			}
			p.borrowLocked(c)
			p.mu.Unlock()
			return c, nil
		}

		if p.numOpen < p.cfg.MaxConns {
			p.numOpen++
			p.mu.Unlock()
			return p.openReserved(parent, ctx)
		}

		w := &waiter{ch: make(chan grant, 1), queued: true}
		elem := p.waiters.PushBack(w)
		p.mu.Unlock()

		select {
		case g := <-w.ch:
			switch {
			case g.err != nil:
				return nil, g.err
			case g.slot:
				return p.openReserved(parent, ctx)
			default:
				return g.conn, nil
			}
		case <-ctx.Done():
			p.abandon(elem, w)
			return nil, p.waitError(parent)
		}
	}
}

// waitError 区分调用方取消与等待超时
func (p *Pool) waitError(parent context.Context) error {
	if err := parent.Err(); err != nil {
		p.stats.canceledAcquire.Add(1)
		return err
	}
	return ErrPoolExhausted
}

// abandon 等待者超时或被取消后退出队列
// 如果在退出前已经被分配了连接或名额，必须交还，否则会泄漏
func (p *Pool) abandon(elem *list.Element, w *waiter) {
	p.mu.Lock()
	if w.queued {
		p.waiters.Remove(elem)
		w.queued = false
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	g := <-w.ch
	switch {
	case g.conn != nil:
		p.Release(g.conn)
	case g.slot:
		p.mu.Lock()
		p.numOpen--
		p.grantSlotsLocked()
		p.checkDrainedLocked()
		p.mu.Unlock()
	}
}

// openReserved 使用已占用的名额建立连接并借出
func (p *Pool) openReserved(parent, ctx context.Context) (*Conn, error) {
	c, err := p.dial(ctx)
	if err != nil {
		p.mu.Lock()
		p.numOpen--
		p.grantSlotsLocked()
		p.checkDrainedLocked()
		p.mu.Unlock()
		if ctx.Err() != nil {
			return nil, p.waitError(parent)
		}
		return nil, err
	}

	p.mu.Lock()
	if p.closed {
		p.retireLocked(c, reasonShutdown)
		p.mu.Unlock()
		p.closeRaw(c, reasonShutdown)
		return nil, ErrPoolClosed
	}
	p.borrowLocked(c)
	p.mu.Unlock()
	return c, nil
}

// Release 归还连接
//
// 已标记损坏、超过生命周期或连接池已关闭时销毁连接，并按需补足 MinConns；
// 否则优先交给排队最久的等待者，没有等待者时放回空闲栈。
// 归还不属于本池或未借出的连接会被忽略。
func (p *Pool) Release(c *Conn) {
	p.release(c, true)
}

// release touch 为 false 时不刷新最近使用时间，用于健康检查归还
func (p *Pool) release(c *Conn, touch bool) {
	if c == nil {
		return
	}
	if c.pool != p {
		p.logger.Warn("release of connection from another pool ignored", "conn_id", c.id)
		return
	}

	p.mu.Lock()
	if _, ok := p.borrowed[c]; !ok {
		state := c.state
		p.mu.Unlock()
		p.logger.Warn("release of connection that is not borrowed ignored", "conn_id", c.id, "state", state.String())
		return
	}
	delete(p.borrowed, c)
	if touch {
		c.lastUsed = p.now()
	}

	var reason destroyReason
	switch {
	case c.broken.Load():
		reason = reasonBroken
	case p.closed:
		reason = reasonShutdown
	case p.cfg.MaxConnLifetime > 0 && p.now().Sub(c.createdAt) >= p.cfg.MaxConnLifetime:
		reason = reasonLifetime
	}

	if reason != "" {
		p.retireLocked(c, reason)
		p.mu.Unlock()
		p.closeRaw(c, reason)
		p.fillMinConns()
		return
	}

	if !p.handOffLocked(c) {
		p.pushIdleLocked(c)
	}
	p.mu.Unlock()
}

// Shutdown 关闭连接池
//
// 立即拒绝新的 Acquire 并唤醒所有等待者（返回 ErrPoolClosed），关闭空闲连接，
// 然后等待借出的连接全部归还后关闭它们。ctx 到期时返回错误，
// 之后归还的连接仍会被关闭。可以重复调用。
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	first := !p.closed
	var idle []*Conn
	if first {
		p.closed = true
		p.cancel()

		for e := p.waiters.Front(); e != nil; e = e.Next() {
			w := e.Value.(*waiter)
			w.queued = false
			w.ch <- grant{err: ErrPoolClosed}
		}
		p.waiters.Init()

		idle = p.idle
		p.idle = nil
		for _, c := range idle {
			p.retireLocked(c, reasonShutdown)
		}
		p.checkDrainedLocked()
	}
	borrowed := len(p.borrowed)
	drained := p.drained
	p.mu.Unlock()

	if first {
		for _, c := range idle {
			p.closeRaw(c, reasonShutdown)
		}
		p.wg.Wait()
		p.logger.Info("connection pool closing", "closed_idle", len(idle), "borrowed", borrowed)
	}

	select {
	case <-drained:
		if first {
			p.logger.Info("connection pool closed")
		}
		return nil
	case <-ctx.Done():
		p.logger.Warn("connection pool shutdown interrupted before borrowed connections were released", "borrowed", borrowed)
		return errors.Wrap(ctx.Err(), "pool: shutdown")
	}
}

// Closed 连接池是否已关闭
func (p *Pool) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// dial 建立一条新连接，失败时返回包装了 ErrConnectionBroken 的错误
func (p *Pool) dial(ctx context.Context) (*Conn, error) {
	raw, err := p.connector.Connect(ctx)
	if err != nil {
		p.logger.Warn("failed to open connection", "error", err)
		return nil, fmt.Errorf("%w: open connection: %w", ErrConnectionBroken, err)
	}

	now := p.now()
	c := &Conn{
		id:        uuid.NewString(),
		raw:       raw,
		pool:      p,
		createdAt: now,
		lastUsed:  now,
		state:     StateIdle,
	}
	p.stats.newConns.Add(1)
	p.logger.Debug("connection opened", "conn_id", c.id)
	return c, nil
}

// fillMinConns 在后台把连接数补足到 MinConns
func (p *Pool) fillMinConns() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	missing := p.cfg.MinConns - p.numOpen
	if missing <= 0 {
		p.mu.Unlock()
		return
	}
	p.numOpen += missing
	p.wg.Add(missing)
	p.mu.Unlock()

	for i := 0; i < missing; i++ {
		go func() {
			defer p.wg.Done()

			c, err := p.dial(p.ctx)
			p.mu.Lock()
			if err != nil {
				p.numOpen--
				p.grantSlotsLocked()
				p.checkDrainedLocked()
				p.mu.Unlock()
				return
			}
			if p.closed {
				p.retireLocked(c, reasonShutdown)
				p.mu.Unlock()
				p.closeRaw(c, reasonShutdown)
				return
			}
			if !p.handOffLocked(c) {
				p.pushIdleLocked(c)
			}
			p.mu.Unlock()
		}()
	}
}

// popIdleLocked 取出最近归还的空闲连接
func (p *Pool) popIdleLocked() *Conn {
	n := len(p.idle)
	if n == 0 {
		return nil
	}
	c := p.idle[n-1]
	p.idle[n-1] = nil
	p.idle = p.idle[:n-1]
	return c
}

func (p *Pool) pushIdleLocked(c *Conn) {
	c.state = StateIdle
	p.idle = append(p.idle, c)
}

func (p *Pool) borrowLocked(c *Conn) {
	c.state = StateBorrowed
	p.borrowed[c] = struct{}{}
}

// handOffLocked 把连接直接交给排队最久的等待者
func (p *Pool) handOffLocked(c *Conn) bool {
	e := p.waiters.Front()
	if e == nil {
		return false
	}
	w := p.waiters.Remove(e).(*waiter)
	w.queued = false
	p.borrowLocked(c)
	w.ch <- grant{conn: c}
	return true
}

// grantSlotsLocked 有空余名额时唤醒等待者自行建连
func (p *Pool) grantSlotsLocked() {
	for p.numOpen < p.cfg.MaxConns {
		e := p.waiters.Front()
		if e == nil {
			return
		}
		w := p.waiters.Remove(e).(*waiter)
		w.queued = false
		p.numOpen++
		w.ch <- grant{slot: true}
	}
}

// staleLocked 判断空闲连接是否应被回收，open 为不含待关闭连接的连接数
func (p *Pool) staleLocked(c *Conn, open int) (destroyReason, bool) {
	now := p.now()
	if p.cfg.MaxConnLifetime > 0 && now.Sub(c.createdAt) >= p.cfg.MaxConnLifetime {
		return reasonLifetime, true
	}
	if p.cfg.IdleTimeout > 0 && now.Sub(c.lastUsed) >= p.cfg.IdleTimeout && open > p.cfg.MinConns {
		return reasonIdle, true
	}
	return "", false
}

// retireLocked 记录连接被移出池的原因
// 连接在 closeRaw 完成前仍占用名额，保证同时打开的驱动连接数不超过 MaxConns
func (p *Pool) retireLocked(c *Conn, reason destroyReason) {
	if reason == reasonBroken {
		c.state = StateBroken
	}
	switch reason {
	case reasonBroken:
		p.stats.brokenDestroyed.Add(1)
	case reasonIdle:
		p.stats.idleDestroyed.Add(1)
	case reasonLifetime:
		p.stats.lifetimeDestroyed.Add(1)
	}
}

// closeRaw 在锁外关闭驱动连接，然后释放名额
func (p *Pool) closeRaw(c *Conn, reason destroyReason) {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.PingTimeout)
	defer cancel()

	if err := c.raw.Close(ctx); err != nil {
		p.logger.Debug("error closing connection", "conn_id", c.id, "error", err)
	}

	p.mu.Lock()
	c.state = StateClosed
	p.numOpen--
	p.grantSlotsLocked()
	p.checkDrainedLocked()
	p.mu.Unlock()

	if reason == reasonBroken {
		p.logger.Warn("broken connection destroyed", "conn_id", c.id)
	} else {
		p.logger.Debug("connection closed", "conn_id", c.id, "reason", string(reason))
	}
	if p.metrics != nil {
		p.metrics.observeDestroy(reason)
	}
}

// checkDrainedLocked 关闭后所有连接都已释放时通知 Shutdown
func (p *Pool) checkDrainedLocked() {
	if !p.closed || p.numOpen > 0 {
		return
	}
	select {
	case <-p.drained:
	default:
		close(p.drained)
	}
}
