package pool

import (
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/atomic"
)

// counters 累计计数，无需持锁
type counters struct {
	acquireCount     atomic.Int64
	acquireDuration  atomic.Int64 // 纳秒
	exhaustedAcquire atomic.Int64
	canceledAcquire  atomic.Int64
	newConns         atomic.Int64

	brokenDestroyed   atomic.Int64
	idleDestroyed     atomic.Int64
	lifetimeDestroyed atomic.Int64
}

// Stats 连接池快照
type Stats struct {
	MaxConns      int
	TotalConns    int // 空闲 + 借出 + 正在建立
	IdleConns     int
	BorrowedConns int
	WaitingCount  int

	AcquireCount            int64
	AcquireDuration         time.Duration
	ExhaustedAcquireCount   int64
	CanceledAcquireCount    int64
	NewConnsCount           int64
	BrokenDestroyCount      int64
	IdleDestroyCount        int64
	MaxLifetimeDestroyCount int64
}

// Stats 返回当前状态快照
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	s := Stats{
		MaxConns:      p.cfg.MaxConns,
		TotalConns:    p.numOpen,
		IdleConns:     len(p.idle),
		BorrowedConns: len(p.borrowed),
		WaitingCount:  p.waiters.Len(),
	}
	p.mu.Unlock()

	s.AcquireCount = p.stats.acquireCount.Load()
	s.AcquireDuration = time.Duration(p.stats.acquireDuration.Load())
	s.ExhaustedAcquireCount = p.stats.exhaustedAcquire.Load()
	s.CanceledAcquireCount = p.stats.canceledAcquire.Load()
	s.NewConnsCount = p.stats.newConns.Load()
	s.BrokenDestroyCount = p.stats.brokenDestroyed.Load()
	s.IdleDestroyCount = p.stats.idleDestroyed.Load()
	s.MaxLifetimeDestroyCount = p.stats.lifetimeDestroyed.Load()
	return s
}

func (p *Pool) recordAcquire(d time.Duration, err error) {
	if err == nil {
		p.stats.acquireCount.Add(1)
		p.stats.acquireDuration.Add(int64(d))
	} else if errors.Is(err, ErrPoolExhausted) {
		p.stats.exhaustedAcquire.Add(1)
	}
	if p.metrics != nil {
		p.metrics.observeAcquire(d, err)
	}
}
