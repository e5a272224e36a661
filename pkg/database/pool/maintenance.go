package pool

import (
	"context"
	"time"
)

// maintain 按 HealthCheckPeriod 周期回收过期连接、检测空闲连接并补足 MinConns
func (p *Pool) maintain() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.HealthCheckPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.runMaintenance()
		}
	}
}

// runMaintenance 执行一轮维护
//
// 超过生命周期的空闲连接总是回收；超过空闲时间的连接只在总数大于 MinConns 时回收。
// 其余空闲连接逐条借出做一次 Ping，失败则标记损坏后归还销毁。
// 同一时刻最多占用一条空闲连接，有等待者时跳过检查。
func (p *Pool) runMaintenance() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}

	var (
		expired []*Conn
		reasons []destroyReason
	)
	kept := p.idle[:0]
	for _, c := range p.idle {
		if reason, stale := p.staleLocked(c, p.numOpen-len(expired)); stale {
			p.retireLocked(c, reason)
			expired = append(expired, c)
			reasons = append(reasons, reason)
			continue
		}
		kept = append(kept, c)
	}
	for i := len(kept); i < len(p.idle); i++ {
		p.idle[i] = nil
	}
	p.idle = kept
	candidates := append([]*Conn(nil), p.idle...)
	p.mu.Unlock()

	for i, c := range expired {
		p.closeRaw(c, reasons[i])
	}

	for _, c := range candidates {
		if !p.checkIdle(c) {
			break
		}
	}

	p.fillMinConns()
}

// checkIdle 借出一条仍然空闲的连接做 Ping 后归还
// 连接池已关闭时返回 false；连接已被借走或有等待者时跳过
func (p *Pool) checkIdle(c *Conn) bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false
	}
	if p.waiters.Len() > 0 || !p.takeIdleLocked(c) {
		p.mu.Unlock()
		return true
	}
	p.borrowLocked(c)
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.PingTimeout)
	err := c.raw.Ping(ctx)
	cancel()
	// 关闭期间 Ping 被取消不代表连接损坏，归还时按关闭销毁
	if err != nil && p.ctx.Err() == nil {
		p.logger.Warn("idle connection failed health check", "conn_id", c.id, "error", err)
		c.MarkBroken()
	}
	p.release(c, false)
	return true
}

// takeIdleLocked 从空闲栈中移除指定连接
func (p *Pool) takeIdleLocked(c *Conn) bool {
	for i, ic := range p.idle {
		if ic != c {
			continue
		}
		n := len(p.idle)
		copy(p.idle[i:], p.idle[i+1:])
		p.idle[n-1] = nil
		p.idle = p.idle[:n-1]
		return true
	}
	return false
}
