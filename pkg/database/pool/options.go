package pool

import (
	"time"

	"github.com/lk2023060901/pgpool/pkg/logger"
)

// Option 连接池选项
type Option func(*Pool)

// WithLogger 设置日志器
func WithLogger(l logger.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l.Named("pool")
		}
	}
}

// WithMetrics 上报 Prometheus 指标
func WithMetrics(m *Metrics) Option {
	return func(p *Pool) {
		p.metrics = m
	}
}

// WithClock 替换时间来源，用于测试空闲超时和生命周期
func WithClock(now func() time.Time) Option {
	return func(p *Pool) {
		if now != nil {
			p.now = now
		}
	}
}
