package pool

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 连接池的 Prometheus 指标
//
// 事件类指标在 Acquire/销毁时直接更新；连接数等瞬时值由 StatsCollector 在采集时读取。
type Metrics struct {
	acquireDuration *prometheus.HistogramVec
	destroyed       *prometheus.CounterVec
}

// NewMetrics 创建指标并注册到 reg
func NewMetrics(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	m := &Metrics{
		acquireDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "pool",
				Name:      "acquire_duration_seconds",
				Help:      "获取连接耗时（秒），按结果区分",
				Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5, 30},
			},
			[]string{"result"},
		),
		destroyed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pool",
				Name:      "connections_destroyed_total",
				Help:      "被销毁的连接数，按原因区分",
			},
			[]string{"reason"},
		),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.acquireDuration, m.destroyed} {
			if err := reg.Register(c); err != nil {
				return nil, errors.Wrap(err, "pool: register metrics")
			}
		}
	}
	return m, nil
}

func (m *Metrics) observeAcquire(d time.Duration, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrPoolExhausted):
		result = "exhausted"
	case errors.Is(err, ErrPoolClosed):
		result = "closed"
	case errors.Is(err, ErrConnectionBroken):
		result = "broken"
	default:
		result = "canceled"
	}
	m.acquireDuration.WithLabelValues(result).Observe(d.Seconds())
}

func (m *Metrics) observeDestroy(reason destroyReason) {
	m.destroyed.WithLabelValues(string(reason)).Inc()
}

// StatsCollector 把 Pool.Stats 暴露为 Prometheus 指标
type StatsCollector struct {
	pool *Pool

	total    *prometheus.Desc
	idle     *prometheus.Desc
	borrowed *prometheus.Desc
	waiting  *prometheus.Desc
	max      *prometheus.Desc
	acquired *prometheus.Desc
	created  *prometheus.Desc
}

// NewStatsCollector 创建采集器
func NewStatsCollector(p *Pool, namespace string) *StatsCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "pool", name), help, nil, nil)
	}
	return &StatsCollector{
		pool:     p,
		total:    desc("connections", "已打开的连接数（含正在建立的）"),
		idle:     desc("idle_connections", "空闲连接数"),
		borrowed: desc("borrowed_connections", "已借出的连接数"),
		waiting:  desc("waiting_acquires", "正在等待连接的调用方数"),
		max:      desc("max_connections", "最大连接数配置"),
		acquired: desc("acquires_total", "成功获取连接的次数"),
		created:  desc("connections_created_total", "连接池累计建立的连接数"),
	}
}

// Describe 实现 prometheus.Collector
func (c *StatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.total
	ch <- c.idle
	ch <- c.borrowed
	ch <- c.waiting
	ch <- c.max
	ch <- c.acquired
	ch <- c.created
}

// Collect 实现 prometheus.Collector
func (c *StatsCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.pool.Stats()
	ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(s.TotalConns))
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(s.IdleConns))
	ch <- prometheus.MustNewConstMetric(c.borrowed, prometheus.GaugeValue, float64(s.BorrowedConns))
	ch <- prometheus.MustNewConstMetric(c.waiting, prometheus.GaugeValue, float64(s.WaitingCount))
	ch <- prometheus.MustNewConstMetric(c.max, prometheus.GaugeValue, float64(s.MaxConns))
	ch <- prometheus.MustNewConstMetric(c.acquired, prometheus.CounterValue, float64(s.AcquireCount))
	ch <- prometheus.MustNewConstMetric(c.created, prometheus.CounterValue, float64(s.NewConnsCount))
}
