package prometheus

import (
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Register 注册自定义采集器，例如连接池的 StatsCollector
func (c *Client) Register(cs ...prometheus.Collector) error {
	if c.IsClosed() {
		return ErrClientClosed
	}
	for _, col := range cs {
		if err := c.registry.Register(col); err != nil {
			return errors.Wrap(err, "prometheus: register collector")
		}
	}
	return nil
}

// NewCounterVec 创建并注册 CounterVec，同名指标只能注册一次
func (c *Client) NewCounterVec(subsystem, name, help string, labels ...string) (*prometheus.CounterVec, error) {
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: c.config.Namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, labels)
	if err := c.store(prometheus.BuildFQName(c.config.Namespace, subsystem, name), vec); err != nil {
		return nil, err
	}
	return vec, nil
}

// NewGaugeVec 创建并注册 GaugeVec
func (c *Client) NewGaugeVec(subsystem, name, help string, labels ...string) (*prometheus.GaugeVec, error) {
	vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: c.config.Namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, labels)
	if err := c.store(prometheus.BuildFQName(c.config.Namespace, subsystem, name), vec); err != nil {
		return nil, err
	}
	return vec, nil
}

// NewHistogramVec 创建并注册 HistogramVec，buckets 为空时使用 DefBuckets
func (c *Client) NewHistogramVec(subsystem, name, help string, buckets []float64, labels ...string) (*prometheus.HistogramVec, error) {
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: c.config.Namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	}, labels)
	if err := c.store(prometheus.BuildFQName(c.config.Namespace, subsystem, name), vec); err != nil {
		return nil, err
	}
	return vec, nil
}

// Lookup 按完整名称查找已注册的指标
func (c *Client) Lookup(fqName string) (prometheus.Collector, bool) {
	v, ok := c.metrics.Load(fqName)
	if !ok {
		return nil, false
	}
	return v.(prometheus.Collector), true
}

func (c *Client) store(fqName string, col prometheus.Collector) error {
	if c.IsClosed() {
		return ErrClientClosed
	}
	if _, loaded := c.metrics.LoadOrStore(fqName, col); loaded {
		return errors.Wrapf(ErrMetricExists, "%s", fqName)
	}
	if err := c.registry.Register(col); err != nil {
		c.metrics.Delete(fqName)
		return errors.Wrapf(err, "prometheus: register %s", fqName)
	}
	return nil
}
