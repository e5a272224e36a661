package prometheus

import (
	"context"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/pgpool/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Client 持有独立的 Registry，并按需通过 HTTP 暴露 /metrics
type Client struct {
	config   *Config
	registry *prometheus.Registry
	logger   logger.Logger

	// name -> prometheus.Collector
	metrics sync.Map

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	serveErr chan error

	closed atomic.Bool
}

// Option 客户端选项
type Option func(*Client)

// WithLogger 设置日志
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l.Named("prometheus")
		}
	}
}

// New 创建客户端，cfg 为 nil 时使用默认配置
// HTTP 服务在 Start 时才开始监听
func New(cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		config:   cfg,
		registry: prometheus.NewRegistry(),
		logger:   logger.NewNoop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if cfg.EnableGoCollector {
		c.registry.MustRegister(collectors.NewGoCollector())
	}
	if cfg.EnableProcessCollector {
		c.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	return c, nil
}

// Registry 底层 Registry，可直接交给需要 prometheus.Registerer 的组件
func (c *Client) Registry() *prometheus.Registry {
	return c.registry
}

// Config 生效的配置
func (c *Client) Config() *Config {
	return c.config
}

// Handler /metrics 处理器，可挂到已有的 HTTP 服务上
func (c *Client) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Start 开始监听并在后台提供 /metrics
// 未启用 HTTP 服务时直接返回 nil
func (c *Client) Start() error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	if !c.config.HTTPServer.Enabled {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.server != nil {
		return nil
	}

	ln, err := net.Listen("tcp", c.config.HTTPServer.Addr)
	if err != nil {
		return errors.Wrapf(err, "prometheus: listen %s", c.config.HTTPServer.Addr)
	}

	mux := http.NewServeMux()
	mux.Handle(c.config.HTTPServer.Path, c.Handler())
	c.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  c.config.HTTPServer.Timeout,
		WriteTimeout: c.config.HTTPServer.Timeout,
	}
	c.listener = ln
	c.serveErr = make(chan error, 1)

	srv := c.server
	go func() {
		err := srv.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.logger.Error("metrics server stopped", "error", err)
		}
		c.serveErr <- err
	}()

	c.logger.Info("metrics server listening", "addr", ln.Addr().String(), "path", c.config.HTTPServer.Path)
	return nil
}

// Addr 实际监听地址，未启动时返回空串
func (c *Client) Addr() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listener == nil {
		return ""
	}
	return c.listener.Addr().String()
}

// Stop 优雅关闭 HTTP 服务
func (c *Client) Stop() error {
	c.mu.Lock()
	srv := c.server
	c.server = nil
	c.listener = nil
	c.mu.Unlock()

	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.config.HTTPServer.Timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "prometheus: shutdown http server")
	}
	return nil
}

// Close 关闭客户端，之后不能再注册指标
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClientClosed
	}
	return c.Stop()
}

// IsClosed 客户端是否已关闭
func (c *Client) IsClosed() bool {
	return c.closed.Load()
}
