package loadgen

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/pgpool/pkg/config"
	"github.com/lk2023060901/pgpool/pkg/database/postgres"
	"github.com/lk2023060901/pgpool/pkg/logger"
	"github.com/lk2023060901/pgpool/pkg/metrics/sliding"
	"github.com/lk2023060901/pgpool/pkg/prometheus"
	"github.com/panjf2000/ants/v2"
	prom "github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Config 压测配置
type Config struct {
	Enabled bool `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	// 并发 worker 数，通常大于连接池 MaxConns 以观察排队与耗尽
	Workers int `mapstructure:"workers" json:"workers" yaml:"workers" validate:"gt=0"`
	// 每秒发起的语句数
	Rate  float64 `mapstructure:"rate" json:"rate" yaml:"rate" validate:"gt=0"`
	Burst int     `mapstructure:"burst" json:"burst" yaml:"burst" validate:"gt=0"`
	// 持续时间，0 表示直到 Stop
	Duration  time.Duration `mapstructure:"duration" json:"duration" yaml:"duration" validate:"gte=0"`
	Statement string        `mapstructure:"statement" json:"statement" yaml:"statement" validate:"required"`
	// 汇总日志间隔
	ReportInterval time.Duration        `mapstructure:"report_interval" json:"report_interval" yaml:"report_interval" validate:"gt=0"`
	Window         sliding.WindowConfig `mapstructure:"window" json:"window" yaml:"window"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Workers:        32,
		Rate:           200,
		Burst:          20,
		Statement:      "SELECT pg_sleep(0.01)",
		ReportInterval: 10 * time.Second,
		Window:         *sliding.DefaultWindowConfig(),
	}
}

// Executor 压测目标
type Executor interface {
	Execute(ctx context.Context, stmt postgres.Statement) (*postgres.Result, error)
}

// Generator 按固定速率并发执行语句，统计每种结果的次数
type Generator struct {
	cfg    *Config
	exec   Executor
	logger logger.Logger
	window *sliding.Window

	requests *prom.CounterVec

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	report Report
}

// Report 一次压测的汇总
type Report struct {
	Sent     int64
	Outcomes map[string]int64
	Window   sliding.Stats
	Elapsed  time.Duration
}

// New 创建压测器
func New(cfg *Config, exec Executor, client *prometheus.Client, l logger.Logger) (*Generator, error) {
	merged, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to merge loadgen config: %w", err)
	}
	if err := config.NewValidator().Validate(merged); err != nil {
		return nil, err
	}

	window, err := sliding.NewWindow(&merged.Window)
	if err != nil {
		return nil, err
	}
	requests, err := client.NewCounterVec("loadgen", "requests_total", "压测语句次数（按结果）", "outcome")
	if err != nil {
		return nil, err
	}

	return &Generator{
		cfg:      merged,
		exec:     exec,
		logger:   l.Named("loadgen"),
		window:   window,
		requests: requests,
	}, nil
}

// Start 在后台开始压测，未启用时什么都不做
func (g *Generator) Start() error {
	if !g.cfg.Enabled {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	g.cancel = cancel
	g.done = make(chan struct{})

	go func() {
		defer close(g.done)
		report, err := g.Run(ctx)
		if err != nil {
			g.logger.Error("load generator stopped", "error", err)
		}
		g.mu.Lock()
		g.report = report
		g.mu.Unlock()
	}()
	return nil
}

// Stop 停止压测并等待在途语句结束
func (g *Generator) Stop() error {
	g.mu.Lock()
	cancel, done := g.cancel, g.done
	g.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

// LastReport 最近一次 Start 触发的压测结果
func (g *Generator) LastReport() Report {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.report
}

// Run 执行压测直到 ctx 结束或达到 Duration
func (g *Generator) Run(ctx context.Context) (Report, error) {
	if g.cfg.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Duration)
		defer cancel()
	}

	workers, err := ants.NewPool(g.cfg.Workers, ants.WithNonblocking(false))
	if err != nil {
		return Report{}, errors.Wrap(err, "loadgen: create worker pool")
	}
	defer workers.Release()

	limiter := rate.NewLimiter(rate.Limit(g.cfg.Rate), g.cfg.Burst)
	stmt := postgres.NewStatement(g.cfg.Statement)
	counts := newOutcomeCounter()
	start := time.Now()

	g.logger.Info("load generator started",
		"workers", g.cfg.Workers,
		"rate", g.cfg.Rate,
		"duration", g.cfg.Duration,
	)

	var (
		eg       errgroup.Group
		inflight sync.WaitGroup
		sent     int64
	)
	eg.Go(func() error {
		for {
			if err := limiter.Wait(ctx); err != nil {
				return nil
			}
			inflight.Add(1)
			sent++
			err := workers.Submit(func() {
				defer inflight.Done()
				g.fire(ctx, stmt, counts)
			})
			if err != nil {
				inflight.Done()
				sent--
				if errors.Is(err, ants.ErrPoolClosed) {
					return nil
				}
				return errors.Wrap(err, "loadgen: submit")
			}
		}
	})
	eg.Go(func() error {
		ticker := time.NewTicker(g.cfg.ReportInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				g.logWindow()
			}
		}
	})

	err = eg.Wait()
	inflight.Wait()

	report := Report{
		Sent:     sent,
		Outcomes: counts.snapshot(),
		Window:   g.window.Stats(),
		Elapsed:  time.Since(start),
	}
	g.logger.Info("load generator finished",
		"sent", report.Sent,
		"outcomes", report.Outcomes,
		"elapsed", report.Elapsed,
	)
	return report, err
}

// fire 执行一条语句；ctx 结束导致的失败不计入统计
func (g *Generator) fire(ctx context.Context, stmt postgres.Statement, counts *outcomeCounter) {
	start := time.Now()
	_, err := g.exec.Execute(ctx, stmt)
	elapsed := time.Since(start)

	if err != nil && ctx.Err() != nil {
		counts.add("canceled")
		return
	}
	outcome := postgres.Outcome(err)
	counts.add(outcome)
	g.window.Record(elapsed, outcome)
	g.requests.WithLabelValues(outcome).Inc()
}

func (g *Generator) logWindow() {
	s := g.window.Stats()
	g.logger.Info("load window",
		"per_second", s.PerSecond,
		"avg_latency", s.AvgLatency,
		"max_latency", s.MaxLatency,
		"success_rate", s.SuccessRate,
		"by_outcome", s.ByLabel,
	)
}

type outcomeCounter struct {
	mu sync.Mutex
	m  map[string]int64
}

func newOutcomeCounter() *outcomeCounter {
	return &outcomeCounter{m: make(map[string]int64)}
}

func (c *outcomeCounter) add(outcome string) {
	c.mu.Lock()
	c.m[outcome]++
	c.mu.Unlock()
}

func (c *outcomeCounter) snapshot() map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int64, len(c.m))
	for k, v := range c.m {
		out[k] = v
	}
	return out
}
