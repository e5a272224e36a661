package probe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lk2023060901/pgpool/pkg/config"
	"github.com/lk2023060901/pgpool/pkg/database/pool"
	"github.com/lk2023060901/pgpool/pkg/database/postgres"
	"github.com/lk2023060901/pgpool/pkg/logger"
	"github.com/lk2023060901/pgpool/pkg/prometheus"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
)

// Config 探测配置
type Config struct {
	// cron 表达式，支持 @every 10s 形式
	Schedule string `mapstructure:"schedule" json:"schedule" yaml:"schedule" validate:"required"`
	// 探测语句
	Statement string `mapstructure:"statement" json:"statement" yaml:"statement" validate:"required"`
	// 单次探测超时
	Timeout time.Duration `mapstructure:"timeout" json:"timeout" yaml:"timeout" validate:"gt=0"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Schedule:  "@every 10s",
		Statement: "SELECT 1",
		Timeout:   5 * time.Second,
	}
}

// Target 被探测的数据库
type Target interface {
	Execute(ctx context.Context, stmt postgres.Statement) (*postgres.Result, error)
	Stats() pool.Stats
}

// Prober 定时执行探测语句，记录结果与连接池状态
type Prober struct {
	cfg    *Config
	target Target
	logger logger.Logger

	runs    *prom.CounterVec
	latency *prom.HistogramVec

	mu      sync.Mutex
	cron    *cron.Cron
	last    Result
	entryID cron.EntryID
}

// Result 最近一次探测结果
type Result struct {
	At       time.Time
	Outcome  string
	Duration time.Duration
	Err      error
}

// New 创建探测器，指标注册到 client
func New(cfg *Config, target Target, client *prometheus.Client, l logger.Logger) (*Prober, error) {
	merged, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to merge probe config: %w", err)
	}
	if err := config.NewValidator().Validate(merged); err != nil {
		return nil, err
	}
	if _, err := cron.ParseStandard(merged.Schedule); err != nil {
		return nil, fmt.Errorf("invalid probe schedule %q: %w", merged.Schedule, err)
	}

	runs, err := client.NewCounterVec("probe", "runs_total", "探测执行次数（按结果）", "outcome")
	if err != nil {
		return nil, err
	}
	latency, err := client.NewHistogramVec("probe", "duration_seconds", "探测耗时（秒），包含获取连接",
		[]float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}, "outcome")
	if err != nil {
		return nil, err
	}

	return &Prober{
		cfg:     merged,
		target:  target,
		logger:  l.Named("probe"),
		runs:    runs,
		latency: latency,
	}, nil
}

// Start 启动定时探测
func (p *Prober) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cron != nil {
		return nil
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	id, err := c.AddFunc(p.cfg.Schedule, func() { _ = p.RunOnce(context.Background()) })
	if err != nil {
		return fmt.Errorf("failed to schedule probe: %w", err)
	}
	c.Start()

	p.cron = c
	p.entryID = id
	p.logger.Info("probe started", "schedule", p.cfg.Schedule, "statement", p.cfg.Statement)
	return nil
}

// Stop 停止调度并等待正在执行的探测结束
func (p *Prober) Stop() error {
	p.mu.Lock()
	c := p.cron
	p.cron = nil
	p.mu.Unlock()

	if c == nil {
		return nil
	}
	<-c.Stop().Done()
	p.logger.Info("probe stopped")
	return nil
}

// Next 下一次探测时间，未启动时返回零值
func (p *Prober) Next() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cron == nil {
		return time.Time{}
	}
	return p.cron.Entry(p.entryID).Next
}

// RunOnce 立即执行一次探测
func (p *Prober) RunOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	start := time.Now()
	_, err := p.target.Execute(ctx, postgres.NewStatement(p.cfg.Statement))
	elapsed := time.Since(start)
	outcome := postgres.Outcome(err)

	p.runs.WithLabelValues(outcome).Inc()
	p.latency.WithLabelValues(outcome).Observe(elapsed.Seconds())

	p.mu.Lock()
	p.last = Result{At: start, Outcome: outcome, Duration: elapsed, Err: err}
	p.mu.Unlock()

	st := p.target.Stats()
	fields := []any{
		"outcome", outcome,
		"duration", elapsed,
		"total_conns", st.TotalConns,
		"idle_conns", st.IdleConns,
		"borrowed_conns", st.BorrowedConns,
		"waiting", st.WaitingCount,
	}
	if err != nil {
		p.logger.Warn("probe failed", append(fields, "error", err)...)
		return err
	}
	p.logger.Debug("probe ok", fields...)
	return nil
}

// Last 最近一次探测结果
func (p *Prober) Last() Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}
