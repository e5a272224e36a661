package postgres

import (
	"context"
	"fmt"

	"github.com/lk2023060901/pgpool/pkg/database/pool"
	"github.com/lk2023060901/pgpool/pkg/logger"
)

// DB 连接池与执行器的组合，应用通常只持有一个
type DB struct {
	*Executor

	cfg    *Config
	pool   *pool.Pool
	logger logger.Logger
}

// Option DB 选项
type Option func(*options)

type options struct {
	logger    logger.Logger
	metrics   *pool.Metrics
	connector pool.Connector
}

// WithLogger 设置日志器，连接池与执行器共用
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics 上报连接池指标
func WithMetrics(m *pool.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithConnector 替换默认的 pgx Connector，主要用于测试
func WithConnector(c pool.Connector) Option {
	return func(o *options) {
		o.connector = c
	}
}

// Open 创建连接池并预热 MinConns 条连接
func Open(ctx context.Context, cfg *Config, opts ...Option) (*DB, error) {
	merged, err := MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to merge config: %w", err)
	}
	if err := merged.Validate(); err != nil {
		return nil, err
	}

	o := &options{logger: logger.NewNoop()}
	for _, opt := range opts {
		opt(o)
	}

	connector := o.connector
	if connector == nil {
		pc, err := pool.NewPgxConnector(merged.ConnString())
		if err != nil {
			return nil, err
		}
		connector = pc
	}

	warmCtx := ctx
	if merged.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		warmCtx, cancel = context.WithTimeout(ctx, merged.ConnectTimeout)
		defer cancel()
	}

	p, err := pool.New(warmCtx, &merged.Pool, connector,
		pool.WithLogger(o.logger),
		pool.WithMetrics(o.metrics),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	db := &DB{
		Executor: NewExecutor(p,
			WithQueryTimeout(merged.QueryTimeout),
			WithExecutorLogger(o.logger),
		),
		cfg:    merged,
		pool:   p,
		logger: o.logger,
	}

	o.logger.Info("postgres opened",
		"host", merged.DB.Host,
		"port", merged.DB.Port,
		"db_name", merged.DB.DBName,
		"max_conns", merged.Pool.MaxConns,
	)
	return db, nil
}

// Config 生效的配置
func (db *DB) Config() *Config {
	return db.cfg
}

// Ping 借出一条连接检查数据库可用性
func (db *DB) Ping(ctx context.Context) error {
	return db.withConn(ctx, func(conn *pool.Conn) error {
		if err := conn.Ping(ctx); err != nil {
			return fmt.Errorf("postgres: ping: %w", err)
		}
		return nil
	})
}

// Stats 连接池快照
func (db *DB) Stats() pool.Stats {
	return db.pool.Stats()
}

// Shutdown 关闭连接池，等待借出的连接归还，受 ctx 约束
func (db *DB) Shutdown(ctx context.Context) error {
	return db.pool.Shutdown(ctx)
}

// Close 使用 ShutdownTimeout 关闭连接池
func (db *DB) Close() error {
	ctx := context.Background()
	if db.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, db.cfg.ShutdownTimeout)
		defer cancel()
	}
	return db.Shutdown(ctx)
}
