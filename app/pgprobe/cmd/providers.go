package main

import (
	"context"

	"github.com/lk2023060901/pgpool/app/pgprobe/internal/loadgen"
	"github.com/lk2023060901/pgpool/app/pgprobe/internal/probe"
	"github.com/lk2023060901/pgpool/pkg/app"
	"github.com/lk2023060901/pgpool/pkg/database/pool"
	"github.com/lk2023060901/pgpool/pkg/database/postgres"
	"github.com/lk2023060901/pgpool/pkg/logger"
	"github.com/lk2023060901/pgpool/pkg/metrics/system"
	"github.com/lk2023060901/pgpool/pkg/prometheus"
)

func provideAppOptions(l logger.Logger) []app.Option {
	return []app.Option{
		app.WithName(app.AppName),
		app.WithLogger(l),
	}
}

// providePrometheus 创建指标客户端并注册进程资源采集器
func providePrometheus(cfg *Config, l logger.Logger) (*prometheus.Client, error) {
	client, err := prometheus.New(&cfg.Prometheus, prometheus.WithLogger(l))
	if err != nil {
		return nil, err
	}

	sys, err := system.New(client.Config().Namespace)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	if err := client.Register(sys); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// provideDB 打开连接池，连接池指标注册到同一个 Registry
// 失败时一并关闭已创建的指标客户端
func provideDB(cfg *Config, client *prometheus.Client, l logger.Logger) (*postgres.DB, error) {
	ns := client.Config().Namespace
	m, err := pool.NewMetrics(client.Registry(), ns)
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	db, err := postgres.Open(context.Background(), &cfg.Database,
		postgres.WithLogger(l),
		postgres.WithMetrics(m),
	)
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	if err := client.Register(pool.NewStatsCollector(db.Pool(), ns)); err != nil {
		_ = db.Close()
		_ = client.Close()
		return nil, err
	}
	return db, nil
}

func provideProber(cfg *Config, db *postgres.DB, client *prometheus.Client, l logger.Logger) (*probe.Prober, error) {
	return probe.New(&cfg.Probe, db, client, l)
}

func provideLoadGen(cfg *Config, db *postgres.DB, client *prometheus.Client, l logger.Logger) (*loadgen.Generator, error) {
	return loadgen.New(&cfg.LoadGen, db, client, l)
}

// provideComponents 收集 Server 与 Closer
// 停止时先并行停止所有 Server，再逆序关闭：先指标客户端，后数据库
func provideComponents(
	client *prometheus.Client,
	db *postgres.DB,
	prober *probe.Prober,
	gen *loadgen.Generator,
) app.Components {
	return app.Components{
		Servers: []app.Server{
			client,
			prober,
			gen,
		},
		Closers: []app.Closer{
			db,
			app.CloserFunc(func() error {
				if client.IsClosed() {
					return nil
				}
				return client.Close()
			}),
		},
	}
}
