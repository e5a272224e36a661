package main

import (
	"testing"

	"github.com/lk2023060901/pgpool/pkg/database/pool"
	"github.com/lk2023060901/pgpool/pkg/database/postgres"
	"github.com/lk2023060901/pgpool/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	cfg := defaultConfig()
	cfg.Prometheus.HTTPServer.Enabled = false
	cfg.Prometheus.EnableGoCollector = false
	cfg.Prometheus.EnableProcessCollector = false
	return &cfg
}

func TestProvideDBClosesClientOnOpenError(t *testing.T) {
	cfg := testConfig()
	cfg.Database.DB.SSLMode = "bogus"
	l := logger.NewNoop()

	client, err := providePrometheus(cfg, l)
	require.NoError(t, err)

	db, err := provideDB(cfg, client, l)
	assert.ErrorIs(t, err, postgres.ErrInvalidConfig)
	assert.Nil(t, db)
	assert.True(t, client.IsClosed())
}

func TestProvideDBClosesClientOnMetricsError(t *testing.T) {
	cfg := testConfig()
	l := logger.NewNoop()

	client, err := providePrometheus(cfg, l)
	require.NoError(t, err)

	// 同名指标已注册
	_, err = pool.NewMetrics(client.Registry(), client.Config().Namespace)
	require.NoError(t, err)

	db, err := provideDB(cfg, client, l)
	assert.Error(t, err)
	assert.Nil(t, db)
	assert.True(t, client.IsClosed())
}
