//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"
	"github.com/lk2023060901/pgpool/pkg/app"
	"github.com/lk2023060901/pgpool/pkg/logger"
)

func InitApp(cfg *Config, l logger.Logger) (app.Application, error) {
	panic(wire.Build(
		// 1. 基础框架
		provideAppOptions,
		app.ProviderSet,

		// 2. 指标
		providePrometheus,

		// 3. 数据库与连接池
		provideDB,

		// 4. 探测与压测
		provideProber,
		provideLoadGen,

		// 5. 组装
		provideComponents,
		app.Assemble,
	))
}
