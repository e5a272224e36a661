package main

import (
	"github.com/fsnotify/fsnotify"
	"github.com/lk2023060901/pgpool/app/pgprobe/internal/loadgen"
	"github.com/lk2023060901/pgpool/app/pgprobe/internal/probe"
	"github.com/lk2023060901/pgpool/pkg/app"
	"github.com/lk2023060901/pgpool/pkg/database/postgres"
	"github.com/lk2023060901/pgpool/pkg/logger"
	"github.com/lk2023060901/pgpool/pkg/prometheus"
)

// Config pgprobe 的完整配置
type Config struct {
	Log logger.Config `mapstructure:"log"`

	// 数据库与连接池
	Database postgres.Config `mapstructure:"database"`

	Prometheus prometheus.Config `mapstructure:"prometheus"`

	// 定时探测
	Probe probe.Config `mapstructure:"probe"`

	// 压测，默认关闭
	LoadGen loadgen.Config `mapstructure:"loadgen"`
}

// defaultConfig 配置文件中未出现的键保留这里的默认值
func defaultConfig() Config {
	return Config{
		Log:        *logger.DefaultConfig(),
		Database:   *postgres.DefaultConfig(),
		Prometheus: *prometheus.DefaultConfig(),
		Probe:      *probe.DefaultConfig(),
		LoadGen:    *loadgen.DefaultConfig(),
	}
}

func main() {
	cfg := defaultConfig()

	// 1. 加载配置
	if err := app.LoadConfig(&cfg); err != nil {
		panic(err)
	}

	// 2. 初始化日志
	l, err := logger.New(&cfg.Log)
	if err != nil {
		panic(err)
	}
	logger.SetDefault(l)

	app.WatchConfig(func(e fsnotify.Event) {
		l.Warn("config file changed, restart to apply", "file", e.Name, "op", e.Op.String())
	})

	// 3. 通过 Wire 组装
	application, err := InitApp(&cfg, l)
	if err != nil {
		l.Error("failed to initialize application", "error", err)
		_ = l.Sync()
		return
	}

	// 4. 运行
	if err := application.Run(); err != nil {
		l.Error("application exited with error", "error", err)
	}
}
