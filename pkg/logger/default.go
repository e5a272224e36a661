package logger

import (
	"os"
	"sync"
)

var (
	defaultMu     sync.RWMutex
	defaultLogger Logger
)

// Default 返回进程级默认 logger，未设置时懒加载一个控制台 logger
// 库代码应通过参数注入 Logger，这里只给 main 和测试使用
func Default() Logger {
	defaultMu.RLock()
	l := defaultLogger
	defaultMu.RUnlock()
	if l != nil {
		return l
	}

	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		base, err := New(nil)
		if err != nil {
			defaultLogger = NewNoop()
		} else {
			defaultLogger = base
		}
	}
	return defaultLogger
}

// SetDefault 替换默认 logger
func SetDefault(l Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = l
}

// InitDefaultFromEnv 依据 PGPOOL_LOG_* 环境变量初始化默认 logger
func InitDefaultFromEnv() error {
	cfg := &Config{}
	if level := os.Getenv("PGPOOL_LOG_LEVEL"); level != "" {
		cfg.Level = Level(level)
	}
	if format := os.Getenv("PGPOOL_LOG_FORMAT"); format != "" {
		cfg.Format = Format(format)
	}
	if path := os.Getenv("PGPOOL_LOG_PATH"); path != "" {
		cfg.EnableFile = true
		cfg.OutputPath = path
	}
	if os.Getenv("PGPOOL_LOG_DEVELOPMENT") == "true" {
		cfg.Development = true
	}

	l, err := New(cfg)
	if err != nil {
		return err
	}
	SetDefault(l)
	return nil
}
