package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Option 配置管理器选项
type Option func(*manager)

// WithDefaults 设置默认值，优先级最低
func WithDefaults(defaults map[string]any) Option {
	return func(m *manager) {
		for key, value := range defaults {
			m.v.SetDefault(key, value)
		}
	}
}

// WithConfigType 显式指定配置格式（yaml、json、toml）
// 文件扩展名无法识别时使用
func WithConfigType(configType string) Option {
	return func(m *manager) {
		m.v.SetConfigType(configType)
	}
}

// WithEnvPrefix 启用环境变量覆盖
// 例如前缀 PGPOOL 时，PGPOOL_DATABASE_POOL_MAX_CONNS 覆盖 database.pool.max_conns
func WithEnvPrefix(prefix string) Option {
	return func(m *manager) {
		if prefix == "" {
			return
		}
		m.v.SetEnvPrefix(prefix)
		m.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
		m.v.AutomaticEnv()
	}
}

// WithViper 使用外部 Viper 实例（例如已绑定命令行参数的实例）
func WithViper(v *viper.Viper) Option {
	return func(m *manager) {
		if v != nil {
			m.v = v
		}
	}
}
