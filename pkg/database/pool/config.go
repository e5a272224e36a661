package pool

import (
	"fmt"
	"time"

	"github.com/lk2023060901/pgpool/pkg/config"
)

// Config 连接池配置，创建后只读
//
// 零值字段使用 DefaultConfig 中的值，因此无法通过配置把 IdleTimeout 等设为 0；
// 需要关闭空闲回收时设置一个足够大的值。
type Config struct {
	MinConns int `mapstructure:"min_conns" json:"min_conns" yaml:"min_conns" validate:"gte=0,ltefield=MaxConns"`
	MaxConns int `mapstructure:"max_conns" json:"max_conns" yaml:"max_conns" validate:"gte=1"`

	// 获取连接的最长等待
	AcquireTimeout time.Duration `mapstructure:"acquire_timeout" json:"acquire_timeout" yaml:"acquire_timeout" validate:"gt=0"`
	// 空闲超过该时长的连接被关闭（保留 MinConns）
	IdleTimeout time.Duration `mapstructure:"idle_timeout" json:"idle_timeout" yaml:"idle_timeout" validate:"gte=0"`
	// 连接最大存活时间
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime" json:"max_conn_lifetime" yaml:"max_conn_lifetime" validate:"gte=0"`
	// 后台维护周期
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period" json:"health_check_period" yaml:"health_check_period" validate:"gt=0"`
	// 健康检查 Ping 超时
	PingTimeout time.Duration `mapstructure:"ping_timeout" json:"ping_timeout" yaml:"ping_timeout" validate:"gt=0"`
}

// DefaultConfig 默认配置，取值与 HikariCP 默认值对齐
func DefaultConfig() *Config {
	return &Config{
		MinConns:          0,
		MaxConns:          10,
		AcquireTimeout:    30 * time.Second,
		IdleTimeout:       10 * time.Minute,
		MaxConnLifetime:   30 * time.Minute,
		HealthCheckPeriod: 30 * time.Second,
		PingTimeout:       5 * time.Second,
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	if err := config.NewValidator().Validate(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// mergeConfig 在默认配置上叠加用户配置并校验
func mergeConfig(cfg *Config) (*Config, error) {
	merged, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return merged, nil
}
