package postgres

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/lk2023060901/pgpool/pkg/config"
	"github.com/lk2023060901/pgpool/pkg/database/pool"
)

// DBConfig 单个数据库实例配置
type DBConfig struct {
	Host     string `mapstructure:"host" json:"host" yaml:"host" validate:"required"`
	Port     int    `mapstructure:"port" json:"port" yaml:"port" validate:"gte=1,lte=65535"`
	User     string `mapstructure:"user" json:"user" yaml:"user" validate:"required"`
	Password string `mapstructure:"password" json:"password" yaml:"password"`
	DBName   string `mapstructure:"db_name" json:"db_name" yaml:"db_name" validate:"required"`
	SSLMode  string `mapstructure:"ssl_mode" json:"ssl_mode" yaml:"ssl_mode" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`
}

// Config PostgreSQL 配置
type Config struct {
	DB DBConfig `mapstructure:"db" json:"db" yaml:"db"`

	// 连接池配置
	Pool pool.Config `mapstructure:"pool" json:"pool" yaml:"pool"`

	// 超时配置
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout" json:"connect_timeout" yaml:"connect_timeout" validate:"gte=0"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout" json:"query_timeout" yaml:"query_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" json:"shutdown_timeout" yaml:"shutdown_timeout" validate:"gte=0"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		DB: DBConfig{
			Host:    "localhost",
			Port:    5432,
			User:    "postgres",
			DBName:  "postgres",
			SSLMode: "disable",
		},
		Pool:            *pool.DefaultConfig(),
		ConnectTimeout:  10 * time.Second,
		QueryTimeout:    30 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// MergeConfig 合并配置
func MergeConfig(dst, src *Config) (*Config, error) {
	return config.MergeConfig(dst, src)
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if err := config.NewValidator().Validate(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// ConnString 构建 URL 形式的连接串，用户名与密码经过转义
func (c *Config) ConnString() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.DB.User, c.DB.Password),
		Host:   net.JoinHostPort(c.DB.Host, strconv.Itoa(c.DB.Port)),
		Path:   "/" + c.DB.DBName,
	}

	q := url.Values{}
	if c.DB.SSLMode != "" {
		q.Set("sslmode", c.DB.SSLMode)
	}
	if c.ConnectTimeout > 0 {
		// connect_timeout 只接受整秒，向上取整避免 0 被当作不限时
		secs := (c.ConnectTimeout + time.Second - 1) / time.Second
		q.Set("connect_timeout", strconv.FormatInt(int64(secs), 10))
	}
	u.RawQuery = q.Encode()
	return u.String()
}
