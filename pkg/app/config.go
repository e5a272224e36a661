package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/lk2023060901/pgpool/pkg/config"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀，PGPOOL_DATABASE_POOL_MAX_CONNS 覆盖 database.pool.max_conns
const EnvPrefix = "PGPOOL"

var (
	configPath string
	logPath    string
	current    config.Manager
)

// LoadConfig 解析命令行后从配置文件加载 target
// 优先级：命令行显式参数 > 环境变量 > 配置文件 > 默认值
func LoadConfig(target any, opts ...config.Option) error {
	execDir, err := GetExecDir()
	if err != nil {
		return fmt.Errorf("failed to get executable directory: %w", err)
	}

	defaultConfig := filepath.Join(execDir, "config.yaml")
	defaultLog := filepath.Join(execDir, "logs", "pgpool.log")

	if pflag.Lookup("config") == nil {
		pflag.StringVarP(&configPath, "config", "c", defaultConfig, "path to config file")
	}
	if pflag.Lookup("log.path") == nil {
		pflag.StringVar(&logPath, "log.path", defaultLog, "output path for logs")
	}
	if !pflag.Parsed() {
		pflag.Parse()
	}

	path := configPath
	if !pflag.CommandLine.Changed("config") {
		if env := os.Getenv(EnvPrefix + "_CONFIG"); env != "" {
			path = env
		}
	}

	overrides := map[string]any{}
	if pflag.CommandLine.Changed("log.path") {
		overrides["log.output_path"] = logPath
	}

	return LoadConfigFile(path, target, overrides, opts...)
}

// LoadConfigFile 从指定文件加载 target，overrides 拥有最高优先级
func LoadConfigFile(path string, target any, overrides map[string]any, opts ...config.Option) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", config.ErrConfigFileNotFound, path)
	}
	configPath = path

	v := viper.New()
	mgr := config.NewManager(append([]config.Option{
		config.WithViper(v),
		config.WithEnvPrefix(EnvPrefix),
	}, opts...)...)

	if err := mgr.LoadFile(path); err != nil {
		return err
	}
	current = mgr
	for k, val := range overrides {
		mgr.Set(k, val)
	}

	if err := mgr.Unmarshal(target); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if p := mgr.GetString("log.output_path"); p != "" {
		logPath = p
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}
	return nil
}

// WatchConfig 监听最近一次加载的配置文件
func WatchConfig(onChange func(fsnotify.Event)) {
	if current != nil {
		current.Watch(onChange)
	}
}

// GetExecDir 获取可执行文件所在目录（处理符号链接）
func GetExecDir() (string, error) {
	execPath, err := os.Executable()
	if err != nil {
		return "", err
	}
	realPath, err := filepath.EvalSymlinks(execPath)
	if err != nil {
		return filepath.Dir(execPath), nil
	}
	return filepath.Dir(realPath), nil
}

// GetConfigPath 最终使用的配置文件路径
func GetConfigPath() string {
	return configPath
}

// GetLogPath 最终使用的日志路径
func GetLogPath() string {
	return logPath
}
