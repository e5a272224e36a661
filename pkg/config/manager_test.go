package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type managerTestConfig struct {
	Database struct {
		Host    string        `mapstructure:"host"`
		Port    int           `mapstructure:"port"`
		Timeout time.Duration `mapstructure:"timeout"`
		Pool    struct {
			MaxConns int `mapstructure:"max_conns"`
		} `mapstructure:"pool"`
	} `mapstructure:"database"`
	Hosts []string `mapstructure:"hosts"`
}

// writeConfigFile 写入临时配置文件
func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

const managerTestYAML = `
database:
  host: db.internal
  port: 5432
  timeout: 30s
  pool:
    max_conns: 8
hosts: "a,b,c"
`

// TestManagerLoadAndUnmarshal 测试加载与解析
func TestManagerLoadAndUnmarshal(t *testing.T) {
	mgr := NewManager()
	if err := mgr.LoadFile(writeConfigFile(t, managerTestYAML)); err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	var cfg managerTestConfig
	if err := mgr.Unmarshal(&cfg); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if cfg.Database.Host != "db.internal" {
		t.Errorf("host = %q", cfg.Database.Host)
	}
	if cfg.Database.Timeout != 30*time.Second {
		t.Errorf("timeout = %v, want 30s", cfg.Database.Timeout)
	}
	if cfg.Database.Pool.MaxConns != 8 {
		t.Errorf("max_conns = %d, want 8", cfg.Database.Pool.MaxConns)
	}
	if len(cfg.Hosts) != 3 {
		t.Errorf("hosts = %v, want 3 entries", cfg.Hosts)
	}
}

// TestManagerUnmarshalKey 测试解析子键
func TestManagerUnmarshalKey(t *testing.T) {
	mgr := NewManager()
	if err := mgr.LoadFile(writeConfigFile(t, managerTestYAML)); err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	var port int
	if err := mgr.UnmarshalKey("database.port", &port); err != nil {
		t.Fatalf("UnmarshalKey failed: %v", err)
	}
	if port != 5432 {
		t.Errorf("port = %d, want 5432", port)
	}
	if !mgr.IsSet("database.pool.max_conns") {
		t.Error("database.pool.max_conns should be set")
	}
	if mgr.GetString("database.host") != "db.internal" {
		t.Errorf("GetString = %q", mgr.GetString("database.host"))
	}
}

// TestManagerEnvOverride 测试环境变量覆盖
func TestManagerEnvOverride(t *testing.T) {
	t.Setenv("PGPOOLTEST_DATABASE_HOST", "override.internal")

	mgr := NewManager(WithEnvPrefix("PGPOOLTEST"))
	if err := mgr.LoadFile(writeConfigFile(t, managerTestYAML)); err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if got := mgr.GetString("database.host"); got != "override.internal" {
		t.Errorf("database.host = %q, want override", got)
	}
}

// TestManagerDefaultsAndSet 测试默认值与显式覆盖
func TestManagerDefaultsAndSet(t *testing.T) {
	mgr := NewManager(WithDefaults(map[string]any{"database.port": 6543}))
	if got := mgr.Get("database.port"); got != 6543 {
		t.Errorf("default port = %v", got)
	}

	mgr.Set("database.port", 7000)
	if got := mgr.Get("database.port"); got != 7000 {
		t.Errorf("set port = %v", got)
	}
}

// TestManagerMissingFile 测试文件不存在
func TestManagerMissingFile(t *testing.T) {
	err := NewManager().LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, ErrConfigFileNotFound) {
		t.Fatalf("expected ErrConfigFileNotFound, got %v", err)
	}
}
