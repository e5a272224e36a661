package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

// newBufferLogger 创建输出到缓冲区的 JSON logger
func newBufferLogger(t *testing.T, cfg *Config, opts ...Option) (*BaseLogger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.Format = JSONFormat
	l, err := New(cfg, append(opts, WithWriter(&buf))...)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return l, &buf
}

// decodeLines 解析每行 JSON 日志
func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("invalid json line %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

// TestNew 测试配置校验
func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr error
	}{
		{name: "nil config uses default"},
		{name: "json console", config: &Config{Format: JSONFormat}},
		{
			name:    "file without path",
			config:  &Config{EnableFile: true},
			wantErr: ErrInvalidOutputPath,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.config)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("New() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil || l == nil {
				t.Fatalf("New() = %v, %v", l, err)
			}
		})
	}
}

// TestLoggerLevelFilter 测试等级过滤
func TestLoggerLevelFilter(t *testing.T) {
	l, buf := newBufferLogger(t, &Config{Level: WarnLevel})

	l.Debug("debug")
	l.Info("info")
	l.Warn("warn", "conn_id", "c1")
	l.Error("error", "attempt", 2)

	entries := decodeLines(t, buf)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d: %s", len(entries), buf.String())
	}
	if entries[0]["msg"] != "warn" || entries[0]["conn_id"] != "c1" {
		t.Errorf("unexpected warn entry: %v", entries[0])
	}
	if entries[1]["attempt"] != float64(2) {
		t.Errorf("unexpected error entry: %v", entries[1])
	}
}

// TestLoggerNamedAndFields 测试具名与固定字段
func TestLoggerNamedAndFields(t *testing.T) {
	l, buf := newBufferLogger(t, nil)

	l.Named("pool").WithFields("pool_id", "p1").Info("acquired", "wait_ms", 3)

	entries := decodeLines(t, buf)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e["logger"] != "pool" || e["pool_id"] != "p1" || e["wait_ms"] != float64(3) {
		t.Errorf("unexpected entry: %v", e)
	}
}

// TestLoggerRedact 测试敏感字段脱敏
func TestLoggerRedact(t *testing.T) {
	l, buf := newBufferLogger(t, &Config{RedactKeys: []string{"password", "dsn"}})

	l.WithFields("dsn", "postgres://u:p@h/db").Info("connect", "password", "secret", "host", "h")

	e := decodeLines(t, buf)[0]
	if e["password"] != "***REDACTED***" || e["dsn"] != "***REDACTED***" {
		t.Errorf("fields not redacted: %v", e)
	}
	if e["host"] != "h" {
		t.Errorf("host should be kept: %v", e)
	}
}

// TestLoggerContextFields 测试从 context 提取字段
func TestLoggerContextFields(t *testing.T) {
	l, buf := newBufferLogger(t, nil)

	ctx := ContextWithFields(context.Background(), "request_id", "r-1")
	ctx = ContextWithFields(ctx, "statement", "SELECT 1")
	l.InfoContext(ctx, "executed")

	e := decodeLines(t, buf)[0]
	if e["request_id"] != "r-1" || e["statement"] != "SELECT 1" {
		t.Errorf("context fields missing: %v", e)
	}
}

// TestLoggerOddKeyValues 测试落单的 key
func TestLoggerOddKeyValues(t *testing.T) {
	l, buf := newBufferLogger(t, nil)

	l.Info("odd", "key")

	e := decodeLines(t, buf)[0]
	if e["!BADKEY"] != "key" {
		t.Errorf("expected !BADKEY field, got %v", e)
	}
}

// TestLoggerFileOutput 测试文件输出
func TestLoggerFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	l, err := New(&Config{EnableFile: true, OutputPath: path, Format: JSONFormat})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	l.Info("to file")
	_ = l.Sync()
}

// TestNoopLogger 测试空 logger
func TestNoopLogger(t *testing.T) {
	var l Logger = NewNoop()
	l.Info("ignored", "k", "v")
	if l.Named("x") != l || l.WithFields("k", "v") != l {
		t.Error("noop logger should return itself")
	}
	if err := l.Sync(); err != nil {
		t.Errorf("Sync() = %v", err)
	}
}
