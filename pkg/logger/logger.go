package logger

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/lk2023060901/pgpool/pkg/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var _ Logger = (*BaseLogger)(nil)

// BaseLogger 基于 zap 的 Logger 实现
type BaseLogger struct {
	zl        *zap.Logger
	config    *Config
	name      string
	hooks     []Hook
	extractor ContextFieldExtractor
	writer    io.Writer
}

// New 创建 BaseLogger
// cfg 可以只填写部分字段，其余使用 DefaultConfig
func New(cfg *Config, opts ...Option) (*BaseLogger, error) {
	merged, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to merge logger config: %w", err)
	}

	l := &BaseLogger{
		config:    merged,
		extractor: DefaultContextExtractor,
	}
	for _, opt := range opts {
		opt(l)
	}

	if l.writer == nil {
		if err := merged.Validate(); err != nil {
			return nil, err
		}
	}

	if len(merged.RedactKeys) > 0 {
		l.hooks = append([]Hook{RedactHook(merged.RedactKeys...)}, l.hooks...)
	}

	zl, err := l.build()
	if err != nil {
		return nil, err
	}
	l.zl = zl
	return l, nil
}

// build 组装 zap core
func (l *BaseLogger) build() (*zap.Logger, error) {
	encCfg := zapcore.EncoderConfig{
		MessageKey:     "msg",
		LevelKey:       "level",
		TimeKey:        "time",
		NameKey:        "logger",
		CallerKey:      "caller",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if l.config.TimeFormat != "" {
		encCfg.EncodeTime = zapcore.TimeEncoderOfLayout(l.config.TimeFormat)
	}
	if l.config.Development {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	var encoder zapcore.Encoder
	if l.config.Format == ConsoleFormat {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	sink, err := l.buildSink()
	if err != nil {
		return nil, err
	}

	var core zapcore.Core = zapcore.NewCore(encoder, sink, parseLevel(l.config.Level))
	if len(l.hooks) > 0 {
		core = newHookedCore(core, l.hooks...)
	}
	if l.config.EnableSampling {
		core = zapcore.NewSamplerWithOptions(core, 1e9, l.config.SamplingInitial, l.config.SamplingThereafter)
	}

	options := []zap.Option{zap.AddCaller(), zap.AddCallerSkip(1)}
	if l.config.EnableStacktrace {
		options = append(options, zap.AddStacktrace(parseLevel(l.config.StacktraceLevel)))
	}
	if l.config.Development {
		options = append(options, zap.Development())
	}

	zl := zap.New(core, options...)
	if len(l.config.GlobalFields) > 0 {
		fields := make([]zap.Field, 0, len(l.config.GlobalFields))
		for k, v := range l.config.GlobalFields {
			fields = append(fields, zap.Any(k, v))
		}
		zl = zl.With(fields...)
	}
	if l.name != "" {
		zl = zl.Named(l.name)
	}
	return zl, nil
}

// buildSink 组装输出目标
func (l *BaseLogger) buildSink() (zapcore.WriteSyncer, error) {
	if l.writer != nil {
		return zapcore.AddSync(l.writer), nil
	}

	syncers := make([]zapcore.WriteSyncer, 0, 2)
	if l.config.EnableConsole {
		syncers = append(syncers, zapcore.Lock(os.Stdout))
	}
	if l.config.EnableFile {
		w, err := newRotationWriter(&l.config.Rotation, l.config.OutputPath)
		if err != nil {
			return nil, err
		}
		syncers = append(syncers, zapcore.AddSync(w))
	}
	return zapcore.NewMultiWriteSyncer(syncers...), nil
}

func parseLevel(level Level) zapcore.Level {
	switch level {
	case DebugLevel:
		return zapcore.DebugLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func (l *BaseLogger) Debug(msg string, keysAndValues ...any) {
	l.zl.Debug(msg, toZapFields(keysAndValues)...)
}

func (l *BaseLogger) Info(msg string, keysAndValues ...any) {
	l.zl.Info(msg, toZapFields(keysAndValues)...)
}

func (l *BaseLogger) Warn(msg string, keysAndValues ...any) {
	l.zl.Warn(msg, toZapFields(keysAndValues)...)
}

func (l *BaseLogger) Error(msg string, keysAndValues ...any) {
	l.zl.Error(msg, toZapFields(keysAndValues)...)
}

func (l *BaseLogger) DebugContext(ctx context.Context, msg string, keysAndValues ...any) {
	l.zl.Debug(msg, l.contextFields(ctx, keysAndValues)...)
}

func (l *BaseLogger) InfoContext(ctx context.Context, msg string, keysAndValues ...any) {
	l.zl.Info(msg, l.contextFields(ctx, keysAndValues)...)
}

func (l *BaseLogger) WarnContext(ctx context.Context, msg string, keysAndValues ...any) {
	l.zl.Warn(msg, l.contextFields(ctx, keysAndValues)...)
}

func (l *BaseLogger) ErrorContext(ctx context.Context, msg string, keysAndValues ...any) {
	l.zl.Error(msg, l.contextFields(ctx, keysAndValues)...)
}

// Named 派生具名 logger，名称以 "." 连接
func (l *BaseLogger) Named(name string) Logger {
	clone := *l
	clone.zl = l.zl.Named(name)
	clone.name = name
	return &clone
}

// WithFields 派生携带固定字段的 logger
func (l *BaseLogger) WithFields(keysAndValues ...any) Logger {
	fields := toZapFields(keysAndValues)
	if len(fields) == 0 {
		return l
	}
	clone := *l
	clone.zl = l.zl.With(fields...)
	return &clone
}

// Zap 返回底层 zap.Logger
func (l *BaseLogger) Zap() *zap.Logger {
	return l.zl
}

func (l *BaseLogger) Sync() error {
	return l.zl.Sync()
}

func (l *BaseLogger) contextFields(ctx context.Context, keysAndValues []any) []zap.Field {
	return append(l.extractor(ctx), toZapFields(keysAndValues)...)
}

// toZapFields 转换 key/value 参数；已是 zap.Field 的参数原样保留
// 落单的 key 记为 "!BADKEY" 字段，避免静默丢失
func toZapFields(keysAndValues []any) []zap.Field {
	if len(keysAndValues) == 0 {
		return nil
	}

	fields := make([]zap.Field, 0, len(keysAndValues)/2+1)
	for i := 0; i < len(keysAndValues); {
		switch v := keysAndValues[i].(type) {
		case zap.Field:
			fields = append(fields, v)
			i++
		case string:
			if i+1 >= len(keysAndValues) {
				fields = append(fields, zap.Any("!BADKEY", v))
				i++
				continue
			}
			fields = append(fields, zap.Any(v, keysAndValues[i+1]))
			i += 2
		default:
			fields = append(fields, zap.Any("!BADKEY", v))
			i++
		}
	}
	return fields
}
