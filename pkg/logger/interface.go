package logger

import "context"

// Logger 日志接口
// 其他 pkg 模块只依赖此接口，参数为交替出现的 key/value
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)

	DebugContext(ctx context.Context, msg string, keysAndValues ...any)
	InfoContext(ctx context.Context, msg string, keysAndValues ...any)
	WarnContext(ctx context.Context, msg string, keysAndValues ...any)
	ErrorContext(ctx context.Context, msg string, keysAndValues ...any)

	// Named 派生具名子 logger
	Named(name string) Logger
	// WithFields 派生携带固定字段的子 logger
	WithFields(keysAndValues ...any) Logger

	Sync() error
}
