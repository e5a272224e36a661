package logger

import (
	"context"

	"go.uber.org/zap"
)

// ContextFieldExtractor 从 context 提取日志字段
type ContextFieldExtractor func(ctx context.Context) []zap.Field

type fieldsKey struct{}

// ContextWithFields 把 key/value 字段挂到 context 上，由 DefaultContextExtractor 取出
func ContextWithFields(ctx context.Context, keysAndValues ...any) context.Context {
	fields := toZapFields(keysAndValues)
	if len(fields) == 0 {
		return ctx
	}
	if existing, ok := ctx.Value(fieldsKey{}).([]zap.Field); ok {
		fields = append(append(make([]zap.Field, 0, len(existing)+len(fields)), existing...), fields...)
	}
	return context.WithValue(ctx, fieldsKey{}, fields)
}

// DefaultContextExtractor 取出 ContextWithFields 写入的字段
func DefaultContextExtractor(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}
	fields, _ := ctx.Value(fieldsKey{}).([]zap.Field)
	return fields
}
