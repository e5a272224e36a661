package logger

import "io"

// Option BaseLogger 构建选项
type Option func(*BaseLogger)

// WithName 设置 logger 名称
func WithName(name string) Option {
	return func(l *BaseLogger) {
		l.name = name
	}
}

// WithHooks 追加写入钩子
func WithHooks(hooks ...Hook) Option {
	return func(l *BaseLogger) {
		l.hooks = append(l.hooks, hooks...)
	}
}

// WithContextExtractor 设置从 context 提取字段的函数
func WithContextExtractor(fn ContextFieldExtractor) Option {
	return func(l *BaseLogger) {
		if fn != nil {
			l.extractor = fn
		}
	}
}

// WithWriter 用指定 writer 替换控制台与文件输出，主要用于测试
func WithWriter(w io.Writer) Option {
	return func(l *BaseLogger) {
		l.writer = w
	}
}
