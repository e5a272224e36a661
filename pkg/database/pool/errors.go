package pool

import "github.com/cockroachdb/errors"

var (
	// ErrPoolExhausted 在超时时间内没有可用连接，调用方可以重试
	ErrPoolExhausted = errors.New("pool: exhausted, no connection available within timeout")

	// ErrPoolClosed 连接池正在关闭或已关闭
	ErrPoolClosed = errors.New("pool: closed")

	// ErrConnectionBroken 驱动层 I/O 失败，连接不可再用
	ErrConnectionBroken = errors.New("pool: connection broken")

	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = errors.New("pool: invalid config")

	// ErrNilConnector 未提供 Connector
	ErrNilConnector = errors.New("pool: connector is nil")
)
