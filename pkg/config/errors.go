package config

import "errors"

var (
	// ErrConfigFileNotFound 配置文件不存在
	ErrConfigFileNotFound = errors.New("config: file not found")

	// ErrNilConfig 配置为 nil
	ErrNilConfig = errors.New("config: config cannot be nil")

	// ErrValidationFailed 配置校验失败
	ErrValidationFailed = errors.New("config: validation failed")

	// ErrMergeFailed 配置合并失败
	ErrMergeFailed = errors.New("config: merge failed")
)
