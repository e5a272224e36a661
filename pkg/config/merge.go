package config

import (
	"fmt"

	"dario.cat/mergo"
)

// MergeConfig 用 src 中的非零值覆盖 dst，并返回 dst
//
// 典型用法是 MergeConfig(DefaultConfig(), userCfg)：用户只需填写关心的字段，
// 其余字段保持默认值。零值（0、""、false、nil、空切片）不会覆盖默认值。
//   - dst 与 src 都为 nil 时返回 ErrNilConfig
//   - dst 为 nil 时直接返回 src
//   - src 为 nil 时直接返回 dst
func MergeConfig[T any](dst, src *T) (*T, error) {
	switch {
	case dst == nil && src == nil:
		return nil, ErrNilConfig
	case dst == nil:
		return src, nil
	case src == nil:
		return dst, nil
	}

	if err := mergo.Merge(dst, *src, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMergeFailed, err)
	}
	return dst, nil
}
