package config

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator 基于 validate 标签的配置校验器
type Validator struct {
	validate *validator.Validate
}

// NewValidator 创建校验器
// 错误信息中的字段名优先使用 mapstructure 标签，与配置文件中的键保持一致
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return &Validator{validate: v}
}

// Validate 校验配置结构体
// 常用标签：required、gte=0、ltefield=MaxConns、oneof=debug info
func (v *Validator) Validate(cfg any) error {
	if cfg == nil {
		return ErrNilConfig
	}
	if rv := reflect.ValueOf(cfg); rv.Kind() == reflect.Ptr && rv.IsNil() {
		return ErrNilConfig
	}

	if err := v.validate.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %s", ErrValidationFailed, formatValidationErrors(err))
	}
	return nil
}

// RegisterValidation 注册自定义校验标签
func (v *Validator) RegisterValidation(tag string, fn validator.Func) error {
	if err := v.validate.RegisterValidation(tag, fn); err != nil {
		return fmt.Errorf("failed to register validation %s: %w", tag, err)
	}
	return nil
}

// formatValidationErrors 格式化校验错误
func formatValidationErrors(err error) string {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}

	msgs := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		field := fe.Namespace()
		if idx := strings.Index(field, "."); idx >= 0 {
			field = field[idx+1:]
		}

		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("'%s' is required", field))
		case "min", "gte":
			msgs = append(msgs, fmt.Sprintf("'%s' must be >= %s", field, fe.Param()))
		case "max", "lte":
			msgs = append(msgs, fmt.Sprintf("'%s' must be <= %s", field, fe.Param()))
		case "ltefield":
			msgs = append(msgs, fmt.Sprintf("'%s' must not exceed %s", field, fe.Param()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("'%s' must be one of [%s]", field, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("'%s' failed on '%s'", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
