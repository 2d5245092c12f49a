package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrRelayNotFound 中继不存在
	ErrRelayNotFound = errors.New("relay not found")
	// ErrRelayExists 中继 ID 已存在
	ErrRelayExists = errors.New("relay already exists")
)

// ValidationError 参数校验失败，Field 为出错字段（JSON 名称）
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

// NewValidationError 创建校验错误
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidationError 判断错误链中是否包含 ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
