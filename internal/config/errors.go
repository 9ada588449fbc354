package config

import (
	"errors"
	"fmt"
)

// FieldError 指出校验失败的配置键，Err 保留底层原因（如 URL 解析错误）。
type FieldError struct {
	Field  string
	Reason string
	Err    error
}

func (e FieldError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e FieldError) Unwrap() error { return e.Err }

func newFieldError(field, reason string) error {
	return FieldError{Field: field, Reason: reason}
}

// wrapFieldError 在 err 非空时包装为 FieldError。
func wrapFieldError(field, reason string, err error) error {
	if err == nil {
		return nil
	}
	return FieldError{Field: field, Reason: reason, Err: err}
}

// AsFieldError 从错误链中取出 FieldError。
func AsFieldError(err error) (FieldError, bool) {
	var fe FieldError
	if errors.As(err, &fe) {
		return fe, true
	}
	return FieldError{}, false
}
