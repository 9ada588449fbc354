package sdc

import (
	"errors"
	"fmt"
)

// StatusError 表示 SDC 返回了非 2xx 状态码，携带状态码、URL 与响应正文。
type StatusError struct {
	Code int
	URL  string
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("sdc returned HTTP %d for %s", e.Code, e.URL)
}

// UnreachableError 表示连接层失败（DNS、拒绝连接、超时等），后续远程请求大概率同样失败。
type UnreachableError struct {
	URL string
	Err error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("sdc unreachable at %s: %v", e.URL, e.Err)
}

func (e *UnreachableError) Unwrap() error {
	return e.Err
}

// IsUnreachable reports whether err is a connection-level failure.
func IsUnreachable(err error) bool {
	var target *UnreachableError
	return errors.As(err, &target)
}

// AsStatusError extracts a *StatusError from err.
func AsStatusError(err error) (*StatusError, bool) {
	var target *StatusError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
