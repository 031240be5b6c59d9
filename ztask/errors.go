package ztask

import (
	"errors"
	"fmt"
)

// 错误码
const (
	CodeValidation           = "VALIDATION"
	CodeDatasourceResolution = "DATASOURCE_RESOLUTION"
	CodeIdentityGeneration   = "IDENTITY_GENERATION"
	CodeSubmitFailed         = "SUBMIT_FAILED"
	CodeNotConfigured        = "NOT_CONFIGURED"
	CodeInvalidConfig        = "INVALID_CONFIG"
	CodeClosed               = "CLOSED"
)

// 错误定义，配合 errors.Is 按错误码匹配
var (
	ErrValidation           = &ZTaskError{Code: CodeValidation, Message: "invalid task input"}
	ErrDatasourceResolution = &ZTaskError{Code: CodeDatasourceResolution, Message: "datasource resolution failed"}
	ErrIdentityGeneration   = &ZTaskError{Code: CodeIdentityGeneration, Message: "identity generation failed"}
	ErrSubmitFailed         = &ZTaskError{Code: CodeSubmitFailed, Message: "submit failed"}
	ErrNotConfigured        = &ZTaskError{Code: CodeNotConfigured, Message: "component not configured"}
	ErrInvalidConfig        = &ZTaskError{Code: CodeInvalidConfig, Message: "invalid config"}
	ErrClosed               = &ZTaskError{Code: CodeClosed, Message: "ztask is closed"}
)

// ZTaskError 自定义错误
type ZTaskError struct {
	Code    string
	Message string
	Err     error
}

func (e *ZTaskError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ZTaskError) Unwrap() error {
	return e.Err
}

// Is 错误码相同即视为同类错误
func (e *ZTaskError) Is(target error) bool {
	t, ok := target.(*ZTaskError)
	return ok && e.Code == t.Code
}

// ErrorCode 取出错误码，非 ZTaskError 返回空串
func ErrorCode(err error) string {
	var e *ZTaskError
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func validationError(format string, args ...interface{}) error {
	return &ZTaskError{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

func invalidConfig(msg string) error {
	return &ZTaskError{Code: CodeInvalidConfig, Message: msg}
}

func wrapError(code, msg string, err error) error {
	return &ZTaskError{
		Code:    code,
		Message: msg,
		Err:     err,
	}
}
