package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"riskhub_v1_202610/pkg/pseudonym"
)

// ErrorKind 业务错误分类，controller 据此映射 HTTP 状态码
type ErrorKind string

const (
	KindAuthentication ErrorKind = "authentication"
	KindValidation     ErrorKind = "validation"
	KindConfiguration  ErrorKind = "configuration"
	KindNotFound       ErrorKind = "not_found"
	KindStorage        ErrorKind = "storage"
)

// AppError 服务层统一错误
type AppError struct {
	Kind    ErrorKind
	Message string
	// Fields 校验失败的字段 -> 原因
	Fields map[string]string
	Err    error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewValidationError 校验错误
func NewValidationError(fields map[string]string) *AppError {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return &AppError{
		Kind:    KindValidation,
		Message: "参数校验失败: " + strings.Join(names, ", "),
		Fields:  fields,
	}
}

// NewNotFoundError 资源不存在
func NewNotFoundError(message string) *AppError {
	return &AppError{Kind: KindNotFound, Message: message}
}

// WrapStorage 把 repository 错误归类：记录不存在 -> not_found，其余 -> storage
func WrapStorage(message string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &AppError{Kind: KindNotFound, Message: message, Err: err}
	}
	if errors.Is(err, pseudonym.ErrConfiguration) {
		return &AppError{Kind: KindConfiguration, Message: message, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &AppError{Kind: KindStorage, Message: message + "（处理超时）", Err: err}
	}
	return &AppError{Kind: KindStorage, Message: message, Err: err}
}

// KindOf 取错误分类，非 AppError 一律视为 storage
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindStorage
}

// validationFields 把 validator 错误转成 json 字段名 -> 规则
func validationFields(err error) map[string]string {
	fields := make(map[string]string)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		fields["payload"] = err.Error()
		return fields
	}
	for _, fe := range verrs {
		reason := fe.Tag()
		if fe.Param() != "" {
			reason += "=" + fe.Param()
		}
		fields[fieldPath(fe.Namespace())] = reason
	}
	return fields
}

// fieldPath 去掉最外层结构体名：OrderPayload.customer_email -> customer_email
func fieldPath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}
