// Package errs 定义关系层和 feed 层共用的错误类型。
package errs

import (
	"errors"
	"net/http"
)

// Kind 机器可读的错误类别
type Kind string

const (
	NotFound            Kind = "not_found"
	BlockedRelationship Kind = "blocked_relationship"
	InvalidArgument     Kind = "invalid_argument"
	Conflict            Kind = "conflict"
	ServerError         Kind = "server_error"
)

// Error 带类别的领域错误
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is 按类别比较，errors.Is(err, errs.New(errs.NotFound, "")) 可用
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// KindOf 返回错误链上第一个领域错误的类别，非领域错误视为 ServerError
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ServerError
}

// IsKind 判断错误链上是否存在指定类别的领域错误
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// IsClient 客户端导致的错误，不重试、不按 5xx 处理
func IsClient(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Kind {
	case NotFound, BlockedRelationship, InvalidArgument:
		return true
	}
	return false
}

// HTTPStatus 类别到 HTTP 状态码的映射
func HTTPStatus(kind Kind) int {
	switch kind {
	case NotFound:
		return http.StatusNotFound
	case BlockedRelationship:
		return http.StatusForbidden
	case InvalidArgument:
		return http.StatusBadRequest
	case Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
