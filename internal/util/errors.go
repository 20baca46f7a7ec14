package util

import (
	"errors"
	"net/http"
)

// ErrorKind 评测链路上的错误分类
type ErrorKind string

const (
	KindValidation      ErrorKind = "validation"
	KindNotFound        ErrorKind = "not_found"
	KindUpstreamTimeout ErrorKind = "upstream_timeout"
	KindPersistence     ErrorKind = "persistence"
	KindInternal        ErrorKind = "internal"
)

var (
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("resource not found")
	ErrUpstreamTimeout = errors.New("upstream timeout")
	ErrPersistence     = errors.New("persistence failed")
	ErrInternal        = errors.New("internal error")

	ErrPaperNotFound      = errors.New("paper_id not found")
	ErrEvaluationNotFound = errors.New("evaluation not found")
	ErrStoreUnavailable   = errors.New("document store unavailable")
)

var kindSentinels = map[ErrorKind]error{
	KindValidation:      ErrValidation,
	KindNotFound:        ErrNotFound,
	KindUpstreamTimeout: ErrUpstreamTimeout,
	KindPersistence:     ErrPersistence,
	KindInternal:        ErrInternal,
}

// AppError 携带分类、对外消息和底层错误
type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 使 errors.Is(err, ErrValidation) 等按分类匹配
func (e *AppError) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

func newAppError(kind ErrorKind, message string, err error) *AppError {
	return &AppError{Kind: kind, Message: message, Err: err}
}

func NewValidationError(message string) error {
	return newAppError(KindValidation, message, nil)
}

func NewNotFoundError(message string, err error) error {
	return newAppError(KindNotFound, message, err)
}

func NewUpstreamTimeoutError(message string, err error) error {
	return newAppError(KindUpstreamTimeout, message, err)
}

func NewPersistenceError(message string, err error) error {
	return newAppError(KindPersistence, message, err)
}

func NewInternalError(message string, err error) error {
	return newAppError(KindInternal, message, err)
}

// KindOf 返回错误分类，未分类的错误视为 internal
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstreamTimeout:
		return http.StatusGatewayTimeout
	case KindPersistence:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
