package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError - ошибка приложения с кодом и категорией.
//
// Code - конкретный код ошибки (INVALID_K, NEGATIVE_WEIGHT, ...),
// Kind - категория из таксономии (CONFIGURATION, DATA_INTEGRITY, ...).
// errors.Is сравнивает и по коду, и по категории, поэтому
// errors.Is(err, ErrConfiguration) истинно для ErrInvalidK.
type AppError struct {
	Code    string                 `json:"code"`
	Kind    string                 `json:"kind"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Fatal   bool                   `json:"-"`

	cause error
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap возвращает исходную ошибку, если она есть
func (e *AppError) Unwrap() error {
	return e.cause
}

// Is - совпадение по коду или по категории
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code || t.Code == e.Kind
}

func New(code, kind, message string, fatal bool) *AppError {
	return &AppError{
		Code:    code,
		Kind:    kind,
		Message: message,
		Fatal:   fatal,
	}
}

func (e *AppError) clone() *AppError {
	c := *e
	if e.Details != nil {
		c.Details = make(map[string]interface{}, len(e.Details))
		for k, v := range e.Details {
			c.Details[k] = v
		}
	}
	return &c
}

// WithDetails возвращает копию ошибки с деталями. Sentinel-значения не изменяются.
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	c := e.clone()
	if c.Details == nil {
		c.Details = make(map[string]interface{}, len(details))
	}
	for k, v := range details {
		c.Details[k] = v
	}
	return c
}

// Wrap возвращает копию ошибки с причиной
func (e *AppError) Wrap(cause error) *AppError {
	c := e.clone()
	c.cause = cause
	return c
}

// Withf возвращает копию ошибки с уточнённым сообщением
func (e *AppError) Withf(format string, args ...interface{}) *AppError {
	c := e.clone()
	c.Message = fmt.Sprintf("%s: %s", e.Message, fmt.Sprintf(format, args...))
	return c
}

// IsFatal - true, если ошибка прерывает операцию.
// Ошибки не из таксономии считаются фатальными.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var appErr *AppError
	if As(err, &appErr) {
		return appErr.Fatal
	}
	return true
}

// CodeOf возвращает код AppError из цепочки или INTERNAL_ERROR
func CodeOf(err error) string {
	var appErr *AppError
	if As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// Is и As - обёртки над стандартной библиотекой, чтобы не импортировать оба пакета errors
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

func As(err error, target interface{}) bool {
	return stderrors.As(err, target)
}
