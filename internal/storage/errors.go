package storage

import (
	"errors"
	"fmt"
)

// ErrorCode classifies store failures for callers that need to branch on them.
type ErrorCode string

const (
	CodeWriteFailed ErrorCode = "WRITE_FAILED"
	CodeReadFailed  ErrorCode = "READ_FAILED"
	CodeClosed      ErrorCode = "CLOSED"
)

// Error is returned by every Store operation that fails.
type Error struct {
	Code ErrorCode
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches sentinel errors by code so errors.Is(err, ErrWriteFailed) works
// on any wrapped write failure.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil {
		return false
	}
	return t.Err == nil && t.Op == "" && t.Code == e.Code
}

var (
	ErrWriteFailed = &Error{Code: CodeWriteFailed}
	ErrReadFailed  = &Error{Code: CodeReadFailed}
	ErrClosed      = &Error{Code: CodeClosed}
)

func writeError(op string, err error) error {
	return &Error{Code: CodeWriteFailed, Op: op, Err: err}
}

func readError(op string, err error) error {
	return &Error{Code: CodeReadFailed, Op: op, Err: err}
}

// IsCode reports whether err carries the given store error code.
func IsCode(err error, code ErrorCode) bool {
	var sErr *Error
	if errors.As(err, &sErr) {
		return sErr.Code == code
	}
	return false
}
