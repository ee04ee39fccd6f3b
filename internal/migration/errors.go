package migration

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes migration errors.
type ErrorCode string

const (
	// ErrCodeKeyNotFound indicates an operation read a key that is absent.
	ErrCodeKeyNotFound ErrorCode = "KEY_NOT_FOUND"

	// ErrCodeKeyExists indicates an add targeted a key that is present.
	ErrCodeKeyExists ErrorCode = "KEY_EXISTS"

	// ErrCodeInvalidPlan indicates a plan definition is malformed.
	ErrCodeInvalidPlan ErrorCode = "INVALID_PLAN"
)

// Error is returned by Config operations and plan loading.
type Error struct {
	Code    ErrorCode
	Key     string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsKeyNotFound reports whether err is a missing-key error.
// Uses errors.As to handle wrapped errors.
func IsKeyNotFound(err error) bool {
	var me *Error
	if errors.As(err, &me) {
		return me.Code == ErrCodeKeyNotFound
	}
	return false
}

// IsKeyExists reports whether err is a duplicate-key error.
func IsKeyExists(err error) bool {
	var me *Error
	if errors.As(err, &me) {
		return me.Code == ErrCodeKeyExists
	}
	return false
}

func keyNotFound(key string) *Error {
	return &Error{Code: ErrCodeKeyNotFound, Key: key, Message: fmt.Sprintf("Key %s does not exist", key)}
}

func keyExists(key string) *Error {
	return &Error{Code: ErrCodeKeyExists, Key: key, Message: fmt.Sprintf("Key %s already exists", key)}
}

func invalidPlan(format string, args ...any) *Error {
	return &Error{Code: ErrCodeInvalidPlan, Message: fmt.Sprintf(format, args...)}
}
