package record

import (
	"errors"
	"fmt"
)

// Code categorizes model errors.
type Code string

const (
	// CodeDuplicateEntryName indicates two entries share a name in one schema.
	CodeDuplicateEntryName Code = "DUPLICATE_ENTRY_NAME"

	// CodeAnchorNotFound indicates a positional insert named a missing anchor.
	CodeAnchorNotFound Code = "ANCHOR_NOT_FOUND"

	// CodeEntryNotFound indicates a schema removal named a missing entry.
	CodeEntryNotFound Code = "ENTRY_NOT_FOUND"

	// CodeUnknownEntry indicates a record builder was given a name the
	// schema does not declare.
	CodeUnknownEntry Code = "UNKNOWN_ENTRY"

	// CodeTypeMismatch indicates a value or setter does not match the
	// entry's declared type.
	CodeTypeMismatch Code = "TYPE_MISMATCH"

	// CodeNonNullableViolation indicates nil was set on a non-nullable entry.
	CodeNonNullableViolation Code = "NON_NULLABLE_VIOLATION"

	// CodeMissingRequiredValue indicates a non-nullable entry had no value
	// at build time.
	CodeMissingRequiredValue Code = "MISSING_REQUIRED_VALUE"

	// CodeInvalidEntry indicates an entry definition breaks its own
	// invariants (missing name, unknown type, misplaced element schema).
	CodeInvalidEntry Code = "INVALID_ENTRY"
)

// Error is returned by every builder in this package.
// Entry names the entry involved, when there is one.
type Error struct {
	Code    Code
	Entry   string
	Message string
}

func (e *Error) Error() string {
	switch {
	case e.Message == "":
		return string(e.Code)
	case e.Entry != "":
		return fmt.Sprintf("%s: %s (entry=%s)", e.Code, e.Message, e.Entry)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// Is matches sentinel errors by code, so errors.Is(err, ErrTypeMismatch)
// holds for every type mismatch regardless of entry and message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Entry == "" && t.Code == e.Code
}

// Sentinels for errors.Is.
var (
	ErrDuplicateEntryName   = &Error{Code: CodeDuplicateEntryName}
	ErrAnchorNotFound       = &Error{Code: CodeAnchorNotFound}
	ErrEntryNotFound        = &Error{Code: CodeEntryNotFound}
	ErrUnknownEntry         = &Error{Code: CodeUnknownEntry}
	ErrTypeMismatch         = &Error{Code: CodeTypeMismatch}
	ErrNonNullableViolation = &Error{Code: CodeNonNullableViolation}
	ErrMissingRequiredValue = &Error{Code: CodeMissingRequiredValue}
	ErrInvalidEntry         = &Error{Code: CodeInvalidEntry}
)

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) (Code, bool) {
	var re *Error
	if errors.As(err, &re) {
		return re.Code, true
	}
	return "", false
}

func newError(code Code, entry, format string, args ...any) *Error {
	return &Error{Code: code, Entry: entry, Message: fmt.Sprintf(format, args...)}
}
