package serial

import (
	"errors"
	"fmt"
)

var (
	ErrFormat            = errors.New("format error")
	ErrNotFound          = errors.New("not found")
	ErrContractViolation = errors.New("contract violation")
)

// FormatError reports a malformed mime type, envelope or payload.
type FormatError struct {
	What  string
	Value string
	Err   error
}

func (e *FormatError) Error() string {
	msg := fmt.Sprintf("invalid %s", e.What)
	if e.Value != "" {
		msg += fmt.Sprintf(" %q", e.Value)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FormatError) Unwrap() error        { return e.Err }
func (e *FormatError) Is(target error) bool { return target == ErrFormat }

// NotFoundError is returned when no codec is registered for a type.
type NotFoundError struct {
	Kind     string // serializer, deserializer or mime type
	Type     SerializedDataType
	MimeType string
}

func (e *NotFoundError) Error() string {
	if e.MimeType != "" {
		return fmt.Sprintf("no %s registered for type %q and mime type %q", e.Kind, e.Type, e.MimeType)
	}
	return fmt.Sprintf("no %s registered for type %q", e.Kind, e.Type)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ContractViolationError signals invalid construction arguments. It is a
// programming error; Must* helpers panic with it.
type ContractViolationError struct {
	Msg string
}

func (e *ContractViolationError) Error() string        { return "contract violation: " + e.Msg }
func (e *ContractViolationError) Is(target error) bool { return target == ErrContractViolation }

func contractViolation(format string, args ...any) error {
	return &ContractViolationError{Msg: fmt.Sprintf(format, args...)}
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
