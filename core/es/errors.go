package es

import (
	"errors"
	"fmt"

	"github.com/codewandler/esc-go/core/serial"
)

var (
	ErrStreamNotFound       = errors.New("stream not found")
	ErrStreamDeleted        = errors.New("stream deleted")
	ErrStreamAlreadyExists  = errors.New("stream already exists")
	ErrStreamReadOnly       = errors.New("stream is read-only")
	ErrEventNotFound        = errors.New("event not found")
	ErrWrongExpectedVersion = errors.New("wrong expected version")

	ErrFormat            = serial.ErrFormat
	ErrNotFound          = serial.ErrNotFound
	ErrContractViolation = serial.ErrContractViolation
)

type (
	FormatError            = serial.FormatError
	NotFoundError          = serial.NotFoundError
	ContractViolationError = serial.ContractViolationError
)

type StreamNotFoundError struct{ StreamID StreamID }

func (e *StreamNotFoundError) Error() string {
	return fmt.Sprintf("stream %q not found", e.StreamID.Name())
}
func (e *StreamNotFoundError) Is(target error) bool { return target == ErrStreamNotFound }

type StreamDeletedError struct {
	StreamID StreamID
	State    StreamState
}

func (e *StreamDeletedError) Error() string {
	return fmt.Sprintf("stream %q is deleted (%s)", e.StreamID.Name(), e.State)
}
func (e *StreamDeletedError) Is(target error) bool { return target == ErrStreamDeleted }

type StreamAlreadyExistsError struct{ StreamID StreamID }

func (e *StreamAlreadyExistsError) Error() string {
	return fmt.Sprintf("stream %q already exists", e.StreamID.Name())
}
func (e *StreamAlreadyExistsError) Is(target error) bool { return target == ErrStreamAlreadyExists }

type StreamReadOnlyError struct{ StreamID StreamID }

func (e *StreamReadOnlyError) Error() string {
	return fmt.Sprintf("stream %q is read-only", e.StreamID.Name())
}
func (e *StreamReadOnlyError) Is(target error) bool { return target == ErrStreamReadOnly }

type EventNotFoundError struct {
	StreamID    StreamID
	EventNumber int64
}

func (e *EventNotFoundError) Error() string {
	return fmt.Sprintf("event %d not found in stream %q", e.EventNumber, e.StreamID.Name())
}
func (e *EventNotFoundError) Is(target error) bool { return target == ErrEventNotFound }

// WrongExpectedVersionError is the optimistic concurrency failure. Actual is
// the stream version observed by the backend.
type WrongExpectedVersionError struct {
	StreamID StreamID
	Expected ExpectedVersion
	Actual   int64
}

func (e *WrongExpectedVersionError) Error() string {
	return fmt.Sprintf(
		"wrong expected version for stream %q: expected %s, actual %d",
		e.StreamID.Name(),
		e.Expected,
		e.Actual,
	)
}

func (e *WrongExpectedVersionError) Is(target error) bool { return target == ErrWrongExpectedVersion }
