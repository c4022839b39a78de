package es

import (
	"context"
	"errors"
	"fmt"

	"github.com/codewandler/esc-go/core/serial"
)

// Outcomes a Backend reports. The Store maps them to the public error types
// and adds the stream id.
var (
	ErrBackendStreamNotFound    = errors.New("backend: stream not found")
	ErrBackendStreamExists      = errors.New("backend: stream already exists")
	ErrBackendCreateUnsupported = errors.New("backend: stream creation not supported")
)

// BackendConflictError is returned by Append and Delete when the expected
// version does not match. Actual is the version the backend observed.
type BackendConflictError struct{ Actual int64 }

func (e *BackendConflictError) Error() string {
	return fmt.Sprintf("backend: version conflict (actual %d)", e.Actual)
}

// BackendDeletedError is returned when a stream exists but was deleted.
type BackendDeletedError struct{ State StreamState }

func (e *BackendDeletedError) Error() string {
	return fmt.Sprintf("backend: stream is %s", e.State)
}

// Record is one stored event: its id, its 0-based position in the stream
// and its envelope.
type Record struct {
	EventID EventID
	Number  int64
	Data    serial.SerializedData
}

// StreamInfo describes a stream as seen by a backend. Version is the number
// of events in the stream.
type StreamInfo struct {
	Exists  bool
	State   StreamState
	Version int64
}

// Backend persists envelopes keyed by stream name. It never inspects
// payloads. Implementations must apply the expected version check
// atomically with the write (row lock, compare-and-swap, ...).
type Backend interface {
	// Info returns the state of a stream; a missing stream is not an error.
	Info(ctx context.Context, name string) (StreamInfo, error)
	// Create creates an empty stream. It returns ErrBackendStreamExists,
	// BackendDeletedError for deleted streams or, for backends without
	// explicit streams, ErrBackendCreateUnsupported.
	Create(ctx context.Context, id StreamID) error
	// Append writes records at the end of the stream and returns the new
	// version. Record numbers are assigned by the backend.
	Append(ctx context.Context, name string, expected ExpectedVersion, records []Record) (int64, error)
	// Read returns up to count records starting at from, ordered by dir.
	Read(ctx context.Context, name string, from int64, count int, dir Direction) ([]Record, error)
	// Delete marks the stream soft or hard deleted.
	Delete(ctx context.Context, name string, expected ExpectedVersion, hard bool) error
	Close() error
}

// CheckCreate rejects creating a stream that already exists. Deleted streams
// keep their name.
func CheckCreate(info StreamInfo) error {
	switch {
	case !info.Exists:
		return nil
	case info.State.IsDeleted():
		return &BackendDeletedError{State: info.State}
	default:
		return ErrBackendStreamExists
	}
}

// CheckWrite applies the state and version checks every backend performs
// before writing. It is exported for backend implementations.
func CheckWrite(info StreamInfo, expected ExpectedVersion) error {
	if !info.Exists {
		return ErrBackendStreamNotFound
	}
	if info.State.IsDeleted() {
		return &BackendDeletedError{State: info.State}
	}
	if !expected.Matches(info.Version) {
		return &BackendConflictError{Actual: info.Version}
	}
	return nil
}

// CheckDelete is CheckWrite for deletions: soft deleted streams may be
// deleted again (hard), hard deleted streams are gone.
func CheckDelete(info StreamInfo, expected ExpectedVersion) error {
	if !info.Exists {
		return ErrBackendStreamNotFound
	}
	if info.State == StreamHardDeleted {
		return &BackendDeletedError{State: info.State}
	}
	if !expected.Matches(info.Version) {
		return &BackendConflictError{Actual: info.Version}
	}
	return nil
}

// CheckRead rejects reads on missing or deleted streams.
func CheckRead(info StreamInfo) error {
	if !info.Exists {
		return ErrBackendStreamNotFound
	}
	if info.State.IsDeleted() {
		return &BackendDeletedError{State: info.State}
	}
	return nil
}

// ReadRange computes the [lo, hi) range of event numbers to read from a
// stream with version events.
func ReadRange(version, from int64, count int, dir Direction) (lo, hi int64) {
	if dir == Backward {
		hi = min(from+1, version)
		lo = max(0, from-int64(count)+1)
	} else {
		lo = from
		hi = min(from+int64(count), version)
	}
	lo = min(lo, version)
	if hi < lo {
		hi = lo
	}
	return lo, hi
}
