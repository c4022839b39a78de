package es

import (
	"fmt"
	"log/slog"
	"strconv"
)

// ExpectedVersion is the optimistic concurrency token supplied on writes.
// Its integer value is also its transport encoding: AnyVersion (-2),
// NoOrEmptyStream (-1) or an explicit, non-negative stream version.
type ExpectedVersion int64

const (
	// AnyVersion disables the concurrency check.
	AnyVersion ExpectedVersion = -2
	// NoOrEmptyStream requires the stream to be absent or empty.
	NoOrEmptyStream ExpectedVersion = -1
)

// ExactVersion expects the stream to have exactly v events.
func ExactVersion(v int64) (ExpectedVersion, error) {
	if v < 0 {
		return 0, &ContractViolationError{Msg: fmt.Sprintf("explicit expected version must be >= 0, got %d", v)}
	}
	return ExpectedVersion(v), nil
}

func MustExactVersion(v int64) ExpectedVersion {
	ev, err := ExactVersion(v)
	if err != nil {
		panic(err)
	}
	return ev
}

func (v ExpectedVersion) Int64() int64      { return int64(v) }
func (v ExpectedVersion) IsAny() bool       { return v == AnyVersion }
func (v ExpectedVersion) IsNoOrEmpty() bool { return v == NoOrEmptyStream }
func (v ExpectedVersion) IsExact() bool     { return v >= 0 }

func (v ExpectedVersion) Validate() error {
	if v < AnyVersion {
		return &ContractViolationError{Msg: fmt.Sprintf("invalid expected version %d", int64(v))}
	}
	return nil
}

// Matches reports whether a stream with current events satisfies v. A
// stream that does not exist has version 0.
func (v ExpectedVersion) Matches(current int64) bool {
	switch {
	case v == AnyVersion:
		return true
	case v == NoOrEmptyStream:
		return current == 0
	default:
		return current == int64(v)
	}
}

func (v ExpectedVersion) String() string {
	switch v {
	case AnyVersion:
		return "ANY"
	case NoOrEmptyStream:
		return "NO_OR_EMPTY_STREAM"
	default:
		return strconv.FormatInt(int64(v), 10)
	}
}

func (v ExpectedVersion) SlogAttr() slog.Attr                  { return v.SlogAttrWithKey("expected_version") }
func (v ExpectedVersion) SlogAttrWithKey(key string) slog.Attr { return slog.String(key, v.String()) }
