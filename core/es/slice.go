package es

import (
	"context"
	"fmt"
	"log/slog"
)

// StreamEventsSlice is one page of a stream read in one direction.
type StreamEventsSlice struct {
	FromEventNumber int64
	Events          []CommonEvent
	NextEventNumber int64
	EndOfStream     bool
}

func (s StreamEventsSlice) Len() int { return len(s.Events) }

// Direction of a range read.
type Direction int

const (
	Forward Direction = iota
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// newForwardSlice builds a forward page; events is never nil.
func newForwardSlice(start int64, count int, events []CommonEvent) StreamEventsSlice {
	if events == nil {
		events = []CommonEvent{}
	}
	return StreamEventsSlice{
		FromEventNumber: start,
		Events:          events,
		NextEventNumber: start + int64(len(events)),
		EndOfStream:     len(events) < count,
	}
}

func newBackwardSlice(start int64, count int, events []CommonEvent) StreamEventsSlice {
	if events == nil {
		events = []CommonEvent{}
	}
	return StreamEventsSlice{
		FromEventNumber: start,
		Events:          events,
		NextEventNumber: max(0, start-int64(count)),
		EndOfStream:     start-int64(count) < 0,
	}
}

// ReadAllForward pages through the whole stream.
func ReadAllForward(ctx context.Context, store EventStore, id StreamID, pageSize int) ([]CommonEvent, error) {
	var (
		all  []CommonEvent
		next int64
	)
	for {
		slice, err := store.ReadEventsForward(ctx, id, next, pageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, slice.Events...)
		if slice.EndOfStream {
			return all, nil
		}
		next = slice.NextEventNumber
	}
}

// StreamState is the lifecycle state of a stream. The numeric values are
// persisted by backends and must not change.
type StreamState int

const (
	StreamActive      StreamState = 0
	StreamSoftDeleted StreamState = 1
	StreamHardDeleted StreamState = 2
)

func (s StreamState) IsDeleted() bool { return s != StreamActive }

func (s StreamState) String() string {
	switch s {
	case StreamActive:
		return "ACTIVE"
	case StreamSoftDeleted:
		return "SOFT_DELETED"
	case StreamHardDeleted:
		return "HARD_DELETED"
	default:
		return fmt.Sprintf("StreamState(%d)", int(s))
	}
}

// StreamStateOf decodes a persisted state.
func StreamStateOf(code int) (StreamState, error) {
	s := StreamState(code)
	switch s {
	case StreamActive, StreamSoftDeleted, StreamHardDeleted:
		return s, nil
	}
	return 0, fmt.Errorf("unknown stream state %d", code)
}

func (s StreamState) SlogAttr() slog.Attr { return slog.String("state", s.String()) }
