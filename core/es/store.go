package es

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/codewandler/esc-go/core/serial"
)

// EventStore is the backend agnostic event store API.
type EventStore interface {
	// CreateStream creates an empty stream. Backends without explicit
	// streams treat it as a no-op.
	CreateStream(ctx context.Context, id StreamID) error
	// AppendToStream appends events and returns the new stream version.
	AppendToStream(ctx context.Context, id StreamID, expected ExpectedVersion, events ...CommonEvent) (int64, error)
	ReadEventsForward(ctx context.Context, id StreamID, start int64, count int) (StreamEventsSlice, error)
	ReadEventsBackward(ctx context.Context, id StreamID, start int64, count int) (StreamEventsSlice, error)
	ReadEvent(ctx context.Context, id StreamID, eventNumber int64) (CommonEvent, error)
	DeleteStream(ctx context.Context, id StreamID, expected ExpectedVersion, hardDelete bool) error
	StreamExists(ctx context.Context, id StreamID) (bool, error)
	StreamState(ctx context.Context, id StreamID) (StreamState, error)
	Close() error
}

// Store implements EventStore on top of a Backend. It owns serialization,
// the idempotent append check and error mapping; the backend owns
// persistence and mutual exclusion.
type Store struct {
	backend Backend
	codec   *EnvelopeCodec
	format  Format
	log     *slog.Logger
	metrics StoreMetrics
}

func NewStore(backend Backend, registry *serial.Registry, opts ...StoreOption) *Store {
	o := newStoreOptions(opts)
	return &Store{
		backend: backend,
		codec:   NewEnvelopeCodec(registry),
		format:  o.format,
		log:     o.log.With(slog.String("store", "esc"), slog.String("format", o.format.String())),
		metrics: o.metrics,
	}
}

func (s *Store) Codec() *EnvelopeCodec { return s.codec }
func (s *Store) Backend() Backend      { return s.backend }

func (s *Store) Close() error {
	if err := s.backend.Close(); err != nil {
		return err
	}
	s.log.Debug("closed")
	return nil
}

func (s *Store) CreateStream(ctx context.Context, id StreamID) error {
	if id.IsProjection() {
		return &StreamReadOnlyError{StreamID: id}
	}
	err := s.backend.Create(ctx, id)
	switch {
	case err == nil:
		s.log.Debug("created stream", StreamSlogAttr(id))
		return nil
	case errors.Is(err, ErrBackendCreateUnsupported):
		return nil
	default:
		return s.mapError(id, err, true)
	}
}

func (s *Store) AppendToStream(
	ctx context.Context,
	id StreamID,
	expected ExpectedVersion,
	events ...CommonEvent,
) (version int64, err error) {
	if id.IsProjection() {
		return 0, &StreamReadOnlyError{StreamID: id}
	}
	if err := expected.Validate(); err != nil {
		return 0, err
	}
	if len(events) == 0 {
		info, err := s.backend.Info(ctx, id.Name())
		if err != nil {
			return 0, err
		}
		return info.Version, nil
	}

	category := streamCategory(id)
	defer s.metrics.AppendDuration(category).ObserveDuration()

	records, err := s.encode(events)
	if err != nil {
		return 0, err
	}

	version, err = s.backend.Append(ctx, id.Name(), expected, records)
	if errors.Is(err, ErrBackendStreamNotFound) {
		if cerr := s.backend.Create(ctx, id); cerr != nil &&
			!errors.Is(cerr, ErrBackendStreamExists) &&
			!errors.Is(cerr, ErrBackendCreateUnsupported) {
			return 0, fmt.Errorf("create stream %q: %w", id.Name(), cerr)
		}
		version, err = s.backend.Append(ctx, id.Name(), expected, records)
	}

	var conflict *BackendConflictError
	if errors.As(err, &conflict) {
		return s.resolveConflict(ctx, id, expected, conflict.Actual, records)
	}
	if err != nil {
		return 0, s.mapError(id, err, true)
	}

	s.metrics.EventsAppended(category, len(records))
	s.log.Debug(
		"appended",
		StreamSlogAttr(id),
		expected.SlogAttr(),
		slog.Int("num_events", len(records)),
		slog.Int64("version", version),
	)
	return version, nil
}

// resolveConflict turns a version conflict into success when the proposed
// events are already the tail of the stream, i.e. the call is a retry of an
// append that went through.
func (s *Store) resolveConflict(
	ctx context.Context,
	id StreamID,
	expected ExpectedVersion,
	actual int64,
	records []Record,
) (int64, error) {
	category := streamCategory(id)
	if expected.IsExact() || expected.IsNoOrEmpty() {
		same, err := s.isTail(ctx, id, actual, records)
		if err != nil {
			return 0, err
		}
		if same {
			s.metrics.IdempotentAppend(category)
			s.log.Debug(
				"append already applied",
				StreamSlogAttr(id),
				expected.SlogAttr(),
				slog.Int64("version", actual),
			)
			return actual, nil
		}
	}
	s.metrics.ConcurrencyConflict(category)
	return 0, &WrongExpectedVersionError{StreamID: id, Expected: expected, Actual: actual}
}

func (s *Store) isTail(ctx context.Context, id StreamID, version int64, records []Record) (bool, error) {
	n := int64(len(records))
	if version < n {
		return false, nil
	}
	stored, err := s.backend.Read(ctx, id.Name(), version-n, len(records), Forward)
	if err != nil {
		return false, s.mapError(id, err, true)
	}
	if len(stored) != len(records) {
		return false, nil
	}
	for i := range records {
		same, err := s.sameRecord(stored[i], records[i])
		if err != nil || !same {
			return false, err
		}
	}
	return true, nil
}

// sameRecord compares the serialized form of a stored and a proposed event.
// Records written in another envelope format are re-encoded first.
func (s *Store) sameRecord(stored, proposed Record) (bool, error) {
	if stored.EventID != proposed.EventID {
		return false, nil
	}
	if !stored.Data.MimeType.HasBase(proposed.Data.MimeType) {
		e, err := s.codec.Decode(stored.Data)
		if err != nil {
			return false, err
		}
		if stored.Data, err = s.codec.Encode(s.format, e); err != nil {
			return false, err
		}
	}
	return stored.Data.Equal(proposed.Data), nil
}

func (s *Store) ReadEventsForward(ctx context.Context, id StreamID, start int64, count int) (StreamEventsSlice, error) {
	events, err := s.read(ctx, id, start, count, Forward)
	if err != nil {
		return StreamEventsSlice{}, err
	}
	return newForwardSlice(start, count, events), nil
}

func (s *Store) ReadEventsBackward(ctx context.Context, id StreamID, start int64, count int) (StreamEventsSlice, error) {
	events, err := s.read(ctx, id, start, count, Backward)
	if err != nil {
		return StreamEventsSlice{}, err
	}
	return newBackwardSlice(start, count, events), nil
}

func (s *Store) ReadEvent(ctx context.Context, id StreamID, eventNumber int64) (CommonEvent, error) {
	if eventNumber < 0 {
		return CommonEvent{}, &EventNotFoundError{StreamID: id, EventNumber: eventNumber}
	}
	events, err := s.read(ctx, id, eventNumber, 1, Forward)
	if err != nil {
		return CommonEvent{}, err
	}
	if len(events) == 0 {
		return CommonEvent{}, &EventNotFoundError{StreamID: id, EventNumber: eventNumber}
	}
	return events[0], nil
}

func (s *Store) read(ctx context.Context, id StreamID, start int64, count int, dir Direction) (events []CommonEvent, err error) {
	if start < 0 {
		return nil, &ContractViolationError{Msg: fmt.Sprintf("start must be >= 0, got %d", start)}
	}
	if count < 1 {
		return nil, &ContractViolationError{Msg: fmt.Sprintf("count must be >= 1, got %d", count)}
	}

	var (
		category = streamCategory(id)
		startAt  = time.Now()
	)
	defer s.metrics.ReadDuration(category).ObserveDuration()
	defer func() {
		if err == nil {
			s.log.Debug(
				"read",
				StreamSlogAttr(id),
				slog.String("direction", dir.String()),
				slog.Int64("start", start),
				slog.Int("count", count),
				slog.Int("num_events", len(events)),
				slog.Duration("duration", time.Since(startAt)),
			)
		}
	}()

	records, err := s.backend.Read(ctx, id.Name(), start, count, dir)
	if err != nil {
		return nil, s.mapError(id, err, false)
	}
	events = make([]CommonEvent, 0, len(records))
	for _, r := range records {
		e, err := s.codec.Decode(r.Data)
		if err != nil {
			return nil, fmt.Errorf("decode event %d of stream %q: %w", r.Number, id.Name(), err)
		}
		events = append(events, e)
	}
	s.metrics.EventsRead(category, len(events))
	return events, nil
}

func (s *Store) DeleteStream(ctx context.Context, id StreamID, expected ExpectedVersion, hardDelete bool) error {
	if id.IsProjection() {
		return &StreamReadOnlyError{StreamID: id}
	}
	if err := expected.Validate(); err != nil {
		return err
	}
	err := s.backend.Delete(ctx, id.Name(), expected, hardDelete)
	var conflict *BackendConflictError
	if errors.As(err, &conflict) {
		s.metrics.ConcurrencyConflict(streamCategory(id))
		return &WrongExpectedVersionError{StreamID: id, Expected: expected, Actual: conflict.Actual}
	}
	if err != nil {
		return s.mapError(id, err, true)
	}
	s.log.Debug("deleted stream", StreamSlogAttr(id), expected.SlogAttr(), slog.Bool("hard", hardDelete))
	return nil
}

// StreamExists reports whether the stream exists and is not deleted.
func (s *Store) StreamExists(ctx context.Context, id StreamID) (bool, error) {
	info, err := s.backend.Info(ctx, id.Name())
	if err != nil {
		return false, err
	}
	return info.Exists && info.State == StreamActive, nil
}

func (s *Store) StreamState(ctx context.Context, id StreamID) (StreamState, error) {
	info, err := s.backend.Info(ctx, id.Name())
	if err != nil {
		return 0, err
	}
	if !info.Exists {
		return 0, &StreamNotFoundError{StreamID: id}
	}
	return info.State, nil
}

func (s *Store) encode(events []CommonEvent) ([]Record, error) {
	records := make([]Record, 0, len(events))
	for i, e := range events {
		sd, err := s.codec.Encode(s.format, e)
		if err != nil {
			return nil, fmt.Errorf("encode event %d (%s): %w", i, e.ID, err)
		}
		records = append(records, Record{EventID: e.ID, Number: -1, Data: sd})
	}
	return records, nil
}

// mapError converts backend outcomes to the public error types. Soft
// deleted streams look like missing streams to readers; writers get
// StreamDeletedError.
func (s *Store) mapError(id StreamID, err error, write bool) error {
	var deleted *BackendDeletedError
	switch {
	case errors.Is(err, ErrBackendStreamNotFound):
		return &StreamNotFoundError{StreamID: id}
	case errors.Is(err, ErrBackendStreamExists):
		return &StreamAlreadyExistsError{StreamID: id}
	case errors.As(err, &deleted):
		if deleted.State == StreamSoftDeleted && !write {
			return &StreamNotFoundError{StreamID: id}
		}
		return &StreamDeletedError{StreamID: id, State: deleted.State}
	default:
		return err
	}
}

var _ EventStore = (*Store)(nil)
