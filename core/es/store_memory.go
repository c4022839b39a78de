package es

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/codewandler/esc-go/core/serial"
)

type (
	memoryBackendOptions struct {
		log           *slog.Logger
		disableCreate bool
	}
	MemoryBackendOption func(*memoryBackendOptions)
)

// WithMemoryLog sets the logger of the in-memory backend.
func WithMemoryLog(l *slog.Logger) MemoryBackendOption {
	return func(o *memoryBackendOptions) { o.log = l }
}

// WithoutStreamCreation makes the backend behave like a store that does not
// allow clients to create streams: Create is a no-op and writes to unknown
// streams fail.
func WithoutStreamCreation() MemoryBackendOption {
	return func(o *memoryBackendOptions) { o.disableCreate = true }
}

// InMemoryBackend is a simple, correct (pessimistic) backend for tests/dev.
type InMemoryBackend struct {
	mu            sync.Mutex
	log           *slog.Logger
	disableCreate bool
	streams       map[string]*memoryStream
}

type memoryStream struct {
	state   StreamState
	records []Record
}

func NewInMemoryBackend(opts ...MemoryBackendOption) *InMemoryBackend {
	o := memoryBackendOptions{log: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return &InMemoryBackend{
		log:           o.log.With(slog.String("backend", "memory")),
		disableCreate: o.disableCreate,
		streams:       map[string]*memoryStream{},
	}
}

// NewInMemoryStore is a Store on a fresh InMemoryBackend.
func NewInMemoryStore(registry *serial.Registry, opts ...StoreOption) *Store {
	return NewStore(NewInMemoryBackend(), registry, opts...)
}

func (b *InMemoryBackend) infoLocked(name string) StreamInfo {
	s, ok := b.streams[name]
	if !ok {
		return StreamInfo{}
	}
	return StreamInfo{Exists: true, State: s.state, Version: int64(len(s.records))}
}

func (b *InMemoryBackend) Info(_ context.Context, name string) (StreamInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.infoLocked(name), nil
}

func (b *InMemoryBackend) Create(_ context.Context, id StreamID) error {
	if b.disableCreate {
		return ErrBackendCreateUnsupported
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := CheckCreate(b.infoLocked(id.Name())); err != nil {
		return err
	}
	b.streams[id.Name()] = &memoryStream{}
	return nil
}

func (b *InMemoryBackend) Append(_ context.Context, name string, expected ExpectedVersion, records []Record) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := CheckWrite(b.infoLocked(name), expected); err != nil {
		return 0, err
	}
	s := b.streams[name]
	for _, r := range records {
		r.Number = int64(len(s.records))
		s.records = append(s.records, r)
	}
	b.log.Debug(
		"append",
		slog.String("stream", name),
		slog.Int("num_events", len(records)),
		slog.Int("version", len(s.records)),
	)
	return int64(len(s.records)), nil
}

func (b *InMemoryBackend) Read(_ context.Context, name string, from int64, count int, dir Direction) ([]Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	info := b.infoLocked(name)
	if err := CheckRead(info); err != nil {
		return nil, err
	}
	lo, hi := ReadRange(info.Version, from, count, dir)
	out := slices.Clone(b.streams[name].records[lo:hi])
	if dir == Backward {
		slices.Reverse(out)
	}
	return out, nil
}

func (b *InMemoryBackend) Delete(_ context.Context, name string, expected ExpectedVersion, hard bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := CheckDelete(b.infoLocked(name), expected); err != nil {
		return err
	}
	s := b.streams[name]
	if hard {
		s.state = StreamHardDeleted
		s.records = nil
	} else {
		s.state = StreamSoftDeleted
	}
	return nil
}

func (b *InMemoryBackend) Close() error { return nil }

var _ Backend = (*InMemoryBackend)(nil)
