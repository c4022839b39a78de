package es

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codewandler/esc-go/core/serial"
)

// === Helpers ===

type TestingStore struct {
	*Store
	t testing.TB
}

// StartTestStore returns a Store on a fresh in-memory backend that is closed
// when the test ends.
func StartTestStore(t testing.TB, registry *serial.Registry, opts ...StoreOption) *TestingStore {
	t.Helper()
	s := NewInMemoryStore(registry, opts...)
	t.Cleanup(func() { _ = s.Close() })
	return &TestingStore{Store: s, t: t}
}

func (s *TestingStore) Assert() *TestingStoreAssert {
	return &TestingStoreAssert{store: s.Store, t: s.t}
}

// AssertStore wraps any EventStore with test assertions.
func AssertStore(t testing.TB, store EventStore) *TestingStoreAssert {
	return &TestingStoreAssert{store: store, t: t}
}

type TestingStoreAssert struct {
	store EventStore
	t     testing.TB
}

// Append appends events and fails the test on error.
func (a *TestingStoreAssert) Append(
	ctx context.Context,
	id StreamID,
	expected ExpectedVersion,
	events ...CommonEvent,
) int64 {
	a.t.Helper()
	v, err := a.store.AppendToStream(ctx, id, expected, events...)
	require.NoError(a.t, err)
	return v
}

// Events reads the whole stream forward.
func (a *TestingStoreAssert) Events(ctx context.Context, id StreamID) []CommonEvent {
	a.t.Helper()
	events, err := ReadAllForward(ctx, a.store, id, 100)
	require.NoError(a.t, err)
	return events
}

// Len asserts the number of events in the stream.
func (a *TestingStoreAssert) Len(ctx context.Context, id StreamID, want int) {
	a.t.Helper()
	require.Len(a.t, a.Events(ctx, id), want)
}

// State asserts the stream state.
func (a *TestingStoreAssert) State(ctx context.Context, id StreamID, want StreamState) {
	a.t.Helper()
	got, err := a.store.StreamState(ctx, id)
	require.NoError(a.t, err)
	require.Equal(a.t, want, got)
}
