// Package estests is the conformance suite every es.Backend passes. Backend
// packages call Run from their tests with a factory for fresh backends.
package estests

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/stretchr/testify/require"

	"github.com/codewandler/esc-go/core/es"
	"github.com/codewandler/esc-go/core/es/estests/domain"
)

// NewBackend returns a backend for one sub test. Backends may be shared
// between sub tests; every test writes to its own streams.
type NewBackend func(t *testing.T) es.Backend

type suite struct {
	newBackend NewBackend
}

// Run executes the conformance suite in both envelope formats.
func Run(t *testing.T, newBackend NewBackend) {
	s := &suite{newBackend: newBackend}
	for _, f := range []es.Format{es.FormatJSON, es.FormatXML} {
		t.Run(f.String(), func(t *testing.T) {
			t.Run("orders scenario", s.wrap(f, testOrdersScenario))
			t.Run("idempotent append", s.wrap(f, testIdempotentAppend))
			t.Run("wrong expected version", s.wrap(f, testWrongExpectedVersion))
			t.Run("pagination", s.wrap(f, testPagination))
			t.Run("read event", s.wrap(f, testReadEvent))
			t.Run("metadata", s.wrap(f, testMetadata))
			t.Run("hard delete", s.wrap(f, testHardDelete))
			t.Run("soft delete", s.wrap(f, testSoftDelete))
			t.Run("create stream", s.wrap(f, testCreateStream))
			t.Run("concurrent appends", s.wrap(f, testConcurrentAppends))
		})
	}
	t.Run("mixed formats", func(t *testing.T) { testMixedFormats(t, newBackend(t)) })
}

func (s *suite) wrap(f es.Format, fn func(t *testing.T, store *es.Store)) func(t *testing.T) {
	return func(t *testing.T) {
		store := es.NewStore(s.newBackend(t), domain.Registry(), es.WithFormat(f))
		fn(t, store)
	}
}

// streamID returns a stream name unique to this run.
func streamID(prefix string) es.StreamID {
	return es.MustSimpleStreamID(prefix + "-" + gonanoid.Must(10))
}

func created(id string, total int) es.CommonEvent {
	return es.NewEvent(domain.OrderCreated{ID: id, Customer: "c-" + id, Total: total})
}

func testOrdersScenario(t *testing.T, store *es.Store) {
	ctx := context.Background()
	id := streamID("Orders")

	v, err := store.AppendToStream(ctx, id, es.AnyVersion,
		es.NewEvent(domain.OrderCreated{ID: "A"}),
		es.NewEvent(domain.OrderPlaced{ID: "B", Items: []string{"book"}}),
	)
	require.NoError(t, err)
	require.EqualValues(t, 2, v)

	slice, err := store.ReadEventsForward(ctx, id, 0, 10)
	require.NoError(t, err)
	require.EqualValues(t, 0, slice.FromEventNumber)
	require.EqualValues(t, 2, slice.NextEventNumber)
	require.True(t, slice.EndOfStream)
	require.Len(t, slice.Events, 2)
	require.Equal(t, domain.OrderCreated{ID: "A"}, slice.Events[0].Data)
	require.Equal(t, domain.OrderPlaced{ID: "B", Items: []string{"book"}}, slice.Events[1].Data)
}

func testIdempotentAppend(t *testing.T, store *es.Store) {
	ctx := context.Background()
	id := streamID("order")
	batch := []es.CommonEvent{created("1", 10), es.NewEvent(domain.OrderPlaced{ID: "1"})}

	v, err := store.AppendToStream(ctx, id, es.NoOrEmptyStream, batch...)
	require.NoError(t, err)
	require.EqualValues(t, 2, v)

	v, err = store.AppendToStream(ctx, id, es.NoOrEmptyStream, batch...)
	require.NoError(t, err)
	require.EqualValues(t, 2, v)

	v, err = store.AppendToStream(ctx, id, es.MustExactVersion(0), batch...)
	require.NoError(t, err)
	require.EqualValues(t, 2, v)

	next := es.NewEvent(domain.OrderShipped{ID: "1", Carrier: "dhl"})
	v, err = store.AppendToStream(ctx, id, es.MustExactVersion(2), next)
	require.NoError(t, err)
	require.EqualValues(t, 3, v)

	v, err = store.AppendToStream(ctx, id, es.MustExactVersion(2), next)
	require.NoError(t, err)
	require.EqualValues(t, 3, v)

	events := es.AssertStore(t, store).Events(ctx, id)
	require.Len(t, events, 3)
	require.Equal(t, domain.OrderShipped{ID: "1", Carrier: "dhl"}, events[2].Data)
}

func testWrongExpectedVersion(t *testing.T, store *es.Store) {
	ctx := context.Background()
	id := streamID("order")
	es.AssertStore(t, store).Append(ctx, id, es.AnyVersion, created("2", 1))

	_, err := store.AppendToStream(ctx, id, es.MustExactVersion(0), es.NewEvent(domain.OrderPlaced{ID: "2"}))
	var wev *es.WrongExpectedVersionError
	require.ErrorAs(t, err, &wev)
	require.ErrorIs(t, err, es.ErrWrongExpectedVersion)
	require.Equal(t, es.MustExactVersion(0), wev.Expected)
	require.EqualValues(t, 1, wev.Actual)
	require.Equal(t, id.Name(), wev.StreamID.Name())

	_, err = store.AppendToStream(ctx, id, es.NoOrEmptyStream, es.NewEvent(domain.OrderPlaced{ID: "2"}))
	require.ErrorIs(t, err, es.ErrWrongExpectedVersion)

	_, err = store.AppendToStream(ctx, id, es.MustExactVersion(7), es.NewEvent(domain.OrderPlaced{ID: "2"}))
	require.ErrorIs(t, err, es.ErrWrongExpectedVersion)

	es.AssertStore(t, store).Len(ctx, id, 1)
}

func testPagination(t *testing.T, store *es.Store) {
	ctx := context.Background()
	id := streamID("page")
	es.AssertStore(t, store).Append(ctx, id, es.AnyVersion, created("0", 0), created("1", 1), created("2", 2))

	first, err := store.ReadEventsForward(ctx, id, 0, 2)
	require.NoError(t, err)
	require.Len(t, first.Events, 2)
	require.False(t, first.EndOfStream)

	second, err := store.ReadEventsForward(ctx, id, first.NextEventNumber, 2)
	require.NoError(t, err)
	require.Len(t, second.Events, 1)
	require.True(t, second.EndOfStream)
	require.EqualValues(t, 3, second.NextEventNumber)

	back, err := store.ReadEventsBackward(ctx, id, 2, 2)
	require.NoError(t, err)
	require.Len(t, back.Events, 2)
	require.Equal(t, 2, back.Events[0].Data.(domain.OrderCreated).Total)
	require.Equal(t, 1, back.Events[1].Data.(domain.OrderCreated).Total)
	require.EqualValues(t, 0, back.NextEventNumber)
	require.False(t, back.EndOfStream)

	back, err = store.ReadEventsBackward(ctx, id, 0, 2)
	require.NoError(t, err)
	require.Len(t, back.Events, 1)
	require.True(t, back.EndOfStream)

	past, err := store.ReadEventsForward(ctx, id, 3, 2)
	require.NoError(t, err)
	require.Empty(t, past.Events)
	require.True(t, past.EndOfStream)

	_, err = store.ReadEventsForward(ctx, streamID("missing"), 0, 1)
	require.ErrorIs(t, err, es.ErrStreamNotFound)
}

func testReadEvent(t *testing.T, store *es.Store) {
	ctx := context.Background()
	id := streamID("single")
	placed := es.NewEvent(domain.OrderPlaced{ID: "x"})
	es.AssertStore(t, store).Append(ctx, id, es.AnyVersion, created("x", 1), placed)

	got, err := store.ReadEvent(ctx, id, 1)
	require.NoError(t, err)
	require.True(t, got.SameAs(placed))
	require.Equal(t, placed.Data, got.Data)

	_, err = store.ReadEvent(ctx, id, 2)
	require.ErrorIs(t, err, es.ErrEventNotFound)
}

func testMetadata(t *testing.T, store *es.Store) {
	ctx := context.Background()
	id := streamID("meta")
	e := es.NewEvent(domain.OrderShipped{ID: "m", Carrier: "ups"}).
		WithMeta(domain.AuditMeta{User: "alice", CorrelationID: "c-1"})
	es.AssertStore(t, store).Append(ctx, id, es.NoOrEmptyStream, e)

	got, err := store.ReadEvent(ctx, id, 0)
	require.NoError(t, err)
	require.Equal(t, e.ID, got.ID)
	require.Equal(t, e.DataType, got.DataType)
	require.Equal(t, e.Data, got.Data)
	require.Equal(t, e.MetaType, got.MetaType)
	require.Equal(t, e.Meta, got.Meta)
}

func testHardDelete(t *testing.T, store *es.Store) {
	ctx := context.Background()
	id := streamID("gone")
	es.AssertStore(t, store).Append(ctx, id, es.AnyVersion, created("g", 1))

	require.NoError(t, store.DeleteStream(ctx, id, es.MustExactVersion(1), true))
	es.AssertStore(t, store).State(ctx, id, es.StreamHardDeleted)

	_, err := store.ReadEventsForward(ctx, id, 0, 10)
	require.ErrorIs(t, err, es.ErrStreamDeleted)
	_, err = store.AppendToStream(ctx, id, es.AnyVersion, created("g", 2))
	require.ErrorIs(t, err, es.ErrStreamDeleted)
	require.ErrorIs(t, store.DeleteStream(ctx, id, es.AnyVersion, true), es.ErrStreamDeleted)
	require.ErrorIs(t, store.CreateStream(ctx, id), es.ErrStreamDeleted)

	exists, err := store.StreamExists(ctx, id)
	require.NoError(t, err)
	require.False(t, exists)
}

func testSoftDelete(t *testing.T, store *es.Store) {
	ctx := context.Background()
	id := streamID("hidden")
	es.AssertStore(t, store).Append(ctx, id, es.AnyVersion, created("h", 1))

	err := store.DeleteStream(ctx, id, es.MustExactVersion(5), false)
	require.ErrorIs(t, err, es.ErrWrongExpectedVersion)

	require.NoError(t, store.DeleteStream(ctx, id, es.AnyVersion, false))
	es.AssertStore(t, store).State(ctx, id, es.StreamSoftDeleted)

	_, err = store.ReadEventsForward(ctx, id, 0, 10)
	require.ErrorIs(t, err, es.ErrStreamNotFound)
	_, err = store.AppendToStream(ctx, id, es.AnyVersion, created("h", 2))
	require.ErrorIs(t, err, es.ErrStreamDeleted)
	require.ErrorIs(t, store.CreateStream(ctx, id), es.ErrStreamDeleted)

	require.NoError(t, store.DeleteStream(ctx, id, es.AnyVersion, true))
	es.AssertStore(t, store).State(ctx, id, es.StreamHardDeleted)
}

func testCreateStream(t *testing.T, store *es.Store) {
	ctx := context.Background()
	id := streamID("created")

	require.NoError(t, store.CreateStream(ctx, id))
	es.AssertStore(t, store).State(ctx, id, es.StreamActive)
	require.ErrorIs(t, store.CreateStream(ctx, id), es.ErrStreamAlreadyExists)

	slice, err := store.ReadEventsForward(ctx, id, 0, 5)
	require.NoError(t, err)
	require.Empty(t, slice.Events)

	v, err := store.AppendToStream(ctx, id, es.NoOrEmptyStream, created("c", 1))
	require.NoError(t, err)
	require.EqualValues(t, 1, v)
}

// testConcurrentAppends races writers with the same expected version; the
// backend must let exactly one of them through.
func testConcurrentAppends(t *testing.T, store *es.Store) {
	ctx := context.Background()
	id := streamID("race")
	es.AssertStore(t, store).Append(ctx, id, es.NoOrEmptyStream, created("r", 0))

	const writers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.AppendToStream(ctx, id, es.MustExactVersion(1), created(fmt.Sprint(i), i))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, es.ErrWrongExpectedVersion):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, succeeded)
	require.Equal(t, writers-1, conflicts)
	es.AssertStore(t, store).Len(ctx, id, 2)
}

func testMixedFormats(t *testing.T, backend es.Backend) {
	ctx := context.Background()
	registry := domain.Registry()
	xmlStore := es.NewStore(backend, registry, es.WithFormat(es.FormatXML))
	jsonStore := es.NewStore(backend, registry, es.WithFormat(es.FormatJSON))
	id := streamID("mixed")

	batch := []es.CommonEvent{created("m", 1), es.NewEvent(domain.OrderShipped{ID: "m", Carrier: "post"})}
	_, err := xmlStore.AppendToStream(ctx, id, es.NoOrEmptyStream, batch...)
	require.NoError(t, err)

	v, err := jsonStore.AppendToStream(ctx, id, es.NoOrEmptyStream, batch...)
	require.NoError(t, err)
	require.EqualValues(t, 2, v)

	events := es.AssertStore(t, jsonStore).Events(ctx, id)
	require.Len(t, events, 2)
	require.Equal(t, batch[1].Data, events[1].Data)
}
