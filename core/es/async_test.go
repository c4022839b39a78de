package es

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAsyncStore_SameResultsAsSync(t *testing.T) {
	ctx := context.Background()
	a := NewAsyncStore(NewInMemoryStore(testRegistry()))
	defer a.Close()
	id := MustSimpleStreamID("Orders")

	v, err := a.AppendToStream(ctx, id, AnyVersion,
		NewEvent(orderCreated{ID: "A"}),
		NewEvent(orderPlaced{ID: "B"}),
	).Wait(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, v)

	slice, err := a.ReadEventsForward(ctx, id, 0, 10).Wait(ctx)
	require.NoError(t, err)
	require.Len(t, slice.Events, 2)
	require.True(t, slice.EndOfStream)

	back, err := a.ReadEventsBackward(ctx, id, 1, 1).Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, orderPlaced{ID: "B"}, back.Events[0].Data)

	e, err := a.ReadEvent(ctx, id, 0).Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, orderCreated{ID: "A"}, e.Data)

	_, err = a.AppendToStream(ctx, id, MustExactVersion(0), NewEvent(orderNote{Text: "late"})).Wait(ctx)
	require.ErrorIs(t, err, ErrWrongExpectedVersion)

	exists, err := a.StreamExists(ctx, id).Wait(ctx)
	require.NoError(t, err)
	require.True(t, exists)

	_, err = a.DeleteStream(ctx, id, AnyVersion, true).Wait(ctx)
	require.NoError(t, err)

	state, err := a.StreamState(ctx, id).Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, StreamHardDeleted, state)

	_, err = a.CreateStream(ctx, id).Wait(ctx)
	require.ErrorIs(t, err, ErrStreamAlreadyExists)
}

func TestAsyncStore_BoundedWorkers(t *testing.T) {
	ctx := context.Background()
	m := newCountingMetrics()
	a := NewAsyncStore(NewInMemoryStore(testRegistry()), WithWorkers(2), WithAsyncMetrics(m))

	futures := make([]*Future[int64], 0, 20)
	for i := 0; i < 20; i++ {
		id := MustSimpleStreamID(fmt.Sprintf("order-%d", i))
		futures = append(futures, a.AppendToStream(ctx, id, NoOrEmptyStream, NewEvent(orderCreated{ID: id.Name()})))
	}
	for _, f := range futures {
		v, err := f.Wait(ctx)
		require.NoError(t, err)
		require.EqualValues(t, 1, v)
	}
	require.NoError(t, a.Close())

	m.mu.Lock()
	defer m.mu.Unlock()
	require.Zero(t, m.inFlight)
	require.Positive(t, m.maxInFlight)
}

func TestAsyncStore_StreamOrdering(t *testing.T) {
	ctx := context.Background()
	a := NewAsyncStore(NewInMemoryStore(testRegistry()), WithWorkers(8), WithStreamOrdering())
	defer a.Close()
	id := MustSimpleStreamID("ordered")

	futures := make([]*Future[int64], 0, 50)
	for i := 0; i < 50; i++ {
		futures = append(futures, a.AppendToStream(ctx, id, MustExactVersion(int64(i)), NewEvent(orderCreated{ID: "o", Total: i})))
	}
	for i, f := range futures {
		v, err := f.Wait(ctx)
		require.NoError(t, err)
		require.EqualValues(t, i+1, v)
	}

	events, err := ReadAllForward(ctx, a.Sync(), id, 20)
	require.NoError(t, err)
	require.Len(t, events, 50)
	for i, e := range events {
		require.Equal(t, i, e.Data.(orderCreated).Total)
	}
}

func TestAsyncStore_Future(t *testing.T) {
	f := newFuture[int]()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := f.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-f.Done()
	}()
	f.complete(7, nil)
	wg.Wait()

	v, err := f.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, 7, v)
}

func TestAsyncStore_Close(t *testing.T) {
	ctx := context.Background()
	a := NewAsyncStore(NewInMemoryStore(testRegistry()))
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	_, err := a.StreamExists(ctx, MustSimpleStreamID("x")).Wait(ctx)
	require.ErrorIs(t, err, ErrAsyncStoreClosed)
}

func TestAsyncStore_CancelledContext(t *testing.T) {
	a := NewAsyncStore(NewInMemoryStore(testRegistry()), WithStreamOrdering())
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.AppendToStream(ctx, MustSimpleStreamID("c"), AnyVersion, NewEvent(orderCreated{ID: "c"})).Wait(context.Background())
	require.ErrorIs(t, err, context.Canceled)
}
