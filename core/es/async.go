package es

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/codewandler/esc-go/core/perkey"
)

// ErrAsyncStoreClosed is returned by futures of operations submitted after
// Close.
var ErrAsyncStoreClosed = errors.New("async store is closed")

// Future is the pending result of an asynchronous store operation.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

func newFuture[T any]() *Future[T] { return &Future[T]{done: make(chan struct{})} }

func (f *Future[T]) complete(v T, err error) {
	f.val, f.err = v, err
	close(f.done)
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Wait blocks until the operation finished or ctx is done.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

type (
	asyncOptions struct {
		workers int64
		ordered bool
		log     *slog.Logger
		metrics StoreMetrics
	}

	AsyncOption func(*asyncOptions)
)

// WithWorkers bounds the number of operations running at once (default 16).
func WithWorkers(n int) AsyncOption {
	return func(o *asyncOptions) {
		if n > 0 {
			o.workers = int64(n)
		}
	}
}

// WithStreamOrdering runs operations on the same stream one at a time in
// submission order.
func WithStreamOrdering() AsyncOption {
	return func(o *asyncOptions) { o.ordered = true }
}

func WithAsyncLog(l *slog.Logger) AsyncOption {
	return func(o *asyncOptions) { o.log = l }
}

func WithAsyncMetrics(m StoreMetrics) AsyncOption {
	return func(o *asyncOptions) { o.metrics = m }
}

// AsyncStore runs EventStore operations on a bounded pool and hands out
// futures. Without stream ordering, operations on the same stream may run in
// any order and callers should chain on futures where order matters.
type AsyncStore struct {
	store   EventStore
	sem     *semaphore.Weighted
	streams *perkey.Scheduler[string]
	log     *slog.Logger
	metrics StoreMetrics
	mu      sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
}

func NewAsyncStore(store EventStore, opts ...AsyncOption) *AsyncStore {
	o := asyncOptions{workers: 16, log: slog.Default(), metrics: NopStoreMetrics()}
	for _, opt := range opts {
		opt(&o)
	}
	a := &AsyncStore{
		store:   store,
		sem:     semaphore.NewWeighted(o.workers),
		log:     o.log.With(slog.String("store", "async")),
		metrics: o.metrics,
	}
	if o.ordered {
		a.streams = perkey.New[string]()
	}
	return a
}

// Sync returns the wrapped store.
func (a *AsyncStore) Sync() EventStore { return a.store }

func (a *AsyncStore) CreateStream(ctx context.Context, id StreamID) *Future[struct{}] {
	return submit(a, ctx, id, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, a.store.CreateStream(ctx, id)
	})
}

func (a *AsyncStore) AppendToStream(
	ctx context.Context,
	id StreamID,
	expected ExpectedVersion,
	events ...CommonEvent,
) *Future[int64] {
	return submit(a, ctx, id, func(ctx context.Context) (int64, error) {
		return a.store.AppendToStream(ctx, id, expected, events...)
	})
}

func (a *AsyncStore) ReadEventsForward(ctx context.Context, id StreamID, start int64, count int) *Future[StreamEventsSlice] {
	return submit(a, ctx, id, func(ctx context.Context) (StreamEventsSlice, error) {
		return a.store.ReadEventsForward(ctx, id, start, count)
	})
}

func (a *AsyncStore) ReadEventsBackward(ctx context.Context, id StreamID, start int64, count int) *Future[StreamEventsSlice] {
	return submit(a, ctx, id, func(ctx context.Context) (StreamEventsSlice, error) {
		return a.store.ReadEventsBackward(ctx, id, start, count)
	})
}

func (a *AsyncStore) ReadEvent(ctx context.Context, id StreamID, eventNumber int64) *Future[CommonEvent] {
	return submit(a, ctx, id, func(ctx context.Context) (CommonEvent, error) {
		return a.store.ReadEvent(ctx, id, eventNumber)
	})
}

func (a *AsyncStore) DeleteStream(ctx context.Context, id StreamID, expected ExpectedVersion, hardDelete bool) *Future[struct{}] {
	return submit(a, ctx, id, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, a.store.DeleteStream(ctx, id, expected, hardDelete)
	})
}

func (a *AsyncStore) StreamExists(ctx context.Context, id StreamID) *Future[bool] {
	return submit(a, ctx, id, func(ctx context.Context) (bool, error) {
		return a.store.StreamExists(ctx, id)
	})
}

func (a *AsyncStore) StreamState(ctx context.Context, id StreamID) *Future[StreamState] {
	return submit(a, ctx, id, func(ctx context.Context) (StreamState, error) {
		return a.store.StreamState(ctx, id)
	})
}

// Close waits for submitted operations and closes the wrapped store.
func (a *AsyncStore) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	a.wg.Wait()
	if a.streams != nil {
		a.streams.Close()
	}
	a.log.Debug("closed")
	return a.store.Close()
}

func submit[T any](a *AsyncStore, ctx context.Context, id StreamID, fn func(context.Context) (T, error)) *Future[T] {
	f := newFuture[T]()
	a.mu.RLock()
	if a.closed {
		a.mu.RUnlock()
		var zero T
		f.complete(zero, ErrAsyncStoreClosed)
		return f
	}
	a.wg.Add(1)
	a.mu.RUnlock()

	a.metrics.AsyncInFlight(1)
	finish := func(v T, err error) {
		f.complete(v, err)
		a.metrics.AsyncInFlight(-1)
		a.wg.Done()
	}

	if a.streams != nil {
		// The stream queue is joined synchronously, so operations on one
		// stream run in the order they were submitted. A pool slot is only
		// taken once it is the operation's turn.
		var v T
		done := a.streams.Go(ctx, id.Name(), func() error {
			if err := a.sem.Acquire(ctx, 1); err != nil {
				return err
			}
			defer a.sem.Release(1)
			var err error
			v, err = fn(ctx)
			return err
		})
		go func() {
			if err := <-done; err != nil {
				var zero T
				finish(zero, err)
				return
			}
			finish(v, nil)
		}()
		return f
	}

	go func() {
		if err := a.sem.Acquire(ctx, 1); err != nil {
			var zero T
			finish(zero, err)
			return
		}
		defer a.sem.Release(1)
		finish(fn(ctx))
	}()
	return f
}
