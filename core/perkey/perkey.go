// Package perkey serializes work per key while work for different keys runs
// concurrently. The event store uses it to keep asynchronous operations on
// one stream in submission order.
//
// A key only holds a goroutine while it has queued work, so a scheduler can
// be keyed by an unbounded set of stream names.
package perkey

import (
	"context"
	"errors"
	"sync"
)

// ErrSchedulerClosed is returned for tasks submitted after Close.
var ErrSchedulerClosed = errors.New("perkey: scheduler is closed")

// Scheduler runs tasks such that for any given key tasks execute one at a
// time in submission order.
type Scheduler[K comparable] struct {
	mu      sync.Mutex
	queues  map[K][]*task
	closed  bool
	running sync.WaitGroup
}

type task struct {
	ctx  context.Context
	fn   func() error
	done chan error
}

func New[K comparable]() *Scheduler[K] {
	return &Scheduler[K]{queues: make(map[K][]*task)}
}

// Go queues fn for key without blocking. The returned channel receives the
// result of fn, or ctx's error if ctx was done before fn got its turn.
func (s *Scheduler[K]) Go(ctx context.Context, key K, fn func() error) <-chan error {
	done := make(chan error, 1)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		done <- ErrSchedulerClosed
		return done
	}
	q, busy := s.queues[key]
	s.queues[key] = append(q, &task{ctx: ctx, fn: fn, done: done})
	if !busy {
		s.running.Add(1)
		go s.run(key)
	}
	return done
}

// Do schedules fn for key and blocks until it returns.
func (s *Scheduler[K]) Do(key K, fn func() error) error {
	return s.DoContext(context.Background(), key, fn)
}

// DoContext is like Do but stops waiting when ctx is done. A task whose
// context is done before its turn is skipped.
func (s *Scheduler[K]) DoContext(ctx context.Context, key K, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case err := <-s.Go(ctx, key, fn):
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Keys returns the number of keys with queued or running work.
func (s *Scheduler[K]) Keys() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queues)
}

// Close stops accepting tasks and waits until queued tasks have run.
func (s *Scheduler[K]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.running.Wait()
}

// run drains the queue of key. The key stays in the map while its task
// runs, so new tasks are appended instead of starting a second runner.
func (s *Scheduler[K]) run(key K) {
	defer s.running.Done()
	for {
		s.mu.Lock()
		q := s.queues[key]
		if len(q) == 0 {
			delete(s.queues, key)
			s.mu.Unlock()
			return
		}
		t := q[0]
		q[0] = nil
		s.queues[key] = q[1:]
		s.mu.Unlock()

		if err := t.ctx.Err(); err != nil {
			t.done <- err
			continue
		}
		t.done <- t.fn()
	}
}
