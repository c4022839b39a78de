package sf

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// Group deduplicates concurrent calls with the same key. Only the first
// caller runs fn; callers arriving while it runs share its result.
type Group[T any] struct {
	group singleflight.Group
}

// Do runs fn for key unless a call for key is in flight, in which case it
// waits for that call. shared reports whether the result went to more than
// one caller.
func (g *Group[T]) Do(key string, fn func() (T, error)) (v T, shared bool, err error) {
	out, err, shared := g.group.Do(key, func() (any, error) {
		return fn()
	})
	if err != nil {
		return v, shared, err
	}
	return out.(T), shared, nil
}

// DoContext is Do for calls that take a context. fn runs on a context that
// keeps ctx's values but not its cancellation or deadline, so one caller
// giving up does not fail the others; fn must bound its own run time. Each
// caller stops waiting when its own ctx is done.
func (g *Group[T]) DoContext(ctx context.Context, key string, fn func(context.Context) (T, error)) (v T, shared bool, err error) {
	ch := g.group.DoChan(key, func() (any, error) {
		return fn(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return v, false, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return v, r.Shared, r.Err
		}
		return r.Val.(T), r.Shared, nil
	}
}

// Forget makes the next Do for key run fn instead of joining a call in
// flight.
func (g *Group[T]) Forget(key string) { g.group.Forget(key) }
