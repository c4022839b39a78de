// Package sf is a typed wrapper around golang.org/x/sync/singleflight.
//
// Backends use it for lookups that many goroutines issue for the same
// stream at once, e.g. reading the stream head before a read:
//
//	var heads sf.Group[head]
//	h, _, err := heads.DoContext(ctx, name, func(ctx context.Context) (head, error) {
//		ctx, cancel := context.WithTimeout(ctx, time.Second)
//		defer cancel()
//		return lookup(ctx, name)
//	})
//
// Use DoContext rather than capturing a caller's context in Do, so one
// caller's cancellation does not fail everybody sharing the call.
//
// Results are never cached beyond the call in flight. Write paths that need
// a fresh value must not join a call that started earlier.
package sf
