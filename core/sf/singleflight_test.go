package sf

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGroup_Deduplicates(t *testing.T) {
	var (
		g       Group[int]
		calls   atomic.Int32
		release = make(chan struct{})
		started = make(chan struct{})
		wg      sync.WaitGroup
		results = make([]int, 5)
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		v, _, err := g.Do("k", func() (int, error) {
			calls.Add(1)
			close(started)
			<-release
			return 42, nil
		})
		require.NoError(t, err)
		results[0] = v
	}()
	<-started

	for i := 1; i < len(results); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, _, err := g.Do("k", func() (int, error) {
				calls.Add(1)
				return -1, nil
			})
			require.NoError(t, err)
			results[i] = v
		}()
	}

	close(release)
	wg.Wait()

	// late joiners may have missed the first call and run their own
	require.GreaterOrEqual(t, calls.Load(), int32(1))
	require.Contains(t, results, 42)
}

func TestGroup_Error(t *testing.T) {
	var g Group[string]
	boom := errors.New("boom")

	v, shared, err := g.Do("k", func() (string, error) { return "ignored", boom })
	require.ErrorIs(t, err, boom)
	require.False(t, shared)
	require.Empty(t, v)
}

func TestGroup_SequentialCallsRunAgain(t *testing.T) {
	var (
		g Group[int]
		n int
	)
	for range 3 {
		_, _, err := g.Do("k", func() (int, error) { n++; return n, nil })
		require.NoError(t, err)
	}
	require.Equal(t, 3, n)
}

func TestGroup_DoContextOutlivesCaller(t *testing.T) {
	var (
		g       Group[int]
		started = make(chan struct{})
		release = make(chan struct{})
		fnErr   = make(chan error, 1)
		fnValue = make(chan any, 1)
		callErr = make(chan error, 1)
	)
	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "v"))

	go func() {
		_, _, err := g.DoContext(ctx, "k", func(ctx context.Context) (int, error) {
			close(started)
			<-release
			fnValue <- ctx.Value(ctxKey{})
			fnErr <- ctx.Err()
			return 42, nil
		})
		callErr <- err
	}()
	<-started

	cancel()
	require.ErrorIs(t, <-callErr, context.Canceled)

	close(release)
	require.Equal(t, "v", <-fnValue)
	require.NoError(t, <-fnErr, "the shared call keeps running")
}

func TestGroup_DoContext(t *testing.T) {
	var g Group[int]
	v, shared, err := g.DoContext(t.Context(), "k", func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	require.False(t, shared)
	require.Equal(t, 7, v)

	boom := errors.New("boom")
	_, _, err = g.DoContext(t.Context(), "k", func(context.Context) (int, error) { return 0, boom })
	require.ErrorIs(t, err, boom)
}

type ctxKey struct{}
