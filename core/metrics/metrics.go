// Package metrics holds the instrumentation primitives shared by the store
// and its metric backends, so core packages do not depend on a particular
// metrics library.
package metrics

import "time"

// Observer records a single observation, e.g. a latency in seconds.
// prometheus.Observer satisfies it.
type Observer interface {
	Observe(value float64)
}

// Timer measures the duration of an operation. Call ObserveDuration when
// the operation completes, typically deferred:
//
//	defer m.AppendDuration(category).ObserveDuration()
type Timer interface {
	ObserveDuration()
}

type observerTimer struct {
	o     Observer
	start time.Time
}

// NewTimer starts a Timer that reports the elapsed seconds to o.
func NewTimer(o Observer) Timer {
	return &observerTimer{o: o, start: time.Now()}
}

func (t *observerTimer) ObserveDuration() { t.o.Observe(time.Since(t.start).Seconds()) }

type nopTimer struct{}

func (nopTimer) ObserveDuration() {}

// NopTimer returns a Timer that records nothing.
func NopTimer() Timer { return nopTimer{} }
