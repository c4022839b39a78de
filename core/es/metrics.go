package es

import "github.com/codewandler/esc-go/core/metrics"

// StoreMetrics instruments the Store. Labels are stream categories (the
// stream name up to the first '-'). Implementations must be thread-safe.
type StoreMetrics interface {
	AppendDuration(category string) metrics.Timer
	ReadDuration(category string) metrics.Timer
	EventsAppended(category string, count int)
	EventsRead(category string, count int)
	ConcurrencyConflict(category string)
	IdempotentAppend(category string)

	// AsyncStore
	AsyncInFlight(delta int)
}

type nopStoreMetrics struct{}

func (nopStoreMetrics) AppendDuration(string) metrics.Timer { return metrics.NopTimer() }
func (nopStoreMetrics) ReadDuration(string) metrics.Timer   { return metrics.NopTimer() }
func (nopStoreMetrics) EventsAppended(string, int)          {}
func (nopStoreMetrics) EventsRead(string, int)              {}
func (nopStoreMetrics) ConcurrencyConflict(string)          {}
func (nopStoreMetrics) IdempotentAppend(string)             {}
func (nopStoreMetrics) AsyncInFlight(int)                   {}

// NopStoreMetrics returns a no-op StoreMetrics implementation.
func NopStoreMetrics() StoreMetrics { return nopStoreMetrics{} }
