package prometheus

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codewandler/esc-go/core/es"
	"github.com/codewandler/esc-go/core/serial"
)

type itemAdded struct {
	SKU string `json:"sku"`
}

func (itemAdded) EventType() string { return "ItemAdded" }

func TestNewStoreMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewStoreMetrics(reg)
	require.NotNil(t, m)

	m.AppendDuration("orders").ObserveDuration()
	m.ReadDuration("orders").ObserveDuration()
	m.EventsAppended("orders", 3)
	m.EventsRead("orders", 2)
	m.ConcurrencyConflict("orders")
	m.IdempotentAppend("orders")
	m.AsyncInFlight(2)
	m.AsyncInFlight(-1)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	assert.True(t, names["esc_store_append_duration_seconds"])
	assert.True(t, names["esc_store_read_duration_seconds"])
	assert.True(t, names["esc_events_appended_total"])
	assert.True(t, names["esc_events_read_total"])
	assert.True(t, names["esc_concurrency_conflicts_total"])
	assert.True(t, names["esc_idempotent_appends_total"])
	assert.True(t, names["esc_async_in_flight"])

	sm := m.(*storeMetrics)
	assert.Equal(t, 3.0, testutil.ToFloat64(sm.eventsAppended.WithLabelValues("orders")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sm.asyncInFlight))
}

func TestStoreMetrics_WithStore(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewStoreMetrics(reg).(*storeMetrics)

	b := serial.NewRegistryBuilder()
	serial.RegisterJSON[itemAdded](b)
	store := es.NewInMemoryStore(b.Build(), es.WithMetrics(m))
	t.Cleanup(func() { _ = store.Close() })

	ctx := t.Context()
	id := es.MustSimpleStreamID("cart-1")
	first := es.NewEvent(itemAdded{SKU: "a"})

	_, err := store.AppendToStream(ctx, id, es.NoOrEmptyStream, first)
	require.NoError(t, err)

	// retry of the same append
	_, err = store.AppendToStream(ctx, id, es.NoOrEmptyStream, first)
	require.NoError(t, err)

	_, err = store.AppendToStream(ctx, id, es.NoOrEmptyStream, es.NewEvent(itemAdded{SKU: "b"}))
	require.ErrorIs(t, err, es.ErrWrongExpectedVersion)

	_, err = store.ReadEventsForward(ctx, id, 0, 10)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventsAppended.WithLabelValues("cart")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.idempotentAppends.WithLabelValues("cart")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.concurrencyConflicts.WithLabelValues("cart")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventsRead.WithLabelValues("cart")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.appendDuration))
}
