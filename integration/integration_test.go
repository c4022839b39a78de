package integration

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codewandler/esc-go/adapters/sqlstore"
	"github.com/codewandler/esc-go/core/es"
	"github.com/codewandler/esc-go/core/es/estests/domain"
)

func orderEvents(n int) []es.CommonEvent {
	events := make([]es.CommonEvent, 0, n)
	for i := range n {
		id := fmt.Sprintf("o-%d", i)
		var e es.CommonEvent
		switch i % 3 {
		case 0:
			e = es.NewEvent(domain.OrderCreated{ID: id, Customer: "c-" + id, Total: i})
		case 1:
			e = es.NewEvent(domain.OrderPlaced{ID: id, Items: []string{"sku-1", "sku-2"}})
		default:
			e = es.NewEvent(domain.OrderShipped{ID: id, Carrier: "DHL"})
		}
		events = append(events, e.WithMeta(domain.AuditMeta{User: "u-1", CorrelationID: id}))
	}
	return events
}

// Envelopes are stored verbatim, so a stream written in XML to SQLite can be
// copied record by record to another backend and read there in JSON.
func TestCopyStreamBetweenBackends(t *testing.T) {
	ctx := t.Context()
	registry := domain.Registry()

	source, err := sqlstore.OpenSQLite(ctx, filepath.Join(t.TempDir(), "orders.db"), nil)
	require.NoError(t, err)
	xmlStore := es.NewStore(source, registry, es.WithFormat(es.FormatXML))
	t.Cleanup(func() { _ = xmlStore.Close() })

	id := es.MustSimpleStreamID("orders-copy")
	events := orderEvents(9)
	version, err := xmlStore.AppendToStream(ctx, id, es.NoOrEmptyStream, events...)
	require.NoError(t, err)
	require.Equal(t, int64(len(events)), version)

	target := es.NewInMemoryBackend()
	require.NoError(t, target.Create(ctx, id))
	records, err := source.Read(ctx, id.Name(), 0, len(events), es.Forward)
	require.NoError(t, err)
	_, err = target.Append(ctx, id.Name(), es.NoOrEmptyStream, records)
	require.NoError(t, err)

	jsonStore := es.NewStore(target, registry, es.WithFormat(es.FormatJSON))
	copied := es.AssertStore(t, jsonStore).Events(ctx, id)
	require.Equal(t, events, copied)

	// a retry of the original batch against the copy is still recognized
	v, err := jsonStore.AppendToStream(ctx, id, es.MustExactVersion(0), events...)
	require.NoError(t, err)
	require.Equal(t, version, v)
}

func TestAsyncStoreOnSQLite(t *testing.T) {
	ctx := t.Context()

	backend, err := sqlstore.OpenSQLite(ctx, filepath.Join(t.TempDir(), "async.db"), nil)
	require.NoError(t, err)
	async := es.NewAsyncStore(es.NewStore(backend, domain.Registry()), es.WithWorkers(4), es.WithStreamOrdering())
	t.Cleanup(func() { _ = async.Close() })

	const streams, perStream = 4, 10
	var futures []*es.Future[int64]
	for s := range streams {
		id := es.MustSimpleStreamID(fmt.Sprintf("orders-%d", s))
		for i, e := range orderEvents(perStream) {
			futures = append(futures, async.AppendToStream(ctx, id, es.MustExactVersion(int64(i)), e))
		}
	}
	for _, f := range futures {
		_, err := f.Wait(ctx)
		require.NoError(t, err)
	}

	for s := range streams {
		id := es.MustSimpleStreamID(fmt.Sprintf("orders-%d", s))
		slice, err := async.ReadEventsBackward(ctx, id, perStream-1, perStream).Wait(ctx)
		require.NoError(t, err)
		require.Len(t, slice.Events, perStream)
		require.True(t, slice.EndOfStream)
	}
}
