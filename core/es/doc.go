// Package es is a client side event store abstraction.
//
// Events are appended to and read from named streams through [EventStore].
// [Store] implements the protocol on top of any [Backend]: it serializes each
// [CommonEvent] into a self-describing envelope (JSON or XML, see
// [EnvelopeCodec]), enforces optimistic concurrency with [ExpectedVersion]
// and turns a retried append whose events are already the tail of the
// stream into a success.
//
//	b := serial.NewRegistryBuilder()
//	serial.RegisterJSON[OrderCreated](b)
//	store := es.NewInMemoryStore(b.Build(), es.WithLog(log))
//
//	v, err := store.AppendToStream(ctx, es.MustSimpleStreamID("Orders"), es.AnyVersion,
//	    es.NewEvent(OrderCreated{ID: "A"}),
//	)
//
// # Versions
//
// The version of a stream is the number of events it holds; the first event
// has number 0. [AnyVersion] skips the concurrency check, [NoOrEmptyStream]
// requires an absent or empty stream and an explicit version requires an
// exact match. A mismatch yields [*WrongExpectedVersionError] unless the
// proposed events serialize identically to the events already stored at
// that position.
//
// # Streams
//
// Streams are active, soft deleted or hard deleted. Readers see a soft
// deleted stream as missing; writers and readers of a hard deleted stream get
// [*StreamDeletedError]. Projection streams are read only.
//
// # Backends
//
// [InMemoryBackend] is part of this package. The adapters/nats and
// adapters/sqlstore packages persist to NATS JetStream and SQL databases;
// estests holds the conformance suite every backend passes.
//
// [AsyncStore] wraps any EventStore and returns a [Future] per call.
package es
