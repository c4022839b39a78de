// Package serial provides the type and content-type model used to move
// arbitrary typed payloads through a format agnostic event store.
//
// # Types
//
// A [TypeName] identifies an event or metadata type in the domain, a
// [SerializedDataType] identifies the same payload on the wire. A [MimeType]
// describes the bytes: base type, version, encoding and any extra parameters
// such as transfer-encoding=base64. [SerializedData] bundles all three with
// the raw bytes and is what backends store and return.
//
// # Registry
//
// Serializers and deserializers are registered once at startup through a
// [RegistryBuilder]. The resulting [Registry] is immutable and safe for
// concurrent lookups:
//
//	b := serial.NewRegistryBuilder()
//	serial.RegisterJSON[OrderCreated](b)
//	serial.RegisterXML[OrderShipped](b)
//	reg := b.Build()
//
//	sd, err := reg.Serialize("OrderCreated", OrderCreated{ID: "A"})
//
// Deserializers accept an [Input], which is either raw [Bytes] or a node
// already delimited by an envelope parser ([JSONNode], [XMLNode]).
package serial
