package serial

import "encoding/json"

// Input is what a Deserializer reads from. Envelope parsers hand over the
// node they already delimited (JSONNode, XMLNode) instead of re-encoding it;
// base64 slots and backends hand over Bytes.
type Input interface {
	Raw() []byte
	isInput()
}

// Bytes is a raw payload.
type Bytes []byte

// JSONNode is one complete JSON value taken verbatim from an envelope.
type JSONNode json.RawMessage

// XMLNode is one complete XML element taken verbatim from an envelope.
type XMLNode []byte

func (b Bytes) Raw() []byte    { return b }
func (n JSONNode) Raw() []byte { return n }
func (n XMLNode) Raw() []byte  { return n }

func (Bytes) isInput()    {}
func (JSONNode) isInput() {}
func (XMLNode) isInput()  {}
