package es

import (
	"bytes"
	"encoding/base64"
	"fmt"

	"github.com/codewandler/esc-go/core/serial"
)

// EnvelopeType is the serialized data type of stored envelopes.
const EnvelopeType serial.SerializedDataType = "EscEvent"

// Format is the wire format of an envelope.
type Format int

const (
	FormatJSON Format = iota
	FormatXML
)

// ParseFormat accepts "json" and "xml".
func ParseFormat(s string) (Format, error) {
	switch s {
	case "json", "JSON":
		return FormatJSON, nil
	case "xml", "XML":
		return FormatXML, nil
	}
	return 0, &FormatError{What: "envelope format", Value: s}
}

// FormatOf maps an envelope mime type to its format.
func FormatOf(mt serial.MimeType) (Format, error) {
	switch mt.BaseType() {
	case serial.MimeJSON.BaseType():
		return FormatJSON, nil
	case serial.MimeXML.BaseType():
		return FormatXML, nil
	}
	return 0, &FormatError{What: "envelope mime type", Value: mt.String()}
}

func (f Format) MimeType() serial.MimeType {
	if f == FormatXML {
		return serial.MimeXML
	}
	return serial.MimeJSON
}

func (f Format) String() string {
	if f == FormatXML {
		return "xml"
	}
	return "json"
}

// EnvelopeCodec converts events to and from self-describing envelopes.
//
// A payload whose base type equals the envelope format (and which is UTF-8)
// is embedded as a native node; anything else is base64 encoded and its
// recorded mime type gets transfer-encoding=base64. Encoding the same event
// twice yields identical bytes.
type EnvelopeCodec struct {
	registry *serial.Registry
}

func NewEnvelopeCodec(registry *serial.Registry) *EnvelopeCodec {
	return &EnvelopeCodec{registry: registry}
}

// slot is an encoded Data or EscUserMeta value.
type slot struct {
	native []byte // set when embedded as a native node
	base64 string
}

func (c *EnvelopeCodec) encodeSlot(f Format, t serial.TypeName, v any) (slot, serial.MimeType, error) {
	sd, err := c.registry.Serialize(t.SerializedDataType(), v)
	if err != nil {
		return slot{}, serial.MimeType{}, err
	}
	if sd.MimeType.HasBase(f.MimeType()) && sd.MimeType.Encoding() == serial.DefaultEncoding {
		native, err := canonicalNode(f, sd.Data)
		if err != nil {
			return slot{}, serial.MimeType{}, &FormatError{What: fmt.Sprintf("%s payload of %s", f, t), Err: err}
		}
		return slot{native: native}, sd.MimeType, nil
	}
	return slot{base64: base64.StdEncoding.EncodeToString(sd.Data)}, sd.MimeType.WithBase64(), nil
}

func (c *EnvelopeCodec) decodeSlot(t string, contentType string, in serial.Input) (any, error) {
	mt, err := serial.ParseMimeType(contentType)
	if err != nil {
		return nil, err
	}
	if mt.IsBase64() {
		raw, err := base64.StdEncoding.DecodeString(string(bytes.TrimSpace(in.Raw())))
		if err != nil {
			return nil, &FormatError{What: "base64 payload", Err: err}
		}
		in = serial.Bytes(raw)
		mt = mt.Without(serial.ParamTransferEncoding)
	}
	return c.registry.Deserialize(serial.SerializedDataType(t), mt, in)
}

func (c *EnvelopeCodec) Marshal(f Format, e CommonEvent) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	if f == FormatXML {
		return c.marshalXML(e)
	}
	return c.marshalJSON(e)
}

func (c *EnvelopeCodec) Unmarshal(f Format, data []byte) (CommonEvent, error) {
	if f == FormatXML {
		return c.unmarshalXML(data)
	}
	return c.unmarshalJSON(data)
}

// MarshalBatch wraps the single envelopes of events in a list ([...] or
// <Events>...</Events>).
func (c *EnvelopeCodec) MarshalBatch(f Format, events []CommonEvent) ([]byte, error) {
	open, sep, closing := "[", ",", "]"
	if f == FormatXML {
		open, sep, closing = "<Events>", "", "</Events>"
	}
	var buf bytes.Buffer
	buf.WriteString(open)
	for i, e := range events {
		data, err := c.Marshal(f, e)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		if i > 0 {
			buf.WriteString(sep)
		}
		buf.Write(data)
	}
	buf.WriteString(closing)
	return buf.Bytes(), nil
}

func (c *EnvelopeCodec) UnmarshalBatch(f Format, data []byte) ([]CommonEvent, error) {
	if f == FormatXML {
		return c.unmarshalXMLBatch(data)
	}
	return c.unmarshalJSONBatch(data)
}

// Encode produces the SerializedData a backend stores for e.
func (c *EnvelopeCodec) Encode(f Format, e CommonEvent) (serial.SerializedData, error) {
	data, err := c.Marshal(f, e)
	if err != nil {
		return serial.SerializedData{}, err
	}
	return serial.SerializedData{Type: EnvelopeType, MimeType: f.MimeType(), Data: data}, nil
}

// Decode reads an envelope previously produced by Encode, in any format.
func (c *EnvelopeCodec) Decode(sd serial.SerializedData) (CommonEvent, error) {
	f, err := FormatOf(sd.MimeType)
	if err != nil {
		return CommonEvent{}, err
	}
	return c.Unmarshal(f, sd.Data)
}

func newDecodedEvent(id, eventType string, data any, metaType string, meta any) (CommonEvent, error) {
	eventID, err := ParseEventID(id)
	if err != nil {
		return CommonEvent{}, err
	}
	if eventType == "" {
		return CommonEvent{}, &FormatError{What: "envelope", Err: fmt.Errorf("missing EventType")}
	}
	e := CommonEvent{ID: eventID, DataType: serial.TypeName(eventType), Data: data}
	if metaType != "" {
		e.MetaType = serial.TypeName(metaType)
		e.Meta = meta
	}
	return e, nil
}

func canonicalNode(f Format, data []byte) ([]byte, error) {
	if f == FormatJSON {
		return canonicalJSON(data)
	}
	return xmlFragment(data), nil
}

// xmlFragment strips the XML declaration so the element can be nested.
func xmlFragment(b []byte) []byte {
	b = bytes.TrimSpace(b)
	if bytes.HasPrefix(b, []byte("<?xml")) {
		if i := bytes.Index(b, []byte("?>")); i >= 0 {
			b = bytes.TrimSpace(b[i+2:])
		}
	}
	return b
}
