package serial

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/ianaindex"
)

// Serializer turns a value into bytes of a single mime type.
type Serializer interface {
	Marshal(v any) ([]byte, error)
	MimeType() MimeType
}

// Deserializer turns an Input of the given mime type into a value.
type Deserializer interface {
	Unmarshal(in Input, mt MimeType) (any, error)
}

// Codec is both.
type Codec interface {
	Serializer
	Deserializer
}

type (
	codecOptions struct {
		version  string
		encoding string
	}
	CodecOption func(*codecOptions)
)

// WithVersion sets the version parameter of the codec's mime type.
func WithVersion(v string) CodecOption { return func(o *codecOptions) { o.version = v } }

func newCodecMimeType(base MimeType, opts []CodecOption) MimeType {
	o := codecOptions{version: DefaultVersion, encoding: DefaultEncoding}
	for _, opt := range opts {
		opt(&o)
	}
	return base.WithVersion(o.version).WithEncoding(o.encoding)
}

// === JSON ===

// JSONCodec encodes T with encoding/json and decodes into a T value.
type JSONCodec[T any] struct{ mt MimeType }

func NewJSONCodec[T any](opts ...CodecOption) *JSONCodec[T] {
	return &JSONCodec[T]{mt: newCodecMimeType(MimeJSON, opts)}
}

func (c *JSONCodec[T]) MimeType() MimeType { return c.mt }

func (c *JSONCodec[T]) Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("json marshal %T: %w", v, err)
	}
	return data, nil
}

func (c *JSONCodec[T]) Unmarshal(in Input, mt MimeType) (any, error) {
	if _, ok := in.(XMLNode); ok {
		return nil, &FormatError{What: "json input", Err: fmt.Errorf("cannot decode an xml node as %s", mt.BaseType())}
	}
	raw, err := toUTF8(in, mt)
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &FormatError{What: "json payload", Err: err}
	}
	return out, nil
}

// === XML ===

// XMLCodec encodes T with encoding/xml and decodes into a T value.
type XMLCodec[T any] struct{ mt MimeType }

func NewXMLCodec[T any](opts ...CodecOption) *XMLCodec[T] {
	return &XMLCodec[T]{mt: newCodecMimeType(MimeXML, opts)}
}

func (c *XMLCodec[T]) MimeType() MimeType { return c.mt }

func (c *XMLCodec[T]) Marshal(v any) ([]byte, error) {
	data, err := xml.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("xml marshal %T: %w", v, err)
	}
	return data, nil
}

func (c *XMLCodec[T]) Unmarshal(in Input, mt MimeType) (any, error) {
	if _, ok := in.(JSONNode); ok {
		return nil, &FormatError{What: "xml input", Err: fmt.Errorf("cannot decode a json node as %s", mt.BaseType())}
	}
	var out T
	dec := xml.NewDecoder(bytes.NewReader(in.Raw()))
	dec.CharsetReader = charsetReader
	if err := dec.Decode(&out); err != nil {
		return nil, &FormatError{What: "xml payload", Err: err}
	}
	return out, nil
}

// === text ===

// TextCodec handles plain strings. Input in other charsets is converted to
// UTF-8 according to the encoding parameter.
type TextCodec struct{ mt MimeType }

func NewTextCodec(opts ...CodecOption) *TextCodec {
	return &TextCodec{mt: newCodecMimeType(MimeText, opts)}
}

func (c *TextCodec) MimeType() MimeType { return c.mt }

func (c *TextCodec) Marshal(v any) ([]byte, error) {
	switch t := v.(type) {
	case string:
		return []byte(t), nil
	case []byte:
		return t, nil
	case fmt.Stringer:
		return []byte(t.String()), nil
	default:
		return nil, fmt.Errorf("text marshal: unsupported value %T", v)
	}
}

func (c *TextCodec) Unmarshal(in Input, mt MimeType) (any, error) {
	raw, err := toUTF8(in, mt)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// === binary ===

// BinaryCodec passes []byte through untouched.
type BinaryCodec struct{ mt MimeType }

func NewBinaryCodec(opts ...CodecOption) *BinaryCodec {
	return &BinaryCodec{mt: newCodecMimeType(MimeOctetStream, opts)}
}

func (c *BinaryCodec) MimeType() MimeType { return c.mt }

func (c *BinaryCodec) Marshal(v any) ([]byte, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("binary marshal: expected []byte, got %T", v)
	}
	return bytes.Clone(b), nil
}

func (c *BinaryCodec) Unmarshal(in Input, _ MimeType) (any, error) {
	return bytes.Clone(in.Raw()), nil
}

// --- charset helpers ---

func toUTF8(in Input, mt MimeType) ([]byte, error) {
	raw := in.Raw()
	if _, ok := in.(Bytes); !ok || isUTF8(mt.Encoding()) {
		return raw, nil
	}
	enc, err := ianaindex.MIME.Encoding(mt.Encoding())
	if err != nil || enc == nil {
		return nil, &FormatError{What: "encoding", Value: mt.Encoding(), Err: err}
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return nil, &FormatError{What: "payload", Err: err}
	}
	return out, nil
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	if isUTF8(label) {
		return input, nil
	}
	enc, err := ianaindex.MIME.Encoding(label)
	if err != nil || enc == nil {
		return nil, &FormatError{What: "encoding", Value: label, Err: err}
	}
	return enc.NewDecoder().Reader(input), nil
}

func isUTF8(label string) bool {
	l := strings.ToLower(label)
	return l == "" || l == "utf-8" || l == "utf8"
}
