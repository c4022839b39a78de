package serial

import (
	"errors"
	"maps"
	"mime"
	"strings"
)

const (
	ParamVersion          = "version"
	ParamEncoding         = "encoding"
	ParamTransferEncoding = "transfer-encoding"

	DefaultVersion         = "1.0.0"
	DefaultEncoding        = "utf-8"
	TransferEncodingBase64 = "base64"
)

var (
	MimeJSON        = MustParseMimeType("application/json")
	MimeXML         = MustParseMimeType("application/xml")
	MimeText        = MustParseMimeType("text/plain")
	MimeOctetStream = MustParseMimeType("application/octet-stream")
)

// MimeType is an immutable content type descriptor with optional version
// and encoding parameters. Equality is defined over the base type, the
// encoding and the version; other parameters are carried but not compared.
type MimeType struct {
	primary string
	sub     string
	params  map[string]string
}

// ParseMimeType parses s (e.g. "application/json; version=1.0.0"). Type and
// parameter names are case-insensitive.
func ParseMimeType(s string) (MimeType, error) {
	mediaType, params, err := mime.ParseMediaType(s)
	if err != nil {
		return MimeType{}, &FormatError{What: "mime type", Value: s, Err: err}
	}
	primary, sub, ok := strings.Cut(mediaType, "/")
	if !ok || primary == "" || sub == "" || strings.Contains(sub, "/") {
		return MimeType{}, &FormatError{What: "mime type", Value: s, Err: errors.New("expected primary/sub type")}
	}
	if enc, ok := params[ParamEncoding]; ok {
		params[ParamEncoding] = strings.ToLower(enc)
	}
	return MimeType{primary: primary, sub: sub, params: params}, nil
}

func MustParseMimeType(s string) MimeType { return must(ParseMimeType(s)) }

func (m MimeType) IsZero() bool     { return m.primary == "" }
func (m MimeType) Primary() string  { return m.primary }
func (m MimeType) Sub() string      { return m.sub }
func (m MimeType) BaseType() string { return m.primary + "/" + m.sub }

// HasBase reports whether m and o share the same primary/sub type.
func (m MimeType) HasBase(o MimeType) bool { return m.BaseType() == o.BaseType() }

// Param returns the raw value of a parameter.
func (m MimeType) Param(name string) (string, bool) {
	v, ok := m.params[strings.ToLower(name)]
	return v, ok
}

// Params returns a copy of all parameters.
func (m MimeType) Params() map[string]string { return maps.Clone(m.params) }

// Version returns the version parameter or def when it is absent.
func (m MimeType) Version(def string) string {
	if v, ok := m.params[ParamVersion]; ok {
		return v
	}
	return def
}

// Encoding returns the encoding parameter, defaulting to utf-8.
func (m MimeType) Encoding() string {
	if v, ok := m.params[ParamEncoding]; ok && v != "" {
		return v
	}
	return DefaultEncoding
}

func (m MimeType) TransferEncoding() string { return m.params[ParamTransferEncoding] }

func (m MimeType) IsBase64() bool {
	return strings.EqualFold(m.TransferEncoding(), TransferEncodingBase64)
}

// With returns a copy of m with the parameter set.
func (m MimeType) With(name, value string) MimeType {
	name = strings.ToLower(name)
	if name == ParamEncoding {
		value = strings.ToLower(value)
	}
	params := maps.Clone(m.params)
	if params == nil {
		params = map[string]string{}
	}
	params[name] = value
	return MimeType{primary: m.primary, sub: m.sub, params: params}
}

// Without returns a copy of m with the parameter removed.
func (m MimeType) Without(name string) MimeType {
	params := maps.Clone(m.params)
	delete(params, strings.ToLower(name))
	return MimeType{primary: m.primary, sub: m.sub, params: params}
}

func (m MimeType) WithVersion(v string) MimeType  { return m.With(ParamVersion, v) }
func (m MimeType) WithEncoding(e string) MimeType { return m.With(ParamEncoding, e) }

func (m MimeType) WithBase64() MimeType {
	return m.With(ParamTransferEncoding, TransferEncodingBase64)
}

// Equal compares base type, encoding and version.
func (m MimeType) Equal(o MimeType) bool {
	return m.BaseType() == o.BaseType() &&
		m.Encoding() == o.Encoding() &&
		m.Version("") == o.Version("")
}

// Key is a normalized string usable as a map key, consistent with Equal.
func (m MimeType) Key() string {
	return m.BaseType() + ";" + m.Encoding() + ";" + m.Version("")
}

// String formats m with parameters in lexical order, so equal inputs with
// differently ordered parameters format identically.
func (m MimeType) String() string {
	if m.IsZero() {
		return ""
	}
	if s := mime.FormatMediaType(m.BaseType(), m.params); s != "" {
		return s
	}
	return m.BaseType()
}

func (m MimeType) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *MimeType) UnmarshalText(b []byte) error {
	mt, err := ParseMimeType(string(b))
	if err != nil {
		return err
	}
	*m = mt
	return nil
}
