package es

import (
	"log/slog"
	"strings"
)

// KeyValue is one stream parameter.
type KeyValue struct {
	Key   string
	Value string
}

// StreamID addresses a stream. Name is the natural key and is used by
// backends to locate the stream; Parameters allow backends to rebuild
// selection predicates.
type StreamID interface {
	Name() string
	IsProjection() bool
	Parameters() []KeyValue
}

// SingleParamValue returns the value of the only parameter of id.
func SingleParamValue(id StreamID) (string, bool) {
	ps := id.Parameters()
	if len(ps) != 1 {
		return "", false
	}
	return ps[0].Value, true
}

func StreamSlogAttr(id StreamID) slog.Attr {
	return slog.Group("stream", slog.String("name", id.Name()), slog.Bool("projection", id.IsProjection()))
}

// === simple ===

// SimpleStreamID is a plain named stream.
type SimpleStreamID struct{ name string }

func NewSimpleStreamID(name string) (SimpleStreamID, error) {
	if err := validateStreamName(name); err != nil {
		return SimpleStreamID{}, err
	}
	return SimpleStreamID{name: name}, nil
}

func MustSimpleStreamID(name string) SimpleStreamID { return mustStreamID(NewSimpleStreamID(name)) }

func (s SimpleStreamID) Name() string           { return s.name }
func (s SimpleStreamID) IsProjection() bool     { return false }
func (s SimpleStreamID) Parameters() []KeyValue { return nil }
func (s SimpleStreamID) String() string         { return s.name }

// === projection ===

// ProjectionStreamID names a read-only, derived stream.
type ProjectionStreamID struct{ name string }

func NewProjectionStreamID(name string) (ProjectionStreamID, error) {
	if err := validateStreamName(name); err != nil {
		return ProjectionStreamID{}, err
	}
	return ProjectionStreamID{name: name}, nil
}

func MustProjectionStreamID(name string) ProjectionStreamID {
	return mustStreamID(NewProjectionStreamID(name))
}

func (s ProjectionStreamID) Name() string           { return s.name }
func (s ProjectionStreamID) IsProjection() bool     { return true }
func (s ProjectionStreamID) Parameters() []KeyValue { return nil }
func (s ProjectionStreamID) String() string         { return s.name }

// === parameterized ===

// ParamStreamID is a stream selected by ordered key/value parameters. Its
// name is the prefix followed by the parameter values, joined by '-'.
type ParamStreamID struct {
	prefix string
	params []KeyValue
}

func NewParamStreamID(prefix string, params ...KeyValue) (ParamStreamID, error) {
	if err := validateStreamName(prefix); err != nil {
		return ParamStreamID{}, err
	}
	if len(params) == 0 {
		return ParamStreamID{}, &ContractViolationError{Msg: "parameterized stream requires at least one parameter"}
	}
	for _, p := range params {
		if p.Key == "" || p.Value == "" {
			return ParamStreamID{}, &ContractViolationError{Msg: "stream parameter key and value must not be empty"}
		}
	}
	return ParamStreamID{prefix: prefix, params: append([]KeyValue(nil), params...)}, nil
}

func MustParamStreamID(prefix string, params ...KeyValue) ParamStreamID {
	return mustStreamID(NewParamStreamID(prefix, params...))
}

func (s ParamStreamID) Name() string {
	var sb strings.Builder
	sb.WriteString(s.prefix)
	for _, p := range s.params {
		sb.WriteByte('-')
		sb.WriteString(p.Value)
	}
	return sb.String()
}

func (s ParamStreamID) Prefix() string         { return s.prefix }
func (s ParamStreamID) IsProjection() bool     { return false }
func (s ParamStreamID) Parameters() []KeyValue { return append([]KeyValue(nil), s.params...) }
func (s ParamStreamID) String() string         { return s.Name() }

// === tenant ===

const TenantParamKey = "tenant"

// TenantStreamID scopes another stream id to a tenant.
type TenantStreamID struct {
	tenant string
	inner  StreamID
}

func NewTenantStreamID(tenant string, inner StreamID) (TenantStreamID, error) {
	if err := validateStreamName(tenant); err != nil {
		return TenantStreamID{}, err
	}
	if inner == nil {
		return TenantStreamID{}, &ContractViolationError{Msg: "tenant stream requires an inner stream id"}
	}
	return TenantStreamID{tenant: tenant, inner: inner}, nil
}

func MustTenantStreamID(tenant string, inner StreamID) TenantStreamID {
	return mustStreamID(NewTenantStreamID(tenant, inner))
}

func (s TenantStreamID) Name() string       { return s.tenant + "-" + s.inner.Name() }
func (s TenantStreamID) Tenant() string     { return s.tenant }
func (s TenantStreamID) Inner() StreamID    { return s.inner }
func (s TenantStreamID) IsProjection() bool { return s.inner.IsProjection() }
func (s TenantStreamID) String() string     { return s.Name() }

func (s TenantStreamID) Parameters() []KeyValue {
	return append([]KeyValue{{Key: TenantParamKey, Value: s.tenant}}, s.inner.Parameters()...)
}

// --- helpers ---

func validateStreamName(name string) error {
	if strings.TrimSpace(name) == "" {
		return &ContractViolationError{Msg: "stream name must not be empty"}
	}
	return nil
}

func mustStreamID[T StreamID](id T, err error) T {
	if err != nil {
		panic(err)
	}
	return id
}

// streamCategory is the part of the name before the first '-', used as a
// low cardinality metrics label.
func streamCategory(id StreamID) string {
	name := id.Name()
	if i := strings.IndexByte(name, '-'); i > 0 {
		return name[:i]
	}
	return name
}

var (
	_ StreamID = SimpleStreamID{}
	_ StreamID = ProjectionStreamID{}
	_ StreamID = ParamStreamID{}
	_ StreamID = TenantStreamID{}
)
