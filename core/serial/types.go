package serial

import (
	"log/slog"
	"reflect"
	"strings"

	"github.com/codewandler/esc-go/internal/reflector"
)

// TypeName identifies an event or metadata type at the domain level.
type TypeName string

// NewTypeName validates that name is not blank.
func NewTypeName(name string) (TypeName, error) {
	if strings.TrimSpace(name) == "" {
		return "", contractViolation("type name must not be empty")
	}
	return TypeName(name), nil
}

func MustTypeName(name string) TypeName { return must(NewTypeName(name)) }

func (t TypeName) String() string { return string(t) }

// SerializedDataType returns the wire level type for t. Both share the same
// value unless a caller maps them explicitly.
func (t TypeName) SerializedDataType() SerializedDataType { return SerializedDataType(t) }

func (t TypeName) SlogAttr() slog.Attr { return slog.String("type", string(t)) }

// SerializedDataType identifies a payload type on the wire and is the
// registry key.
type SerializedDataType string

func NewSerializedDataType(name string) (SerializedDataType, error) {
	if strings.TrimSpace(name) == "" {
		return "", contractViolation("serialized data type must not be empty")
	}
	return SerializedDataType(name), nil
}

func MustSerializedDataType(name string) SerializedDataType {
	return must(NewSerializedDataType(name))
}

func (t SerializedDataType) String() string     { return string(t) }
func (t SerializedDataType) TypeName() TypeName { return TypeName(t) }

// TypeNameFor derives the type name of T. Types may override the default
// (the Go type name) by implementing EventType() string.
func TypeNameFor[T any]() TypeName {
	ti := reflector.TypeInfoFor[T]()
	if n, ok := reflect.New(ti.Type).Interface().(interface{ EventType() string }); ok {
		return TypeName(n.EventType())
	}
	return TypeName(ti.Name)
}

// TypeNameOf is like TypeNameFor but works on a value.
func TypeNameOf(v any) TypeName {
	if n, ok := v.(interface{ EventType() string }); ok {
		return TypeName(n.EventType())
	}
	return TypeName(reflector.TypeInfoOf(v).Name)
}
