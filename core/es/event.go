package es

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/codewandler/esc-go/core/serial"
)

// EventID identifies an event. Two writes of events with the same id and
// equal content are the same logical write.
type EventID uuid.UUID

func NewEventID() EventID { return EventID(uuid.New()) }

// ParseEventID parses the canonical UUID form.
func ParseEventID(s string) (EventID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return EventID{}, &serial.FormatError{What: "event id", Value: s, Err: err}
	}
	return EventID(id), nil
}

func MustParseEventID(s string) EventID {
	id, err := ParseEventID(s)
	if err != nil {
		panic(err)
	}
	return id
}

func (id EventID) String() string      { return uuid.UUID(id).String() }
func (id EventID) IsZero() bool        { return id == EventID{} }
func (id EventID) SlogAttr() slog.Attr { return slog.String("event_id", id.String()) }

// CommonEvent is the unit of data in a stream. MetaType is set if and only
// if Meta is set. Identity is defined by ID alone.
type CommonEvent struct {
	ID       EventID
	DataType serial.TypeName
	Data     any
	MetaType serial.TypeName
	Meta     any
}

// NewEvent creates an event with a fresh id and no metadata. The type name
// is derived from data (see serial.TypeNameOf).
func NewEvent(data any) CommonEvent {
	return CommonEvent{ID: NewEventID(), DataType: serial.TypeNameOf(data), Data: data}
}

// NewCommonEvent validates and creates an event. Pass an empty metaType and
// nil meta for events without metadata.
func NewCommonEvent(id EventID, dataType serial.TypeName, data any, metaType serial.TypeName, meta any) (CommonEvent, error) {
	e := CommonEvent{ID: id, DataType: dataType, Data: data, MetaType: metaType, Meta: meta}
	if err := e.Validate(); err != nil {
		return CommonEvent{}, err
	}
	return e, nil
}

func MustCommonEvent(id EventID, dataType serial.TypeName, data any, metaType serial.TypeName, meta any) CommonEvent {
	e, err := NewCommonEvent(id, dataType, data, metaType, meta)
	if err != nil {
		panic(err)
	}
	return e
}

// WithMeta returns a copy of e carrying meta; the meta type is derived
// from the value.
func (e CommonEvent) WithMeta(meta any) CommonEvent {
	e.Meta = meta
	e.MetaType = serial.TypeNameOf(meta)
	return e
}

func (e CommonEvent) HasMeta() bool { return e.Meta != nil }

// SameAs reports whether e and o are the same event (same id).
func (e CommonEvent) SameAs(o CommonEvent) bool { return e.ID == o.ID }

func (e CommonEvent) Validate() error {
	switch {
	case e.ID.IsZero():
		return &ContractViolationError{Msg: "event id must be set"}
	case e.DataType == "":
		return &ContractViolationError{Msg: "event data type must be set"}
	case e.Data == nil:
		return &ContractViolationError{Msg: "event data must be set"}
	case (e.MetaType == "") != (e.Meta == nil):
		return &ContractViolationError{Msg: "event meta type must be set if and only if meta is set"}
	}
	return nil
}
