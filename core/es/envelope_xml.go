package es

import (
	"bytes"
	"encoding/xml"
	"fmt"

	"github.com/codewandler/esc-go/core/serial"
)

type (
	xmlEnvelope struct {
		XMLName   xml.Name    `xml:"Event"`
		EventID   string      `xml:"EventId"`
		EventType string      `xml:"EventType"`
		Data      xmlSlot     `xml:"Data"`
		MetaData  xmlMetaData `xml:"MetaData"`
	}
	xmlMetaData struct {
		EscUserMeta *xmlSlot   `xml:"EscUserMeta,omitempty"`
		EscSysMeta  xmlSysMeta `xml:"EscSysMeta"`
	}
	xmlSysMeta struct {
		DataContentType string `xml:"data-content-type"`
		MetaContentType string `xml:"meta-content-type,omitempty"`
		MetaType        string `xml:"meta-type,omitempty"`
	}
	// xmlSlot keeps the element content verbatim in both directions.
	xmlSlot struct {
		Inner []byte `xml:",innerxml"`
	}
	xmlEnvelopes struct {
		XMLName xml.Name      `xml:"Events"`
		Events  []xmlEnvelope `xml:"Event"`
	}
)

func (s slot) xml() *xmlSlot {
	if s.native != nil {
		return &xmlSlot{Inner: s.native}
	}
	return &xmlSlot{Inner: []byte(s.base64)}
}

func (c *EnvelopeCodec) marshalXML(e CommonEvent) ([]byte, error) {
	data, dataMime, err := c.encodeSlot(FormatXML, e.DataType, e.Data)
	if err != nil {
		return nil, err
	}
	env := xmlEnvelope{
		EventID:   e.ID.String(),
		EventType: string(e.DataType),
		Data:      *data.xml(),
		MetaData: xmlMetaData{
			EscSysMeta: xmlSysMeta{DataContentType: dataMime.String()},
		},
	}
	if e.HasMeta() {
		meta, metaMime, err := c.encodeSlot(FormatXML, e.MetaType, e.Meta)
		if err != nil {
			return nil, err
		}
		env.MetaData.EscUserMeta = meta.xml()
		env.MetaData.EscSysMeta.MetaContentType = metaMime.String()
		env.MetaData.EscSysMeta.MetaType = string(e.MetaType)
	}
	return xml.Marshal(env)
}

func (c *EnvelopeCodec) unmarshalXML(data []byte) (CommonEvent, error) {
	var env xmlEnvelope
	if err := xml.Unmarshal(data, &env); err != nil {
		return CommonEvent{}, &FormatError{What: "xml envelope", Err: err}
	}
	return c.fromXMLEnvelope(env)
}

func (c *EnvelopeCodec) fromXMLEnvelope(env xmlEnvelope) (CommonEvent, error) {
	sys := env.MetaData.EscSysMeta
	if sys.DataContentType == "" {
		return CommonEvent{}, &FormatError{What: "xml envelope", Err: fmt.Errorf("missing data-content-type")}
	}
	data, err := c.decodeSlot(env.EventType, sys.DataContentType, serial.XMLNode(bytes.TrimSpace(env.Data.Inner)))
	if err != nil {
		return CommonEvent{}, fmt.Errorf("decode data of event %s: %w", env.EventID, err)
	}
	var meta any
	if sys.MetaType != "" {
		if env.MetaData.EscUserMeta == nil || sys.MetaContentType == "" {
			return CommonEvent{}, &FormatError{What: "xml envelope", Err: fmt.Errorf("meta-type without EscUserMeta")}
		}
		in := serial.XMLNode(bytes.TrimSpace(env.MetaData.EscUserMeta.Inner))
		meta, err = c.decodeSlot(sys.MetaType, sys.MetaContentType, in)
		if err != nil {
			return CommonEvent{}, fmt.Errorf("decode meta of event %s: %w", env.EventID, err)
		}
	}
	return newDecodedEvent(env.EventID, env.EventType, data, sys.MetaType, meta)
}

func (c *EnvelopeCodec) unmarshalXMLBatch(data []byte) ([]CommonEvent, error) {
	var envs xmlEnvelopes
	if err := xml.Unmarshal(data, &envs); err != nil {
		return nil, &FormatError{What: "xml envelope list", Err: err}
	}
	events := make([]CommonEvent, 0, len(envs.Events))
	for i, env := range envs.Events {
		e, err := c.fromXMLEnvelope(env)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		events = append(events, e)
	}
	return events, nil
}
