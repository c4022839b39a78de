package es

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strconv"

	"github.com/gowebpki/jcs"

	"github.com/codewandler/esc-go/core/serial"
)

type (
	jsonEnvelope struct {
		EventID   string          `json:"EventId"`
		EventType string          `json:"EventType"`
		Data      json.RawMessage `json:"Data"`
		MetaData  jsonMetaData    `json:"MetaData"`
	}
	jsonMetaData struct {
		EscUserMeta json.RawMessage `json:"EscUserMeta,omitempty"`
		EscSysMeta  jsonSysMeta     `json:"EscSysMeta"`
	}
	jsonSysMeta struct {
		DataContentType string `json:"data-content-type"`
		MetaContentType string `json:"meta-content-type,omitempty"`
		MetaType        string `json:"meta-type,omitempty"`
	}
)

func (s slot) json() (json.RawMessage, error) {
	if s.native != nil {
		return s.native, nil
	}
	return json.Marshal(s.base64)
}

func (c *EnvelopeCodec) marshalJSON(e CommonEvent) ([]byte, error) {
	data, dataMime, err := c.encodeSlot(FormatJSON, e.DataType, e.Data)
	if err != nil {
		return nil, err
	}
	env := jsonEnvelope{
		EventID:   e.ID.String(),
		EventType: string(e.DataType),
		MetaData: jsonMetaData{
			EscSysMeta: jsonSysMeta{DataContentType: dataMime.String()},
		},
	}
	if env.Data, err = data.json(); err != nil {
		return nil, err
	}
	if e.HasMeta() {
		meta, metaMime, err := c.encodeSlot(FormatJSON, e.MetaType, e.Meta)
		if err != nil {
			return nil, err
		}
		if env.MetaData.EscUserMeta, err = meta.json(); err != nil {
			return nil, err
		}
		env.MetaData.EscSysMeta.MetaContentType = metaMime.String()
		env.MetaData.EscSysMeta.MetaType = string(e.MetaType)
	}
	return json.Marshal(env)
}

func (c *EnvelopeCodec) unmarshalJSON(data []byte) (CommonEvent, error) {
	var env jsonEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return CommonEvent{}, &FormatError{What: "json envelope", Err: err}
	}
	return c.fromJSONEnvelope(env)
}

func (c *EnvelopeCodec) fromJSONEnvelope(env jsonEnvelope) (CommonEvent, error) {
	sys := env.MetaData.EscSysMeta
	if sys.DataContentType == "" || len(env.Data) == 0 {
		return CommonEvent{}, &FormatError{What: "json envelope", Err: fmt.Errorf("missing Data or data-content-type")}
	}
	data, err := c.decodeSlot(env.EventType, sys.DataContentType, jsonSlotInput(env.Data, sys.DataContentType))
	if err != nil {
		return CommonEvent{}, fmt.Errorf("decode data of event %s: %w", env.EventID, err)
	}
	var meta any
	if sys.MetaType != "" {
		if len(env.MetaData.EscUserMeta) == 0 || sys.MetaContentType == "" {
			return CommonEvent{}, &FormatError{What: "json envelope", Err: fmt.Errorf("meta-type without EscUserMeta")}
		}
		meta, err = c.decodeSlot(sys.MetaType, sys.MetaContentType, jsonSlotInput(env.MetaData.EscUserMeta, sys.MetaContentType))
		if err != nil {
			return CommonEvent{}, fmt.Errorf("decode meta of event %s: %w", env.EventID, err)
		}
	}
	return newDecodedEvent(env.EventID, env.EventType, data, sys.MetaType, meta)
}

// jsonSlotInput unwraps the JSON string of a base64 slot; native nodes are
// handed over as they are.
func jsonSlotInput(raw json.RawMessage, contentType string) serial.Input {
	mt, err := serial.ParseMimeType(contentType)
	if err != nil || !mt.IsBase64() {
		return serial.JSONNode(raw)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		// not a string, let base64 decoding report it
		return serial.Bytes(raw)
	}
	return serial.Bytes(s)
}

func (c *EnvelopeCodec) unmarshalJSONBatch(data []byte) ([]CommonEvent, error) {
	var envs []jsonEnvelope
	if err := json.Unmarshal(data, &envs); err != nil {
		return nil, &FormatError{What: "json envelope list", Err: err}
	}
	events := make([]CommonEvent, 0, len(envs))
	for i, env := range envs {
		e, err := c.fromJSONEnvelope(env)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		events = append(events, e)
	}
	return events, nil
}

// canonicalJSON returns the RFC 8785 form of a JSON payload. JCS writes
// numbers as IEEE 754 doubles, so a payload holding a number that no double
// reproduces exactly (e.g. an int64 above 2^53) is instead re-encoded with
// sorted object keys and its number literals kept verbatim.
func canonicalJSON(data []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after json value")
	}
	if numbersFitDouble(v) {
		return jcs.Transform(data)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func numbersFitDouble(v any) bool {
	switch v := v.(type) {
	case json.Number:
		return fitsDouble(string(v))
	case []any:
		for _, e := range v {
			if !numbersFitDouble(e) {
				return false
			}
		}
	case map[string]any:
		for _, e := range v {
			if !numbersFitDouble(e) {
				return false
			}
		}
	}
	return true
}

// fitsDouble reports whether the shortest formatting of the double nearest
// to lit has the same decimal value as lit. That is the number JCS writes.
func fitsDouble(lit string) bool {
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return false
	}
	want, ok := new(big.Rat).SetString(lit)
	if !ok {
		return false
	}
	got, ok := new(big.Rat).SetString(strconv.FormatFloat(f, 'g', -1, 64))
	return ok && want.Cmp(got) == 0
}
