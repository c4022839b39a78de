package serial

import (
	"bytes"
	"slices"
)

// SerializedData is an opaque, typed payload. It is the unit exchanged
// between the registry, the envelope codec and storage backends.
type SerializedData struct {
	Type     SerializedDataType
	MimeType MimeType
	Data     []byte
}

func NewSerializedData(t SerializedDataType, mt MimeType, data []byte) SerializedData {
	return SerializedData{Type: t, MimeType: mt, Data: slices.Clone(data)}
}

// Equal compares type, mime type (see MimeType.Equal) and byte content.
func (d SerializedData) Equal(o SerializedData) bool {
	return d.Type == o.Type &&
		d.MimeType.Equal(o.MimeType) &&
		d.MimeType.TransferEncoding() == o.MimeType.TransferEncoding() &&
		bytes.Equal(d.Data, o.Data)
}

func (d SerializedData) IsZero() bool { return d.Type == "" && len(d.Data) == 0 }
