package es

import "github.com/codewandler/esc-go/core/serial"

type (
	orderCreated struct {
		ID    string `json:"id" xml:"id"`
		Total int    `json:"total" xml:"total"`
	}
	orderPlaced struct {
		ID string `json:"id" xml:"id"`
	}
	auditMeta struct {
		User   string            `json:"user"`
		Labels map[string]string `json:"labels,omitempty"`
	}
	orderNote struct {
		Text string `xml:"text"`
	}
	ledgerEntry struct {
		Seq    int64   `json:"seq"`
		Amount uint64  `json:"amount"`
		Rate   float64 `json:"rate"`
	}
)

func (orderCreated) EventType() string { return "OrderCreated" }
func (orderPlaced) EventType() string  { return "OrderPlaced" }
func (auditMeta) EventType() string    { return "AuditMeta" }
func (orderNote) EventType() string    { return "OrderNote" }
func (ledgerEntry) EventType() string  { return "LedgerEntry" }

const commentType serial.SerializedDataType = "Comment"

func testRegistry() *serial.Registry {
	b := serial.NewRegistryBuilder()
	serial.RegisterJSON[orderCreated](b)
	serial.RegisterJSON[orderPlaced](b)
	serial.RegisterJSON[auditMeta](b)
	serial.RegisterXML[orderNote](b)
	serial.RegisterJSON[ledgerEntry](b)
	b.Add(commentType, serial.NewTextCodec())
	return b.Build()
}

func commentEvent(text string) CommonEvent {
	return MustCommonEvent(NewEventID(), commentType.TypeName(), text, "", nil)
}
