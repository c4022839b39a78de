// Package domain holds the order events the backend conformance suite
// writes.
package domain

import "github.com/codewandler/esc-go/core/serial"

type (
	OrderCreated struct {
		ID       string `json:"id"`
		Customer string `json:"customer"`
		Total    int    `json:"total"`
	}

	OrderPlaced struct {
		ID    string   `json:"id"`
		Items []string `json:"items,omitempty"`
	}

	OrderShipped struct {
		ID      string `xml:"id,attr"`
		Carrier string `xml:"carrier"`
	}

	AuditMeta struct {
		User          string `json:"user"`
		CorrelationID string `json:"correlation_id,omitempty"`
	}
)

func (OrderCreated) EventType() string { return "OrderCreated" }
func (OrderPlaced) EventType() string  { return "OrderPlaced" }
func (OrderShipped) EventType() string { return "OrderShipped" }
func (AuditMeta) EventType() string    { return "AuditMeta" }

// Registry registers all order events.
func Registry() *serial.Registry {
	b := serial.NewRegistryBuilder()
	serial.RegisterJSON[OrderCreated](b)
	serial.RegisterJSON[OrderPlaced](b)
	serial.RegisterXML[OrderShipped](b)
	serial.RegisterJSON[AuditMeta](b)
	return b.Build()
}
