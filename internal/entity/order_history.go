package entity

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event represents a domain event.
type Event interface {
	EventType() string
}

// EventStoreRecord is an event as stored in an order's stream.
type EventStoreRecord struct {
	ID         string    `json:"id"`
	StreamID   string    `json:"stream_id"`
	StreamType string    `json:"stream_type"`
	Version    int       `json:"version"`
	EventType  string    `json:"event_type"`
	Payload    []byte    `json:"payload"`
	CreatedAt  time.Time `json:"created_at"`
}

// HistoryEntry is one step of an order's timeline.
type HistoryEntry struct {
	Version   int         `json:"version"`
	EventType string      `json:"event_type"`
	Status    OrderStatus `json:"status"`
	PaymentID string      `json:"payment_id,omitempty"`
	At        time.Time   `json:"at"`
}

// OrderHistory is the audit timeline of an order, rebuilt by replaying its events.
type OrderHistory struct {
	OrderID   string         `json:"order_id"`
	Version   int            `json:"version"`
	Status    OrderStatus    `json:"status"`
	PaymentID string         `json:"payment_id,omitempty"`
	Entries   []HistoryEntry `json:"entries"`
}

// NewOrderHistory creates an empty history for orderID.
func NewOrderHistory(orderID string) *OrderHistory {
	return &OrderHistory{OrderID: orderID}
}

// ApplyEvent folds a single event into the history.
func (h *OrderHistory) ApplyEvent(e Event) error {
	entry := HistoryEntry{EventType: e.EventType()}

	switch e := e.(type) {
	case OrderCreated:
		h.Status = StatusPending
		entry.At = e.CreatedAt
	case PaymentAttached:
		h.PaymentID = e.PaymentID
		entry.PaymentID = e.PaymentID
		entry.At = e.CreatedAt
	case PaymentSucceeded:
		h.Status = e.Status
		entry.PaymentID = e.PaymentID
		entry.At = e.PaidAt
	case PaymentCanceled:
		h.Status = e.Status
		entry.PaymentID = e.PaymentID
		entry.At = e.CanceledAt
	case OrderStatusChanged:
		h.Status = e.To
		entry.At = e.ChangedAt
	default:
		return fmt.Errorf("unknown event type for OrderHistory: %s", e.EventType())
	}

	h.Version++
	entry.Version = h.Version
	entry.Status = h.Status
	h.Entries = append(h.Entries, entry)
	return nil
}

// Rehydrate replays stored records in version order.
func (h *OrderHistory) Rehydrate(records []EventStoreRecord) error {
	for _, rec := range records {
		e, err := decodeOrderEvent(rec)
		if err != nil {
			return err
		}
		if err := h.ApplyEvent(e); err != nil {
			return fmt.Errorf("failed to apply event from stream: %w", err)
		}
	}
	return nil
}

func decodeOrderEvent(rec EventStoreRecord) (Event, error) {
	var (
		e   Event
		err error
	)
	switch rec.EventType {
	case "OrderCreated":
		var v OrderCreated
		err = json.Unmarshal(rec.Payload, &v)
		e = v
	case "PaymentAttached":
		var v PaymentAttached
		err = json.Unmarshal(rec.Payload, &v)
		e = v
	case "PaymentSucceeded":
		var v PaymentSucceeded
		err = json.Unmarshal(rec.Payload, &v)
		e = v
	case "PaymentCanceled":
		var v PaymentCanceled
		err = json.Unmarshal(rec.Payload, &v)
		e = v
	case "OrderStatusChanged":
		var v OrderStatusChanged
		err = json.Unmarshal(rec.Payload, &v)
		e = v
	default:
		return nil, fmt.Errorf("unknown event type in stream: %s", rec.EventType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s event: %w", rec.EventType, err)
	}
	return e, nil
}
