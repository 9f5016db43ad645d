package payment

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/shopspring/decimal"
)

// Webhook event names sent by the provider.
const (
	EventSucceeded = "payment.succeeded"
	EventCanceled  = "payment.canceled"
)

// Gateway creates and inspects payments at an external provider.
type Gateway interface {
	CreatePayment(ctx context.Context, req Request) (*Intent, error)
	GetPayment(ctx context.Context, paymentID string) (*Status, error)
}

// Request describes a payment to create. Amount is in major currency units.
type Request struct {
	IdempotencyKey string
	Amount         decimal.Decimal
	Currency       string
	ReturnURL      string
	Description    string
	Metadata       map[string]string
}

// Intent is a freshly created payment the customer must confirm.
type Intent struct {
	PaymentID       string `json:"payment_id"`
	Status          string `json:"status"`
	ConfirmationURL string `json:"confirmation_url"`
}

// Status is the provider-side state of a payment.
type Status struct {
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
	Paid      bool   `json:"paid"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
}

// Amount is a money value as the provider encodes it.
type Amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

// Object is the payment carried by a webhook notification.
type Object struct {
	ID       string            `json:"id"`
	Status   string            `json:"status"`
	Paid     bool              `json:"paid"`
	Amount   Amount            `json:"amount"`
	Metadata map[string]string `json:"metadata"`
}

// Notification is a webhook delivery.
type Notification struct {
	Type   string `json:"type"`
	Event  string `json:"event"`
	Object Object `json:"object"`
}

// OrderID returns the order id the payment was created for, if any.
func (n Notification) OrderID() string {
	return n.Object.Metadata["orderId"]
}

// ParseNotification decodes a webhook body. Call it only after the signature is verified.
func ParseNotification(body []byte) (*Notification, error) {
	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, err
	}
	if n.Event == "" {
		return nil, errors.New("notification has no event")
	}
	if n.Object.ID == "" {
		return nil, errors.New("notification has no payment id")
	}
	return &n, nil
}

// MinorToMajor converts kopecks to a two-decimal ruble amount.
func MinorToMajor(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}
