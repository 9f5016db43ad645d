package entity

import (
	"fmt"
	"strings"
	"time"
)

// DiscountType is the kind of reduction a Discount applies.
type DiscountType string

const (
	DiscountPercent DiscountType = "PERCENT"
	DiscountFixed   DiscountType = "FIXED"
)

// Valid reports whether t is a known discount type.
func (t DiscountType) Valid() bool {
	return t == DiscountPercent || t == DiscountFixed
}

// Category groups products in the catalog.
type Category struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Slug         string `json:"slug"`
	ProductCount int    `json:"product_count"`
}

// Media is an image or video attached to a product.
type Media struct {
	ID    string `json:"id"`
	Kind  string `json:"kind"` // "IMAGE", "VIDEO"
	URL   string `json:"url"`
	Order int    `json:"order"`
}

// Product represents a product in the store. Money fields are minor currency units.
type Product struct {
	ID          string     `json:"id"`
	Slug        string     `json:"slug"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Price       int64      `json:"price"`
	CompareAt   *int64     `json:"compare_at,omitempty"`
	Active      bool       `json:"active"`
	Stock       int        `json:"stock"`
	CategoryID  string     `json:"category_id"`
	Media       []Media    `json:"media"`
	Discounts   []Discount `json:"-"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Discount is either automatic (no code, attached to products or categories)
// or coded (entered by the customer at checkout).
type Discount struct {
	ID       string       `json:"id"`
	Code     *string      `json:"code,omitempty"`
	Type     DiscountType `json:"type"`
	Value    int64        `json:"value"`
	StartsAt *time.Time   `json:"starts_at,omitempty"`
	EndsAt   *time.Time   `json:"ends_at,omitempty"`
	Active   bool         `json:"active"`
}

// ApplicableAt reports whether the discount is active and now falls inside
// its validity window. A missing bound is open on that side.
func (d Discount) ApplicableAt(now time.Time) bool {
	if !d.Active {
		return false
	}
	if d.StartsAt != nil && now.Before(*d.StartsAt) {
		return false
	}
	if d.EndsAt != nil && now.After(*d.EndsAt) {
		return false
	}
	return true
}

// Validate checks the stored shape of a discount.
func (d Discount) Validate() error {
	if !d.Type.Valid() {
		return fmt.Errorf("unknown discount type %q", d.Type)
	}
	if d.Value <= 0 {
		return fmt.Errorf("discount value must be positive, got %d", d.Value)
	}
	if d.Type == DiscountPercent && d.Value > 100 {
		return fmt.Errorf("percent discount must not exceed 100, got %d", d.Value)
	}
	if d.StartsAt != nil && d.EndsAt != nil && !d.StartsAt.Before(*d.EndsAt) {
		return fmt.Errorf("discount window is empty")
	}
	return nil
}

// NormalizeCode uppercases and trims a customer-entered discount code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Address is the shipping information attached to an order.
type Address struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	City    string `json:"city,omitempty"`
	Line    string `json:"line"`
	Comment string `json:"comment,omitempty"`
}

// OrderItem is a priced line of an order. UnitPrice is frozen at creation.
type OrderItem struct {
	ProductID string `json:"product_id"`
	Title     string `json:"title"`
	UnitPrice int64  `json:"unit_price"`
	Qty       int    `json:"qty"`
	Subtotal  int64  `json:"subtotal"`
}

// Order represents a customer order.
type Order struct {
	ID            string      `json:"id"`
	Number        int64       `json:"number"`
	UserID        *string     `json:"user_id,omitempty"`
	Items         []OrderItem `json:"items"`
	Subtotal      int64       `json:"subtotal"`
	DiscountTotal int64       `json:"discount_total"`
	TotalAmount   int64       `json:"total_amount"`
	DiscountID    *string     `json:"discount_id,omitempty"`
	Status        OrderStatus `json:"status"`
	PaymentID     *string     `json:"payment_id,omitempty"`
	Address       *Address    `json:"address,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// OwnedBy reports whether userID may act on the order. Guest orders have no owner.
func (o *Order) OwnedBy(userID string) bool {
	return o.UserID == nil || *o.UserID == userID
}

// User is a storefront customer identified by their Telegram account.
type User struct {
	ID         string `json:"id"`
	TelegramID string `json:"tg_id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name,omitempty"`
	Username   string `json:"username,omitempty"`
}

// --- Events ---

// OrderCreated is emitted when an order is persisted in PENDING state.
type OrderCreated struct {
	OrderID     string    `json:"order_id"`
	Number      int64     `json:"number"`
	TotalAmount int64     `json:"total_amount"`
	CreatedAt   time.Time `json:"created_at"`
}

func (e OrderCreated) EventType() string { return "OrderCreated" }

// PaymentAttached is emitted when a gateway payment is created for an order.
type PaymentAttached struct {
	OrderID   string    `json:"order_id"`
	PaymentID string    `json:"payment_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (e PaymentAttached) EventType() string { return "PaymentAttached" }

// PaymentSucceeded is emitted when a verified webhook marks the order paid.
type PaymentSucceeded struct {
	OrderID   string      `json:"order_id"`
	PaymentID string      `json:"payment_id"`
	Status    OrderStatus `json:"status"`
	Amount    string      `json:"amount"`
	Currency  string      `json:"currency"`
	PaidAt    time.Time   `json:"paid_at"`
}

func (e PaymentSucceeded) EventType() string { return "PaymentSucceeded" }

// PaymentCanceled is emitted when a verified webhook cancels the order.
type PaymentCanceled struct {
	OrderID    string      `json:"order_id"`
	PaymentID  string      `json:"payment_id"`
	Status     OrderStatus `json:"status"`
	CanceledAt time.Time   `json:"canceled_at"`
}

func (e PaymentCanceled) EventType() string { return "PaymentCanceled" }

// OrderStatusChanged is emitted when an administrator moves an order along.
type OrderStatusChanged struct {
	OrderID   string      `json:"order_id"`
	From      OrderStatus `json:"from"`
	To        OrderStatus `json:"to"`
	ChangedAt time.Time   `json:"changed_at"`
}

func (e OrderStatusChanged) EventType() string { return "OrderStatusChanged" }

// OrderPaid is published on the message bus after a successful payment.
// The notification consumer forwards it to the Telegram bot.
type OrderPaid struct {
	Order  Order     `json:"order"`
	PaidAt time.Time `json:"paid_at"`
}

func (e OrderPaid) EventType() string { return "OrderPaid" }
