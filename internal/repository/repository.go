package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Folau1/WebApp/internal/entity"
)

// ErrNotFound is returned when a lookup or a conditional update matches no row.
var ErrNotFound = errors.New("not found")

// ProductQuery filters and pages the public catalog.
type ProductQuery struct {
	Search     string
	CategoryID string
	Sort       string // "price_asc", "price_desc", "created_asc", "created_desc"
	Page       int
	Limit      int
}

// ProductRepository reads the catalog. Products come back with their attached
// automatic discounts (product- and category-level), unfiltered by date.
type ProductRepository interface {
	FindActiveByIDs(ctx context.Context, ids []string) ([]entity.Product, error)
	FindBySlug(ctx context.Context, slug string) (*entity.Product, error)
	List(ctx context.Context, q ProductQuery) ([]entity.Product, int, error)
	ListCategories(ctx context.Context) ([]entity.Category, error)
}

// DiscountRepository reads discounts.
type DiscountRepository interface {
	// FindByCode returns the discount with the given (already normalized) code.
	FindByCode(ctx context.Context, code string) (*entity.Discount, error)
}

// OrderQuery filters the admin order listing.
type OrderQuery struct {
	Status entity.OrderStatus
	UserID string
	Page   int
	Limit  int
}

// OrderRepository handles persistence for Orders.
type OrderRepository interface {
	// Create inserts the order and its items in one transaction and assigns
	// ID, Number, CreatedAt and UpdatedAt. Numbers come from a database sequence.
	Create(ctx context.Context, order *entity.Order) error
	FindByID(ctx context.Context, id string) (*entity.Order, error)
	FindByPaymentID(ctx context.Context, paymentID string) (*entity.Order, error)
	FindByUser(ctx context.Context, userID string) ([]entity.Order, error)
	List(ctx context.Context, q OrderQuery) ([]entity.Order, int, error)

	// AttachPayment stores the gateway payment id on a PENDING order.
	AttachPayment(ctx context.Context, orderID, paymentID string) error

	// Transition moves the order from -> to only if it is currently in from.
	// changed is false when the order exists but is not in from; ErrNotFound
	// is returned when no order matches.
	Transition(ctx context.Context, orderID string, from, to entity.OrderStatus) (order *entity.Order, changed bool, err error)

	// TransitionByPayment is Transition additionally matched on the payment id.
	TransitionByPayment(ctx context.Context, orderID, paymentID string, from, to entity.OrderStatus) (order *entity.Order, changed bool, err error)
}

// UserRepository stores storefront customers.
type UserRepository interface {
	FindOrCreateByTelegramID(ctx context.Context, u entity.User) (*entity.User, error)
}

// EventStore handles appending and loading events for an aggregate stream.
type EventStore interface {
	// Append adds events after the current end of the stream.
	Append(ctx context.Context, streamID string, streamType string, events []entity.Event) error
	LoadEvents(ctx context.Context, streamID string) ([]entity.EventStoreRecord, error)
}

// WebhookDeduper remembers webhook deliveries that were already processed.
type WebhookDeduper interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string, ttl time.Duration) error
}
