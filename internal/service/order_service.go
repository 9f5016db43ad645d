package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/Folau1/WebApp/internal/entity"
	"github.com/Folau1/WebApp/internal/pricing"
	"github.com/Folau1/WebApp/internal/repository"
	"github.com/Folau1/WebApp/internal/telemetry"
)

const orderStream = "order"

// MaxLineQty caps the quantity of a single order line.
const MaxLineQty = 10000

// ItemInput is one requested line of a new order.
type ItemInput struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

// CreateOrderInput is a checkout request. UserID is nil for guest checkout.
type CreateOrderInput struct {
	UserID       *string
	Items        []ItemInput
	DiscountCode string
	Address      *entity.Address
}

// OrderService orchestrates order-related business logic.
type OrderService struct {
	orderRepo    repository.OrderRepository
	productRepo  repository.ProductRepository
	discountRepo repository.DiscountRepository
	eventStore   repository.EventStore
	workflow     entity.Workflow
	metrics      *telemetry.Metrics
	now          func() time.Time
}

func NewOrderService(
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	discountRepo repository.DiscountRepository,
	eventStore repository.EventStore,
	workflow entity.Workflow,
	metrics *telemetry.Metrics,
) *OrderService {
	return &OrderService{
		orderRepo:    orderRepo,
		productRepo:  productRepo,
		discountRepo: discountRepo,
		eventStore:   eventStore,
		workflow:     workflow,
		metrics:      metrics,
		now:          time.Now,
	}
}

// Workflow returns the lifecycle orders follow.
func (s *OrderService) Workflow() entity.Workflow {
	return s.workflow
}

// CreateOrder prices the requested items at the current time, applies an
// optional discount code and persists the order in the initial status.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*entity.Order, error) {
	slog.Info("Service: Creating order", "items", len(in.Items), "guest", in.UserID == nil)

	if err := validateOrderInput(in); err != nil {
		return nil, err
	}

	ids := make([]string, len(in.Items))
	for i, item := range in.Items {
		ids[i] = item.ProductID
	}
	products, err := s.productRepo.FindActiveByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	byID := make(map[string]entity.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	now := s.now()
	order := &entity.Order{
		UserID:  in.UserID,
		Status:  s.workflow.Initial,
		Address: in.Address,
	}
	for _, item := range in.Items {
		p, ok := byID[item.ProductID]
		if !ok {
			return nil, ValidationError("product %s is not available", item.ProductID)
		}
		unit := pricing.PriceAt(p, now).FinalPrice
		if unit > 0 && int64(item.Qty) > math.MaxInt64/unit {
			return nil, ValidationError("quantity for product %s is too large", item.ProductID)
		}
		line := entity.OrderItem{
			ProductID: p.ID,
			Title:     p.Title,
			UnitPrice: unit,
			Qty:       item.Qty,
			Subtotal:  unit * int64(item.Qty),
		}
		if order.Subtotal > math.MaxInt64-line.Subtotal {
			return nil, ValidationError("order total is too large")
		}
		order.Items = append(order.Items, line)
		order.Subtotal += line.Subtotal
	}

	if code := entity.NormalizeCode(in.DiscountCode); code != "" {
		d, err := s.orderDiscount(ctx, code, now)
		if err != nil {
			return nil, err
		}
		if d != nil {
			order.DiscountTotal = pricing.ApplyOrderDiscount(order.Subtotal, d)
			order.DiscountID = &d.ID
		}
	}
	order.TotalAmount = max(0, order.Subtotal-order.DiscountTotal)

	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	s.appendEvents(ctx, order.ID, entity.OrderCreated{
		OrderID:     order.ID,
		Number:      order.Number,
		TotalAmount: order.TotalAmount,
		CreatedAt:   order.CreatedAt,
	})
	s.metrics.OrderCreated(ctx)

	slog.Info("Order created", "order_id", order.ID, "number", order.Number, "total", order.TotalAmount)
	return order, nil
}

// orderDiscount resolves a checkout code. Unknown, inactive or out-of-window
// codes are dropped with a warning and the order proceeds without them.
func (s *OrderService) orderDiscount(ctx context.Context, code string, now time.Time) (*entity.Discount, error) {
	d, err := s.discountRepo.FindByCode(ctx, code)
	if errors.Is(err, repository.ErrNotFound) {
		slog.Warn("Ignoring unknown discount code", "code", code)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up discount code: %w", err)
	}
	if !d.ApplicableAt(now) {
		slog.Warn("Ignoring discount code outside its validity", "code", code, "discount_id", d.ID)
		return nil, nil
	}
	return d, nil
}

func validateOrderInput(in CreateOrderInput) error {
	if len(in.Items) == 0 {
		return ValidationError("order must have at least one item")
	}
	seen := make(map[string]bool, len(in.Items))
	for _, item := range in.Items {
		if item.ProductID == "" {
			return ValidationError("product id is required")
		}
		if item.Qty <= 0 {
			return ValidationError("quantity for product %s must be positive", item.ProductID)
		}
		if item.Qty > MaxLineQty {
			return ValidationError("quantity for product %s exceeds %d", item.ProductID, MaxLineQty)
		}
		if seen[item.ProductID] {
			return ValidationError("product %s is listed more than once", item.ProductID)
		}
		seen[item.ProductID] = true
	}
	if a := in.Address; a != nil {
		if strings.TrimSpace(a.Name) == "" || strings.TrimSpace(a.Phone) == "" || strings.TrimSpace(a.Line) == "" {
			return ValidationError("address requires name, phone and line")
		}
	}
	return nil
}

// GetOrder returns an order visible to userID.
func (s *OrderService) GetOrder(ctx context.Context, userID, orderID string) (*entity.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NotFoundError("order not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order %s: %w", orderID, err)
	}
	if !order.OwnedBy(userID) {
		return nil, NotFoundError("order not found")
	}
	return order, nil
}

// ListUserOrders returns the orders of userID, newest first.
func (s *OrderService) ListUserOrders(ctx context.Context, userID string) ([]entity.Order, error) {
	orders, err := s.orderRepo.FindByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders for user %s: %w", userID, err)
	}
	return orders, nil
}

// ListOrders is the paginated admin listing.
func (s *OrderService) ListOrders(ctx context.Context, q repository.OrderQuery) ([]entity.Order, int, error) {
	if q.Status != "" && !s.workflow.Knows(q.Status) {
		return nil, 0, ValidationError("unknown order status %q", q.Status)
	}
	orders, total, err := s.orderRepo.List(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, total, nil
}

// UpdateOrderStatus moves an order forward along the workflow. Moves owned by
// the payment webhook are refused.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID string, to entity.OrderStatus) (*entity.Order, error) {
	slog.Info("Service: Updating order status", "order_id", orderID, "to", to)

	if !s.workflow.Knows(to) {
		return nil, ValidationError("unknown order status %q", to)
	}

	current, err := s.orderRepo.FindByID(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NotFoundError("order not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order %s: %w", orderID, err)
	}
	if !s.workflow.CanTransition(current.Status, to) {
		return nil, ConflictError("cannot move order from %s to %s", current.Status, to)
	}
	if !s.workflow.ManualTransition(current.Status, to) && !freeOrderCancel(s.workflow, current, to) {
		return nil, ConflictError("order leaves %s only through its payment", current.Status)
	}

	order, changed, err := s.orderRepo.Transition(ctx, orderID, current.Status, to)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NotFoundError("order not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update order %s: %w", orderID, err)
	}
	if !changed {
		return nil, ConflictError("order status changed to %s concurrently", order.Status)
	}

	s.appendEvents(ctx, orderID, entity.OrderStatusChanged{
		OrderID:   orderID,
		From:      current.Status,
		To:        to,
		ChangedAt: order.UpdatedAt,
	})
	slog.Info("Order status updated", "order_id", orderID, "from", current.Status, "to", to)
	return order, nil
}

// freeOrderCancel lets an administrator cancel a zero-total order. Such an order
// can never get a payment, so no webhook will ever settle it.
func freeOrderCancel(w entity.Workflow, o *entity.Order, to entity.OrderStatus) bool {
	return o.Status == w.Initial && to == w.Canceled && o.TotalAmount == 0 && o.PaymentID == nil
}

// OrderHistory rebuilds the audit timeline of an order from its events.
func (s *OrderService) OrderHistory(ctx context.Context, orderID string) (*entity.OrderHistory, error) {
	records, err := s.eventStore.LoadEvents(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order history: %w", err)
	}
	if len(records) == 0 {
		if _, err := s.orderRepo.FindByID(ctx, orderID); errors.Is(err, repository.ErrNotFound) {
			return nil, NotFoundError("order not found")
		} else if err != nil {
			return nil, fmt.Errorf("failed to get order %s: %w", orderID, err)
		}
	}

	history := entity.NewOrderHistory(orderID)
	if err := history.Rehydrate(records); err != nil {
		return nil, fmt.Errorf("failed to rehydrate order history: %w", err)
	}
	return history, nil
}

// appendEvents records audit events. The order row is the source of truth,
// so failures are logged and not returned.
func (s *OrderService) appendEvents(ctx context.Context, orderID string, events ...entity.Event) {
	appendOrderEvents(ctx, s.eventStore, orderID, events...)
}

func appendOrderEvents(ctx context.Context, store repository.EventStore, orderID string, events ...entity.Event) {
	if store == nil {
		return
	}
	if err := store.Append(ctx, orderID, orderStream, events); err != nil {
		slog.Error("Failed to append order events", "order_id", orderID, "err", err)
	}
}
