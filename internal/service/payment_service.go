package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/Folau1/WebApp/internal/entity"
	"github.com/Folau1/WebApp/internal/messaging"
	"github.com/Folau1/WebApp/internal/payment"
	"github.com/Folau1/WebApp/internal/repository"
	"github.com/Folau1/WebApp/internal/telemetry"
)

// webhookDedupeTTL bounds how long a processed delivery is remembered.
const webhookDedupeTTL = 24 * time.Hour

// PaymentConfig holds the merchant settings used when creating payments.
type PaymentConfig struct {
	Currency      string
	ReturnURL     string
	WebhookSecret []byte
}

// PaymentStatus is the gateway state of a payment plus the order it pays for.
type PaymentStatus struct {
	payment.Status
	OrderID     string             `json:"order_id"`
	OrderStatus entity.OrderStatus `json:"order_status"`
}

// PaymentService creates gateway payments and applies their webhooks to orders.
type PaymentService struct {
	orderRepo  repository.OrderRepository
	eventStore repository.EventStore
	gateway    payment.Gateway
	publisher  messaging.Publisher
	deduper    repository.WebhookDeduper
	workflow   entity.Workflow
	cfg        PaymentConfig
	metrics    *telemetry.Metrics
	now        func() time.Time
}

// NewPaymentService wires the payment flow. publisher and deduper may be nil.
func NewPaymentService(
	orderRepo repository.OrderRepository,
	eventStore repository.EventStore,
	gateway payment.Gateway,
	publisher messaging.Publisher,
	deduper repository.WebhookDeduper,
	workflow entity.Workflow,
	cfg PaymentConfig,
	metrics *telemetry.Metrics,
) *PaymentService {
	if cfg.Currency == "" {
		cfg.Currency = "RUB"
	}
	return &PaymentService{
		orderRepo:  orderRepo,
		eventStore: eventStore,
		gateway:    gateway,
		publisher:  publisher,
		deduper:    deduper,
		workflow:   workflow,
		cfg:        cfg,
		metrics:    metrics,
		now:        time.Now,
	}
}

// CreatePayment starts a gateway payment for a pending order owned by userID.
func (s *PaymentService) CreatePayment(ctx context.Context, userID, orderID string) (*payment.Intent, error) {
	slog.Info("Service: Creating payment", "order_id", orderID)

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
	if order.Status != s.workflow.Initial {
		return nil, ConflictError("order is %s, not payable", order.Status)
	}
	if order.TotalAmount <= 0 {
		return nil, ValidationError("order has nothing to pay; ask the store to cancel it")
	}

	returnURL, err := withOrderID(s.cfg.ReturnURL, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to build return url: %w", err)
	}

	intent, err := s.gateway.CreatePayment(ctx, payment.Request{
		IdempotencyKey: uuid.NewString(),
		Amount:         payment.MinorToMajor(order.TotalAmount),
		Currency:       s.cfg.Currency,
		ReturnURL:      returnURL,
		Description:    fmt.Sprintf("Order #%d", order.Number),
		Metadata:       map[string]string{"orderId": order.ID, "userId": userID},
	})
	if err != nil {
		slog.Error("Payment gateway failed", "order_id", order.ID, "err", err)
		return nil, GatewayError(err, "payment provider unavailable")
	}

	if err := s.orderRepo.AttachPayment(ctx, order.ID, intent.PaymentID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ConflictError("order is no longer payable")
		}
		return nil, fmt.Errorf("failed to store payment id: %w", err)
	}

	appendOrderEvents(ctx, s.eventStore, order.ID, entity.PaymentAttached{
		OrderID:   order.ID,
		PaymentID: intent.PaymentID,
		CreatedAt: s.now(),
	})
	s.metrics.PaymentCreated(ctx)

	slog.Info("Payment created", "order_id", order.ID, "payment_id", intent.PaymentID)
	return intent, nil
}

func withOrderID(base, orderID string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("orderId", orderID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// HandleWebhook verifies and applies a gateway notification. body must be the
// exact bytes received. Replays and stale events are accepted without effect.
func (s *PaymentService) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if !payment.VerifySignature(s.cfg.WebhookSecret, body, signature) {
		slog.Warn("Webhook: invalid signature")
		s.metrics.Webhook(ctx, "", "rejected")
		return AuthError("invalid signature")
	}

	n, err := payment.ParseNotification(body)
	if err != nil {
		s.metrics.Webhook(ctx, "", "malformed")
		return ValidationError("malformed webhook body")
	}

	key := n.Event + ":" + n.Object.ID
	if s.deduper != nil {
		seen, err := s.deduper.Seen(ctx, key)
		if err != nil {
			slog.Warn("Webhook: dedupe lookup failed", "key", key, "err", err)
		} else if seen {
			slog.Info("Webhook: duplicate delivery", "event", n.Event, "payment_id", n.Object.ID)
			s.metrics.Webhook(ctx, n.Event, "duplicate")
			return nil
		}
	}

	var outcome string
	switch n.Event {
	case payment.EventSucceeded:
		outcome, err = s.applyPaymentResult(ctx, n, s.workflow.Paid)
	case payment.EventCanceled:
		outcome, err = s.applyPaymentResult(ctx, n, s.workflow.Canceled)
	default:
		slog.Info("Webhook: ignoring event", "event", n.Event, "payment_id", n.Object.ID)
		s.metrics.Webhook(ctx, n.Event, "ignored")
		return nil
	}
	if err != nil {
		s.metrics.Webhook(ctx, n.Event, "error")
		return err
	}
	s.metrics.Webhook(ctx, n.Event, outcome)

	if s.deduper != nil {
		if err := s.deduper.Mark(ctx, key, webhookDedupeTTL); err != nil {
			slog.Warn("Webhook: failed to remember delivery", "key", key, "err", err)
		}
	}
	return nil
}

// applyPaymentResult moves the matching pending order to target. The update is
// conditional on the order still being in the initial status, so a replay or a
// late event never overrides a terminal state.
func (s *PaymentService) applyPaymentResult(ctx context.Context, n *payment.Notification, target entity.OrderStatus) (string, error) {
	paymentID := n.Object.ID
	orderID := n.OrderID()
	if orderID == "" {
		existing, err := s.orderRepo.FindByPaymentID(ctx, paymentID)
		if errors.Is(err, repository.ErrNotFound) {
			slog.Warn("Webhook: payment without order", "payment_id", paymentID)
			return "unmatched", nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to find order for payment %s: %w", paymentID, err)
		}
		orderID = existing.ID
	}

	order, changed, err := s.orderRepo.TransitionByPayment(ctx, orderID, paymentID, s.workflow.Initial, target)
	if errors.Is(err, repository.ErrNotFound) {
		slog.Warn("Webhook: no order matches payment", "order_id", orderID, "payment_id", paymentID)
		return "unmatched", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to update order %s: %w", orderID, err)
	}
	if !changed {
		slog.Info("Webhook: order already settled", "order_id", orderID, "status", order.Status, "event", n.Event)
		return "noop", nil
	}

	now := s.now()
	if target == s.workflow.Paid {
		appendOrderEvents(ctx, s.eventStore, orderID, entity.PaymentSucceeded{
			OrderID:   orderID,
			PaymentID: paymentID,
			Status:    target,
			Amount:    n.Object.Amount.Value,
			Currency:  n.Object.Amount.Currency,
			PaidAt:    now,
		})
		s.publishPaid(ctx, order, now)
		slog.Info("Order paid successfully", "order_id", orderID, "payment_id", paymentID)
	} else {
		appendOrderEvents(ctx, s.eventStore, orderID, entity.PaymentCanceled{
			OrderID:    orderID,
			PaymentID:  paymentID,
			Status:     target,
			CanceledAt: now,
		})
		slog.Info("Order canceled", "order_id", orderID, "payment_id", paymentID)
	}
	return "applied", nil
}

func (s *PaymentService) publishPaid(ctx context.Context, order *entity.Order, paidAt time.Time) {
	if s.publisher == nil {
		return
	}
	event := entity.OrderPaid{Order: *order, PaidAt: paidAt}
	if err := s.publisher.PublishEvent(ctx, messaging.TopicOrdersPaid, order.ID, event); err != nil {
		slog.Error("Failed to publish OrderPaid", "order_id", order.ID, "err", err)
	}
}

// CheckPaymentStatus asks the gateway about a payment of one of userID's orders.
func (s *PaymentService) CheckPaymentStatus(ctx context.Context, userID, paymentID string) (*PaymentStatus, error) {
	order, err := s.orderRepo.FindByPaymentID(ctx, paymentID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NotFoundError("payment not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find order for payment %s: %w", paymentID, err)
	}
	if !order.OwnedBy(userID) {
		return nil, ForbiddenError("payment belongs to another user")
	}

	st, err := s.gateway.GetPayment(ctx, paymentID)
	if err != nil {
		slog.Error("Payment gateway failed", "payment_id", paymentID, "err", err)
		return nil, GatewayError(err, "payment provider unavailable")
	}
	return &PaymentStatus{Status: *st, OrderID: order.ID, OrderStatus: order.Status}, nil
}
