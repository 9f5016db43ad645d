package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Folau1/WebApp/internal/entity"
	"github.com/Folau1/WebApp/internal/repository"
)

const orderColumns = "id, number, user_id, subtotal, discount_total, total_amount, discount_id, status, yk_payment_id, address, created_at, updated_at"

const (
	// number is assigned by the order_number_seq default inside the insert.
	insertOrder = `
		INSERT INTO orders (id, user_id, subtotal, discount_total, total_amount, discount_id, status, address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING number, created_at, updated_at`

	insertOrderItem = "INSERT INTO order_items (order_id, product_id, title, unit_price, qty, subtotal) VALUES ($1, $2, $3, $4, $5, $6)"

	queryOrderByID        = "SELECT " + orderColumns + " FROM orders WHERE id = $1"
	queryOrderByPaymentID = "SELECT " + orderColumns + " FROM orders WHERE yk_payment_id = $1"
	queryOrderByIDPayment = "SELECT " + orderColumns + " FROM orders WHERE id = $1 AND yk_payment_id = $2"
	queryOrdersByUser     = "SELECT " + orderColumns + " FROM orders WHERE user_id = $1 ORDER BY created_at DESC"
	queryOrderItems       = "SELECT order_id, product_id, title, unit_price, qty, subtotal FROM order_items WHERE order_id = ANY($1) ORDER BY id"

	attachPayment = "UPDATE orders SET yk_payment_id = $2, updated_at = NOW() WHERE id = $1 AND status = $3"

	transitionOrder = "UPDATE orders SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2 RETURNING " + orderColumns

	transitionOrderByPayment = "UPDATE orders SET status = $4, updated_at = NOW() WHERE id = $1 AND yk_payment_id = $2 AND status = $3 RETURNING " + orderColumns
)

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new OrderRepository backed by Postgres.
func NewOrderRepository(db *sql.DB) repository.OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(ctx context.Context, order *entity.Order) error {
	var address any
	if order.Address != nil {
		raw, err := json.Marshal(order.Address)
		if err != nil {
			return fmt.Errorf("failed to marshal address: %w", err)
		}
		address = string(raw)
	}
	if order.ID == "" {
		order.ID = uuid.NewString()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, insertOrder,
		order.ID, nullString(order.UserID), order.Subtotal, order.DiscountTotal, order.TotalAmount,
		nullString(order.DiscountID), string(order.Status), address,
	).Scan(&order.Number, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for _, item := range order.Items {
		_, err = tx.ExecContext(ctx, insertOrderItem,
			order.ID, item.ProductID, item.Title, item.UnitPrice, item.Qty, item.Subtotal,
		)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *orderRepository) FindByID(ctx context.Context, id string) (*entity.Order, error) {
	return r.findOne(ctx, queryOrderByID, id)
}

func (r *orderRepository) FindByPaymentID(ctx context.Context, paymentID string) (*entity.Order, error) {
	return r.findOne(ctx, queryOrderByPaymentID, paymentID)
}

func (r *orderRepository) FindByUser(ctx context.Context, userID string) ([]entity.Order, error) {
	return r.findMany(ctx, queryOrdersByUser, userID)
}

func (r *orderRepository) List(ctx context.Context, q repository.OrderQuery) ([]entity.Order, int, error) {
	var where []string
	var args []any
	if q.Status != "" {
		args = append(args, string(q.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if q.UserID != "" {
		args = append(args, q.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM orders"+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	limit, offset := pageBounds(q.Page, q.Limit)
	args = append(args, limit, offset)
	query := fmt.Sprintf("SELECT %s FROM orders%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		orderColumns, cond, len(args)-1, len(args))

	orders, err := r.findMany(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *orderRepository) AttachPayment(ctx context.Context, orderID, paymentID string) error {
	res, err := r.db.ExecContext(ctx, attachPayment, orderID, paymentID, string(entity.StatusPending))
	if err != nil {
		return fmt.Errorf("failed to attach payment to order %s: %w", orderID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to attach payment to order %s: %w", orderID, err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *orderRepository) Transition(ctx context.Context, orderID string, from, to entity.OrderStatus) (*entity.Order, bool, error) {
	row := r.db.QueryRowContext(ctx, transitionOrder, orderID, string(from), string(to))
	return r.afterTransition(ctx, row, queryOrderByID, orderID)
}

func (r *orderRepository) TransitionByPayment(ctx context.Context, orderID, paymentID string, from, to entity.OrderStatus) (*entity.Order, bool, error) {
	row := r.db.QueryRowContext(ctx, transitionOrderByPayment, orderID, paymentID, string(from), string(to))
	return r.afterTransition(ctx, row, queryOrderByIDPayment, orderID, paymentID)
}

// afterTransition scans the updated row, or on no match reads the current one
// to tell "not in the expected status" from "no such order".
func (r *orderRepository) afterTransition(ctx context.Context, row *sql.Row, lookup string, args ...any) (*entity.Order, bool, error) {
	order, err := scanOrder(row)
	if err == nil {
		if err := r.loadItems(ctx, []*entity.Order{order}); err != nil {
			return nil, false, err
		}
		return order, true, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to update order status: %w", err)
	}

	current, err := r.findOne(ctx, lookup, args...)
	if err != nil {
		return nil, false, err
	}
	return current, false, nil
}

func (r *orderRepository) findOne(ctx context.Context, query string, args ...any) (*entity.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, []*entity.Order{order}); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) findMany(ctx context.Context, query string, args ...any) ([]entity.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []entity.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order rows: %w", err)
	}
	rows.Close()

	ptrs := make([]*entity.Order, len(orders))
	for i := range orders {
		ptrs[i] = &orders[i]
	}
	if err := r.loadItems(ctx, ptrs); err != nil {
		return nil, err
	}
	return orders, nil
}

// loadItems fetches the items of all orders in one query.
func (r *orderRepository) loadItems(ctx context.Context, orders []*entity.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	index := make(map[string]*entity.Order, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = o
	}

	rows, err := r.db.QueryContext(ctx, queryOrderItems, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var orderID string
		var item entity.OrderItem
		if err := rows.Scan(&orderID, &item.ProductID, &item.Title, &item.UnitPrice, &item.Qty, &item.Subtotal); err != nil {
			return fmt.Errorf("failed to scan order item: %w", err)
		}
		if o, ok := index[orderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	return rows.Err()
}

func scanOrder(s scanner) (*entity.Order, error) {
	var o entity.Order
	var userID, discountID, paymentID sql.NullString
	var address []byte
	err := s.Scan(&o.ID, &o.Number, &userID, &o.Subtotal, &o.DiscountTotal, &o.TotalAmount,
		&discountID, &o.Status, &paymentID, &address, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}
	if userID.Valid {
		o.UserID = &userID.String
	}
	if discountID.Valid {
		o.DiscountID = &discountID.String
	}
	if paymentID.Valid {
		o.PaymentID = &paymentID.String
	}
	if len(address) > 0 {
		var a entity.Address
		if err := json.Unmarshal(address, &a); err != nil {
			return nil, fmt.Errorf("corrupt address JSON in order %s: %w", o.ID, err)
		}
		o.Address = &a
	}
	return &o, nil
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
