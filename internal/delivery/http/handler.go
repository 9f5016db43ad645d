package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Folau1/WebApp/internal/auth"
	"github.com/Folau1/WebApp/internal/entity"
	"github.com/Folau1/WebApp/internal/payment"
	"github.com/Folau1/WebApp/internal/repository"
	"github.com/Folau1/WebApp/internal/service"
)

const (
	signatureHeader = "X-Yookassa-Signature"
	maxWebhookBody  = 1 << 20
	maxRequestBody  = 64 << 10
)

// CatalogService is the catalog surface used by the handlers.
type CatalogService interface {
	ListProducts(ctx context.Context, q repository.ProductQuery) (*service.ProductPage, error)
	GetProduct(ctx context.Context, slug string) (*service.PricedProduct, error)
	ListCategories(ctx context.Context) ([]entity.Category, error)
	ValidateDiscountCode(ctx context.Context, code string) (*service.CodeCheck, error)
}

// OrderService is the order surface used by the handlers.
type OrderService interface {
	CreateOrder(ctx context.Context, in service.CreateOrderInput) (*entity.Order, error)
	GetOrder(ctx context.Context, userID, orderID string) (*entity.Order, error)
	ListUserOrders(ctx context.Context, userID string) ([]entity.Order, error)
	ListOrders(ctx context.Context, q repository.OrderQuery) ([]entity.Order, int, error)
	UpdateOrderStatus(ctx context.Context, orderID string, to entity.OrderStatus) (*entity.Order, error)
	OrderHistory(ctx context.Context, orderID string) (*entity.OrderHistory, error)
}

// PaymentService is the payment surface used by the handlers.
type PaymentService interface {
	CreatePayment(ctx context.Context, userID, orderID string) (*payment.Intent, error)
	HandleWebhook(ctx context.Context, body []byte, signature string) error
	CheckPaymentStatus(ctx context.Context, userID, paymentID string) (*service.PaymentStatus, error)
}

// AdminCredentials is the single administrator account.
type AdminCredentials struct {
	Email        string
	PasswordHash string
}

// Handler handles HTTP requests for the application.
type Handler struct {
	catalog  CatalogService
	orders   OrderService
	payments PaymentService
	authn    *Authenticator
	jwt      *auth.JWTManager
	admin    AdminCredentials
	limiter  *RateLimiter
	health   func(ctx context.Context) error
}

// Option customizes a Handler.
type Option func(*Handler)

// WithRateLimiter throttles the public storefront routes.
func WithRateLimiter(rl *RateLimiter) Option {
	return func(h *Handler) { h.limiter = rl }
}

// WithHealthCheck makes /healthz report the result of check.
func WithHealthCheck(check func(ctx context.Context) error) Option {
	return func(h *Handler) { h.health = check }
}

func NewHandler(
	catalog CatalogService,
	orders OrderService,
	payments PaymentService,
	authn *Authenticator,
	jwt *auth.JWTManager,
	admin AdminCredentials,
	opts ...Option,
) *Handler {
	h := &Handler{
		catalog:  catalog,
		orders:   orders,
		payments: payments,
		authn:    authn,
		jwt:      jwt,
		admin:    admin,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("GET /api/categories", h.public(h.handleListCategories))
	mux.Handle("GET /api/products", h.public(h.handleListProducts))
	mux.Handle("GET /api/products/{slug}", h.public(h.handleGetProduct))
	mux.Handle("POST /api/discounts/validate", h.public(h.handleValidateDiscount))

	mux.Handle("POST /api/orders", h.public(h.authn.OptionalTelegram(h.handleCreateOrder)))
	mux.Handle("GET /api/orders/my", h.public(h.authn.RequireTelegram(h.handleMyOrders)))
	mux.Handle("GET /api/orders/{id}", h.public(h.authn.RequireTelegram(h.handleGetOrder)))

	mux.Handle("POST /api/payments/yookassa/create", h.public(h.authn.RequireTelegram(h.handleCreatePayment)))
	mux.Handle("GET /api/payments/yookassa/status/{paymentId}", h.public(h.authn.RequireTelegram(h.handlePaymentStatus)))
	mux.HandleFunc("POST /api/payments/yookassa/webhook", h.handleWebhook)

	mux.Handle("POST /api/admin/login", h.public(h.handleAdminLogin))
	mux.HandleFunc("GET /api/admin/orders", h.authn.RequireAdmin(h.handleAdminListOrders))
	mux.HandleFunc("PATCH /api/admin/orders/{id}", h.authn.RequireAdmin(h.handleAdminUpdateStatus))
	mux.HandleFunc("GET /api/admin/orders/{id}/history", h.authn.RequireAdmin(h.handleAdminHistory))

	mux.HandleFunc("GET /healthz", h.handleHealth)
}

func (h *Handler) public(next http.HandlerFunc) http.Handler {
	if h.limiter == nil {
		return next
	}
	return h.limiter.Middleware(next)
}

// --- Catalog ---

func (h *Handler) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if categories == nil {
		categories = []entity.Category{}
	}
	writeJSON(w, http.StatusOK, categories)
}

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.catalog.ListProducts(r.Context(), repository.ProductQuery{
		Search:     q.Get("search"),
		CategoryID: q.Get("category"),
		Sort:       q.Get("sort"),
		Page:       queryInt(q.Get("page")),
		Limit:      queryInt(q.Get("limit")),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalog.GetProduct(r.Context(), r.PathValue("slug"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

type validateDiscountRequest struct {
	Code string `json:"code"`
}

func (h *Handler) handleValidateDiscount(w http.ResponseWriter, r *http.Request) {
	var req validateDiscountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	check, err := h.catalog.ValidateDiscountCode(r.Context(), req.Code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"valid": true, "discount": check})
}

// --- Orders ---

type CreateOrderRequest struct {
	Items        []service.ItemInput `json:"items"`
	DiscountCode string              `json:"discount_code,omitempty"`
	Address      *entity.Address     `json:"address,omitempty"`
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}

	in := service.CreateOrderInput{
		Items:        req.Items,
		DiscountCode: req.DiscountCode,
		Address:      req.Address,
	}
	if u, ok := UserFrom(r.Context()); ok {
		in.UserID = &u.ID
	}

	order, err := h.orders.CreateOrder(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (h *Handler) handleMyOrders(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFrom(r.Context())
	orders, err := h.orders.ListUserOrders(r.Context(), u.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if orders == nil {
		orders = []entity.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFrom(r.Context())
	order, err := h.orders.GetOrder(r.Context(), u.ID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// --- Payments ---

type createPaymentRequest struct {
	OrderID string `json:"order_id"`
}

func (h *Handler) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	u, _ := UserFrom(r.Context())
	intent, err := h.payments.CreatePayment(r.Context(), u.ID, req.OrderID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, intent)
}

func (h *Handler) handlePaymentStatus(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFrom(r.Context())
	status, err := h.payments.CheckPaymentStatus(r.Context(), u.ID, r.PathValue("paymentId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		writeJSONError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	if err := h.payments.HandleWebhook(r.Context(), body, r.Header.Get(signatureHeader)); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Admin ---

type adminLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req adminLoginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if h.admin.Email == "" || req.Email != h.admin.Email || !auth.CheckPassword(h.admin.PasswordHash, req.Password) {
		slog.Warn("Admin login rejected", "email", req.Email)
		writeJSONError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, expiresAt, err := h.jwt.SignAdmin(req.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "expires_at": expiresAt})
}

func (h *Handler) handleAdminListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := repository.OrderQuery{
		Status: entity.OrderStatus(q.Get("status")),
		UserID: q.Get("user_id"),
		Page:   queryInt(q.Get("page")),
		Limit:  queryInt(q.Get("limit")),
	}
	orders, total, err := h.orders.ListOrders(r.Context(), query)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if orders == nil {
		orders = []entity.Order{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"orders": orders,
		"total":  total,
		"page":   max(query.Page, 1),
	})
}

type updateStatusRequest struct {
	Status entity.OrderStatus `json:"status"`
}

func (h *Handler) handleAdminUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	order, err := h.orders.UpdateOrderStatus(r.Context(), r.PathValue("id"), req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	email, _ := AdminFrom(r.Context())
	slog.Info("Admin changed order status", "admin", email, "order_id", order.ID, "status", order.Status)
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) handleAdminHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.orders.OrderHistory(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.health(ctx); err != nil {
			slog.Error("Health check failed", "err", err)
			writeJSONError(w, http.StatusServiceUnavailable, "unhealthy")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Helpers ---

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func queryInt(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

var kindStatus = map[service.Kind]int{
	service.KindValidation: http.StatusBadRequest,
	service.KindNotFound:   http.StatusNotFound,
	service.KindAuth:       http.StatusUnauthorized,
	service.KindForbidden:  http.StatusForbidden,
	service.KindConflict:   http.StatusConflict,
	service.KindGateway:    http.StatusBadGateway,
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, ok := kindStatus[service.KindOf(err)]
	if !ok {
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	writeJSONError(w, status, service.MessageOf(err))
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "err", err)
	}
}
