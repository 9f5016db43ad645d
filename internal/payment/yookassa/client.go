package yookassa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Folau1/WebApp/internal/payment"
)

// DefaultAPIURL is the production API root.
const DefaultAPIURL = "https://api.yookassa.ru/v3"

// Config holds the shop credentials and transport settings.
type Config struct {
	ShopID        string
	SecretKey     string
	APIURL        string
	PaymentMethod string // e.g. "sbp"; empty lets the customer choose
	Timeout       time.Duration
}

// Client talks to the YooKassa REST API.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient creates a new YooKassa client.
func NewClient(cfg Config) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

type amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type confirmation struct {
	Type            string `json:"type"`
	ReturnURL       string `json:"return_url,omitempty"`
	ConfirmationURL string `json:"confirmation_url,omitempty"`
}

type methodData struct {
	Type string `json:"type"`
}

type createRequest struct {
	Amount            amount            `json:"amount"`
	Capture           bool              `json:"capture"`
	Confirmation      confirmation      `json:"confirmation"`
	Description       string            `json:"description,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
	PaymentMethodData *methodData       `json:"payment_method_data,omitempty"`
}

type paymentResponse struct {
	ID           string       `json:"id"`
	Status       string       `json:"status"`
	Paid         bool         `json:"paid"`
	Amount       amount       `json:"amount"`
	Confirmation confirmation `json:"confirmation"`
}

type errorResponse struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// CreatePayment creates a one-stage (auto captured) payment with redirect confirmation.
func (c *Client) CreatePayment(ctx context.Context, req payment.Request) (*payment.Intent, error) {
	body := createRequest{
		Amount:       amount{Value: req.Amount.StringFixed(2), Currency: req.Currency},
		Capture:      true,
		Confirmation: confirmation{Type: "redirect", ReturnURL: req.ReturnURL},
		Description:  req.Description,
		Metadata:     req.Metadata,
	}
	if c.cfg.PaymentMethod != "" {
		body.PaymentMethodData = &methodData{Type: c.cfg.PaymentMethod}
	}

	var resp paymentResponse
	if err := c.do(ctx, http.MethodPost, "/payments", req.IdempotencyKey, body, &resp); err != nil {
		return nil, err
	}

	slog.Info("YooKassa: payment created", "payment_id", resp.ID, "status", resp.Status, "amount", resp.Amount.Value)
	return &payment.Intent{
		PaymentID:       resp.ID,
		Status:          resp.Status,
		ConfirmationURL: resp.Confirmation.ConfirmationURL,
	}, nil
}

// GetPayment fetches the current state of a payment.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*payment.Status, error) {
	var resp paymentResponse
	if err := c.do(ctx, http.MethodGet, "/payments/"+url.PathEscape(paymentID), "", nil, &resp); err != nil {
		return nil, err
	}
	return &payment.Status{
		PaymentID: resp.ID,
		Status:    resp.Status,
		Paid:      resp.Paid,
		Amount:    resp.Amount.Value,
		Currency:  resp.Amount.Currency,
	}, nil
}

func (c *Client) do(ctx context.Context, method, path, idempotencyKey string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.APIURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ShopID, c.cfg.SecretKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotence-Key", idempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call yookassa %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read yookassa response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var e errorResponse
		_ = json.Unmarshal(raw, &e)
		return &APIError{StatusCode: resp.StatusCode, Code: e.Code, Description: e.Description}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode yookassa response: %w", err)
	}
	return nil
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("yookassa: status %d: %s %s", e.StatusCode, e.Code, e.Description)
}
