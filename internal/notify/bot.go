package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Folau1/WebApp/internal/entity"
	"github.com/Folau1/WebApp/internal/telemetry"
)

// BotNotifier forwards paid orders to the Telegram bot's internal endpoint.
type BotNotifier struct {
	baseURL string
	secret  string
	http    *http.Client
	metrics *telemetry.Metrics
}

func NewBotNotifier(baseURL, secret string, timeout time.Duration, metrics *telemetry.Metrics) *BotNotifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &BotNotifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secret,
		http:    &http.Client{Timeout: timeout},
		metrics: metrics,
	}
}

type notifyRequest struct {
	Order  entity.Order `json:"order"`
	PaidAt time.Time    `json:"paid_at"`
}

// NotifyOrderPaid posts the order to the bot.
func (n *BotNotifier) NotifyOrderPaid(ctx context.Context, event entity.OrderPaid) error {
	body, err := json.Marshal(notifyRequest{Order: event.Order, PaidAt: event.PaidAt})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+"/notify-order", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Bot-Secret", n.secret)

	resp, err := n.http.Do(req)
	if err != nil {
		n.metrics.Notification(ctx, false)
		return fmt.Errorf("failed to notify bot: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		n.metrics.Notification(ctx, false)
		return fmt.Errorf("bot answered %d", resp.StatusCode)
	}
	n.metrics.Notification(ctx, true)
	return nil
}

// HandleOrderPaid is the orders.paid consumer: it decodes the event and notifies
// the bot. Failures are returned for the consumer to log; nothing is retried.
func (n *BotNotifier) HandleOrderPaid(ctx context.Context, payload []byte) error {
	var event entity.OrderPaid
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("failed to decode OrderPaid: %w", err)
	}
	slog.Info("Notifier: order paid", "order_id", event.Order.ID, "number", event.Order.Number)
	return n.NotifyOrderPaid(ctx, event)
}
