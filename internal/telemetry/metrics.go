package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

const meterName = "github.com/Folau1/WebApp"

// Metrics holds the storefront counters. A nil *Metrics records nothing.
type Metrics struct {
	ordersCreated   metric.Int64Counter
	paymentsCreated metric.Int64Counter
	webhooks        metric.Int64Counter
	notifications   metric.Int64Counter
	httpRequests    metric.Int64Counter
	httpDuration    metric.Float64Histogram
}

// Setup builds a meter provider. With an empty endpoint metrics are kept in
// process only; otherwise they are pushed over OTLP/gRPC every 15s.
func Setup(ctx context.Context, endpoint, serviceName string) (*Metrics, func(context.Context) error, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(attribute.String("service.name", serviceName)),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create resource: %w", err)
	}

	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if endpoint != "" {
		exporter, err := otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(endpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create metric exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(15*time.Second),
		)))
		slog.Info("Telemetry: exporting metrics", "endpoint", endpoint)
	}

	provider := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(provider)

	m, err := NewMetrics(provider)
	if err != nil {
		return nil, nil, err
	}
	return m, provider.Shutdown, nil
}

// NewMetrics registers the instruments on provider.
func NewMetrics(provider metric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter(meterName)
	m := &Metrics{}
	var err error

	if m.ordersCreated, err = meter.Int64Counter("storefront.orders.created",
		metric.WithDescription("Orders created"),
		metric.WithUnit("{order}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create orders counter: %w", err)
	}
	if m.paymentsCreated, err = meter.Int64Counter("storefront.payments.created",
		metric.WithDescription("Payments created at the gateway"),
		metric.WithUnit("{payment}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create payments counter: %w", err)
	}
	if m.webhooks, err = meter.Int64Counter("storefront.webhooks",
		metric.WithDescription("Payment webhooks by outcome"),
		metric.WithUnit("{webhook}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create webhooks counter: %w", err)
	}
	if m.notifications, err = meter.Int64Counter("storefront.notifications",
		metric.WithDescription("Bot notifications by outcome"),
		metric.WithUnit("{notification}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create notifications counter: %w", err)
	}
	if m.httpRequests, err = meter.Int64Counter("storefront.http.requests",
		metric.WithDescription("HTTP requests by route and status"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create requests counter: %w", err)
	}
	if m.httpDuration, err = meter.Float64Histogram("storefront.http.duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5),
	); err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}
	return m, nil
}

func (m *Metrics) OrderCreated(ctx context.Context) {
	if m == nil {
		return
	}
	m.ordersCreated.Add(ctx, 1)
}

func (m *Metrics) PaymentCreated(ctx context.Context) {
	if m == nil {
		return
	}
	m.paymentsCreated.Add(ctx, 1)
}

// Webhook counts a webhook delivery; outcome is e.g. "applied", "duplicate", "rejected".
func (m *Metrics) Webhook(ctx context.Context, event, outcome string) {
	if m == nil {
		return
	}
	m.webhooks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event", event),
		attribute.String("outcome", outcome),
	))
}

func (m *Metrics) Notification(ctx context.Context, ok bool) {
	if m == nil {
		return
	}
	m.notifications.Add(ctx, 1, metric.WithAttributes(attribute.Bool("ok", ok)))
}

func (m *Metrics) HTTPRequest(ctx context.Context, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("route", route), attribute.Int("status", status))
	m.httpRequests.Add(ctx, 1, attrs)
	m.httpDuration.Record(ctx, d.Seconds(), attrs)
}
