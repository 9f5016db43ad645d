package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestMetrics_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(provider)
	require.NoError(t, err)

	ctx := context.Background()
	m.OrderCreated(ctx)
	m.OrderCreated(ctx)
	m.Webhook(ctx, "payment.succeeded", "applied")
	m.HTTPRequest(ctx, "GET /api/products", 200, 3*time.Millisecond)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	sums := map[string]int64{}
	for _, md := range rm.ScopeMetrics[0].Metrics {
		if sum, ok := md.Data.(metricdata.Sum[int64]); ok {
			for _, dp := range sum.DataPoints {
				sums[md.Name] += dp.Value
			}
		}
	}
	assert.Equal(t, int64(2), sums["storefront.orders.created"])
	assert.Equal(t, int64(1), sums["storefront.webhooks"])
	assert.Equal(t, int64(1), sums["storefront.http.requests"])
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.OrderCreated(context.Background())
		m.Notification(context.Background(), false)
	})
}

func TestSetup_WithoutEndpoint(t *testing.T) {
	m, shutdown, err := Setup(context.Background(), "", "storefront-test")
	require.NoError(t, err)
	require.NotNil(t, m)
	m.PaymentCreated(context.Background())
	assert.NoError(t, shutdown(context.Background()))
}
