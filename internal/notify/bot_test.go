package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Folau1/WebApp/internal/entity"
)

func TestBotNotifier_HandleOrderPaid(t *testing.T) {
	var gotSecret, gotPath string
	var got notifyRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSecret = r.Header.Get("X-Bot-Secret")
		gotPath = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewBotNotifier(srv.URL+"/", "bot-secret", time.Second, nil)
	payload, err := json.Marshal(entity.OrderPaid{
		Order:  entity.Order{ID: "o-1", Number: 7, TotalAmount: 90000, Status: entity.StatusPaid},
		PaidAt: time.Now(),
	})
	require.NoError(t, err)

	require.NoError(t, n.HandleOrderPaid(context.Background(), payload))
	assert.Equal(t, "bot-secret", gotSecret)
	assert.Equal(t, "/notify-order", gotPath)
	assert.Equal(t, "o-1", got.Order.ID)
	assert.Equal(t, int64(7), got.Order.Number)
}

func TestBotNotifier_Failures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	n := NewBotNotifier(srv.URL, "wrong", time.Second, nil)
	assert.Error(t, n.NotifyOrderPaid(context.Background(), entity.OrderPaid{}))
	assert.Error(t, n.HandleOrderPaid(context.Background(), []byte("{")))
}
