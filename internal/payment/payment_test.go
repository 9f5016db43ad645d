package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifySignature(t *testing.T) {
	secret := []byte("test-secret")
	body := []byte(`{"event":"payment.succeeded","object":{"id":"pay-1"}}`)
	sig := Sign(secret, body)

	assert.True(t, VerifySignature(secret, body, sig))
	assert.False(t, VerifySignature(secret, body, ""), "missing signature")
	assert.False(t, VerifySignature(secret, body, "not-hex"))
	assert.False(t, VerifySignature([]byte("other"), body, sig), "wrong secret")
	assert.False(t, VerifySignature(nil, body, sig), "empty secret")

	// Re-serialized JSON with different spacing must not verify.
	assert.False(t, VerifySignature(secret, []byte(`{"event": "payment.succeeded","object":{"id":"pay-1"}}`), sig))
}

func TestParseNotification(t *testing.T) {
	n, err := ParseNotification([]byte(`{
		"type": "notification",
		"event": "payment.succeeded",
		"object": {
			"id": "pay-1",
			"status": "succeeded",
			"paid": true,
			"amount": {"value": "900.00", "currency": "RUB"},
			"metadata": {"orderId": "o-1", "userId": "u-1"}
		}
	}`))
	require.NoError(t, err)
	assert.Equal(t, EventSucceeded, n.Event)
	assert.Equal(t, "o-1", n.OrderID())
	assert.Equal(t, "900.00", n.Object.Amount.Value)

	_, err = ParseNotification([]byte(`{"event":`))
	assert.Error(t, err)
	_, err = ParseNotification([]byte(`{"event":"payment.succeeded","object":{}}`))
	assert.Error(t, err)
}

func TestMinorToMajor(t *testing.T) {
	assert.Equal(t, "900.00", MinorToMajor(90000).StringFixed(2))
	assert.Equal(t, "0.05", MinorToMajor(5).StringFixed(2))
	assert.Equal(t, "0.00", MinorToMajor(0).StringFixed(2))
}
