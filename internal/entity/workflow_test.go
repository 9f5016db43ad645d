package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentWorkflow_Transitions(t *testing.T) {
	w := PaymentWorkflow

	assert.True(t, w.CanTransition(StatusPending, StatusPaid))
	assert.True(t, w.CanTransition(StatusPending, StatusCanceled))
	assert.True(t, w.CanTransition(StatusPaid, StatusFulfilled))

	assert.False(t, w.CanTransition(StatusCanceled, StatusPaid), "canceled order must not be resurrected")
	assert.False(t, w.CanTransition(StatusPaid, StatusPending), "no backward transitions")
	assert.False(t, w.CanTransition(StatusPaid, StatusPaid))

	assert.True(t, w.IsTerminal(StatusCanceled))
	assert.True(t, w.IsTerminal(StatusFulfilled))
	assert.False(t, w.IsTerminal(StatusPending))
}

func TestWorkflow_ManualTransition(t *testing.T) {
	p := PaymentWorkflow
	assert.False(t, p.ManualTransition(StatusPending, StatusPaid), "paid only through the webhook")
	assert.False(t, p.ManualTransition(StatusPending, StatusCanceled), "canceled only through the webhook")
	assert.True(t, p.ManualTransition(StatusPaid, StatusFulfilled))
	assert.False(t, p.ManualTransition(StatusPaid, StatusPending))

	s := ShippingWorkflow
	assert.True(t, s.ManualTransition(StatusPending, StatusConfirmed))
	assert.True(t, s.ManualTransition(StatusPending, StatusCancelled))
	assert.True(t, s.ManualTransition(StatusConfirmed, StatusShipped))
	assert.False(t, s.ManualTransition(StatusDelivered, StatusCancelled))
}

func TestShippingWorkflow_Transitions(t *testing.T) {
	w := ShippingWorkflow

	path := []OrderStatus{StatusPending, StatusConfirmed, StatusShipped, StatusDelivered}
	for i := 0; i < len(path)-1; i++ {
		assert.True(t, w.CanTransition(path[i], path[i+1]), "%s -> %s", path[i], path[i+1])
	}
	for _, s := range path[:3] {
		assert.True(t, w.CanTransition(s, StatusCancelled), "%s -> CANCELLED", s)
	}

	assert.False(t, w.CanTransition(StatusDelivered, StatusCancelled))
	assert.False(t, w.CanTransition(StatusShipped, StatusConfirmed))
	assert.True(t, w.IsTerminal(StatusDelivered))
	assert.True(t, w.IsTerminal(StatusCancelled))

	assert.Equal(t, StatusConfirmed, w.Paid)
	assert.Equal(t, StatusCancelled, w.Canceled)
}

func TestWorkflow_Knows(t *testing.T) {
	assert.True(t, PaymentWorkflow.Knows(StatusFulfilled))
	assert.False(t, PaymentWorkflow.Knows(StatusShipped))
	assert.True(t, ShippingWorkflow.Knows(StatusPending))
	assert.False(t, ShippingWorkflow.Knows(OrderStatus("LOST")))
}

func TestWorkflowByName(t *testing.T) {
	w, err := WorkflowByName("")
	require.NoError(t, err)
	assert.Equal(t, "payment", w.Name)

	w, err = WorkflowByName("shipping")
	require.NoError(t, err)
	assert.Equal(t, "shipping", w.Name)

	_, err = WorkflowByName("barter")
	assert.Error(t, err)
}
