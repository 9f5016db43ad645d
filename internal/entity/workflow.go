package entity

import "fmt"

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusPaid      OrderStatus = "PAID"
	StatusFulfilled OrderStatus = "FULFILLED"
	StatusCanceled  OrderStatus = "CANCELED"

	// Shipping pipeline statuses.
	StatusConfirmed OrderStatus = "CONFIRMED"
	StatusShipped   OrderStatus = "SHIPPED"
	StatusDelivered OrderStatus = "DELIVERED"
	StatusCancelled OrderStatus = "CANCELLED"
)

// Workflow is an append-only order state machine. Orders start in Initial;
// verified payment webhooks move them to Paid or Canceled.
type Workflow struct {
	Name     string
	Initial  OrderStatus
	Paid     OrderStatus
	Canceled OrderStatus

	// GatewaySettled reserves every move out of Initial for the payment webhook.
	GatewaySettled bool

	transitions map[OrderStatus][]OrderStatus
}

// PaymentWorkflow is the default lifecycle: PENDING -> PAID | CANCELED, PAID -> FULFILLED.
var PaymentWorkflow = Workflow{
	Name:           "payment",
	Initial:        StatusPending,
	Paid:           StatusPaid,
	Canceled:       StatusCanceled,
	GatewaySettled: true,
	transitions: map[OrderStatus][]OrderStatus{
		StatusPending: {StatusPaid, StatusCanceled},
		StatusPaid:    {StatusFulfilled},
	},
}

// ShippingWorkflow is the extended lifecycle used by stores that confirm and ship
// orders by hand: PENDING -> CONFIRMED -> SHIPPED -> DELIVERED, with cancellation
// allowed from any non-terminal state.
var ShippingWorkflow = Workflow{
	Name:     "shipping",
	Initial:  StatusPending,
	Paid:     StatusConfirmed,
	Canceled: StatusCancelled,
	transitions: map[OrderStatus][]OrderStatus{
		StatusPending:   {StatusConfirmed, StatusCancelled},
		StatusConfirmed: {StatusShipped, StatusCancelled},
		StatusShipped:   {StatusDelivered, StatusCancelled},
	},
}

// WorkflowByName returns the named workflow.
func WorkflowByName(name string) (Workflow, error) {
	switch name {
	case "", PaymentWorkflow.Name:
		return PaymentWorkflow, nil
	case ShippingWorkflow.Name:
		return ShippingWorkflow, nil
	default:
		return Workflow{}, fmt.Errorf("unknown order workflow %q", name)
	}
}

// Knows reports whether s is a status of this workflow.
func (w Workflow) Knows(s OrderStatus) bool {
	if s == w.Initial {
		return true
	}
	for from, tos := range w.transitions {
		if from == s {
			return true
		}
		for _, to := range tos {
			if to == s {
				return true
			}
		}
	}
	return false
}

// CanTransition reports whether from -> to is a valid forward move.
func (w Workflow) CanTransition(from, to OrderStatus) bool {
	for _, next := range w.transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ManualTransition reports whether an administrator may move an order from -> to.
func (w Workflow) ManualTransition(from, to OrderStatus) bool {
	if w.GatewaySettled && from == w.Initial {
		return false
	}
	return w.CanTransition(from, to)
}

// IsTerminal reports whether no transition leaves s.
func (w Workflow) IsTerminal(s OrderStatus) bool {
	return len(w.transitions[s]) == 0
}
