package order

import "time"

// OrderPaidEvent is emitted once the gateway confirms a payment. The
// notification worker sends the confirmation email with the invoice.
type OrderPaidEvent struct {
	OrderID    int64
	CustomerID string
	EventID    string
	OccurredAt time.Time
}

func (OrderPaidEvent) EventName() string { return "order.paid" }

func (e OrderPaidEvent) EventIdentifier() string { return e.EventID }

func NewOrderPaidEvent(o *Order, eventID string) OrderPaidEvent {
	return OrderPaidEvent{
		OrderID:    o.ID,
		CustomerID: o.CustomerID,
		EventID:    eventID,
		OccurredAt: time.Now().UTC(),
	}
}
