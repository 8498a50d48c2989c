package inventory

import "time"

// StockShortfallEvent is emitted when a paid order could not take its units
// from stock. Staff are alerted so the order can be fulfilled by hand.
type StockShortfallEvent struct {
	OrderID    int64
	ProductID  string
	Name       string
	InStock    int
	Requested  int
	OccurredAt time.Time
}

func (StockShortfallEvent) EventName() string { return "inventory.shortfall" }

func NewStockShortfallEvent(orderID int64, item *Item, requested int) StockShortfallEvent {
	return StockShortfallEvent{
		OrderID:    orderID,
		ProductID:  item.ProductID,
		Name:       item.Name,
		InStock:    item.Quantity,
		Requested:  requested,
		OccurredAt: time.Now().UTC(),
	}
}
