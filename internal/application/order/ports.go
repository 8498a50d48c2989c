package order

import "context"

// ConfirmationSender re-sends the paid-order email with its invoice.
type ConfirmationSender interface {
	OrderConfirmation(ctx context.Context, orderID int64) error
}
