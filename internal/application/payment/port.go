package payment

import (
	"context"
	"time"

	appinv "github.com/latrastienda/tienda/internal/application/inventory"
	domorder "github.com/latrastienda/tienda/internal/domain/order"
	"github.com/latrastienda/tienda/internal/infrastructure/redsys"
	"github.com/shopspring/decimal"
)

// Gateway is the outbound port to the card processor.
type Gateway interface {
	BuildRequest(orderID int64, amount decimal.Decimal, now time.Time) (redsys.Request, error)
	VerifyNotification(encodedParams, signature string) (*redsys.Notification, error)
}

// StockDeductor takes a paid order's units out of stock.
type StockDeductor interface {
	DeductOrder(ctx context.Context, o *domorder.Order) (*appinv.DeductResult, error)
}

type IDGenerator interface {
	NewID() string
}
