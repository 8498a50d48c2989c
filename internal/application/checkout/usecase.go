package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/latrastienda/tienda/internal/application"
	domcustomer "github.com/latrastienda/tienda/internal/domain/customer"
	dominv "github.com/latrastienda/tienda/internal/domain/inventory"
	"github.com/latrastienda/tienda/internal/domain/money"
	domorder "github.com/latrastienda/tienda/internal/domain/order"
	"github.com/latrastienda/tienda/internal/domain/shipping"
	"github.com/latrastienda/tienda/internal/observability"
	"github.com/shopspring/decimal"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	checkoutService = "checkout-service"
	useCasePlace    = "checkout.place_order"
)

var ErrRepository = errors.New("checkout: repository failure")

type CartLine struct {
	ProductID string
	Quantity  int
}

type PlaceOrderInput struct {
	CustomerID    string
	PaymentMethod string
	Lines         []CartLine
	// UseCustomerAddress ships to the address on the customer record.
	// Otherwise Recipient must be filled in.
	UseCustomerAddress bool
	Recipient          domorder.Recipient
	GiftMessage        string
}

type PlaceOrderResult struct {
	OrderID      int64
	Subtotal     decimal.Decimal
	ShippingCost decimal.Decimal
	FreeShipping bool
	Total        decimal.Decimal
	Breakdown    money.Breakdown
}

type PlaceOrderUseCase struct {
	orders    domorder.Repository
	inventory dominv.Repository
	customers domcustomer.Repository
	policy    shipping.Policy
	now       func() time.Time
	obs       application.Instruments
}

func NewPlaceOrderUseCase(
	orders domorder.Repository,
	inventory dominv.Repository,
	customers domcustomer.Repository,
	policy shipping.Policy,
	tel observability.Observability,
) *PlaceOrderUseCase {
	return &PlaceOrderUseCase{
		orders:    orders,
		inventory: inventory,
		customers: customers,
		policy:    policy,
		now:       time.Now,
		obs:       application.NewInstruments(tel, checkoutService),
	}
}

// Execute validates the cart, checks stock for every line and creates the
// unpaid order. Stock is only checked here; it moves when the payment is confirmed.
func (uc *PlaceOrderUseCase) Execute(ctx context.Context, cmd PlaceOrderInput) (_ *PlaceOrderResult, err error) {
	ctx, run := uc.obs.Begin(ctx, useCasePlace, "PlaceOrder",
		attribute.String("order.customer_id", cmd.CustomerID),
		attribute.String("order.payment_method", cmd.PaymentMethod),
		attribute.Int("cart.lines", len(cmd.Lines)),
	)
	defer func() { run.End(ctx, err) }()
	run.Field("customer_id", cmd.CustomerID)

	if cmd.CustomerID == "" {
		run.Fail("CUSTOMER_ID_REQUIRED")
		return nil, application.NewValidation("customer id is required")
	}
	method := domorder.PaymentMethod(cmd.PaymentMethod)
	if !method.Valid() {
		run.Fail("PAYMENT_METHOD_INVALID")
		return nil, application.NewValidation("payment method must be tarjeta or bizum")
	}
	cart, verr := mergeCart(cmd.Lines)
	if verr != nil {
		run.Fail("CART_INVALID")
		return nil, verr
	}

	customer, cerr := uc.customers.Get(ctx, cmd.CustomerID)
	if cerr != nil {
		if errors.Is(cerr, domcustomer.ErrNotFound) {
			run.Fail("CUSTOMER_NOT_FOUND")
			return nil, application.NewValidation("unknown customer")
		}
		run.Fail("CUSTOMER_LOOKUP_FAILED")
		return nil, fmt.Errorf("%w: %w", ErrRepository, cerr)
	}

	recipient, verr := resolveRecipient(customer, cmd)
	if verr != nil {
		run.Fail("RECIPIENT_INVALID")
		return nil, verr
	}

	lines := make([]domorder.Line, 0, len(cart))
	var shortages []dominv.Shortage
	for _, c := range cart {
		item, ierr := uc.inventory.Get(ctx, c.ProductID)
		if ierr != nil {
			if errors.Is(ierr, dominv.ErrNotFound) {
				run.Fail("PRODUCT_NOT_FOUND")
				return nil, application.NewValidation("unknown product " + c.ProductID)
			}
			run.Fail("INVENTORY_LOOKUP_FAILED")
			return nil, fmt.Errorf("%w: %w", ErrRepository, ierr)
		}
		if c.Quantity > item.Quantity {
			shortages = append(shortages, dominv.Shortage{
				ProductID: item.ProductID,
				Name:      item.Name,
				InStock:   item.Quantity,
				Requested: c.Quantity,
			})
			continue
		}
		lines = append(lines, domorder.Line{
			ProductID:   item.ProductID,
			ProductName: item.Name,
			UnitPrice:   item.Price,
			Quantity:    c.Quantity,
		})
	}
	if len(shortages) > 0 {
		run.Fail("INSUFFICIENT_STOCK")
		run.Field("shortages", len(shortages))
		return nil, &dominv.ShortageError{Items: shortages}
	}

	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.Gross())
	}
	quote := uc.policy.Quote(subtotal)

	entity, derr := domorder.New(cmd.CustomerID, method, lines, quote.Cost, quote.Free, uc.now())
	if derr != nil {
		run.Fail("DOMAIN_CONSTRUCTION_FAILED")
		return nil, fmt.Errorf("checkout: construct: %w", derr)
	}
	entity.Recipient = recipient
	entity.GiftMessage = strings.TrimSpace(cmd.GiftMessage)

	if ierr := uc.orders.Insert(ctx, entity); ierr != nil {
		run.Fail("REPO_INSERT_FAILED")
		return nil, fmt.Errorf("%w: %w", ErrRepository, ierr)
	}

	run.Field("order_id", entity.ID)
	run.Span.AddEvent("order.created", trace.WithAttributes(
		attribute.Int64("order.id", entity.ID),
		attribute.String("order.total", entity.Total().StringFixed(2)),
		attribute.Bool("order.free_shipping", quote.Free),
	))

	return &PlaceOrderResult{
		OrderID:      entity.ID,
		Subtotal:     subtotal,
		ShippingCost: entity.ShippingCost,
		FreeShipping: entity.FreeShipping,
		Total:        entity.Total(),
		Breakdown:    entity.Breakdown().Rounded(),
	}, nil
}

// mergeCart validates the cart and folds repeated products into one line,
// keeping the first-seen order.
func mergeCart(in []CartLine) ([]CartLine, error) {
	if len(in) == 0 {
		return nil, application.NewValidation("cart is empty")
	}
	index := make(map[string]int, len(in))
	out := make([]CartLine, 0, len(in))
	for _, l := range in {
		if l.ProductID == "" {
			return nil, application.NewValidation("product id is required")
		}
		if l.Quantity <= 0 {
			return nil, application.NewValidation("quantity must be greater than zero")
		}
		if i, ok := index[l.ProductID]; ok {
			out[i].Quantity += l.Quantity
			continue
		}
		index[l.ProductID] = len(out)
		out = append(out, l)
	}
	return out, nil
}

func resolveRecipient(c *domcustomer.Customer, cmd PlaceOrderInput) (domorder.Recipient, error) {
	if cmd.UseCustomerAddress {
		if !c.HasAddress() {
			return domorder.Recipient{}, application.NewValidation("customer has no delivery address")
		}
		return c.Recipient(), nil
	}
	r := cmd.Recipient
	switch {
	case strings.TrimSpace(r.Name) == "":
		return r, application.NewValidation("recipient name is required")
	case strings.TrimSpace(r.Address) == "":
		return r, application.NewValidation("recipient address is required")
	case strings.TrimSpace(r.PostalCode) == "":
		return r, application.NewValidation("recipient postal code is required")
	case strings.TrimSpace(r.City) == "":
		return r, application.NewValidation("recipient city is required")
	}
	return r, nil
}
