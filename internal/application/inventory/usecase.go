package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/latrastienda/tienda/internal/application"
	dominv "github.com/latrastienda/tienda/internal/domain/inventory"
	domorder "github.com/latrastienda/tienda/internal/domain/order"
	domoutbox "github.com/latrastienda/tienda/internal/domain/outbox"
	domreturns "github.com/latrastienda/tienda/internal/domain/returns"
	"github.com/latrastienda/tienda/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	inventoryService = "inventory-service"
	useCaseDeduct    = "inventory.deduct_order"
	useCaseRestock   = "inventory.restock_return"
)

var ErrRepository = errors.New("inventory: repository failure")

// DeductResult lists the lines that could not take their units from stock.
type DeductResult struct {
	Deducted  int
	Shortages []dominv.Shortage
}

// StockUseCase moves stock when an order is paid or a return is completed.
type StockUseCase struct {
	repo      dominv.Repository
	publisher domoutbox.Publisher
	obs       application.Instruments
	movements observability.Counter // stock_movements_total{direction,outcome}
}

func NewStockUseCase(repo dominv.Repository, publisher domoutbox.Publisher, tel observability.Observability) *StockUseCase {
	return &StockUseCase{
		repo:      repo,
		publisher: publisher,
		obs:       application.NewInstruments(tel, inventoryService),
		movements: observability.OrNop(tel).Metrics().Counter(observability.MStockMovements),
	}
}

// DeductOrder takes every line of a paid order out of stock. A line without
// enough stock is skipped, logged and announced with a StockShortfallEvent;
// the payment itself stands. Only repository failures are returned.
func (uc *StockUseCase) DeductOrder(ctx context.Context, o *domorder.Order) (_ *DeductResult, err error) {
	ctx, run := uc.obs.Begin(ctx, useCaseDeduct, "DeductOrder",
		attribute.Int64("order.id", o.ID),
		attribute.Int("order.lines", len(o.Lines)),
	)
	defer func() { run.End(ctx, err) }()
	run.Field("order_id", o.ID)

	result := &DeductResult{}
	var errs []error
	for _, l := range o.Lines {
		item, gerr := uc.repo.Get(ctx, l.ProductID)
		if gerr != nil {
			if errors.Is(gerr, dominv.ErrNotFound) {
				run.Logger.Warn("stock_product_missing",
					observability.F("order_id", o.ID),
					observability.F("product_id", l.ProductID),
				)
				uc.count("out", "missing")
				continue
			}
			errs = append(errs, fmt.Errorf("%w: get %s: %w", ErrRepository, l.ProductID, gerr))
			continue
		}

		if derr := item.Deduct(l.Quantity); derr != nil {
			run.Logger.Warn("stock_insufficient",
				observability.F("order_id", o.ID),
				observability.F("product_id", l.ProductID),
				observability.F("in_stock", item.Quantity),
				observability.F("requested", l.Quantity),
			)
			uc.count("out", "insufficient")
			result.Shortages = append(result.Shortages, dominv.Shortage{
				ProductID: item.ProductID,
				Name:      item.Name,
				InStock:   item.Quantity,
				Requested: l.Quantity,
			})
			if perr := uc.obs.Publish(ctx, uc.publisher, dominv.NewStockShortfallEvent(o.ID, item, l.Quantity)); perr != nil {
				run.Logger.Warn("event_publish_failed", observability.F("error", perr.Error()))
			}
			continue
		}

		if serr := uc.repo.Save(ctx, item); serr != nil {
			errs = append(errs, fmt.Errorf("%w: save %s: %w", ErrRepository, l.ProductID, serr))
			uc.count("out", "error")
			continue
		}
		uc.count("out", "success")
		result.Deducted++
		run.Span.AddEvent("stock.deducted", trace.WithAttributes(
			attribute.String("product.id", l.ProductID),
			attribute.Int("quantity", l.Quantity),
		))
	}

	if len(result.Shortages) > 0 {
		run.Status("PARTIAL_SHORTAGE")
		run.Field("shortages", len(result.Shortages))
	}
	if len(errs) > 0 {
		run.Fail("REPO_SAVE_FAILED")
		return result, errors.Join(errs...)
	}
	return result, nil
}

// RestockReturn puts the returned units back. Products that no longer exist
// are skipped with a warning.
func (uc *StockUseCase) RestockReturn(ctx context.Context, ret *domreturns.Return) (restocked int, err error) {
	ctx, run := uc.obs.Begin(ctx, useCaseRestock, "RestockReturn",
		attribute.Int64("return.id", ret.ID),
		attribute.Int64("order.id", ret.OrderID),
	)
	defer func() { run.End(ctx, err) }()
	run.Field("return_id", ret.ID)

	var errs []error
	for _, l := range ret.Lines {
		item, gerr := uc.repo.Get(ctx, l.ProductID)
		if gerr != nil {
			if errors.Is(gerr, dominv.ErrNotFound) {
				run.Logger.Warn("stock_product_missing",
					observability.F("return_id", ret.ID),
					observability.F("product_id", l.ProductID),
				)
				uc.count("in", "missing")
				continue
			}
			errs = append(errs, fmt.Errorf("%w: get %s: %w", ErrRepository, l.ProductID, gerr))
			continue
		}
		if rerr := item.Restock(l.Quantity); rerr != nil {
			errs = append(errs, fmt.Errorf("inventory: restock %s: %w", l.ProductID, rerr))
			continue
		}
		if serr := uc.repo.Save(ctx, item); serr != nil {
			errs = append(errs, fmt.Errorf("%w: save %s: %w", ErrRepository, l.ProductID, serr))
			uc.count("in", "error")
			continue
		}
		uc.count("in", "success")
		restocked++
	}

	if len(errs) > 0 {
		run.Fail("RESTOCK_FAILED")
		return restocked, errors.Join(errs...)
	}
	return restocked, nil
}

func (uc *StockUseCase) count(direction, outcome string) {
	uc.movements.Add(1,
		observability.L("direction", direction),
		observability.L("outcome", outcome),
	)
}
