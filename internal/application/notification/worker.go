package notification

import (
	"context"

	dominv "github.com/latrastienda/tienda/internal/domain/inventory"
	domorder "github.com/latrastienda/tienda/internal/domain/order"
	domoutbox "github.com/latrastienda/tienda/internal/domain/outbox"
	"github.com/latrastienda/tienda/internal/observability"
	"github.com/latrastienda/tienda/internal/observability/logctx"
)

const workerService = "notification-worker"

// Worker sends emails in reaction to outbox events.
type Worker struct {
	subscriber domoutbox.Subscriber
	notifier   *Notifier
	log        observability.Logger
	ignored    observability.Counter // usecase_requests_total{use_case,outcome="ignored"}
}

func NewWorker(subscriber domoutbox.Subscriber, notifier *Notifier, tel observability.Observability) *Worker {
	tel = observability.OrNop(tel)
	return &Worker{
		subscriber: subscriber,
		notifier:   notifier,
		log:        tel.Logger().With(observability.F("service", workerService)),
		ignored:    tel.Metrics().Counter(observability.MUsecaseRequests),
	}
}

func (w *Worker) Start() {
	if w.subscriber == nil || w.notifier == nil {
		return
	}
	w.subscriber.Subscribe(domorder.OrderPaidEvent{}.EventName(), w.handleOrderPaid)
	w.subscriber.Subscribe(dominv.StockShortfallEvent{}.EventName(), w.handleStockShortfall)
}

func (w *Worker) handleOrderPaid(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domorder.OrderPaidEvent)
	if !ok {
		w.count(useCaseOrderConfirmed)
		return nil
	}
	if err := w.notifier.OrderConfirmation(ctx, evt.OrderID); err != nil {
		// The order stays paid; staff can resend the email.
		logctx.FromOr(ctx, w.log).Warn("confirmation_email_failed",
			observability.F("order_id", evt.OrderID),
			observability.F("error", err.Error()),
		)
		return err
	}
	return nil
}

func (w *Worker) handleStockShortfall(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(dominv.StockShortfallEvent)
	if !ok {
		w.count(useCaseStockAlert)
		return nil
	}
	if err := w.notifier.StockAlert(ctx, evt); err != nil {
		logctx.FromOr(ctx, w.log).Warn("stock_alert_failed",
			observability.F("order_id", evt.OrderID),
			observability.F("product_id", evt.ProductID),
			observability.F("error", err.Error()),
		)
		return err
	}
	return nil
}

func (w *Worker) count(useCase string) {
	w.ignored.Add(1,
		observability.L("use_case", useCase),
		observability.L("outcome", "ignored"),
	)
}
