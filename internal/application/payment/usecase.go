package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/latrastienda/tienda/internal/application"
	dominv "github.com/latrastienda/tienda/internal/domain/inventory"
	domorder "github.com/latrastienda/tienda/internal/domain/order"
	domoutbox "github.com/latrastienda/tienda/internal/domain/outbox"
	"github.com/latrastienda/tienda/internal/infrastructure/redsys"
	"github.com/latrastienda/tienda/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	paymentService       = "payment-service"
	useCaseBuildRequest  = "payment.build_request"
	useCaseNotification  = "payment.notification"
	notificationOutcome  = "outcome"
	outcomeAuthorized    = "authorized"
	outcomeDeclined      = "declined"
	outcomeBadSignature  = "invalid_signature"
	outcomeMalformed     = "malformed"
	outcomeUnknownOrder  = "unknown_order"
	outcomeInternalError = "error"
)

var (
	ErrNotFound    = domorder.ErrNotFound
	ErrAlreadyPaid = errors.New("payment: order already paid")
	ErrRepository  = errors.New("payment: repository failure")
)

type BuildRequestInput struct {
	OrderID int64
}

// BuildRequestUseCase signs the form that sends the customer to the payment page.
type BuildRequestUseCase struct {
	orders  domorder.Repository
	gateway Gateway
	now     func() time.Time
	obs     application.Instruments
}

func NewBuildRequestUseCase(orders domorder.Repository, gateway Gateway, tel observability.Observability) *BuildRequestUseCase {
	return &BuildRequestUseCase{
		orders:  orders,
		gateway: gateway,
		now:     time.Now,
		obs:     application.NewInstruments(tel, paymentService),
	}
}

func (uc *BuildRequestUseCase) Execute(ctx context.Context, cmd BuildRequestInput) (_ *redsys.Request, err error) {
	ctx, run := uc.obs.Begin(ctx, useCaseBuildRequest, "BuildPaymentRequest",
		attribute.Int64("order.id", cmd.OrderID),
	)
	defer func() { run.End(ctx, err) }()
	run.Field("order_id", cmd.OrderID)

	if cmd.OrderID <= 0 {
		run.Fail("ORDER_ID_REQUIRED")
		return nil, application.NewValidation("order id is required")
	}
	o, gerr := uc.orders.Get(ctx, cmd.OrderID)
	if gerr != nil {
		if errors.Is(gerr, domorder.ErrNotFound) {
			run.Fail("ORDER_NOT_FOUND")
			return nil, ErrNotFound
		}
		run.Fail("REPO_GET_FAILED")
		return nil, fmt.Errorf("%w: %w", ErrRepository, gerr)
	}
	if o.Paid {
		run.Fail("ORDER_ALREADY_PAID")
		return nil, ErrAlreadyPaid
	}

	req, berr := uc.gateway.BuildRequest(o.ID, o.Total(), uc.now())
	if berr != nil {
		run.Fail("SIGN_FAILED")
		return nil, fmt.Errorf("payment: build request: %w", berr)
	}
	run.Field("merchant_order", req.MerchantOrder)
	return &req, nil
}

type NotificationInput struct {
	MerchantParameters string
	Signature          string
}

type NotificationResult struct {
	OrderID      int64
	Authorized   bool
	ResponseCode string
	Description  string
	// Redelivered is set when the order was already paid before this notification.
	Redelivered bool
	// AmountMismatch is set when the gateway charged something other than
	// the order total. The order is still marked paid.
	AmountMismatch bool
	Shortages      []dominv.Shortage
}

// HandleNotificationUseCase applies a signed gateway callback to its order.
type HandleNotificationUseCase struct {
	orders    domorder.Repository
	gateway   Gateway
	stock     StockDeductor
	publisher domoutbox.Publisher
	ids       IDGenerator
	now       func() time.Time

	obs           application.Instruments
	notifications observability.Counter // payment_notifications_total{outcome}
}

func NewHandleNotificationUseCase(
	orders domorder.Repository,
	gateway Gateway,
	stock StockDeductor,
	publisher domoutbox.Publisher,
	ids IDGenerator,
	tel observability.Observability,
) *HandleNotificationUseCase {
	return &HandleNotificationUseCase{
		orders:        orders,
		gateway:       gateway,
		stock:         stock,
		publisher:     publisher,
		ids:           ids,
		now:           time.Now,
		obs:           application.NewInstruments(tel, paymentService),
		notifications: observability.OrNop(tel).Metrics().Counter(observability.MPaymentNotifications),
	}
}

// Execute verifies the notification. An approval marks the order paid, takes
// the units out of stock and publishes OrderPaidEvent. A refusal only records
// the response code and its description.
func (uc *HandleNotificationUseCase) Execute(ctx context.Context, cmd NotificationInput) (_ *NotificationResult, err error) {
	ctx, run := uc.obs.Begin(ctx, useCaseNotification, "HandleNotification")
	kind := outcomeInternalError
	defer func() {
		uc.notifications.Add(1, observability.L(notificationOutcome, kind))
		run.End(ctx, err)
	}()

	n, verr := uc.gateway.VerifyNotification(cmd.MerchantParameters, cmd.Signature)
	if verr != nil {
		switch {
		case errors.Is(verr, redsys.ErrInvalidSignature):
			kind = outcomeBadSignature
			run.Fail("SIGNATURE_INVALID")
			run.Logger.Warn("notification_signature_invalid")
		default:
			kind = outcomeMalformed
			run.Fail("NOTIFICATION_MALFORMED")
			run.Logger.Warn("notification_malformed", observability.F("error", verr.Error()))
		}
		return nil, verr
	}

	run.Field("order_id", n.OrderID)
	run.Field("response_code", n.Response.String())
	run.Span.SetAttributes(
		attribute.Int64("order.id", n.OrderID),
		attribute.String("payment.response_code", n.Response.String()),
	)

	o, gerr := uc.orders.Get(ctx, n.OrderID)
	if gerr != nil {
		if errors.Is(gerr, domorder.ErrNotFound) {
			kind = outcomeUnknownOrder
			run.Fail("ORDER_NOT_FOUND")
			return nil, ErrNotFound
		}
		run.Fail("REPO_GET_FAILED")
		return nil, fmt.Errorf("%w: %w", ErrRepository, gerr)
	}

	now := uc.now()
	result := &NotificationResult{
		OrderID:      o.ID,
		Authorized:   n.Response.Authorized(),
		ResponseCode: n.Response.String(),
	}

	if !result.Authorized {
		result.Description = n.Response.Description()
		o.RecordDecline(n.Response.String(), result.Description, now)
		if uerr := uc.orders.Update(ctx, o); uerr != nil {
			run.Fail("REPO_UPDATE_FAILED")
			return nil, fmt.Errorf("%w: %w", ErrRepository, uerr)
		}
		kind = outcomeDeclined
		run.Status("DECLINED")
		run.Logger.Info("payment_declined",
			observability.F("order_id", o.ID),
			observability.F("response_code", result.ResponseCode),
			observability.F("description", result.Description),
		)
		return result, nil
	}

	if o.Paid {
		// Redelivered approvals are applied again, stock included.
		result.Redelivered = true
		run.Logger.Warn("notification_redelivered", observability.F("order_id", o.ID))
	}

	if n.Amount != nil && !n.Amount.Equal(o.Total().Round(2)) {
		result.AmountMismatch = true
		run.Status("AMOUNT_MISMATCH")
		run.Logger.Warn("payment_amount_mismatch",
			observability.F("order_id", o.ID),
			observability.F("expected", o.Total().StringFixed(2)),
			observability.F("charged", n.Amount.StringFixed(2)),
		)
	}

	at := now.UTC()
	o.MarkPaid(domorder.PaymentTrace{
		AuthorizationCode: n.AuthorisationCode,
		ResponseCode:      n.Response.String(),
		PaidDate:          n.Date,
		PaidTime:          n.Hour,
		CardCountry:       n.CardCountry,
		MerchantCode:      n.MerchantCode,
		AttemptedAt:       &at,
	})
	if uerr := uc.orders.Update(ctx, o); uerr != nil {
		run.Fail("REPO_UPDATE_FAILED")
		return nil, fmt.Errorf("%w: %w", ErrRepository, uerr)
	}
	kind = outcomeAuthorized
	run.Span.AddEvent("order.paid", trace.WithAttributes(attribute.Int64("order.id", o.ID)))

	if uc.stock != nil {
		deducted, serr := uc.stock.DeductOrder(ctx, o)
		if deducted != nil {
			result.Shortages = deducted.Shortages
		}
		if serr != nil {
			run.Status("STOCK_DEDUCT_FAILED")
			run.Logger.Warn("stock_deduct_failed",
				observability.F("order_id", o.ID),
				observability.F("error", serr.Error()),
			)
		}
	}

	eventID := ""
	if uc.ids != nil {
		eventID = uc.ids.NewID()
	}
	if perr := uc.obs.Publish(ctx, uc.publisher, domorder.NewOrderPaidEvent(o, eventID)); perr != nil {
		run.Status("EVENT_PUBLISH_FAILED")
		run.Field("event_publish_error", perr.Error())
	}

	return result, nil
}
