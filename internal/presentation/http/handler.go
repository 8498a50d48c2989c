package httppresentation

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/latrastienda/tienda/internal/application"
	"github.com/latrastienda/tienda/internal/application/checkout"
	appinvoice "github.com/latrastienda/tienda/internal/application/invoice"
	"github.com/latrastienda/tienda/internal/application/notification"
	apporder "github.com/latrastienda/tienda/internal/application/order"
	apppayment "github.com/latrastienda/tienda/internal/application/payment"
	appreturns "github.com/latrastienda/tienda/internal/application/returns"
	domcustomer "github.com/latrastienda/tienda/internal/domain/customer"
	dominv "github.com/latrastienda/tienda/internal/domain/inventory"
	domorder "github.com/latrastienda/tienda/internal/domain/order"
	domreturns "github.com/latrastienda/tienda/internal/domain/returns"
	"github.com/latrastienda/tienda/internal/infrastructure/redsys"
	"github.com/latrastienda/tienda/internal/observability"
	"github.com/latrastienda/tienda/internal/observability/logctx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	componentHTTPHandler = "http_server"
	headerRequestID      = "X-Request-ID"
	maxBodyBytes         = 1 << 20
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Services are the use cases the HTTP surface exposes. Nil entries leave
// their routes unmounted.
type Services struct {
	Checkout      *checkout.PlaceOrderUseCase
	PaymentForm   *apppayment.BuildRequestUseCase
	Notifications *apppayment.HandleNotificationUseCase
	Invoices      *appinvoice.Service
	Orders        *apporder.Service
	Returns       *appreturns.Service
	// Health reports readiness of backing stores.
	Health func(ctx context.Context) error
	// Metrics serves the Prometheus scrape endpoint.
	Metrics http.Handler
}

type Handler struct {
	svc Services
	log observability.Logger
	tel observability.Observability

	httpRequests observability.Counter   // http_requests_total{method,route,status}
	httpDuration observability.Histogram // http_request_duration_seconds{method,route,status}
}

func NewHandler(svc Services, tel observability.Observability) *Handler {
	tel = observability.OrNop(tel)
	return &Handler{
		svc:          svc,
		log:          tel.Logger().With(observability.F("component", componentHTTPHandler)),
		tel:          tel,
		httpRequests: tel.Metrics().Counter(observability.MHTTPRequests),
		httpDuration: tel.Metrics().Histogram(observability.MHTTPRequestDuration),
	}
}

// Router wires every route behind Trace → request logger → access log → HTTP metrics.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(
		h.withTrace,
		ObservabilityMiddleware(h.log, func(r *http.Request) string {
			return r.Header.Get(headerRequestID)
		}, h.tel),
		h.withAccessLog,
		h.withHTTPMetrics,
	)

	r.Get("/health", h.handleHealth)
	if h.svc.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.svc.Metrics)
	}

	r.Route("/ventas", func(r chi.Router) {
		if h.svc.Notifications != nil {
			r.Get("/notificacion/", h.handleNotificationCheck)
			r.Post("/notificacion/", h.handleNotification)
		}
		if h.svc.Checkout != nil {
			r.Post("/checkout", h.handleCheckout)
		}
		if h.svc.PaymentForm != nil {
			r.Get("/pago/{orderID}", h.handlePaymentForm)
		}
		if h.svc.Invoices != nil {
			r.Get("/factura/{orderID}", h.handleOrderInvoice)
		}
	})

	r.Route("/admin", func(r chi.Router) {
		if h.svc.Orders != nil {
			r.Get("/pedidos", h.handleListOrders)
			r.Get("/pedidos.csv", h.handleExportOrders)
			r.Post("/pedidos/enviados", h.handleMarkShipped)
			r.Get("/pedidos/{id}", h.handleGetOrder)
			r.Delete("/pedidos/{id}", h.handleDeleteOrder)
			r.Post("/pedidos/{id}/reenviar-email", h.handleResendConfirmation)
		}
		if h.svc.Returns != nil {
			r.Get("/pedidos/{id}/devoluciones", h.handleListReturns)
			r.Post("/devoluciones", h.handleCreateReturn)
			r.Get("/devoluciones/{id}", h.handleGetReturn)
			r.Post("/devoluciones/{id}/aprobar", h.returnTransition(h.svc.Returns.Approve))
			r.Post("/devoluciones/{id}/rechazar", h.returnTransition(h.svc.Returns.Reject))
			r.Post("/devoluciones/{id}/procesar", h.returnTransition(h.svc.Returns.Process))
			r.Post("/devoluciones/{id}/completar", h.handleCompleteReturn)
			r.Post("/devoluciones/{id}/gastos-envio", h.handleShippingRefund)
		}
		if h.svc.Invoices != nil {
			r.Get("/devoluciones/{id}/factura", h.handleReturnInvoice)
		}
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.svc.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.svc.Health(ctx); err != nil {
			logctx.FromOr(r.Context(), h.log).Warn("health_check_failed", observability.F("error", err.Error()))
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// withAccessLog writes a single access log after the handler completes.
// It relies on the request-scoped logger already injected by ObservabilityMiddleware.
func (h *Handler) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		logctx.FromOr(r.Context(), h.log).Info("http_access",
			observability.F("method", r.Method),
			observability.F("route", routePattern(r)),
			observability.F("path", r.URL.Path),
			observability.F("status", lrw.status),
			observability.F("latency_ms", time.Since(start).Milliseconds()),
		)
	})
}

// withTrace creates a server span for the request using OTel and W3C propagation.
// The span is renamed once chi has matched the route.
func (h *Handler) withTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tracer := otel.Tracer("tienda.http")
		parentCtx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		ctxWithSpan, span := tracer.Start(parentCtx,
			r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.target", r.URL.Path),
				attribute.String("http.user_agent", r.UserAgent()),
			),
		)
		defer span.End()

		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		r = r.WithContext(ctxWithSpan)
		next.ServeHTTP(lrw, r)

		route := routePattern(r)
		span.SetName(r.Method + " " + route)
		span.SetAttributes(
			attribute.String("http.route", route),
			attribute.Int("http.status_code", lrw.status),
		)
	})
}

// withHTTPMetrics records RED-ish HTTP metrics using injected vectors.
// DO NOT new metrics inside the middleware.
func (h *Handler) withHTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		labels := []observability.Label{
			observability.L("method", r.Method),
			observability.L("route", routePattern(r)),
			observability.L("status", strconv.Itoa(lrw.status)),
		}
		h.httpRequests.Add(1, labels...)
		h.httpDuration.Observe(time.Since(start).Seconds(), labels...)
	})
}

// routePattern is the low-cardinality route template chi matched.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unknown"
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return application.NewValidation("invalid JSON body: " + err.Error())
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, application.NewValidation(name + " must be a positive integer")
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

type shortageView struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	InStock   int    `json:"in_stock"`
	Requested int    `json:"requested"`
	Message   string `json:"message"`
}

// statusFor classifies application errors for the transport.
func statusFor(err error) int {
	switch {
	case errors.Is(err, application.ErrValidation),
		errors.Is(err, domorder.ErrInvalidQuantity),
		errors.Is(err, domorder.ErrInvalidPrice),
		errors.Is(err, domorder.ErrNoLines),
		errors.Is(err, domorder.ErrInvalidMethod),
		errors.Is(err, domreturns.ErrEmptyReturn),
		errors.Is(err, domreturns.ErrInvalidQuantity),
		errors.Is(err, domreturns.ErrInvalidReason),
		errors.Is(err, domreturns.ErrUnknownOrderLine),
		errors.Is(err, domreturns.ErrNegativeShipping),
		errors.Is(err, redsys.ErrMalformedNotification),
		errors.Is(err, redsys.ErrInvalidMerchantOrder):
		return http.StatusBadRequest
	case errors.Is(err, redsys.ErrInvalidSignature):
		return http.StatusForbidden
	case errors.Is(err, domorder.ErrNotFound),
		errors.Is(err, domreturns.ErrNotFound),
		errors.Is(err, dominv.ErrNotFound),
		errors.Is(err, domcustomer.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, dominv.ErrInsufficientStock),
		errors.Is(err, domreturns.ErrInvalidStateTransition),
		errors.Is(err, apppayment.ErrAlreadyPaid),
		errors.Is(err, domorder.ErrNotPaid),
		errors.Is(err, domorder.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, notification.ErrNoRecipient):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeDomainError(w http.ResponseWriter, err error) {
	var shortage *dominv.ShortageError
	if errors.As(err, &shortage) {
		items := make([]shortageView, 0, len(shortage.Items))
		for _, s := range shortage.Items {
			items = append(items, shortageView{
				ProductID: s.ProductID,
				Name:      s.Name,
				InStock:   s.InStock,
				Requested: s.Requested,
				Message:   s.String(),
			})
		}
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":     err.Error(),
			"shortages": items,
		})
		return
	}
	writeError(w, statusFor(err), err)
}

// writePlainError is used on routes whose clients are browsers or the gateway.
func writePlainError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := http.StatusText(status)
	if status == http.StatusNotFound {
		msg = "No encontrado"
	}
	http.Error(w, msg, status)
}
