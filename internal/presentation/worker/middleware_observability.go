package workerpresentation

import (
	"context"

	"github.com/google/uuid"
	domoutbox "github.com/latrastienda/tienda/internal/domain/outbox"
	"github.com/latrastienda/tienda/internal/observability"
	"github.com/latrastienda/tienda/internal/observability/logctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// WithEventContext injects a request-scoped logger for background/worker executions.
// Dynamic fields only: trace_id/span_id (if valid), event_id (generated if empty),
// plus caller-provided low-cardinality attributes (e.g. "use_case", "event").
func WithEventContext(
	ctx context.Context,
	base observability.Logger,
	tel observability.Observability,
	traceID trace.TraceID,
	spanID trace.SpanID,
	attrs map[string]string, // keep this low-cardinality: event name, queue, etc.
) context.Context {
	if base == nil {
		base = observability.OrNop(tel).Logger()
	}

	if attrs == nil {
		attrs = make(map[string]string)
	}

	fields := make([]observability.Field, 0, 6)

	// Prefer a stable, human-pivotable ID for the event
	evtID := attrs["event_id"]
	if evtID == "" {
		evtID = uuid.NewString()
	}
	fields = append(fields, observability.F("event_id", evtID))

	if traceID.IsValid() {
		fields = append(fields, observability.F("trace_id", traceID.String()))
	}
	if spanID.IsValid() {
		fields = append(fields, observability.F("span_id", spanID.String()))
	}

	for k, v := range attrs {
		if k == "event_id" || v == "" {
			continue
		}
		fields = append(fields, observability.F(k, v))
	}

	ctx, _ = logctx.Enrich(ctx, base, fields...)
	return ctx
}

// identified is implemented by events that carry their own id.
type identified interface {
	EventIdentifier() string
}

// Subscriber decorates a Subscriber so every handler runs inside a consumer
// span with an event-scoped logger in its context.
type Subscriber struct {
	next domoutbox.Subscriber
	tel  observability.Observability
	log  observability.Logger
}

func NewSubscriber(next domoutbox.Subscriber, tel observability.Observability) *Subscriber {
	tel = observability.OrNop(tel)
	return &Subscriber{
		next: next,
		tel:  tel,
		log:  tel.Logger().With(observability.F("component", "event_consumer")),
	}
}

func (s *Subscriber) Subscribe(eventName string, h domoutbox.Handler) {
	s.next.Subscribe(eventName, func(ctx context.Context, e domoutbox.Event) error {
		ctx, span := s.tel.Tracer().Start(ctx, "EVT."+eventName,
			attribute.String("event", eventName),
		)
		defer span.End()

		attrs := map[string]string{"event": eventName}
		if id, ok := e.(identified); ok {
			attrs["event_id"] = id.EventIdentifier()
		}
		sc := span.SpanContext()
		ctx = WithEventContext(ctx, s.log, s.tel, sc.TraceID(), sc.SpanID(), attrs)

		err := h(ctx, e)
		if err != nil {
			span.RecordError(err)
		}
		return err
	})
}
