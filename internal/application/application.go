package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	domoutbox "github.com/latrastienda/tienda/internal/domain/outbox"
	"github.com/latrastienda/tienda/internal/observability"
	"github.com/latrastienda/tienda/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	SpanPrefix     = "UC."
	PublishPeer    = "outbox"
	PublishTimeout = 300 * time.Millisecond
)

// ErrValidation marks input rejected before any state changed.
var ErrValidation = errors.New("validation")

func NewValidation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// Instruments holds the prebound logger and RED metrics shared by the use
// cases of one service.
type Instruments struct {
	tracer observability.Tracer
	log    observability.Logger

	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

func NewInstruments(tel observability.Observability, service string) Instruments {
	tel = observability.OrNop(tel)
	m := tel.Metrics()
	return Instruments{
		tracer:       tel.Tracer(),
		log:          tel.Logger().With(observability.F("service", service)),
		reqCounter:   m.Counter(observability.MUsecaseRequests),
		durHistogram: m.Histogram(observability.MUsecaseDuration),
		extCounter:   m.Counter(observability.MExternalRequests),
		extHistogram: m.Histogram(observability.MExternalRequestDuration),
	}
}

// Run tracks a single use case execution from Begin to End.
type Run struct {
	Logger observability.Logger
	Span   trace.Span

	in      *Instruments
	useCase string
	start   time.Time
	outcome string
	status  string
	fields  []observability.Field
}

// Begin opens the span and binds a use case logger into the returned context.
func (in *Instruments) Begin(ctx context.Context, useCase, spanName string, attrs ...attribute.KeyValue) (context.Context, *Run) {
	attrs = append([]attribute.KeyValue{attribute.String("use_case", useCase)}, attrs...)
	ctx, span := in.tracer.Start(ctx, SpanPrefix+spanName, attrs...)

	ctx, logger := logctx.Enrich(ctx, in.log, observability.F("use_case", useCase))

	return ctx, &Run{
		Logger:  logger,
		Span:    span,
		in:      in,
		useCase: useCase,
		start:   time.Now(),
		outcome: "success",
		status:  "OK",
	}
}

// Fail marks the run as failed with a machine readable status.
func (r *Run) Fail(status string) {
	r.outcome, r.status = "error", status
}

// Status overrides the status text without changing the outcome.
func (r *Run) Status(status string) {
	r.status = status
}

// Field adds a field to the use_case_done log line.
func (r *Run) Field(k string, v any) {
	r.fields = append(r.fields, observability.F(k, v))
}

// End closes the span, records metrics and logs use_case_done.
func (r *Run) End(ctx context.Context, err error) {
	lat := time.Since(r.start).Seconds()
	if err != nil && r.outcome == "success" {
		r.Fail("INTERNAL")
	}

	if r.Span != nil {
		if err != nil {
			r.Span.RecordError(err)
			r.Span.SetStatus(codes.Error, r.status)
		} else {
			r.Span.SetStatus(codes.Ok, r.status)
		}
		r.Span.End()
	}

	r.in.reqCounter.Add(1,
		observability.L("use_case", r.useCase),
		observability.L("outcome", r.outcome),
	)
	r.in.durHistogram.Observe(lat,
		observability.L("use_case", r.useCase),
	)

	fields := []observability.Field{
		observability.F("outcome", r.outcome),
		observability.F("status", r.status),
		observability.F("latency_seconds", lat),
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}
	fields = append(fields, r.fields...)
	if err != nil {
		fields = append(fields, observability.F("error", err.Error()))
	}

	r.Logger.Info("use_case_done", fields...)
}

// External records one call to an outside collaborator (SMTP, PDF, outbox).
func (in *Instruments) External(peer, endpoint string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			outcome = "canceled"
		}
	}
	in.extCounter.Add(1,
		observability.L("peer", peer),
		observability.L("endpoint", endpoint),
		observability.L("outcome", outcome),
	)
	in.extHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", peer),
		observability.L("endpoint", endpoint),
	)
}

// Publish sends e with the short publish timeout and records it as an
// external call. A nil publisher is a no-op.
func (in *Instruments) Publish(ctx context.Context, pub domoutbox.Publisher, e domoutbox.Event) error {
	if pub == nil || e == nil {
		return nil
	}
	pubCtx, cancel := context.WithTimeout(ctx, PublishTimeout)
	defer cancel()

	start := time.Now()
	err := pub.Publish(pubCtx, e)
	if err == nil && pubCtx.Err() != nil {
		err = pubCtx.Err()
	}
	in.External(PublishPeer, e.EventName(), start, err)
	return err
}
