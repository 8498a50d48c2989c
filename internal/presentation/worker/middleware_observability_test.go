package workerpresentation

import (
	"context"
	"errors"
	"sync"
	"testing"

	domoutbox "github.com/latrastienda/tienda/internal/domain/outbox"
	"github.com/latrastienda/tienda/internal/observability"
	"github.com/latrastienda/tienda/internal/observability/logctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

type recordingLogger struct {
	mu     *sync.Mutex
	fields []observability.Field
	lines  *[]map[string]any
}

func newRecordingLogger() *recordingLogger {
	return &recordingLogger{mu: &sync.Mutex{}, lines: &[]map[string]any{}}
}

func (l *recordingLogger) With(fields ...observability.Field) observability.Logger {
	return &recordingLogger{mu: l.mu, fields: append(append([]observability.Field(nil), l.fields...), fields...), lines: l.lines}
}

func (l *recordingLogger) log(msg string, fields ...observability.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	line := map[string]any{"msg": msg}
	for _, f := range append(append([]observability.Field(nil), l.fields...), fields...) {
		line[f.Key] = f.Value
	}
	*l.lines = append(*l.lines, line)
}

func (l *recordingLogger) Debug(msg string, fields ...observability.Field) { l.log(msg, fields...) }
func (l *recordingLogger) Info(msg string, fields ...observability.Field)  { l.log(msg, fields...) }
func (l *recordingLogger) Warn(msg string, fields ...observability.Field)  { l.log(msg, fields...) }
func (l *recordingLogger) Error(msg string, fields ...observability.Field) { l.log(msg, fields...) }

type syncSubscriber struct {
	handlers map[string]domoutbox.Handler
}

func (s *syncSubscriber) Subscribe(name string, h domoutbox.Handler) {
	if s.handlers == nil {
		s.handlers = make(map[string]domoutbox.Handler)
	}
	s.handlers[name] = h
}

type paid struct{ id string }

func (paid) EventName() string         { return "order.paid" }
func (p paid) EventIdentifier() string { return p.id }

func TestWithEventContextNormalisesFields(t *testing.T) {
	base := newRecordingLogger()
	traceID := trace.TraceID{1}
	spanID := trace.SpanID{2}

	ctx := WithEventContext(context.Background(), base, nil, traceID, spanID, map[string]string{
		"event":    "order.paid",
		"event_id": "evt-1",
		"empty":    "",
	})
	logctx.From(ctx).Info("event_handled")

	require.Len(t, *base.lines, 1)
	line := (*base.lines)[0]
	assert.Equal(t, "evt-1", line["event_id"])
	assert.Equal(t, "order.paid", line["event"])
	assert.Equal(t, traceID.String(), line["trace_id"])
	assert.Equal(t, spanID.String(), line["span_id"])
	assert.NotContains(t, line, "empty")
}

func TestWithEventContextGeneratesEventID(t *testing.T) {
	base := newRecordingLogger()
	ctx := WithEventContext(context.Background(), base, nil, trace.TraceID{}, trace.SpanID{}, nil)
	logctx.From(ctx).Info("event_handled")

	line := (*base.lines)[0]
	assert.NotEmpty(t, line["event_id"])
	assert.NotContains(t, line, "trace_id")
}

func TestSubscriberInjectsEventLogger(t *testing.T) {
	inner := &syncSubscriber{}
	sub := NewSubscriber(inner, nil)

	var got observability.Logger
	sub.Subscribe("order.paid", func(ctx context.Context, _ domoutbox.Event) error {
		got = logctx.From(ctx)
		return errors.New("handler failed")
	})

	h, ok := inner.handlers["order.paid"]
	require.True(t, ok)
	err := h(context.Background(), paid{id: "evt-9"})
	assert.EqualError(t, err, "handler failed")
	assert.NotNil(t, got)
}
