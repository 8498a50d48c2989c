package zaplogger

import (
	"errors"
	"testing"

	"github.com/latrastienda/tienda/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerCarriesFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := New(zap.New(core), observability.F("service", "tienda"))

	log.With(observability.F("order_id", int64(7))).Warn("stock_insufficient",
		observability.F("product_id", "rosa"),
		observability.F("error", errors.New("boom")),
	)
	log.Debug("quiet")

	entries := logs.All()
	require.Len(t, entries, 2)
	e := entries[0]
	assert.Equal(t, "stock_insufficient", e.Message)
	assert.Equal(t, zapcore.WarnLevel, e.Level)
	fields := e.ContextMap()
	assert.Equal(t, "tienda", fields["service"])
	assert.Equal(t, int64(7), fields["order_id"])
	assert.Equal(t, "rosa", fields["product_id"])
	assert.Equal(t, "boom", fields["error"])
}

func TestNilBaseIsNop(t *testing.T) {
	assert.NotPanics(t, func() {
		New(nil).Info("ignored")
	})
}
