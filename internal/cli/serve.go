package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/latrastienda/tienda/internal/config"
	infraobs "github.com/latrastienda/tienda/internal/infrastructure/observability"
	"github.com/latrastienda/tienda/internal/infrastructure/observability/oteltrace"
	"github.com/latrastienda/tienda/internal/infrastructure/observability/prometrics"
	"github.com/latrastienda/tienda/internal/infrastructure/observability/zaplogger"
	"github.com/latrastienda/tienda/internal/observability"
	"github.com/latrastienda/tienda/internal/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(configPath *string) *cobra.Command {
	var seedPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, seedPath)
		},
	}
	cmd.Flags().StringVar(&seedPath, "seed", "", "YAML file with products and customers to load at startup")
	return cmd
}

func serve(ctx context.Context, cfg config.Config, seedPath string) error {
	base, err := logging.NewLogger(cfg.LogOptions())
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = base.Sync() }()
	zap.ReplaceGlobals(base)
	systemLogger := zaplogger.New(logging.WithTrace(base, logging.SystemTraceID, logging.SystemSpanID))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	counters, histograms := prometrics.Instruments(prometrics.New(reg, "", ""))

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	tel := infraobs.New(
		infraobs.WithTracer(oteltrace.New(cfg.Service.Name)),
		infraobs.WithLogger(zaplogger.New(base)),
		infraobs.WithInstruments(counters, histograms),
	)
	if missing := infraobs.Unbound(tel); len(missing) > 0 {
		systemLogger.Warn("metrics_unbound", observability.F("keys", missing))
	}

	store, err := openStorage(ctx, cfg)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer store.close()

	if seedPath != "" {
		n, err := loadSeed(ctx, seedPath, store)
		if err != nil {
			return err
		}
		systemLogger.Info("seed_loaded", observability.F("path", seedPath), observability.F("records", n))
	}

	a, err := newApp(ctx, cfg, store, tel, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.Service.Addr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		systemLogger.Info("http_server_start", observability.F("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
		systemLogger.Error("http_server_error", observability.F("error", serveErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		systemLogger.Error("http_server_shutdown_error", observability.F("error", err))
	} else {
		systemLogger.Info("http_server_stopped")
	}
	a.Close(shutdownCtx)
	return serveErr
}
