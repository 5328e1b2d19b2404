// Command fronthaul-server exposes the analyzer over HTTP with
// Prometheus metrics and optional OpenTelemetry tracing.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/signalsfoundry/fronthaul-optimizer/internal/config"
	"github.com/signalsfoundry/fronthaul-optimizer/internal/httpapi"
	"github.com/signalsfoundry/fronthaul-optimizer/internal/ingest"
	"github.com/signalsfoundry/fronthaul-optimizer/internal/logging"
	"github.com/signalsfoundry/fronthaul-optimizer/internal/observability"
	"github.com/signalsfoundry/fronthaul-optimizer/internal/pipeline"
	"github.com/signalsfoundry/fronthaul-optimizer/internal/refresh"
	"github.com/signalsfoundry/fronthaul-optimizer/internal/state"
)

func main() {
	httpAddr := flag.String("http-addr", "", "TCP address the API server listens on (overrides config)")
	metricsAddr := flag.String("metrics-addr", "", "HTTP address for Prometheus /metrics (overrides config)")
	dataDir := flag.String("data", "", "trace directory (overrides config)")
	configPath := flag.String("config", "", "optional YAML config file")
	refreshInterval := flag.Duration("refresh-interval", 0, "re-run the analysis at this interval (0 disables)")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Error(ctx, "failed to load config", logging.String("path", *configPath), logging.String("error", err.Error()))
			os.Exit(1)
		}
		cfg = loaded
	}
	if *httpAddr != "" {
		cfg.HTTPAddr = *httpAddr
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.String("error", err.Error()))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	collector, err := observability.NewCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to initialise metrics collector", logging.String("error", err.Error()))
		os.Exit(1)
	}

	metricsSrv := serveMetrics(cfg.MetricsAddr, collector, log)

	coreCfg := cfg.CoreConfig()
	analyzer, err := pipeline.New(coreCfg, log,
		pipeline.WithConcurrency(cfg.Concurrency),
		pipeline.WithMetrics(collector),
	)
	if err != nil {
		log.Error(ctx, "failed to build analyzer", logging.String("error", err.Error()))
		os.Exit(1)
	}

	store := state.NewStore(log, state.WithMetricsRecorder(collector))
	loader := ingest.NewLoader(cfg.DataDir, coreCfg, log)

	api := httpapi.NewServer(loader, analyzer, store, log,
		httpapi.WithMiddleware(collector.Middleware),
	)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api,
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var refreshDone <-chan struct{}
	if *refreshInterval > 0 {
		loop := refresh.NewLoop(*refreshInterval, func(ctx context.Context) error {
			series, err := loader.LoadAll(ctx)
			if err != nil {
				return err
			}
			run, err := analyzer.Run(ctx, series)
			if err != nil {
				return err
			}
			return store.Put(ctx, run)
		}, log)
		refreshDone = loop.Start(stopCtx)
		log.Info(ctx, "scheduled analysis enabled",
			logging.String("interval", refreshInterval.String()))
	}

	log.Info(ctx, "starting analyzer API server",
		logging.String("addr", cfg.HTTPAddr),
		logging.String("data_dir", cfg.DataDir))
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "API server exited", logging.String("error", err.Error()))
		}
	}()

	<-stopCtx.Done()

	log.Info(ctx, "shutting down analyzer API server")
	if refreshDone != nil {
		<-refreshDone
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
}

func serveMetrics(addr string, collector *observability.Collector, log logging.Logger) *http.Server {
	if collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.String("error", err.Error()))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
