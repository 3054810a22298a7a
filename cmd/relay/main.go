package main

import (
	"context"
	"expvar"
	"log"
	"runtime"

	"github.com/farmsight/relay/internal/infrastructure/auth"
	"github.com/farmsight/relay/internal/infrastructure/configs"
	"github.com/farmsight/relay/internal/infrastructure/entitlement"
	"github.com/farmsight/relay/internal/infrastructure/env"
	"github.com/farmsight/relay/internal/infrastructure/ratelimiter"
	"github.com/farmsight/relay/internal/infrastructure/tracing"
	"github.com/farmsight/relay/internal/infrastructure/ws"
	"github.com/farmsight/relay/internal/presentation/api"
	"github.com/farmsight/relay/internal/presentation/handler/health"
	"github.com/farmsight/relay/internal/presentation/handler/ingest"
	"github.com/farmsight/relay/internal/presentation/handler/live"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	logger := zap.Must(zap.NewProduction()).Sugar()
	defer logger.Sync()

	configPath := configs.DetermineConfigPath()
	cfg, err := configs.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}

	tracingShutdown := tracing.ShutdownFunc(func(context.Context) error { return nil })
	if cfg.Tracing.Enabled {
		tracingShutdown, err = tracing.InitTracer(tracing.Config{
			ServiceName: "relay",
			Environment: env.GetString("ENVIRONMENT", "development"),
			Exporter:    cfg.Tracing.Exporter,
			Endpoint:    cfg.Tracing.Endpoint,
		})
		if err != nil {
			logger.Fatalw("failed to init tracer", "error", err)
		}
	}

	authenticator := auth.NewTokenAuthenticator(cfg.Auth.Secret, cfg.Auth.Issuer)
	authorizer := entitlement.NewStatic(cfg.Entitlements)

	metrics := ws.NewMetrics()
	metrics.MustRegister(prometheus.DefaultRegisterer)

	core := ws.NewCore(ws.Config{
		SendBuffer:     cfg.WS.SendBuffer,
		MaxMessageSize: cfg.WS.MaxMessageSize,
		PongWait:       cfg.WS.PongWait,
		WriteTimeout:   cfg.WS.WriteTimeout,
		ShutdownGrace:  cfg.WS.ShutdownGrace,
	}, authenticator, authorizer, logger)

	emitter := ws.NewEmitter(core, metrics, logger)
	reporter := ws.NewReporter(core, metrics, logger, cfg.Metrics.ReportInterval)

	reportCtx, stopReporter := context.WithCancel(context.Background())
	go reporter.Run(reportCtx)

	rateLimiter := ratelimiter.NewFixedWindowRateLimiter(cfg.RateLimiter.RequestsPerTimeFrame, cfg.RateLimiter.TimeFrame)

	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))
	expvar.Publish("heap_alloc_bytes", expvar.Func(func() any {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		return m.HeapAlloc
	}))

	app := api.NewApplication(
		*cfg,
		live.NewHandler(core, logger),
		ingest.NewHandler(emitter, logger),
		health.NewHandler(),
		logger,
		rateLimiter,
		func(ctx context.Context) error {
			stopReporter()
			if err := core.Shutdown(ctx); err != nil {
				logger.Warnw("core shutdown", "error", err)
			}
			rateLimiter.Close()
			return tracingShutdown(ctx)
		},
	)

	mux := app.Mount()
	logger.Fatal(app.Run(mux))
}
