package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/farmsight/relay/internal/infrastructure/configs"
	"github.com/farmsight/relay/internal/infrastructure/ratelimiter"
	healthHandler "github.com/farmsight/relay/internal/presentation/handler/health"
	ingestHandler "github.com/farmsight/relay/internal/presentation/handler/ingest"
	liveHandler "github.com/farmsight/relay/internal/presentation/handler/live"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type Application struct {
	config        configs.Config
	liveHandler   *liveHandler.Handler
	ingestHandler *ingestHandler.Handler
	healthHandler *healthHandler.Handler
	logger        *zap.SugaredLogger
	ratelimiter   *ratelimiter.FixedWindowRateLimiter
	shutdown      func(context.Context) error
}

func NewApplication(
	config configs.Config,
	live *liveHandler.Handler,
	ingest *ingestHandler.Handler,
	health *healthHandler.Handler,
	logger *zap.SugaredLogger,
	ratelimiter *ratelimiter.FixedWindowRateLimiter,
	shutdown func(context.Context) error,
) *Application {
	return &Application{
		config:        config,
		liveHandler:   live,
		ingestHandler: ingest,
		healthHandler: health,
		logger:        logger,
		ratelimiter:   ratelimiter,
		shutdown:      shutdown,
	}
}

func (app *Application) Mount() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Use(app.rateLimiterMiddleware)
	r.Use(app.enableCors)

	r.Route("/api", func(r chi.Router) {
		// Long-lived connections: no request timeout on this route.
		r.Get("/ws", app.liveHandler.ServeWS)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Get("/streams/{streamId}/subscribers", app.liveHandler.GetSubscribersHandler)

			r.Route("/ingest", func(r chi.Router) {
				r.Post("/streams/{streamId}/events/{event}", app.ingestHandler.EmitToStreamHandler)
				r.Post("/tenants/{tenantId}/events/{event}", app.ingestHandler.EmitToTenantHandler)
			})

			r.Get("/health", app.healthHandler.GetHealth)
			r.Get("/healthz", app.healthHandler.GetHealth)
			r.Get("/ready", app.healthHandler.GetHealth)
			r.Get("/live", app.healthHandler.GetHealth)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return otelhttp.NewHandler(r, "relay")
}

func (app *Application) Run(mux http.Handler) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", app.config.HTTP.Host, app.config.HTTP.Port),
		Handler:      mux,
		WriteTimeout: app.config.HTTP.WriteTimeout,
		ReadTimeout:  app.config.HTTP.ReadTimeout,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		app.logger.Infow("signal caught", "signal", s.String())

		if app.shutdown != nil {
			if err := app.shutdown(ctx); err != nil {
				app.logger.Warnw("component shutdown", "error", err)
			}
		}

		shutdown <- srv.Shutdown(ctx)
	}()

	app.logger.Infow("server has started", "addr", srv.Addr)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Infow("server has stopped", "addr", srv.Addr)

	return nil
}
