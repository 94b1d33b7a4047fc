package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nsqio/go-nsq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/emberhook/emberhook/internal/api"
	"github.com/emberhook/emberhook/internal/auth"
	"github.com/emberhook/emberhook/internal/config"
	"github.com/emberhook/emberhook/internal/db"
	"github.com/emberhook/emberhook/internal/delivery"
	"github.com/emberhook/emberhook/internal/dispatch"
	"github.com/emberhook/emberhook/internal/event"
	"github.com/emberhook/emberhook/internal/health"
	"github.com/emberhook/emberhook/internal/logging"
	"github.com/emberhook/emberhook/internal/metrics"
	"github.com/emberhook/emberhook/internal/plugin"
	"github.com/emberhook/emberhook/internal/plugin/providers"
	"github.com/emberhook/emberhook/internal/tracing"
	"github.com/emberhook/emberhook/internal/webhook"
)

func main() {
	cfg := config.FromEnv()
	ctx := context.Background()

	logger := logging.New("emberhook-api")

	shutdown, err := tracing.InitTracing(ctx, "emberhook-api")
	if err != nil {
		logger.Plain().WithError(err).Fatal("Failed to initialize tracing")
	}
	defer shutdown()

	pool, err := db.Connect(ctx, cfg.DSN())
	if err != nil {
		logger.Plain().WithError(err).Fatal("db connect failed")
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		logger.Plain().WithError(err).Fatal("db migrate failed")
	}

	producer, err := nsq.NewProducer(cfg.NSQ.NsqdTCPAddr, nsq.NewConfig())
	if err != nil {
		logger.Plain().WithError(err).Fatal("nsq producer creation failed")
	}
	defer producer.Stop()

	reg := prometheus.NewRegistry()
	metrics.MustRegister(reg)

	// JWT validation is optional in local dev: without a public key every
	// request runs unauthenticated with an empty org.
	var validator *auth.JWTValidator
	if cfg.Auth.PublicKeyPEM != "" {
		validator, err = auth.NewJWTValidator(cfg.Auth.PublicKeyPEM, cfg.Auth.Issuer, cfg.Auth.Audience)
		if err != nil {
			logger.Plain().WithError(err).Fatal("jwt validator creation failed")
		}
	} else {
		logger.Plain().Warn("AUTH_PUBLIC_KEY not set, running without authentication")
	}

	events := event.NewRegistry()
	catalog := plugin.NewRegistry()
	catalog.MustRegister(providers.All(&http.Client{Timeout: 10 * time.Second})...)

	store := webhook.NewPostgresStore(pool)
	webhooks := webhook.NewService(store, events)
	plugins := plugin.NewService(catalog, plugin.NewPostgresInstallStore(pool))
	ledger := delivery.NewPostgresLedger(pool)

	dispatcher := dispatch.NewDispatcher(
		events,
		store,
		plugins,
		ledger,
		dispatch.NewPostgresEventStore(pool),
		producer,
		ledger,
		logger,
		cfg.NSQ.DeliveriesTopic,
		cfg.NSQ.PluginTopic,
	)

	srv := &api.Server{
		Events:     events,
		Webhooks:   webhooks,
		Plugins:    plugins,
		Catalog:    catalog,
		Dispatcher: dispatcher,
		Attempts:   ledger,
		Auth:       validator,
		Logger:     logger,
		Health:     health.HTTPHandler(pool),
		Metrics:    promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}

	httpSrv := &http.Server{
		Addr:         cfg.HTTPPort,
		Handler:      srv.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	go func() {
		logger.Plain().WithField("addr", httpSrv.Addr).Info("api server starting")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Plain().WithError(err).Fatal("api server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop

	logger.Plain().Info("Shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	logger.Plain().Info("api server stopped")
}
