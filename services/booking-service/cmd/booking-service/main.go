package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/md-rashed-zaman/sevabook/libs/config"
	"github.com/md-rashed-zaman/sevabook/libs/httpx"
	"github.com/md-rashed-zaman/sevabook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/sevabook/libs/otel"
	"github.com/md-rashed-zaman/sevabook/libs/runtime"
	"github.com/md-rashed-zaman/sevabook/services/booking-service/internal/assistant"
	"github.com/md-rashed-zaman/sevabook/services/booking-service/internal/catalog"
	"github.com/md-rashed-zaman/sevabook/services/booking-service/internal/flow"
	"github.com/md-rashed-zaman/sevabook/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/sevabook/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/sevabook/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/sevabook/services/booking-service/internal/payment"
	"github.com/md-rashed-zaman/sevabook/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/sevabook/services/booking-service/internal/validation"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		panic(err)
	}
	var cfg serviceConfig
	if err := config.Process("", &cfg); err != nil {
		panic(err)
	}
	port, err := config.Port("PORT", cfg.Port)
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(cfg.ServiceName, cfg.LogLevel)

	ctx, stop := runtime.SignalContext(context.Background())
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(cfg.ServiceName))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	rdb, err := openRedis(ctx, cfg)
	if err != nil {
		logger.Error("redis unavailable", "err", err)
	}
	if rdb != nil {
		defer rdb.Close()
	}

	backend, closeBackend, err := openBackend(ctx, cfg, rdb)
	if err != nil {
		logger.Error("store backend init failed", "backend", cfg.StoreBackend, "err", err)
		panic(err)
	}
	defer closeBackend()

	m := metrics.New("sevabook")
	cat := catalog.Default()
	store := storage.NewStore(backend, logger, storage.WithRetention(storage.Retention{
		MaxRecords: cfg.StoreMaxRecords,
		MaxAge:     cfg.StoreMaxAge,
	}))

	provider, webhookParser, err := newProvider(cfg)
	if err != nil {
		logger.Error("payment provider init failed", "err", err)
		panic(err)
	}
	orch := payment.NewOrchestrator(provider, payment.Config{
		Currency:     cfg.PaymentCurrency,
		MerchantName: cfg.PaymentMerchantName,
		MaxAmount:    cfg.PaymentMaxAmount,
		LoadTimeout:  cfg.PaymentLoadTimeout,
	}, logger)
	go func() {
		if err := orch.LoadProvider(ctx); err != nil {
			logger.Warn("payment provider not ready", "provider", provider.Name(), "err", err)
		}
	}()

	channels, closeChannels := notifyChannels(cfg, logger)
	defer closeChannels()
	dispatcher := notify.NewDispatcher(logger, channels, notify.WithObserver(func(r notify.Result) {
		m.Notification(r.Channel, r.Success)
	}))
	logger.Info("notification channels", "channels", dispatcher.Channels())

	ctrl := flow.NewController(validation.New(cat), cat, store, orch, dispatcher, logger, flow.WithRecorder(m))

	var webhooks *handlers.WebhookHandler
	if webhookParser != nil {
		webhooks = handlers.NewWebhookHandler(webhookParser, ctrl, logger)
	}
	gen := assistant.NewClient(assistant.Config{URL: cfg.AssistantURL, APIKey: cfg.AssistantAPIKey})

	router := mux.NewRouter()
	router.Use(m.Middleware)
	handlers.Routes(router,
		handlers.NewBookingHandler(ctrl, store, cat, logger),
		webhooks,
		handlers.NewAssistantHandler(gen, logger),
	)

	var limiter httpx.Limiter
	switch {
	case cfg.RateLimitPerMinute <= 0:
	case rdb != nil:
		limiter = httpx.NewRedisLimiter(rdb, cfg.RateLimitPerMinute, time.Minute, cfg.StoreNamespace+":ratelimit")
	default:
		limiter = httpx.NewMemoryLimiter(cfg.RateLimitPerMinute, time.Minute)
	}

	checks := []runtime.ReadyCheck{{Name: "store", Check: store.Ping}}
	if brokers := kafkax.SplitBrokers(cfg.KafkaBrokers); len(brokers) > 0 {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers), Optional: true})
	}
	base := runtime.NewBaseMuxWithReady(checks...)
	base.Handle("/metrics", m.Handler())
	base.Handle("/api/", httpx.Chain(router,
		httpx.WithRateLimit(limiter, logger, true),
		httpx.WithBodyLimit(1<<20),
	))

	httpHandler := httpx.Chain(base,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithCORS(httpx.DefaultCORSPolicy(cfg.CORSAllowedOrigins)),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr, "store", cfg.StoreBackend, "payment", provider.Name())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
