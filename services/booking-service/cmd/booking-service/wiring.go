package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/md-rashed-zaman/sevabook/libs/db"
	"github.com/md-rashed-zaman/sevabook/libs/kafkax"
	"github.com/md-rashed-zaman/sevabook/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/sevabook/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/sevabook/services/booking-service/internal/payment"
	"github.com/md-rashed-zaman/sevabook/services/booking-service/internal/storage"
)

// openRedis returns nil when REDIS_ADDR is unset.
func openRedis(ctx context.Context, cfg serviceConfig) (*redis.Client, error) {
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// openBackend picks the booking store backend. The returned closer releases what it opened.
func openBackend(ctx context.Context, cfg serviceConfig, rdb *redis.Client) (storage.Backend, func(), error) {
	switch strings.ToLower(cfg.StoreBackend) {
	case "", "memory":
		return storage.NewMemoryBackend(), func() {}, nil
	case "redis":
		if rdb == nil {
			return nil, nil, errors.New("STORE_BACKEND=redis needs REDIS_ADDR")
		}
		return storage.NewRedisBackend(rdb, cfg.StoreNamespace), func() {}, nil
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, nil, errors.New("STORE_BACKEND=postgres needs DATABASE_URL")
		}
		pool, err := db.Open(ctx, cfg.DatabaseURL, db.PoolOptions{
			MaxConns:     cfg.DatabaseMaxConns,
			ConnectRetry: cfg.DatabaseConnectRetry,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		backend := storage.NewPostgresBackend(pool, cfg.StoreNamespace)
		if err := backend.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return backend, pool.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
}

// newProvider returns the configured checkout provider and, for Stripe, its webhook parser.
func newProvider(cfg serviceConfig) (payment.Provider, handlers.WebhookParser, error) {
	switch strings.ToLower(cfg.PaymentProvider) {
	case "", "hosted":
		return payment.NewHostedProvider(payment.HostedConfig{
			KeyID:     cfg.PaymentKeyID,
			KeySecret: cfg.PaymentKeySecret,
			ScriptURL: cfg.PaymentScriptURL,
		}), nil, nil
	case "stripe":
		p := payment.NewStripeProvider(payment.StripeConfig{
			SecretKey:      cfg.StripeSecretKey,
			PublishableKey: cfg.PaymentKeyID,
			WebhookSecret:  cfg.StripeWebhookSecret,
		})
		return p, p, nil
	}
	return nil, nil, fmt.Errorf("unknown PAYMENT_PROVIDER %q", cfg.PaymentProvider)
}

// notifyChannels builds every channel. Unconfigured ones report "not configured" when used.
func notifyChannels(cfg serviceConfig, logger *slog.Logger) ([]notify.Channel, func()) {
	smtpCfg := notify.SMTPConfig{Host: cfg.SMTPHost, Port: cfg.SMTPPort, From: cfg.SMTPFrom}
	channels := []notify.Channel{
		notify.NewEmailChannel(smtpCfg, notify.AudienceOperator, cfg.OperatorEmail),
		notify.NewEmailChannel(smtpCfg, notify.AudienceCustomer, cfg.OperatorEmail),
		notify.NewWebhookChannel(cfg.WhatsAppURL, cfg.WhatsAppToken, notify.AudienceOperator, cfg.OperatorPhone),
		notify.NewWebhookChannel(cfg.WhatsAppURL, cfg.WhatsAppToken, notify.AudienceCustomer, cfg.OperatorPhone),
	}
	var closers []func() error

	if brokers := kafkax.SplitBrokers(cfg.KafkaBrokers); len(brokers) > 0 {
		w := kafkax.NewWriter(brokers, cfg.KafkaTopic)
		channels = append(channels, notify.NewKafkaChannel(w))
		closers = append(closers, w.Close)
	} else {
		channels = append(channels, notify.NewKafkaChannel(nil))
	}

	amqpCh := notify.NewAMQPChannel(cfg.AMQPURL, cfg.AMQPQueue)
	channels = append(channels, amqpCh)
	closers = append(closers, amqpCh.Close)

	return channels, func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Warn("notification channel close failed", "err", err)
			}
		}
	}
}
