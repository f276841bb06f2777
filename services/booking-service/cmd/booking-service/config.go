package main

import "time"

type serviceConfig struct {
	ServiceName string `envconfig:"SERVICE_NAME" default:"booking-service"`
	Port        string `envconfig:"PORT" default:"8080"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	StoreBackend    string        `envconfig:"STORE_BACKEND" default:"memory"`
	StoreNamespace  string        `envconfig:"STORE_NAMESPACE" default:"sevabook"`
	StoreMaxRecords int           `envconfig:"STORE_MAX_RECORDS" default:"5000"`
	StoreMaxAge     time.Duration `envconfig:"STORE_MAX_AGE" default:"2160h"`
	RedisAddr       string        `envconfig:"REDIS_ADDR"`
	RedisPassword   string        `envconfig:"REDIS_PASSWORD"`
	RedisDB         int           `envconfig:"REDIS_DB" default:"0"`
	DatabaseURL     string        `envconfig:"DATABASE_URL"`

	DatabaseMaxConns     int32         `envconfig:"DATABASE_MAX_CONNS" default:"4"`
	DatabaseConnectRetry time.Duration `envconfig:"DATABASE_CONNECT_RETRY" default:"0s"`

	PaymentProvider     string        `envconfig:"PAYMENT_PROVIDER" default:"hosted"`
	PaymentKeyID        string        `envconfig:"PAYMENT_KEY_ID"`
	PaymentKeySecret    string        `envconfig:"PAYMENT_KEY_SECRET"`
	PaymentCurrency     string        `envconfig:"PAYMENT_CURRENCY" default:"INR"`
	PaymentMerchantName string        `envconfig:"PAYMENT_MERCHANT_NAME" default:"Sevabook"`
	PaymentMaxAmount    int64         `envconfig:"PAYMENT_MAX_AMOUNT" default:"100000"`
	PaymentScriptURL    string        `envconfig:"PAYMENT_SCRIPT_URL"`
	PaymentLoadTimeout  time.Duration `envconfig:"PAYMENT_LOAD_TIMEOUT" default:"10s"`
	StripeSecretKey     string        `envconfig:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string        `envconfig:"STRIPE_WEBHOOK_SECRET"`

	SMTPHost      string `envconfig:"SMTP_HOST"`
	SMTPPort      string `envconfig:"SMTP_PORT" default:"25"`
	SMTPFrom      string `envconfig:"SMTP_FROM"`
	OperatorEmail string `envconfig:"OPERATOR_EMAIL"`
	WhatsAppURL   string `envconfig:"WHATSAPP_WEBHOOK_URL"`
	WhatsAppToken string `envconfig:"WHATSAPP_WEBHOOK_TOKEN"`
	OperatorPhone string `envconfig:"OPERATOR_PHONE"`
	KafkaBrokers  string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic    string `envconfig:"KAFKA_TOPIC" default:"booking.payment.succeeded.v1"`
	AMQPURL       string `envconfig:"AMQP_URL"`
	AMQPQueue     string `envconfig:"AMQP_QUEUE" default:"booking.confirmed"`

	AssistantURL    string `envconfig:"ASSISTANT_URL"`
	AssistantAPIKey string `envconfig:"ASSISTANT_API_KEY"`

	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS"`
	RateLimitPerMinute int      `envconfig:"RATE_LIMIT_PER_MINUTE" default:"60"`
}
