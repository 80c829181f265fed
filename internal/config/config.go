package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

type ServicesConfig struct {
	OrchestratorURL string // motor orchestrator: pricing, mandate, callbacks
	PaymentURL      string // payment service: plans, transaction details
	IdentityURL     string // consumer service: ekey decryption
	EventBusURL     string // r2d2: domain event ingestion
	AppName         string // sent as x-app-name / event "app" field
	HTTPTimeout     time.Duration
}

type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	MaxRetries  int
	DialTimeout int
	Timeout     int
}

type QueueConfig struct {
	Key           string // list the notification feed lands on
	DeadLetterKey string
	BatchSize     int
	PollInterval  time.Duration
	RequeueDelay  time.Duration
}

type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type ArchiveConfig struct {
	Enabled         bool
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
	Region          string
	Prefix          string
}

type AppConfig struct {
	Port     string
	Services ServicesConfig
	Redis    RedisConfig
	Queue    QueueConfig
	Postgres PostgresConfig
	Archive  ArchiveConfig
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func mustAtoi(s string) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int value %q: %v", s, err)
	}
	return i
}

func mustBool(s string) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		log.Fatalf("invalid bool value %q: %v", s, err)
	}
	return b
}

func seconds(s string) time.Duration {
	return time.Duration(mustAtoi(s)) * time.Second
}

func Load() AppConfig {
	return AppConfig{
		Port: getenv("APP_PORT", "8020"),
		Services: ServicesConfig{
			OrchestratorURL: getenv("MOTOR_ORCHESTRATOR_URL", "http://motor-orchestrator.internal"),
			PaymentURL:      getenv("PAYMENT_URL", "http://payment-service.internal"),
			IdentityURL:     getenv("IDENTITY_SERVICE_URL", "http://consumer-service.internal"),
			EventBusURL:     getenv("R2D2_SERVICE_URL", "http://r2d2.internal"),
			AppName:         getenv("APP_NAME", "mandate_reconciler"),
			HTTPTimeout:     seconds(getenv("HTTP_TIMEOUT", "10")),
		},
		Redis: RedisConfig{
			Addr:        getenv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:    getenv("REDIS_PASSWORD", ""),
			DB:          mustAtoi(getenv("REDIS_DB", "0")),
			MaxRetries:  mustAtoi(getenv("REDIS_MAX_RETRIES", "5")),
			DialTimeout: mustAtoi(getenv("REDIS_DIAL_TIMEOUT", "10")),
			Timeout:     mustAtoi(getenv("REDIS_TIMEOUT", "5")),
		},
		Queue: QueueConfig{
			Key:           getenv("QUEUE_KEY", "mandate_notifications"),
			DeadLetterKey: getenv("QUEUE_DLQ_KEY", "mandate_notifications_dlq"),
			BatchSize:     mustAtoi(getenv("QUEUE_BATCH_SIZE", "10")),
			PollInterval:  seconds(getenv("QUEUE_POLL_INTERVAL", "2")),
			RequeueDelay:  seconds(getenv("QUEUE_REQUEUE_DELAY", "5")),
		},
		Postgres: PostgresConfig{
			Host:     getenv("PG_HOST", "127.0.0.1"),
			Port:     mustAtoi(getenv("PG_PORT", "5432")),
			User:     getenv("PG_USER", "root"),
			Password: getenv("PG_PASSWORD", ""),
			DBName:   getenv("PG_DB", "mandate_reconciler"),
			SSLMode:  getenv("PG_SSLMODE", "disable"),
		},
		Archive: ArchiveConfig{
			Enabled:         mustBool(getenv("ARCHIVE_ENABLED", "false")),
			Endpoint:        getenv("S3_ENDPOINT", "localhost:9000"),
			AccessKeyID:     getenv("S3_ACCESS_KEY", "minio"),
			SecretAccessKey: getenv("S3_SECRET_KEY", "minio123"),
			Bucket:          getenv("S3_BUCKET", "mandate-events"),
			Region:          getenv("S3_REGION", "us-east-1"),
			UseSSL:          mustBool(getenv("S3_USE_SSL", "false")),
			Prefix:          getenv("S3_PREFIX", "events/"),
		},
	}
}
