// Package config builds runtime configuration from environment variables so
// main stays lean. Components receive the structs they need at construction;
// there is no ambient global state.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	pkgstrings "healthfinance/pkg/platform/strings"
)

// Config is the full server configuration.
type Config struct {
	Server       Server
	Postgres     Postgres
	Redis        Redis
	Kafka        Kafka
	Notification Notification
	Insurance    Insurance
	Worker       Worker
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr        string
	ServiceName string
	Environment string
}

// Postgres captures database connection settings.
type Postgres struct {
	DSN string
}

// Redis captures template cache settings. An empty URL disables the cache.
type Redis struct {
	URL         string
	TemplateTTL time.Duration
}

// Kafka captures event broker settings. Empty seeds disable publishing.
type Kafka struct {
	Seeds []string
}

// Notification captures channel sender settings. Channels restricts which
// delivery channels get a sender registered; empty means all of them.
type Notification struct {
	Channels     []string
	EmailEnabled bool
	SMTPAddr     string
	FromEmail    string
	FromName     string
	SMSEnabled   bool
	MaxRetries   int
	SweepEvery   time.Duration
}

// Insurance captures the insurance service client settings.
type Insurance struct {
	BaseURL string
	Timeout time.Duration
}

// Worker captures the background task pool settings.
type Worker struct {
	Workers   int
	QueueSize int
}

// FromEnv builds a Config from environment variables with dev defaults.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:        getenv("BACKOFFICE_ADDR", ":8080"),
			ServiceName: getenv("SERVICE_NAME", "billing-service"),
			Environment: getenv("DEPLOY_ENV", "dev"),
		},
		Postgres: Postgres{
			DSN: getenv("POSTGRES_DSN", ""),
		},
		Redis: Redis{
			URL:         getenv("REDIS_URL", ""),
			TemplateTTL: getduration("TEMPLATE_CACHE_TTL", 5*time.Minute),
		},
		Kafka: Kafka{
			Seeds: getlist("KAFKA_SEEDS"),
		},
		Notification: Notification{
			Channels:     getlistLower("NOTIFICATION_CHANNELS"),
			EmailEnabled: getbool("NOTIFICATION_EMAIL_ENABLED", false),
			SMTPAddr:     getenv("SMTP_ADDR", "localhost:25"),
			FromEmail:    getenv("NOTIFICATION_FROM_EMAIL", "noreply@healthfinance.local"),
			FromName:     getenv("NOTIFICATION_FROM_NAME", "HealthFinance Plus"),
			SMSEnabled:   getbool("NOTIFICATION_SMS_ENABLED", false),
			MaxRetries:   getint("NOTIFICATION_MAX_RETRIES", 3),
			SweepEvery:   getduration("NOTIFICATION_SWEEP_INTERVAL", time.Minute),
		},
		Insurance: Insurance{
			BaseURL: getenv("INSURANCE_SERVICE_URL", "http://localhost:8084"),
			Timeout: getduration("INSURANCE_CLIENT_TIMEOUT", 10*time.Second),
		},
		Worker: Worker{
			Workers:   getint("TASK_POOL_WORKERS", 4),
			QueueSize: getint("TASK_POOL_QUEUE", 256),
		},
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getbool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v == "true"
}

func getint(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getduration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getlist(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	return pkgstrings.DedupeAndTrim(strings.Split(v, ","))
}

func getlistLower(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	return pkgstrings.DedupeAndTrimLower(strings.Split(v, ","))
}
