package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	billinghandler "healthfinance/internal/billing/handler"
	billingmetrics "healthfinance/internal/billing/metrics"
	billingservice "healthfinance/internal/billing/service"
	billingstore "healthfinance/internal/billing/store"
	"healthfinance/internal/events"
	eventmetrics "healthfinance/internal/events/metrics"
	"healthfinance/internal/insurance"
	"healthfinance/internal/notification/channel"
	notifhandler "healthfinance/internal/notification/handler"
	notifmetrics "healthfinance/internal/notification/metrics"
	notifmodels "healthfinance/internal/notification/models"
	notifservice "healthfinance/internal/notification/service"
	notifstore "healthfinance/internal/notification/store"
	"healthfinance/internal/notification/sweeper"
	"healthfinance/internal/platform/config"
	"healthfinance/internal/platform/httpserver"
	"healthfinance/internal/platform/logger"
	platformredis "healthfinance/internal/platform/redis"
	"healthfinance/internal/platform/worker"
	"healthfinance/pkg/platform/middleware/requestmeta"
)

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Server.ServiceName, cfg.Server.Environment)

	db, err := sql.Open("postgres", cfg.Postgres.DSN)
	if err != nil {
		log.Error("opening postgres failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		log.Error("postgres unreachable", "error", err)
	}
	cancel()

	// Event publisher. Empty seeds run the server without a broker; billing
	// then skips event emission.
	var publisher *events.Publisher
	if len(cfg.Kafka.Seeds) > 0 {
		kafkaClient, err := kgo.NewClient(
			kgo.SeedBrokers(cfg.Kafka.Seeds...),
			kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		)
		if err != nil {
			log.Error("kafka client failed", "error", err)
			os.Exit(1)
		}
		defer kafkaClient.Close()

		if err := events.EnsureTopics(ctx, kadm.NewClient(kafkaClient)); err != nil {
			log.Error("topic provisioning failed", "error", err)
		}

		publisher, err = events.NewPublisher(kafkaClient, cfg.Server.ServiceName, cfg.Server.Environment,
			events.WithLogger(log),
			events.WithMetrics(eventmetrics.New()),
		)
		if err != nil {
			log.Error("event publisher failed", "error", err)
			os.Exit(1)
		}
	} else {
		log.Warn("no kafka seeds configured, event publishing disabled")
	}

	// Background task pool for fire-and-forget work.
	pool := worker.New(cfg.Worker.Workers, cfg.Worker.QueueSize, worker.WithLogger(log))
	pool.Start(ctx)
	defer pool.Stop()

	// Notification dispatcher. NOTIFICATION_CHANNELS restricts which channels
	// get a sender; an unregistered channel fails sends with a recorded error.
	channelEnabled := func(c notifmodels.Channel) bool {
		if len(cfg.Notification.Channels) == 0 {
			return true
		}
		return slices.Contains(cfg.Notification.Channels, strings.ToLower(string(c)))
	}
	registry := channel.NewRegistry()
	if channelEnabled(notifmodels.ChannelEmail) {
		registry.Register(notifmodels.ChannelEmail, channel.NewEmailSender(cfg.Notification, log))
	}
	if channelEnabled(notifmodels.ChannelSMS) {
		registry.Register(notifmodels.ChannelSMS, channel.NewSMSSender(cfg.Notification, nil, log))
	}
	if channelEnabled(notifmodels.ChannelPush) {
		registry.Register(notifmodels.ChannelPush, channel.NewNoopSender(notifmodels.ChannelPush, log))
	}
	if channelEnabled(notifmodels.ChannelInApp) {
		registry.Register(notifmodels.ChannelInApp, channel.NewNoopSender(notifmodels.ChannelInApp, log))
	}

	var templates notifservice.TemplateStore = notifstore.NewTemplatePostgres(db)
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Warn("redis unavailable, template cache disabled", "error", err)
	} else if redisClient != nil {
		defer redisClient.Close()
		templates = notifstore.NewCachedTemplates(templates, redisClient, cfg.Redis.TemplateTTL, log)
	}

	notifMetrics := notifmetrics.New()
	dispatcher, err := notifservice.New(notifstore.NewPostgres(db), templates, registry,
		notifservice.WithLogger(log),
		notifservice.WithMetrics(notifMetrics),
	)
	if err != nil {
		log.Error("notification service failed", "error", err)
		os.Exit(1)
	}

	sweep := sweeper.New(dispatcher, cfg.Notification.SweepEvery, cfg.Notification.MaxRetries,
		sweeper.WithLogger(log),
		sweeper.WithMetrics(notifMetrics),
	)
	go func() {
		if err := sweep.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("notification sweeper stopped", "error", err)
		}
	}()

	// Billing reconciliation engine.
	insuranceClient := insurance.New(cfg.Insurance, insurance.WithLogger(log))
	billingOpts := []billingservice.Option{
		billingservice.WithLogger(log),
		billingservice.WithMetrics(billingmetrics.New()),
		billingservice.WithInsurance(insuranceClient, pool),
	}
	if publisher != nil {
		billingOpts = append(billingOpts, billingservice.WithPublisher(publisher))
	}
	billing, err := billingservice.New(
		billingstore.NewInvoicePostgres(db),
		billingstore.NewPaymentPostgres(db),
		newLedgerPostgresTx(db),
		billingOpts...,
	)
	if err != nil {
		log.Error("billing service failed", "error", err)
		os.Exit(1)
	}

	router := chi.NewRouter()
	router.Use(chimiddleware.Recoverer)
	router.Use(requestmeta.Middleware)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		if redisClient != nil {
			if err := redisClient.Health(r.Context()); err != nil {
				http.Error(w, "cache unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	router.Handle("/metrics", promhttp.Handler())
	notifhandler.New(dispatcher, log).Register(router)
	billinghandler.New(billing, log).Register(router)

	srv := httpserver.New(cfg.Server.Addr, router)

	go func() {
		log.Info("server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
