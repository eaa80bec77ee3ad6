// Command server runs the werkstattguard security core: field encryption,
// rate limiting, the tamper-evident audit trail, and the data-subject-rights
// API behind one HTTP surface.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"werkstattguard/internal/audit"
	auditmetrics "werkstattguard/internal/audit/metrics"
	"werkstattguard/internal/crypto"
	"werkstattguard/internal/gdpr/export"
	gdprmetrics "werkstattguard/internal/gdpr/metrics"
	gdprservice "werkstattguard/internal/gdpr/service"
	gdprstore "werkstattguard/internal/gdpr/store"
	"werkstattguard/internal/platform/alert"
	"werkstattguard/internal/platform/config"
	"werkstattguard/internal/platform/database"
	"werkstattguard/internal/platform/health"
	"werkstattguard/internal/platform/kafka"
	"werkstattguard/internal/platform/logger"
	"werkstattguard/internal/platform/redis"
	"werkstattguard/internal/platform/tracer"
	rlconfig "werkstattguard/internal/ratelimit/config"
	rlmetrics "werkstattguard/internal/ratelimit/metrics"
	rlmodels "werkstattguard/internal/ratelimit/models"
	rlservice "werkstattguard/internal/ratelimit/service"
	rlstore "werkstattguard/internal/ratelimit/store"
	httptransport "werkstattguard/internal/transport/http"
)

const shutdownTimeout = 15 * time.Second

func main() {
	log := logger.New()
	if err := run(log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg := config.FromEnv()

	cryptoMgr, err := crypto.NewManager(cfg.MasterKey, crypto.WithLogger(log))
	if err != nil {
		return fmt.Errorf("master key: %w", err)
	}

	pool, err := database.New(database.Config{
		URL:             cfg.DatabaseURL,
		MaxOpenConns:    database.DefaultConfig().MaxOpenConns,
		MaxIdleConns:    database.DefaultConfig().MaxIdleConns,
		ConnMaxLifetime: database.DefaultConfig().ConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if pool != nil {
		defer pool.Close()
	}

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Alert sink: Kafka when brokers are configured, otherwise the log.
	var notifier alert.Notifier = alert.NewLogNotifier(log)
	if cfg.Kafka.Brokers != "" {
		kafkaNotifier, err := alert.NewKafkaNotifier(alert.KafkaConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.AlertTopic,
		}, log)
		if err != nil {
			return fmt.Errorf("kafka notifier: %w", err)
		}
		defer kafkaNotifier.Close()
		// Alerts degrade to the log when the broker is unreachable.
		notifier = alert.NewFallbackNotifier(kafkaNotifier, alert.NewLogNotifier(log), log)
	}

	var auditStore audit.Store = audit.NewInMemoryStore()
	if pool != nil {
		auditStore = audit.NewPostgres(pool.DB())
	}
	auditor, err := audit.New(auditStore, cfg.AuditSalt,
		audit.WithLogger(log),
		audit.WithMetrics(auditmetrics.New()),
		audit.WithNotifier(notifier),
	)
	if err != nil {
		return fmt.Errorf("audit logger: %w", err)
	}

	var limitStore rlstore.Store = rlstore.NewInMemoryStore()
	if redisClient != nil {
		limitStore = rlstore.NewRedisStore(redisClient.Client)
	}
	limitOpts := []rlservice.Option{
		rlservice.WithLogger(log),
		rlservice.WithMetrics(rlmetrics.New(prometheus.DefaultRegisterer)),
		rlservice.WithAuditor(auditor),
	}
	for _, action := range cfg.FailClosedActions {
		limitOpts = append(limitOpts, rlservice.WithFailMode(rlmodels.Action(action), rlconfig.FailClosed))
	}
	limits, err := rlservice.New(limitStore, limitOpts...)
	if err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	gdprStores := memoryGDPRStores()
	if pool != nil {
		pg := gdprstore.NewPostgres(pool.DB())
		gdprStores = gdprservice.Stores{
			Consents: pg, Users: pg, Data: pg, Retention: pg, Objections: pg,
		}
	}
	gdprOpts := []gdprservice.Option{
		gdprservice.WithLogger(log),
		gdprservice.WithMetrics(gdprmetrics.New(prometheus.DefaultRegisterer)),
	}
	if len(cfg.ReceiptKey) > 0 {
		signer, err := export.NewReceiptSigner(cfg.ReceiptKey)
		if err != nil {
			return fmt.Errorf("receipt signer: %w", err)
		}
		gdprOpts = append(gdprOpts, gdprservice.WithReceiptSigner(signer))
	}
	if cfg.TracingEnabled {
		gdprOpts = append(gdprOpts, gdprservice.WithTracer(tracer.NewOTel()))
	}
	gdpr, err := gdprservice.New(gdprStores, cryptoMgr, auditor, gdprOpts...)
	if err != nil {
		return fmt.Errorf("gdpr service: %w", err)
	}

	healthHandler := health.New(cfg.Environment)
	if pool != nil {
		healthHandler.RegisterCheck("postgres", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return pool.Health(ctx)
		})
	}
	if redisClient != nil {
		healthHandler.RegisterCheck("redis", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return redisClient.Health(ctx)
		})
	}
	if cfg.Kafka.Brokers != "" {
		kafkaCheck := kafka.NewHealthChecker(cfg.Kafka.Brokers)
		healthHandler.RegisterCheck(kafkaCheck.Name(), func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return kafkaCheck.Check(ctx)
		})
	}

	handlerOpts := []httptransport.Option{httptransport.WithHealth(healthHandler)}
	if cfg.AdminToken != "" {
		handlerOpts = append(handlerOpts, httptransport.WithAdminToken(cfg.AdminToken))
	}
	if len(cfg.TrustedProxies) > 0 {
		handlerOpts = append(handlerOpts, httptransport.WithTrustedProxies(cfg.TrustedProxies))
	}
	handler := httptransport.NewHandler(gdpr, limits, auditor, log, handlerOpts...)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httptransport.NewRouter(handler),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.Addr, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func memoryGDPRStores() gdprservice.Stores {
	mem := gdprstore.NewInMemoryStore()
	return gdprservice.Stores{
		Consents: mem, Users: mem, Data: mem, Retention: mem, Objections: mem,
	}
}
