package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mentorhub/crm-followup/internal/api/router"
	"github.com/mentorhub/crm-followup/internal/app/bootstrap"
	"github.com/mentorhub/crm-followup/internal/channels/inapp"
	"github.com/mentorhub/crm-followup/internal/channels/whatsapp"
	appconfig "github.com/mentorhub/crm-followup/internal/config"
	"github.com/mentorhub/crm-followup/internal/followup"
	"github.com/mentorhub/crm-followup/internal/http/handlers"
	"github.com/mentorhub/crm-followup/internal/leads"
	"github.com/mentorhub/crm-followup/internal/notify"
	"github.com/mentorhub/crm-followup/internal/observability/metrics"
	workerfollowup "github.com/mentorhub/crm-followup/internal/worker/followup"
	"github.com/mentorhub/crm-followup/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting crm-followup API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	pool, err := bootstrap.BuildDatabase(ctx, cfg)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	awsCfg, err := bootstrap.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	// Stores
	leadsRepo := leads.NewPostgresRepository(pool)
	settingsStore := followup.NewSettingsStore(pool)
	templateStore := followup.NewTemplateStore(pool)
	logStore := followup.NewLogStore(pool)

	// Channel senders. WhatsApp is optional; without a gateway the dispatcher
	// logs a warning per enabled-but-unroutable channel and keeps going.
	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	inappSender := inapp.NewSender(pool, redisClient, logger)
	senders := []followup.ChannelSender{inappSender}
	if cfg.WhatsAppBaseURL != "" && cfg.WhatsAppAPIKey != "" {
		waClient, err := whatsapp.New(whatsapp.Config{
			BaseURL:    cfg.WhatsAppBaseURL,
			APIKey:     cfg.WhatsAppAPIKey,
			Timeout:    cfg.WhatsAppTimeout,
			MaxRetries: cfg.WhatsAppMaxRetries,
			Logger:     logger,
		})
		if err != nil {
			logger.Error("failed to build whatsapp client", "error", err)
			os.Exit(1)
		}
		senders = append(senders, whatsapp.NewSender(waClient, settingsStore))
	} else {
		logger.Warn("whatsapp gateway not configured; whatsapp channel disabled")
	}

	// Escalation email
	emailSender := bootstrap.BuildEmailSender(cfg, awsCfg, logger)
	alerts := notify.NewService(emailSender, settingsStore, logger)

	// Metrics
	registry := prometheus.NewRegistry()
	followUpMetrics := metrics.NewFollowUpMetrics(registry)

	// Follow-up pipeline
	eng := followup.NewEngine(leadsRepo, settingsStore, templateStore, logger)
	disp := followup.NewDispatcher(logStore, senders, logger).
		WithMaxConcurrency(cfg.FollowUpMaxConcurrency).
		WithAlerter(alerts).
		WithMetrics(followUpMetrics)
	runner := workerfollowup.NewRunner(eng, disp, cfg.DefaultOrgID, logger).
		WithRunTimeout(cfg.FollowUpRunTimeout).
		WithAlerter(alerts).
		WithMetrics(followUpMetrics)
	if cfg.ArchiveBucket != "" {
		archiver := followup.NewArchiver(s3.NewFromConfig(awsCfg), cfg.ArchiveBucket, logStore, logger)
		runner = runner.WithArchiver(archiver)
	}

	aggregator := followup.NewAggregator(logStore, leadsRepo, logger)

	// Handlers
	leadsHandler := leads.NewHandler(leadsRepo, logger)
	notificationsHandler := handlers.NewNotificationsHandler(inappSender, logger)
	adminHandler := handlers.NewAdminFollowUpHandler(settingsStore, templateStore, runner, aggregator, logger)

	r := router.New(&router.Config{
		Logger:               logger,
		LeadsHandler:         leadsHandler,
		NotificationsHandler: notificationsHandler,
		AdminFollowUp:        adminHandler,
		AdminAuthSecret:      cfg.AdminJWTSecret,
		DefaultOrgID:         cfg.DefaultOrgID,
		MetricsHandler:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		CORSAllowedOrigins:   cfg.CORSAllowedOrigins,
		RateLimitPerSecond:   cfg.RateLimitPerSecond,
		RateLimitBurst:       cfg.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
