package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mentorhub/crm-followup/internal/app/bootstrap"
	"github.com/mentorhub/crm-followup/internal/channels/inapp"
	"github.com/mentorhub/crm-followup/internal/channels/whatsapp"
	appconfig "github.com/mentorhub/crm-followup/internal/config"
	"github.com/mentorhub/crm-followup/internal/followup"
	"github.com/mentorhub/crm-followup/internal/leads"
	"github.com/mentorhub/crm-followup/internal/notify"
	"github.com/mentorhub/crm-followup/internal/observability/metrics"
	workerfollowup "github.com/mentorhub/crm-followup/internal/worker/followup"
	"github.com/mentorhub/crm-followup/pkg/logging"
)

// The worker runs the follow-up cycle on a schedule, independent of the API
// server. Both binaries share the same wiring; the API exposes RunNow for
// on-demand cycles, this one owns the clock.
func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting crm-followup worker",
		"env", cfg.Env,
		"interval", cfg.FollowUpInterval.String(),
		"org_id", cfg.DefaultOrgID,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	leadsRepo := leads.NewPostgresRepository(pool)
	settingsStore := followup.NewSettingsStore(pool)
	templateStore := followup.NewTemplateStore(pool)
	logStore := followup.NewLogStore(pool)

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	senders := []followup.ChannelSender{inapp.NewSender(pool, redisClient, logger)}
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

	alerts := notify.NewService(bootstrap.BuildEmailSender(cfg, awsCfg, logger), settingsStore, logger)
	followUpMetrics := metrics.NewFollowUpMetrics(prometheus.NewRegistry())

	eng := followup.NewEngine(leadsRepo, settingsStore, templateStore, logger)
	disp := followup.NewDispatcher(logStore, senders, logger).
		WithMaxConcurrency(cfg.FollowUpMaxConcurrency).
		WithAlerter(alerts).
		WithMetrics(followUpMetrics)
	runner := workerfollowup.NewRunner(eng, disp, cfg.DefaultOrgID, logger).
		WithInterval(cfg.FollowUpInterval).
		WithRunTimeout(cfg.FollowUpRunTimeout).
		WithAlerter(alerts).
		WithMetrics(followUpMetrics)
	if cfg.ArchiveBucket != "" {
		archiver := followup.NewArchiver(s3.NewFromConfig(awsCfg), cfg.ArchiveBucket, logStore, logger)
		runner = runner.WithArchiver(archiver)
	}

	runner.Run(ctx)
	logger.Info("worker stopped")
}
