package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("FOLLOWUP_INTERVAL", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.FollowUpInterval != 24*time.Hour {
		t.Fatalf("expected default follow-up interval, got %s", cfg.FollowUpInterval)
	}
	if cfg.FollowUpMaxConcurrency != 4 {
		t.Fatalf("expected default concurrency, got %d", cfg.FollowUpMaxConcurrency)
	}
	if cfg.ArchiveBucket != "" {
		t.Fatalf("expected archive bucket empty by default, got %s", cfg.ArchiveBucket)
	}
	if cfg.EmailProvider != "auto" {
		t.Fatalf("expected email provider auto, got %s", cfg.EmailProvider)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("FOLLOWUP_INTERVAL", "1h")
	t.Setenv("FOLLOWUP_RUN_TIMEOUT", "30s")
	t.Setenv("FOLLOWUP_MAX_CONCURRENCY", "8")
	t.Setenv("WHATSAPP_BASE_URL", "https://gateway.example.com")
	t.Setenv("EMAIL_PROVIDER", "SendGrid")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com, https://admin.example.com")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("expected db override, got %s", cfg.DatabaseURL)
	}
	if cfg.FollowUpInterval != time.Hour {
		t.Fatalf("expected interval override, got %s", cfg.FollowUpInterval)
	}
	if cfg.FollowUpRunTimeout != 30*time.Second {
		t.Fatalf("expected run timeout override, got %s", cfg.FollowUpRunTimeout)
	}
	if cfg.FollowUpMaxConcurrency != 8 {
		t.Fatalf("expected concurrency override, got %d", cfg.FollowUpMaxConcurrency)
	}
	if cfg.WhatsAppBaseURL != "https://gateway.example.com" {
		t.Fatalf("expected whatsapp base url override, got %s", cfg.WhatsAppBaseURL)
	}
	if cfg.EmailProvider != "sendgrid" {
		t.Fatalf("expected email provider normalized, got %s", cfg.EmailProvider)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://admin.example.com" {
		t.Fatalf("expected cors origins parsed, got %v", cfg.CORSAllowedOrigins)
	}
}
