package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mentorhub/crm-followup/internal/http/handlers"
	httpmiddleware "github.com/mentorhub/crm-followup/internal/http/middleware"
	"github.com/mentorhub/crm-followup/internal/leads"
	"github.com/mentorhub/crm-followup/internal/tenancy"
	"github.com/mentorhub/crm-followup/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger               *logging.Logger
	LeadsHandler         *leads.Handler
	NotificationsHandler *handlers.NotificationsHandler
	AdminFollowUp        *handlers.AdminFollowUpHandler
	AdminAuthSecret      string
	DefaultOrgID         string
	MetricsHandler       http.Handler
	CORSAllowedOrigins   []string
	RateLimitPerSecond   float64
	RateLimitBurst       int
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// Tenant-scoped API routes
	r.Route("/api", func(api chi.Router) {
		api.Use(tenancy.Middleware(cfg.DefaultOrgID))
		if cfg.RateLimitPerSecond > 0 {
			api.Use(httpmiddleware.RateLimit(cfg.RateLimitPerSecond, cfg.RateLimitBurst))
		}

		if cfg.LeadsHandler != nil {
			api.Route("/leads", func(r chi.Router) {
				r.Post("/", cfg.LeadsHandler.CreateLead)
				r.Get("/", cfg.LeadsHandler.ListLeads)
				r.Route("/{leadID}", func(r chi.Router) {
					r.Get("/", cfg.LeadsHandler.GetLead)
					r.Patch("/status", cfg.LeadsHandler.UpdateStatus)
					r.Post("/interactions", cfg.LeadsHandler.AddInteraction)
					r.Get("/interactions", cfg.LeadsHandler.ListInteractions)
				})
			})
		}

		if cfg.NotificationsHandler != nil {
			api.Route("/notifications", func(r chi.Router) {
				r.Get("/", cfg.NotificationsHandler.ListUnread)
				r.Post("/{notificationID}/read", cfg.NotificationsHandler.MarkRead)
			})
		}
	})

	// Admin routes (protected by JWT)
	if cfg.AdminFollowUp != nil && cfg.AdminAuthSecret != "" {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Use(tenancy.Middleware(cfg.DefaultOrgID))

			admin.Route("/followup", func(r chi.Router) {
				r.Get("/settings", cfg.AdminFollowUp.GetSettings)
				r.Put("/settings", cfg.AdminFollowUp.UpdateSettings)
				r.Get("/templates", cfg.AdminFollowUp.ListTemplates)
				r.Post("/templates", cfg.AdminFollowUp.CreateTemplate)
				r.Put("/templates/{templateID}", cfg.AdminFollowUp.UpdateTemplate)
				r.Delete("/templates/{templateID}", cfg.AdminFollowUp.DeleteTemplate)
				r.Post("/run", cfg.AdminFollowUp.RunNow)
				r.Get("/report", cfg.AdminFollowUp.GetReport)
			})
		})
	}

	return r
}
