package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mentorhub/crm-followup/internal/followup"
	"github.com/mentorhub/crm-followup/internal/leads"
	"github.com/mentorhub/crm-followup/internal/tenancy"
	"github.com/mentorhub/crm-followup/pkg/logging"
)

// SettingsStore is the slice of the settings store the handler needs.
type SettingsStore interface {
	GetOrCreate(ctx context.Context, orgID string) (*followup.Settings, error)
	Update(ctx context.Context, settings *followup.Settings) error
}

// TemplateStore is the slice of the template store the handler needs.
type TemplateStore interface {
	Create(ctx context.Context, t *followup.Template) error
	Update(ctx context.Context, t *followup.Template) error
	Delete(ctx context.Context, orgID, id string) error
	GetByID(ctx context.Context, orgID, id string) (*followup.Template, error)
	List(ctx context.Context, orgID string) ([]*followup.Template, error)
}

// FollowUpRunner triggers one evaluate+dispatch cycle outside the schedule.
type FollowUpRunner interface {
	RunOnce(ctx context.Context, orgID string) (*followup.Summary, error)
}

// Reporter computes follow-up effectiveness for a window.
type Reporter interface {
	Report(ctx context.Context, orgID string, from, to time.Time) (*followup.Report, error)
}

// AdminFollowUpHandler exposes follow-up configuration, on-demand runs, and
// the effectiveness report behind admin auth.
type AdminFollowUpHandler struct {
	settings  SettingsStore
	templates TemplateStore
	runner    FollowUpRunner
	reporter  Reporter
	logger    *logging.Logger
}

// NewAdminFollowUpHandler creates the admin follow-up handler.
func NewAdminFollowUpHandler(settings SettingsStore, templates TemplateStore, runner FollowUpRunner, reporter Reporter, logger *logging.Logger) *AdminFollowUpHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminFollowUpHandler{
		settings:  settings,
		templates: templates,
		runner:    runner,
		reporter:  reporter,
		logger:    logger,
	}
}

// SettingsRequest is the mutable part of the org's follow-up settings.
type SettingsRequest struct {
	DaysWithoutInteraction int      `json:"days_without_interaction"`
	WhatsAppEnabled        bool     `json:"whatsapp_enabled"`
	InAppEnabled           bool     `json:"in_app_enabled"`
	WhatsAppSubscriberID   string   `json:"whatsapp_subscriber_id"`
	EscalationEmail        string   `json:"escalation_email"`
	ClosedStatuses         []string `json:"closed_statuses"`
}

// GetSettings returns the org's settings, creating defaults on first access.
// GET /admin/followup/settings
func (h *AdminFollowUpHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r)
	if !ok {
		return
	}
	settings, err := h.settings.GetOrCreate(r.Context(), orgID)
	if err != nil {
		h.logger.Error("admin: get settings failed", "error", err, "org_id", orgID)
		http.Error(w, "failed to load settings", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// UpdateSettings replaces the org's settings.
// PUT /admin/followup/settings
func (h *AdminFollowUpHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r)
	if !ok {
		return
	}
	var req SettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.DaysWithoutInteraction < 1 {
		http.Error(w, "days_without_interaction must be at least 1", http.StatusBadRequest)
		return
	}
	closed := make([]leads.Status, 0, len(req.ClosedStatuses))
	for _, s := range req.ClosedStatuses {
		status := leads.Status(s)
		if !leads.ValidStatus(status) {
			http.Error(w, "unknown status "+s, http.StatusBadRequest)
			return
		}
		closed = append(closed, status)
	}

	settings, err := h.settings.GetOrCreate(r.Context(), orgID)
	if err != nil {
		h.logger.Error("admin: load settings failed", "error", err, "org_id", orgID)
		http.Error(w, "failed to load settings", http.StatusInternalServerError)
		return
	}
	settings.DaysWithoutInteraction = req.DaysWithoutInteraction
	settings.WhatsAppEnabled = req.WhatsAppEnabled
	settings.InAppEnabled = req.InAppEnabled
	settings.WhatsAppSubscriberID = req.WhatsAppSubscriberID
	settings.EscalationEmail = req.EscalationEmail
	if len(closed) > 0 {
		settings.ClosedStatuses = closed
	}

	if err := h.settings.Update(r.Context(), settings); err != nil {
		h.logger.Error("admin: update settings failed", "error", err, "org_id", orgID)
		http.Error(w, "failed to update settings", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// TemplateRequest is the payload for template create/update.
type TemplateRequest struct {
	Name         string   `json:"name"`
	Body         string   `json:"body"`
	MinDays      int      `json:"min_days"`
	MaxDays      *int     `json:"max_days"`
	Statuses     []string `json:"statuses"`
	ProductTypes []string `json:"product_types"`
	Priority     int      `json:"priority"`
	Active       bool     `json:"active"`
}

func (req *TemplateRequest) apply(t *followup.Template) error {
	if req.Name == "" {
		return errors.New("name is required")
	}
	if req.Body == "" {
		return errors.New("body is required")
	}
	if req.MinDays < 0 {
		return errors.New("min_days must not be negative")
	}
	if req.MaxDays != nil && *req.MaxDays < req.MinDays {
		return errors.New("max_days must not be below min_days")
	}
	t.Name = req.Name
	t.Body = req.Body
	t.MinDays = req.MinDays
	t.MaxDays = req.MaxDays
	t.Priority = req.Priority
	t.Active = req.Active
	t.Statuses = nil
	for _, s := range req.Statuses {
		status := leads.Status(s)
		if !leads.ValidStatus(status) {
			return errors.New("unknown status " + s)
		}
		t.Statuses = append(t.Statuses, status)
	}
	t.ProductTypes = nil
	for _, p := range req.ProductTypes {
		t.ProductTypes = append(t.ProductTypes, leads.ProductType(p))
	}
	return nil
}

// ListTemplates returns every template for the org, active or not.
// GET /admin/followup/templates
func (h *AdminFollowUpHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r)
	if !ok {
		return
	}
	templates, err := h.templates.List(r.Context(), orgID)
	if err != nil {
		h.logger.Error("admin: list templates failed", "error", err, "org_id", orgID)
		http.Error(w, "failed to list templates", http.StatusInternalServerError)
		return
	}
	if templates == nil {
		templates = []*followup.Template{}
	}
	writeJSON(w, http.StatusOK, templates)
}

// CreateTemplate adds a new message template.
// POST /admin/followup/templates
func (h *AdminFollowUpHandler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r)
	if !ok {
		return
	}
	var req TemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	template := &followup.Template{OrgID: orgID}
	if err := req.apply(template); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.templates.Create(r.Context(), template); err != nil {
		h.logger.Error("admin: create template failed", "error", err, "org_id", orgID)
		http.Error(w, "failed to create template", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, template)
}

// UpdateTemplate replaces a template's mutable fields.
// PUT /admin/followup/templates/{templateID}
func (h *AdminFollowUpHandler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "templateID")
	template, err := h.templates.GetByID(r.Context(), orgID, id)
	if err != nil {
		if errors.Is(err, followup.ErrTemplateNotFound) {
			http.Error(w, "template not found", http.StatusNotFound)
			return
		}
		h.logger.Error("admin: get template failed", "error", err, "org_id", orgID)
		http.Error(w, "failed to load template", http.StatusInternalServerError)
		return
	}
	var req TemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := req.apply(template); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.templates.Update(r.Context(), template); err != nil {
		h.logger.Error("admin: update template failed", "error", err, "org_id", orgID)
		http.Error(w, "failed to update template", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, template)
}

// DeleteTemplate removes a template.
// DELETE /admin/followup/templates/{templateID}
func (h *AdminFollowUpHandler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "templateID")
	if err := h.templates.Delete(r.Context(), orgID, id); err != nil {
		if errors.Is(err, followup.ErrTemplateNotFound) {
			http.Error(w, "template not found", http.StatusNotFound)
			return
		}
		h.logger.Error("admin: delete template failed", "error", err, "org_id", orgID)
		http.Error(w, "failed to delete template", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RunNow triggers one follow-up cycle for the org and returns its summary.
// POST /admin/followup/run
func (h *AdminFollowUpHandler) RunNow(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r)
	if !ok {
		return
	}
	summary, err := h.runner.RunOnce(r.Context(), orgID)
	if err != nil {
		h.logger.Error("admin: manual run failed", "error", err, "org_id", orgID)
		http.Error(w, "follow-up run failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// GetReport returns the effectiveness report for a trailing window.
// GET /admin/followup/report?days=N
func (h *AdminFollowUpHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r)
	if !ok {
		return
	}
	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 365 {
			http.Error(w, "days must be between 1 and 365", http.StatusBadRequest)
			return
		}
		days = parsed
	}
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -days)

	report, err := h.reporter.Report(r.Context(), orgID, from, to)
	if err != nil {
		h.logger.Error("admin: report failed", "error", err, "org_id", orgID)
		http.Error(w, "failed to compute report", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func requireOrg(w http.ResponseWriter, r *http.Request) (string, bool) {
	orgID, ok := tenancy.OrgIDFromContext(r.Context())
	if !ok || orgID == "" {
		http.Error(w, "missing org id", http.StatusBadRequest)
		return "", false
	}
	return orgID, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
