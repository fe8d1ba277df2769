package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mentorhub/crm-followup/internal/channels/inapp"
	"github.com/mentorhub/crm-followup/pkg/logging"
)

// NotificationStore is the slice of the in-app sender the feed endpoints use.
type NotificationStore interface {
	ListUnread(ctx context.Context, orgID string, limit int) ([]inapp.Notification, error)
	MarkRead(ctx context.Context, orgID, id string) error
}

// NotificationsHandler serves the in-app follow-up feed.
type NotificationsHandler struct {
	store  NotificationStore
	logger *logging.Logger
}

// NewNotificationsHandler creates the feed handler.
func NewNotificationsHandler(store NotificationStore, logger *logging.Logger) *NotificationsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &NotificationsHandler{store: store, logger: logger}
}

// ListUnread returns the org's unread notifications, newest first.
// GET /api/notifications?limit=N
func (h *NotificationsHandler) ListUnread(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r)
	if !ok {
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}
	list, err := h.store.ListUnread(r.Context(), orgID, limit)
	if err != nil {
		h.logger.Error("notifications: list failed", "error", err, "org_id", orgID)
		http.Error(w, "failed to list notifications", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []inapp.Notification{}
	}
	writeJSON(w, http.StatusOK, list)
}

// MarkRead flags one notification as seen.
// POST /api/notifications/{notificationID}/read
func (h *NotificationsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "notificationID")
	if err := h.store.MarkRead(r.Context(), orgID, id); err != nil {
		http.Error(w, "notification not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
