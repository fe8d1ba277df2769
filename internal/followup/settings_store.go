package followup

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/mentorhub/crm-followup/internal/leads"
)

// SettingsStore provides access to the per-org follow-up settings row.
type SettingsStore struct {
	db DB
}

// NewSettingsStore creates a settings store.
func NewSettingsStore(db DB) *SettingsStore {
	return &SettingsStore{db: db}
}

const settingsColumns = `org_id, days_without_interaction, whatsapp_enabled, in_app_enabled,
	whatsapp_subscriber_id, escalation_email, closed_statuses, created_at, updated_at`

// GetOrCreate returns the org's settings, inserting the defaults on first
// access so every org always has exactly one row.
func (s *SettingsStore) GetOrCreate(ctx context.Context, orgID string) (*Settings, error) {
	settings, err := s.get(ctx, orgID)
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("followup: get settings: %w", err)
	}

	defaults := DefaultSettings(orgID)
	_, err = s.db.Exec(ctx, `
		INSERT INTO follow_up_settings (org_id, days_without_interaction, whatsapp_enabled, in_app_enabled, whatsapp_subscriber_id, escalation_email, closed_statuses)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (org_id) DO NOTHING`,
		orgID, defaults.DaysWithoutInteraction, defaults.WhatsAppEnabled, defaults.InAppEnabled,
		defaults.WhatsAppSubscriberID, defaults.EscalationEmail, statusesToStrings(defaults.ClosedStatuses),
	)
	if err != nil {
		return nil, fmt.Errorf("followup: create default settings: %w", err)
	}

	settings, err = s.get(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("followup: reload settings: %w", err)
	}
	return settings, nil
}

// Update replaces the org's settings row.
func (s *SettingsStore) Update(ctx context.Context, settings *Settings) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE follow_up_settings
		SET days_without_interaction = $2, whatsapp_enabled = $3, in_app_enabled = $4,
		    whatsapp_subscriber_id = $5, escalation_email = $6, closed_statuses = $7, updated_at = now()
		WHERE org_id = $1`,
		settings.OrgID, settings.DaysWithoutInteraction, settings.WhatsAppEnabled, settings.InAppEnabled,
		settings.WhatsAppSubscriberID, settings.EscalationEmail, statusesToStrings(settings.ClosedStatuses),
	)
	if err != nil {
		return fmt.Errorf("followup: update settings: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("followup: update settings: no row for org %s", settings.OrgID)
	}
	return nil
}

func (s *SettingsStore) get(ctx context.Context, orgID string) (*Settings, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+settingsColumns+`
		FROM follow_up_settings
		WHERE org_id = $1`, orgID)

	var settings Settings
	var closed []string
	err := row.Scan(
		&settings.OrgID, &settings.DaysWithoutInteraction, &settings.WhatsAppEnabled, &settings.InAppEnabled,
		&settings.WhatsAppSubscriberID, &settings.EscalationEmail, &closed,
		&settings.CreatedAt, &settings.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	settings.ClosedStatuses = stringsToStatuses(closed)
	return &settings, nil
}

func statusesToStrings(in []leads.Status) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}

func stringsToStatuses(in []string) []leads.Status {
	out := make([]leads.Status, len(in))
	for i, s := range in {
		out[i] = leads.Status(s)
	}
	return out
}
