package followup

import (
	"time"

	"github.com/mentorhub/crm-followup/internal/leads"
)

// Channel specifies how a follow-up notification is delivered.
type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelInApp    Channel = "in_app"
)

// LogStatus is the outcome recorded for a delivery attempt.
type LogStatus string

const (
	LogSent   LogStatus = "sent"
	LogFailed LogStatus = "failed"
)

// Settings holds the per-org follow-up configuration. One row per org,
// created lazily with defaults on first access.
type Settings struct {
	OrgID                  string         `json:"org_id"`
	DaysWithoutInteraction int            `json:"days_without_interaction"`
	WhatsAppEnabled        bool           `json:"whatsapp_enabled"`
	InAppEnabled           bool           `json:"in_app_enabled"`
	WhatsAppSubscriberID   string         `json:"whatsapp_subscriber_id"`
	EscalationEmail        string         `json:"escalation_email"`
	ClosedStatuses         []leads.Status `json:"closed_statuses"`
	CreatedAt              time.Time      `json:"created_at"`
	UpdatedAt              time.Time      `json:"updated_at"`
}

// DefaultSettings returns the configuration a new org starts with.
func DefaultSettings(orgID string) *Settings {
	return &Settings{
		OrgID:                  orgID,
		DaysWithoutInteraction: 7,
		WhatsAppEnabled:        true,
		InAppEnabled:           true,
		ClosedStatuses:         []leads.Status{leads.StatusWon, leads.StatusLost},
	}
}

// EnabledChannels lists the channels the org wants follow-ups delivered on,
// in a fixed order so per-lead log entries come out deterministically.
func (s *Settings) EnabledChannels() []Channel {
	var out []Channel
	if s.WhatsAppEnabled {
		out = append(out, ChannelWhatsApp)
	}
	if s.InAppEnabled {
		out = append(out, ChannelInApp)
	}
	return out
}

// IsClosed reports whether the org treats the given status as out of the
// follow-up pipeline.
func (s *Settings) IsClosed(status leads.Status) bool {
	for _, closed := range s.ClosedStatuses {
		if closed == status {
			return true
		}
	}
	return false
}

// Template is a parameterized follow-up message bound to a days-since window
// and optional status/product filters. Empty filters match everything.
type Template struct {
	ID           string              `json:"id"`
	OrgID        string              `json:"org_id"`
	Name         string              `json:"name"`
	Body         string              `json:"body"`
	MinDays      int                 `json:"min_days"`
	MaxDays      *int                `json:"max_days,omitempty"`
	Statuses     []leads.Status      `json:"statuses"`
	ProductTypes []leads.ProductType `json:"product_types"`
	Priority     int                 `json:"priority"`
	Active       bool                `json:"active"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// Matches reports whether the template applies to a lead in the given status,
// with the given product, at the given days since last activity. MaxDays nil
// means no upper bound; both window edges are inclusive.
func (t *Template) Matches(status leads.Status, product leads.ProductType, daysSince int) bool {
	if !t.Active {
		return false
	}
	if daysSince < t.MinDays {
		return false
	}
	if t.MaxDays != nil && daysSince > *t.MaxDays {
		return false
	}
	if len(t.Statuses) > 0 && !containsStatus(t.Statuses, status) {
		return false
	}
	if len(t.ProductTypes) > 0 && !containsProduct(t.ProductTypes, product) {
		return false
	}
	return true
}

// LogEntry is the append-only audit record of one delivery attempt.
type LogEntry struct {
	ID         string    `json:"id"`
	OrgID      string    `json:"org_id"`
	LeadID     string    `json:"lead_id"`
	TemplateID string    `json:"template_id"`
	Channel    Channel   `json:"channel"`
	Status     LogStatus `json:"status"`
	Message    string    `json:"message"`
	Error      string    `json:"error,omitempty"`
	SentAt     time.Time `json:"sent_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// Candidate is one (lead, template) pair the rule engine found due,
// with the message already rendered.
type Candidate struct {
	Lead      *leads.Lead `json:"lead"`
	Template  *Template   `json:"template"`
	Message   string      `json:"message"`
	DaysSince int         `json:"days_since"`
}

// Evaluation is the output of one rule-engine pass: the settings snapshot the
// decisions were made under plus the due candidates.
type Evaluation struct {
	OrgID      string      `json:"org_id"`
	Now        time.Time   `json:"now"`
	Settings   *Settings   `json:"settings"`
	Candidates []Candidate `json:"candidates"`
}

// Summary counts what a dispatch pass did.
type Summary struct {
	Evaluated int `json:"evaluated"`
	Deduped   int `json:"deduped"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Report holds the derived follow-up effectiveness metrics for a window.
// Never persisted; recomputed on demand.
type Report struct {
	From           time.Time      `json:"from"`
	To             time.Time      `json:"to"`
	FollowedUp     int            `json:"followed_up"`
	Responded      int            `json:"responded"`
	Converted      int            `json:"converted"`
	ResponseRate   float64        `json:"response_rate"`
	ConversionRate float64        `json:"conversion_rate"`
	ByChannel      map[string]int `json:"by_channel"`
	ByDay          map[string]int `json:"by_day"`
}

func containsStatus(list []leads.Status, s leads.Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsProduct(list []leads.ProductType, p leads.ProductType) bool {
	for _, v := range list {
		if v == p {
			return true
		}
	}
	return false
}
