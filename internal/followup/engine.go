package followup

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mentorhub/crm-followup/internal/leads"
	"github.com/mentorhub/crm-followup/pkg/logging"
)

var engineTracer = otel.Tracer("crm.internal.followup.engine")

// LeadSource is the slice of the leads repository the engine reads.
type LeadSource interface {
	ListWithLastInteraction(ctx context.Context, orgID string) ([]leads.LeadActivity, error)
}

// SettingsSource loads the org's follow-up configuration.
type SettingsSource interface {
	GetOrCreate(ctx context.Context, orgID string) (*Settings, error)
}

// TemplateSource lists active templates in evaluation order.
type TemplateSource interface {
	ListActive(ctx context.Context, orgID string) ([]*Template, error)
}

// Engine decides which leads are due for a follow-up and which template each
// one gets. Evaluation is a pure pass over an in-memory snapshot; all I/O
// happens up front.
type Engine struct {
	leads     LeadSource
	settings  SettingsSource
	templates TemplateSource
	logger    *logging.Logger
}

// NewEngine creates a rule engine.
func NewEngine(leadSource LeadSource, settings SettingsSource, templates TemplateSource, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		leads:     leadSource,
		settings:  settings,
		templates: templates,
		logger:    logger,
	}
}

// Evaluate produces the candidates currently due for follow-up. A settings or
// store failure aborts the whole evaluation; a lead without a matching
// template is skipped silently.
func (e *Engine) Evaluate(ctx context.Context, orgID string, now time.Time) (*Evaluation, error) {
	ctx, span := engineTracer.Start(ctx, "followup.evaluate")
	defer span.End()
	span.SetAttributes(attribute.String("crm.org_id", orgID))

	settings, err := e.settings.GetOrCreate(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("followup: load settings: %w", err)
	}

	templates, err := e.templates.ListActive(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("followup: load templates: %w", err)
	}

	activity, err := e.leads.ListWithLastInteraction(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("followup: load leads: %w", err)
	}

	eval := &Evaluation{OrgID: orgID, Now: now, Settings: settings}
	for _, a := range activity {
		lead := a.Lead
		if settings.IsClosed(lead.Status) {
			continue
		}
		daysSince := wholeDays(a.LastActivity(), now)
		if daysSince < settings.DaysWithoutInteraction {
			continue
		}

		tpl := pickTemplate(templates, lead.Status, lead.ProductType, daysSince)
		if tpl == nil {
			e.logger.Debug("followup: due lead has no matching template",
				"lead_id", lead.ID, "days_since", daysSince)
			continue
		}

		eval.Candidates = append(eval.Candidates, Candidate{
			Lead:      lead,
			Template:  tpl,
			Message:   Render(tpl.Body, lead, daysSince),
			DaysSince: daysSince,
		})
	}

	span.SetAttributes(attribute.Int("crm.candidates", len(eval.Candidates)))
	e.logger.Info("followup: evaluation complete",
		"org_id", orgID, "leads", len(activity), "due", len(eval.Candidates))
	return eval, nil
}

// pickTemplate selects the single template for a due lead: lowest priority
// value wins, most recently updated breaks ties, id breaks any remainder so
// repeated runs over identical input always agree.
func pickTemplate(templates []*Template, status leads.Status, product leads.ProductType, daysSince int) *Template {
	var matches []*Template
	for _, t := range templates {
		if t.Matches(status, product, daysSince) {
			matches = append(matches, t)
		}
	}
	if len(matches) == 0 {
		return nil
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Priority != matches[j].Priority {
			return matches[i].Priority < matches[j].Priority
		}
		if !matches[i].UpdatedAt.Equal(matches[j].UpdatedAt) {
			return matches[i].UpdatedAt.After(matches[j].UpdatedAt)
		}
		return matches[i].ID < matches[j].ID
	})
	return matches[0]
}

// wholeDays counts full 24h periods between two instants, never negative.
func wholeDays(from, to time.Time) int {
	if to.Before(from) {
		return 0
	}
	return int(to.Sub(from).Hours() / 24)
}
