package followup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentorhub/crm-followup/internal/leads"
	"github.com/mentorhub/crm-followup/pkg/logging"
)

type stubSettings struct {
	settings *Settings
	err      error
}

func (s *stubSettings) GetOrCreate(_ context.Context, _ string) (*Settings, error) {
	return s.settings, s.err
}

type stubTemplates struct {
	templates []*Template
	err       error
}

func (s *stubTemplates) ListActive(_ context.Context, _ string) ([]*Template, error) {
	return s.templates, s.err
}

type stubLeadSource struct {
	activity []leads.LeadActivity
	err      error
}

func (s *stubLeadSource) ListWithLastInteraction(_ context.Context, _ string) ([]leads.LeadActivity, error) {
	return s.activity, s.err
}

func intPtr(v int) *int { return &v }

func testLead(id string, status leads.Status, product leads.ProductType, createdAt time.Time) *leads.Lead {
	return &leads.Lead{
		ID:          id,
		OrgID:       "org-1",
		Name:        "Maria Silva",
		ProductType: product,
		Status:      status,
		CreatedAt:   createdAt,
	}
}

func anyTemplate(id string, priority int) *Template {
	return &Template{
		ID:       id,
		OrgID:    "org-1",
		Body:     "Oi {{nome}}",
		MinDays:  0,
		Priority: priority,
		Active:   true,
	}
}

func TestEvaluate_LeadBelowThresholdNotDue(t *testing.T) {
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	recent := now.AddDate(0, 0, -3)

	engine := NewEngine(
		&stubLeadSource{activity: []leads.LeadActivity{
			{Lead: testLead("lead-1", leads.StatusNew, leads.ProductMentoring, now.AddDate(0, 0, -30)), LastInteractionAt: &recent},
		}},
		&stubSettings{settings: DefaultSettings("org-1")},
		&stubTemplates{templates: []*Template{anyTemplate("tpl-1", 1)}},
		logging.Default(),
	)

	eval, err := engine.Evaluate(context.Background(), "org-1", now)
	require.NoError(t, err)
	assert.Empty(t, eval.Candidates)
}

func TestEvaluate_LeadWithNoInteractionsUsesCreation(t *testing.T) {
	// created 2024-01-01, no interactions, threshold 7, evaluated 2024-01-10:
	// 9 days elapsed, due
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	engine := NewEngine(
		&stubLeadSource{activity: []leads.LeadActivity{
			{Lead: testLead("lead-1", leads.StatusNew, leads.ProductMentoring, created)},
		}},
		&stubSettings{settings: DefaultSettings("org-1")},
		&stubTemplates{templates: []*Template{anyTemplate("tpl-1", 1)}},
		logging.Default(),
	)

	eval, err := engine.Evaluate(context.Background(), "org-1", now)
	require.NoError(t, err)
	require.Len(t, eval.Candidates, 1)
	assert.Equal(t, "lead-1", eval.Candidates[0].Lead.ID)
	assert.Equal(t, 9, eval.Candidates[0].DaysSince)
	assert.Equal(t, "Oi Maria", eval.Candidates[0].Message)
}

func TestEvaluate_ClosedStatusesExcluded(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := created.AddDate(0, 0, 30)

	engine := NewEngine(
		&stubLeadSource{activity: []leads.LeadActivity{
			{Lead: testLead("lead-won", leads.StatusWon, leads.ProductMentoring, created)},
			{Lead: testLead("lead-lost", leads.StatusLost, leads.ProductMentoring, created)},
			{Lead: testLead("lead-open", leads.StatusNegotiation, leads.ProductMentoring, created)},
		}},
		&stubSettings{settings: DefaultSettings("org-1")},
		&stubTemplates{templates: []*Template{anyTemplate("tpl-1", 1)}},
		logging.Default(),
	)

	eval, err := engine.Evaluate(context.Background(), "org-1", now)
	require.NoError(t, err)
	require.Len(t, eval.Candidates, 1)
	assert.Equal(t, "lead-open", eval.Candidates[0].Lead.ID)
}

func TestEvaluate_NoMatchingTemplateSkipsLead(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := created.AddDate(0, 0, 10)

	inactive := anyTemplate("tpl-1", 1)
	inactive.Active = false
	wrongProduct := anyTemplate("tpl-2", 2)
	wrongProduct.ProductTypes = []leads.ProductType{leads.ProductCourse}

	engine := NewEngine(
		&stubLeadSource{activity: []leads.LeadActivity{
			{Lead: testLead("lead-1", leads.StatusNew, leads.ProductMentoring, created)},
		}},
		&stubSettings{settings: DefaultSettings("org-1")},
		&stubTemplates{templates: []*Template{inactive, wrongProduct}},
		logging.Default(),
	)

	eval, err := engine.Evaluate(context.Background(), "org-1", now)
	require.NoError(t, err)
	assert.Empty(t, eval.Candidates)
}

func TestEvaluate_PriorityTieBreak(t *testing.T) {
	// template A: window 0-6 priority 1, template B: window 0-30 priority 2,
	// lead at 5 days due with threshold 5 -> A wins
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := created.AddDate(0, 0, 5)

	a := anyTemplate("tpl-a", 1)
	a.MaxDays = intPtr(6)
	b := anyTemplate("tpl-b", 2)
	b.MaxDays = intPtr(30)

	settings := DefaultSettings("org-1")
	settings.DaysWithoutInteraction = 5

	for range 10 { // deterministic under repeated runs
		engine := NewEngine(
			&stubLeadSource{activity: []leads.LeadActivity{
				{Lead: testLead("lead-1", leads.StatusNew, leads.ProductMentoring, created)},
			}},
			&stubSettings{settings: settings},
			&stubTemplates{templates: []*Template{b, a}},
			logging.Default(),
		)
		eval, err := engine.Evaluate(context.Background(), "org-1", now)
		require.NoError(t, err)
		require.Len(t, eval.Candidates, 1)
		assert.Equal(t, "tpl-a", eval.Candidates[0].Template.ID)
	}
}

func TestEvaluate_RecencyBreaksEqualPriority(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := created.AddDate(0, 0, 10)

	older := anyTemplate("tpl-old", 1)
	older.UpdatedAt = now.AddDate(0, 0, -5)
	newer := anyTemplate("tpl-new", 1)
	newer.UpdatedAt = now.AddDate(0, 0, -1)

	engine := NewEngine(
		&stubLeadSource{activity: []leads.LeadActivity{
			{Lead: testLead("lead-1", leads.StatusNew, leads.ProductMentoring, created)},
		}},
		&stubSettings{settings: DefaultSettings("org-1")},
		&stubTemplates{templates: []*Template{older, newer}},
		logging.Default(),
	)

	eval, err := engine.Evaluate(context.Background(), "org-1", now)
	require.NoError(t, err)
	require.Len(t, eval.Candidates, 1)
	assert.Equal(t, "tpl-new", eval.Candidates[0].Template.ID)
}

func TestEvaluate_WindowEdgesInclusive(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tpl := anyTemplate("tpl-1", 1)
	tpl.MinDays = 7
	tpl.MaxDays = intPtr(9)

	settings := DefaultSettings("org-1")
	settings.DaysWithoutInteraction = 7

	for _, tt := range []struct {
		days int
		due  bool
	}{
		{7, true},
		{9, true},
		{10, false},
	} {
		engine := NewEngine(
			&stubLeadSource{activity: []leads.LeadActivity{
				{Lead: testLead("lead-1", leads.StatusNew, leads.ProductMentoring, created)},
			}},
			&stubSettings{settings: settings},
			&stubTemplates{templates: []*Template{tpl}},
			logging.Default(),
		)
		eval, err := engine.Evaluate(context.Background(), "org-1", created.AddDate(0, 0, tt.days))
		require.NoError(t, err)
		if tt.due {
			assert.Len(t, eval.Candidates, 1, "days=%d", tt.days)
		} else {
			assert.Empty(t, eval.Candidates, "days=%d", tt.days)
		}
	}
}

func TestEvaluate_UnboundedMaxDays(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := created.AddDate(0, 0, 500)

	engine := NewEngine(
		&stubLeadSource{activity: []leads.LeadActivity{
			{Lead: testLead("lead-1", leads.StatusNew, leads.ProductMentoring, created)},
		}},
		&stubSettings{settings: DefaultSettings("org-1")},
		&stubTemplates{templates: []*Template{anyTemplate("tpl-1", 1)}},
		logging.Default(),
	)

	eval, err := engine.Evaluate(context.Background(), "org-1", now)
	require.NoError(t, err)
	assert.Len(t, eval.Candidates, 1)
}

func TestEvaluate_SettingsErrorAborts(t *testing.T) {
	engine := NewEngine(
		&stubLeadSource{},
		&stubSettings{err: errors.New("settings table gone")},
		&stubTemplates{},
		logging.Default(),
	)

	_, err := engine.Evaluate(context.Background(), "org-1", time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load settings")
}
