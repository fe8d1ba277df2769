package followup

import (
	"context"
	"fmt"
	"time"

	"github.com/mentorhub/crm-followup/internal/leads"
	"github.com/mentorhub/crm-followup/pkg/logging"
)

// SentLogSource is the slice of the log store the aggregator reads.
type SentLogSource interface {
	ListSentBetween(ctx context.Context, orgID string, from, to time.Time) ([]LogEntry, error)
}

// Aggregator derives response and conversion rates from the follow-up log,
// the interaction timeline, and the current lead statuses. Nothing is
// persisted; every call recomputes from the stores.
type Aggregator struct {
	logs   SentLogSource
	leads  LeadSource
	logger *logging.Logger
}

// NewAggregator creates a metrics aggregator.
func NewAggregator(logs SentLogSource, leadSource LeadSource, logger *logging.Logger) *Aggregator {
	if logger == nil {
		logger = logging.Default()
	}
	return &Aggregator{logs: logs, leads: leadSource, logger: logger}
}

// Report computes follow-up effectiveness for sends in [from, to).
//
// A lead counts as responded when any of its interactions is strictly later
// than any of its sent log timestamps in the window. A lead counts as
// converted when its current status is won, regardless of timing. Log rows
// whose lead no longer exists are excluded rather than failing the report.
func (a *Aggregator) Report(ctx context.Context, orgID string, from, to time.Time) (*Report, error) {
	sentLogs, err := a.logs.ListSentBetween(ctx, orgID, from, to)
	if err != nil {
		return nil, fmt.Errorf("followup: report logs: %w", err)
	}

	activity, err := a.leads.ListWithLastInteraction(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("followup: report leads: %w", err)
	}
	byLead := make(map[string]leads.LeadActivity, len(activity))
	for _, act := range activity {
		byLead[act.Lead.ID] = act
	}

	report := &Report{
		From:      from,
		To:        to,
		ByChannel: make(map[string]int),
		ByDay:     make(map[string]int),
	}

	// earliest sent timestamp per lead in the window; any interaction after
	// it means the lead responded to something
	firstSent := make(map[string]time.Time)
	dangling := 0
	for _, entry := range sentLogs {
		report.ByChannel[string(entry.Channel)]++
		report.ByDay[entry.SentAt.UTC().Format(time.DateOnly)]++

		if _, ok := byLead[entry.LeadID]; !ok {
			dangling++
			continue
		}
		if ts, ok := firstSent[entry.LeadID]; !ok || entry.SentAt.Before(ts) {
			firstSent[entry.LeadID] = entry.SentAt
		}
	}
	if dangling > 0 {
		a.logger.Warn("followup: report skipped logs for missing leads",
			"org_id", orgID, "count", dangling)
	}

	for leadID, sentAt := range firstSent {
		report.FollowedUp++
		act := byLead[leadID]
		if act.LastInteractionAt != nil && act.LastInteractionAt.After(sentAt) {
			report.Responded++
		}
		if act.Lead.Status == leads.StatusWon {
			report.Converted++
		}
	}

	if report.FollowedUp > 0 {
		report.ResponseRate = float64(report.Responded) / float64(report.FollowedUp)
		report.ConversionRate = float64(report.Converted) / float64(report.FollowedUp)
	}
	return report, nil
}
