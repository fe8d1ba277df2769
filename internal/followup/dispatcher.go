package followup

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mentorhub/crm-followup/internal/leads"
	"github.com/mentorhub/crm-followup/pkg/logging"
)

var dispatchTracer = otel.Tracer("crm.internal.followup.dispatcher")

// ChannelSender delivers one follow-up message on a single channel. The
// dispatcher knows nothing about wire protocols; each channel brings its own
// implementation.
type ChannelSender interface {
	Channel() Channel
	Send(ctx context.Context, lead *leads.Lead, message string) error
}

// LogSink is the slice of the log store the dispatcher writes through.
type LogSink interface {
	Append(ctx context.Context, entry *LogEntry) error
	HasSentSince(ctx context.Context, orgID, leadID string, since time.Time) (bool, error)
}

// Alerter surfaces operator-visible failures. Optional; nil disables alerts.
type Alerter interface {
	AlertPersistenceFailure(ctx context.Context, orgID string, err error)
}

// MetricsSink receives per-attempt delivery counts. Optional; nil disables.
type MetricsSink interface {
	ObserveMessage(channel, status string)
}

// Dispatcher fans evaluation candidates out to the enabled channel senders,
// at most one successful send per lead per calendar day, and records every
// attempt in the append-only log.
type Dispatcher struct {
	logs           LogSink
	senders        map[Channel]ChannelSender
	alerter        Alerter
	metrics        MetricsSink
	logger         *logging.Logger
	maxConcurrency int
	logRetries     uint64
}

// NewDispatcher creates a dispatcher over the given channel senders.
func NewDispatcher(logs LogSink, senders []ChannelSender, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	byChannel := make(map[Channel]ChannelSender, len(senders))
	for _, s := range senders {
		byChannel[s.Channel()] = s
	}
	return &Dispatcher{
		logs:           logs,
		senders:        byChannel,
		logger:         logger,
		maxConcurrency: 4,
		logRetries:     3,
	}
}

// WithMaxConcurrency bounds how many leads are processed in parallel.
func (d *Dispatcher) WithMaxConcurrency(n int) *Dispatcher {
	if n > 0 {
		d.maxConcurrency = n
	}
	return d
}

// WithAlerter wires operator alerting for log-write failures.
func (d *Dispatcher) WithAlerter(a Alerter) *Dispatcher {
	d.alerter = a
	return d
}

// WithMetrics wires per-channel delivery counters.
func (d *Dispatcher) WithMetrics(m MetricsSink) *Dispatcher {
	d.metrics = m
	return d
}

// Dispatch processes every candidate of an evaluation. Each lead is
// independent: a failed send becomes a failed log row and the batch moves on.
// When ctx expires, leads not yet started are skipped; re-evaluation next
// cycle picks them up again.
func (d *Dispatcher) Dispatch(ctx context.Context, eval *Evaluation) *Summary {
	ctx, span := dispatchTracer.Start(ctx, "followup.dispatch")
	defer span.End()
	span.SetAttributes(
		attribute.String("crm.org_id", eval.OrgID),
		attribute.Int("crm.candidates", len(eval.Candidates)),
	)

	summary := &Summary{Evaluated: len(eval.Candidates)}
	dayStart := startOfDay(eval.Now)

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, d.maxConcurrency)

loop:
	for i := range eval.Candidates {
		if ctx.Err() != nil {
			mu.Lock()
			summary.Skipped += len(eval.Candidates) - i
			mu.Unlock()
			break
		}
		// Cancellation while waiting for a slot still counts the remainder
		// as skipped instead of letting them start on a dead ctx.
		select {
		case <-ctx.Done():
			mu.Lock()
			summary.Skipped += len(eval.Candidates) - i
			mu.Unlock()
			break loop
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(c Candidate) {
			defer wg.Done()
			defer func() { <-sem }()
			sent, failed, deduped := d.processLead(ctx, eval, c, dayStart)
			mu.Lock()
			summary.Sent += sent
			summary.Failed += failed
			if deduped {
				summary.Deduped++
			}
			mu.Unlock()
		}(eval.Candidates[i])
	}
	wg.Wait()

	d.logger.Info("followup: dispatch complete",
		"org_id", eval.OrgID,
		"evaluated", summary.Evaluated,
		"sent", summary.Sent,
		"failed", summary.Failed,
		"deduped", summary.Deduped,
		"skipped", summary.Skipped,
	)
	return summary
}

// processLead sends to every enabled channel for one lead. Send then log is
// causally ordered: a sent row is only written after the channel returned
// success. Returns (sent, failed, deduped) counts for the summary.
func (d *Dispatcher) processLead(ctx context.Context, eval *Evaluation, c Candidate, dayStart time.Time) (int, int, bool) {
	already, err := d.logs.HasSentSince(ctx, eval.OrgID, c.Lead.ID, dayStart)
	if err != nil {
		// Can't prove we haven't messaged this lead today; skip rather
		// than risk double outreach.
		d.logger.Error("followup: dedupe check failed, skipping lead",
			"error", err, "lead_id", c.Lead.ID)
		return 0, 0, false
	}
	if already {
		d.logger.Debug("followup: lead already contacted today", "lead_id", c.Lead.ID)
		return 0, 0, true
	}

	sent, failed := 0, 0
	for _, channel := range eval.Settings.EnabledChannels() {
		sender, ok := d.senders[channel]
		if !ok {
			d.logger.Warn("followup: no sender registered for channel", "channel", channel)
			continue
		}

		entry := &LogEntry{
			OrgID:      eval.OrgID,
			LeadID:     c.Lead.ID,
			TemplateID: c.Template.ID,
			Channel:    channel,
			Message:    c.Message,
			SentAt:     eval.Now.UTC(),
		}
		if err := sender.Send(ctx, c.Lead, c.Message); err != nil {
			entry.Status = LogFailed
			entry.Error = err.Error()
			failed++
			d.logger.Error("followup: send failed",
				"error", err, "lead_id", c.Lead.ID, "channel", channel)
		} else {
			entry.Status = LogSent
			sent++
		}
		if d.metrics != nil {
			d.metrics.ObserveMessage(string(channel), string(entry.Status))
		}
		d.appendWithRetry(ctx, eval.OrgID, entry)
	}
	return sent, failed, false
}

// appendWithRetry writes one log row, retrying transient store failures with
// exponential backoff. Losing an audit record is worse than a slow batch, so
// exhausting the retries raises an operator alert instead of failing silently.
func (d *Dispatcher) appendWithRetry(ctx context.Context, orgID string, entry *LogEntry) {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), d.logRetries), ctx)
	err := backoff.Retry(func() error {
		return d.logs.Append(ctx, entry)
	}, policy)
	if err == nil {
		return
	}
	d.logger.Error("followup: log write failed after retries",
		"error", err, "lead_id", entry.LeadID, "channel", entry.Channel)
	if d.alerter != nil {
		d.alerter.AlertPersistenceFailure(ctx, orgID, err)
	}
}

// startOfDay truncates to midnight UTC, the default dedupe window boundary.
func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
