package followupworker

import (
	"context"
	"fmt"
	"time"

	"github.com/mentorhub/crm-followup/internal/followup"
	"github.com/mentorhub/crm-followup/pkg/logging"
)

type engine interface {
	Evaluate(ctx context.Context, orgID string, now time.Time) (*followup.Evaluation, error)
}

type dispatcher interface {
	Dispatch(ctx context.Context, eval *followup.Evaluation) *followup.Summary
}

type archiver interface {
	Enabled() bool
	ArchiveDay(ctx context.Context, orgID string, day time.Time) error
}

type batchAlerter interface {
	AlertBatchFailure(ctx context.Context, orgID string, runErr error) error
}

type runMetrics interface {
	ObserveRun(status string, seconds float64)
	AddDeduped(n int)
}

// Runner drives the scheduled follow-up cycle for one org: evaluate the due
// list, dispatch it, archive the day's log. A failed cycle alerts the
// operator and waits for the next tick; it never stops the loop.
type Runner struct {
	engine     engine
	dispatcher dispatcher
	archiver   archiver
	alerter    batchAlerter
	metrics    runMetrics
	logger     *logging.Logger
	orgID      string
	interval   time.Duration
	runTimeout time.Duration
	now        func() time.Time
}

// NewRunner creates a follow-up cycle runner for one org.
func NewRunner(eng engine, disp dispatcher, orgID string, logger *logging.Logger) *Runner {
	if logger == nil {
		logger = logging.Default()
	}
	return &Runner{
		engine:     eng,
		dispatcher: disp,
		logger:     logger,
		orgID:      orgID,
		interval:   24 * time.Hour,
		runTimeout: 10 * time.Minute,
		now:        time.Now,
	}
}

func (r *Runner) WithInterval(d time.Duration) *Runner {
	if d > 0 {
		r.interval = d
	}
	return r
}

func (r *Runner) WithRunTimeout(d time.Duration) *Runner {
	if d > 0 {
		r.runTimeout = d
	}
	return r
}

func (r *Runner) WithArchiver(a archiver) *Runner {
	r.archiver = a
	return r
}

func (r *Runner) WithAlerter(a batchAlerter) *Runner {
	r.alerter = a
	return r
}

func (r *Runner) WithMetrics(m runMetrics) *Runner {
	r.metrics = m
	return r
}

// Run executes one cycle immediately, then one per interval until ctx ends.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	r.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.cycle(ctx)
		}
	}
}

func (r *Runner) cycle(ctx context.Context) {
	if _, err := r.RunOnce(ctx, r.orgID); err != nil {
		r.logger.Error("followup worker: cycle failed", "error", err, "org_id", r.orgID)
	}
}

// RunOnce evaluates and dispatches a single cycle under the run timeout. The
// admin run endpoint shares this path with the scheduler.
func (r *Runner) RunOnce(ctx context.Context, orgID string) (*followup.Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, r.runTimeout)
	defer cancel()

	start := r.now()
	eval, err := r.engine.Evaluate(ctx, orgID, start)
	if err != nil {
		if r.metrics != nil {
			r.metrics.ObserveRun("error", time.Since(start).Seconds())
		}
		if r.alerter != nil {
			if alertErr := r.alerter.AlertBatchFailure(ctx, orgID, err); alertErr != nil {
				r.logger.Error("followup worker: escalation failed", "error", alertErr, "org_id", orgID)
			}
		}
		return nil, fmt.Errorf("followup worker: evaluate: %w", err)
	}

	summary := r.dispatcher.Dispatch(ctx, eval)
	if r.metrics != nil {
		r.metrics.ObserveRun("ok", time.Since(start).Seconds())
		r.metrics.AddDeduped(summary.Deduped)
	}
	r.logger.Info("followup worker: cycle complete",
		"org_id", orgID,
		"evaluated", summary.Evaluated,
		"sent", summary.Sent,
		"failed", summary.Failed,
	)

	if r.archiver != nil && r.archiver.Enabled() {
		if err := r.archiver.ArchiveDay(ctx, orgID, start); err != nil {
			// the log rows stay in postgres; tomorrow's export retries
			r.logger.Error("followup worker: archive failed", "error", err, "org_id", orgID)
		}
	}
	return summary, nil
}
