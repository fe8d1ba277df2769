package followup

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// LogStore writes and reads the append-only follow_up_logs table. Rows are
// never updated or deleted; they are the ground truth for deduplication and
// metrics.
type LogStore struct {
	db DB
}

// NewLogStore creates a log store.
func NewLogStore(db DB) *LogStore {
	return &LogStore{db: db}
}

// Append inserts one audit record.
func (s *LogStore) Append(ctx context.Context, entry *LogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.SentAt.IsZero() {
		entry.SentAt = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO follow_up_logs (id, org_id, lead_id, template_id, channel, status, message, error, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID, entry.OrgID, entry.LeadID, entry.TemplateID,
		string(entry.Channel), string(entry.Status), entry.Message, entry.Error, entry.SentAt,
	)
	if err != nil {
		return fmt.Errorf("followup: append log: %w", err)
	}
	return nil
}

// HasSentSince reports whether a successful send was already logged for the
// lead at or after the given time. The dispatcher uses this with the start of
// the current calendar day to enforce at most one send per lead per day.
func (s *LogStore) HasSentSince(ctx context.Context, orgID, leadID string, since time.Time) (bool, error) {
	row := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM follow_up_logs
			WHERE org_id = $1 AND lead_id = $2 AND status = 'sent' AND sent_at >= $3
		)`, orgID, leadID, since)
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("followup: dedupe check: %w", err)
	}
	return exists, nil
}

// ListSentBetween returns all successful sends in [from, to), oldest first.
func (s *LogStore) ListSentBetween(ctx context.Context, orgID string, from, to time.Time) ([]LogEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, org_id, lead_id, template_id, channel, status, message, COALESCE(error, ''), sent_at, created_at
		FROM follow_up_logs
		WHERE org_id = $1 AND status = 'sent' AND sent_at >= $2 AND sent_at < $3
		ORDER BY sent_at ASC`, orgID, from, to)
	if err != nil {
		return nil, fmt.Errorf("followup: list sent logs: %w", err)
	}
	defer rows.Close()
	return scanLogs(rows)
}

// ListBetween returns every log entry in [from, to), regardless of status.
func (s *LogStore) ListBetween(ctx context.Context, orgID string, from, to time.Time) ([]LogEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, org_id, lead_id, template_id, channel, status, message, COALESCE(error, ''), sent_at, created_at
		FROM follow_up_logs
		WHERE org_id = $1 AND sent_at >= $2 AND sent_at < $3
		ORDER BY sent_at ASC`, orgID, from, to)
	if err != nil {
		return nil, fmt.Errorf("followup: list logs: %w", err)
	}
	defer rows.Close()
	return scanLogs(rows)
}

func scanLogs(rows pgx.Rows) ([]LogEntry, error) {
	var result []LogEntry
	for rows.Next() {
		var e LogEntry
		var channel, status string
		err := rows.Scan(
			&e.ID, &e.OrgID, &e.LeadID, &e.TemplateID,
			&channel, &status, &e.Message, &e.Error, &e.SentAt, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("followup: scan log: %w", err)
		}
		e.Channel = Channel(channel)
		e.Status = LogStatus(status)
		result = append(result, e)
	}
	return result, rows.Err()
}
