package inapp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"

	"github.com/mentorhub/crm-followup/internal/followup"
	"github.com/mentorhub/crm-followup/internal/leads"
	"github.com/mentorhub/crm-followup/pkg/logging"
)

// DB is the subset of pgxpool.Pool the sender needs.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Notification is one in-app feed item.
type Notification struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"org_id"`
	LeadID    string    `json:"lead_id"`
	LeadName  string    `json:"lead_name"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// Sender stores a notification row and, when Redis is wired, publishes the
// payload so the web app's live feed picks it up without polling. The row is
// the source of truth; a failed publish only costs liveness.
type Sender struct {
	db     DB
	redis  *redis.Client
	logger *logging.Logger
}

var _ followup.ChannelSender = (*Sender)(nil)

// NewSender creates an in-app notification sender. redisClient may be nil.
func NewSender(db DB, redisClient *redis.Client, logger *logging.Logger) *Sender {
	if logger == nil {
		logger = logging.Default()
	}
	return &Sender{db: db, redis: redisClient, logger: logger}
}

// Channel identifies this sender to the dispatcher.
func (s *Sender) Channel() followup.Channel { return followup.ChannelInApp }

// FeedChannel is the Redis pub/sub channel for an org's live feed.
func FeedChannel(orgID string) string {
	return "notifications:" + orgID
}

// Send persists one notification and announces it on the org's feed channel.
func (s *Sender) Send(ctx context.Context, lead *leads.Lead, message string) error {
	n := Notification{
		ID:        uuid.New().String(),
		OrgID:     lead.OrgID,
		LeadID:    lead.ID,
		LeadName:  lead.Name,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO notifications (id, org_id, lead_id, lead_name, message, read, created_at)
		VALUES ($1, $2, $3, $4, $5, false, $6)`,
		n.ID, n.OrgID, n.LeadID, n.LeadName, n.Message, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inapp: insert notification: %w", err)
	}

	if s.redis == nil {
		return nil
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("inapp: marshal notification: %w", err)
	}
	if err := s.redis.Publish(ctx, FeedChannel(lead.OrgID), payload).Err(); err != nil {
		// row is already durable; the feed catches up on next page load
		s.logger.Warn("inapp: feed publish failed", "error", err, "org_id", lead.OrgID)
	}
	return nil
}

// ListUnread returns the org's unread notifications, newest first.
func (s *Sender) ListUnread(ctx context.Context, orgID string, limit int) ([]Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, org_id, lead_id, lead_name, message, read, created_at
		FROM notifications
		WHERE org_id = $1 AND read = false
		ORDER BY created_at DESC
		LIMIT $2`, orgID, limit)
	if err != nil {
		return nil, fmt.Errorf("inapp: list unread: %w", err)
	}
	defer rows.Close()

	var result []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.OrgID, &n.LeadID, &n.LeadName, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("inapp: scan notification: %w", err)
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

// MarkRead flags one notification as seen.
func (s *Sender) MarkRead(ctx context.Context, orgID, id string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE notifications SET read = true WHERE id = $1 AND org_id = $2`, id, orgID)
	if err != nil {
		return fmt.Errorf("inapp: mark read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("inapp: notification %s not found", id)
	}
	return nil
}
