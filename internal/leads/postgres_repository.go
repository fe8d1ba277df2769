package leads

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores leads and interactions in the relational database.
type PostgresRepository struct {
	db DB
}

// NewPostgresRepository initializes a repo backed by a pgx pool or tx.
func NewPostgresRepository(db DB) *PostgresRepository {
	if db == nil {
		panic("leads: db required")
	}
	return &PostgresRepository{db: db}
}

// Create inserts a new lead row.
func (r *PostgresRepository) Create(ctx context.Context, req *CreateLeadRequest) (*Lead, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	id := uuid.New()
	query := `
		INSERT INTO leads (id, org_id, name, email, phone, product_type, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`
	var createdAt, updatedAt time.Time
	if err := r.db.QueryRow(ctx, query,
		id,
		req.OrgID,
		req.Name,
		req.Email,
		req.Phone,
		string(req.ProductType),
		string(StatusNew),
		req.Notes,
	).Scan(&createdAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("leads: insert failed: %w", err)
	}

	return &Lead{
		ID:          id.String(),
		OrgID:       req.OrgID,
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		ProductType: req.ProductType,
		Status:      StatusNew,
		Notes:       req.Notes,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}, nil
}

// GetByID fetches a lead scoped to the org.
func (r *PostgresRepository) GetByID(ctx context.Context, orgID, id string) (*Lead, error) {
	query := `
		SELECT id, org_id, name, email, phone, product_type, status, notes, created_at, updated_at
		FROM leads
		WHERE id = $1 AND org_id = $2
	`
	lead, err := scanLead(r.db.QueryRow(ctx, query, id, orgID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("leads: select failed: %w", err)
	}
	return lead, nil
}

// ListByOrg lists leads for an org, newest first.
func (r *PostgresRepository) ListByOrg(ctx context.Context, orgID string, filter ListLeadsFilter) ([]*Lead, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	var rows pgx.Rows
	var err error
	if filter.Status != "" {
		rows, err = r.db.Query(ctx, `
			SELECT id, org_id, name, email, phone, product_type, status, notes, created_at, updated_at
			FROM leads
			WHERE org_id = $1 AND status = $2
			ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
			orgID, string(filter.Status), limit, filter.Offset)
	} else {
		rows, err = r.db.Query(ctx, `
			SELECT id, org_id, name, email, phone, product_type, status, notes, created_at, updated_at
			FROM leads
			WHERE org_id = $1
			ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
			orgID, limit, filter.Offset)
	}
	if err != nil {
		return nil, fmt.Errorf("leads: list failed: %w", err)
	}
	defer rows.Close()

	var result []*Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("leads: scan failed: %w", err)
		}
		result = append(result, lead)
	}
	return result, rows.Err()
}

// UpdateStatus sets a lead's pipeline status. No transition guard is applied.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, orgID, id string, status Status) (*Lead, error) {
	if !ValidStatus(status) {
		return nil, ErrInvalidStatus
	}
	query := `
		UPDATE leads SET status = $1, updated_at = now()
		WHERE id = $2 AND org_id = $3
		RETURNING id, org_id, name, email, phone, product_type, status, notes, created_at, updated_at
	`
	lead, err := scanLead(r.db.QueryRow(ctx, query, string(status), id, orgID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("leads: update status failed: %w", err)
	}
	return lead, nil
}

// AddInteraction appends an interaction row. Interactions are never updated.
func (r *PostgresRepository) AddInteraction(ctx context.Context, req *CreateInteractionRequest) (*Interaction, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	id := uuid.New()
	occurredAt := time.Now().UTC()
	if req.OccurredAt != nil {
		occurredAt = req.OccurredAt.UTC()
	}
	query := `
		INSERT INTO interactions (id, lead_id, org_id, channel, description, occurred_at)
		SELECT $1, l.id, l.org_id, $4, $5, $6
		FROM leads l WHERE l.id = $2 AND l.org_id = $3
		RETURNING created_at
	`
	var createdAt time.Time
	if err := r.db.QueryRow(ctx, query,
		id, req.LeadID, req.OrgID, string(req.Channel), req.Description, occurredAt,
	).Scan(&createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("leads: insert interaction failed: %w", err)
	}

	return &Interaction{
		ID:          id.String(),
		LeadID:      req.LeadID,
		OrgID:       req.OrgID,
		Channel:     req.Channel,
		Description: req.Description,
		OccurredAt:  occurredAt,
		CreatedAt:   createdAt,
	}, nil
}

// ListInteractions returns a lead's interactions, oldest first.
func (r *PostgresRepository) ListInteractions(ctx context.Context, orgID, leadID string) ([]*Interaction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, lead_id, org_id, channel, description, occurred_at, created_at
		FROM interactions
		WHERE lead_id = $1 AND org_id = $2
		ORDER BY occurred_at ASC`, leadID, orgID)
	if err != nil {
		return nil, fmt.Errorf("leads: list interactions failed: %w", err)
	}
	defer rows.Close()

	var result []*Interaction
	for rows.Next() {
		var it Interaction
		var channel string
		if err := rows.Scan(&it.ID, &it.LeadID, &it.OrgID, &channel, &it.Description, &it.OccurredAt, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("leads: scan interaction failed: %w", err)
		}
		it.Channel = InteractionChannel(channel)
		result = append(result, &it)
	}
	return result, rows.Err()
}

// ListWithLastInteraction returns every lead of the org joined with its latest
// interaction timestamp. Leads without interactions come back with a nil
// timestamp so the engine falls back to the creation time.
func (r *PostgresRepository) ListWithLastInteraction(ctx context.Context, orgID string) ([]LeadActivity, error) {
	rows, err := r.db.Query(ctx, `
		SELECT l.id, l.org_id, l.name, l.email, l.phone, l.product_type, l.status, l.notes,
		       l.created_at, l.updated_at, MAX(i.occurred_at)
		FROM leads l
		LEFT JOIN interactions i ON i.lead_id = l.id
		WHERE l.org_id = $1
		GROUP BY l.id
		ORDER BY l.created_at ASC`, orgID)
	if err != nil {
		return nil, fmt.Errorf("leads: list activity failed: %w", err)
	}
	defer rows.Close()

	var result []LeadActivity
	for rows.Next() {
		var lead Lead
		var product, status string
		var last *time.Time
		if err := rows.Scan(
			&lead.ID, &lead.OrgID, &lead.Name, &lead.Email, &lead.Phone,
			&product, &status, &lead.Notes,
			&lead.CreatedAt, &lead.UpdatedAt, &last,
		); err != nil {
			return nil, fmt.Errorf("leads: scan activity failed: %w", err)
		}
		lead.ProductType = ProductType(product)
		lead.Status = Status(status)
		result = append(result, LeadActivity{Lead: &lead, LastInteractionAt: last})
	}
	return result, rows.Err()
}

func scanLead(row pgx.Row) (*Lead, error) {
	var lead Lead
	var product, status string
	if err := row.Scan(
		&lead.ID, &lead.OrgID, &lead.Name, &lead.Email, &lead.Phone,
		&product, &status, &lead.Notes, &lead.CreatedAt, &lead.UpdatedAt,
	); err != nil {
		return nil, err
	}
	lead.ProductType = ProductType(product)
	lead.Status = Status(status)
	return &lead, nil
}

var _ Repository = (*PostgresRepository)(nil)
