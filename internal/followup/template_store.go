package followup

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mentorhub/crm-followup/internal/leads"
)

// ErrTemplateNotFound is returned when a template does not exist for the org.
var ErrTemplateNotFound = errors.New("followup: template not found")

// TemplateStore provides CRUD operations for follow_up_templates.
type TemplateStore struct {
	db DB
}

// NewTemplateStore creates a template store.
func NewTemplateStore(db DB) *TemplateStore {
	return &TemplateStore{db: db}
}

const templateColumns = `id, org_id, name, body, min_days, max_days, statuses, product_types,
	priority, active, created_at, updated_at`

// Create inserts a new template.
func (s *TemplateStore) Create(ctx context.Context, t *Template) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO follow_up_templates (id, org_id, name, body, min_days, max_days, statuses, product_types, priority, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`,
		t.ID, t.OrgID, t.Name, t.Body, t.MinDays, t.MaxDays,
		statusesToStrings(t.Statuses), productsToStrings(t.ProductTypes), t.Priority, t.Active,
	)
	if err := row.Scan(&t.CreatedAt, &t.UpdatedAt); err != nil {
		return fmt.Errorf("followup: create template: %w", err)
	}
	return nil
}

// Update replaces a template's mutable fields.
func (s *TemplateStore) Update(ctx context.Context, t *Template) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE follow_up_templates
		SET name = $3, body = $4, min_days = $5, max_days = $6, statuses = $7,
		    product_types = $8, priority = $9, active = $10, updated_at = now()
		WHERE id = $1 AND org_id = $2`,
		t.ID, t.OrgID, t.Name, t.Body, t.MinDays, t.MaxDays,
		statusesToStrings(t.Statuses), productsToStrings(t.ProductTypes), t.Priority, t.Active,
	)
	if err != nil {
		return fmt.Errorf("followup: update template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTemplateNotFound
	}
	return nil
}

// Delete removes a template.
func (s *TemplateStore) Delete(ctx context.Context, orgID, id string) error {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM follow_up_templates WHERE id = $1 AND org_id = $2`, id, orgID)
	if err != nil {
		return fmt.Errorf("followup: delete template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTemplateNotFound
	}
	return nil
}

// GetByID fetches a single template scoped to the org.
func (s *TemplateStore) GetByID(ctx context.Context, orgID, id string) (*Template, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+templateColumns+`
		FROM follow_up_templates
		WHERE id = $1 AND org_id = $2`, id, orgID)
	t, err := scanTemplateRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("followup: get template: %w", err)
	}
	return t, nil
}

// List returns all templates for an org, active or not, in evaluation order.
func (s *TemplateStore) List(ctx context.Context, orgID string) ([]*Template, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+templateColumns+`
		FROM follow_up_templates
		WHERE org_id = $1
		ORDER BY priority ASC, updated_at DESC, id ASC`, orgID)
	if err != nil {
		return nil, fmt.Errorf("followup: list templates: %w", err)
	}
	defer rows.Close()
	return scanTemplates(rows)
}

// ListActive returns the active templates for an org in evaluation order:
// priority ascending, then most recently updated. The engine relies on this
// ordering to pick a single template deterministically.
func (s *TemplateStore) ListActive(ctx context.Context, orgID string) ([]*Template, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+templateColumns+`
		FROM follow_up_templates
		WHERE org_id = $1 AND active = true
		ORDER BY priority ASC, updated_at DESC, id ASC`, orgID)
	if err != nil {
		return nil, fmt.Errorf("followup: list active templates: %w", err)
	}
	defer rows.Close()
	return scanTemplates(rows)
}

func scanTemplates(rows pgx.Rows) ([]*Template, error) {
	var result []*Template
	for rows.Next() {
		t, err := scanTemplateRow(rows)
		if err != nil {
			return nil, fmt.Errorf("followup: scan template: %w", err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func scanTemplateRow(row pgx.Row) (*Template, error) {
	var t Template
	var statuses, products []string
	err := row.Scan(
		&t.ID, &t.OrgID, &t.Name, &t.Body, &t.MinDays, &t.MaxDays,
		&statuses, &products, &t.Priority, &t.Active, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Statuses = stringsToStatuses(statuses)
	t.ProductTypes = stringsToProducts(products)
	return &t, nil
}

func productsToStrings(in []leads.ProductType) []string {
	out := make([]string, len(in))
	for i, p := range in {
		out[i] = string(p)
	}
	return out
}

func stringsToProducts(in []string) []leads.ProductType {
	out := make([]leads.ProductType, len(in))
	for i, p := range in {
		out[i] = leads.ProductType(p)
	}
	return out
}
