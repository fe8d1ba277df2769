package leads

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for lead and interaction storage
type Repository interface {
	Create(ctx context.Context, req *CreateLeadRequest) (*Lead, error)
	GetByID(ctx context.Context, orgID, id string) (*Lead, error)
	ListByOrg(ctx context.Context, orgID string, filter ListLeadsFilter) ([]*Lead, error)
	UpdateStatus(ctx context.Context, orgID, id string, status Status) (*Lead, error)
	AddInteraction(ctx context.Context, req *CreateInteractionRequest) (*Interaction, error)
	ListInteractions(ctx context.Context, orgID, leadID string) ([]*Interaction, error)
	// ListWithLastInteraction returns every lead of the org together with its
	// latest interaction timestamp, the snapshot the follow-up engine runs on.
	ListWithLastInteraction(ctx context.Context, orgID string) ([]LeadActivity, error)
}

// InMemoryRepository is a Repository backed by process memory, used in tests
// and local development.
type InMemoryRepository struct {
	mu           sync.RWMutex
	leads        map[string]*Lead
	interactions map[string][]*Interaction
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		leads:        make(map[string]*Lead),
		interactions: make(map[string][]*Interaction),
	}
}

// Create creates a new lead in memory
func (r *InMemoryRepository) Create(ctx context.Context, req *CreateLeadRequest) (*Lead, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	lead := &Lead{
		ID:          uuid.New().String(),
		OrgID:       req.OrgID,
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		ProductType: req.ProductType,
		Status:      StatusNew,
		Notes:       req.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	r.mu.Lock()
	r.leads[lead.ID] = lead
	r.mu.Unlock()

	return lead, nil
}

// GetByID retrieves a lead by ID scoped to the org
func (r *InMemoryRepository) GetByID(ctx context.Context, orgID, id string) (*Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lead, ok := r.leads[id]
	if !ok || lead.OrgID != orgID {
		return nil, ErrLeadNotFound
	}
	return lead, nil
}

// ListByOrg lists leads for an org, newest first
func (r *InMemoryRepository) ListByOrg(ctx context.Context, orgID string, filter ListLeadsFilter) ([]*Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*Lead
	for _, lead := range r.leads {
		if lead.OrgID != orgID {
			continue
		}
		if filter.Status != "" && lead.Status != filter.Status {
			continue
		}
		result = append(result, lead)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return nil, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// UpdateStatus sets a lead's pipeline status without transition checks
func (r *InMemoryRepository) UpdateStatus(ctx context.Context, orgID, id string, status Status) (*Lead, error) {
	if !ValidStatus(status) {
		return nil, ErrInvalidStatus
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	lead, ok := r.leads[id]
	if !ok || lead.OrgID != orgID {
		return nil, ErrLeadNotFound
	}
	lead.Status = status
	lead.UpdatedAt = time.Now().UTC()
	return lead, nil
}

// AddInteraction appends an immutable interaction to a lead's timeline
func (r *InMemoryRepository) AddInteraction(ctx context.Context, req *CreateInteractionRequest) (*Interaction, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	lead, ok := r.leads[req.LeadID]
	if !ok || lead.OrgID != req.OrgID {
		return nil, ErrLeadNotFound
	}

	now := time.Now().UTC()
	occurredAt := now
	if req.OccurredAt != nil {
		occurredAt = req.OccurredAt.UTC()
	}
	interaction := &Interaction{
		ID:          uuid.New().String(),
		LeadID:      req.LeadID,
		OrgID:       req.OrgID,
		Channel:     req.Channel,
		Description: req.Description,
		OccurredAt:  occurredAt,
		CreatedAt:   now,
	}
	r.interactions[req.LeadID] = append(r.interactions[req.LeadID], interaction)
	return interaction, nil
}

// ListInteractions returns a lead's interactions, oldest first
func (r *InMemoryRepository) ListInteractions(ctx context.Context, orgID, leadID string) ([]*Interaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lead, ok := r.leads[leadID]
	if !ok || lead.OrgID != orgID {
		return nil, ErrLeadNotFound
	}
	result := append([]*Interaction(nil), r.interactions[leadID]...)
	sort.Slice(result, func(i, j int) bool {
		return result[i].OccurredAt.Before(result[j].OccurredAt)
	})
	return result, nil
}

// ListWithLastInteraction builds the activity snapshot for the follow-up engine
func (r *InMemoryRepository) ListWithLastInteraction(ctx context.Context, orgID string) ([]LeadActivity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []LeadActivity
	for _, lead := range r.leads {
		if lead.OrgID != orgID {
			continue
		}
		activity := LeadActivity{Lead: lead}
		for _, interaction := range r.interactions[lead.ID] {
			if activity.LastInteractionAt == nil || interaction.OccurredAt.After(*activity.LastInteractionAt) {
				ts := interaction.OccurredAt
				activity.LastInteractionAt = &ts
			}
		}
		result = append(result, activity)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Lead.CreatedAt.Before(result[j].Lead.CreatedAt)
	})
	return result, nil
}

var _ Repository = (*InMemoryRepository)(nil)
