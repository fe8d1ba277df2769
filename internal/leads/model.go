package leads

import (
	"strings"
	"time"
)

// Status tracks where a lead sits in the sales pipeline.
// Transitions are not enforced; see ValidTransition.
type Status string

const (
	StatusNew            Status = "new"
	StatusInitialContact Status = "initial_contact"
	StatusNegotiation    Status = "negotiation"
	StatusProposalSent   Status = "proposal_sent"
	StatusWon            Status = "won"
	StatusLost           Status = "lost"
)

// ProductType classifies what the lead is interested in.
type ProductType string

const (
	ProductMentoring  ProductType = "mentoring"
	ProductConsulting ProductType = "consulting"
	ProductCourse     ProductType = "course"
	ProductOther      ProductType = "other"
)

// InteractionChannel tags how a touchpoint happened.
type InteractionChannel string

const (
	InteractionWhatsApp InteractionChannel = "whatsapp"
	InteractionEmail    InteractionChannel = "email"
	InteractionCall     InteractionChannel = "call"
	InteractionMeeting  InteractionChannel = "meeting"
	InteractionOther    InteractionChannel = "other"
)

// Lead represents a prospective customer in the pipeline.
type Lead struct {
	ID          string      `json:"id"`
	OrgID       string      `json:"org_id"`
	Name        string      `json:"name"`
	Email       string      `json:"email"`
	Phone       string      `json:"phone"`
	ProductType ProductType `json:"product_type"`
	Status      Status      `json:"status"`
	Notes       string      `json:"notes"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// FirstName returns the first whitespace-separated token of the lead's name.
func (l *Lead) FirstName() string {
	fields := strings.Fields(l.Name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Interaction is an immutable touchpoint logged against a lead.
type Interaction struct {
	ID          string             `json:"id"`
	LeadID      string             `json:"lead_id"`
	OrgID       string             `json:"org_id"`
	Channel     InteractionChannel `json:"channel"`
	Description string             `json:"description"`
	OccurredAt  time.Time          `json:"occurred_at"`
	CreatedAt   time.Time          `json:"created_at"`
}

// LeadActivity pairs a lead with its most recent interaction timestamp,
// nil when the lead has no interactions yet.
type LeadActivity struct {
	Lead              *Lead
	LastInteractionAt *time.Time
}

// LastActivity returns the later of the lead's creation and its last interaction.
func (a LeadActivity) LastActivity() time.Time {
	if a.LastInteractionAt != nil && a.LastInteractionAt.After(a.Lead.CreatedAt) {
		return *a.LastInteractionAt
	}
	return a.Lead.CreatedAt
}

// CreateLeadRequest represents the request body for creating a lead
type CreateLeadRequest struct {
	OrgID       string      `json:"-"`
	Name        string      `json:"name"`
	Email       string      `json:"email"`
	Phone       string      `json:"phone"`
	ProductType ProductType `json:"product_type"`
	Notes       string      `json:"notes"`
}

// Validate validates the create lead request
func (r *CreateLeadRequest) Validate() error {
	if strings.TrimSpace(r.OrgID) == "" {
		return ErrMissingOrgID
	}
	if strings.TrimSpace(r.Name) == "" {
		return ErrInvalidName
	}
	if r.Email == "" && r.Phone == "" {
		return ErrMissingContact
	}
	if r.ProductType == "" {
		r.ProductType = ProductOther
	}
	if !validProduct(r.ProductType) {
		return ErrInvalidProduct
	}
	return nil
}

// CreateInteractionRequest represents the request body for logging an interaction
type CreateInteractionRequest struct {
	OrgID       string             `json:"-"`
	LeadID      string             `json:"-"`
	Channel     InteractionChannel `json:"channel"`
	Description string             `json:"description"`
	OccurredAt  *time.Time         `json:"occurred_at,omitempty"`
}

// Validate validates the create interaction request
func (r *CreateInteractionRequest) Validate() error {
	if strings.TrimSpace(r.LeadID) == "" {
		return ErrLeadNotFound
	}
	if r.Channel == "" {
		r.Channel = InteractionOther
	}
	if !validChannel(r.Channel) {
		return ErrInvalidChannel
	}
	return nil
}

// ListLeadsFilter narrows ListByOrg results.
type ListLeadsFilter struct {
	Status Status
	Limit  int
	Offset int
}

// ValidStatus reports whether s is a known pipeline status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusNew, StatusInitialContact, StatusNegotiation, StatusProposalSent, StatusWon, StatusLost:
		return true
	}
	return false
}

// ValidTransition reports whether moving from one status to another follows the
// expected pipeline order. The store does not enforce this: operators correct
// records by hand and any status may follow any other. Callers that want a
// guarded pipeline can check it before UpdateStatus.
func ValidTransition(from, to Status) bool {
	if !ValidStatus(from) || !ValidStatus(to) {
		return false
	}
	allowed := map[Status][]Status{
		StatusNew:            {StatusInitialContact, StatusLost},
		StatusInitialContact: {StatusNegotiation, StatusLost},
		StatusNegotiation:    {StatusProposalSent, StatusLost},
		StatusProposalSent:   {StatusWon, StatusNegotiation, StatusLost},
		StatusWon:            {},
		StatusLost:           {StatusInitialContact},
	}
	for _, next := range allowed[from] {
		if next == to {
			return true
		}
	}
	return false
}

func validProduct(p ProductType) bool {
	switch p {
	case ProductMentoring, ProductConsulting, ProductCourse, ProductOther:
		return true
	}
	return false
}

func validChannel(c InteractionChannel) bool {
	switch c {
	case InteractionWhatsApp, InteractionEmail, InteractionCall, InteractionMeeting, InteractionOther:
		return true
	}
	return false
}
