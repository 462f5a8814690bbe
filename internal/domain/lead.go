package domain

import "time"

// EntityKind distinguishes the two lead entity types in a batch.
type EntityKind string

const (
	EntityCompany EntityKind = "company"
	EntityContact EntityKind = "contact"
)

// Profile holds the free-text attributes an entity is matched against.
// Attribute comparison is case-insensitive on normalized text.
type Profile struct {
	Industry   string   `json:"industry"`
	Location   string   `json:"location"`
	Notes      string   `json:"notes"`
	Attributes []string `json:"attributes"`
}

// Company is a lead company with its enrichment profile and contacts.
type Company struct {
	ID       string    `json:"id" db:"id"`
	TenantID string    `json:"tenant_id" db:"tenant_id"`
	BatchID  string    `json:"batch_id" db:"batch_id"`
	Name     string    `json:"name" db:"name"`
	Website  string    `json:"website" db:"website"`
	Profile  Profile   `json:"profile"`
	Contacts []Contact `json:"contacts"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Contact is a person attached to a lead company.
type Contact struct {
	ID        string `json:"id" db:"id"`
	CompanyID string `json:"company_id" db:"company_id"`
	Name      string `json:"name" db:"name"`
	Title     string `json:"title" db:"title"`
	// Email may be empty; contacts without an email are still counted in
	// distribution plans but cannot be pushed to a list sink.
	Email string `json:"email,omitempty" db:"email"`
}

// LeadBatch is one batch of companies/contacts produced by a lead campaign.
type LeadBatch struct {
	ID        string    `json:"id" db:"id"`
	TenantID  string    `json:"tenant_id" db:"tenant_id"`
	Name      string    `json:"name" db:"name"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
