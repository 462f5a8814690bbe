package domain

import (
	"time"
)

// AuditStatus enumerates the lifecycle states of a discovery audit.
type AuditStatus string

const (
	AuditPending   AuditStatus = "pending"
	AuditRunning   AuditStatus = "running"
	AuditCompleted AuditStatus = "completed"
	AuditFailed    AuditStatus = "failed"
)

// Audit represents one visibility-probing run for a tenant's domain and
// keywords across a set of AI platforms.
type Audit struct {
	ID             string      `json:"id" db:"id"`
	TenantID       string      `json:"tenant_id" db:"tenant_id"`
	Domain         string      `json:"domain" db:"domain"`
	TargetKeywords []string    `json:"target_keywords" db:"target_keywords"`
	Platforms      []string    `json:"platforms" db:"platforms"`
	Status         AuditStatus `json:"status" db:"status"`
	ErrorMessage   string      `json:"error_message,omitempty" db:"error_message"`

	// ProbeHandle is the opaque job handle returned by the scoring oracle
	// once the probe has been dispatched. Empty until Run.
	ProbeHandle string `json:"-" db:"probe_handle"`

	StartedAt   *time.Time `json:"started_at,omitempty" db:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// IsTerminal returns true if the audit is in a final state.
// Terminal audits are immutable.
func (a *Audit) IsTerminal() bool {
	return a.Status == AuditCompleted || a.Status == AuditFailed
}

// OpportunityPriority tiers content-gap opportunities.
type OpportunityPriority string

const (
	PriorityHigh   OpportunityPriority = "HIGH"
	PriorityMedium OpportunityPriority = "MEDIUM"
	PriorityLow    OpportunityPriority = "LOW"
)

// rank orders priorities for sorting: HIGH before MEDIUM before LOW.
func (p OpportunityPriority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	default:
		return 3
	}
}

// Opportunity is one ranked content-gap opportunity surfaced by an audit.
type Opportunity struct {
	Topic       string              `json:"topic"`
	Description string              `json:"description"`
	Priority    OpportunityPriority `json:"priority"`
	// ImpactScore is an estimated impact in [0,100]; 0 when the oracle
	// did not score the opportunity.
	ImpactScore float64 `json:"impact_score"`
}

// CompetitorRank is one entry in the competitive ranking list.
type CompetitorRank struct {
	Domain          string  `json:"domain"`
	VisibilityScore float64 `json:"visibility_score"`
	Rank            int     `json:"rank"`
}

// IntelligenceSnapshot is the merged view of per-platform visibility,
// content-gap opportunities, and competitive data for one completed audit.
// It is built exactly once per completed audit by merging independent
// fetches; a failed fetch degrades its field to a default, it never fails
// the snapshot as a whole.
type IntelligenceSnapshot struct {
	AuditID string `json:"audit_id"`

	// PlatformVisibility maps platform name -> visibility score (0-100).
	// Platforms the oracle returned no score for are absent.
	PlatformVisibility map[string]float64 `json:"platform_visibility"`

	// Opportunities are ordered HIGH before MEDIUM before LOW, then by
	// descending impact score.
	Opportunities []Opportunity `json:"opportunities"`

	// Competitive is nil when competitive analysis was unavailable.
	Competitive []CompetitorRank `json:"competitive,omitempty"`

	// CoverageHealth is the overall topic-coverage health metric (0-100).
	// Zero when the fetch failed.
	CoverageHealth float64 `json:"coverage_health"`

	GeneratedAt time.Time `json:"generated_at"`
}

// DiscoveryReport is the generated report for a completed audit.
type DiscoveryReport struct {
	ID                string        `json:"id" db:"id"`
	AuditID           string        `json:"audit_id" db:"audit_id"`
	TenantID          string        `json:"tenant_id" db:"tenant_id"`
	OverallVisibility float64       `json:"overall_visibility_score" db:"overall_visibility_score"`
	ExtractedKeywords []string      `json:"extracted_keywords" db:"extracted_keywords"`
	TopGaps           []Opportunity `json:"top_gaps"`
	ArchiveKey        string        `json:"archive_key,omitempty" db:"archive_key"`
	GeneratedAt       time.Time     `json:"generated_at" db:"generated_at"`
}
