package domain

// DefaultMatchThreshold is the tenant-wide minimum confidence applied to
// categories that do not set their own threshold.
const DefaultMatchThreshold = 75.0

// ICPAttributes are the attribute groups a category definition matches on.
// Each group contributes equally to the overall confidence; within a group
// the contribution is proportional to the fraction of defined attributes
// found in the entity's profile.
type ICPAttributes struct {
	Demographics []string `json:"demographics"`
	PainPoints   []string `json:"pain_points"`
	Goals        []string `json:"goals"`
}

// ICPCategory is a named target-customer category with a list destination
// and a match threshold. Category names are unique within a tenant.
// Definition order matters: it is the tie-break for equal-confidence matches.
type ICPCategory struct {
	Name        string        `json:"name" db:"name"`
	TenantID    string        `json:"tenant_id" db:"tenant_id"`
	Description string        `json:"description" db:"description"`
	Attributes  ICPAttributes `json:"attributes"`
	// ListID is the destination list at the sink for this category.
	ListID   string `json:"list_id" db:"list_id"`
	ListName string `json:"list_name" db:"list_name"`
	// Threshold is the minimum confidence (0-100) for assignment.
	// Zero means "use DefaultMatchThreshold".
	Threshold float64 `json:"threshold" db:"threshold"`
	// Position is the definition order within the tenant (0-based).
	Position int `json:"position" db:"position"`
}

// EffectiveThreshold returns the category threshold, falling back to the
// tenant-wide default when unset.
func (c ICPCategory) EffectiveThreshold() float64 {
	if c.Threshold <= 0 {
		return DefaultMatchThreshold
	}
	return c.Threshold
}

// MatchResult is the outcome of scoring one entity against all of a
// tenant's ICP categories.
type MatchResult struct {
	EntityID string `json:"entity_id"`
	// Category is empty when the entity is uncategorized.
	Category string `json:"category,omitempty"`
	// Confidence is 0-100.
	Confidence float64 `json:"confidence"`
	// Reason is set only when uncategorized.
	Reason string `json:"reason,omitempty"`
}

// Categorized reports whether the entity was assigned a category.
func (m MatchResult) Categorized() bool { return m.Category != "" }
