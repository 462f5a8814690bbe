package domain

// CategoryBucket is the per-category slice of a distribution plan.
type CategoryBucket struct {
	Companies     int     `json:"companies"`
	Contacts      int     `json:"contacts"`
	ListID        string  `json:"list_id"`
	ListName      string  `json:"list_name"`
	AvgConfidence float64 `json:"avg_confidence"` // 0-100
}

// UncategorizedBucket aggregates entities no category claimed.
// Reasons are the distinct no-match reasons, for operator visibility.
type UncategorizedBucket struct {
	Companies int      `json:"companies"`
	Contacts  int      `json:"contacts"`
	Reasons   []string `json:"reasons"`
}

// DistributionPlan is the categorized grouping of a lead batch prior to
// any write. Invariant: categorized company counts + uncategorized
// company count == total companies in the batch.
type DistributionPlan struct {
	BatchID       string                    `json:"batch_id"`
	ConnectionID  string                    `json:"connection_id"`
	Categorized   map[string]CategoryBucket `json:"categorized"`
	Uncategorized UncategorizedBucket       `json:"uncategorized"`
}

// TotalCompanies returns the number of companies covered by the plan.
func (p DistributionPlan) TotalCompanies() int {
	n := p.Uncategorized.Companies
	for _, b := range p.Categorized {
		n += b.Companies
	}
	return n
}

// TotalContacts returns the number of contacts covered by the plan.
func (p DistributionPlan) TotalContacts() int {
	n := p.Uncategorized.Contacts
	for _, b := range p.Categorized {
		n += b.Contacts
	}
	return n
}

// SyncOptions shape the sink call payload. They never affect matching or
// grouping.
type SyncOptions struct {
	// StoreCategoryOnEntity tags each pushed entity with its matched
	// category at the destination.
	StoreCategoryOnEntity bool `json:"store_category_on_entity"`
	// MarkSubscribedStatus sets the destination-specific subscribed flag.
	MarkSubscribedStatus bool `json:"mark_subscribed_status"`
	// SendWelcomeMessage triggers a destination-side welcome action.
	SendWelcomeMessage bool `json:"send_welcome_message"`
}

// CategorySyncOutcome is the per-category accounting of a sync run.
// Invariant: Synced + Failed == planned contact count for the category.
type CategorySyncOutcome struct {
	Synced int `json:"synced"`
	Failed int `json:"failed"`
	// Skipped is true when cancellation stopped the run before this
	// category was dispatched.
	Skipped bool `json:"skipped,omitempty"`
}

// SyncResult is the outcome of executing a distribution plan.
type SyncResult struct {
	Success        bool                           `json:"success"`
	Distribution   map[string]CategorySyncOutcome `json:"distribution"`
	TotalSynced    int                            `json:"total_synced"`
	Uncategorized  int                            `json:"uncategorized"`
	IdempotencyKey string                         `json:"idempotency_key"`
}
