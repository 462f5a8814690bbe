package distribution

import (
	"context"

	"github.com/beaivisible/discovery-engine/internal/domain"
)

// Repository defines the data access contract for lead distribution.
// Implementations must be safe for concurrent use.
type Repository interface {
	// GetBatch returns a lead batch. Returns ErrBatchNotFound if it
	// doesn't exist.
	GetBatch(ctx context.Context, tenantID, batchID string) (*domain.LeadBatch, error)

	// Companies returns the batch's companies with contacts attached,
	// in a stable order (created_at, then id).
	Companies(ctx context.Context, tenantID, batchID string) ([]domain.Company, error)

	// Categories returns the tenant's ICP categories ordered by
	// definition position.
	Categories(ctx context.Context, tenantID string) ([]domain.ICPCategory, error)
}

// Ledger tracks which (idempotency key, category) pairs have already been
// executed, so a re-invoked sync does not double-write.
type Ledger interface {
	// Outcome returns the recorded outcome for the pair, if any.
	Outcome(ctx context.Context, tenantID, key, category string) (*domain.CategorySyncOutcome, bool, error)

	// Record stores the outcome for the pair.
	Record(ctx context.Context, tenantID, key, category string, out domain.CategorySyncOutcome) error
}

// Matcher scores one entity against the tenant's categories.
// icp.Matcher satisfies it.
type Matcher interface {
	Score(entityID string, profile domain.Profile, categories []domain.ICPCategory) domain.MatchResult
}
