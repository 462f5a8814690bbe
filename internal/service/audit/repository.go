package audit

import (
	"context"

	"github.com/beaivisible/discovery-engine/internal/domain"
)

// Repository defines the data access contract for audits.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single audit. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, tenantID, id string) (*domain.Audit, error)

	// Latest returns the tenant's most recently created audit, or
	// ErrNotFound when the tenant has none.
	Latest(ctx context.Context, tenantID string) (*domain.Audit, error)

	// List returns audits for a tenant ordered by created_at DESC.
	List(ctx context.Context, tenantID string, filter ListFilter) ([]domain.Audit, int, error)

	// Create inserts a new audit in pending status and returns its ID.
	Create(ctx context.Context, a *domain.Audit) (string, error)

	// Delete removes an audit. Running audits cannot be deleted.
	Delete(ctx context.Context, tenantID, id string) error

	// TransitionToRunning atomically moves a pending audit to running,
	// but only when the tenant has no other running audit. Returns
	// ErrAlreadyRunning when a run is in flight, ErrTerminal when the
	// audit already finished.
	TransitionToRunning(ctx context.Context, tenantID, id string) error

	// SetProbeHandle records the oracle job handle on a running audit.
	SetProbeHandle(ctx context.Context, tenantID, id, handle string) error

	// Finalize moves a running audit into a terminal state. errMsg is
	// stored only for failed audits.
	Finalize(ctx context.Context, tenantID, id string, status domain.AuditStatus, errMsg string) error
}

// SnapshotStore persists intelligence snapshots keyed by audit.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, tenantID string, snap *domain.IntelligenceSnapshot) error
	GetSnapshot(ctx context.Context, tenantID, auditID string) (*domain.IntelligenceSnapshot, error)
}

// ListFilter controls pagination and filtering for audit lists.
type ListFilter struct {
	Status string
	Limit  int
	Offset int
}
