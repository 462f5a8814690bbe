package distribution

import (
	"context"

	"github.com/beaivisible/discovery-engine/internal/domain"
	"github.com/beaivisible/discovery-engine/internal/sink"
)

// Service wires batch loading, matching, and sync execution together.
// All public methods are safe for concurrent use if the underlying
// repository is concurrency-safe.
type Service struct {
	repo     Repository
	router   *Router
	executor *Executor
}

// NewService creates a distribution service.
func NewService(repo Repository, matcher Matcher, pusher sink.Pusher, ledger Ledger) *Service {
	return &Service{
		repo:     repo,
		router:   NewRouter(matcher),
		executor: NewExecutor(pusher, ledger),
	}
}

// Preview matches the batch against the tenant's categories and returns
// the distribution plan without writing anything.
func (s *Service) Preview(ctx context.Context, tenantID, batchID, connectionID string) (*domain.DistributionPlan, error) {
	companies, categories, err := s.load(ctx, tenantID, batchID)
	if err != nil {
		return nil, err
	}
	return s.router.Preview(batchID, connectionID, companies, categories), nil
}

// ExecuteSync matches the batch and pushes each category's contacts to
// its destination list. The idempotency key guards against double-writes
// across re-invocations.
func (s *Service) ExecuteSync(ctx context.Context, tenantID, batchID, connectionID string, opts domain.SyncOptions, idemKey string) (*domain.SyncResult, error) {
	if idemKey == "" {
		return nil, ErrMissingIdemKey
	}

	companies, categories, err := s.load(ctx, tenantID, batchID)
	if err != nil {
		return nil, err
	}
	if len(companies) == 0 {
		return nil, ErrEmptyBatch
	}

	assignments := s.router.Assign(companies, categories)
	plan := s.router.Plan(batchID, connectionID, assignments, categories)
	return s.executor.Execute(ctx, tenantID, plan, assignments, opts, idemKey)
}

func (s *Service) load(ctx context.Context, tenantID, batchID string) ([]domain.Company, []domain.ICPCategory, error) {
	if _, err := s.repo.GetBatch(ctx, tenantID, batchID); err != nil {
		return nil, nil, err
	}
	companies, err := s.repo.Companies(ctx, tenantID, batchID)
	if err != nil {
		return nil, nil, err
	}
	categories, err := s.repo.Categories(ctx, tenantID)
	if err != nil {
		return nil, nil, err
	}
	if len(categories) == 0 {
		return nil, nil, ErrNoCategories
	}
	return companies, categories, nil
}
