// Package intelligence assembles the post-audit intelligence snapshot
// from the oracle's analysis endpoints. Each dimension is fetched
// independently; a failed fetch degrades to a documented default instead
// of failing the snapshot.
package intelligence

import (
	"context"
	"sync"
	"time"

	"github.com/beaivisible/discovery-engine/internal/domain"
	"github.com/beaivisible/discovery-engine/internal/pkg/logger"
)

// Defaults substituted when an individual fetch fails. The snapshot as a
// whole always succeeds.
const (
	// DefaultCoverageHealth is the coverage health score reported when
	// the oracle's coverage endpoint is unavailable.
	DefaultCoverageHealth = 0.0

	// DefaultOpportunityLimit bounds how many opportunities are pulled
	// per snapshot.
	DefaultOpportunityLimit = 10
)

// Source is the read surface the aggregator pulls from. oracle.Client
// satisfies it.
type Source interface {
	PlatformVisibility(ctx context.Context, probeHandle string) (map[string]float64, error)
	Opportunities(ctx context.Context, probeHandle string, limit int) ([]domain.Opportunity, error)
	CompetitiveAnalysis(ctx context.Context, probeHandle string) ([]domain.CompetitorRank, error)
	CoverageHealth(ctx context.Context, probeHandle string) (float64, error)
}

// Aggregator fans out the four intelligence fetches and folds the
// results into a single snapshot.
type Aggregator struct {
	source Source
	limit  int
}

func NewAggregator(source Source) *Aggregator {
	return &Aggregator{
		source: source,
		limit:  DefaultOpportunityLimit,
	}
}

// Snapshot fetches all four intelligence dimensions concurrently. Fetch
// failures are logged and replaced with their defaults; the returned
// error is non-nil only when the context is cancelled before the fetches
// complete.
func (a *Aggregator) Snapshot(ctx context.Context, auditID, probeHandle string) (*domain.IntelligenceSnapshot, error) {
	snap := &domain.IntelligenceSnapshot{
		AuditID:            auditID,
		PlatformVisibility: map[string]float64{},
		Opportunities:      []domain.Opportunity{},
		Competitive:        []domain.CompetitorRank{},
		CoverageHealth:     DefaultCoverageHealth,
	}

	var mu sync.Mutex
	var wg sync.WaitGroup

	fetch := func(name string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				logger.Warn("intelligence fetch failed, using default",
					"audit_id", auditID,
					"fetch", name,
					"error", err.Error())
			}
		}()
	}

	fetch("platform_visibility", func() error {
		vis, err := a.source.PlatformVisibility(ctx, probeHandle)
		if err != nil {
			return err
		}
		mu.Lock()
		snap.PlatformVisibility = vis
		mu.Unlock()
		return nil
	})

	fetch("opportunities", func() error {
		opps, err := a.source.Opportunities(ctx, probeHandle, a.limit)
		if err != nil {
			return err
		}
		mu.Lock()
		snap.Opportunities = opps
		mu.Unlock()
		return nil
	})

	fetch("competitive", func() error {
		comp, err := a.source.CompetitiveAnalysis(ctx, probeHandle)
		if err != nil {
			return err
		}
		mu.Lock()
		snap.Competitive = comp
		mu.Unlock()
		return nil
	})

	fetch("coverage_health", func() error {
		health, err := a.source.CoverageHealth(ctx, probeHandle)
		if err != nil {
			return err
		}
		mu.Lock()
		snap.CoverageHealth = health
		mu.Unlock()
		return nil
	})

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snap.GeneratedAt = time.Now().UTC()
	return snap, nil
}
