// Package reports turns a completed audit's intelligence snapshot into a
// persisted discovery report. Generation is a best-effort enrichment
// step: callers treat a failure here as a warning, never as an audit
// failure.
package reports

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/beaivisible/discovery-engine/internal/domain"
	"github.com/beaivisible/discovery-engine/internal/pkg/logger"
)

// topGapLimit caps how many content-gap opportunities a report carries.
const topGapLimit = 3

// Store persists reports and the keywords extracted from them.
type Store interface {
	SaveReport(ctx context.Context, r *domain.DiscoveryReport) error
	GetReport(ctx context.Context, tenantID, auditID string) (*domain.DiscoveryReport, error)
	// SaveTenantKeywords merges the extracted keywords into the
	// tenant's keyword set.
	SaveTenantKeywords(ctx context.Context, tenantID string, keywords []string) error
}

// Archiver writes the report document to long-term storage and returns
// its object key. Archiving is optional and best-effort.
type Archiver interface {
	Archive(ctx context.Context, r *domain.DiscoveryReport) (string, error)
}

// Generator builds and persists discovery reports.
type Generator struct {
	store   Store
	archive Archiver
}

// NewGenerator creates a generator. archive may be nil when archiving is
// disabled.
func NewGenerator(store Store, archive Archiver) *Generator {
	return &Generator{store: store, archive: archive}
}

// Generate builds the report for a completed audit and persists it. The
// archive write is soft-fail: the report is still saved without an
// archive key.
func (g *Generator) Generate(ctx context.Context, a *domain.Audit, snap *domain.IntelligenceSnapshot) (*domain.DiscoveryReport, error) {
	r := &domain.DiscoveryReport{
		ID:                uuid.New().String(),
		AuditID:           a.ID,
		TenantID:          a.TenantID,
		OverallVisibility: overallVisibility(snap.PlatformVisibility),
		ExtractedKeywords: extractKeywords(a.TargetKeywords, snap.Opportunities),
		TopGaps:           topGaps(snap.Opportunities),
		GeneratedAt:       time.Now().UTC(),
	}

	if g.archive != nil {
		key, err := g.archive.Archive(ctx, r)
		if err != nil {
			logger.Warn("report archive failed",
				"tenant_id", a.TenantID, "audit_id", a.ID, "error", err.Error())
		} else {
			r.ArchiveKey = key
		}
	}

	if err := g.store.SaveReport(ctx, r); err != nil {
		return nil, err
	}

	if err := g.store.SaveTenantKeywords(ctx, a.TenantID, r.ExtractedKeywords); err != nil {
		logger.Warn("keyword persistence failed",
			"tenant_id", a.TenantID, "audit_id", a.ID, "error", err.Error())
	}

	return r, nil
}

// Get returns a persisted report.
func (g *Generator) Get(ctx context.Context, tenantID, auditID string) (*domain.DiscoveryReport, error) {
	return g.store.GetReport(ctx, tenantID, auditID)
}

// overallVisibility is the mean platform score, zero when no platform
// reported one.
func overallVisibility(scores map[string]float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}

// extractKeywords merges the audit's target keywords with the topics the
// oracle surfaced, deduplicated case-insensitively, original order kept.
func extractKeywords(target []string, opps []domain.Opportunity) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(kw string) {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			return
		}
		norm := strings.ToLower(kw)
		if _, ok := seen[norm]; ok {
			return
		}
		seen[norm] = struct{}{}
		out = append(out, kw)
	}

	for _, kw := range target {
		add(kw)
	}
	for _, o := range opps {
		add(o.Topic)
	}
	return out
}

// topGaps returns the highest-ranked opportunities. The snapshot already
// orders them by priority tier then impact.
func topGaps(opps []domain.Opportunity) []domain.Opportunity {
	if len(opps) <= topGapLimit {
		return opps
	}
	return opps[:topGapLimit]
}
