package reports

import (
	"context"
	"errors"
	"testing"

	"github.com/beaivisible/discovery-engine/internal/domain"
)

type memStore struct {
	reports  map[string]*domain.DiscoveryReport // keyed by audit id
	keywords map[string][]string
}

func newMemStore() *memStore {
	return &memStore{
		reports:  make(map[string]*domain.DiscoveryReport),
		keywords: make(map[string][]string),
	}
}

func (m *memStore) SaveReport(_ context.Context, r *domain.DiscoveryReport) error {
	cp := *r
	m.reports[r.AuditID] = &cp
	return nil
}

func (m *memStore) GetReport(_ context.Context, _, auditID string) (*domain.DiscoveryReport, error) {
	r, ok := m.reports[auditID]
	if !ok {
		return nil, errors.New("report not found")
	}
	return r, nil
}

func (m *memStore) SaveTenantKeywords(_ context.Context, tenantID string, keywords []string) error {
	m.keywords[tenantID] = keywords
	return nil
}

type fakeArchive struct {
	err error
}

func (f *fakeArchive) Archive(_ context.Context, r *domain.DiscoveryReport) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "reports/" + r.TenantID + "/" + r.AuditID + ".json", nil
}

func testAudit() *domain.Audit {
	return &domain.Audit{
		ID:             "audit-1",
		TenantID:       "tenant-1",
		Domain:         "clinic.example.com",
		TargetKeywords: []string{"knee replacement", "AI visibility"},
	}
}

func testSnapshot() *domain.IntelligenceSnapshot {
	return &domain.IntelligenceSnapshot{
		AuditID: "audit-1",
		PlatformVisibility: map[string]float64{
			"chatgpt":    80,
			"perplexity": 40,
		},
		Opportunities: []domain.Opportunity{
			{Topic: "knee replacement", Priority: domain.PriorityHigh, ImpactScore: 90},
			{Topic: "recovery timelines", Priority: domain.PriorityHigh, ImpactScore: 70},
			{Topic: "insurance coverage", Priority: domain.PriorityMedium, ImpactScore: 60},
			{Topic: "telehealth consults", Priority: domain.PriorityLow, ImpactScore: 20},
		},
	}
}

func TestGenerate(t *testing.T) {
	store := newMemStore()
	gen := NewGenerator(store, &fakeArchive{})

	r, err := gen.Generate(context.Background(), testAudit(), testSnapshot())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if r.OverallVisibility != 60 {
		t.Fatalf("expected mean visibility 60, got %v", r.OverallVisibility)
	}
	if len(r.TopGaps) != 3 {
		t.Fatalf("expected 3 top gaps, got %d", len(r.TopGaps))
	}
	if r.ArchiveKey == "" {
		t.Fatal("expected archive key")
	}
	if _, ok := store.reports["audit-1"]; !ok {
		t.Fatal("report was not persisted")
	}
}

func TestGenerateKeywordExtraction(t *testing.T) {
	store := newMemStore()
	gen := NewGenerator(store, nil)

	r, err := gen.Generate(context.Background(), testAudit(), testSnapshot())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	// "knee replacement" appears both as a target keyword and a topic:
	// deduplicated, first occurrence wins.
	want := []string{"knee replacement", "AI visibility", "recovery timelines", "insurance coverage", "telehealth consults"}
	if len(r.ExtractedKeywords) != len(want) {
		t.Fatalf("expected %d keywords, got %v", len(want), r.ExtractedKeywords)
	}
	for i, kw := range want {
		if r.ExtractedKeywords[i] != kw {
			t.Fatalf("keyword %d: expected %q, got %q", i, kw, r.ExtractedKeywords[i])
		}
	}
	if len(store.keywords["tenant-1"]) != len(want) {
		t.Fatal("keywords were not persisted to the tenant")
	}
}

func TestGenerateArchiveFailureIsSoft(t *testing.T) {
	store := newMemStore()
	gen := NewGenerator(store, &fakeArchive{err: errors.New("bucket gone")})

	r, err := gen.Generate(context.Background(), testAudit(), testSnapshot())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if r.ArchiveKey != "" {
		t.Fatalf("expected no archive key, got %q", r.ArchiveKey)
	}
	if _, ok := store.reports["audit-1"]; !ok {
		t.Fatal("report must persist despite archive failure")
	}
}

func TestGenerateEmptyVisibility(t *testing.T) {
	store := newMemStore()
	gen := NewGenerator(store, nil)

	snap := testSnapshot()
	snap.PlatformVisibility = nil

	r, err := gen.Generate(context.Background(), testAudit(), snap)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if r.OverallVisibility != 0 {
		t.Fatalf("expected 0 visibility with no platform scores, got %v", r.OverallVisibility)
	}
}
