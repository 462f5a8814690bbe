package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beaivisible/discovery-engine/internal/domain"
	"github.com/beaivisible/discovery-engine/internal/icp"
	"github.com/beaivisible/discovery-engine/internal/intelligence"
	"github.com/beaivisible/discovery-engine/internal/oracle"
	"github.com/beaivisible/discovery-engine/internal/pkg/distlock"
	"github.com/beaivisible/discovery-engine/internal/service/audit"
	"github.com/beaivisible/discovery-engine/internal/service/distribution"
	"github.com/beaivisible/discovery-engine/internal/sink"
)

// In-memory backends so the full router can be exercised without
// Postgres, Redis, or live upstreams.

type auditStore struct {
	mu        sync.Mutex
	audits    map[string]*domain.Audit
	snapshots map[string]*domain.IntelligenceSnapshot
}

func newAuditStore() *auditStore {
	return &auditStore{
		audits:    make(map[string]*domain.Audit),
		snapshots: make(map[string]*domain.IntelligenceSnapshot),
	}
}

func (s *auditStore) Get(_ context.Context, tenantID, id string) (*domain.Audit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.audits[id]
	if !ok || a.TenantID != tenantID {
		return nil, audit.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *auditStore) Latest(_ context.Context, tenantID string) (*domain.Audit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *domain.Audit
	for _, a := range s.audits {
		if a.TenantID != tenantID {
			continue
		}
		if latest == nil || a.CreatedAt.After(latest.CreatedAt) {
			latest = a
		}
	}
	if latest == nil {
		return nil, audit.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (s *auditStore) List(_ context.Context, tenantID string, f audit.ListFilter) ([]domain.Audit, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Audit
	for _, a := range s.audits {
		if a.TenantID != tenantID {
			continue
		}
		if f.Status != "" && string(a.Status) != f.Status {
			continue
		}
		out = append(out, *a)
	}
	return out, len(out), nil
}

func (s *auditStore) Create(_ context.Context, a *domain.Audit) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	cp.CreatedAt = time.Now()
	s.audits[cp.ID] = &cp
	return cp.ID, nil
}

func (s *auditStore) Delete(_ context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.audits[id]
	if !ok || a.TenantID != tenantID {
		return audit.ErrNotFound
	}
	delete(s.audits, id)
	return nil
}

func (s *auditStore) TransitionToRunning(_ context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.audits[id]
	if !ok || a.TenantID != tenantID {
		return audit.ErrNotFound
	}
	if a.IsTerminal() {
		return audit.ErrTerminal
	}
	for _, other := range s.audits {
		if other.TenantID == tenantID && other.Status == domain.AuditRunning {
			return audit.ErrAlreadyRunning
		}
	}
	now := time.Now()
	a.Status = domain.AuditRunning
	a.StartedAt = &now
	return nil
}

func (s *auditStore) SetProbeHandle(_ context.Context, tenantID, id, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.audits[id]
	if !ok || a.TenantID != tenantID {
		return audit.ErrNotFound
	}
	a.ProbeHandle = handle
	return nil
}

func (s *auditStore) Finalize(_ context.Context, tenantID, id string, status domain.AuditStatus, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.audits[id]
	if !ok || a.TenantID != tenantID {
		return audit.ErrNotFound
	}
	now := time.Now()
	a.Status = status
	a.ErrorMessage = errMsg
	a.CompletedAt = &now
	return nil
}

func (s *auditStore) SaveSnapshot(_ context.Context, _ string, snap *domain.IntelligenceSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *snap
	s.snapshots[snap.AuditID] = &cp
	return nil
}

func (s *auditStore) GetSnapshot(_ context.Context, _, auditID string) (*domain.IntelligenceSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[auditID]
	if !ok {
		return nil, audit.ErrNotFound
	}
	cp := *snap
	return &cp, nil
}

type stubProber struct{}

func (stubProber) StartProbe(_ context.Context, _ oracle.ProbeRequest) (string, error) {
	return "probe-1", nil
}

func (stubProber) GetProbeStatus(_ context.Context, handle string) (*oracle.ProbeStatus, error) {
	return &oracle.ProbeStatus{Handle: handle, State: oracle.ProbeCompleted}, nil
}

type stubIntel struct{}

func (stubIntel) Snapshot(_ context.Context, auditID, _ string) (*domain.IntelligenceSnapshot, error) {
	return &domain.IntelligenceSnapshot{
		AuditID:            auditID,
		PlatformVisibility: map[string]float64{"chatgpt": 52.0, "perplexity": 9.0},
		Opportunities: []domain.Opportunity{
			{Topic: "recovery timelines", Priority: domain.PriorityHigh, ImpactScore: 88},
			{Topic: "staff bios", Priority: domain.PriorityLow, ImpactScore: 5},
		},
		CoverageHealth: 63.0,
		GeneratedAt:    time.Now(),
	}, nil
}

type stubLock struct{}

func (stubLock) Acquire(_ context.Context) (bool, error) { return true, nil }
func (stubLock) Release(_ context.Context) error         { return nil }

func stubLockFactory(_ string, _ time.Duration) distlock.DistLock { return stubLock{} }

type leadStore struct {
	batches    map[string]*domain.LeadBatch
	companies  map[string][]domain.Company
	categories []domain.ICPCategory
}

func (s *leadStore) GetBatch(_ context.Context, tenantID, batchID string) (*domain.LeadBatch, error) {
	b, ok := s.batches[batchID]
	if !ok || b.TenantID != tenantID {
		return nil, distribution.ErrBatchNotFound
	}
	return b, nil
}

func (s *leadStore) Companies(_ context.Context, _, batchID string) ([]domain.Company, error) {
	return s.companies[batchID], nil
}

func (s *leadStore) Categories(_ context.Context, _ string) ([]domain.ICPCategory, error) {
	return s.categories, nil
}

type stubPusher struct {
	mu     sync.Mutex
	pushed int
}

func (p *stubPusher) PushContact(_ context.Context, _ string, contact domain.Contact, _ sink.PushPayload) error {
	if contact.Email == "" {
		return fmt.Errorf("contact %s has no email", contact.ID)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushed++
	return nil
}

type memLedger struct {
	mu       sync.Mutex
	outcomes map[string]domain.CategorySyncOutcome
}

func newMemLedger() *memLedger {
	return &memLedger{outcomes: make(map[string]domain.CategorySyncOutcome)}
}

func (l *memLedger) Outcome(_ context.Context, tenantID, key, category string) (*domain.CategorySyncOutcome, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out, ok := l.outcomes[tenantID+"/"+key+"/"+category]
	if !ok {
		return nil, false, nil
	}
	return &out, true, nil
}

func (l *memLedger) Record(_ context.Context, tenantID, key, category string, out domain.CategorySyncOutcome) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.outcomes[tenantID+"/"+key+"/"+category] = out
	return nil
}

func testLeadStore() *leadStore {
	return &leadStore{
		batches: map[string]*domain.LeadBatch{
			"batch-1": {ID: "batch-1", TenantID: "tenant-1", Name: "August scrape"},
		},
		companies: map[string][]domain.Company{
			"batch-1": {
				{
					ID:      "co-1",
					Name:    "Summit Orthopedics",
					Profile: domain.Profile{Industry: "orthopedic surgery clinic"},
					Contacts: []domain.Contact{
						{ID: "ct-1", CompanyID: "co-1", Email: "admin@summit.example"},
					},
				},
				{
					ID:      "co-2",
					Name:    "Unrelated Bakery",
					Profile: domain.Profile{Industry: "bakery"},
				},
			},
		},
		categories: []domain.ICPCategory{
			{
				Name:     "orthopedics",
				TenantID: "tenant-1",
				ListID:   "list-ortho",
				Attributes: domain.ICPAttributes{
					Demographics: []string{"orthopedic"},
				},
			},
		},
	}
}

func setupTestRouter(t *testing.T) (*chiRouter, *stubPusher) {
	t.Helper()

	store := newAuditStore()
	audits := audit.NewService(store, store, stubProber{}, stubIntel{}, nil, stubLockFactory,
		audit.Options{PollInterval: time.Millisecond, MaxAttempts: 10})

	pusher := &stubPusher{}
	matcher := icp.NewMatcher(domain.DefaultMatchThreshold)
	dist := distribution.NewService(testLeadStore(), matcher, pusher, newMemLedger())

	h := NewHandlers(audits, dist, nil)
	return &chiRouter{SetupRoutes(h)}, pusher
}

// chiRouter wraps the mux with tenant-scoped request helpers.
type chiRouter struct {
	mux http.Handler
}

func (c *chiRouter) do(method, path string, body []byte) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("X-Tenant-ID", "tenant-1")
	rec := httptest.NewRecorder()
	c.mux.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "healthy", response["status"])
}

func TestTenantContextRequired(t *testing.T) {
	router, _ := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/discovery-audits/latest", nil)
	rec := httptest.NewRecorder()
	router.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateAudit(t *testing.T) {
	router, _ := setupTestRouter(t)

	body := []byte(`{"domain":"clinic.example.com","target_keywords":["knee replacement"],"platforms":["chatgpt"]}`)
	rec := router.do(http.MethodPost, "/api/discovery-audits", body)

	require.Equal(t, http.StatusCreated, rec.Code)

	var a domain.Audit
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &a))
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, domain.AuditPending, a.Status)
}

func TestCreateAuditValidation(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := router.do(http.MethodPost, "/api/discovery-audits",
		[]byte(`{"target_keywords":["x"],"platforms":["chatgpt"]}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunAuditLifecycle(t *testing.T) {
	router, _ := setupTestRouter(t)

	body := []byte(`{"domain":"clinic.example.com","target_keywords":["knee replacement"],"platforms":["chatgpt"]}`)
	rec := router.do(http.MethodPost, "/api/discovery-audits", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created domain.Audit
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = router.do(http.MethodPost, "/api/discovery-audits/"+created.ID+"/run", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var running domain.Audit
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &running))
	assert.Equal(t, domain.AuditRunning, running.Status)

	// Completion is observed by polling, the way a UI would.
	deadline := time.Now().Add(2 * time.Second)
	var got domain.Audit
	for time.Now().Before(deadline) {
		rec = router.do(http.MethodGet, "/api/discovery-audits/"+created.ID, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		if got.IsTerminal() {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, domain.AuditCompleted, got.Status)

	rec = router.do(http.MethodGet, "/api/discovery-audits/"+created.ID+"/intelligence", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var snap domain.IntelligenceSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, 52.0, snap.PlatformVisibility["chatgpt"])
}

// runAuditToCompletion creates an audit, dispatches it, and polls until
// the probe finishes.
func runAuditToCompletion(t *testing.T, router *chiRouter) domain.Audit {
	t.Helper()

	body := []byte(`{"domain":"clinic.example.com","target_keywords":["knee replacement"],"platforms":["chatgpt","perplexity"]}`)
	rec := router.do(http.MethodPost, "/api/discovery-audits", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created domain.Audit
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = router.do(http.MethodPost, "/api/discovery-audits/"+created.ID+"/run", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	deadline := time.Now().Add(2 * time.Second)
	var got domain.Audit
	for time.Now().Before(deadline) {
		rec = router.do(http.MethodGet, "/api/discovery-audits/"+created.ID, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		if got.IsTerminal() {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, domain.AuditCompleted, got.Status)
	return got
}

func TestIntelligenceEndpoints(t *testing.T) {
	router, _ := setupTestRouter(t)
	runAuditToCompletion(t, router)

	rec := router.do(http.MethodGet, "/api/intelligence/opportunities?priority=HIGH", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var opps struct {
		Opportunities []domain.Opportunity `json:"opportunities"`
		Total         int                  `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &opps))
	require.Equal(t, 1, opps.Total)
	assert.Equal(t, "recovery timelines", opps.Opportunities[0].Topic)

	rec = router.do(http.MethodGet, "/api/intelligence/platform-visibility/weakest?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var weakest struct {
		Weakest []intelligence.PlatformScore `json:"weakest"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &weakest))
	require.Len(t, weakest.Weakest, 1)
	assert.Equal(t, "perplexity", weakest.Weakest[0].Platform)

	rec = router.do(http.MethodGet, "/api/intelligence/coverage-health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var health struct {
		CoverageHealth float64 `json:"coverage_health"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, 63.0, health.CoverageHealth)
}

func TestIntelligenceSnapshotNoAudits(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := router.do(http.MethodGet, "/api/intelligence/snapshot", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGenerateReportDisabled(t *testing.T) {
	router, _ := setupTestRouter(t)
	got := runAuditToCompletion(t, router)

	rec := router.do(http.MethodPost, "/api/discovery-audits/"+got.ID+"/report", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetLatestAuditNotFound(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := router.do(http.MethodGet, "/api/discovery-audits/latest", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteAudit(t *testing.T) {
	router, _ := setupTestRouter(t)

	body := []byte(`{"domain":"clinic.example.com","target_keywords":["knee replacement"],"platforms":["chatgpt"]}`)
	rec := router.do(http.MethodPost, "/api/discovery-audits", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created domain.Audit
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = router.do(http.MethodDelete, "/api/discovery-audits/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = router.do(http.MethodGet, "/api/discovery-audits/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPreviewDistribution(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := router.do(http.MethodPost, "/api/leads/batches/batch-1/preview-distribution?connection_id=conn-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var plan domain.DistributionPlan
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &plan))
	assert.Equal(t, 2, plan.TotalCompanies())
	assert.Equal(t, 1, plan.Uncategorized.Companies)
}

func TestPreviewDistributionUnknownBatch(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := router.do(http.MethodPost, "/api/leads/batches/nope/preview-distribution", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSyncBatch(t *testing.T) {
	router, pusher := setupTestRouter(t)

	body := []byte(`{"connection_id":"conn-1","options":{"mark_subscribed_status":true}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/leads/batches/batch-1/sync", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", "tenant-1")
	req.Header.Set("Idempotency-Key", "sync-2026-08")
	rec := httptest.NewRecorder()
	router.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var result domain.SyncResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 1, result.TotalSynced)
	assert.Equal(t, 1, pusher.pushed)
}

func TestSyncBatchRequiresIdempotencyKey(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := router.do(http.MethodPost, "/api/leads/batches/batch-1/sync",
		[]byte(`{"connection_id":"conn-1"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
