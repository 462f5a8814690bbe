package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/beaivisible/discovery-engine/internal/domain"
	"github.com/beaivisible/discovery-engine/internal/oracle"
	"github.com/beaivisible/discovery-engine/internal/pkg/distlock"
	"github.com/beaivisible/discovery-engine/internal/pkg/logger"
)

// Prober dispatches visibility probes and reports their status.
// oracle.Client satisfies it.
type Prober interface {
	StartProbe(ctx context.Context, req oracle.ProbeRequest) (string, error)
	GetProbeStatus(ctx context.Context, handle string) (*oracle.ProbeStatus, error)
}

// Snapshotter builds the intelligence snapshot for a completed probe.
// intelligence.Aggregator satisfies it.
type Snapshotter interface {
	Snapshot(ctx context.Context, auditID, probeHandle string) (*domain.IntelligenceSnapshot, error)
}

// ReportGenerator produces the discovery report for a completed audit.
// Report generation is best-effort: a failure here never fails the audit.
type ReportGenerator interface {
	Generate(ctx context.Context, a *domain.Audit, snap *domain.IntelligenceSnapshot) (*domain.DiscoveryReport, error)
}

// LockFactory builds a distributed lock for the given key. Production
// wiring closes over the Redis client and DB handle via distlock.NewLock.
type LockFactory func(key string, ttl time.Duration) distlock.DistLock

// Service implements audit business logic. All public methods are safe
// for concurrent use if the underlying repository is concurrency-safe.
type Service struct {
	repo      Repository
	snapshots SnapshotStore
	prober    Prober
	intel     Snapshotter
	reports   ReportGenerator
	newLock   LockFactory

	pollInterval time.Duration
	maxAttempts  int
	lockTTL      time.Duration
}

// Options tunes the polling loop and run lock.
type Options struct {
	PollInterval time.Duration
	MaxAttempts  int
	LockTTL      time.Duration
}

// NewService creates an audit service. reports may be nil when report
// generation is disabled.
func NewService(repo Repository, snapshots SnapshotStore, prober Prober, intel Snapshotter, reports ReportGenerator, newLock LockFactory, opts Options) *Service {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 60
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 30 * time.Minute
	}
	return &Service{
		repo:         repo,
		snapshots:    snapshots,
		prober:       prober,
		intel:        intel,
		reports:      reports,
		newLock:      newLock,
		pollInterval: opts.PollInterval,
		maxAttempts:  opts.MaxAttempts,
		lockTTL:      opts.LockTTL,
	}
}

// Get returns a single audit.
func (s *Service) Get(ctx context.Context, tenantID, id string) (*domain.Audit, error) {
	return s.repo.Get(ctx, tenantID, id)
}

// Latest returns the tenant's most recent audit.
func (s *Service) Latest(ctx context.Context, tenantID string) (*domain.Audit, error) {
	return s.repo.Latest(ctx, tenantID)
}

// List returns audits matching the filter.
func (s *Service) List(ctx context.Context, tenantID string, f ListFilter) ([]domain.Audit, int, error) {
	return s.repo.List(ctx, tenantID, f)
}

// Create validates and persists a new audit in pending status.
func (s *Service) Create(ctx context.Context, tenantID string, input CreateInput) (*domain.Audit, error) {
	if input.Domain == "" {
		return nil, fmt.Errorf("domain is required")
	}
	if len(input.TargetKeywords) == 0 {
		return nil, fmt.Errorf("at least one target keyword is required")
	}
	if len(input.Platforms) == 0 {
		return nil, fmt.Errorf("at least one platform is required")
	}

	a := &domain.Audit{
		ID:             uuid.New().String(),
		TenantID:       tenantID,
		Domain:         input.Domain,
		TargetKeywords: input.TargetKeywords,
		Platforms:      input.Platforms,
		Status:         domain.AuditPending,
	}

	id, err := s.repo.Create(ctx, a)
	if err != nil {
		return nil, err
	}
	a.ID = id
	return a, nil
}

// Delete removes a pending or failed audit. Running audits must finish
// first; completed audits are kept because their snapshot and report are
// still served.
func (s *Service) Delete(ctx context.Context, tenantID, id string) error {
	a, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}
	switch a.Status {
	case domain.AuditRunning:
		return ErrAlreadyRunning
	case domain.AuditCompleted:
		return ErrTerminal
	}
	return s.repo.Delete(ctx, tenantID, id)
}

// Run dispatches a pending audit: it transitions the audit to running,
// starts the probe at the oracle, and returns. Completion is driven in
// the background and observed by the caller through Latest/Get polling.
// Only one audit may run per tenant at a time; a second Run while one is
// in flight fails with ErrAlreadyRunning.
func (s *Service) Run(ctx context.Context, tenantID, id string) (*domain.Audit, error) {
	a, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if a.IsTerminal() {
		return nil, ErrTerminal
	}
	if a.Status == domain.AuditRunning {
		return nil, ErrAlreadyRunning
	}

	lock := s.newLock(fmt.Sprintf("audit:run:%s", tenantID), s.lockTTL)
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !acquired {
		return nil, ErrAlreadyRunning
	}

	// The database transition is the authority even when the lock
	// misbehaves (expired TTL, Redis flush).
	if err := s.repo.TransitionToRunning(ctx, tenantID, id); err != nil {
		s.releaseLock(lock, tenantID)
		return nil, err
	}

	handle, err := s.prober.StartProbe(ctx, oracle.ProbeRequest{
		TenantID:  tenantID,
		Domain:    a.Domain,
		Keywords:  a.TargetKeywords,
		Platforms: a.Platforms,
	})
	if err != nil {
		s.finalize(ctx, tenantID, id, domain.AuditFailed, fmt.Sprintf("probe dispatch failed: %v", err))
		s.releaseLock(lock, tenantID)
		return nil, fmt.Errorf("start probe: %w", err)
	}
	if err := s.repo.SetProbeHandle(ctx, tenantID, id, handle); err != nil {
		s.finalize(ctx, tenantID, id, domain.AuditFailed, fmt.Sprintf("record probe handle: %v", err))
		s.releaseLock(lock, tenantID)
		return nil, err
	}

	logger.Info("audit probe dispatched",
		"tenant_id", tenantID, "audit_id", id, "probe_handle", handle)

	// The request context ends when the caller's request does; the
	// probe outlives it.
	go s.complete(context.Background(), lock, tenantID, id, handle)

	return s.repo.Get(ctx, tenantID, id)
}

// complete polls the dispatched probe to a terminal state, persists the
// intelligence snapshot, finalizes the audit, and generates the report.
// Errors here land on the audit record, not on any caller.
func (s *Service) complete(ctx context.Context, lock distlock.DistLock, tenantID, id, handle string) {
	defer s.releaseLock(lock, tenantID)

	status, err := s.waitForProbe(ctx, handle)
	if err != nil {
		s.finalize(ctx, tenantID, id, domain.AuditFailed, err.Error())
		return
	}
	if status.State == oracle.ProbeFailed {
		msg := status.ErrorMessage
		if msg == "" {
			msg = "probe failed"
		}
		s.finalize(ctx, tenantID, id, domain.AuditFailed, msg)
		return
	}

	snap, err := s.intel.Snapshot(ctx, id, handle)
	if err != nil {
		s.finalize(ctx, tenantID, id, domain.AuditFailed, fmt.Sprintf("build snapshot: %v", err))
		return
	}
	if err := s.snapshots.SaveSnapshot(ctx, tenantID, snap); err != nil {
		s.finalize(ctx, tenantID, id, domain.AuditFailed, fmt.Sprintf("persist snapshot: %v", err))
		return
	}

	s.finalize(ctx, tenantID, id, domain.AuditCompleted, "")

	// Report generation is best-effort. The audit stays completed even
	// when the report cannot be produced.
	if s.reports != nil {
		completed, err := s.repo.Get(ctx, tenantID, id)
		if err != nil {
			logger.Error("failed to reload completed audit for report",
				"tenant_id", tenantID, "audit_id", id, "error", err.Error())
			return
		}
		if _, rerr := s.reports.Generate(ctx, completed, snap); rerr != nil {
			logger.Warn("report generation failed",
				"tenant_id", tenantID, "audit_id", id, "error", rerr.Error())
		}
	}
}

func (s *Service) releaseLock(lock distlock.DistLock, tenantID string) {
	if err := lock.Release(context.Background()); err != nil {
		logger.Warn("failed to release run lock", "tenant_id", tenantID, "error", err.Error())
	}
}

// Snapshot returns the persisted intelligence snapshot of an audit.
func (s *Service) Snapshot(ctx context.Context, tenantID, auditID string) (*domain.IntelligenceSnapshot, error) {
	return s.snapshots.GetSnapshot(ctx, tenantID, auditID)
}

// WaitForCompletion polls the tenant's latest audit at the configured
// interval until it reaches a terminal state. It is a convenience for
// callers that cannot poll themselves; it never mutates the audit. When
// the attempt budget runs out the audit is returned as-is alongside
// ErrPollTimeout, so the caller can distinguish "still running" from a
// real failure.
func (s *Service) WaitForCompletion(ctx context.Context, tenantID string) (*domain.Audit, error) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	var last *domain.Audit
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		a, err := s.repo.Latest(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		if a.IsTerminal() {
			return a, nil
		}
		last = a

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
		}
	}

	return last, ErrPollTimeout
}

// waitForProbe polls the oracle at a fixed interval until the probe
// reaches a terminal state or the attempt budget is exhausted. Transient
// status-poll errors consume an attempt instead of aborting the run.
func (s *Service) waitForProbe(ctx context.Context, handle string) (*oracle.ProbeStatus, error) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		status, err := s.prober.GetProbeStatus(ctx, handle)
		if err != nil {
			logger.Warn("probe status poll failed",
				"probe_handle", handle, "attempt", attempt, "error", err.Error())
			continue
		}
		if status.Terminal() {
			return status, nil
		}
	}

	return nil, ErrPollTimeout
}

func (s *Service) finalize(ctx context.Context, tenantID, id string, status domain.AuditStatus, errMsg string) {
	// Finalize must land even when the request context is already
	// cancelled, otherwise the audit is stuck in running.
	if ctx.Err() != nil {
		ctx = context.Background()
	}
	if err := s.repo.Finalize(ctx, tenantID, id, status, errMsg); err != nil {
		logger.Error("failed to finalize audit",
			"tenant_id", tenantID, "audit_id", id, "status", string(status), "error", err.Error())
	}
}

// CreateInput holds the fields for creating a new audit.
type CreateInput struct {
	Domain         string   `json:"domain"`
	TargetKeywords []string `json:"target_keywords"`
	Platforms      []string `json:"platforms"`
}
