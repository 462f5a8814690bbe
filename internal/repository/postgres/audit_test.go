package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/beaivisible/discovery-engine/internal/domain"
	"github.com/beaivisible/discovery-engine/internal/service/audit"
)

func setupAuditRepo(t *testing.T) (*AuditRepo, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	return NewAuditRepo(db), mock, func() { db.Close() }
}

func auditRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "tenant_id", "domain", "target_keywords", "platforms", "status",
		"error_message", "probe_handle", "started_at", "completed_at",
		"created_at", "updated_at",
	})
}

func TestAuditGet(t *testing.T) {
	repo, mock, cleanup := setupAuditRepo(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery(`SELECT .+ FROM discovery_audits`).
		WithArgs("audit-1", "tenant-1").
		WillReturnRows(auditRows().AddRow(
			"audit-1", "tenant-1", "clinic.example.com",
			pq.StringArray{"knee replacement"}, pq.StringArray{"chatgpt"},
			"pending", "", "", nil, nil, now, now,
		))

	a, err := repo.Get(context.Background(), "tenant-1", "audit-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if a.Status != domain.AuditPending {
		t.Fatalf("expected pending, got %s", a.Status)
	}
	if len(a.TargetKeywords) != 1 || a.TargetKeywords[0] != "knee replacement" {
		t.Fatalf("unexpected keywords: %v", a.TargetKeywords)
	}
}

func TestAuditGetNotFound(t *testing.T) {
	repo, mock, cleanup := setupAuditRepo(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT .+ FROM discovery_audits`).
		WithArgs("missing", "tenant-1").
		WillReturnError(sql.ErrNoRows)

	if _, err := repo.Get(context.Background(), "tenant-1", "missing"); err != audit.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAuditTransitionToRunning(t *testing.T) {
	repo, mock, cleanup := setupAuditRepo(t)
	defer cleanup()

	mock.ExpectExec(`UPDATE discovery_audits`).
		WithArgs("audit-1", "tenant-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.TransitionToRunning(context.Background(), "tenant-1", "audit-1"); err != nil {
		t.Fatalf("transition: %v", err)
	}
}

func TestAuditTransitionToRunningConflict(t *testing.T) {
	repo, mock, cleanup := setupAuditRepo(t)
	defer cleanup()

	now := time.Now()

	// The guarded update touches nothing because another audit holds the
	// running slot.
	mock.ExpectExec(`UPDATE discovery_audits`).
		WithArgs("audit-1", "tenant-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT .+ FROM discovery_audits`).
		WithArgs("audit-1", "tenant-1").
		WillReturnRows(auditRows().AddRow(
			"audit-1", "tenant-1", "clinic.example.com",
			pq.StringArray{"knee replacement"}, pq.StringArray{"chatgpt"},
			"pending", "", "", nil, nil, now, now,
		))

	err := repo.TransitionToRunning(context.Background(), "tenant-1", "audit-1")
	if err != audit.ErrAlreadyRunning {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestAuditTransitionToRunningTerminal(t *testing.T) {
	repo, mock, cleanup := setupAuditRepo(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectExec(`UPDATE discovery_audits`).
		WithArgs("audit-1", "tenant-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT .+ FROM discovery_audits`).
		WithArgs("audit-1", "tenant-1").
		WillReturnRows(auditRows().AddRow(
			"audit-1", "tenant-1", "clinic.example.com",
			pq.StringArray{"knee replacement"}, pq.StringArray{"chatgpt"},
			"completed", "", "probe-1", now, now, now, now,
		))

	err := repo.TransitionToRunning(context.Background(), "tenant-1", "audit-1")
	if err != audit.ErrTerminal {
		t.Fatalf("expected ErrTerminal, got %v", err)
	}
}

func TestAuditFinalize(t *testing.T) {
	repo, mock, cleanup := setupAuditRepo(t)
	defer cleanup()

	mock.ExpectExec(`UPDATE discovery_audits`).
		WithArgs("failed", "rate limited", "audit-1", "tenant-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Finalize(context.Background(), "tenant-1", "audit-1", domain.AuditFailed, "rate limited")
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	repo, mock, cleanup := setupAuditRepo(t)
	defer cleanup()

	generated := time.Now()
	mock.ExpectExec(`INSERT INTO intelligence_snapshots`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	snap := &domain.IntelligenceSnapshot{
		AuditID:            "audit-1",
		PlatformVisibility: map[string]float64{"chatgpt": 62.5},
		Opportunities: []domain.Opportunity{
			{Topic: "knee replacement recovery", Priority: domain.PriorityHigh, ImpactScore: 88},
		},
		CoverageHealth: 71.5,
		GeneratedAt:    generated,
	}
	if err := repo.SaveSnapshot(context.Background(), "tenant-1", snap); err != nil {
		t.Fatalf("save: %v", err)
	}

	mock.ExpectQuery(`SELECT .+ FROM intelligence_snapshots`).
		WithArgs("audit-1", "tenant-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"audit_id", "platform_visibility", "opportunities", "competitive", "coverage_health", "generated_at",
		}).AddRow(
			"audit-1",
			[]byte(`{"chatgpt":62.5}`),
			[]byte(`[{"topic":"knee replacement recovery","description":"","priority":"HIGH","impact_score":88}]`),
			[]byte(`null`),
			71.5, generated,
		))

	got, err := repo.GetSnapshot(context.Background(), "tenant-1", "audit-1")
	if err != nil {
		t.Fatalf("get snapshot: %v", err)
	}
	if got.PlatformVisibility["chatgpt"] != 62.5 {
		t.Fatalf("unexpected visibility: %v", got.PlatformVisibility)
	}
	if len(got.Opportunities) != 1 || got.Opportunities[0].Priority != domain.PriorityHigh {
		t.Fatalf("unexpected opportunities: %v", got.Opportunities)
	}
}

func TestAuditDeleteRunningBlocked(t *testing.T) {
	repo, mock, cleanup := setupAuditRepo(t)
	defer cleanup()

	// The status guard in the delete statement skips running audits.
	mock.ExpectExec(`DELETE FROM discovery_audits`).
		WithArgs("audit-1", "tenant-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Delete(context.Background(), "tenant-1", "audit-1"); err != audit.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
