package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/beaivisible/discovery-engine/internal/domain"
	"github.com/beaivisible/discovery-engine/internal/service/audit"
)

// AuditRepo implements audit.Repository and audit.SnapshotStore against
// PostgreSQL.
type AuditRepo struct{ db *sql.DB }

// NewAuditRepo creates a Postgres-backed audit repository.
func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{db: db} }

const auditColumns = `
	id, tenant_id, domain, target_keywords, platforms, status,
	COALESCE(error_message,''), COALESCE(probe_handle,''),
	started_at, completed_at, created_at, updated_at`

func scanAudit(row interface{ Scan(...interface{}) error }) (*domain.Audit, error) {
	a := &domain.Audit{}
	err := row.Scan(
		&a.ID, &a.TenantID, &a.Domain,
		pq.Array(&a.TargetKeywords), pq.Array(&a.Platforms),
		&a.Status, &a.ErrorMessage, &a.ProbeHandle,
		&a.StartedAt, &a.CompletedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *AuditRepo) Get(ctx context.Context, tenantID, id string) (*domain.Audit, error) {
	a, err := scanAudit(r.db.QueryRowContext(ctx, `
		SELECT `+auditColumns+`
		FROM discovery_audits
		WHERE id = $1 AND tenant_id = $2
	`, id, tenantID))
	if err == sql.ErrNoRows {
		return nil, audit.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get audit: %w", err)
	}
	return a, nil
}

func (r *AuditRepo) Latest(ctx context.Context, tenantID string) (*domain.Audit, error) {
	a, err := scanAudit(r.db.QueryRowContext(ctx, `
		SELECT `+auditColumns+`
		FROM discovery_audits
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, tenantID))
	if err == sql.ErrNoRows {
		return nil, audit.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest audit: %w", err)
	}
	return a, nil
}

func (r *AuditRepo) List(ctx context.Context, tenantID string, f audit.ListFilter) ([]domain.Audit, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	countQ := `SELECT COUNT(*) FROM discovery_audits WHERE tenant_id = $1`
	countArgs := []interface{}{tenantID}
	if f.Status != "" {
		countQ += ` AND status = $2`
		countArgs = append(countArgs, f.Status)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, countQ, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audits: %w", err)
	}

	q := `
		SELECT ` + auditColumns + `
		FROM discovery_audits
		WHERE tenant_id = $1`
	args := []interface{}{tenantID}
	idx := 2
	if f.Status != "" {
		q += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, f.Status)
		idx++
	}
	q += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list audits: %w", err)
	}
	defer rows.Close()

	var out []domain.Audit
	for rows.Next() {
		a, err := scanAudit(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan audit: %w", err)
		}
		out = append(out, *a)
	}
	return out, total, nil
}

func (r *AuditRepo) Create(ctx context.Context, a *domain.Audit) (string, error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO discovery_audits
			(id, tenant_id, domain, target_keywords, platforms, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	`, a.ID, a.TenantID, a.Domain, pq.Array(a.TargetKeywords), pq.Array(a.Platforms), a.Status)
	if err != nil {
		return "", fmt.Errorf("create audit: %w", err)
	}
	return a.ID, nil
}

func (r *AuditRepo) Delete(ctx context.Context, tenantID, id string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM discovery_audits
		WHERE id = $1 AND tenant_id = $2 AND status IN ('pending', 'failed')
	`, id, tenantID)
	if err != nil {
		return fmt.Errorf("delete audit: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return audit.ErrNotFound
	}
	return nil
}

// TransitionToRunning is the atomic check-and-set behind the one-running-
// audit-per-tenant rule. The guard subquery and the update execute as one
// statement, so two concurrent runs cannot both pass.
func (r *AuditRepo) TransitionToRunning(ctx context.Context, tenantID, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE discovery_audits
		SET status = 'running', started_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2 AND status = 'pending'
		  AND NOT EXISTS (
			SELECT 1 FROM discovery_audits
			WHERE tenant_id = $2 AND status = 'running'
		  )
	`, id, tenantID)
	if err != nil {
		return fmt.Errorf("transition to running: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 1 {
		return nil
	}

	// Zero rows: figure out which invariant blocked the transition.
	a, getErr := r.Get(ctx, tenantID, id)
	if getErr != nil {
		return getErr
	}
	if a.IsTerminal() {
		return audit.ErrTerminal
	}
	return audit.ErrAlreadyRunning
}

func (r *AuditRepo) SetProbeHandle(ctx context.Context, tenantID, id, handle string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE discovery_audits SET probe_handle = $1, updated_at = NOW()
		WHERE id = $2 AND tenant_id = $3
	`, handle, id, tenantID)
	if err != nil {
		return fmt.Errorf("set probe handle: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return audit.ErrNotFound
	}
	return nil
}

func (r *AuditRepo) Finalize(ctx context.Context, tenantID, id string, status domain.AuditStatus, errMsg string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE discovery_audits
		SET status = $1, error_message = NULLIF($2,''), completed_at = NOW(), updated_at = NOW()
		WHERE id = $3 AND tenant_id = $4 AND status = 'running'
	`, status, errMsg, id, tenantID)
	if err != nil {
		return fmt.Errorf("finalize audit: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return audit.ErrNotFound
	}
	return nil
}

// SaveSnapshot upserts the audit's intelligence snapshot. The JSON
// columns keep the oracle payload shape out of the schema.
func (r *AuditRepo) SaveSnapshot(ctx context.Context, tenantID string, snap *domain.IntelligenceSnapshot) error {
	visibility, err := json.Marshal(snap.PlatformVisibility)
	if err != nil {
		return fmt.Errorf("encode visibility: %w", err)
	}
	opportunities, err := json.Marshal(snap.Opportunities)
	if err != nil {
		return fmt.Errorf("encode opportunities: %w", err)
	}
	competitive, err := json.Marshal(snap.Competitive)
	if err != nil {
		return fmt.Errorf("encode competitive: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO intelligence_snapshots
			(audit_id, tenant_id, platform_visibility, opportunities, competitive, coverage_health, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (audit_id) DO UPDATE SET
			platform_visibility = EXCLUDED.platform_visibility,
			opportunities = EXCLUDED.opportunities,
			competitive = EXCLUDED.competitive,
			coverage_health = EXCLUDED.coverage_health,
			generated_at = EXCLUDED.generated_at
	`, snap.AuditID, tenantID, visibility, opportunities, competitive, snap.CoverageHealth, snap.GeneratedAt)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (r *AuditRepo) GetSnapshot(ctx context.Context, tenantID, auditID string) (*domain.IntelligenceSnapshot, error) {
	snap := &domain.IntelligenceSnapshot{}
	var visibility, opportunities, competitive []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT audit_id, platform_visibility, opportunities, competitive, coverage_health, generated_at
		FROM intelligence_snapshots
		WHERE audit_id = $1 AND tenant_id = $2
	`, auditID, tenantID).Scan(
		&snap.AuditID, &visibility, &opportunities, &competitive,
		&snap.CoverageHealth, &snap.GeneratedAt,
	)
	if err == sql.ErrNoRows {
		return nil, audit.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}

	if err := json.Unmarshal(visibility, &snap.PlatformVisibility); err != nil {
		return nil, fmt.Errorf("decode visibility: %w", err)
	}
	if err := json.Unmarshal(opportunities, &snap.Opportunities); err != nil {
		return nil, fmt.Errorf("decode opportunities: %w", err)
	}
	if err := json.Unmarshal(competitive, &snap.Competitive); err != nil {
		return nil, fmt.Errorf("decode competitive: %w", err)
	}
	return snap, nil
}
