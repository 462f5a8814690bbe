package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/beaivisible/discovery-engine/internal/domain"
	"github.com/beaivisible/discovery-engine/internal/service/audit"
)

// ReportRepo implements reports.Store against PostgreSQL.
type ReportRepo struct{ db *sql.DB }

// NewReportRepo creates a Postgres-backed report store.
func NewReportRepo(db *sql.DB) *ReportRepo { return &ReportRepo{db: db} }

// SaveReport upserts the report for its audit. Regenerating a report
// replaces the previous one.
func (r *ReportRepo) SaveReport(ctx context.Context, rep *domain.DiscoveryReport) error {
	topGaps, err := json.Marshal(rep.TopGaps)
	if err != nil {
		return fmt.Errorf("encode top gaps: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO discovery_reports
			(id, audit_id, tenant_id, overall_visibility_score, extracted_keywords, top_gaps, archive_key, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7,''), $8)
		ON CONFLICT (audit_id) DO UPDATE SET
			overall_visibility_score = EXCLUDED.overall_visibility_score,
			extracted_keywords = EXCLUDED.extracted_keywords,
			top_gaps = EXCLUDED.top_gaps,
			archive_key = EXCLUDED.archive_key,
			generated_at = EXCLUDED.generated_at
	`, rep.ID, rep.AuditID, rep.TenantID, rep.OverallVisibility,
		pq.Array(rep.ExtractedKeywords), topGaps, rep.ArchiveKey, rep.GeneratedAt)
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

func (r *ReportRepo) GetReport(ctx context.Context, tenantID, auditID string) (*domain.DiscoveryReport, error) {
	rep := &domain.DiscoveryReport{}
	var topGaps []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT id, audit_id, tenant_id, overall_visibility_score,
		       extracted_keywords, top_gaps, COALESCE(archive_key,''), generated_at
		FROM discovery_reports
		WHERE audit_id = $1 AND tenant_id = $2
	`, auditID, tenantID).Scan(
		&rep.ID, &rep.AuditID, &rep.TenantID, &rep.OverallVisibility,
		pq.Array(&rep.ExtractedKeywords), &topGaps, &rep.ArchiveKey, &rep.GeneratedAt,
	)
	if err == sql.ErrNoRows {
		return nil, audit.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}

	if err := json.Unmarshal(topGaps, &rep.TopGaps); err != nil {
		return nil, fmt.Errorf("decode top gaps: %w", err)
	}
	return rep, nil
}

// SaveTenantKeywords merges extracted keywords into the tenant's keyword
// set, keeping previously learned keywords.
func (r *ReportRepo) SaveTenantKeywords(ctx context.Context, tenantID string, keywords []string) error {
	if len(keywords) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tenant_keywords (tenant_id, keywords, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (tenant_id) DO UPDATE SET
			keywords = (
				SELECT ARRAY(
					SELECT DISTINCT kw FROM unnest(tenant_keywords.keywords || EXCLUDED.keywords) AS kw
				)
			),
			updated_at = NOW()
	`, tenantID, pq.Array(keywords))
	if err != nil {
		return fmt.Errorf("save tenant keywords: %w", err)
	}
	return nil
}
