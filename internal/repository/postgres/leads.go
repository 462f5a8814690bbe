package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/beaivisible/discovery-engine/internal/domain"
	"github.com/beaivisible/discovery-engine/internal/service/distribution"
)

// LeadRepo implements distribution.Repository against PostgreSQL.
type LeadRepo struct{ db *sql.DB }

// NewLeadRepo creates a Postgres-backed lead repository.
func NewLeadRepo(db *sql.DB) *LeadRepo { return &LeadRepo{db: db} }

func (r *LeadRepo) GetBatch(ctx context.Context, tenantID, batchID string) (*domain.LeadBatch, error) {
	b := &domain.LeadBatch{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, status, created_at
		FROM lead_batches
		WHERE id = $1 AND tenant_id = $2
	`, batchID, tenantID).Scan(&b.ID, &b.TenantID, &b.Name, &b.Status, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, distribution.ErrBatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get batch: %w", err)
	}
	return b, nil
}

// Companies returns the batch's companies with contacts attached. The
// fixed created_at/id ordering is what keeps sync runs reproducible.
func (r *LeadRepo) Companies(ctx context.Context, tenantID, batchID string) ([]domain.Company, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, batch_id, name, COALESCE(website,''),
		       COALESCE(industry,''), COALESCE(location,''), COALESCE(notes,''),
		       attributes, created_at
		FROM lead_companies
		WHERE batch_id = $1 AND tenant_id = $2
		ORDER BY created_at, id
	`, batchID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	defer rows.Close()

	var companies []domain.Company
	index := make(map[string]int)
	for rows.Next() {
		var c domain.Company
		if err := rows.Scan(
			&c.ID, &c.TenantID, &c.BatchID, &c.Name, &c.Website,
			&c.Profile.Industry, &c.Profile.Location, &c.Profile.Notes,
			pq.Array(&c.Profile.Attributes), &c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan company: %w", err)
		}
		index[c.ID] = len(companies)
		companies = append(companies, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate companies: %w", err)
	}
	if len(companies) == 0 {
		return companies, nil
	}

	ids := make([]string, len(companies))
	for i, c := range companies {
		ids[i] = c.ID
	}

	contactRows, err := r.db.QueryContext(ctx, `
		SELECT id, company_id, COALESCE(name,''), COALESCE(title,''), COALESCE(email,'')
		FROM lead_contacts
		WHERE company_id = ANY($1)
		ORDER BY company_id, id
	`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer contactRows.Close()

	for contactRows.Next() {
		var ct domain.Contact
		if err := contactRows.Scan(&ct.ID, &ct.CompanyID, &ct.Name, &ct.Title, &ct.Email); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		if i, ok := index[ct.CompanyID]; ok {
			companies[i].Contacts = append(companies[i].Contacts, ct)
		}
	}
	if err := contactRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contacts: %w", err)
	}

	return companies, nil
}

// Categories returns the tenant's ICP categories in definition order,
// which is the tie-break order for equal-confidence matches.
func (r *LeadRepo) Categories(ctx context.Context, tenantID string) ([]domain.ICPCategory, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT name, tenant_id, COALESCE(description,''),
		       demographics, pain_points, goals,
		       COALESCE(list_id,''), COALESCE(list_name,''),
		       COALESCE(threshold, 0), position
		FROM icp_categories
		WHERE tenant_id = $1
		ORDER BY position
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []domain.ICPCategory
	for rows.Next() {
		var c domain.ICPCategory
		if err := rows.Scan(
			&c.Name, &c.TenantID, &c.Description,
			pq.Array(&c.Attributes.Demographics),
			pq.Array(&c.Attributes.PainPoints),
			pq.Array(&c.Attributes.Goals),
			&c.ListID, &c.ListName, &c.Threshold, &c.Position,
		); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return out, nil
}
