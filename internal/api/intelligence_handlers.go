package api

import (
	"net/http"
	"strconv"

	"github.com/beaivisible/discovery-engine/internal/domain"
	"github.com/beaivisible/discovery-engine/internal/intelligence"
)

// snapshotForRequest resolves the snapshot to read: the audit_id query
// param when present, otherwise the tenant's latest audit. A nil return
// means the response was already written.
func (h *Handlers) snapshotForRequest(w http.ResponseWriter, r *http.Request) *domain.IntelligenceSnapshot {
	tenantID, err := GetTenantIDFromRequest(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, err.Error())
		return nil
	}

	auditID := r.URL.Query().Get("audit_id")
	if auditID == "" {
		latest, err := h.audits.Latest(r.Context(), tenantID)
		if err != nil {
			respondServiceError(w, err)
			return nil
		}
		auditID = latest.ID
	}

	snap, err := h.audits.Snapshot(r.Context(), tenantID, auditID)
	if err != nil {
		respondServiceError(w, err)
		return nil
	}
	return snap
}

// GetSnapshot returns the full intelligence snapshot
func (h *Handlers) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	snap := h.snapshotForRequest(w, r)
	if snap == nil {
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// GetOpportunities returns ranked content-gap opportunities, optionally
// filtered by priority tier and capped by limit
func (h *Handlers) GetOpportunities(w http.ResponseWriter, r *http.Request) {
	snap := h.snapshotForRequest(w, r)
	if snap == nil {
		return
	}

	priority := domain.OpportunityPriority(r.URL.Query().Get("priority"))
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	opps := intelligence.FilterOpportunities(snap, priority, limit)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"audit_id":      snap.AuditID,
		"opportunities": opps,
		"total":         len(opps),
	})
}

// GetPlatformVisibility returns per-platform visibility scores
func (h *Handlers) GetPlatformVisibility(w http.ResponseWriter, r *http.Request) {
	snap := h.snapshotForRequest(w, r)
	if snap == nil {
		return
	}

	scores := intelligence.VisibilityScores(snap, r.URL.Query().Get("platform"))
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"audit_id": snap.AuditID,
		"scores":   scores,
	})
}

// GetWeakestPlatforms returns the platforms with the lowest visibility
func (h *Handlers) GetWeakestPlatforms(w http.ResponseWriter, r *http.Request) {
	snap := h.snapshotForRequest(w, r)
	if snap == nil {
		return
	}

	limit := 3
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"audit_id": snap.AuditID,
		"weakest":  intelligence.WeakestPlatforms(snap, limit),
	})
}

// GetCompetitiveAnalysis returns the competitive ranking list
func (h *Handlers) GetCompetitiveAnalysis(w http.ResponseWriter, r *http.Request) {
	snap := h.snapshotForRequest(w, r)
	if snap == nil {
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"audit_id":    snap.AuditID,
		"competitive": snap.Competitive,
	})
}

// GetCoverageHealth returns the topic-coverage health metric
func (h *Handlers) GetCoverageHealth(w http.ResponseWriter, r *http.Request) {
	snap := h.snapshotForRequest(w, r)
	if snap == nil {
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"audit_id":        snap.AuditID,
		"coverage_health": snap.CoverageHealth,
	})
}
