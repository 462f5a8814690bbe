package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/beaivisible/discovery-engine/internal/domain"
	"github.com/beaivisible/discovery-engine/internal/service/audit"
)

// CreateAudit creates a pending discovery audit
func (h *Handlers) CreateAudit(w http.ResponseWriter, r *http.Request) {
	tenantID, err := GetTenantIDFromRequest(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, err.Error())
		return
	}

	var input audit.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a, err := h.audits.Create(r.Context(), tenantID, input)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, a)
}

// RunAudit dispatches the probe for a pending audit. The call returns
// as soon as the probe is dispatched; callers poll the audit to observe
// completion.
func (h *Handlers) RunAudit(w http.ResponseWriter, r *http.Request) {
	tenantID, err := GetTenantIDFromRequest(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, err.Error())
		return
	}

	a, err := h.audits.Run(r.Context(), tenantID, chi.URLParam(r, "auditID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusAccepted, a)
}

// GetAudit returns a single audit
func (h *Handlers) GetAudit(w http.ResponseWriter, r *http.Request) {
	tenantID, err := GetTenantIDFromRequest(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, err.Error())
		return
	}

	a, err := h.audits.Get(r.Context(), tenantID, chi.URLParam(r, "auditID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, a)
}

// GetLatestAudit returns the tenant's most recent audit
func (h *Handlers) GetLatestAudit(w http.ResponseWriter, r *http.Request) {
	tenantID, err := GetTenantIDFromRequest(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, err.Error())
		return
	}

	a, err := h.audits.Latest(r.Context(), tenantID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, a)
}

// ListAudits returns the tenant's audits with optional status filtering
func (h *Handlers) ListAudits(w http.ResponseWriter, r *http.Request) {
	tenantID, err := GetTenantIDFromRequest(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, err.Error())
		return
	}

	f := audit.ListFilter{Status: r.URL.Query().Get("status")}
	if v := r.URL.Query().Get("limit"); v != "" {
		f.Limit, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		f.Offset, _ = strconv.Atoi(v)
	}

	audits, total, err := h.audits.List(r.Context(), tenantID, f)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"audits": audits,
		"total":  total,
	})
}

// DeleteAudit removes an audit unless it is currently running
func (h *Handlers) DeleteAudit(w http.ResponseWriter, r *http.Request) {
	tenantID, err := GetTenantIDFromRequest(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, err.Error())
		return
	}

	if err := h.audits.Delete(r.Context(), tenantID, chi.URLParam(r, "auditID")); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// GetIntelligenceSnapshot returns the aggregated intelligence for a
// completed audit
func (h *Handlers) GetIntelligenceSnapshot(w http.ResponseWriter, r *http.Request) {
	tenantID, err := GetTenantIDFromRequest(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, err.Error())
		return
	}

	snap, err := h.audits.Snapshot(r.Context(), tenantID, chi.URLParam(r, "auditID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, snap)
}

// GenerateReport regenerates the discovery report for a completed audit.
// Report failures never touch the audit record.
func (h *Handlers) GenerateReport(w http.ResponseWriter, r *http.Request) {
	tenantID, err := GetTenantIDFromRequest(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if h.reports == nil {
		respondError(w, http.StatusNotFound, "report generation is disabled")
		return
	}

	auditID := chi.URLParam(r, "auditID")
	a, err := h.audits.Get(r.Context(), tenantID, auditID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if a.Status != domain.AuditCompleted {
		respondError(w, http.StatusConflict, "audit has not completed")
		return
	}

	snap, err := h.audits.Snapshot(r.Context(), tenantID, auditID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	rep, err := h.reports.Generate(r.Context(), a, snap)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, rep)
}

// GetReport returns the generated discovery report for an audit
func (h *Handlers) GetReport(w http.ResponseWriter, r *http.Request) {
	tenantID, err := GetTenantIDFromRequest(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if h.reports == nil {
		respondError(w, http.StatusNotFound, "report generation is disabled")
		return
	}

	rep, err := h.reports.Get(r.Context(), tenantID, chi.URLParam(r, "auditID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, rep)
}
