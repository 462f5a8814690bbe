package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/beaivisible/discovery-engine/internal/domain"
)

type syncRequest struct {
	ConnectionID   string             `json:"connection_id"`
	Options        domain.SyncOptions `json:"options"`
	IdempotencyKey string             `json:"idempotency_key"`
}

// PreviewDistribution computes the distribution plan for a lead batch
// without pushing anything to the destination
func (h *Handlers) PreviewDistribution(w http.ResponseWriter, r *http.Request) {
	tenantID, err := GetTenantIDFromRequest(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, err.Error())
		return
	}

	connectionID := r.URL.Query().Get("connection_id")
	plan, err := h.distribution.Preview(r.Context(), tenantID, chi.URLParam(r, "batchID"), connectionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, plan)
}

// SyncBatch matches a lead batch against the tenant's ICP categories and
// pushes each category's contacts to its destination list
func (h *Handlers) SyncBatch(w http.ResponseWriter, r *http.Request) {
	tenantID, err := GetTenantIDFromRequest(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, err.Error())
		return
	}

	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Header takes precedence over the body field.
	idemKey := r.Header.Get("Idempotency-Key")
	if idemKey == "" {
		idemKey = req.IdempotencyKey
	}

	result, err := h.distribution.ExecuteSync(r.Context(), tenantID, chi.URLParam(r, "batchID"),
		req.ConnectionID, req.Options, idemKey)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}
