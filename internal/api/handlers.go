package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/beaivisible/discovery-engine/internal/reports"
	"github.com/beaivisible/discovery-engine/internal/service/audit"
	"github.com/beaivisible/discovery-engine/internal/service/distribution"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	audits       *audit.Service
	distribution *distribution.Service
	reports      *reports.Generator
	db           *sql.DB
}

// NewHandlers creates a new Handlers instance
func NewHandlers(audits *audit.Service, dist *distribution.Service, db *sql.DB) *Handlers {
	return &Handlers{
		audits:       audits,
		distribution: dist,
		db:           db,
	}
}

// SetReportGenerator sets the report generator
func (h *Handlers) SetReportGenerator(gen *reports.Generator) {
	h.reports = gen
}

// Response helpers

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps service sentinel errors onto HTTP statuses.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, audit.ErrNotFound),
		errors.Is(err, distribution.ErrBatchNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, audit.ErrAlreadyRunning),
		errors.Is(err, audit.ErrTerminal):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, distribution.ErrNoCategories),
		errors.Is(err, distribution.ErrEmptyBatch),
		errors.Is(err, distribution.ErrMissingIdemKey):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

// Health check

// HealthCheck returns the health status of the API
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	if h.db != nil {
		if err := h.db.PingContext(r.Context()); err != nil {
			status = "degraded"
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now(),
	})
}
