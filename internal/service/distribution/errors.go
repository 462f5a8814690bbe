package distribution

import "errors"

// Sentinel errors for the distribution service layer.
var (
	ErrBatchNotFound  = errors.New("lead batch not found")
	ErrNoCategories   = errors.New("tenant has no ICP categories configured")
	ErrEmptyBatch     = errors.New("lead batch has no companies")
	ErrMissingIdemKey = errors.New("idempotency key is required")
)
