package audit

import "errors"

// Sentinel errors for the audit service layer.
var (
	ErrNotFound       = errors.New("audit not found")
	ErrAlreadyRunning = errors.New("an audit is already running for this tenant")
	ErrTerminal       = errors.New("audit is in a terminal state")
	ErrPollTimeout    = errors.New("audit did not complete within the polling budget")
)
