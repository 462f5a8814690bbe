// Package audit implements discovery audit lifecycle management.
//
// The service layer owns the audit state machine (pending, running,
// completed, failed), the single-running-audit-per-tenant rule, and the
// bounded polling loop that drives a dispatched probe to completion. It
// depends on repository interfaces defined in this package and should
// never import from api/.
//
// Repository implementations live in repository/postgres/.
package audit
