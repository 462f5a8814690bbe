// Package distribution implements ICP-based lead routing: matching a lead
// batch against a tenant's category definitions, previewing the resulting
// distribution plan, and executing the actual push of each category's
// contacts to its destination list.
//
// Preview is a pure function of its inputs so callers can render a plan
// before committing. Execution is idempotent at category granularity via
// a Redis-backed ledger keyed by (idempotency key, category).
//
// Repository implementations live in repository/postgres/.
package distribution
