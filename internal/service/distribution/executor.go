package distribution

import (
	"context"
	"sort"
	"sync"

	"github.com/beaivisible/discovery-engine/internal/domain"
	"github.com/beaivisible/discovery-engine/internal/pkg/logger"
	"github.com/beaivisible/discovery-engine/internal/sink"
)

// Executor pushes a planned distribution to the destination sinks.
// Categories run in parallel; one category's sink failure never aborts
// the others.
type Executor struct {
	pusher sink.Pusher
	ledger Ledger
}

// NewExecutor creates an executor over the given sink and ledger.
func NewExecutor(pusher sink.Pusher, ledger Ledger) *Executor {
	return &Executor{pusher: pusher, ledger: ledger}
}

// categoryWork is the per-category push queue, in stable batch order.
type categoryWork struct {
	name     string
	listID   string
	contacts []domain.Contact
}

// Execute pushes each categorized contact to its category's list.
//
// Categories already recorded in the ledger for this idempotency key are
// not re-pushed; their recorded counts are reused. Cancellation stops
// dispatching new categories (reported as Skipped) but lets in-flight
// categories finish, so the returned result reflects real partial
// progress rather than being discarded.
func (e *Executor) Execute(ctx context.Context, tenantID string, plan *domain.DistributionPlan, assignments []Assignment, opts domain.SyncOptions, idemKey string) (*domain.SyncResult, error) {
	if idemKey == "" {
		return nil, ErrMissingIdemKey
	}

	work := buildWork(plan, assignments)

	result := &domain.SyncResult{
		Distribution:   make(map[string]domain.CategorySyncOutcome, len(work)),
		Uncategorized:  plan.Uncategorized.Contacts,
		IdempotencyKey: idemKey,
	}

	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, w := range work {
		select {
		case <-ctx.Done():
			mu.Lock()
			result.Distribution[w.name] = domain.CategorySyncOutcome{Skipped: true}
			mu.Unlock()
			continue
		default:
		}

		wg.Add(1)
		go func(w categoryWork) {
			defer wg.Done()
			outcome := e.executeCategory(ctx, tenantID, w, opts, idemKey)
			mu.Lock()
			result.Distribution[w.name] = outcome
			mu.Unlock()
		}(w)
	}
	wg.Wait()

	result.Success = true
	for _, out := range result.Distribution {
		result.TotalSynced += out.Synced
		if out.Failed > 0 || out.Skipped {
			result.Success = false
		}
	}

	return result, nil
}

// executeCategory pushes one category's contacts in order, honoring the
// idempotency ledger.
func (e *Executor) executeCategory(ctx context.Context, tenantID string, w categoryWork, opts domain.SyncOptions, idemKey string) domain.CategorySyncOutcome {
	if prev, ok, err := e.ledger.Outcome(ctx, tenantID, idemKey, w.name); err != nil {
		logger.Warn("sync ledger read failed, pushing anyway",
			"tenant_id", tenantID, "category", w.name, "error", err.Error())
	} else if ok {
		logger.Info("category already synced for this idempotency key",
			"tenant_id", tenantID, "category", w.name, "idempotency_key", idemKey)
		return *prev
	}

	payload := sink.PushPayload{SendWelcome: opts.SendWelcomeMessage}
	if opts.StoreCategoryOnEntity {
		payload.Category = w.name
	}
	if opts.MarkSubscribedStatus {
		payload.Status = "subscribed"
	}

	var outcome domain.CategorySyncOutcome
	interrupted := false
	for i, contact := range w.contacts {
		if ctx.Err() != nil {
			// Count the contacts we never attempted as failures so
			// synced+failed still covers the whole category.
			outcome.Failed += len(w.contacts) - i
			interrupted = true
			break
		}

		if err := e.pusher.PushContact(ctx, w.listID, contact, payload); err != nil {
			outcome.Failed++
			logger.Warn("contact push failed",
				"tenant_id", tenantID, "category", w.name,
				"contact_id", contact.ID, "error", err.Error())
			continue
		}
		outcome.Synced++
	}

	// An interrupted category is not recorded, so a re-invoked sync with
	// the same key can finish it.
	if !interrupted {
		if err := e.ledger.Record(ctx, tenantID, idemKey, w.name, outcome); err != nil {
			logger.Warn("sync ledger write failed",
				"tenant_id", tenantID, "category", w.name, "error", err.Error())
		}
	}

	return outcome
}

// buildWork groups categorized contacts by category, preserving batch
// order within each category. Categories dispatch in name order so runs
// are reproducible.
func buildWork(plan *domain.DistributionPlan, assignments []Assignment) []categoryWork {
	byName := make(map[string]*categoryWork)
	for _, a := range assignments {
		if !a.Result.Categorized() {
			continue
		}
		w, ok := byName[a.Result.Category]
		if !ok {
			bucket := plan.Categorized[a.Result.Category]
			w = &categoryWork{name: a.Result.Category, listID: bucket.ListID}
			byName[a.Result.Category] = w
		}
		w.contacts = append(w.contacts, a.Company.Contacts...)
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]categoryWork, 0, len(names))
	for _, name := range names {
		out = append(out, *byName[name])
	}
	return out
}
