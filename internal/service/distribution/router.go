package distribution

import (
	"sort"

	"github.com/beaivisible/discovery-engine/internal/domain"
)

// Assignment pairs a company with its match outcome. Contacts follow
// their company's category.
type Assignment struct {
	Company domain.Company
	Result  domain.MatchResult
}

// Router turns a matched batch into a distribution plan.
type Router struct {
	matcher Matcher
}

// NewRouter creates a router over the given matcher.
func NewRouter(matcher Matcher) *Router {
	return &Router{matcher: matcher}
}

// Assign scores every company in order. The output order mirrors the
// input order, which keeps downstream sync logs reproducible.
func (r *Router) Assign(companies []domain.Company, categories []domain.ICPCategory) []Assignment {
	out := make([]Assignment, 0, len(companies))
	for _, c := range companies {
		out = append(out, Assignment{
			Company: c,
			Result:  r.matcher.Score(c.ID, c.Profile, categories),
		})
	}
	return out
}

// Plan folds assignments into a distribution plan. Every company lands in
// exactly one bucket, so categorized plus uncategorized counts always add
// up to the batch size.
func (r *Router) Plan(batchID, connectionID string, assignments []Assignment, categories []domain.ICPCategory) *domain.DistributionPlan {
	plan := &domain.DistributionPlan{
		BatchID:      batchID,
		ConnectionID: connectionID,
		Categorized:  make(map[string]domain.CategoryBucket),
	}

	byName := make(map[string]domain.ICPCategory, len(categories))
	for _, cat := range categories {
		byName[cat.Name] = cat
	}

	confidenceSums := make(map[string]float64)
	reasons := make(map[string]struct{})

	for _, a := range assignments {
		if !a.Result.Categorized() {
			plan.Uncategorized.Companies++
			plan.Uncategorized.Contacts += len(a.Company.Contacts)
			if a.Result.Reason != "" {
				reasons[a.Result.Reason] = struct{}{}
			}
			continue
		}

		cat := byName[a.Result.Category]
		bucket := plan.Categorized[cat.Name]
		bucket.Companies++
		bucket.Contacts += len(a.Company.Contacts)
		bucket.ListID = cat.ListID
		bucket.ListName = cat.ListName
		plan.Categorized[cat.Name] = bucket
		confidenceSums[cat.Name] += a.Result.Confidence
	}

	for name, bucket := range plan.Categorized {
		bucket.AvgConfidence = confidenceSums[name] / float64(bucket.Companies)
		plan.Categorized[name] = bucket
	}

	for reason := range reasons {
		plan.Uncategorized.Reasons = append(plan.Uncategorized.Reasons, reason)
	}
	sort.Strings(plan.Uncategorized.Reasons)

	return plan
}

// Preview matches the batch and returns its distribution plan. Pure:
// repeatable and side-effect-free for the same inputs.
func (r *Router) Preview(batchID, connectionID string, companies []domain.Company, categories []domain.ICPCategory) *domain.DistributionPlan {
	return r.Plan(batchID, connectionID, r.Assign(companies, categories), categories)
}
