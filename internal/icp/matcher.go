// Package icp scores lead entities against a tenant's Ideal-Customer-Profile
// categories. Scoring is deterministic: the same profile and the same
// category set always produce the same assignment and confidence.
package icp

import (
	"fmt"
	"sort"
	"strings"

	"github.com/beaivisible/discovery-engine/internal/domain"
)

// ReasonNoOverlap is the uncategorized reason when the profile shares no
// attribute with any category.
const ReasonNoOverlap = "no attribute overlap"

// Matcher scores entities against ICP category definitions.
type Matcher struct {
	defaultThreshold float64
}

// NewMatcher creates a matcher. defaultThreshold (0-100) applies to
// categories without a per-category threshold; zero falls back to
// domain.DefaultMatchThreshold.
func NewMatcher(defaultThreshold float64) *Matcher {
	if defaultThreshold <= 0 {
		defaultThreshold = domain.DefaultMatchThreshold
	}
	return &Matcher{defaultThreshold: defaultThreshold}
}

// Score computes the best category assignment for one entity.
//
// Confidence is a weighted sum over the three attribute groups
// (demographics, pain points, goals). Each defined group carries equal
// weight; within a group the contribution is the fraction of its defined
// attributes present in the profile. The overall confidence is the
// maximum across categories. Ties go to the earlier-defined category.
func (m *Matcher) Score(entityID string, profile domain.Profile, categories []domain.ICPCategory) domain.MatchResult {
	if len(categories) == 0 {
		return domain.MatchResult{
			EntityID: entityID,
			Reason:   "no ICP categories configured",
		}
	}

	// Evaluate in definition order so the earlier category wins ties.
	ordered := make([]domain.ICPCategory, len(categories))
	copy(ordered, categories)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Position < ordered[j].Position })

	corpus := normalizeProfile(profile)

	var best *domain.ICPCategory
	bestConfidence := -1.0
	for i := range ordered {
		conf := m.categoryConfidence(corpus, ordered[i].Attributes)
		// Strictly greater: an equal score never displaces an
		// earlier-defined category.
		if conf > bestConfidence {
			bestConfidence = conf
			best = &ordered[i]
		}
	}

	if bestConfidence <= 0 {
		return domain.MatchResult{
			EntityID: entityID,
			Reason:   ReasonNoOverlap,
		}
	}

	threshold := m.effectiveThreshold(*best)
	if bestConfidence < threshold {
		return domain.MatchResult{
			EntityID:   entityID,
			Confidence: bestConfidence,
			Reason: fmt.Sprintf("confidence %.0f%% below threshold %.0f%%",
				bestConfidence, threshold),
		}
	}

	return domain.MatchResult{
		EntityID:   entityID,
		Category:   best.Name,
		Confidence: bestConfidence,
	}
}

// ScoreCompany scores a company's profile.
func (m *Matcher) ScoreCompany(c domain.Company, categories []domain.ICPCategory) domain.MatchResult {
	return m.Score(c.ID, c.Profile, categories)
}

func (m *Matcher) effectiveThreshold(c domain.ICPCategory) float64 {
	if c.Threshold > 0 {
		return c.Threshold
	}
	return m.defaultThreshold
}

// categoryConfidence returns the 0-100 confidence of one category for the
// given normalized profile corpus. Groups with no defined attributes are
// excluded from the weighting rather than diluting it.
func (m *Matcher) categoryConfidence(corpus string, attrs domain.ICPAttributes) float64 {
	groups := [][]string{attrs.Demographics, attrs.PainPoints, attrs.Goals}

	defined := 0
	total := 0.0
	for _, group := range groups {
		if len(group) == 0 {
			continue
		}
		defined++
		total += groupFraction(corpus, group)
	}
	if defined == 0 {
		return 0
	}

	return 100 * total / float64(defined)
}

// groupFraction is the fraction of the group's attributes found in the
// corpus. Adding a matched attribute can only increase it, which keeps
// confidence monotonic in attribute overlap.
func groupFraction(corpus string, group []string) float64 {
	matched := 0
	for _, attr := range group {
		if attr == "" {
			continue
		}
		if strings.Contains(corpus, normalizeText(attr)) {
			matched++
		}
	}
	return float64(matched) / float64(len(group))
}

// normalizeProfile flattens a profile into one lowercased, space-collapsed
// text corpus for substring matching.
func normalizeProfile(p domain.Profile) string {
	parts := make([]string, 0, 3+len(p.Attributes))
	parts = append(parts, p.Industry, p.Location, p.Notes)
	parts = append(parts, p.Attributes...)
	return normalizeText(strings.Join(parts, " "))
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
