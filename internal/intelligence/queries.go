package intelligence

import (
	"sort"

	"github.com/beaivisible/discovery-engine/internal/domain"
)

// FilterOpportunities returns the snapshot's opportunities, optionally
// restricted to one priority tier and capped at limit. Zero or negative
// limit means no cap. Input order (priority, then impact) is preserved.
func FilterOpportunities(snap *domain.IntelligenceSnapshot, priority domain.OpportunityPriority, limit int) []domain.Opportunity {
	out := make([]domain.Opportunity, 0, len(snap.Opportunities))
	for _, o := range snap.Opportunities {
		if priority != "" && o.Priority != priority {
			continue
		}
		out = append(out, o)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// PlatformScore is one platform's visibility score.
type PlatformScore struct {
	Platform string  `json:"platform"`
	Score    float64 `json:"score"`
}

// VisibilityScores returns the snapshot's per-platform scores, optionally
// restricted to one platform, sorted by platform name for stable output.
func VisibilityScores(snap *domain.IntelligenceSnapshot, platform string) []PlatformScore {
	out := make([]PlatformScore, 0, len(snap.PlatformVisibility))
	for name, score := range snap.PlatformVisibility {
		if platform != "" && name != platform {
			continue
		}
		out = append(out, PlatformScore{Platform: name, Score: score})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Platform < out[j].Platform })
	return out
}

// WeakestPlatforms returns up to n platforms ordered by ascending score,
// ties broken by platform name. These are the platforms with the most
// room for visibility improvement.
func WeakestPlatforms(snap *domain.IntelligenceSnapshot, n int) []PlatformScore {
	scores := VisibilityScores(snap, "")
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score < scores[j].Score
		}
		return scores[i].Platform < scores[j].Platform
	})
	if n > 0 && len(scores) > n {
		scores = scores[:n]
	}
	return scores
}
