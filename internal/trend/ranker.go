package trend

import (
	"math"
	"sort"

	"TrendScanner/internal/config"
	"TrendScanner/internal/domain"
)

// ImportanceRanker orders an owner's topics by a blended importance score.
// Velocity contributes by magnitude: an accelerating fall is as worth
// surfacing as an accelerating rise.
type ImportanceRanker struct {
	termWeight       float64
	engagementWeight float64
	velocityWeight   float64
}

// NewImportanceRanker binds the blend weights from configuration.
func NewImportanceRanker(cfg config.RankingConfig) *ImportanceRanker {
	return &ImportanceRanker{
		termWeight:       cfg.TermImportanceWeight,
		engagementWeight: cfg.EngagementWeight,
		velocityWeight:   cfg.VelocityWeight,
	}
}

// Rank scores every topic from its trend result and returns entries in
// descending importance, ties broken by topic id ascending. Topics without a
// result rank with zero inputs instead of failing the whole ranking.
func (r *ImportanceRanker) Rank(topics []domain.Topic, results map[string]domain.TrendResult) []domain.RankingEntry {
	entries := make([]domain.RankingEntry, 0, len(topics))
	for _, topic := range topics {
		result := results[topic.ID]
		entries = append(entries, domain.RankingEntry{
			TopicID:           topic.ID,
			Importance:        r.importance(result),
			AvgTermImportance: result.AvgTermImportance,
			AvgEngagement:     result.AvgEngagement,
			Velocity:          result.Velocity,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Importance != entries[j].Importance {
			return entries[i].Importance > entries[j].Importance
		}
		return entries[i].TopicID < entries[j].TopicID
	})
	return entries
}

func (r *ImportanceRanker) importance(result domain.TrendResult) float64 {
	return r.termWeight*result.AvgTermImportance +
		r.engagementWeight*result.AvgEngagement +
		r.velocityWeight*math.Abs(result.Velocity)
}
