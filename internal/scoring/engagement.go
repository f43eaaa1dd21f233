package scoring

import (
	"TrendScanner/internal/config"
	"TrendScanner/internal/domain"
)

// EngagementScorer blends normalized popularity and reply counters into one
// value per document. Popularity weighs more than discussion volume; both
// weights come from configuration so the exact blend stays verifiable.
type EngagementScorer struct {
	popularityWeight float64
	replyWeight      float64
}

// NewEngagementScorer binds the blend weights from configuration.
func NewEngagementScorer(cfg config.ScoringConfig) *EngagementScorer {
	return &EngagementScorer{
		popularityWeight: cfg.PopularityWeight,
		replyWeight:      cfg.ReplyWeight,
	}
}

// Score maps each document id to an engagement value in [0,1]. Counters are
// normalized independently by the batch maximum (0 when the maximum is 0).
// An empty batch yields an empty map.
func (s *EngagementScorer) Score(docs []domain.Document) map[string]float64 {
	scores := make(map[string]float64, len(docs))
	if len(docs) == 0 {
		return scores
	}

	var maxPopularity, maxReplies int
	for _, doc := range docs {
		if doc.Popularity > maxPopularity {
			maxPopularity = doc.Popularity
		}
		if doc.Replies > maxReplies {
			maxReplies = doc.Replies
		}
	}

	for _, doc := range docs {
		var popularity, replies float64
		if maxPopularity > 0 {
			popularity = float64(doc.Popularity) / float64(maxPopularity)
		}
		if maxReplies > 0 {
			replies = float64(doc.Replies) / float64(maxReplies)
		}
		scores[doc.ID] = s.popularityWeight*popularity + s.replyWeight*replies
	}

	return scores
}
