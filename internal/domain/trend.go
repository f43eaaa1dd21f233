package domain

import "time"

// Topic is a user-tracked subject whose documents are analyzed for trends.
// Topics are created by an external CRUD service; this subsystem only reads them.
type Topic struct {
	ID        string
	OwnerID   string
	Text      string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Document is one unit of text content with engagement counters. Documents are
// populated by the ingestion pipeline and immutable once created.
type Document struct {
	ID         string
	TopicID    string
	Content    string
	Popularity int
	Replies    int
	CreatedAt  time.Time
}

// PerDocumentScore carries the raw per-document values produced during one
// aggregation pass. Never persisted; only topic-level reductions survive.
type PerDocumentScore struct {
	DocumentID     string
	TermImportance float64
	Engagement     float64
	Sentiment      float64
	Virality       float64
}

// MetricSnapshot is one append-only row per document per analysis run, kept as
// historical input to velocity and virality computation.
type MetricSnapshot struct {
	TopicID        string
	DocumentID     string
	Engagement     float64
	TermImportance float64
	Velocity       float64
	Sentiment      float64
	Virality       float64
	RecordedAt     time.Time
}

// TrendDirection classifies the sign of trend velocity.
type TrendDirection string

const (
	DirectionRising  TrendDirection = "rising"
	DirectionFalling TrendDirection = "falling"
	DirectionStable  TrendDirection = "stable"
)

// TermWeight pairs a vocabulary term with its aggregated importance weight.
type TermWeight struct {
	Term   string  `json:"term"`
	Weight float64 `json:"weight"`
}

// EngagementDistribution buckets engagement scores into three bands.
// Low+Medium+High always equals the number of documents considered.
type EngagementDistribution struct {
	Low    int `json:"low"`
	Medium int `json:"medium"`
	High   int `json:"high"`
}

// TrendResult is the topic-level reduction of one analysis run. It is entirely
// derivable from documents plus metric history, so evicting and recomputing it
// is always safe.
type TrendResult struct {
	TopicID           string                 `json:"topic_id"`
	OwnerID           string                 `json:"owner_id"`
	AvgTermImportance float64                `json:"avg_term_importance"`
	AvgEngagement     float64                `json:"avg_engagement"`
	AvgSentiment      float64                `json:"avg_sentiment"`
	AvgVirality       float64                `json:"avg_virality"`
	Velocity          float64                `json:"velocity"`
	Direction         TrendDirection         `json:"direction"`
	Confidence        float64                `json:"confidence"`
	TotalDocuments    int                    `json:"total_documents"`
	TopTerms          []TermWeight           `json:"top_terms"`
	Distribution      EngagementDistribution `json:"distribution"`
	ComputedAt        time.Time              `json:"computed_at"`
	ExpiresAt         time.Time              `json:"expires_at"`
}

// RankingEntry is one row of an owner's cross-topic importance ranking.
// Derived on demand, never persisted.
type RankingEntry struct {
	TopicID           string  `json:"topic_id"`
	Importance        float64 `json:"importance"`
	AvgTermImportance float64 `json:"avg_term_importance"`
	AvgEngagement     float64 `json:"avg_engagement"`
	Velocity          float64 `json:"velocity"`
}
