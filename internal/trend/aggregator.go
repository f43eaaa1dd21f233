package trend

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"time"

	"TrendScanner/internal/cache"
	"TrendScanner/internal/config"
	"TrendScanner/internal/domain"
	"TrendScanner/internal/ports"
	"TrendScanner/internal/scoring"
)

// Engagement bucket boundaries.
const (
	bucketLowUpper  = 0.33
	bucketHighLower = 0.67
)

// AggregatorDeps wires the three scorers and both persistence collaborators.
type AggregatorDeps struct {
	Store      ports.Store
	Cache      *cache.TieredCache
	Text       *scoring.TextScorer
	Engagement *scoring.EngagementScorer
	Sentiment  *scoring.SentimentScorer
	Logger     *slog.Logger
	Now        func() time.Time
}

// Aggregator reduces one topic's document batch plus metric history into a
// TrendResult, appends per-document snapshots, and writes the result through
// the tiered cache.
type Aggregator struct {
	store      ports.Store
	cache      *cache.TieredCache
	text       *scoring.TextScorer
	engagement *scoring.EngagementScorer
	sentiment  *scoring.SentimentScorer
	logger     *slog.Logger
	now        func() time.Time

	risingThreshold  float64
	fallingThreshold float64
	halfSize         float64
	variancePenalty  float64
	resultTier       string
	resultTTL        time.Duration
}

// NewAggregator builds the aggregator; resultTier names the cache tier trend
// results are written to and determines their expiry stamp.
func NewAggregator(deps AggregatorDeps, cfg config.TrendConfig, resultTier string, resultTTL time.Duration) *Aggregator {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Aggregator{
		store:            deps.Store,
		cache:            deps.Cache,
		text:             deps.Text,
		engagement:       deps.Engagement,
		sentiment:        deps.Sentiment,
		logger:           deps.Logger,
		now:              now,
		risingThreshold:  cfg.RisingThreshold,
		fallingThreshold: cfg.FallingThreshold,
		halfSize:         float64(cfg.ConfidenceHalfSize),
		variancePenalty:  cfg.VariancePenalty,
		resultTier:       resultTier,
		resultTTL:        resultTTL,
	}
}

// Aggregate runs the scorers over the batch, reduces to topic-level metrics,
// appends one MetricSnapshot per document, and caches the result. A snapshot
// write failure is logged and swallowed; a cache write failure degrades to
// "computed but not cached". Empty batches return a well-defined empty result
// rather than an error. progress may be nil.
func (a *Aggregator) Aggregate(ctx context.Context, topic domain.Topic, docs []domain.Document, history []domain.MetricSnapshot, progress func(string)) (domain.TrendResult, error) {
	report := func(msg string) {
		if progress != nil {
			progress(msg)
		}
	}

	now := a.now().UTC()
	result := domain.TrendResult{
		TopicID:    topic.ID,
		OwnerID:    topic.OwnerID,
		Direction:  domain.DirectionStable,
		ComputedAt: now,
		ExpiresAt:  now.Add(a.resultTTL),
	}
	if len(docs) == 0 {
		report("scores computed")
		a.writeCache(ctx, result)
		report("result persisted")
		return result, nil
	}

	perDoc, topTerms := a.scoreDocuments(docs, history)
	report("scores computed")

	var engagementValues []float64
	for _, score := range perDoc {
		result.AvgTermImportance += score.TermImportance
		result.AvgEngagement += score.Engagement
		result.AvgSentiment += score.Sentiment
		result.AvgVirality += score.Virality
		engagementValues = append(engagementValues, score.Engagement)
	}
	n := float64(len(perDoc))
	result.AvgTermImportance /= n
	result.AvgEngagement /= n
	result.AvgSentiment /= n
	result.AvgVirality /= n
	result.TotalDocuments = len(perDoc)
	result.TopTerms = topTerms

	runMeans := runEngagementMeans(history)
	result.Velocity = velocity(append(runMeans, result.AvgEngagement))
	result.Direction = a.classify(result.Velocity)
	result.Confidence = a.confidence(len(perDoc), variance(engagementValues))
	result.Distribution = distribute(engagementValues)

	snapshots := make([]domain.MetricSnapshot, 0, len(perDoc))
	for _, score := range perDoc {
		snapshots = append(snapshots, domain.MetricSnapshot{
			TopicID:        topic.ID,
			DocumentID:     score.DocumentID,
			Engagement:     score.Engagement,
			TermImportance: score.TermImportance,
			Velocity:       result.Velocity,
			Sentiment:      score.Sentiment,
			Virality:       score.Virality,
			RecordedAt:     now,
		})
	}
	if err := a.store.AppendMetricSnapshots(ctx, snapshots); err != nil {
		// Best-effort history: the fresh result is still valid without it.
		a.warn("append metric snapshots failed", "topic_id", topic.ID, "error", err)
	}

	a.writeCache(ctx, result)
	report("result persisted")
	return result, nil
}

// scoreDocuments runs the three scorers and assembles per-document records in
// input order so aggregation stays deterministic.
func (a *Aggregator) scoreDocuments(docs []domain.Document, history []domain.MetricSnapshot) ([]domain.PerDocumentScore, []domain.TermWeight) {
	textScores, topTerms := a.text.Score(docs)
	engagementScores := a.engagement.Score(docs)
	virality := scoring.Virality(runEngagementMeans(history))

	perDoc := make([]domain.PerDocumentScore, 0, len(docs))
	for _, doc := range docs {
		perDoc = append(perDoc, domain.PerDocumentScore{
			DocumentID:     doc.ID,
			TermImportance: textScores[doc.ID],
			Engagement:     engagementScores[doc.ID],
			Sentiment:      a.sentiment.Sentiment(doc.Content),
			Virality:       virality,
		})
	}
	return perDoc, topTerms
}

func (a *Aggregator) writeCache(ctx context.Context, result domain.TrendResult) {
	raw, err := json.Marshal(result)
	if err != nil {
		a.warn("marshal trend result failed", "topic_id", result.TopicID, "error", err)
		return
	}
	if err := a.cache.Put(ctx, cache.TopicKey(result.OwnerID, result.TopicID), a.resultTier, raw); err != nil {
		a.warn("cache trend result failed", "topic_id", result.TopicID, "error", err)
	}
}

// classify maps velocity to a direction. Boundary values at exactly the
// thresholds are stable: rising and falling require strict inequality.
func (a *Aggregator) classify(v float64) domain.TrendDirection {
	switch {
	case v > a.risingThreshold:
		return domain.DirectionRising
	case v < a.fallingThreshold:
		return domain.DirectionFalling
	default:
		return domain.DirectionStable
	}
}

// confidence grows with sample size and shrinks with score volatility:
// count/(count+half) is monotone non-decreasing in count, 1/(1+penalty*var)
// monotone non-increasing in variance, and the product stays in [0,1].
func (a *Aggregator) confidence(count int, scoreVariance float64) float64 {
	if count == 0 {
		return 0
	}
	size := float64(count) / (float64(count) + a.halfSize)
	stability := 1 / (1 + a.variancePenalty*scoreVariance)
	return scoring.Clamp(size*stability, 0, 1)
}

// velocity compares the recent half of run-level engagement means against the
// older half. Fewer than two points means no trend yet.
func velocity(means []float64) float64 {
	if len(means) < 2 {
		return 0
	}
	mid := len(means) / 2
	return (mean(means[mid:]) - mean(means[:mid])) / float64(len(means)) * 100
}

// runEngagementMeans reduces per-document snapshots to one engagement average
// per analysis run, oldest first. Snapshots within a run share a recording
// timestamp.
func runEngagementMeans(history []domain.MetricSnapshot) []float64 {
	if len(history) == 0 {
		return nil
	}

	sums := map[time.Time]float64{}
	counts := map[time.Time]int{}
	order := make([]time.Time, 0)
	for _, snapshot := range history {
		at := snapshot.RecordedAt
		if _, ok := counts[at]; !ok {
			order = append(order, at)
		}
		sums[at] += snapshot.Engagement
		counts[at]++
	}
	sort.Slice(order, func(i, j int) bool { return order[i].Before(order[j]) })

	means := make([]float64, 0, len(order))
	for _, at := range order {
		means = append(means, sums[at]/float64(counts[at]))
	}
	return means
}

// distribute buckets engagement scores; the three counts always sum to the
// number of scores.
func distribute(values []float64) domain.EngagementDistribution {
	var dist domain.EngagementDistribution
	for _, v := range values {
		switch {
		case v < bucketLowUpper:
			dist.Low++
		case v < bucketHighLower:
			dist.Medium++
		default:
			dist.High++
		}
	}
	return dist
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var total float64
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}

func variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	var total float64
	for _, v := range values {
		d := v - m
		total += d * d
	}
	return total / float64(len(values))
}

func (a *Aggregator) warn(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Warn(msg, args...)
	}
}
