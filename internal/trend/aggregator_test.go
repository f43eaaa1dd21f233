package trend

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"sync"
	"testing"
	"time"

	"TrendScanner/internal/cache"
	"TrendScanner/internal/config"
	"TrendScanner/internal/domain"
	"TrendScanner/internal/scoring"
)

// memStore is an in-memory ports.Store capturing appended snapshots.
type memStore struct {
	mu        sync.Mutex
	topics    []domain.Topic
	documents map[string][]domain.Document
	snapshots []domain.MetricSnapshot
	appendErr error
	docsErr   error
}

func newMemStore() *memStore {
	return &memStore{documents: map[string][]domain.Document{}}
}

func (s *memStore) FindTopic(_ context.Context, topicID, ownerID string) (domain.Topic, bool, error) {
	for _, topic := range s.topics {
		if topic.ID == topicID && topic.OwnerID == ownerID {
			return topic, true, nil
		}
	}
	return domain.Topic{}, false, nil
}

func (s *memStore) ListDocuments(_ context.Context, topicID string) ([]domain.Document, error) {
	if s.docsErr != nil {
		return nil, s.docsErr
	}
	return s.documents[topicID], nil
}

func (s *memStore) ListMetricHistory(_ context.Context, topicID string, limit int) ([]domain.MetricSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var history []domain.MetricSnapshot
	for _, snapshot := range s.snapshots {
		if snapshot.TopicID == topicID {
			history = append(history, snapshot)
		}
	}
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	return history, nil
}

func (s *memStore) AppendMetricSnapshots(_ context.Context, snapshots []domain.MetricSnapshot) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, snapshots...)
	return nil
}

func (s *memStore) ListActiveTopics(_ context.Context, ownerID string) ([]domain.Topic, error) {
	var topics []domain.Topic
	for _, topic := range s.topics {
		if topic.Active && (ownerID == "" || topic.OwnerID == ownerID) {
			topics = append(topics, topic)
		}
	}
	return topics, nil
}

// memBackend is an in-memory ports.CacheBackend; failAll simulates an outage.
type memBackend struct {
	mu      sync.Mutex
	data    map[string][]byte
	failAll bool
}

func newMemBackend() *memBackend {
	return &memBackend{data: map[string][]byte{}}
}

func (b *memBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	if b.failAll {
		return nil, false, errors.New("backend down")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	value, ok := b.data[key]
	return value, ok, nil
}

func (b *memBackend) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	if b.failAll {
		return errors.New("backend down")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = value
	return nil
}

func (b *memBackend) SetIfAbsent(_ context.Context, key string, value []byte, _ time.Duration) (bool, error) {
	if b.failAll {
		return false, errors.New("backend down")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.data[key]; ok {
		return false, nil
	}
	b.data[key] = value
	return true, nil
}

func (b *memBackend) Delete(_ context.Context, keys ...string) (int, error) {
	if b.failAll {
		return 0, errors.New("backend down")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	var removed int
	for _, key := range keys {
		if _, ok := b.data[key]; ok {
			delete(b.data, key)
			removed++
		}
	}
	return removed, nil
}

func (b *memBackend) Keys(_ context.Context, pattern string) ([]string, error) {
	if b.failAll {
		return nil, errors.New("backend down")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	var keys []string
	for key := range b.data {
		if matched, _ := matchGlob(pattern, key); matched {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// matchGlob supports the single trailing-star patterns used by the cache keys.
func matchGlob(pattern, key string) (bool, error) {
	if len(pattern) > 0 && pattern[len(pattern)-1] == '*' {
		prefix := pattern[:len(pattern)-1]
		return len(key) >= len(prefix) && key[:len(prefix)] == prefix, nil
	}
	return pattern == key, nil
}

func testCacheConfig() config.CacheConfig {
	return config.CacheConfig{
		Tiers: []config.TierConfig{
			{Name: "realtime", Prefix: "rt", TTL: config.Duration{Duration: 5 * time.Minute}},
			{Name: "frequent", Prefix: "fq", TTL: config.Duration{Duration: 30 * time.Minute}},
			{Name: "stable", Prefix: "st", TTL: config.Duration{Duration: 2 * time.Hour}},
			{Name: "static", Prefix: "lt", TTL: config.Duration{Duration: 24 * time.Hour}},
		},
		ResultTier:          "frequent",
		RankingTier:         "realtime",
		InvalidateBatchSize: 50,
	}
}

func testTrendConfig() config.TrendConfig {
	return config.TrendConfig{
		RisingThreshold:    0.1,
		FallingThreshold:   -0.1,
		HistoryLimit:       50,
		ConfidenceHalfSize: 10,
		VariancePenalty:    4,
	}
}

func newTestAggregator(store *memStore, backend *memBackend, now func() time.Time) *Aggregator {
	scoringCfg := config.ScoringConfig{
		MaxFeatures:          1000,
		MinDocFrequency:      2,
		MaxDocFrequencyRatio: 0.8,
		TopTerms:             10,
		PopularityWeight:     0.6,
		ReplyWeight:          0.4,
	}
	return NewAggregator(AggregatorDeps{
		Store:      store,
		Cache:      cache.New(backend, testCacheConfig(), nil),
		Text:       scoring.NewTextScorer(scoringCfg),
		Engagement: scoring.NewEngagementScorer(scoringCfg),
		Sentiment:  scoring.NewSentimentScorer(),
		Now:        now,
	}, testTrendConfig(), "frequent", 30*time.Minute)
}

func testDocs() []domain.Document {
	return []domain.Document{
		{ID: "d1", TopicID: "t1", Content: "quantum computing breakthrough announced great success", Popularity: 100, Replies: 40},
		{ID: "d2", TopicID: "t1", Content: "quantum computing results disputed terrible setback", Popularity: 60, Replies: 10},
		{ID: "d3", TopicID: "t1", Content: "weather stays mild this week", Popularity: 5, Replies: 1},
	}
}

func TestAggregateDeterminism(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2026, time.August, 20, 12, 0, 0, 0, time.UTC)
	topic := domain.Topic{ID: "t1", OwnerID: "o1", Active: true}

	first, err := newTestAggregator(newMemStore(), newMemBackend(), func() time.Time { return fixed }).
		Aggregate(context.Background(), topic, testDocs(), nil, nil)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	second, err := newTestAggregator(newMemStore(), newMemBackend(), func() time.Time { return fixed }).
		Aggregate(context.Background(), topic, testDocs(), nil, nil)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("aggregation is not deterministic:\n%+v\n%+v", first, second)
	}
}

func TestAggregateEmptyBatch(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	agg := newTestAggregator(store, newMemBackend(), nil)

	result, err := agg.Aggregate(context.Background(), domain.Topic{ID: "t1", OwnerID: "o1"}, nil, nil, nil)
	if err != nil {
		t.Fatalf("empty batch must not error: %v", err)
	}

	if result.TotalDocuments != 0 {
		t.Fatalf("expected 0 documents, got %d", result.TotalDocuments)
	}
	if result.AvgTermImportance != 0 || result.AvgEngagement != 0 || result.AvgSentiment != 0 || result.AvgVirality != 0 {
		t.Fatalf("expected all-zero averages, got %+v", result)
	}
	if result.Direction != domain.DirectionStable {
		t.Fatalf("expected stable direction, got %s", result.Direction)
	}
	if result.Confidence != 0 {
		t.Fatalf("expected zero confidence, got %f", result.Confidence)
	}
	if len(store.snapshots) != 0 {
		t.Fatalf("empty batch must not append snapshots, got %d", len(store.snapshots))
	}
}

func TestAggregateDistributionSums(t *testing.T) {
	t.Parallel()

	result, err := newTestAggregator(newMemStore(), newMemBackend(), nil).
		Aggregate(context.Background(), domain.Topic{ID: "t1", OwnerID: "o1"}, testDocs(), nil, nil)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}

	total := result.Distribution.Low + result.Distribution.Medium + result.Distribution.High
	if total != result.TotalDocuments {
		t.Fatalf("distribution sums to %d, want %d", total, result.TotalDocuments)
	}
}

func TestDirectionThresholds(t *testing.T) {
	t.Parallel()

	agg := newTestAggregator(newMemStore(), newMemBackend(), nil)

	cases := []struct {
		velocity float64
		want     domain.TrendDirection
	}{
		{0.15, domain.DirectionRising},
		{-0.15, domain.DirectionFalling},
		{0.0, domain.DirectionStable},
		// Boundary values are strictly inside "stable".
		{0.1, domain.DirectionStable},
		{-0.1, domain.DirectionStable},
	}
	for _, tc := range cases {
		if got := agg.classify(tc.velocity); got != tc.want {
			t.Fatalf("classify(%f) = %s, want %s", tc.velocity, got, tc.want)
		}
	}
}

func TestVelocityHalvesSplit(t *testing.T) {
	t.Parallel()

	if got := velocity(nil); got != 0 {
		t.Fatalf("no history must yield 0, got %f", got)
	}
	if got := velocity([]float64{0.4}); got != 0 {
		t.Fatalf("single point must yield 0, got %f", got)
	}
	// mid=2: older [0,0], recent [1,1]; (1-0)/4*100 = 25.
	if got := velocity([]float64{0, 0, 1, 1}); math.Abs(got-25) > 1e-9 {
		t.Fatalf("expected velocity 25, got %f", got)
	}
	if got := velocity([]float64{1, 1, 0, 0}); math.Abs(got+25) > 1e-9 {
		t.Fatalf("expected velocity -25, got %f", got)
	}
}

func TestRunEngagementMeansGroupsByRun(t *testing.T) {
	t.Parallel()

	run1 := time.Date(2026, time.August, 18, 6, 0, 0, 0, time.UTC)
	run2 := run1.Add(24 * time.Hour)
	history := []domain.MetricSnapshot{
		{TopicID: "t1", DocumentID: "d1", Engagement: 0.2, RecordedAt: run1},
		{TopicID: "t1", DocumentID: "d2", Engagement: 0.4, RecordedAt: run1},
		{TopicID: "t1", DocumentID: "d1", Engagement: 0.8, RecordedAt: run2},
	}

	means := runEngagementMeans(history)
	if len(means) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(means))
	}
	if math.Abs(means[0]-0.3) > 1e-9 || math.Abs(means[1]-0.8) > 1e-9 {
		t.Fatalf("expected run means [0.3 0.8], got %v", means)
	}
}

func TestConfidenceMonotonicity(t *testing.T) {
	t.Parallel()

	agg := newTestAggregator(newMemStore(), newMemBackend(), nil)

	// Non-decreasing in document count for fixed variance.
	prev := -1.0
	for _, count := range []int{1, 5, 10, 50, 500} {
		got := agg.confidence(count, 0.05)
		if got < prev {
			t.Fatalf("confidence decreased with more documents: %f -> %f", prev, got)
		}
		if got < 0 || got > 1 {
			t.Fatalf("confidence out of [0,1]: %f", got)
		}
		prev = got
	}

	// Non-increasing in variance for fixed count.
	prev = 2.0
	for _, v := range []float64{0, 0.01, 0.1, 0.25, 1} {
		got := agg.confidence(20, v)
		if got > prev {
			t.Fatalf("confidence increased with more variance: %f -> %f", prev, got)
		}
		prev = got
	}

	if agg.confidence(0, 0) != 0 {
		t.Fatal("zero documents must yield zero confidence")
	}
}

func TestAggregateSnapshotWriteFailureSwallowed(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.appendErr = errors.New("db down")
	backend := newMemBackend()

	result, err := newTestAggregator(store, backend, nil).
		Aggregate(context.Background(), domain.Topic{ID: "t1", OwnerID: "o1"}, testDocs(), nil, nil)
	if err != nil {
		t.Fatalf("snapshot write failure must not fail aggregation: %v", err)
	}
	if result.TotalDocuments != 3 {
		t.Fatalf("expected a full result, got %+v", result)
	}
	if _, ok := backend.data["fq:"+cache.TopicKey("o1", "t1")]; !ok {
		t.Fatal("result must still be cached when snapshot write fails")
	}
}

func TestAggregateCacheWriteFailureDegrades(t *testing.T) {
	t.Parallel()

	backend := newMemBackend()
	backend.failAll = true

	result, err := newTestAggregator(newMemStore(), backend, nil).
		Aggregate(context.Background(), domain.Topic{ID: "t1", OwnerID: "o1"}, testDocs(), nil, nil)
	if err != nil {
		t.Fatalf("cache outage must not fail aggregation: %v", err)
	}
	if result.TotalDocuments != 3 {
		t.Fatalf("expected a fresh result despite cache outage, got %+v", result)
	}
}

func TestAggregateIdempotentReRun(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	backend := newMemBackend()
	topic := domain.Topic{ID: "t1", OwnerID: "o1", Active: true}

	clock := time.Date(2026, time.August, 20, 6, 0, 0, 0, time.UTC)
	agg := newTestAggregator(store, backend, func() time.Time { return clock })

	if _, err := agg.Aggregate(context.Background(), topic, testDocs(), nil, nil); err != nil {
		t.Fatalf("first run: %v", err)
	}
	firstRaw := backend.data["fq:"+cache.TopicKey("o1", "t1")]

	clock = clock.Add(time.Hour)
	history, _ := store.ListMetricHistory(context.Background(), "t1", 50)
	second, err := agg.Aggregate(context.Background(), topic, testDocs(), history, nil)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if len(store.snapshots) != 2*len(testDocs()) {
		t.Fatalf("expected %d snapshots after two runs, got %d", 2*len(testDocs()), len(store.snapshots))
	}

	secondRaw := backend.data["fq:"+cache.TopicKey("o1", "t1")]
	if string(firstRaw) == string(secondRaw) {
		t.Fatal("second run must overwrite the cached result")
	}
	var cached domain.TrendResult
	if err := json.Unmarshal(secondRaw, &cached); err != nil {
		t.Fatalf("decode cached result: %v", err)
	}
	if !cached.ComputedAt.Equal(second.ComputedAt) {
		t.Fatalf("cache holds stale result: %v vs %v", cached.ComputedAt, second.ComputedAt)
	}
}
