package usecase

import (
	"context"
	"errors"
	"testing"

	"TrendScanner/internal/cache"
	"TrendScanner/internal/domain"
)

func TestGetTrendResultServesFromCache(t *testing.T) {
	t.Parallel()

	h := newHarness(storeWithTopics(domain.Topic{ID: "t1", OwnerID: "o1", Active: true}), false)
	ctx := context.Background()

	first, err := h.service.GetTrendResult(ctx, "t1", "o1", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	calls := h.store.documentCalls()

	second, err := h.service.GetTrendResult(ctx, "t1", "o1", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.store.documentCalls() != calls {
		t.Fatal("second read must be served from the cache")
	}
	if first.TopicID != second.TopicID || !first.ComputedAt.Equal(second.ComputedAt) {
		t.Fatalf("cached result must match the computed one: %+v vs %+v", first, second)
	}
}

func TestGetTrendResultForceRefreshRecomputes(t *testing.T) {
	t.Parallel()

	h := newHarness(storeWithTopics(domain.Topic{ID: "t1", OwnerID: "o1", Active: true}), false)
	ctx := context.Background()

	if _, err := h.service.GetTrendResult(ctx, "t1", "o1", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	calls := h.store.documentCalls()

	if _, err := h.service.GetTrendResult(ctx, "t1", "o1", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.store.documentCalls() != calls+1 {
		t.Fatal("force refresh must bypass the cache and recompute")
	}

	// The refreshed result lands back in the cache for plain reads.
	if _, err := h.service.GetTrendResult(ctx, "t1", "o1", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.store.documentCalls() != calls+1 {
		t.Fatal("plain read after a refresh must hit the cache")
	}
}

func TestGetTrendResultUnknownTopic(t *testing.T) {
	t.Parallel()

	h := newHarness(storeWithTopics(), false)
	if _, err := h.service.GetTrendResult(context.Background(), "ghost", "o1", false); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetTrendResultRecomputesOnCorruptCache(t *testing.T) {
	t.Parallel()

	h := newHarness(storeWithTopics(domain.Topic{ID: "t1", OwnerID: "o1", Active: true}), false)
	ctx := context.Background()

	// Poison the fastest tier with bytes that do not decode.
	if err := h.backend.Set(ctx, "rt:"+cache.TopicKey("o1", "t1"), []byte("{not json"), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := h.service.GetTrendResult(ctx, "t1", "o1", false)
	if err != nil {
		t.Fatalf("corrupt cache entry must trigger recompute, got %v", err)
	}
	if result.TopicID != "t1" || result.TotalDocuments != 2 {
		t.Fatalf("unexpected recomputed result: %+v", result)
	}
}

func TestGetRankingOrdersAndCaches(t *testing.T) {
	t.Parallel()

	store := storeWithTopics(
		domain.Topic{ID: "busy", OwnerID: "o1", Active: true},
		domain.Topic{ID: "quiet", OwnerID: "o1", Active: true},
	)
	store.docs["quiet"] = []domain.Document{
		{ID: "q1", TopicID: "quiet", Content: "quantum computing breakthrough announced", Popularity: 1, Replies: 0},
		{ID: "q2", TopicID: "quiet", Content: "quantum computing results disputed widely", Popularity: 1, Replies: 0},
	}
	h := newHarness(store, false)
	ctx := context.Background()

	entries, err := h.service.GetRanking(ctx, "o1", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Importance < entries[1].Importance {
		t.Fatalf("ranking must be descending: %+v", entries)
	}

	calls := h.store.documentCalls()
	if _, err := h.service.GetRanking(ctx, "o1", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.store.documentCalls() != calls {
		t.Fatal("second ranking read must be served from the cache")
	}
}

func TestGetRankingSkipsFailingTopics(t *testing.T) {
	t.Parallel()

	store := storeWithTopics(
		domain.Topic{ID: "t1", OwnerID: "o1", Active: true},
		domain.Topic{ID: "t2", OwnerID: "o1", Active: true},
	)
	store.docsErr["t2"] = errors.New("documents table unreachable")
	h := newHarness(store, false)

	entries, err := h.service.GetRanking(context.Background(), "o1", false)
	if err != nil {
		t.Fatalf("one failing topic must not fail the ranking: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("failing topic still appears in the ranking, got %d entries", len(entries))
	}

	var failing *domain.RankingEntry
	for i := range entries {
		if entries[i].TopicID == "t2" {
			failing = &entries[i]
		}
	}
	if failing == nil {
		t.Fatal("expected t2 in the ranking")
	}
	if failing.Importance != 0 {
		t.Fatalf("unscorable topic must rank with zero inputs, got %f", failing.Importance)
	}
}

func TestInvalidateTopicCache(t *testing.T) {
	t.Parallel()

	h := newHarness(storeWithTopics(domain.Topic{ID: "t1", OwnerID: "o1", Active: true}), false)
	ctx := context.Background()

	if _, err := h.service.GetTrendResult(ctx, "t1", "o1", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := h.service.GetRanking(ctx, "o1", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !h.service.InvalidateTopicCache(ctx, "t1", "o1") {
		t.Fatal("expected invalidation to report removed entries")
	}

	calls := h.store.documentCalls()
	if _, err := h.service.GetTrendResult(ctx, "t1", "o1", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.store.documentCalls() != calls+1 {
		t.Fatal("read after invalidation must recompute")
	}

	if h.service.InvalidateTopicCache(ctx, "untouched", "o1") {
		t.Fatal("invalidating an uncached topic must report false")
	}
}

func TestInvalidateOwnerCache(t *testing.T) {
	t.Parallel()

	h := newHarness(storeWithTopics(
		domain.Topic{ID: "t1", OwnerID: "o1", Active: true},
		domain.Topic{ID: "t2", OwnerID: "o1", Active: true},
	), false)
	ctx := context.Background()

	if _, err := h.service.GetRanking(ctx, "o1", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	removed := h.service.InvalidateOwnerCache(ctx, "o1")
	if removed == 0 {
		t.Fatal("expected removed entries for a warm owner cache")
	}
	if again := h.service.InvalidateOwnerCache(ctx, "o1"); again != 0 {
		t.Fatalf("second invalidation must find nothing, got %d", again)
	}
}
