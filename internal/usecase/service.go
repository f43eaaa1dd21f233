package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"TrendScanner/internal/cache"
	"TrendScanner/internal/domain"
	"TrendScanner/internal/ports"
	"TrendScanner/internal/trend"
)

// ServiceDeps wires the read-side surface exposed to the API layer.
type ServiceDeps struct {
	Store        ports.Store
	Cache        *cache.TieredCache
	Orchestrator *Orchestrator
	Ranker       *trend.ImportanceRanker
	Logger       *slog.Logger
	ResultTier   string
	RankingTier  string
}

// TrendService serves trend results and rankings through the tiered cache
// and exposes job submission. This is the subsystem's entire outward surface;
// HTTP and authentication live elsewhere.
type TrendService struct {
	store        ports.Store
	cache        *cache.TieredCache
	orchestrator *Orchestrator
	ranker       *trend.ImportanceRanker
	logger       *slog.Logger
	resultTier   string
	rankingTier  string
}

// NewTrendService constructs the service.
func NewTrendService(deps ServiceDeps) *TrendService {
	return &TrendService{
		store:        deps.Store,
		cache:        deps.Cache,
		orchestrator: deps.Orchestrator,
		ranker:       deps.Ranker,
		logger:       deps.Logger,
		resultTier:   deps.ResultTier,
		rankingTier:  deps.RankingTier,
	}
}

// GetTrendResult serves a topic's trend result from the cache, computing on
// miss. forceRefresh bypasses the cache and recomputes (the fresh result
// still lands in the cache through the aggregator).
func (s *TrendService) GetTrendResult(ctx context.Context, topicID, ownerID string, forceRefresh bool) (domain.TrendResult, error) {
	if forceRefresh {
		return s.orchestrator.AnalyzeOne(ctx, topicID, ownerID, nil)
	}

	raw, err := s.cache.GetOrCompute(ctx, cache.TopicKey(ownerID, topicID), s.resultTier, func(ctx context.Context) ([]byte, error) {
		result, err := s.orchestrator.AnalyzeOne(ctx, topicID, ownerID, nil)
		if err != nil {
			return nil, err
		}
		return json.Marshal(result)
	})
	if err != nil {
		return domain.TrendResult{}, err
	}

	result, err := decodeTrendResult(raw)
	if err != nil {
		s.logger.Warn("corrupt cached trend result, recomputing", "topic_id", topicID, "error", err)
		return s.orchestrator.AnalyzeOne(ctx, topicID, ownerID, nil)
	}
	return result, nil
}

// GetRanking serves the owner's importance ranking from the cache, computing
// on miss. Topics whose results cannot be computed rank with zero inputs
// rather than failing the whole ranking.
func (s *TrendService) GetRanking(ctx context.Context, ownerID string, forceRefresh bool) ([]domain.RankingEntry, error) {
	compute := func(ctx context.Context) ([]byte, error) {
		topics, err := s.store.ListActiveTopics(ctx, ownerID)
		if err != nil {
			return nil, fmt.Errorf("list active topics for owner %s: %w", ownerID, err)
		}

		results := make(map[string]domain.TrendResult, len(topics))
		for _, topic := range topics {
			result, err := s.GetTrendResult(ctx, topic.ID, ownerID, forceRefresh)
			if err != nil {
				s.logger.Warn("ranking input unavailable", "topic_id", topic.ID, "error", err)
				continue
			}
			results[topic.ID] = result
		}

		return json.Marshal(s.ranker.Rank(topics, results))
	}

	var raw []byte
	var err error
	if forceRefresh {
		raw, err = compute(ctx)
		if err == nil {
			if putErr := s.cache.Put(ctx, cache.RankingKey(ownerID), s.rankingTier, raw); putErr != nil {
				s.logger.Warn("cache ranking failed", "owner_id", ownerID, "error", putErr)
			}
		}
	} else {
		raw, err = s.cache.GetOrCompute(ctx, cache.RankingKey(ownerID), s.rankingTier, compute)
	}
	if err != nil {
		return nil, err
	}

	var entries []domain.RankingEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode cached ranking: %w", err)
	}
	return entries, nil
}

// InvalidateTopicCache drops one topic's cached result across all tiers and
// the owner's derived ranking. Reports whether any topic entry existed.
func (s *TrendService) InvalidateTopicCache(ctx context.Context, topicID, ownerID string) bool {
	removed := s.cache.InvalidatePattern(ctx, cache.TopicKey(ownerID, topicID))
	s.cache.InvalidatePattern(ctx, cache.RankingKey(ownerID))
	return removed > 0
}

// InvalidateOwnerCache clears all trend data for an owner and returns the
// number of entries removed.
func (s *TrendService) InvalidateOwnerCache(ctx context.Context, ownerID string) int {
	removed := s.cache.InvalidatePattern(ctx, cache.OwnerTrendPattern(ownerID))
	removed += s.cache.InvalidatePattern(ctx, cache.RankingKey(ownerID))
	return removed
}

// SubmitAnalyzeJob queues a single-topic analysis job.
func (s *TrendService) SubmitAnalyzeJob(ctx context.Context, topicID, ownerID string) string {
	return s.orchestrator.SubmitAnalyzeJob(ctx, topicID, ownerID)
}

// SubmitBulkJob queues an owner-wide analysis job.
func (s *TrendService) SubmitBulkJob(ctx context.Context, ownerID string) string {
	return s.orchestrator.SubmitBulkJob(ctx, ownerID)
}

// GetJobStatus returns the status record a job writer last published.
func (s *TrendService) GetJobStatus(id string) (domain.JobStatus, bool) {
	return s.orchestrator.JobStatus(id)
}

func decodeTrendResult(raw []byte) (domain.TrendResult, error) {
	var result domain.TrendResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return domain.TrendResult{}, fmt.Errorf("decode trend result: %w", err)
	}
	return result, nil
}
