package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"TrendScanner/internal/cache"
	"TrendScanner/internal/domain"
	"TrendScanner/internal/ports"
	"TrendScanner/internal/trend"
)

// OrchestratorDeps wires storage, aggregation, and the cache into the job layer.
type OrchestratorDeps struct {
	Store      ports.Store
	Aggregator *trend.Aggregator
	Cache      *cache.TieredCache
	Logger     *slog.Logger

	Workers      int
	HistoryLimit int
	LeaseEnabled bool
	LeaseTTL     time.Duration
	ResultTier   string
}

// Orchestrator runs topic analysis jobs: one topic, all of an owner's topics,
// or every active topic system-wide. Per-topic failures are isolated; the
// whole pipeline is idempotent, so at-least-once delivery and racing runs of
// the same topic are tolerated (last cache writer wins, every run appends
// valid snapshots).
type Orchestrator struct {
	store      ports.Store
	aggregator *trend.Aggregator
	cache      *cache.TieredCache
	logger     *slog.Logger

	workers      int
	historyLimit int
	leaseEnabled bool
	leaseTTL     time.Duration
	resultTier   string

	mu   sync.Mutex
	jobs map[string]*domain.JobStatus
}

// NewOrchestrator constructs the job layer.
func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	workers := deps.Workers
	if workers < 1 {
		workers = 1
	}
	return &Orchestrator{
		store:        deps.Store,
		aggregator:   deps.Aggregator,
		cache:        deps.Cache,
		logger:       deps.Logger,
		workers:      workers,
		historyLimit: deps.HistoryLimit,
		leaseEnabled: deps.LeaseEnabled,
		leaseTTL:     deps.LeaseTTL,
		resultTier:   deps.ResultTier,
		jobs:         map[string]*domain.JobStatus{},
	}
}

// AnalyzeOne verifies topic ownership, fetches its documents and metric
// history, and aggregates. progress (may be nil) receives coarse milestones.
func (o *Orchestrator) AnalyzeOne(ctx context.Context, topicID, ownerID string, progress func(string)) (domain.TrendResult, error) {
	topic, found, err := o.store.FindTopic(ctx, topicID, ownerID)
	if err != nil {
		return domain.TrendResult{}, fmt.Errorf("find topic %s: %w", topicID, err)
	}
	if !found {
		return domain.TrendResult{}, fmt.Errorf("topic %s: %w", topicID, domain.ErrNotFound)
	}

	if o.leaseEnabled {
		leaseKey := cache.LeaseKey(topicID)
		if !o.cache.AcquireLease(ctx, leaseKey, o.leaseTTL) {
			// Another run holds the lease; its result is as good as ours.
			if result, ok := o.cachedResult(ctx, ownerID, topicID); ok {
				return result, nil
			}
		} else {
			defer o.cache.ReleaseLease(ctx, leaseKey)
		}
	}

	docs, err := o.store.ListDocuments(ctx, topicID)
	if err != nil {
		return domain.TrendResult{}, fmt.Errorf("list documents for topic %s: %w", topicID, err)
	}
	report(progress, "documents fetched")

	history, err := o.store.ListMetricHistory(ctx, topicID, o.historyLimit)
	if err != nil {
		// Velocity and virality tolerate missing history; degrade to none.
		o.logger.Warn("metric history unavailable", "topic_id", topicID, "error", err)
		history = nil
	}

	result, err := o.aggregateSafe(ctx, topic, docs, history, progress)
	if err != nil {
		return domain.TrendResult{}, err
	}
	return result, nil
}

// AnalyzeAllForOwner analyzes every active topic the owner has, isolating
// per-topic failures. No active topics is an explicit empty report, not an
// error.
func (o *Orchestrator) AnalyzeAllForOwner(ctx context.Context, ownerID string, progress func(string)) (domain.BulkReport, error) {
	topics, err := o.store.ListActiveTopics(ctx, ownerID)
	if err != nil {
		return domain.BulkReport{}, fmt.Errorf("list active topics for owner %s: %w", ownerID, err)
	}
	if len(topics) == 0 {
		return domain.BulkReport{OwnerID: ownerID, Outcomes: []domain.TopicOutcome{}}, nil
	}

	report(progress, fmt.Sprintf("%d topics queued", len(topics)))
	bulk := o.runBatch(ctx, ownerID, topics)
	report(progress, fmt.Sprintf("%d succeeded, %d failed", bulk.Succeeded, bulk.Failed))
	return bulk, nil
}

// AnalyzeSystemWide analyzes every active topic for every owner, grouped by
// owner. Intended to run on the recurring schedule, independent of API traffic.
func (o *Orchestrator) AnalyzeSystemWide(ctx context.Context) ([]domain.BulkReport, error) {
	topics, err := o.store.ListActiveTopics(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list active topics: %w", err)
	}

	var reports []domain.BulkReport
	for start := 0; start < len(topics); {
		ownerID := topics[start].OwnerID
		end := start
		for end < len(topics) && topics[end].OwnerID == ownerID {
			end++
		}
		bulk := o.runBatch(ctx, ownerID, topics[start:end])
		reports = append(reports, bulk)
		o.logger.Info("owner analysis complete",
			"owner_id", ownerID, "succeeded", bulk.Succeeded, "failed", bulk.Failed)
		start = end
		if ctx.Err() != nil {
			break
		}
	}
	return reports, nil
}

// runBatch fans topics out across the worker pool. Each worker writes only
// its own outcome slot; the reduce happens here after every worker finished.
// Cancellation is honored between per-topic dispatches, never mid-scoring.
func (o *Orchestrator) runBatch(ctx context.Context, ownerID string, topics []domain.Topic) domain.BulkReport {
	outcomes := make([]domain.TopicOutcome, len(topics))
	sem := make(chan struct{}, o.workers)
	var wg sync.WaitGroup

	for i, topic := range topics {
		if ctx.Err() != nil {
			for j := i; j < len(topics); j++ {
				outcomes[j] = domain.TopicOutcome{TopicID: topics[j].ID, Error: "canceled before analysis"}
			}
			break
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(slot int, t domain.Topic) {
			defer wg.Done()
			defer func() { <-sem }()

			if _, err := o.AnalyzeOne(ctx, t.ID, t.OwnerID, nil); err != nil {
				o.logger.Warn("topic analysis failed", "topic_id", t.ID, "error", err)
				outcomes[slot] = domain.TopicOutcome{TopicID: t.ID, Error: err.Error()}
				return
			}
			outcomes[slot] = domain.TopicOutcome{TopicID: t.ID, Succeeded: true}
		}(i, topic)
	}
	wg.Wait()

	bulk := domain.BulkReport{OwnerID: ownerID, Outcomes: outcomes}
	for _, outcome := range outcomes {
		if outcome.Succeeded {
			bulk.Succeeded++
		} else {
			bulk.Failed++
		}
	}
	return bulk
}

// SubmitAnalyzeJob queues a single-topic analysis and returns its job id.
func (o *Orchestrator) SubmitAnalyzeJob(ctx context.Context, topicID, ownerID string) string {
	id := o.registerJob()
	go func() {
		o.updateJob(id, func(s *domain.JobStatus) { s.State = domain.JobRunning })
		result, err := o.AnalyzeOne(ctx, topicID, ownerID, func(milestone string) {
			o.updateJob(id, func(s *domain.JobStatus) { s.Progress = milestone })
		})
		o.updateJob(id, func(s *domain.JobStatus) {
			if err != nil {
				s.State = domain.JobFailed
				s.Error = err.Error()
				return
			}
			s.State = domain.JobSucceeded
			s.Progress = "completed"
			s.Result = &result
		})
	}()
	return id
}

// SubmitBulkJob queues an owner-wide analysis and returns its job id.
func (o *Orchestrator) SubmitBulkJob(ctx context.Context, ownerID string) string {
	id := o.registerJob()
	go func() {
		o.updateJob(id, func(s *domain.JobStatus) { s.State = domain.JobRunning })
		bulk, err := o.AnalyzeAllForOwner(ctx, ownerID, func(milestone string) {
			o.updateJob(id, func(s *domain.JobStatus) { s.Progress = milestone })
		})
		o.updateJob(id, func(s *domain.JobStatus) {
			if err != nil {
				s.State = domain.JobFailed
				s.Error = err.Error()
				return
			}
			s.State = domain.JobSucceeded
			s.Progress = "completed"
			s.Report = &bulk
		})
	}()
	return id
}

// JobStatus returns a copy of the job's current status record.
func (o *Orchestrator) JobStatus(id string) (domain.JobStatus, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	status, ok := o.jobs[id]
	if !ok {
		return domain.JobStatus{}, false
	}
	return *status, true
}

// aggregateSafe converts a scorer panic on malformed input into a computation
// error so one bad topic cannot take down a bulk run.
func (o *Orchestrator) aggregateSafe(ctx context.Context, topic domain.Topic, docs []domain.Document, history []domain.MetricSnapshot, progress func(string)) (result domain.TrendResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("topic %s: %w: %v", topic.ID, domain.ErrComputation, r)
		}
	}()
	return o.aggregator.Aggregate(ctx, topic, docs, history, progress)
}

func (o *Orchestrator) cachedResult(ctx context.Context, ownerID, topicID string) (domain.TrendResult, bool) {
	raw, ok := o.cache.Get(ctx, cache.TopicKey(ownerID, topicID), o.resultTier)
	if !ok {
		return domain.TrendResult{}, false
	}
	result, err := decodeTrendResult(raw)
	if err != nil {
		o.logger.Warn("corrupt cached trend result", "topic_id", topicID, "error", err)
		return domain.TrendResult{}, false
	}
	return result, true
}

func (o *Orchestrator) registerJob() string {
	id := uuid.NewString()
	o.mu.Lock()
	o.jobs[id] = &domain.JobStatus{ID: id, State: domain.JobQueued, UpdatedAt: time.Now().UTC()}
	o.mu.Unlock()
	return id
}

func (o *Orchestrator) updateJob(id string, mutate func(*domain.JobStatus)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if status, ok := o.jobs[id]; ok {
		mutate(status)
		status.UpdatedAt = time.Now().UTC()
	}
}

func report(progress func(string), milestone string) {
	if progress != nil {
		progress(milestone)
	}
}
