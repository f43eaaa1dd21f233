package ports

import (
	"context"
	"time"

	"TrendScanner/internal/domain"
)

// Store reads topics, documents, and metric history from the relational
// store, and appends new snapshots. Everything except snapshots is read-only
// to this subsystem.
type Store interface {
	// FindTopic resolves a topic by id scoped to its owner. A missing or
	// mismatched topic returns found=false rather than an error.
	FindTopic(ctx context.Context, topicID, ownerID string) (domain.Topic, bool, error)
	ListDocuments(ctx context.Context, topicID string) ([]domain.Document, error)
	// ListMetricHistory returns up to limit most recent snapshots ordered
	// oldest to newest.
	ListMetricHistory(ctx context.Context, topicID string, limit int) ([]domain.MetricSnapshot, error)
	AppendMetricSnapshots(ctx context.Context, snapshots []domain.MetricSnapshot) error
	// ListActiveTopics returns active topics for one owner, or for all owners
	// when ownerID is empty, grouped by owner.
	ListActiveTopics(ctx context.Context, ownerID string) ([]domain.Topic, error)
}

// CacheBackend is the raw key-value surface the tiered cache is built on.
// Implementations must be safe under concurrent access.
type CacheBackend interface {
	// Get returns the value and whether the key was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetIfAbsent writes only when the key does not exist; reports whether
	// the write happened.
	SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	// Delete removes keys and returns how many existed.
	Delete(ctx context.Context, keys ...string) (int, error)
	// Keys enumerates keys matching a glob-style pattern.
	Keys(ctx context.Context, pattern string) ([]string, error)
}

// Scheduler controls when the recurring system-wide analysis executes.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
