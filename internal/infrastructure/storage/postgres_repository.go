package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"TrendScanner/internal/domain"
	"TrendScanner/internal/ports"
)

// PostgresRepository reads topics, documents, and metric history from
// Postgres and appends new snapshots. Topics and documents belong to external
// collaborators; this subsystem never mutates them.
type PostgresRepository struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.Store = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// FindTopic resolves a topic by id scoped to its owner. An absent or
// foreign-owned topic returns found=false, not an error.
func (r *PostgresRepository) FindTopic(ctx context.Context, topicID, ownerID string) (domain.Topic, bool, error) {
	query, args, err := r.builder.
		Select("id", "owner_id", "text", "active", "created_at", "updated_at").
		From("topics").
		Where(sq.Eq{"id": topicID, "owner_id": ownerID}).
		ToSql()
	if err != nil {
		return domain.Topic{}, false, fmt.Errorf("build topic query: %w", err)
	}

	var topic domain.Topic
	row := r.db.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&topic.ID, &topic.OwnerID, &topic.Text, &topic.Active, &topic.CreatedAt, &topic.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Topic{}, false, nil
		}
		return domain.Topic{}, false, fmt.Errorf("scan topic: %w", err)
	}

	return topic, true, nil
}

// ListDocuments returns all documents belonging to a topic, oldest first.
func (r *PostgresRepository) ListDocuments(ctx context.Context, topicID string) ([]domain.Document, error) {
	query, args, err := r.builder.
		Select("id", "topic_id", "content", "popularity", "replies", "created_at").
		From("documents").
		Where(sq.Eq{"topic_id": topicID}).
		OrderBy("created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build documents query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var doc domain.Document
		if err := rows.Scan(&doc.ID, &doc.TopicID, &doc.Content, &doc.Popularity, &doc.Replies, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return docs, nil
}

// ListMetricHistory returns up to limit most recent snapshots for a topic,
// reordered oldest to newest for velocity computation.
func (r *PostgresRepository) ListMetricHistory(ctx context.Context, topicID string, limit int) ([]domain.MetricSnapshot, error) {
	recent := r.builder.
		Select("topic_id", "document_id", "engagement", "term_importance", "velocity", "sentiment", "virality", "recorded_at").
		From("topic_metrics").
		Where(sq.Eq{"topic_id": topicID}).
		OrderBy("recorded_at DESC").
		Limit(uint64(limit))

	query, args, err := sq.
		Select("topic_id", "document_id", "engagement", "term_importance", "velocity", "sentiment", "virality", "recorded_at").
		FromSelect(recent, "recent").
		OrderBy("recorded_at ASC").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build history query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query metric history: %w", err)
	}
	defer rows.Close()

	var history []domain.MetricSnapshot
	for rows.Next() {
		var s domain.MetricSnapshot
		if err := rows.Scan(&s.TopicID, &s.DocumentID, &s.Engagement, &s.TermImportance, &s.Velocity, &s.Sentiment, &s.Virality, &s.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan metric snapshot: %w", err)
		}
		history = append(history, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return history, nil
}

// AppendMetricSnapshots inserts one row per document for an analysis run.
// Rows are append-only; retention is handled elsewhere.
func (r *PostgresRepository) AppendMetricSnapshots(ctx context.Context, snapshots []domain.MetricSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	insert := r.builder.
		Insert("topic_metrics").
		Columns("topic_id", "document_id", "engagement", "term_importance", "velocity", "sentiment", "virality", "recorded_at")
	for _, s := range snapshots {
		insert = insert.Values(s.TopicID, s.DocumentID, s.Engagement, s.TermImportance, s.Velocity, s.Sentiment, s.Virality, s.RecordedAt)
	}

	query, args, err := insert.ToSql()
	if err != nil {
		return fmt.Errorf("build snapshot insert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert snapshots: %w", err)
	}

	return nil
}

// ListActiveTopics returns active topics for one owner, or all owners when
// ownerID is empty, grouped by owner for bulk locality.
func (r *PostgresRepository) ListActiveTopics(ctx context.Context, ownerID string) ([]domain.Topic, error) {
	builder := r.builder.
		Select("id", "owner_id", "text", "active", "created_at", "updated_at").
		From("topics").
		Where(sq.Eq{"active": true}).
		OrderBy("owner_id ASC", "id ASC")
	if ownerID != "" {
		builder = builder.Where(sq.Eq{"owner_id": ownerID})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build topics query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query active topics: %w", err)
	}
	defer rows.Close()

	var topics []domain.Topic
	for rows.Next() {
		var topic domain.Topic
		if err := rows.Scan(&topic.ID, &topic.OwnerID, &topic.Text, &topic.Active, &topic.CreatedAt, &topic.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		topics = append(topics, topic)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return topics, nil
}
