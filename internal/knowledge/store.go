package knowledge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// Store manages knowledge entries with vector search capabilities.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a knowledge Store.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Insert writes one entry with its embedding. The ON CONFLICT clause on
// source_post_id is a backstop against double promotion; callers should
// still check HasSource first to avoid wasting an LLM and embedding call.
func (s *Store) Insert(ctx context.Context, e Entry, embedding pgvector.Vector) error {
	if e.CleanedContent == "" {
		return fmt.Errorf("cleaned content is required")
	}
	if e.EmbeddingModel == "" {
		return fmt.Errorf("embedding model is required")
	}

	var raw *string
	if e.RawContent != "" {
		raw = &e.RawContent
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO approved_knowledge (source_post_id, raw_content, cleaned_content, embedding, embedding_model)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (source_post_id) DO NOTHING`,
		e.SourcePostID, raw, e.CleanedContent, embedding, e.EmbeddingModel)
	if err != nil {
		return fmt.Errorf("inserting knowledge entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		s.logger.Debug("knowledge entry already exists for source post", "source_post_id", e.SourcePostID)
		return nil
	}

	s.logger.Debug("knowledge entry stored",
		"source_post_id", e.SourcePostID, "content_length", len(e.CleanedContent))
	return nil
}

// HasSource reports whether an entry already exists for the given source
// post. This is the promotion idempotency guard.
func (s *Store) HasSource(ctx context.Context, postID uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM approved_knowledge WHERE source_post_id = $1)`,
		postID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking source post: %w", err)
	}
	return exists, nil
}

// HasContent reports whether an entry with this exact raw content already
// exists. The seeding path uses it to skip already-processed facts.
func (s *Store) HasContent(ctx context.Context, raw string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM approved_knowledge WHERE raw_content = $1)`,
		raw).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking raw content: %w", err)
	}
	return exists, nil
}

// Search returns the topK nearest entries to the query embedding by cosine
// similarity, best first. It does not apply the similarity threshold; that
// policy belongs to the chatbot engine.
func (s *Store) Search(ctx context.Context, query pgvector.Vector, topK int) ([]Result, error) {
	if topK < 1 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, source_post_id, COALESCE(raw_content, ''), cleaned_content,
		        embedding_model, created_at,
		        1 - (embedding <=> $1) AS similarity
		 FROM approved_knowledge
		 ORDER BY embedding <=> $1
		 LIMIT $2`, query, topK)
	if err != nil {
		return nil, fmt.Errorf("searching knowledge: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.Entry.ID, &r.Entry.SourcePostID, &r.Entry.RawContent,
			&r.Entry.CleanedContent, &r.Entry.EmbeddingModel, &r.Entry.CreatedAt,
			&r.Similarity); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading search results: %w", err)
	}
	return results, nil
}

// Count returns the number of stored entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM approved_knowledge`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting knowledge entries: %w", err)
	}
	return count, nil
}

// Delete removes an entry by ID. Used by operators to retire stale facts;
// re-seeding then picks the updated text up again.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM approved_knowledge WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting knowledge entry: %w", err)
	}
	s.logger.Debug("deleted knowledge entry", "id", id)
	return nil
}
