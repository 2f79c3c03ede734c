// Package promoter moves approved answers into the knowledge store.
//
// Promotion is a background side effect of voting: when an answer crosses
// the approval threshold, the vote transaction commits first and the
// promoter runs afterwards as a detached task. A slow or failing embedding
// or LLM call therefore never extends the vote's lock window or surfaces to
// the voter; promotion errors are logged and swallowed.
package promoter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/campusq/campusq/internal/forum"
	"github.com/campusq/campusq/internal/knowledge"
)

// PromoteTimeout bounds one detached promotion run, covering the LLM
// cleaning call, the embedding call, and the insert. Expiry is treated as a
// promotion failure like any other: logged, not retried.
const PromoteTimeout = 60 * time.Second

// PostReader loads posts for promotion. *forum.Store satisfies it.
type PostReader interface {
	GetPost(ctx context.Context, id uuid.UUID) (*forum.Post, error)
}

// EntryStore writes knowledge entries. *knowledge.Store satisfies it.
type EntryStore interface {
	HasSource(ctx context.Context, postID uuid.UUID) (bool, error)
	HasContent(ctx context.Context, raw string) (bool, error)
	Insert(ctx context.Context, e knowledge.Entry, embedding pgvector.Vector) error
}

// Cleaner produces retrieval-optimized text. *llm.Client satisfies it.
type Cleaner interface {
	CleanQA(ctx context.Context, question, answer string) (string, error)
	CleanFact(ctx context.Context, content string) (string, error)
}

// Promoter copies approved answers into the knowledge store after cleaning
// and embedding them.
//
// Promoter is safe for concurrent use by multiple goroutines.
type Promoter struct {
	posts         PostReader
	entries       EntryStore
	cleaner       Cleaner
	embedder      ai.Embedder
	embedderModel string
	logger        *slog.Logger

	wg sync.WaitGroup
}

// New creates a Promoter. embedderModel is recorded on every entry so a
// future model upgrade can tell old vectors from new ones.
func New(posts PostReader, entries EntryStore, cleaner Cleaner,
	embedder ai.Embedder, embedderModel string, logger *slog.Logger) (*Promoter, error) {
	if posts == nil || entries == nil || cleaner == nil || embedder == nil {
		return nil, fmt.Errorf("posts, entries, cleaner and embedder are required")
	}
	if embedderModel == "" {
		return nil, fmt.Errorf("embedder model is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Promoter{
		posts:         posts,
		entries:       entries,
		cleaner:       cleaner,
		embedder:      embedder,
		embedderModel: embedderModel,
		logger:        logger,
	}, nil
}

// Dispatch runs Promote in a detached goroutine with its own context and
// deadline. Errors are logged and swallowed: voting success is independent
// of promotion success by contract.
func (p *Promoter) Dispatch(answerID, questionID uuid.UUID) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), PromoteTimeout)
		defer cancel()

		if err := p.Promote(ctx, answerID, questionID); err != nil {
			p.logger.Error("promotion failed",
				"answer_id", answerID, "question_id", questionID, "error", err)
		}
	}()
}

// Wait blocks until all dispatched promotions finish. Called during
// graceful shutdown and by tests.
func (p *Promoter) Wait() {
	p.wg.Wait()
}

// Promote cleans the answer together with its parent question, embeds the
// cleaned text, and inserts one knowledge entry with source_post = answerID.
//
// Re-running for the same answer is a no-op: the entry store is checked
// first and its unique constraint on source_post_id backstops the check.
func (p *Promoter) Promote(ctx context.Context, answerID, questionID uuid.UUID) error {
	exists, err := p.entries.HasSource(ctx, answerID)
	if err != nil {
		return fmt.Errorf("checking existing entry: %w", err)
	}
	if exists {
		p.logger.Debug("answer already promoted, skipping", "answer_id", answerID)
		return nil
	}

	answer, err := p.posts.GetPost(ctx, answerID)
	if err != nil {
		return fmt.Errorf("loading answer: %w", err)
	}
	question, err := p.posts.GetPost(ctx, questionID)
	if err != nil {
		return fmt.Errorf("loading question: %w", err)
	}

	cleaned, err := p.cleaner.CleanQA(ctx, question.Content, answer.Content)
	if err != nil {
		return fmt.Errorf("cleaning content: %w", err)
	}

	vec, err := knowledge.EmbedText(ctx, p.embedder, cleaned)
	if err != nil {
		return fmt.Errorf("embedding cleaned content: %w", err)
	}

	entry := knowledge.Entry{
		SourcePostID:   &answerID,
		RawContent:     fmt.Sprintf("Question: %s\nAnswer: %s", question.Content, answer.Content),
		CleanedContent: cleaned,
		EmbeddingModel: p.embedderModel,
	}
	if err := p.entries.Insert(ctx, entry, vec); err != nil {
		return fmt.Errorf("storing knowledge entry: %w", err)
	}

	p.logger.Info("approved knowledge stored", "answer_id", answerID)
	return nil
}
