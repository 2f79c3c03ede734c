// Package chatbot answers questions strictly from the approved knowledge
// store. It never answers from the model's own training data: when no
// stored entry is similar enough to the query, the engine returns a fixed
// fallback instead of synthesizing.
package chatbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/pgvector/pgvector-go"

	"github.com/campusq/campusq/internal/knowledge"
)

// FallbackMessage is returned verbatim when nothing in the knowledge store
// clears the similarity threshold.
const FallbackMessage = "I don't have verified information about that yet. " +
	"Try asking a question on the feed — if the community answers and votes " +
	"it up, I'll be able to help with that in the future!"

// ErrEmptyQuery is returned when the query is blank after trimming.
var ErrEmptyQuery = errors.New("query must not be empty")

// Searcher retrieves the stored entries nearest to a query vector.
// *knowledge.Store satisfies it.
type Searcher interface {
	Search(ctx context.Context, query pgvector.Vector, topK int) ([]knowledge.Result, error)
}

// Synthesizer produces an answer from retrieved context. *llm.Client
// satisfies it.
type Synthesizer interface {
	Synthesize(ctx context.Context, query, contextBlock string) (string, error)
}

// Reply is the engine's answer to one query.
type Reply struct {
	Response string `json:"response"`
	// Matched reports whether any entry cleared the threshold. False means
	// Response is the fallback message.
	Matched bool `json:"matched"`
	// Similarity is the best cosine similarity seen, 0 when the store
	// returned nothing.
	Similarity float64 `json:"similarity"`
}

// Engine wires retrieval and synthesis into the grounded answer flow.
type Engine struct {
	embedder    ai.Embedder
	searcher    Searcher
	synthesizer Synthesizer
	threshold   float64
	topK        int
	logger      *slog.Logger
}

// New creates an Engine. threshold is the minimum cosine similarity an
// entry must reach to be used as context, topK the number of candidates
// fetched per query.
func New(embedder ai.Embedder, searcher Searcher, synthesizer Synthesizer,
	threshold float64, topK int, logger *slog.Logger) (*Engine, error) {
	if embedder == nil || searcher == nil || synthesizer == nil {
		return nil, fmt.Errorf("embedder, searcher and synthesizer are required")
	}
	if threshold <= 0 || threshold > 1 {
		return nil, fmt.Errorf("similarity threshold %v out of range (0, 1]", threshold)
	}
	if topK < 1 {
		return nil, fmt.Errorf("topK must be at least 1, got %d", topK)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		embedder:    embedder,
		searcher:    searcher,
		synthesizer: synthesizer,
		threshold:   threshold,
		topK:        topK,
		logger:      logger,
	}, nil
}

// Answer embeds the query, retrieves the nearest entries, and synthesizes
// an answer from those that clear the threshold. The threshold is a hard
// cutoff: with no qualifying entry the fallback is returned and the model
// is never asked.
func (e *Engine) Answer(ctx context.Context, query string) (*Reply, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	vec, err := knowledge.EmbedText(ctx, e.embedder, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	results, err := e.searcher.Search(ctx, vec, e.topK)
	if err != nil {
		return nil, fmt.Errorf("searching knowledge: %w", err)
	}

	best := 0.0
	var passages []string
	for _, r := range results {
		if r.Similarity > best {
			best = r.Similarity
		}
		if r.Similarity >= e.threshold {
			passages = append(passages, r.Entry.CleanedContent)
		}
	}

	if len(passages) == 0 {
		e.logger.Debug("no match above threshold",
			"best_similarity", best, "threshold", e.threshold)
		return &Reply{Response: FallbackMessage, Matched: false, Similarity: best}, nil
	}

	answer, err := e.synthesizer.Synthesize(ctx, query, strings.Join(passages, "\n\n"))
	if err != nil {
		return nil, fmt.Errorf("synthesizing answer: %w", err)
	}

	e.logger.Debug("answered from knowledge",
		"matches", len(passages), "best_similarity", best)
	return &Reply{Response: answer, Matched: true, Similarity: best}, nil
}
