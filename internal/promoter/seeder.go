package promoter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/firebase/genkit/go/ai"

	"github.com/campusq/campusq/internal/knowledge"
)

// SeedResult reports the outcome of one seeding run.
type SeedResult struct {
	Inserted int
	Skipped  int
	Failed   int
}

// Seeder bulk-loads curated facts into the knowledge store. Seed entries
// carry no source post; they come from an operator-provided file instead of
// the approval pipeline.
type Seeder struct {
	entries       EntryStore
	cleaner       Cleaner
	embedder      ai.Embedder
	embedderModel string
	logger        *slog.Logger
}

// NewSeeder creates a Seeder.
func NewSeeder(entries EntryStore, cleaner Cleaner, embedder ai.Embedder,
	embedderModel string, logger *slog.Logger) (*Seeder, error) {
	if entries == nil || cleaner == nil || embedder == nil {
		return nil, fmt.Errorf("entries, cleaner and embedder are required")
	}
	if embedderModel == "" {
		return nil, fmt.Errorf("embedder model is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{
		entries:       entries,
		cleaner:       cleaner,
		embedder:      embedder,
		embedderModel: embedderModel,
		logger:        logger,
	}, nil
}

// Seed cleans, embeds and inserts each fact. Blank facts and facts whose
// raw content is already stored are skipped. A failure on one fact is
// counted and logged but does not stop the run, so a seed file can be
// re-applied until everything lands.
func (s *Seeder) Seed(ctx context.Context, facts []string) (*SeedResult, error) {
	result := &SeedResult{}

	for i, fact := range facts {
		fact = strings.TrimSpace(fact)
		if fact == "" {
			result.Skipped++
			continue
		}

		exists, err := s.entries.HasContent(ctx, fact)
		if err != nil {
			return result, fmt.Errorf("checking fact %d: %w", i, err)
		}
		if exists {
			s.logger.Debug("fact already seeded, skipping", "index", i)
			result.Skipped++
			continue
		}

		if err := s.seedOne(ctx, fact); err != nil {
			s.logger.Error("seeding fact failed", "index", i, "error", err)
			result.Failed++
			continue
		}
		result.Inserted++
	}

	s.logger.Info("seeding complete",
		"inserted", result.Inserted, "skipped", result.Skipped, "failed", result.Failed)
	return result, nil
}

func (s *Seeder) seedOne(ctx context.Context, fact string) error {
	cleaned, err := s.cleaner.CleanFact(ctx, fact)
	if err != nil {
		return fmt.Errorf("cleaning fact: %w", err)
	}

	vec, err := knowledge.EmbedText(ctx, s.embedder, cleaned)
	if err != nil {
		return fmt.Errorf("embedding fact: %w", err)
	}

	entry := knowledge.Entry{
		RawContent:     fact,
		CleanedContent: cleaned,
		EmbeddingModel: s.embedderModel,
	}
	if err := s.entries.Insert(ctx, entry, vec); err != nil {
		return fmt.Errorf("storing fact: %w", err)
	}
	return nil
}

// LoadFactsFile reads a JSON array of fact strings from path.
func LoadFactsFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading facts file: %w", err)
	}

	var facts []string
	if err := json.Unmarshal(data, &facts); err != nil {
		return nil, fmt.Errorf("parsing facts file: %w", err)
	}
	if len(facts) == 0 {
		return nil, fmt.Errorf("facts file %s contains no facts", path)
	}
	return facts, nil
}
