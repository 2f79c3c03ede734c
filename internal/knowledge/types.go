// Package knowledge stores retrieval-ready campus facts with vector
// embeddings, backed by PostgreSQL + pgvector.
//
// Entries are written by exactly two producers: the approval promoter (one
// entry per approved answer, source post recorded) and the operator seeding
// path (source post nil). Entries are immutable once written; updating one
// means deleting the row and re-promoting.
package knowledge

import (
	"time"

	"github.com/google/uuid"
)

// VectorDimension is the embedding width stored in the approved_knowledge
// table. gemini-embedding-001 supports truncation to 768 dimensions via
// OutputDimensionality; storage-time and query-time embeddings must use the
// same model and dimensionality or retrieval quality silently degrades.
const VectorDimension int32 = 768

// Entry is a row in the approved_knowledge table.
type Entry struct {
	ID             uuid.UUID
	SourcePostID   *uuid.UUID // nil for operator-seeded facts
	RawContent     string     // original text, may be empty for legacy rows
	CleanedContent string     // retrieval-optimized text
	EmbeddingModel string     // model identity recorded at write time
	CreatedAt      time.Time
}

// Result is a search hit: an entry plus its cosine similarity to the query.
type Result struct {
	Entry      Entry
	Similarity float64
}
