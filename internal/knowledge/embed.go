package knowledge

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/pgvector/pgvector-go"
	"google.golang.org/genai"
)

// EmbedText generates the vector for text using the given embedder,
// truncated to VectorDimension. Both the promoter (storage time) and the
// chatbot (query time) go through this helper so the two sides always agree
// on model options and dimensionality.
func EmbedText(ctx context.Context, embedder ai.Embedder, text string) (pgvector.Vector, error) {
	dim := VectorDimension
	resp, err := embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(text, nil)},
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("embedding text: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, fmt.Errorf("empty embedding response")
	}
	return pgvector.NewVector(resp.Embeddings[0].Embedding), nil
}
