package retrieval

import (
	"context"

	"github.com/studyowl/ragserver/internal/domain"
	"github.com/studyowl/ragserver/internal/domain/chunk"
)

// Embedder vectorizes the search query.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Searcher ranks indexed chunks against a query vector.
type Searcher interface {
	Query(vector []float32, k int) ([]chunk.Scored, error)
}
