package ingest

import (
	"context"
	"io"

	"github.com/studyowl/ragserver/internal/chunker"
	"github.com/studyowl/ragserver/internal/domain"
	"github.com/studyowl/ragserver/internal/domain/chunk"
)

// Splitter cuts source text into embedding-sized fragments.
type Splitter interface {
	Split(text string) []chunker.Fragment
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Indexer stores chunks with their vectors.
type Indexer interface {
	InsertBatch(chunks []chunk.Chunk, vectors [][]float32) error
}

// Extractor pulls plain text out of an upload by MIME type.
type Extractor interface {
	Supported(mimeType string) bool
	Extract(mimeType string, r io.Reader) (string, error)
}
