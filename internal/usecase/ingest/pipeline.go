package ingest

import (
	"context"
	"fmt"

	"github.com/studyowl/ragserver/internal/domain"
	"github.com/studyowl/ragserver/internal/domain/chunk"
)

// Pipeline is the shared split → vectorize → index path. Document and video
// ingestion both end here, differing only in the provenance they attach.
type Pipeline struct {
	splitter Splitter
	embedder Embedder
	index    Indexer
}

// NewPipeline creates an ingest pipeline.
func NewPipeline(splitter Splitter, embedder Embedder, index Indexer) *Pipeline {
	return &Pipeline{splitter: splitter, embedder: embedder, index: index}
}

// Run splits text, vectorizes every fragment in one batch call and indexes
// the whole source atomically. Token usage lands in the request collector.
func (p *Pipeline) Run(ctx context.Context, text string, meta chunk.SourceMeta) (domain.IngestReceipt, error) {
	fragments := p.splitter.Split(text)
	if len(fragments) == 0 {
		return domain.IngestReceipt{}, fmt.Errorf("no indexable text after splitting: %w", domain.ErrValidation)
	}

	chunks := make([]chunk.Chunk, len(fragments))
	texts := make([]string, len(fragments))
	for i, f := range fragments {
		c, err := chunk.New(f.Index, f.Text, meta)
		if err != nil {
			return domain.IngestReceipt{}, fmt.Errorf("build chunk %d: %w", f.Index, err)
		}
		chunks[i] = c
		texts[i] = f.Text
	}

	result, err := domain.EmbedAll(ctx, p.embedder, texts)
	if err != nil {
		return domain.IngestReceipt{}, fmt.Errorf("vectorize chunks: %w", err)
	}

	domain.UsageFromContext(ctx).AddTokens(result.TotalTokens)

	if err := p.index.InsertBatch(chunks, result.Embeddings); err != nil {
		return domain.IngestReceipt{}, fmt.Errorf("index chunks: %w", err)
	}

	return domain.IngestReceipt{
		Source:       meta.SourceID(),
		Title:        meta.Title(),
		Chunks:       len(chunks),
		PromptTokens: result.PromptTokens,
		TotalTokens:  result.TotalTokens,
	}, nil
}
