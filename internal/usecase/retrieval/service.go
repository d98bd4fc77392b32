package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/studyowl/ragserver/internal/domain"
	"github.com/studyowl/ragserver/internal/domain/chunk"
)

const (
	// DefaultTopK applies when the caller does not pick a result depth.
	DefaultTopK = 3
	// MaxTopK caps the requested result depth.
	MaxTopK = 20
)

// Service turns a user query into ranked context chunks.
type Service struct {
	embedder Embedder
	index    Searcher

	defaultTopK int
	maxTopK     int
}

// New creates a retrieval service.
func New(embedder Embedder, index Searcher) *Service {
	return &Service{
		embedder:    embedder,
		index:       index,
		defaultTopK: DefaultTopK,
		maxTopK:     MaxTopK,
	}
}

// WithTopK overrides the default and maximum result depths.
func (s *Service) WithTopK(def, max int) *Service {
	if def > 0 {
		s.defaultTopK = def
	}
	if max > 0 {
		s.maxTopK = max
	}
	return s
}

// Retrieve vectorizes the query and returns the k best-matching chunks,
// highest similarity first. Matches are returned as the index ranked them:
// no re-ranking, no dedup by source. An empty index yields an empty result,
// not an error.
func (s *Service) Retrieve(ctx context.Context, query string, k int) ([]chunk.Scored, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query must not be empty: %w", domain.ErrValidation)
	}

	switch {
	case k <= 0:
		k = s.defaultTopK
	case k > s.maxTopK:
		k = s.maxTopK
	}

	embResult, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}

	domain.UsageFromContext(ctx).AddTokens(embResult.TotalTokens)

	matches, err := s.index.Query(embResult.Embedding, k)
	if err != nil {
		// Нулевой вектор эмбеддинга — сбой провайдера, а не запроса.
		if errors.Is(err, domain.ErrDegenerateVector) {
			return nil, fmt.Errorf("query embedding: %v: %w", err, domain.ErrExternalService)
		}
		return nil, fmt.Errorf("query index: %w", err)
	}
	return matches, nil
}

// Citation points the presentation layer at the origin of one retrieved
// chunk. Ref is the source locator: the watch URL for videos, the file
// name for uploaded documents.
type Citation struct {
	SourceType chunk.SourceType
	SourceID   string
	Title      string
	Ref        string
	ChunkIndex int
	Score      float64
}

// BuildContext renders scored chunks into a single prompt block and a
// citation per chunk, both in rank order. Each block carries the source
// type, its label, and the locator when it adds anything over the label.
// Empty input yields an empty block and no citations.
func BuildContext(matches []chunk.Scored) (string, []Citation) {
	if len(matches) == 0 {
		return "", nil
	}

	var b strings.Builder
	citations := make([]Citation, 0, len(matches))

	for i, m := range matches {
		meta := m.Chunk.Meta()

		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] (%s: %s", i+1, meta.Type(), meta.Label())
		if ref := meta.Ref(); ref != "" && ref != meta.Label() {
			b.WriteString(" ")
			b.WriteString(ref)
		}
		b.WriteString(")\n")
		b.WriteString(m.Chunk.Content())

		citations = append(citations, Citation{
			SourceType: meta.Type(),
			SourceID:   meta.SourceID(),
			Title:      meta.Title(),
			Ref:        meta.Ref(),
			ChunkIndex: meta.ChunkIndex(),
			Score:      m.Score,
		})
	}

	return b.String(), citations
}
