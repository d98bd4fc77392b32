package chunk

import (
	"fmt"
	"regexp"
)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// MaxContentSize is the maximum chunk content size in bytes.
const MaxContentSize = 163840 // 160KB

// Chunk is one indexed unit of ingested text (immutable value object).
// Its ID is derived from the source and the chunk sequence number, so all
// chunks of one source share the SourceID prefix.
type Chunk struct {
	id      string
	content string
	meta    SourceMeta
}

// New validates and creates a Chunk. The ID becomes "<sourceID>-<seq>" and
// the sequence number is recorded in the provenance as the chunk index.
func New(seq int, content string, meta SourceMeta) (Chunk, error) {
	if meta == nil {
		return Chunk{}, fmt.Errorf("chunk provenance is required")
	}
	if seq < 0 {
		return Chunk{}, fmt.Errorf("chunk sequence must be non-negative")
	}
	if content == "" {
		return Chunk{}, fmt.Errorf("content is required")
	}
	if len(content) > MaxContentSize {
		return Chunk{}, fmt.Errorf("content too large (max %d bytes)", MaxContentSize)
	}

	return Chunk{
		id:      fmt.Sprintf("%s-%d", meta.SourceID(), seq),
		content: content,
		meta:    meta.WithIndex(seq),
	}, nil
}

// ID returns the chunk identifier.
func (c Chunk) ID() string { return c.id }

// Content returns the chunk text.
func (c Chunk) Content() string { return c.content }

// Meta returns the chunk provenance.
func (c Chunk) Meta() SourceMeta { return c.meta }
