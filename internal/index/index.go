// Package index implements the in-memory vector index: an exact-scan
// cosine-similarity store over ingested chunks. The service owns exactly one
// Index, constructed in main and shared by the ingest and retrieval paths.
package index

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/studyowl/ragserver/internal/domain"
	"github.com/studyowl/ragserver/internal/domain/chunk"
)

// Index stores chunks and their embedding vectors in insertion order.
// All methods are safe for concurrent use.
type Index struct {
	mu      sync.RWMutex
	chunks  []chunk.Chunk
	vectors [][]float32
	norms   []float64
	byID    map[string]int
	dim     int
}

// New creates an empty index. Dimensionality locks on the first insert.
func New() *Index {
	return &Index{byID: make(map[string]int)}
}

// Insert adds one chunk with its vector. Re-inserting an existing chunk ID
// replaces the stored chunk in place, keeping its original position.
func (x *Index) Insert(c chunk.Chunk, vector []float32) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.insertLocked(c, vector)
}

// InsertBatch adds chunks atomically: either every chunk is indexed or none
// is. Vector count must match chunk count.
func (x *Index) InsertBatch(chunks []chunk.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("%d chunks with %d vectors: %w", len(chunks), len(vectors), domain.ErrValidation)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	// Validate the whole batch before touching state.
	dim := x.dim
	for i, v := range vectors {
		if len(v) == 0 {
			return fmt.Errorf("chunk %q: %w", chunks[i].ID(), domain.ErrDegenerateVector)
		}
		if dim == 0 {
			dim = len(v)
		}
		if len(v) != dim {
			return fmt.Errorf("chunk %q has dim %d, index has %d: %w",
				chunks[i].ID(), len(v), dim, domain.ErrVectorDimMismatch)
		}
	}

	for i := range chunks {
		if err := x.insertLocked(chunks[i], vectors[i]); err != nil {
			return err
		}
	}
	return nil
}

func (x *Index) insertLocked(c chunk.Chunk, vector []float32) error {
	if len(vector) == 0 {
		return fmt.Errorf("chunk %q: %w", c.ID(), domain.ErrDegenerateVector)
	}
	if x.dim == 0 {
		x.dim = len(vector)
	}
	if len(vector) != x.dim {
		return fmt.Errorf("chunk %q has dim %d, index has %d: %w",
			c.ID(), len(vector), x.dim, domain.ErrVectorDimMismatch)
	}

	if pos, ok := x.byID[c.ID()]; ok {
		x.chunks[pos] = c
		x.vectors[pos] = vector
		x.norms[pos] = norm(vector)
		return nil
	}

	x.byID[c.ID()] = len(x.chunks)
	x.chunks = append(x.chunks, c)
	x.vectors = append(x.vectors, vector)
	x.norms = append(x.norms, norm(vector))
	return nil
}

// Query scores every stored chunk against the query vector and returns the
// top k by cosine similarity, descending. Ties keep insertion order. k <= 0
// returns all matches. An empty index returns no results and no error.
func (x *Index) Query(vector []float32, k int) ([]chunk.Scored, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(x.chunks) == 0 {
		return nil, nil
	}
	if len(vector) != x.dim {
		return nil, fmt.Errorf("query has dim %d, index has %d: %w",
			len(vector), x.dim, domain.ErrVectorDimMismatch)
	}
	queryNorm := norm(vector)
	if queryNorm == 0 {
		return nil, fmt.Errorf("query vector has zero magnitude: %w", domain.ErrDegenerateVector)
	}

	scored := make([]chunk.Scored, len(x.chunks))
	for i, c := range x.chunks {
		scored[i] = chunk.Scored{Chunk: c, Score: cosine(vector, queryNorm, x.vectors[i], x.norms[i])}
	}

	// Stable sort: равные score сохраняют порядок вставки
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	if k > 0 && k < len(scored) {
		scored = scored[:k]
	}
	return scored, nil
}

// Delete removes a chunk by ID. Returns true iff the chunk was present.
func (x *Index) Delete(id string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()

	pos, ok := x.byID[id]
	if !ok {
		return false
	}
	x.removeLocked(pos)
	return true
}

// DeleteBySource removes every chunk whose source ID matches exactly.
// Returns the number of chunks removed.
func (x *Index) DeleteBySource(sourceID string) int {
	x.mu.Lock()
	defer x.mu.Unlock()

	removed := 0
	for i := 0; i < len(x.chunks); {
		if x.chunks[i].Meta().SourceID() == sourceID {
			x.removeLocked(i)
			removed++
			continue
		}
		i++
	}
	return removed
}

func (x *Index) removeLocked(pos int) {
	delete(x.byID, x.chunks[pos].ID())
	x.chunks = append(x.chunks[:pos], x.chunks[pos+1:]...)
	x.vectors = append(x.vectors[:pos], x.vectors[pos+1:]...)
	x.norms = append(x.norms[:pos], x.norms[pos+1:]...)
	for i := pos; i < len(x.chunks); i++ {
		x.byID[x.chunks[i].ID()] = i
	}
}

// Clear removes everything and unlocks the dimensionality.
// Returns the number of chunks removed.
func (x *Index) Clear() int {
	x.mu.Lock()
	defer x.mu.Unlock()

	n := len(x.chunks)
	x.chunks = nil
	x.vectors = nil
	x.norms = nil
	x.byID = make(map[string]int)
	x.dim = 0
	return n
}

// Len returns the number of stored chunks.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.chunks)
}

// Dim returns the locked vector dimensionality, 0 when the index is empty.
func (x *Index) Dim() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.dim
}

// List returns chunks passing the filter, in insertion order.
func (x *Index) List(filter chunk.ListFilter) []chunk.Chunk {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var out []chunk.Chunk
	for _, c := range x.chunks {
		if filter.Matches(c) {
			out = append(out, c)
		}
	}
	return out
}

// CountBySource counts chunks whose source ID contains the given fragment.
// Substring match so callers can probe with bare video IDs.
func (x *Index) CountBySource(sourceID string) int {
	x.mu.RLock()
	defer x.mu.RUnlock()

	n := 0
	for _, c := range x.chunks {
		if strings.Contains(c.Meta().SourceID(), sourceID) {
			n++
		}
	}
	return n
}

// Stats returns an aggregate snapshot of the index.
func (x *Index) Stats() chunk.Stats {
	x.mu.RLock()
	defer x.mu.RUnlock()

	sources := make(map[string]struct{})
	byType := make(map[chunk.SourceType]int)
	for _, c := range x.chunks {
		sources[c.Meta().SourceID()] = struct{}{}
		byType[c.Meta().Type()]++
	}
	return chunk.Stats{
		Chunks:     len(x.chunks),
		Sources:    len(sources),
		Dimensions: x.dim,
		ByType:     byType,
	}
}

// cosine computes dot(a,b)/(|a||b|) with precomputed norms.
// Zero-magnitude stored vectors score 0 rather than NaN.
func cosine(a []float32, aNorm float64, b []float32, bNorm float64) float64 {
	if aNorm == 0 || bNorm == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (aNorm * bNorm)
}

func norm(v []float32) float64 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum)
}
