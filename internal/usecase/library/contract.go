package library

import "github.com/studyowl/ragserver/internal/domain/chunk"

// Indexer is the slice of the index the admin surface needs.
type Indexer interface {
	List(filter chunk.ListFilter) []chunk.Chunk
	Delete(id string) bool
	Clear() int
	Stats() chunk.Stats
}
