package library

import "github.com/studyowl/ragserver/internal/domain/chunk"

// Service is the admin view over the index: listing, deletion, stats.
// Transport goes through it so handlers never touch the index directly.
type Service struct {
	index Indexer
}

// New creates a library service.
func New(index Indexer) *Service {
	return &Service{index: index}
}

// List returns indexed chunks passing the filter, in insertion order.
func (s *Service) List(filter chunk.ListFilter) []chunk.Chunk {
	return s.index.List(filter)
}

// Delete removes one chunk by ID. Returns true iff it was present.
func (s *Service) Delete(id string) bool {
	return s.index.Delete(id)
}

// Clear wipes the index. Returns the number of chunks removed.
func (s *Service) Clear() int {
	return s.index.Clear()
}

// Stats returns an aggregate snapshot of the index.
func (s *Service) Stats() chunk.Stats {
	return s.index.Stats()
}
