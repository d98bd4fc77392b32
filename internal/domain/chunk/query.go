package chunk

import "strings"

// Scored pairs a chunk with its similarity score for one query.
type Scored struct {
	Chunk Chunk
	Score float64
}

// ListFilter narrows admin listings. Zero value matches everything.
type ListFilter struct {
	// Type restricts results to one source type when non-empty.
	Type SourceType
	// Term is a case-insensitive substring match against content and title.
	Term string
}

// Matches reports whether a chunk passes the filter.
func (f ListFilter) Matches(c Chunk) bool {
	if f.Type != "" && c.Meta().Type() != f.Type {
		return false
	}
	if f.Term != "" {
		term := strings.ToLower(f.Term)
		if !strings.Contains(strings.ToLower(c.Content()), term) &&
			!strings.Contains(strings.ToLower(c.Meta().Title()), term) {
			return false
		}
	}
	return true
}

// Stats is an aggregate snapshot of the index contents.
type Stats struct {
	Chunks     int
	Sources    int
	Dimensions int
	ByType     map[SourceType]int
}
