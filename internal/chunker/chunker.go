// Package chunker splits ingested text into overlapping, sentence-aligned
// fragments sized for embedding.
package chunker

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var sentenceRegex = regexp.MustCompile(`[^.!?]+[.!?]+`)

// Default chunking parameters, in characters.
const (
	DefaultChunkSize    = 1000
	DefaultOverlap      = 200
	DefaultMinChunkSize = 50
)

// Config holds chunking parameters. All sizes are in bytes of UTF-8 text.
type Config struct {
	// ChunkSize is the target maximum fragment length. A single sentence
	// longer than this still becomes one oversized fragment: sentences are
	// never split mid-way.
	ChunkSize int
	// Overlap is how much of a fragment's tail seeds the next fragment,
	// advanced to the next word boundary.
	Overlap int
	// MinChunkSize drops fragments shorter than this after splitting.
	MinChunkSize int
}

// DefaultConfig returns the production chunking parameters.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    DefaultChunkSize,
		Overlap:      DefaultOverlap,
		MinChunkSize: DefaultMinChunkSize,
	}
}

// Fragment is one piece of split text. Index is contiguous from 0 after
// the minimum-size filter.
type Fragment struct {
	Text  string
	Index int
}

// Chunker splits text deterministically: the same input and config always
// produce the same fragments.
type Chunker struct {
	cfg Config
}

// New validates the config and creates a Chunker.
func New(cfg Config) (*Chunker, error) {
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", cfg.ChunkSize)
	}
	if cfg.Overlap < 0 {
		return nil, fmt.Errorf("overlap must be non-negative, got %d", cfg.Overlap)
	}
	if cfg.Overlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("overlap %d must be smaller than chunk size %d", cfg.Overlap, cfg.ChunkSize)
	}
	if cfg.MinChunkSize < 0 {
		return nil, fmt.Errorf("min chunk size must be non-negative, got %d", cfg.MinChunkSize)
	}
	return &Chunker{cfg: cfg}, nil
}

// Split cuts text into sentence-aligned fragments with word-aligned overlap.
// Whitespace-only input yields no fragments.
func (c *Chunker) Split(text string) []Fragment {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var fragments []Fragment
	var current strings.Builder

	flush := func() {
		content := strings.TrimSpace(current.String())
		current.Reset()
		if content == "" {
			return
		}
		fragments = append(fragments, Fragment{Text: content, Index: len(fragments)})
		if c.cfg.Overlap > 0 {
			if overlap := tailOverlap(content, c.cfg.Overlap); overlap != "" {
				current.WriteString(overlap)
				current.WriteString(" ")
			}
		}
	}

	for _, sentence := range splitSentences(text) {
		if current.Len() > 0 && current.Len()+len(sentence) > c.cfg.ChunkSize {
			flush()
		}
		current.WriteString(sentence)
		current.WriteString(" ")
	}
	if strings.TrimSpace(current.String()) != "" {
		content := strings.TrimSpace(current.String())
		fragments = append(fragments, Fragment{Text: content, Index: len(fragments)})
	}

	// Drop undersized fragments and close the index gaps they leave.
	kept := fragments[:0]
	for _, f := range fragments {
		if len(f.Text) >= c.cfg.MinChunkSize {
			f.Index = len(kept)
			kept = append(kept, f)
		}
	}
	return kept
}

// splitSentences cuts text at ., ! and ? boundaries. Text after the last
// terminator is kept as a final sentence.
func splitSentences(text string) []string {
	var sentences []string
	last := 0
	for _, loc := range sentenceRegex.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[loc[0]:loc[1]]); s != "" {
			sentences = append(sentences, s)
		}
		last = loc[1]
	}
	if tail := strings.TrimSpace(text[last:]); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

// tailOverlap returns the last size bytes of text advanced to the next word
// boundary, so the overlap never starts mid-word. Returns the raw tail when
// it contains no space, and the whole text when size covers it.
func tailOverlap(text string, size int) string {
	if size <= 0 || text == "" {
		return ""
	}
	if size >= len(text) {
		return text
	}
	// Shrink to a rune boundary: a byte cut can land mid-rune and a
	// spaceless tail would then carry invalid UTF-8 into the next fragment.
	for size > 0 && !utf8.RuneStart(text[len(text)-size]) {
		size--
	}
	if size == 0 {
		return ""
	}
	tail := text[len(text)-size:]
	if firstSpace := strings.Index(tail, " "); firstSpace > 0 {
		return tail[firstSpace+1:]
	}
	return tail
}
