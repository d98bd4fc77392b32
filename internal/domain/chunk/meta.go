package chunk

import (
	"fmt"
	"time"
)

// SourceType identifies the provenance of ingested content.
type SourceType string

// Source type values.
const (
	SourceDocument SourceType = "document"
	SourceYouTube  SourceType = "youtube"
)

// Valid reports whether the source type is one of the known values.
func (s SourceType) Valid() bool {
	return s == SourceDocument || s == SourceYouTube
}

// SourceMeta is the closed set of chunk provenance variants. Exactly two
// implementations exist: DocumentMeta and VideoMeta. The unexported method
// keeps the set closed.
type SourceMeta interface {
	Type() SourceType
	// SourceID is the stable identifier shared by all chunks of one source:
	// the generated document ID or the YouTube video ID.
	SourceID() string
	Title() string
	// Label is the human-readable citation label: the title when present,
	// a per-variant fallback otherwise.
	Label() string
	// Ref is the citation target: the watch URL for videos, the original
	// file name (or the source ID) for documents.
	Ref() string
	ChunkIndex() int
	IngestedAt() time.Time
	// WithIndex returns a copy with the chunk index set.
	WithIndex(i int) SourceMeta

	sealed()
}

// DocumentMeta is provenance for chunks from uploaded or pasted documents.
type DocumentMeta struct {
	source     string
	fileName   string
	title      string
	chunkIndex int
	ingestedAt time.Time
}

// NewDocumentMeta validates and creates document provenance.
func NewDocumentMeta(source, fileName, title string, ingestedAt time.Time) (DocumentMeta, error) {
	if source == "" {
		return DocumentMeta{}, fmt.Errorf("document source is required")
	}
	if !idRegex.MatchString(source) {
		return DocumentMeta{}, fmt.Errorf("document source must be alphanumeric with underscores and hyphens")
	}
	return DocumentMeta{source: source, fileName: fileName, title: title, ingestedAt: ingestedAt}, nil
}

func (m DocumentMeta) Type() SourceType      { return SourceDocument }
func (m DocumentMeta) SourceID() string      { return m.source }
func (m DocumentMeta) Title() string         { return m.title }
func (m DocumentMeta) ChunkIndex() int       { return m.chunkIndex }
func (m DocumentMeta) IngestedAt() time.Time { return m.ingestedAt }
func (m DocumentMeta) FileName() string      { return m.fileName }

// Label returns the title, falling back to the file name, then the source ID.
func (m DocumentMeta) Label() string {
	if m.title != "" {
		return m.title
	}
	if m.fileName != "" {
		return m.fileName
	}
	return m.source
}

// Ref returns the original file name when known, the source ID otherwise.
func (m DocumentMeta) Ref() string {
	if m.fileName != "" {
		return m.fileName
	}
	return m.source
}

// WithIndex returns a copy with the chunk index set.
func (m DocumentMeta) WithIndex(i int) SourceMeta {
	m.chunkIndex = i
	return m
}

func (DocumentMeta) sealed() {}

// VideoMeta is provenance for chunks from YouTube transcripts.
type VideoMeta struct {
	videoID    string
	title      string
	url        string
	chunkIndex int
	ingestedAt time.Time
}

// NewVideoMeta validates and creates video provenance.
func NewVideoMeta(videoID, title, url string, ingestedAt time.Time) (VideoMeta, error) {
	if videoID == "" {
		return VideoMeta{}, fmt.Errorf("video ID is required")
	}
	if !idRegex.MatchString(videoID) {
		return VideoMeta{}, fmt.Errorf("video ID must be alphanumeric with underscores and hyphens")
	}
	return VideoMeta{videoID: videoID, title: title, url: url, ingestedAt: ingestedAt}, nil
}

func (m VideoMeta) Type() SourceType      { return SourceYouTube }
func (m VideoMeta) SourceID() string      { return m.videoID }
func (m VideoMeta) Title() string         { return m.title }
func (m VideoMeta) ChunkIndex() int       { return m.chunkIndex }
func (m VideoMeta) IngestedAt() time.Time { return m.ingestedAt }
func (m VideoMeta) VideoID() string       { return m.videoID }
func (m VideoMeta) URL() string           { return m.url }

// Label returns the title, falling back to the video ID.
func (m VideoMeta) Label() string {
	if m.title != "" {
		return m.title
	}
	return m.videoID
}

// Ref returns the watch URL when known, the video ID otherwise.
func (m VideoMeta) Ref() string {
	if m.url != "" {
		return m.url
	}
	return m.videoID
}

// WithIndex returns a copy with the chunk index set.
func (m VideoMeta) WithIndex(i int) SourceMeta {
	m.chunkIndex = i
	return m
}

func (VideoMeta) sealed() {}
