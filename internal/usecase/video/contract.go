package video

import (
	"context"

	"github.com/studyowl/ragserver/internal/domain"
	"github.com/studyowl/ragserver/internal/domain/chunk"
)

// MetadataFetcher looks up video metadata. Implementations degrade to
// URL-derived defaults when the Data API is not configured.
type MetadataFetcher interface {
	VideoMetadata(ctx context.Context, videoID string) (domain.VideoInfo, error)
}

// TranscriptFetcher obtains a video's caption transcript.
type TranscriptFetcher interface {
	Transcript(ctx context.Context, videoID string) (string, error)
}

// AudioDownloader fetches a video's audio track to a temporary file.
// The returned cleanup removes the file and must run on every path.
type AudioDownloader interface {
	DownloadAudio(ctx context.Context, videoID string) (path string, cleanup func(), err error)
}

// Transcriber converts an audio file to text.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// Indexer answers duplicate probes and clears stale chunks on re-ingest.
type Indexer interface {
	CountBySource(sourceID string) int
	DeleteBySource(sourceID string) int
}

// Pipeline chunks, vectorizes and indexes normalized transcript text.
type Pipeline interface {
	Run(ctx context.Context, text string, meta chunk.SourceMeta) (domain.IngestReceipt, error)
}
