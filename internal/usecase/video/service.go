package video

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/studyowl/ragserver/internal/domain"
	"github.com/studyowl/ragserver/internal/domain/chunk"
)

// Strategy selects how a video transcript is obtained.
type Strategy string

// Transcript strategies. Caption is the default. A caption request never
// falls back to whisper on its own: the caller picks the next strategy.
const (
	StrategyCaption Strategy = "caption"
	StrategyWhisper Strategy = "whisper"
	StrategyManual  Strategy = "manual"
)

// Valid reports whether the strategy is one of the known values.
func (s Strategy) Valid() bool {
	return s == StrategyCaption || s == StrategyWhisper || s == StrategyManual
}

// Request is a single-video ingest request. VideoID and URL come from the
// transport layer, which parses and canonicalizes the submitted link.
type Request struct {
	VideoID    string
	URL        string
	Strategy   Strategy // empty → caption
	Transcript string   // manual strategy only
	Title      string   // optional override
	Force      bool     // re-ingest even when chunks exist
}

// Service ingests single YouTube videos by caption scrape, audio
// transcription or manual transcript.
type Service struct {
	metadata MetadataFetcher
	captions TranscriptFetcher
	audio    AudioDownloader
	stt      Transcriber
	index    Indexer
	pipeline Pipeline
}

// New creates a video ingest service. audio and stt may be nil when speech
// to text is not configured; the whisper strategy then fails validation.
func New(
	metadata MetadataFetcher,
	captions TranscriptFetcher,
	audio AudioDownloader,
	stt Transcriber,
	index Indexer,
	pipeline Pipeline,
) *Service {
	return &Service{
		metadata: metadata,
		captions: captions,
		audio:    audio,
		stt:      stt,
		index:    index,
		pipeline: pipeline,
	}
}

// WhisperEnabled reports whether the audio transcription path is configured.
func (s *Service) WhisperEnabled() bool {
	return s.audio != nil && s.stt != nil
}

// Ingest obtains a transcript using the requested strategy, then chunks and
// indexes it under the video's ID. Re-ingesting an already indexed video is
// rejected unless Force is set, in which case stale chunks are replaced:
// the old set is dropped only after a fresh transcript was obtained.
func (s *Service) Ingest(ctx context.Context, req Request) (domain.IngestReceipt, error) {
	strategy := req.Strategy
	if strategy == "" {
		strategy = StrategyCaption
	}
	if !strategy.Valid() {
		return domain.IngestReceipt{}, fmt.Errorf("unknown strategy %q: %w", strategy, domain.ErrValidation)
	}
	if req.VideoID == "" {
		return domain.IngestReceipt{}, fmt.Errorf("video ID is required: %w", domain.ErrValidation)
	}

	existing := s.index.CountBySource(req.VideoID)
	if existing > 0 && !req.Force {
		return domain.IngestReceipt{}, fmt.Errorf("video %s: %w", req.VideoID, domain.ErrAlreadyIngested)
	}

	transcript, err := s.transcript(ctx, strategy, req)
	if err != nil {
		return domain.IngestReceipt{}, err
	}

	info := s.enrich(ctx, strategy, req)

	title := req.Title
	if title == "" {
		title = info.Title
	}
	url := info.URL
	if url == "" {
		url = req.URL
	}

	meta, err := chunk.NewVideoMeta(req.VideoID, title, url, time.Now().UTC())
	if err != nil {
		return domain.IngestReceipt{}, fmt.Errorf("build provenance: %w", err)
	}

	// Stale chunks go only once the new transcript is in hand: a failed
	// fetch must not cost the video its previously indexed copy.
	if existing > 0 {
		s.index.DeleteBySource(req.VideoID)
	}

	return s.pipeline.Run(ctx, transcript, meta)
}

func (s *Service) transcript(ctx context.Context, strategy Strategy, req Request) (string, error) {
	switch strategy {
	case StrategyCaption:
		transcript, err := s.captions.Transcript(ctx, req.VideoID)
		if err != nil {
			return "", fmt.Errorf("captions for %s: %w", req.VideoID, err)
		}
		return transcript, nil

	case StrategyWhisper:
		return s.whisperTranscript(ctx, req.VideoID)

	default: // manual
		transcript := strings.TrimSpace(req.Transcript)
		if transcript == "" {
			return "", fmt.Errorf("manual strategy requires a transcript: %w", domain.ErrValidation)
		}
		return transcript, nil
	}
}

func (s *Service) whisperTranscript(ctx context.Context, videoID string) (string, error) {
	if !s.WhisperEnabled() {
		return "", fmt.Errorf("whisper transcription is not configured: %w", domain.ErrValidation)
	}

	path, cleanup, err := s.audio.DownloadAudio(ctx, videoID)
	if err != nil {
		return "", fmt.Errorf("download audio for %s: %w", videoID, err)
	}
	defer cleanup()

	transcript, err := s.stt.Transcribe(ctx, path)
	if err != nil {
		return "", fmt.Errorf("transcribe %s: %w", videoID, err)
	}
	return transcript, nil
}

// enrich fetches optional metadata. Lookup failures degrade to URL-derived
// defaults; the manual strategy never fetches.
func (s *Service) enrich(ctx context.Context, strategy Strategy, req Request) domain.VideoInfo {
	fallback := domain.VideoInfo{ID: req.VideoID, URL: req.URL}
	if strategy == StrategyManual || s.metadata == nil {
		return fallback
	}

	info, err := s.metadata.VideoMetadata(ctx, req.VideoID)
	if err != nil {
		return fallback
	}
	return info
}
