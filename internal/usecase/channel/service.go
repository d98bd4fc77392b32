package channel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/studyowl/ragserver/internal/domain"
	"github.com/studyowl/ragserver/internal/domain/batch"
	"github.com/studyowl/ragserver/internal/domain/chunk"
)

// Batch size limits per request.
const (
	DefaultMaxVideos = 10
	MaxVideosLimit   = 50
)

// Request is a channel batch ingest request. Channel accepts a UC id,
// an @handle, a /channel/ URL or a bare handle.
type Request struct {
	Channel      string
	MaxVideos    int
	SkipExisting bool
}

// Report aggregates per-video outcomes of one channel batch. TotalChunks
// counts newly created chunks plus pre-existing chunks of skipped videos.
type Report struct {
	ChannelID   string
	Requested   int
	Processed   int
	Succeeded   int
	Skipped     int
	Failed      int
	TotalChunks int
	Results     []batch.Result
}

// Service ingests a channel's recent uploads sequentially: captions first,
// audio transcription when a video has none. One video's failure never
// aborts the batch; embedding quota and rate-limit errors do, marking the
// remaining videos failed without further provider calls.
type Service struct {
	lister    Lister
	captions  TranscriptFetcher
	audio     AudioDownloader
	stt       Transcriber
	index     Indexer
	pipeline  Pipeline
	maxVideos int
}

// New creates a channel batch service. audio and stt may be nil when speech
// to text is not configured; captionless videos then report whisper_failed.
func New(
	lister Lister,
	captions TranscriptFetcher,
	audio AudioDownloader,
	stt Transcriber,
	index Indexer,
	pipeline Pipeline,
) *Service {
	return &Service{
		lister:    lister,
		captions:  captions,
		audio:     audio,
		stt:       stt,
		index:     index,
		pipeline:  pipeline,
		maxVideos: MaxVideosLimit,
	}
}

// WithMaxVideos lowers the per-request video cap.
func (s *Service) WithMaxVideos(limit int) *Service {
	if limit > 0 {
		s.maxVideos = limit
	}
	return s
}

// Ingest lists up to MaxVideos recent uploads and processes them in listing
// order. Skipped videos report their pre-existing chunk count so the batch
// total reflects everything indexed for the channel.
func (s *Service) Ingest(ctx context.Context, req Request) (Report, error) {
	if strings.TrimSpace(req.Channel) == "" {
		return Report{}, fmt.Errorf("channel is required: %w", domain.ErrValidation)
	}

	max := req.MaxVideos
	if max <= 0 {
		max = DefaultMaxVideos
	}
	if max > s.maxVideos {
		max = s.maxVideos
	}

	videos, err := s.lister.ChannelUploads(ctx, req.Channel, max)
	if err != nil {
		return Report{}, fmt.Errorf("list channel uploads: %w", err)
	}

	results := make([]batch.Result, len(videos))
	for i, v := range videos {
		if req.SkipExisting {
			if existing := s.index.CountBySource(v.ID); existing > 0 {
				results[i] = batch.NewSkipped(v.ID, v.Title, existing)
				continue
			}
		}

		receipt, err := s.ingestOne(ctx, v)
		if err != nil {
			cascade := errors.Is(err, domain.ErrEmbeddingQuotaExceeded) ||
				errors.Is(err, domain.ErrRateLimited)
			results[i] = failureResult(v, err)
			if cascade {
				for j := i + 1; j < len(videos); j++ {
					results[j] = batch.NewError(videos[j].ID, videos[j].Title, err)
				}
				break
			}
			continue
		}

		results[i] = batch.NewSuccess(v.ID, v.Title, receipt.Chunks)
	}

	return buildReport(req.Channel, videos, results), nil
}

// ingestOne obtains a transcript for one upload and runs the pipeline.
// Captions are tried first; a captionless video falls back to audio
// transcription when configured.
func (s *Service) ingestOne(ctx context.Context, v domain.VideoInfo) (domain.IngestReceipt, error) {
	transcript, err := s.captions.Transcript(ctx, v.ID)
	if err != nil && errors.Is(err, domain.ErrNoTranscript) && s.whisperEnabled() {
		transcript, err = s.whisperTranscript(ctx, v.ID)
	}
	if err != nil {
		return domain.IngestReceipt{}, err
	}

	meta, err := chunk.NewVideoMeta(v.ID, v.Title, v.URL, time.Now().UTC())
	if err != nil {
		return domain.IngestReceipt{}, fmt.Errorf("build provenance: %w", err)
	}

	return s.pipeline.Run(ctx, transcript, meta)
}

func (s *Service) whisperEnabled() bool {
	return s.audio != nil && s.stt != nil
}

func (s *Service) whisperTranscript(ctx context.Context, videoID string) (string, error) {
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

// failureResult classifies a per-video failure: missing captions and audio
// transcription failures are whisper_failed, everything else is error.
func failureResult(v domain.VideoInfo, err error) batch.Result {
	if errors.Is(err, domain.ErrNoTranscript) || errors.Is(err, domain.ErrTranscriptionFailed) {
		return batch.NewWhisperFailed(v.ID, v.Title, err)
	}
	return batch.NewError(v.ID, v.Title, err)
}

func buildReport(channelRef string, videos []domain.VideoInfo, results []batch.Result) Report {
	report := Report{
		ChannelID: channelRef,
		Requested: len(videos),
		Results:   results,
	}
	if len(videos) > 0 && videos[0].ChannelID != "" {
		report.ChannelID = videos[0].ChannelID
	}

	for _, r := range results {
		report.TotalChunks += r.Chunks()
		switch r.Status() {
		case batch.StatusSkipped:
			report.Skipped++
		case batch.StatusSuccess:
			report.Succeeded++
			report.Processed++
		default:
			report.Failed++
			report.Processed++
		}
	}
	return report
}
