package channel

import (
	"context"
	"errors"
	"testing"

	"github.com/studyowl/ragserver/internal/domain"
	"github.com/studyowl/ragserver/internal/domain/batch"
	"github.com/studyowl/ragserver/internal/domain/chunk"
)

// --- Mocks ---

type mockLister struct {
	videos []domain.VideoInfo
	err    error
	gotMax int
}

func (m *mockLister) ChannelUploads(_ context.Context, _ string, max int) ([]domain.VideoInfo, error) {
	m.gotMax = max
	if m.err != nil {
		return nil, m.err
	}
	return m.videos, nil
}

type mockCaptions struct {
	transcripts map[string]string
	calls       int
}

func (m *mockCaptions) Transcript(_ context.Context, videoID string) (string, error) {
	m.calls++
	if t, ok := m.transcripts[videoID]; ok {
		return t, nil
	}
	return "", domain.ErrNoTranscript
}

type mockAudio struct {
	err      error
	cleanups int
}

func (m *mockAudio) DownloadAudio(_ context.Context, _ string) (string, func(), error) {
	if m.err != nil {
		return "", nil, m.err
	}
	return "/tmp/audio.m4a", func() { m.cleanups++ }, nil
}

type mockTranscriber struct {
	text string
	err  error
}

func (m *mockTranscriber) Transcribe(_ context.Context, _ string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.text, nil
}

type mockIndex struct {
	counts map[string]int
}

func (m *mockIndex) CountBySource(sourceID string) int { return m.counts[sourceID] }

type mockPipeline struct {
	chunks  int
	errs    map[string]error // keyed by source ID
	sources []string
}

func (m *mockPipeline) Run(_ context.Context, _ string, meta chunk.SourceMeta) (domain.IngestReceipt, error) {
	m.sources = append(m.sources, meta.SourceID())
	if err := m.errs[meta.SourceID()]; err != nil {
		return domain.IngestReceipt{}, err
	}
	return domain.IngestReceipt{Source: meta.SourceID(), Chunks: m.chunks}, nil
}

type testDeps struct {
	lister   *mockLister
	captions *mockCaptions
	audio    *mockAudio
	stt      *mockTranscriber
	index    *mockIndex
	pipeline *mockPipeline
}

func threeVideos() []domain.VideoInfo {
	return []domain.VideoInfo{
		{ID: "aaaaaaaaaa1", Title: "First", URL: "https://www.youtube.com/watch?v=aaaaaaaaaa1", ChannelID: "UCBR8-60-B28hp2BmDPdntcQ"},
		{ID: "bbbbbbbbbb2", Title: "Second", URL: "https://www.youtube.com/watch?v=bbbbbbbbbb2", ChannelID: "UCBR8-60-B28hp2BmDPdntcQ"},
		{ID: "cccccccccc3", Title: "Third", URL: "https://www.youtube.com/watch?v=cccccccccc3", ChannelID: "UCBR8-60-B28hp2BmDPdntcQ"},
	}
}

func newTestDeps() *testDeps {
	return &testDeps{
		lister: &mockLister{videos: threeVideos()},
		captions: &mockCaptions{transcripts: map[string]string{
			"aaaaaaaaaa1": "First transcript.",
			"bbbbbbbbbb2": "Second transcript.",
			"cccccccccc3": "Third transcript.",
		}},
		audio:    &mockAudio{},
		stt:      &mockTranscriber{text: "Whisper transcript."},
		index:    &mockIndex{counts: map[string]int{}},
		pipeline: &mockPipeline{chunks: 2, errs: map[string]error{}},
	}
}

func (d *testDeps) service() *Service {
	return New(d.lister, d.captions, d.audio, d.stt, d.index, d.pipeline)
}

func request() Request {
	return Request{Channel: "@studyowl", MaxVideos: 3}
}

// --- Ingest tests ---

func TestIngest_AllSucceed(t *testing.T) {
	deps := newTestDeps()
	svc := deps.service()

	report, err := svc.Ingest(context.Background(), request())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Requested != 3 || report.Succeeded != 3 || report.Failed != 0 {
		t.Errorf("report = %+v", report)
	}
	if report.TotalChunks != 6 {
		t.Errorf("expected 6 total chunks, got %d", report.TotalChunks)
	}
	if report.ChannelID != "UCBR8-60-B28hp2BmDPdntcQ" {
		t.Errorf("expected resolved channel ID, got %q", report.ChannelID)
	}

	// Видео обрабатываются строго последовательно, в порядке выдачи
	want := []string{"aaaaaaaaaa1", "bbbbbbbbbb2", "cccccccccc3"}
	if len(deps.pipeline.sources) != len(want) {
		t.Fatalf("expected %d pipeline runs, got %d", len(want), len(deps.pipeline.sources))
	}
	for i, id := range want {
		if deps.pipeline.sources[i] != id {
			t.Errorf("pipeline run %d = %q, want %q", i, deps.pipeline.sources[i], id)
		}
	}
}

func TestIngest_SkipExisting(t *testing.T) {
	deps := newTestDeps()
	deps.index.counts["aaaaaaaaaa1"] = 4
	deps.index.counts["bbbbbbbbbb2"] = 3
	svc := deps.service()

	req := request()
	req.SkipExisting = true
	report, err := svc.Ingest(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Skipped != 2 || report.Succeeded != 1 {
		t.Errorf("expected 2 skipped and 1 succeeded, got %+v", report)
	}
	// Итог включает уже существующие чанки пропущенных видео: 4 + 3 + 2 новых
	if report.TotalChunks != 9 {
		t.Errorf("expected 9 total chunks, got %d", report.TotalChunks)
	}
	if got := report.Results[0].Status(); got != batch.StatusSkipped {
		t.Errorf("first result = %q, want skipped", got)
	}
	if got := report.Results[0].Chunks(); got != 4 {
		t.Errorf("skipped result keeps existing chunk count, got %d", got)
	}
	if len(deps.pipeline.sources) != 1 || deps.pipeline.sources[0] != "cccccccccc3" {
		t.Errorf("expected only the new video processed, got %v", deps.pipeline.sources)
	}
}

func TestIngest_SkipExistingDisabled(t *testing.T) {
	deps := newTestDeps()
	deps.index.counts["aaaaaaaaaa1"] = 4
	svc := deps.service()

	report, err := svc.Ingest(context.Background(), request())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Skipped != 0 || report.Succeeded != 3 {
		t.Errorf("expected no skips without the flag, got %+v", report)
	}
}

func TestIngest_WhisperFallback(t *testing.T) {
	deps := newTestDeps()
	delete(deps.captions.transcripts, "bbbbbbbbbb2")
	svc := deps.service()

	report, err := svc.Ingest(context.Background(), request())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Succeeded != 3 {
		t.Errorf("expected whisper fallback success, got %+v", report)
	}
	if deps.audio.cleanups != 1 {
		t.Errorf("expected one audio download with cleanup, got %d", deps.audio.cleanups)
	}
}

func TestIngest_WhisperFailed(t *testing.T) {
	deps := newTestDeps()
	delete(deps.captions.transcripts, "bbbbbbbbbb2")
	deps.stt.err = domain.ErrTranscriptionFailed
	svc := deps.service()

	report, err := svc.Ingest(context.Background(), request())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := report.Results[1].Status(); got != batch.StatusWhisperFailed {
		t.Errorf("second result = %q, want whisper_failed", got)
	}
	// Одно упавшее видео не прерывает батч
	if report.Succeeded != 2 || report.Failed != 1 {
		t.Errorf("expected 2 succeeded and 1 failed, got %+v", report)
	}
	if deps.audio.cleanups != 1 {
		t.Errorf("expected temp file cleanup on failure, got %d", deps.audio.cleanups)
	}
}

func TestIngest_NoCaptionsNoWhisper(t *testing.T) {
	deps := newTestDeps()
	delete(deps.captions.transcripts, "bbbbbbbbbb2")
	svc := New(deps.lister, deps.captions, nil, nil, deps.index, deps.pipeline)

	report, err := svc.Ingest(context.Background(), request())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := report.Results[1].Status(); got != batch.StatusWhisperFailed {
		t.Errorf("second result = %q, want whisper_failed", got)
	}
	if !errors.Is(report.Results[1].Err(), domain.ErrNoTranscript) {
		t.Errorf("expected ErrNoTranscript kept, got %v", report.Results[1].Err())
	}
}

func TestIngest_QuotaCascade(t *testing.T) {
	deps := newTestDeps()
	deps.pipeline.errs["aaaaaaaaaa1"] = domain.ErrEmbeddingQuotaExceeded
	svc := deps.service()

	report, err := svc.Ingest(context.Background(), request())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Failed != 3 {
		t.Errorf("expected all 3 failed on quota cascade, got %+v", report)
	}
	for i, r := range report.Results {
		if r.Status() != batch.StatusError {
			t.Errorf("result %d = %q, want error", i, r.Status())
		}
		if !errors.Is(r.Err(), domain.ErrEmbeddingQuotaExceeded) {
			t.Errorf("result %d err = %v", i, r.Err())
		}
	}
	// Оставшиеся видео не трогают внешние API
	if deps.captions.calls != 1 {
		t.Errorf("expected 1 caption fetch before cascade, got %d", deps.captions.calls)
	}
	if len(deps.pipeline.sources) != 1 {
		t.Errorf("expected 1 pipeline run before cascade, got %d", len(deps.pipeline.sources))
	}
}

func TestIngest_RateLimitCascade(t *testing.T) {
	deps := newTestDeps()
	deps.pipeline.errs["bbbbbbbbbb2"] = domain.ErrRateLimited
	svc := deps.service()

	report, err := svc.Ingest(context.Background(), request())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Succeeded != 1 || report.Failed != 2 {
		t.Errorf("expected first success then cascade, got %+v", report)
	}
	if got := report.Results[2].Status(); got != batch.StatusError {
		t.Errorf("third result = %q, want error", got)
	}
}

func TestIngest_OtherErrorContinues(t *testing.T) {
	deps := newTestDeps()
	deps.pipeline.errs["aaaaaaaaaa1"] = domain.ErrEmbeddingProviderError
	svc := deps.service()

	report, err := svc.Ingest(context.Background(), request())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Succeeded != 2 || report.Failed != 1 {
		t.Errorf("expected batch to continue past provider error, got %+v", report)
	}
	if got := report.Results[0].Status(); got != batch.StatusError {
		t.Errorf("first result = %q, want error", got)
	}
}

func TestIngest_EmptyChannel(t *testing.T) {
	deps := newTestDeps()
	deps.lister.videos = nil
	svc := deps.service()

	report, err := svc.Ingest(context.Background(), request())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Requested != 0 || len(report.Results) != 0 {
		t.Errorf("expected empty report, got %+v", report)
	}
}

func TestIngest_ListerError(t *testing.T) {
	deps := newTestDeps()
	deps.lister.err = domain.ErrNotFound
	svc := deps.service()

	_, err := svc.Ingest(context.Background(), request())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestIngest_MissingChannel(t *testing.T) {
	svc := newTestDeps().service()

	_, err := svc.Ingest(context.Background(), Request{})
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestIngest_MaxVideosLimits(t *testing.T) {
	deps := newTestDeps()
	svc := deps.service()

	req := request()
	req.MaxVideos = 500
	if _, err := svc.Ingest(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deps.lister.gotMax != MaxVideosLimit {
		t.Errorf("expected cap at %d, got %d", MaxVideosLimit, deps.lister.gotMax)
	}

	req.MaxVideos = 0
	if _, err := svc.Ingest(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deps.lister.gotMax != DefaultMaxVideos {
		t.Errorf("expected default %d, got %d", DefaultMaxVideos, deps.lister.gotMax)
	}
}
