package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/studyowl/ragserver/internal/domain"
	"github.com/studyowl/ragserver/internal/domain/chunk"
)

// --- Mocks ---

type mockEmbedder struct {
	result  domain.EmbeddingResult
	err     error
	gotText string
	calls   int
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.calls++
	m.gotText = text
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return m.result, nil
}

type mockSearcher struct {
	matches   []chunk.Scored
	err       error
	gotVector []float32
	gotK      int
	calls     int
}

func (m *mockSearcher) Query(vector []float32, k int) ([]chunk.Scored, error) {
	m.calls++
	m.gotVector = vector
	m.gotK = k
	if m.err != nil {
		return nil, m.err
	}
	return m.matches, nil
}

// --- Helpers ---

func docScored(t *testing.T, idx int, content string, score float64) chunk.Scored {
	t.Helper()
	meta, err := chunk.NewDocumentMeta("doc-abc123", "notes.pdf", "Lecture notes", time.Unix(1700000000, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c, err := chunk.New(idx, content, meta)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return chunk.Scored{Chunk: c, Score: score}
}

func videoScored(t *testing.T, idx int, content string, score float64) chunk.Scored {
	t.Helper()
	meta, err := chunk.NewVideoMeta("dQw4w9WgXcQ", "Intro to robotics", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", time.Unix(1700000000, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c, err := chunk.New(idx, content, meta)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return chunk.Scored{Chunk: c, Score: score}
}

func newTestService(emb *mockEmbedder, idx *mockSearcher) *Service {
	return New(emb, idx)
}

// --- Retrieve ---

func TestRetrieve_Success(t *testing.T) {
	emb := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.1, 0.2}, TotalTokens: 4}}
	idx := &mockSearcher{matches: []chunk.Scored{
		docScored(t, 0, "Robots use sensors to perceive the world around them.", 0.93),
		videoScored(t, 2, "Actuators convert control signals into motion.", 0.87),
	}}
	svc := newTestService(emb, idx)

	matches, err := svc.Retrieve(context.Background(), "how do robots sense?", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	// Порядок выдачи индекса сохраняется как есть
	if matches[0].Score < matches[1].Score {
		t.Error("matches must keep the index ranking")
	}
	if emb.gotText != "how do robots sense?" {
		t.Errorf("embedded text = %q", emb.gotText)
	}
	if idx.gotK != 2 {
		t.Errorf("k = %d, want 2", idx.gotK)
	}
	if len(idx.gotVector) != 2 {
		t.Errorf("query vector length = %d, want 2", len(idx.gotVector))
	}
}

func TestRetrieve_EmptyQuery(t *testing.T) {
	svc := newTestService(&mockEmbedder{}, &mockSearcher{})

	for _, query := range []string{"", "   ", "\n\t"} {
		if _, err := svc.Retrieve(context.Background(), query, 5); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("Retrieve(%q): expected ErrValidation, got %v", query, err)
		}
	}
}

func TestRetrieve_DefaultK(t *testing.T) {
	emb := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	idx := &mockSearcher{}
	svc := newTestService(emb, idx)

	if _, err := svc.Retrieve(context.Background(), "query", 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx.gotK != DefaultTopK {
		t.Errorf("k = %d, want default %d", idx.gotK, DefaultTopK)
	}

	if _, err := svc.Retrieve(context.Background(), "query", -3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx.gotK != DefaultTopK {
		t.Errorf("k = %d, want default %d for negative input", idx.gotK, DefaultTopK)
	}
}

func TestRetrieve_ClampsK(t *testing.T) {
	emb := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	idx := &mockSearcher{}
	svc := newTestService(emb, idx)

	if _, err := svc.Retrieve(context.Background(), "query", 500); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx.gotK != MaxTopK {
		t.Errorf("k = %d, want cap %d", idx.gotK, MaxTopK)
	}
}

func TestRetrieve_WithTopKOverrides(t *testing.T) {
	emb := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	idx := &mockSearcher{}
	svc := newTestService(emb, idx).WithTopK(7, 9)

	if _, err := svc.Retrieve(context.Background(), "query", 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx.gotK != 7 {
		t.Errorf("k = %d, want configured default 7", idx.gotK)
	}

	if _, err := svc.Retrieve(context.Background(), "query", 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx.gotK != 9 {
		t.Errorf("k = %d, want configured cap 9", idx.gotK)
	}
}

func TestRetrieve_EmptyIndex(t *testing.T) {
	emb := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	svc := newTestService(emb, &mockSearcher{})

	matches, err := svc.Retrieve(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("expected no error on empty index, got %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("expected empty result, got %d matches", len(matches))
	}
}

func TestRetrieve_EmbedderError(t *testing.T) {
	emb := &mockEmbedder{err: fmt.Errorf("status 500: %w", domain.ErrEmbeddingProviderError)}
	idx := &mockSearcher{}
	svc := newTestService(emb, idx)

	_, err := svc.Retrieve(context.Background(), "query", 5)
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected ErrEmbeddingProviderError, got %v", err)
	}
	if idx.calls != 0 {
		t.Error("index must not be queried after a failed embedding")
	}
}

func TestRetrieve_DegenerateVector(t *testing.T) {
	emb := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0, 0}}}
	idx := &mockSearcher{err: fmt.Errorf("query vector: %w", domain.ErrDegenerateVector)}
	svc := newTestService(emb, idx)

	_, err := svc.Retrieve(context.Background(), "query", 5)
	if !errors.Is(err, domain.ErrExternalService) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
	// Сентинел валидации заменён: клиентский запрос тут ни при чём
	if errors.Is(err, domain.ErrDegenerateVector) {
		t.Error("degenerate sentinel must not leak to callers")
	}
}

func TestRetrieve_IndexErrorPropagates(t *testing.T) {
	emb := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	idx := &mockSearcher{err: fmt.Errorf("insert: %w", domain.ErrVectorDimMismatch)}
	svc := newTestService(emb, idx)

	if _, err := svc.Retrieve(context.Background(), "query", 5); !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("expected ErrVectorDimMismatch, got %v", err)
	}
}

func TestRetrieve_RecordsUsage(t *testing.T) {
	emb := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}, TotalTokens: 13}}
	svc := newTestService(emb, &mockSearcher{})

	ctx, usage := domain.NewContextWithUsage(context.Background())
	if _, err := svc.Retrieve(ctx, "query", 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if usage.TotalTokens != 13 {
		t.Errorf("TotalTokens = %d, want 13", usage.TotalTokens)
	}
	if !usage.Used {
		t.Error("usage must be marked as used")
	}
}

// --- BuildContext ---

func TestBuildContext_Blocks(t *testing.T) {
	matches := []chunk.Scored{
		docScored(t, 0, "Robots use sensors.", 0.9),
		videoScored(t, 1, "Actuators move joints.", 0.8),
	}

	text, citations := BuildContext(matches)

	blocks := strings.Split(text, "\n\n")
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d:\n%s", len(blocks), text)
	}
	if blocks[0] != "[1] (document: Lecture notes notes.pdf)\nRobots use sensors." {
		t.Errorf("unexpected document block:\n%s", blocks[0])
	}
	if blocks[1] != "[2] (youtube: Intro to robotics https://www.youtube.com/watch?v=dQw4w9WgXcQ)\nActuators move joints." {
		t.Errorf("unexpected video block:\n%s", blocks[1])
	}
	if len(citations) != 2 {
		t.Fatalf("expected 2 citations, got %d", len(citations))
	}
}

func TestBuildContext_RefSkippedWhenEqualToLabel(t *testing.T) {
	// Документ без заголовка: label и ref совпадают (имя файла)
	meta, err := chunk.NewDocumentMeta("doc-xyz", "paper.pdf", "", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c, err := chunk.New(0, "Quantum entanglement basics.", meta)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	text, _ := BuildContext([]chunk.Scored{{Chunk: c, Score: 0.5}})
	if !strings.HasPrefix(text, "[1] (document: paper.pdf)\n") {
		t.Errorf("ref must not repeat the label:\n%s", text)
	}
}

func TestBuildContext_Citations(t *testing.T) {
	// Два чанка одного источника дают две ссылки — дедупликации нет
	matches := []chunk.Scored{
		docScored(t, 2, "First chunk.", 0.91),
		docScored(t, 5, "Second chunk.", 0.84),
	}

	_, citations := BuildContext(matches)
	if len(citations) != 2 {
		t.Fatalf("expected 2 citations, got %d", len(citations))
	}

	first := citations[0]
	if first.SourceType != chunk.SourceDocument {
		t.Errorf("SourceType = %q", first.SourceType)
	}
	if first.SourceID != "doc-abc123" {
		t.Errorf("SourceID = %q", first.SourceID)
	}
	if first.Title != "Lecture notes" {
		t.Errorf("Title = %q", first.Title)
	}
	if first.Ref != "notes.pdf" {
		t.Errorf("Ref = %q", first.Ref)
	}
	if first.ChunkIndex != 2 {
		t.Errorf("ChunkIndex = %d, want 2", first.ChunkIndex)
	}
	if first.Score != 0.91 {
		t.Errorf("Score = %v, want 0.91", first.Score)
	}
	if citations[1].ChunkIndex != 5 {
		t.Errorf("second ChunkIndex = %d, want 5", citations[1].ChunkIndex)
	}
}

func TestBuildContext_Empty(t *testing.T) {
	text, citations := BuildContext(nil)
	if text != "" {
		t.Errorf("expected empty context, got %q", text)
	}
	if citations != nil {
		t.Errorf("expected nil citations, got %v", citations)
	}
}
