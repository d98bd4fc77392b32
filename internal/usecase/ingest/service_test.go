package ingest

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/studyowl/ragserver/internal/chunker"
	"github.com/studyowl/ragserver/internal/domain"
)

type mockExtractor struct {
	supported bool
	text      string
	err       error
	gotMIME   string
}

func (m *mockExtractor) Supported(mimeType string) bool {
	m.gotMIME = mimeType
	return m.supported
}

func (m *mockExtractor) Extract(mimeType string, _ io.Reader) (string, error) {
	m.gotMIME = mimeType
	if m.err != nil {
		return "", m.err
	}
	return m.text, nil
}

func newTestService(ex Extractor) *Service {
	embed := &mockBatchEmbedder{batchResult: domain.BatchEmbeddingResult{
		Embeddings:  [][]float32{{0.1, 0.2}},
		TotalTokens: 4,
	}}
	splitter := &mockSplitter{fragments: []chunker.Fragment{{Text: "Some text.", Index: 0}}}
	return New(NewPipeline(splitter, embed, &mockIndexer{}), ex)
}

// --- IngestText tests ---

func TestIngestText_Success(t *testing.T) {
	svc := newTestService(&mockExtractor{})

	receipt, err := svc.IngestText(context.Background(), "My Notes", "Some text.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(receipt.Source, "doc-") {
		t.Errorf("expected generated doc- source, got %q", receipt.Source)
	}
	if receipt.Title != "My Notes" {
		t.Errorf("expected title 'My Notes', got %q", receipt.Title)
	}
	if receipt.Chunks != 1 {
		t.Errorf("expected 1 chunk, got %d", receipt.Chunks)
	}
}

func TestIngestText_Empty(t *testing.T) {
	svc := newTestService(&mockExtractor{})

	_, err := svc.IngestText(context.Background(), "Title", "   \n ")
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

// Повторная загрузка того же текста — новый источник, не конфликт.
func TestIngestText_FreshSourcePerCall(t *testing.T) {
	svc := newTestService(&mockExtractor{})

	first, err := svc.IngestText(context.Background(), "", "Some text.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.IngestText(context.Background(), "", "Some text.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Source == second.Source {
		t.Errorf("expected distinct sources, both %q", first.Source)
	}
}

// --- IngestFile tests ---

func TestIngestFile_Success(t *testing.T) {
	ex := &mockExtractor{supported: true, text: "Extracted text."}
	svc := newTestService(ex)

	receipt, err := svc.IngestFile(context.Background(), FileUpload{
		Name: "notes.txt",
		MIME: "text/plain",
		Body: strings.NewReader("raw bytes"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.Title != "notes.txt" {
		t.Errorf("expected file name as title fallback, got %q", receipt.Title)
	}
	if receipt.Chunks != 1 {
		t.Errorf("expected 1 chunk, got %d", receipt.Chunks)
	}
}

func TestIngestFile_ExplicitTitle(t *testing.T) {
	ex := &mockExtractor{supported: true, text: "Extracted text."}
	svc := newTestService(ex)

	receipt, err := svc.IngestFile(context.Background(), FileUpload{
		Name:  "notes.txt",
		MIME:  "text/plain",
		Title: "Lecture 3",
		Body:  strings.NewReader("raw bytes"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.Title != "Lecture 3" {
		t.Errorf("expected explicit title, got %q", receipt.Title)
	}
}

func TestIngestFile_UnsupportedMIME(t *testing.T) {
	svc := newTestService(&mockExtractor{supported: false})

	_, err := svc.IngestFile(context.Background(), FileUpload{
		Name: "image.png",
		MIME: "image/png",
		Body: strings.NewReader("bytes"),
	})
	if !errors.Is(err, domain.ErrUnsupportedMediaType) {
		t.Errorf("expected ErrUnsupportedMediaType, got %v", err)
	}
}

func TestIngestFile_MIMEInferredFromName(t *testing.T) {
	ex := &mockExtractor{supported: true, text: "Extracted text."}
	svc := newTestService(ex)

	_, err := svc.IngestFile(context.Background(), FileUpload{
		Name: "paper.pdf",
		Body: strings.NewReader("bytes"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ex.gotMIME != "application/pdf" {
		t.Errorf("expected inferred application/pdf, got %q", ex.gotMIME)
	}
}

func TestIngestFile_TooLarge(t *testing.T) {
	ex := &mockExtractor{supported: true, text: "Extracted text."}
	svc := newTestService(ex).WithMaxUploadBytes(8)

	_, err := svc.IngestFile(context.Background(), FileUpload{
		Name: "notes.txt",
		MIME: "text/plain",
		Body: strings.NewReader("this body is longer than eight bytes"),
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation for oversized upload, got %v", err)
	}
}

func TestIngestFile_EmptyExtraction(t *testing.T) {
	ex := &mockExtractor{supported: true, text: ""}
	svc := newTestService(ex)

	_, err := svc.IngestFile(context.Background(), FileUpload{
		Name: "blank.pdf",
		MIME: "application/pdf",
		Body: strings.NewReader("bytes"),
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation for empty extraction, got %v", err)
	}
}

func TestIngestFile_ExtractError(t *testing.T) {
	ex := &mockExtractor{supported: true, err: domain.ErrExtractionFailed}
	svc := newTestService(ex)

	_, err := svc.IngestFile(context.Background(), FileUpload{
		Name: "legacy.doc",
		MIME: "application/msword",
		Body: strings.NewReader("bytes"),
	})
	if !errors.Is(err, domain.ErrExtractionFailed) {
		t.Errorf("expected ErrExtractionFailed, got %v", err)
	}
}

func TestInferMIME(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"notes.txt", "text/plain"},
		{"README.md", "text/plain"},
		{"paper.PDF", "application/pdf"},
		{"old.doc", "application/msword"},
		{"report.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
		{"no-extension", ""},
	}
	for _, tt := range tests {
		if got := inferMIME(tt.name); got != tt.want {
			t.Errorf("inferMIME(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}
