package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/studyowl/ragserver/internal/domain"
	"github.com/studyowl/ragserver/internal/domain/chunk"
)

// DefaultMaxUploadBytes caps file uploads at 10MB.
const DefaultMaxUploadBytes = 10 << 20

// FileUpload describes one uploaded file. MIME and Title are optional: MIME
// is inferred from the file name extension, Title falls back to the name.
type FileUpload struct {
	Name  string
	MIME  string
	Title string
	Body  io.Reader
}

// Service handles document ingestion: pasted text and file uploads.
type Service struct {
	pipeline       *Pipeline
	extract        Extractor
	maxUploadBytes int64
}

// New creates a document ingest service.
func New(pipeline *Pipeline, extract Extractor) *Service {
	return &Service{
		pipeline:       pipeline,
		extract:        extract,
		maxUploadBytes: DefaultMaxUploadBytes,
	}
}

// WithMaxUploadBytes overrides the upload size cap.
func (s *Service) WithMaxUploadBytes(max int64) *Service {
	if max > 0 {
		s.maxUploadBytes = max
	}
	return s
}

// IngestText chunks and indexes pasted text as a new document source.
// Each call creates a fresh source ID: re-posting the same text is allowed
// and yields a second copy.
func (s *Service) IngestText(ctx context.Context, title, text string) (domain.IngestReceipt, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.IngestReceipt{}, fmt.Errorf("text is required: %w", domain.ErrValidation)
	}

	meta, err := chunk.NewDocumentMeta(newDocumentID(), "", title, time.Now().UTC())
	if err != nil {
		return domain.IngestReceipt{}, fmt.Errorf("build provenance: %w", err)
	}

	return s.pipeline.Run(ctx, text, meta)
}

// IngestFile extracts plain text from an upload, then chunks and indexes it.
func (s *Service) IngestFile(ctx context.Context, up FileUpload) (domain.IngestReceipt, error) {
	mimeType := strings.TrimSpace(up.MIME)
	if mimeType == "" {
		mimeType = inferMIME(up.Name)
	}
	if !s.extract.Supported(mimeType) {
		return domain.IngestReceipt{}, domain.NewUnsupportedMediaType(mimeType)
	}

	body, err := s.readCapped(up.Body)
	if err != nil {
		return domain.IngestReceipt{}, err
	}

	text, err := s.extract.Extract(mimeType, bytes.NewReader(body))
	if err != nil {
		return domain.IngestReceipt{}, fmt.Errorf("extract %q: %w", up.Name, err)
	}
	if text == "" {
		return domain.IngestReceipt{}, fmt.Errorf("no text in %q: %w", up.Name, domain.ErrValidation)
	}

	title := up.Title
	if title == "" {
		title = up.Name
	}

	meta, err := chunk.NewDocumentMeta(newDocumentID(), up.Name, title, time.Now().UTC())
	if err != nil {
		return domain.IngestReceipt{}, fmt.Errorf("build provenance: %w", err)
	}

	return s.pipeline.Run(ctx, text, meta)
}

// readCapped reads the upload fully, rejecting bodies over the size cap.
func (s *Service) readCapped(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, s.maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(body)) > s.maxUploadBytes {
		return nil, fmt.Errorf("upload exceeds %d bytes: %w", s.maxUploadBytes, domain.ErrValidation)
	}
	return body, nil
}

func newDocumentID() string {
	return "doc-" + uuid.NewString()
}

// inferMIME maps a file name to its MIME type. The stdlib table misses the
// Office types, so those are pinned explicitly.
func inferMIME(fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".txt", ".text", ".md":
		return "text/plain"
	case ".pdf":
		return "application/pdf"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return mime.TypeByExtension(ext)
	}
}
