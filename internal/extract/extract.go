// Package extract pulls plain text out of uploaded files. One extractor per
// supported MIME type, looked up through a Registry.
package extract

import (
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/studyowl/ragserver/internal/domain"
)

// Accepted upload MIME types.
const (
	MimeText = "text/plain"
	MimePDF  = "application/pdf"
	MimeDoc  = "application/msword"
	MimeDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// Extractor pulls plain text from one upload format.
type Extractor interface {
	Extract(r io.Reader) (string, error)
}

// Registry routes uploads to the extractor for their MIME type.
type Registry struct {
	byMIME map[string]Extractor
}

// NewRegistry creates a registry with all supported formats registered.
func NewRegistry() *Registry {
	return &Registry{byMIME: map[string]Extractor{
		MimeText: plainExtractor{},
		MimePDF:  pdfExtractor{},
		MimeDoc:  legacyDocExtractor{},
		MimeDocx: docxExtractor{},
	}}
}

// Supported reports whether the MIME type (parameters ignored) has an extractor.
func (reg *Registry) Supported(mimeType string) bool {
	_, ok := reg.byMIME[normalizeMIME(mimeType)]
	return ok
}

// Extract parses the upload with the extractor for its MIME type.
// Unknown types yield ErrUnsupportedMediaType.
func (reg *Registry) Extract(mimeType string, r io.Reader) (string, error) {
	ex, ok := reg.byMIME[normalizeMIME(mimeType)]
	if !ok {
		return "", domain.NewUnsupportedMediaType(mimeType)
	}
	text, err := ex.Extract(r)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// normalizeMIME strips parameters like "; charset=utf-8" and lowercases.
func normalizeMIME(mimeType string) string {
	parsed, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(mimeType))
	}
	return parsed
}

// plainExtractor reads text files as-is, dropping invalid UTF-8 sequences.
type plainExtractor struct{}

func (plainExtractor) Extract(r io.Reader) (string, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	return strings.ToValidUTF8(string(content), ""), nil
}

// legacyDocExtractor rejects pre-OOXML Word files: only .docx parses.
type legacyDocExtractor struct{}

func (legacyDocExtractor) Extract(io.Reader) (string, error) {
	return "", fmt.Errorf("legacy .doc is not parseable, convert to .docx: %w", domain.ErrExtractionFailed)
}
