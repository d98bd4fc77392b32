package extract

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/unidoc/unioffice/document"

	"github.com/studyowl/ragserver/internal/domain"
)

// docxExtractor extracts text from OOXML Word uploads, one line per paragraph.
type docxExtractor struct{}

func (docxExtractor) Extract(r io.Reader) (string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}

	doc, err := document.Read(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("parse docx: %w", domain.ErrExtractionFailed)
	}
	defer doc.Close()

	var b strings.Builder
	for _, para := range doc.Paragraphs() {
		for _, run := range para.Runs() {
			b.WriteString(run.Text())
		}
		b.WriteString("\n")
	}

	return b.String(), nil
}
