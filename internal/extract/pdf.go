package extract

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"

	"github.com/studyowl/ragserver/internal/domain"
)

// pdfExtractor extracts text from PDF uploads page by page. Pages that fail
// to parse are skipped so one broken page does not lose the whole document.
type pdfExtractor struct{}

func (pdfExtractor) Extract(r io.Reader) (string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}

	reader, err := model.NewPdfReader(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("parse pdf: %w", domain.ErrExtractionFailed)
	}

	numPages, err := reader.GetNumPages()
	if err != nil {
		return "", fmt.Errorf("pdf page count: %w", domain.ErrExtractionFailed)
	}

	var b strings.Builder
	for i := 1; i <= numPages; i++ {
		page, err := reader.GetPage(i)
		if err != nil {
			continue
		}
		ex, err := extractor.New(page)
		if err != nil {
			continue
		}
		text, err := ex.ExtractText()
		if err != nil {
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}

	return b.String(), nil
}
