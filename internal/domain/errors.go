package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrValidation signals malformed or missing request input.
	ErrValidation = errors.New("validation failed")
	// ErrAlreadyIngested signals that a source is already present in the index.
	ErrAlreadyIngested = errors.New("source already ingested")
	// ErrUnsupportedMediaType signals an upload with a MIME type outside the allow-list.
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	// ErrExtractionFailed signals that no text could be extracted from an upload.
	ErrExtractionFailed = errors.New("text extraction failed")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrDegenerateVector signals a zero-magnitude or empty vector.
	ErrDegenerateVector = errors.New("degenerate vector")

	// ErrNoTranscript signals that a video has no caption track to ingest.
	ErrNoTranscript = errors.New("no transcript available")
	// ErrTranscriptionFailed signals an audio download or speech-to-text failure.
	ErrTranscriptionFailed = errors.New("transcription failed")

	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrEmbeddingQuotaExceeded signals an exhausted embedding quota.
	ErrEmbeddingQuotaExceeded = errors.New("embedding quota exceeded")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrCompletionProviderError signals a chat completion provider failure.
	ErrCompletionProviderError = errors.New("completion provider error")
	// ErrExternalService signals a failure in an upstream service (YouTube API etc).
	ErrExternalService = errors.New("external service error")
)

// UnsupportedMediaTypeError wraps ErrUnsupportedMediaType with the offending MIME type.
type UnsupportedMediaTypeError struct {
	MIME string
}

func (e *UnsupportedMediaTypeError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnsupportedMediaType.Error(), e.MIME)
}

func (e *UnsupportedMediaTypeError) Unwrap() error { return ErrUnsupportedMediaType }

// NewUnsupportedMediaType creates an unsupported media type error.
func NewUnsupportedMediaType(mime string) error {
	return &UnsupportedMediaTypeError{MIME: mime}
}
