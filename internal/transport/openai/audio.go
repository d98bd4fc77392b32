package openai

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/studyowl/ragserver/internal/domain"
	"github.com/studyowl/ragserver/internal/metrics"
)

// Transcriber converts audio files to text via the whisper API.
type Transcriber struct {
	client   *openai.Client
	model    string
	language string
	logger   *zap.Logger
}

// TranscriberConfig holds the transcription provider settings.
type TranscriberConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	Language string
	Logger   *zap.Logger
}

// NewTranscriber creates an OpenAI-compatible audio transcription provider.
func NewTranscriber(cfg *TranscriberConfig) *Transcriber {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}

	return &Transcriber{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    model,
		language: cfg.Language,
		logger:   cfg.Logger,
	}
}

// Transcribe sends the audio file at path to the whisper API and returns
// the recognized text. Failures wrap domain.ErrTranscriptionFailed.
func (t *Transcriber) Transcribe(ctx context.Context, path string) (string, error) {
	req := openai.AudioRequest{
		Model:    t.model,
		FilePath: path,
		Language: t.language,
	}

	resp, err := t.client.CreateTranscription(ctx, req)
	if err != nil {
		metrics.WhisperRequestsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("transcribe %s: %v: %w", path, err, domain.ErrTranscriptionFailed)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		metrics.WhisperRequestsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("empty transcription for %s: %w", path, domain.ErrTranscriptionFailed)
	}

	metrics.WhisperRequestsTotal.WithLabelValues("success").Inc()

	t.logger.Debug("audio transcribed",
		zap.String("model", t.model),
		zap.Int("chars", len(text)),
	)

	return text, nil
}
