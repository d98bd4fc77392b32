package chat

import (
	"context"

	"github.com/studyowl/ragserver/internal/domain"
	"github.com/studyowl/ragserver/internal/domain/chunk"
)

// Retriever supplies ranked context chunks for a user message.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]chunk.Scored, error)
}

// Completer generates the assistant reply from a composed conversation.
type Completer interface {
	Complete(ctx context.Context, messages []domain.ChatMessage) (domain.CompletionResult, error)
}
