package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/studyowl/ragserver/internal/domain"
	"github.com/studyowl/ragserver/internal/usecase/retrieval"
)

// DefaultMaxHistoryTurns bounds how much prior conversation reaches the model.
const DefaultMaxHistoryTurns = 10

// DefaultSystemPrompt instructs the model when the config does not override it.
const DefaultSystemPrompt = "You are a study assistant answering questions about the user's indexed library. " +
	"Ground your answer in the numbered source excerpts and cite them as [1], [2] and so on. " +
	"If the excerpts do not cover the question, say so before answering from general knowledge."

const noSourcesNote = "No indexed sources matched this question. Tell the user the library has " +
	"nothing relevant, then answer from general knowledge."

// Turn is one prior message supplied by the caller.
type Turn struct {
	Role    string
	Content string
}

// Request carries one chat invocation.
type Request struct {
	Message string
	History []Turn
	TopK    int
}

// Answer is the assistant reply together with the sources behind it.
type Answer struct {
	Text        string
	Citations   []retrieval.Citation
	ContextUsed bool
}

// Service answers user messages with retrieved library context.
type Service struct {
	retriever Retriever
	completer Completer

	systemPrompt    string
	maxHistoryTurns int
}

// New creates a chat service.
func New(retriever Retriever, completer Completer) *Service {
	return &Service{
		retriever:       retriever,
		completer:       completer,
		systemPrompt:    DefaultSystemPrompt,
		maxHistoryTurns: DefaultMaxHistoryTurns,
	}
}

// WithSystemPrompt overrides the built-in instruction text. Empty keeps the default.
func (s *Service) WithSystemPrompt(prompt string) *Service {
	if prompt = strings.TrimSpace(prompt); prompt != "" {
		s.systemPrompt = prompt
	}
	return s
}

// WithMaxHistoryTurns overrides how many trailing history messages are kept.
func (s *Service) WithMaxHistoryTurns(n int) *Service {
	if n > 0 {
		s.maxHistoryTurns = n
	}
	return s
}

// Answer retrieves context for the message, composes the conversation and
// asks the completion provider. An empty retrieval is not a failure: the
// model is told no sources matched and answers anyway.
func (s *Service) Answer(ctx context.Context, req Request) (Answer, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return Answer{}, fmt.Errorf("message must not be empty: %w", domain.ErrValidation)
	}

	matches, err := s.retriever.Retrieve(ctx, message, req.TopK)
	if err != nil {
		return Answer{}, fmt.Errorf("retrieve context: %w", err)
	}

	contextBlock, citations := retrieval.BuildContext(matches)

	messages := s.compose(contextBlock, req.History, message)

	result, err := s.completer.Complete(ctx, messages)
	if err != nil {
		return Answer{}, fmt.Errorf("complete chat: %w", err)
	}

	return Answer{
		Text:        result.Content,
		Citations:   citations,
		ContextUsed: contextBlock != "",
	}, nil
}

// compose builds the provider conversation: system prompt with the context
// block attached, the trailing history window, then the user message.
func (s *Service) compose(contextBlock string, history []Turn, message string) []domain.ChatMessage {
	system := s.systemPrompt
	if contextBlock != "" {
		system += "\n\nSources:\n\n" + contextBlock
	} else {
		system += "\n\n" + noSourcesNote
	}

	messages := make([]domain.ChatMessage, 0, len(history)+2)
	messages = append(messages, domain.ChatMessage{Role: domain.RoleSystem, Content: system})

	for _, turn := range trimHistory(history, s.maxHistoryTurns) {
		messages = append(messages, domain.ChatMessage{Role: turn.Role, Content: turn.Content})
	}

	return append(messages, domain.ChatMessage{Role: domain.RoleUser, Content: message})
}

// trimHistory keeps the last max well-formed turns. Только роли user и
// assistant: системные вставки из истории клиента не пропускаются.
func trimHistory(history []Turn, max int) []Turn {
	kept := make([]Turn, 0, len(history))
	for _, turn := range history {
		if turn.Role != domain.RoleUser && turn.Role != domain.RoleAssistant {
			continue
		}
		if strings.TrimSpace(turn.Content) == "" {
			continue
		}
		kept = append(kept, turn)
	}
	if len(kept) > max {
		kept = kept[len(kept)-max:]
	}
	return kept
}
