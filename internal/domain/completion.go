package domain

// Chat message roles accepted by completion providers.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is a single message in a completion conversation.
type ChatMessage struct {
	Role    string
	Content string
}

// CompletionResult carries the generated text and token usage.
type CompletionResult struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
