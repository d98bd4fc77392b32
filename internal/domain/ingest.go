package domain

// IngestReceipt summarizes one indexed source.
type IngestReceipt struct {
	Source       string
	Title        string
	Chunks       int
	PromptTokens int
	TotalTokens  int
}
