package llm

import "context"

// DefaultTemperature is the sampling temperature for grounded answers.
// Kept low so replies stay close to the retrieved context.
const DefaultTemperature = 0.2

// ChatMessage is one turn passed to the chat model.
type ChatMessage struct {
	Role    string `json:"role"` // "system" | "user" | "assistant"
	Content string `json:"content"`
}

// Embedding is the result of embedding one text, with its token cost.
type Embedding struct {
	Vector []float32
	Tokens int
}

// ChatResult is the model's reply plus token accounting.
type ChatResult struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// EmbeddingProvider turns text into a vector, reporting token usage so the
// caller can account for embedding cost.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) (Embedding, error)
}

// ChatModel generates a reply from a message list, bounded by maxTokens.
type ChatModel interface {
	Complete(ctx context.Context, messages []ChatMessage, maxTokens int) (ChatResult, error)
}
