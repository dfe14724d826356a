package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// OpenAIClient implements EmbeddingProvider and ChatModel against the OpenAI
// API. It is safe for concurrent use.
type OpenAIClient struct {
	client    *openai.Client
	chatModel string
	embModel  string
}

var (
	_ EmbeddingProvider = (*OpenAIClient)(nil)
	_ ChatModel         = (*OpenAIClient)(nil)
)

// NewOpenAIClient builds a client from the environment.
//
// OPENAI_API_KEY is read from the environment, falling back to the container
// secret file. OPENAI_CHAT_MODEL and OPENAI_EMBEDDING_MODEL default to
// gpt-4o-mini and text-embedding-3-small.
func NewOpenAIClient() (*OpenAIClient, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		secretPath := "/run/secrets/openai_api_key"
		apiKeyBytes, err := os.ReadFile(secretPath)
		if err == nil {
			apiKey = strings.TrimSpace(string(apiKeyBytes))
			slog.Info("Read the OpenAI API Key from container secrets")
		} else {
			slog.Error("OPENAI_API_KEY environment variable not set and secret not found", "path", secretPath)
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	}

	chatModel := os.Getenv("OPENAI_CHAT_MODEL")
	if chatModel == "" {
		chatModel = "gpt-4o-mini"
		slog.Warn("OPENAI_CHAT_MODEL not set, defaulting to gpt-4o-mini")
	}
	embModel := os.Getenv("OPENAI_EMBEDDING_MODEL")
	if embModel == "" {
		embModel = "text-embedding-3-small"
		slog.Warn("OPENAI_EMBEDDING_MODEL not set, defaulting to text-embedding-3-small")
	}

	slog.Info("Initializing OpenAI client", "chatModel", chatModel, "embeddingModel", embModel)
	return &OpenAIClient{
		client:    openai.NewClient(apiKey),
		chatModel: chatModel,
		embModel:  embModel,
	}, nil
}

// Embed implements the EmbeddingProvider interface.
func (o *OpenAIClient) Embed(ctx context.Context, text string) (Embedding, error) {
	slog.Debug("Embedding query via OpenAI", "model", o.embModel)
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(o.embModel),
		Input: []string{text},
	})
	if err != nil {
		slog.Error("OpenAI embeddings call failed", "error", err)
		return Embedding{}, fmt.Errorf("OpenAI embeddings call failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return Embedding{}, fmt.Errorf("OpenAI returned no embedding data")
	}
	return Embedding{
		Vector: resp.Data[0].Embedding,
		Tokens: resp.Usage.TotalTokens,
	}, nil
}

// Complete implements the ChatModel interface.
func (o *OpenAIClient) Complete(ctx context.Context, messages []ChatMessage, maxTokens int) (ChatResult, error) {
	slog.Debug("Generating chat completion via OpenAI", "model", o.chatModel, "maxTokens", maxTokens)

	msgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	req := openai.ChatCompletionRequest{
		Model:       o.chatModel,
		Messages:    msgs,
		Temperature: DefaultTemperature,
	}
	if maxTokens > 0 {
		req.MaxCompletionTokens = maxTokens
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		slog.Error("OpenAI API call failed", "error", err)
		return ChatResult{}, fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		slog.Warn("OpenAI returned no choices")
		return ChatResult{}, fmt.Errorf("OpenAI returned no choices")
	}

	slog.Debug("Received response from OpenAI", "finish_reason", resp.Choices[0].FinishReason)
	return ChatResult{
		Text:         strings.TrimSpace(resp.Choices[0].Message.Content),
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}
