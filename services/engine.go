// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/sitechat/conversation"
	"github.com/AleutianAI/sitechat/datatypes"
	"github.com/AleutianAI/sitechat/llm"
	"github.com/AleutianAI/sitechat/observability"
	"github.com/AleutianAI/sitechat/prompt"
	"github.com/AleutianAI/sitechat/retrieval"
	"go.opentelemetry.io/otel"
)

var engineTracer = otel.Tracer("aleutian.sitechat.services")

const (
	// HistoryForModel bounds how much stored history is loaded per turn;
	// ModelWindow is how many of those messages actually reach the model.
	HistoryForModel = 50
	ModelWindow     = 6

	// MaxSources caps the sources list returned to the client.
	MaxSources = 10
)

// Per-million-token pricing for cost estimation.
const (
	EmbRate     = 0.02 / 1e6
	ChatInRate  = 0.15 / 1e6
	ChatOutRate = 0.60 / 1e6
)

// ContextRetriever is the retrieval dependency of the engine.
type ContextRetriever interface {
	Retrieve(ctx context.Context, namespace, question, length string) (retrieval.Result, error)
}

// AnswerEngine orchestrates a chat turn: settings resolution, small-talk
// shortcut, retrieval, prompt assembly, generation, and accounting.
//
// # Thread Safety
//
// AnswerEngine is safe for concurrent use; all mutable state lives in the
// store, which serializes per-conversation mutations.
type AnswerEngine struct {
	store     conversation.Store
	settings  *Resolver
	retriever ContextRetriever
	model     llm.ChatModel
	metrics   *observability.ChatMetrics
}

// NewAnswerEngine wires the engine's dependencies. metrics may be nil in
// tests; every metric touch is nil-guarded.
func NewAnswerEngine(store conversation.Store, settings *Resolver, retriever ContextRetriever,
	model llm.ChatModel, metrics *observability.ChatMetrics) *AnswerEngine {
	return &AnswerEngine{
		store:     store,
		settings:  settings,
		retriever: retriever,
		model:     model,
		metrics:   metrics,
	}
}

// Process handles one /v1/chat request and produces the response body.
//
// Settings-only requests upsert the stored settings and return immediately.
// Chat turns run the full pipeline; errors come back as the package's typed
// errors so the handler can map them to status codes.
func (e *AnswerEngine) Process(ctx context.Context, req *datatypes.ChatRequest) (*datatypes.ChatResponse, error) {
	ctx, span := engineTracer.Start(ctx, "Process")
	defer span.End()

	start := time.Now()
	mode := req.Mode()

	resp, err := e.dispatch(ctx, req, mode)

	if e.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		e.metrics.RequestsTotal.WithLabelValues(string(mode), status).Inc()
		e.metrics.RequestDurationSeconds.Observe(time.Since(start).Seconds())
	}
	return resp, err
}

func (e *AnswerEngine) dispatch(ctx context.Context, req *datatypes.ChatRequest, mode datatypes.RequestMode) (*datatypes.ChatResponse, error) {
	switch mode {
	case datatypes.ModeSettings:
		return e.processSettings(ctx, req)
	case datatypes.ModeChat:
		return e.processChat(ctx, req)
	default:
		return nil, &ValidationError{Detail: "request must carry either a message or a settings payload"}
	}
}

// processSettings handles a pure settings upsert.
func (e *AnswerEngine) processSettings(ctx context.Context, req *datatypes.ChatRequest) (*datatypes.ChatResponse, error) {
	saved, err := e.settings.Upsert(ctx, req.Key(), *req.Settings)
	if err != nil {
		return nil, err
	}
	return &datatypes.ChatResponse{
		Mode:              string(datatypes.ModeSettings),
		Answer:            "Settings updated.",
		Sources:           []string{},
		EffectiveSettings: saved,
	}, nil
}

// processChat runs the full conversational pipeline for one user message.
func (e *AnswerEngine) processChat(ctx context.Context, req *datatypes.ChatRequest) (*datatypes.ChatResponse, error) {
	if req.LeadID == "" {
		return nil, &ValidationError{Detail: "leadId is required for chat messages"}
	}

	key := req.Key()
	text := req.Text()

	if err := e.store.Ensure(ctx, key); err != nil {
		return nil, &StoreError{Op: "ensure conversation", Err: err}
	}

	if req.Reset {
		if err := e.store.Reset(ctx, key); err != nil {
			return nil, &StoreError{Op: "reset conversation", Err: err}
		}
		slog.Info("Conversation reset", "conversation", key.String(), "requestId", req.RequestID)
	}

	settings, err := e.settings.Resolve(ctx, key, req.Settings)
	if err != nil {
		return nil, err
	}
	if err := e.settings.Persist(ctx, key, req.Settings); err != nil {
		return nil, err
	}

	now := time.Now().UnixMilli()
	userMsg := datatypes.Message{Role: "user", Content: text, Timestamp: now}
	if err := e.store.AppendMessage(ctx, key, userMsg); err != nil {
		return nil, &StoreError{Op: "append user message", Err: err}
	}

	// Capture-once email harvesting runs on every user message.
	emailOnFile := false
	if email, ok := prompt.ExtractEmail(text); ok {
		captured, err := e.store.CaptureEmail(ctx, key, email)
		if err != nil {
			return nil, &StoreError{Op: "capture email", Err: err}
		}
		if captured {
			slog.Info("Captured contact email", "conversation", key.String())
			if e.metrics != nil {
				e.metrics.EmailsCapturedTotal.Inc()
			}
		}
		emailOnFile = true
	}

	if prompt.IsGreeting(text) {
		return e.processGreeting(ctx, req, key, settings, emailOnFile)
	}
	return e.processQuestion(ctx, req, key, settings, text)
}

// processGreeting serves the deterministic small-talk reply without touching
// retrieval or the model.
func (e *AnswerEngine) processGreeting(ctx context.Context, req *datatypes.ChatRequest,
	key datatypes.ConversationKey, settings datatypes.Settings, emailOnFile bool) (*datatypes.ChatResponse, error) {

	answer := prompt.GreetingReply(settings.Role, settings.Tone, settings.Length)

	// One-time email nudge: skipped entirely if an email was just captured
	// or is already on file.
	if !emailOnFile {
		rec, err := e.store.Load(ctx, key)
		if err != nil {
			return nil, &StoreError{Op: "load conversation", Err: err}
		}
		if rec == nil || rec.EmailCaptured == "" {
			shown, err := e.store.SetFlagOnce(ctx, key, conversation.FlagEmailPromptShown)
			if err != nil {
				return nil, &StoreError{Op: "latch email prompt", Err: err}
			}
			if shown {
				answer += "\n\n" + prompt.EmailNudge
			}
		}
	}

	if err := e.appendAssistant(ctx, key, answer, ""); err != nil {
		return nil, err
	}

	rec, err := e.store.Load(ctx, key)
	if err != nil {
		return nil, &StoreError{Op: "load conversation", Err: err}
	}
	var usage datatypes.Usage
	if rec != nil {
		usage = rec.Usage
	}

	if e.metrics != nil {
		e.metrics.GreetingRepliesTotal.Inc()
	}
	slog.Info("Served greeting reply", "conversation", key.String(), "requestId", req.RequestID)

	return &datatypes.ChatResponse{
		Mode:              string(datatypes.ModeChat),
		Answer:            answer,
		Sources:           []string{},
		Usage:             usage,
		EffectiveSettings: settings,
		Debug: map[string]any{
			"smallTalk": true,
			"requestId": req.RequestID,
		},
	}, nil
}

// processQuestion runs retrieval and generation for a substantive question.
func (e *AnswerEngine) processQuestion(ctx context.Context, req *datatypes.ChatRequest,
	key datatypes.ConversationKey, settings datatypes.Settings, question string) (*datatypes.ChatResponse, error) {

	ctx, span := engineTracer.Start(ctx, "processQuestion")
	defer span.End()

	// The user's namespace partitions the vector index per tenant.
	res, err := e.retriever.Retrieve(ctx, req.UserID, question, settings.Length)
	if err != nil {
		return nil, upstreamErr("retrieval", err)
	}

	// Embedding spend is committed immediately, before any generation
	// outcome is known: the tokens were spent regardless.
	usage, err := e.store.AddUsage(ctx, key, conversation.UsageDelta{
		EmbeddingTokens: res.EmbeddingTokens,
		CostUSD:         float64(res.EmbeddingTokens) * EmbRate,
	})
	if err != nil {
		return nil, &StoreError{Op: "add embedding usage", Err: err}
	}

	if res.Context == "" {
		return e.processFallback(ctx, req, key, settings, usage, res)
	}

	messages, err := e.buildModelMessages(ctx, key, settings, res.Context, question)
	if err != nil {
		return nil, err
	}

	spec := prompt.LengthFor(settings.Length)
	result, err := e.model.Complete(ctx, messages, spec.MaxOut)
	if err != nil {
		return nil, upstreamErr("chat completion", err)
	}

	usage, err = e.store.AddUsage(ctx, key, conversation.UsageDelta{
		ChatInputTokens:  result.InputTokens,
		ChatOutputTokens: result.OutputTokens,
		CostUSD:          float64(result.InputTokens)*ChatInRate + float64(result.OutputTokens)*ChatOutRate,
	})
	if err != nil {
		return nil, &StoreError{Op: "add chat usage", Err: err}
	}
	if e.metrics != nil {
		e.metrics.TokensTotal.WithLabelValues("embedding").Add(float64(res.EmbeddingTokens))
		e.metrics.TokensTotal.WithLabelValues("chat_input").Add(float64(result.InputTokens))
		e.metrics.TokensTotal.WithLabelValues("chat_output").Add(float64(result.OutputTokens))
		e.metrics.CostUSDTotal.Add(float64(res.EmbeddingTokens)*EmbRate +
			float64(result.InputTokens)*ChatInRate + float64(result.OutputTokens)*ChatOutRate)
	}

	if err := e.appendAssistant(ctx, key, result.Text, res.BaseURL); err != nil {
		return nil, err
	}
	if _, err := e.store.SetFlagOnce(ctx, key, conversation.FlagFirstReplyDone); err != nil {
		return nil, &StoreError{Op: "latch first reply", Err: err}
	}

	sources := res.Sources
	if len(sources) > MaxSources {
		sources = sources[:MaxSources]
	}
	if sources == nil {
		sources = []string{}
	}

	slog.Info("Answered question",
		"conversation", key.String(),
		"requestId", req.RequestID,
		"retrieved", res.RetrievedCount,
		"outputTokens", result.OutputTokens)

	return &datatypes.ChatResponse{
		Mode:              string(datatypes.ModeChat),
		Answer:            result.Text,
		BaseURL:           res.BaseURL,
		Sources:           sources,
		Usage:             usage,
		EffectiveSettings: settings,
		Debug: map[string]any{
			"retrievedCount":   res.RetrievedCount,
			"missingTextCount": res.MissingTextCount,
			"requestId":        req.RequestID,
		},
	}, nil
}

// processFallback serves the canned not-found reply when retrieval yields no
// usable grounding. The model is never called on this path.
func (e *AnswerEngine) processFallback(ctx context.Context, req *datatypes.ChatRequest,
	key datatypes.ConversationKey, settings datatypes.Settings,
	usage datatypes.Usage, res retrieval.Result) (*datatypes.ChatResponse, error) {

	answer := prompt.FallbackNotFound(settings.Length)

	if err := e.appendAssistant(ctx, key, answer, ""); err != nil {
		return nil, err
	}
	if e.metrics != nil {
		e.metrics.FallbackRepliesTotal.Inc()
		e.metrics.TokensTotal.WithLabelValues("embedding").Add(float64(res.EmbeddingTokens))
	}
	slog.Info("Served fallback reply",
		"conversation", key.String(),
		"requestId", req.RequestID,
		"retrieved", res.RetrievedCount,
		"missingText", res.MissingTextCount)

	return &datatypes.ChatResponse{
		Mode:              string(datatypes.ModeChat),
		Answer:            answer,
		Sources:           []string{},
		Usage:             usage,
		EffectiveSettings: settings,
		Debug: map[string]any{
			"fallback":         true,
			"retrievedCount":   res.RetrievedCount,
			"missingTextCount": res.MissingTextCount,
			"requestId":        req.RequestID,
		},
	}, nil
}

// buildModelMessages assembles the message list: system prompt, recent
// history window, then the context-plus-question user turn.
func (e *AnswerEngine) buildModelMessages(ctx context.Context, key datatypes.ConversationKey,
	settings datatypes.Settings, contextBlock, question string) ([]llm.ChatMessage, error) {

	history, err := e.store.History(ctx, key, HistoryForModel)
	if err != nil {
		return nil, &StoreError{Op: "load history", Err: err}
	}

	// The freshly appended user message is re-sent inside the final
	// context-bearing turn, so drop it from the history window.
	if n := len(history); n > 0 && history[n-1].Role == "user" {
		history = history[:n-1]
	}
	if len(history) > ModelWindow {
		history = history[len(history)-ModelWindow:]
	}

	messages := make([]llm.ChatMessage, 0, len(history)+2)
	messages = append(messages, llm.ChatMessage{
		Role:    "system",
		Content: prompt.SystemPrompt(settings.Role, settings.Tone, settings.Length),
	})
	for _, m := range history {
		messages = append(messages, llm.ChatMessage{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, llm.ChatMessage{
		Role:    "user",
		Content: fmt.Sprintf("Context:\n%s\n\nUser question: %s", contextBlock, question),
	})
	return messages, nil
}

// appendAssistant stores the assistant reply with optional provenance.
func (e *AnswerEngine) appendAssistant(ctx context.Context, key datatypes.ConversationKey, answer, baseURL string) error {
	msg := datatypes.Message{
		Role:          "assistant",
		Content:       answer,
		Timestamp:     time.Now().UnixMilli(),
		SourceBaseURL: baseURL,
	}
	if err := e.store.AppendMessage(ctx, key, msg); err != nil {
		return &StoreError{Op: "append assistant message", Err: err}
	}
	return nil
}

// upstreamErr wraps a dependency failure, flagging deadline expiry so the
// handler can distinguish 503 from 502.
func upstreamErr(op string, err error) error {
	return &UpstreamError{
		Op:      op,
		Err:     err,
		Timeout: errors.Is(err, context.DeadlineExceeded),
	}
}
