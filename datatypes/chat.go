// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides data structures for the sitechat service.
//
// This file contains the request and response types for the /v1/chat
// endpoint. Conversation storage types live in conversation.go.
package datatypes

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Constants for Security Compliance
// =============================================================================

const (
	// MaxMessageContentBytes is the maximum size of a single chat message.
	// Unbounded message input mitigation.
	MaxMessageContentBytes = 32 * 1024 // 32KB

	// MaxIdentifierLength is the maximum length of userId/leadId/sessionId.
	MaxIdentifierLength = 128
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// chatValidate is the validator instance for chat datatypes.
// Initialized in init() with custom validators.
var chatValidate *validator.Validate

func init() {
	chatValidate = validator.New()
	_ = chatValidate.RegisterValidation("maxbytes", validateMaxBytes)
}

// validateMaxBytes enforces MaxMessageContentBytes on a string field.
// Checks byte length (not rune count) to bound memory use with large payloads.
func validateMaxBytes(fl validator.FieldLevel) bool {
	content := fl.Field().String()
	return len(content) <= MaxMessageContentBytes
}

// =============================================================================
// Settings
// =============================================================================

// Settings is the (role, tone, length) triple conditioning prompt assembly.
//
// Fields may be empty in request overrides; resolution falls back through the
// stored settings chain and finally the hard defaults. Unrecognized values are
// clamped to safe defaults at prompt-build time rather than rejected.
type Settings struct {
	Role   string `json:"role"`
	Tone   string `json:"tone"`
	Length string `json:"length"`
}

// IsZero reports whether no field is set.
func (s Settings) IsZero() bool {
	return s.Role == "" && s.Tone == "" && s.Length == ""
}

// MissingFields returns the names of unset fields. A settings-only request
// must supply the full triple; anything listed here makes it incomplete.
func (s Settings) MissingFields() []string {
	var missing []string
	if strings.TrimSpace(s.Role) == "" {
		missing = append(missing, "role")
	}
	if strings.TrimSpace(s.Tone) == "" {
		missing = append(missing, "tone")
	}
	if strings.TrimSpace(s.Length) == "" {
		missing = append(missing, "length")
	}
	return missing
}

// Merge returns a copy of s with any empty field filled from fallback.
// Each field resolves independently, so a request may override tone only
// while inheriting role and length from storage.
func (s Settings) Merge(fallback Settings) Settings {
	out := s
	if out.Role == "" {
		out.Role = fallback.Role
	}
	if out.Tone == "" {
		out.Tone = fallback.Tone
	}
	if out.Length == "" {
		out.Length = fallback.Length
	}
	return out
}

// =============================================================================
// Chat Request
// =============================================================================

// RequestMode classifies a ChatRequest into exactly one processing variant.
type RequestMode string

const (
	// ModeChat is a conversational turn carrying a user message.
	ModeChat RequestMode = "chat"

	// ModeSettings is a pure settings upsert carrying no message.
	ModeSettings RequestMode = "settings"

	// ModeInvalid means the request carries neither or both payloads.
	ModeInvalid RequestMode = "invalid"
)

// ChatRequest represents the /v1/chat request body.
//
// # Description
//
// A request is exactly one of two variants:
//
//   - Chat turn: Message (or the legacy Question alias) is set; leadId is
//     required so the conversation can be keyed.
//   - Settings update: Settings is set and no message is present; only
//     userId is required.
//
// Both-present and both-absent are validation errors resolved at the
// boundary via Mode(), never by truthiness checks downstream.
//
// # Fields
//
//   - UserID: Required. Tenant/owner identity; also the vector namespace.
//   - LeadID: Required for chat turns. Identifies the website visitor.
//   - SessionID: Optional. Further scopes a conversation to one widget session.
//   - Message: The user's chat message (32KB cap).
//   - Question: Legacy alias for Message, honored when Message is empty.
//   - Settings: Role/tone/length payload. On a chat turn these ride along as
//     overrides and are persisted write-through; on a settings-only request
//     the full triple is required.
//   - Reset: When true on a chat turn, clears messages/usage/flags for the
//     conversation before processing. Stored settings are preserved.
type ChatRequest struct {
	UserID    string    `json:"userId" validate:"required,max=128"`
	LeadID    string    `json:"leadId" validate:"omitempty,max=128"`
	SessionID string    `json:"sessionId" validate:"omitempty,max=128"`
	Message   string    `json:"message" validate:"omitempty,maxbytes"`
	Question  string    `json:"question" validate:"omitempty,maxbytes"`
	Settings  *Settings `json:"settings"`
	Reset     bool      `json:"reset"`

	// RequestID is assigned by the handler for tracing and audit, never
	// read from the client.
	RequestID string `json:"-"`
}

// Text returns the trimmed chat message, honoring the Question alias.
func (r *ChatRequest) Text() string {
	msg := strings.TrimSpace(r.Message)
	if msg == "" {
		msg = strings.TrimSpace(r.Question)
	}
	return msg
}

// Mode classifies the request into its processing variant.
//
// A request with both a message and a full settings payload is still a chat
// turn (the settings ride along as overrides); ModeInvalid is reserved for
// requests with neither payload.
func (r *ChatRequest) Mode() RequestMode {
	hasMessage := r.Text() != ""
	hasSettings := r.Settings != nil && !r.Settings.IsZero()

	switch {
	case hasMessage:
		return ModeChat
	case hasSettings:
		return ModeSettings
	default:
		return ModeInvalid
	}
}

// Validate checks structural constraints on the request.
//
// Returns a human-readable error suitable for a 400 response detail.
// Variant-specific requirements (leadId on chat turns, full settings triple
// on settings-only requests) are enforced by the answer engine.
func (r *ChatRequest) Validate() error {
	return chatValidate.Struct(r)
}

// Key returns the conversation identity key for this request.
func (r *ChatRequest) Key() ConversationKey {
	return ConversationKey{
		UserID:    r.UserID,
		LeadID:    r.LeadID,
		SessionID: r.SessionID,
	}
}

// =============================================================================
// Chat Response
// =============================================================================

// Usage is the cumulative token/cost accounting for one conversation.
//
// Counters are monotonically non-decreasing; TotalTokens is recomputed as the
// sum of the three token counters after every update. Only an explicit reset
// zeroes them.
type Usage struct {
	EmbeddingTokens  int     `json:"embeddingTokens"`
	ChatInputTokens  int     `json:"chatInputTokens"`
	ChatOutputTokens int     `json:"chatOutputTokens"`
	TotalTokens      int     `json:"totalTokens"`
	TotalCostUSD     float64 `json:"totalCostUsd"`
}

// ChatResponse represents the /v1/chat response body.
type ChatResponse struct {
	Mode              string         `json:"mode"`
	Answer            string         `json:"answer"`
	BaseURL           string         `json:"baseUrl,omitempty"`
	Sources           []string       `json:"sources"`
	Usage             Usage          `json:"usage"`
	EffectiveSettings Settings       `json:"effectiveSettings"`
	Debug             map[string]any `json:"debug,omitempty"`
}
