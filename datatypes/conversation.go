// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import "strings"

// MaxMessagesStore caps the stored message log per conversation.
// Appends past the cap evict the oldest messages first.
const MaxMessagesStore = 300

// Message is one entry in a conversation log.
//
// Timestamps are Unix milliseconds (UTC). SourceBaseURL carries provenance
// for assistant replies grounded on retrieved website content.
type Message struct {
	Role          string `json:"role"` // "user" | "assistant"
	Content       string `json:"content"`
	Timestamp     int64  `json:"timestamp"`
	SourceBaseURL string `json:"sourceBaseUrl,omitempty"`
}

// ConversationKey addresses one conversation document.
//
// UserID is always present. LeadID scopes the conversation to one website
// visitor; SessionID optionally narrows it further to a single widget
// session. The same tuple (minus empty components) addresses the most
// specific settings record.
type ConversationKey struct {
	UserID    string
	LeadID    string
	SessionID string
}

// keySeparator joins key components in storage keys. Unit separator is not
// expected in identifiers and keeps encoded keys unambiguous.
const keySeparator = "\x1f"

// Encode returns the storage key for the conversation document.
func (k ConversationKey) Encode() []byte {
	return []byte("conv" + keySeparator + k.UserID + keySeparator + k.LeadID + keySeparator + k.SessionID)
}

// String renders the key for logs.
func (k ConversationKey) String() string {
	parts := []string{k.UserID, k.LeadID, k.SessionID}
	return strings.Join(parts, "/")
}

// SettingsLevel names one tier of the settings fallback chain.
type SettingsLevel string

const (
	LevelSession SettingsLevel = "session"
	LevelLead    SettingsLevel = "lead"
	LevelUser    SettingsLevel = "user"
	LevelDefault SettingsLevel = "default"
)

// SettingsKey addresses one stored settings record at a specific level.
type SettingsKey struct {
	UserID    string
	LeadID    string
	SessionID string
}

// Level reports which tier of the fallback chain this key addresses.
func (k SettingsKey) Level() SettingsLevel {
	switch {
	case k.SessionID != "":
		return LevelSession
	case k.LeadID != "":
		return LevelLead
	default:
		return LevelUser
	}
}

// Encode returns the storage key for the settings record.
func (k SettingsKey) Encode() []byte {
	return []byte("settings" + keySeparator + k.UserID + keySeparator + k.LeadID + keySeparator + k.SessionID)
}

// Chain returns the settings lookup keys from most to least specific.
//
// A conversation keyed (user, lead, session) resolves session -> lead ->
// user; empty components collapse the chain accordingly.
func (k ConversationKey) Chain() []SettingsKey {
	var chain []SettingsKey
	if k.SessionID != "" && k.LeadID != "" {
		chain = append(chain, SettingsKey{UserID: k.UserID, LeadID: k.LeadID, SessionID: k.SessionID})
	}
	if k.LeadID != "" {
		chain = append(chain, SettingsKey{UserID: k.UserID, LeadID: k.LeadID})
	}
	chain = append(chain, SettingsKey{UserID: k.UserID})
	return chain
}

// MostSpecific returns the settings key writes should target for this
// conversation (write-through to the narrowest scope in the request).
func (k ConversationKey) MostSpecific() SettingsKey {
	return SettingsKey{UserID: k.UserID, LeadID: k.LeadID, SessionID: k.SessionID}
}

// ConversationRecord is the per-identity-key conversation document.
//
// Created lazily on first use, mutated on every chat turn, never hard-deleted
// by the core. Reset clears Messages, Usage and the latched flags but
// preserves identity (stored settings live in their own records).
type ConversationRecord struct {
	UserID    string    `json:"userId"`
	LeadID    string    `json:"leadId"`
	SessionID string    `json:"sessionId,omitempty"`
	Messages  []Message `json:"messages"`
	Usage     Usage     `json:"usage"`

	// EmailCaptured holds the single captured contact email, set at most
	// once (capture-once policy).
	EmailCaptured string `json:"emailCaptured,omitempty"`

	// EmailPromptShown latches true once the one-time email nudge has been
	// appended to a reply.
	EmailPromptShown bool `json:"emailPromptShown"`

	// FirstReplyDone latches true once the first assistant reply has been
	// stored.
	FirstReplyDone bool `json:"firstReplyDone"`

	CreatedAt int64 `json:"createdAt"`
	UpdatedAt int64 `json:"updatedAt"`
}

// SettingsRecord is one stored settings document in the fallback chain.
type SettingsRecord struct {
	UserID    string   `json:"userId"`
	LeadID    string   `json:"leadId,omitempty"`
	SessionID string   `json:"sessionId,omitempty"`
	Settings  Settings `json:"settings"`
	CreatedAt int64    `json:"createdAt"`
	UpdatedAt int64    `json:"updatedAt"`
}
