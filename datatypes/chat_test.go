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

import (
	"strings"
	"testing"
)

// =============================================================================
// ChatRequest Mode Tests
// =============================================================================

func TestChatRequest_Mode_Message(t *testing.T) {
	req := &ChatRequest{UserID: "u1", LeadID: "l1", Message: "What are your prices?"}
	if got := req.Mode(); got != ModeChat {
		t.Errorf("expected ModeChat, got %s", got)
	}
}

func TestChatRequest_Mode_QuestionAlias(t *testing.T) {
	req := &ChatRequest{UserID: "u1", LeadID: "l1", Question: "What are your prices?"}
	if got := req.Mode(); got != ModeChat {
		t.Errorf("expected ModeChat via question alias, got %s", got)
	}
	if req.Text() != "What are your prices?" {
		t.Errorf("Text() did not honor question alias: %q", req.Text())
	}
}

func TestChatRequest_Mode_MessageWinsOverAlias(t *testing.T) {
	req := &ChatRequest{UserID: "u1", LeadID: "l1", Message: "primary", Question: "legacy"}
	if req.Text() != "primary" {
		t.Errorf("expected message to win over question alias, got %q", req.Text())
	}
}

func TestChatRequest_Mode_SettingsOnly(t *testing.T) {
	req := &ChatRequest{
		UserID:   "u1",
		Settings: &Settings{Role: "Technical Support Agent", Tone: "Casual", Length: "Long"},
	}
	if got := req.Mode(); got != ModeSettings {
		t.Errorf("expected ModeSettings, got %s", got)
	}
}

func TestChatRequest_Mode_BothPresent_IsChat(t *testing.T) {
	req := &ChatRequest{
		UserID:   "u1",
		LeadID:   "l1",
		Message:  "hi",
		Settings: &Settings{Tone: "Casual"},
	}
	if got := req.Mode(); got != ModeChat {
		t.Errorf("settings riding along a message must still be a chat turn, got %s", got)
	}
}

func TestChatRequest_Mode_NeitherPresent(t *testing.T) {
	req := &ChatRequest{UserID: "u1", LeadID: "l1"}
	if got := req.Mode(); got != ModeInvalid {
		t.Errorf("expected ModeInvalid, got %s", got)
	}

	// Whitespace-only message is still no message.
	req.Message = "   "
	if got := req.Mode(); got != ModeInvalid {
		t.Errorf("expected ModeInvalid for whitespace message, got %s", got)
	}

	// An empty settings object does not make it a settings request either.
	req.Message = ""
	req.Settings = &Settings{}
	if got := req.Mode(); got != ModeInvalid {
		t.Errorf("expected ModeInvalid for zero settings, got %s", got)
	}
}

// =============================================================================
// ChatRequest Validation Tests
// =============================================================================

func TestChatRequest_Validate_Success(t *testing.T) {
	req := &ChatRequest{UserID: "u1", LeadID: "l1", Message: "Hello"}
	if err := req.Validate(); err != nil {
		t.Errorf("expected valid request, got error: %v", err)
	}
}

func TestChatRequest_Validate_MissingUserID(t *testing.T) {
	req := &ChatRequest{LeadID: "l1", Message: "Hello"}
	if err := req.Validate(); err == nil {
		t.Error("expected error for missing userId, got nil")
	}
}

func TestChatRequest_Validate_OversizedMessage(t *testing.T) {
	req := &ChatRequest{
		UserID:  "u1",
		LeadID:  "l1",
		Message: strings.Repeat("x", MaxMessageContentBytes+1),
	}
	if err := req.Validate(); err == nil {
		t.Errorf("expected error for message over %d bytes, got nil", MaxMessageContentBytes)
	}
}

func TestChatRequest_Validate_ExactlyMaxMessage(t *testing.T) {
	req := &ChatRequest{
		UserID:  "u1",
		LeadID:  "l1",
		Message: strings.Repeat("x", MaxMessageContentBytes),
	}
	if err := req.Validate(); err != nil {
		t.Errorf("expected message of exactly %d bytes to validate, got: %v", MaxMessageContentBytes, err)
	}
}

func TestChatRequest_Validate_OversizedIdentifier(t *testing.T) {
	req := &ChatRequest{
		UserID:  strings.Repeat("u", MaxIdentifierLength+1),
		Message: "Hello",
	}
	if err := req.Validate(); err == nil {
		t.Error("expected error for oversized userId, got nil")
	}
}

// =============================================================================
// Settings Tests
// =============================================================================

func TestSettings_Merge_FieldIndependence(t *testing.T) {
	override := Settings{Tone: "Casual"}
	stored := Settings{Role: "Technical Support Agent", Tone: "Professional", Length: "Long"}

	merged := override.Merge(stored)
	if merged.Role != "Technical Support Agent" {
		t.Errorf("role should come from fallback, got %q", merged.Role)
	}
	if merged.Tone != "Casual" {
		t.Errorf("tone should come from override, got %q", merged.Tone)
	}
	if merged.Length != "Long" {
		t.Errorf("length should come from fallback, got %q", merged.Length)
	}
}

func TestSettings_MissingFields(t *testing.T) {
	s := Settings{Role: "Help Desk Specialist"}
	missing := s.MissingFields()
	if len(missing) != 2 {
		t.Fatalf("expected 2 missing fields, got %v", missing)
	}
	if missing[0] != "tone" || missing[1] != "length" {
		t.Errorf("unexpected missing fields: %v", missing)
	}
}

// =============================================================================
// Key Tests
// =============================================================================

func TestConversationKey_Chain_FullTriple(t *testing.T) {
	key := ConversationKey{UserID: "u1", LeadID: "l1", SessionID: "s1"}
	chain := key.Chain()
	if len(chain) != 3 {
		t.Fatalf("expected 3 chain entries, got %d", len(chain))
	}
	if chain[0].Level() != LevelSession || chain[1].Level() != LevelLead || chain[2].Level() != LevelUser {
		t.Errorf("chain levels out of order: %v %v %v",
			chain[0].Level(), chain[1].Level(), chain[2].Level())
	}
}

func TestConversationKey_Chain_NoSession(t *testing.T) {
	key := ConversationKey{UserID: "u1", LeadID: "l1"}
	chain := key.Chain()
	if len(chain) != 2 {
		t.Fatalf("expected 2 chain entries, got %d", len(chain))
	}
	if chain[0].Level() != LevelLead || chain[1].Level() != LevelUser {
		t.Errorf("chain levels out of order")
	}
}

func TestConversationKey_Encode_Distinct(t *testing.T) {
	a := ConversationKey{UserID: "u1", LeadID: "l1"}
	b := ConversationKey{UserID: "u1", LeadID: "l1", SessionID: "s1"}
	if string(a.Encode()) == string(b.Encode()) {
		t.Error("keys with and without session must encode differently")
	}

	conv := ConversationKey{UserID: "u1", LeadID: "l1"}
	settings := SettingsKey{UserID: "u1", LeadID: "l1"}
	if string(conv.Encode()) == string(settings.Encode()) {
		t.Error("conversation and settings keys must not collide")
	}
}
