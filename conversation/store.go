// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package conversation persists per-lead conversation logs, latched flags,
// usage accounting, and the stored settings chain.
package conversation

import (
	"context"

	"github.com/AleutianAI/sitechat/datatypes"
)

// Flag names a latched per-conversation boolean. Flags transition false->true
// exactly once and only Reset clears them.
type Flag string

const (
	// FlagEmailPromptShown latches once the one-time email nudge has been
	// appended to a reply.
	FlagEmailPromptShown Flag = "emailPromptShown"

	// FlagFirstReplyDone latches once the first assistant reply is stored.
	FlagFirstReplyDone Flag = "firstReplyDone"
)

// UsageDelta is one additive usage update. Negative components are clamped to
// zero so counters never move backwards.
type UsageDelta struct {
	EmbeddingTokens  int
	ChatInputTokens  int
	ChatOutputTokens int
	CostUSD          float64
}

// Store is the conversation persistence contract.
//
// Every mutation is atomic with respect to concurrent requests on the same
// conversation key: two simultaneous appends both land, the message cap is
// enforced under the same lock, and flag latches are compare-and-set.
type Store interface {
	// Ensure creates the conversation record if absent. Idempotent.
	Ensure(ctx context.Context, key datatypes.ConversationKey) error

	// AppendMessage appends one message, evicting oldest entries past the
	// per-conversation cap.
	AppendMessage(ctx context.Context, key datatypes.ConversationKey, msg datatypes.Message) error

	// History returns up to limit most recent messages, oldest first.
	History(ctx context.Context, key datatypes.ConversationKey, limit int) ([]datatypes.Message, error)

	// AddUsage applies the delta and returns the post-update cumulative
	// usage snapshot.
	AddUsage(ctx context.Context, key datatypes.ConversationKey, delta UsageDelta) (datatypes.Usage, error)

	// SetFlagOnce latches the named flag. Returns true only for the call
	// that performed the false->true transition.
	SetFlagOnce(ctx context.Context, key datatypes.ConversationKey, flag Flag) (bool, error)

	// CaptureEmail stores the email if none is held yet (capture-once).
	// Returns true only when this call captured it.
	CaptureEmail(ctx context.Context, key datatypes.ConversationKey, email string) (bool, error)

	// Reset clears messages, usage, flags, and the captured email. Stored
	// settings are untouched. A missing record resets to an empty one.
	Reset(ctx context.Context, key datatypes.ConversationKey) error

	// Load returns the full record, or (nil, nil) when absent.
	Load(ctx context.Context, key datatypes.ConversationKey) (*datatypes.ConversationRecord, error)
}

// SettingsStore persists the per-level settings records of the fallback chain.
type SettingsStore interface {
	// Save upserts the settings record at the given key.
	Save(ctx context.Context, key datatypes.SettingsKey, settings datatypes.Settings) error

	// Load returns the stored settings and whether a record exists.
	Load(ctx context.Context, key datatypes.SettingsKey) (datatypes.Settings, bool, error)
}
