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
	"log/slog"

	"github.com/AleutianAI/sitechat/conversation"
	"github.com/AleutianAI/sitechat/datatypes"
	"github.com/AleutianAI/sitechat/prompt"
)

// DefaultSettings are the hard defaults terminating the fallback chain.
func DefaultSettings() datatypes.Settings {
	return datatypes.Settings{
		Role:   prompt.DefaultRole,
		Tone:   prompt.DefaultTone,
		Length: prompt.DefaultLength,
	}
}

// Resolver resolves effective settings through the stored fallback chain and
// persists updates write-through to the most specific scope.
type Resolver struct {
	store conversation.SettingsStore
}

// NewResolver builds a Resolver over the settings store.
func NewResolver(store conversation.SettingsStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve computes the effective settings for a conversation.
//
// Each field resolves independently: request override first, then the stored
// chain from most to least specific (session, lead, user), then the hard
// defaults. A stored record with an empty field does not shadow a value
// further down the chain.
func (r *Resolver) Resolve(ctx context.Context, key datatypes.ConversationKey, override *datatypes.Settings) (datatypes.Settings, error) {
	effective := datatypes.Settings{}
	if override != nil {
		effective = *override
	}

	for _, sk := range key.Chain() {
		if !effective.IsZero() && len(effective.MissingFields()) == 0 {
			break
		}
		stored, found, err := r.store.Load(ctx, sk)
		if err != nil {
			return datatypes.Settings{}, &StoreError{Op: "load settings", Err: err}
		}
		if !found {
			continue
		}
		effective = effective.Merge(stored)
	}

	effective = effective.Merge(DefaultSettings())
	return effective, nil
}

// Persist saves a non-empty override write-through to the most specific
// settings scope of the conversation. Empty overrides are a no-op.
func (r *Resolver) Persist(ctx context.Context, key datatypes.ConversationKey, override *datatypes.Settings) error {
	if override == nil || override.IsZero() {
		return nil
	}

	target := key.MostSpecific()

	// Merge over what the target scope already holds so a partial override
	// does not erase previously stored fields at that level.
	stored, found, err := r.store.Load(ctx, target)
	if err != nil {
		return &StoreError{Op: "load settings", Err: err}
	}
	merged := *override
	if found {
		merged = merged.Merge(stored)
	}

	if err := r.store.Save(ctx, target, merged); err != nil {
		return &StoreError{Op: "save settings", Err: err}
	}
	slog.Debug("Persisted settings override",
		"level", string(target.Level()),
		"role", merged.Role, "tone", merged.Tone, "length", merged.Length)
	return nil
}

// Upsert handles a settings-only request: the full triple is required and is
// stored at the most specific scope present in the request.
func (r *Resolver) Upsert(ctx context.Context, key datatypes.ConversationKey, settings datatypes.Settings) (datatypes.Settings, error) {
	if missing := settings.MissingFields(); len(missing) > 0 {
		return datatypes.Settings{}, &IncompleteSettingsError{Missing: missing}
	}

	target := key.MostSpecific()
	if err := r.store.Save(ctx, target, settings); err != nil {
		return datatypes.Settings{}, &StoreError{Op: "save settings", Err: err}
	}

	slog.Info("Settings updated",
		"level", string(target.Level()),
		"role", settings.Role, "tone", settings.Tone, "length", settings.Length)
	return settings, nil
}
