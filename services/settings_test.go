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
	"testing"

	"github.com/AleutianAI/sitechat/datatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memSettings is an in-memory SettingsStore for resolver tests.
type memSettings struct {
	records map[string]datatypes.Settings
}

func newMemSettings() *memSettings {
	return &memSettings{records: make(map[string]datatypes.Settings)}
}

func (m *memSettings) Save(_ context.Context, key datatypes.SettingsKey, s datatypes.Settings) error {
	m.records[string(key.Encode())] = s
	return nil
}

func (m *memSettings) Load(_ context.Context, key datatypes.SettingsKey) (datatypes.Settings, bool, error) {
	s, ok := m.records[string(key.Encode())]
	return s, ok, nil
}

func fullKey() datatypes.ConversationKey {
	return datatypes.ConversationKey{UserID: "u1", LeadID: "l1", SessionID: "s1"}
}

func TestResolve_HardDefaultsWhenNothingStored(t *testing.T) {
	r := NewResolver(newMemSettings())

	settings, err := r.Resolve(context.Background(), fullKey(), nil)
	require.NoError(t, err)
	assert.Equal(t, "Help Desk Specialist", settings.Role)
	assert.Equal(t, "Friendly", settings.Tone)
	assert.Equal(t, "Short", settings.Length)
}

func TestResolve_ChainMostSpecificWins(t *testing.T) {
	store := newMemSettings()
	key := fullKey()
	_ = store.Save(context.Background(), datatypes.SettingsKey{UserID: "u1"},
		datatypes.Settings{Role: "Client Service Representative", Tone: "Professional", Length: "Long"})
	_ = store.Save(context.Background(), datatypes.SettingsKey{UserID: "u1", LeadID: "l1"},
		datatypes.Settings{Tone: "Casual"})
	_ = store.Save(context.Background(), datatypes.SettingsKey{UserID: "u1", LeadID: "l1", SessionID: "s1"},
		datatypes.Settings{Length: "Minimal"})

	r := NewResolver(store)
	settings, err := r.Resolve(context.Background(), key, nil)
	require.NoError(t, err)

	// Each field independently takes the most specific non-empty value:
	// length from session, tone from lead, role from user.
	assert.Equal(t, "Client Service Representative", settings.Role)
	assert.Equal(t, "Casual", settings.Tone)
	assert.Equal(t, "Minimal", settings.Length)
}

func TestResolve_OverrideBeatsStored(t *testing.T) {
	store := newMemSettings()
	_ = store.Save(context.Background(), datatypes.SettingsKey{UserID: "u1"},
		datatypes.Settings{Role: "Client Service Representative", Tone: "Professional", Length: "Long"})

	r := NewResolver(store)
	override := &datatypes.Settings{Tone: "Casual"}
	settings, err := r.Resolve(context.Background(), fullKey(), override)
	require.NoError(t, err)
	assert.Equal(t, "Casual", settings.Tone)
	assert.Equal(t, "Client Service Representative", settings.Role)
	assert.Equal(t, "Long", settings.Length)
}

func TestResolve_EmptyStoredFieldDoesNotShadow(t *testing.T) {
	store := newMemSettings()
	// Session record exists but carries no tone; the user record's tone
	// must still shine through.
	_ = store.Save(context.Background(), datatypes.SettingsKey{UserID: "u1", LeadID: "l1", SessionID: "s1"},
		datatypes.Settings{Length: "Chatty"})
	_ = store.Save(context.Background(), datatypes.SettingsKey{UserID: "u1"},
		datatypes.Settings{Tone: "Professional"})

	r := NewResolver(store)
	settings, err := r.Resolve(context.Background(), fullKey(), nil)
	require.NoError(t, err)
	assert.Equal(t, "Chatty", settings.Length)
	assert.Equal(t, "Professional", settings.Tone)
	assert.Equal(t, "Help Desk Specialist", settings.Role) // default
}

func TestPersist_WritesToMostSpecificScope(t *testing.T) {
	store := newMemSettings()
	r := NewResolver(store)
	key := fullKey()

	override := &datatypes.Settings{Tone: "Casual"}
	require.NoError(t, r.Persist(context.Background(), key, override))

	_, foundSession, _ := store.Load(context.Background(), key.MostSpecific())
	assert.True(t, foundSession, "override must land at the session scope")

	_, foundUser, _ := store.Load(context.Background(), datatypes.SettingsKey{UserID: "u1"})
	assert.False(t, foundUser, "override must not touch broader scopes")
}

func TestPersist_NilOrEmptyIsNoop(t *testing.T) {
	store := newMemSettings()
	r := NewResolver(store)
	key := fullKey()

	require.NoError(t, r.Persist(context.Background(), key, nil))
	require.NoError(t, r.Persist(context.Background(), key, &datatypes.Settings{}))
	assert.Empty(t, store.records)
}

func TestPersist_PartialOverrideKeepsStoredFields(t *testing.T) {
	store := newMemSettings()
	key := fullKey()
	_ = store.Save(context.Background(), key.MostSpecific(),
		datatypes.Settings{Role: "Technical Support Agent", Tone: "Professional", Length: "Long"})

	r := NewResolver(store)
	require.NoError(t, r.Persist(context.Background(), key, &datatypes.Settings{Tone: "Casual"}))

	stored, found, _ := store.Load(context.Background(), key.MostSpecific())
	require.True(t, found)
	assert.Equal(t, "Casual", stored.Tone)
	assert.Equal(t, "Technical Support Agent", stored.Role)
	assert.Equal(t, "Long", stored.Length)
}

func TestUpsert_RequiresFullTriple(t *testing.T) {
	r := NewResolver(newMemSettings())
	key := datatypes.ConversationKey{UserID: "u1"}

	_, err := r.Upsert(context.Background(), key, datatypes.Settings{Role: "Help Desk Specialist"})
	require.Error(t, err)
	assert.True(t, IsIncompleteSettings(err))

	var ie *IncompleteSettingsError
	require.ErrorAs(t, err, &ie)
	assert.ElementsMatch(t, []string{"tone", "length"}, ie.Missing)
}

func TestUpsert_SavesAtRequestScope(t *testing.T) {
	store := newMemSettings()
	r := NewResolver(store)
	key := datatypes.ConversationKey{UserID: "u1", LeadID: "l1"}

	saved, err := r.Upsert(context.Background(), key,
		datatypes.Settings{Role: "Help Desk Specialist", Tone: "Friendly", Length: "Chatty"})
	require.NoError(t, err)
	assert.Equal(t, "Chatty", saved.Length)

	stored, found, _ := store.Load(context.Background(), datatypes.SettingsKey{UserID: "u1", LeadID: "l1"})
	require.True(t, found)
	assert.Equal(t, "Chatty", stored.Length)
}
