// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AleutianAI/sitechat/datatypes"
	"github.com/dgraph-io/badger/v4"
)

// BadgerStore implements Store and SettingsStore on an embedded BadgerDB.
//
// # Thread Safety
//
// All mutations on one conversation key are serialized through a per-key
// mutex, so read-modify-write cycles (append-and-trim, usage addition, flag
// latches, email capture) are atomic with respect to concurrent requests.
// Different keys proceed in parallel.
type BadgerStore struct {
	db *badger.DB

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	// now is swapped in tests for deterministic timestamps.
	now func() time.Time
}

var (
	_ Store         = (*BadgerStore)(nil)
	_ SettingsStore = (*badgerSettings)(nil)
)

// NewBadgerStore wraps an opened database. The caller owns the db lifecycle.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{
		db:    db,
		locks: make(map[string]*sync.Mutex),
		now:   time.Now,
	}
}

// lockFor returns the mutex serializing writes to one storage key.
func (s *BadgerStore) lockFor(encoded []byte) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := string(encoded)
	l, ok := s.locks[k]
	if !ok {
		l = &sync.Mutex{}
		s.locks[k] = l
	}
	return l
}

// loadRecord reads and decodes the conversation record inside a transaction.
// Absent keys return (nil, nil).
func loadRecord(txn *badger.Txn, encoded []byte) (*datatypes.ConversationRecord, error) {
	item, err := txn.Get(encoded)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read conversation record: %w", err)
	}

	var rec datatypes.ConversationRecord
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	})
	if err != nil {
		return nil, fmt.Errorf("decode conversation record: %w", err)
	}
	return &rec, nil
}

func saveRecord(txn *badger.Txn, encoded []byte, rec *datatypes.ConversationRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode conversation record: %w", err)
	}
	if err := txn.Set(encoded, data); err != nil {
		return fmt.Errorf("write conversation record: %w", err)
	}
	return nil
}

// mutate runs fn on the (possibly nil) current record under the per-key lock
// and persists the result. fn returning (nil, nil) skips the write.
func (s *BadgerStore) mutate(ctx context.Context, key datatypes.ConversationKey,
	fn func(rec *datatypes.ConversationRecord) (*datatypes.ConversationRecord, error)) error {

	if err := ctx.Err(); err != nil {
		return err
	}

	encoded := key.Encode()
	lock := s.lockFor(encoded)
	lock.Lock()
	defer lock.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		rec, err := loadRecord(txn, encoded)
		if err != nil {
			return err
		}
		out, err := fn(rec)
		if err != nil {
			return err
		}
		if out == nil {
			return nil
		}
		return saveRecord(txn, encoded, out)
	})
}

// newRecord builds an empty record for the key.
func (s *BadgerStore) newRecord(key datatypes.ConversationKey) *datatypes.ConversationRecord {
	now := s.now().UnixMilli()
	return &datatypes.ConversationRecord{
		UserID:    key.UserID,
		LeadID:    key.LeadID,
		SessionID: key.SessionID,
		Messages:  []datatypes.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Ensure creates the conversation record if absent.
func (s *BadgerStore) Ensure(ctx context.Context, key datatypes.ConversationKey) error {
	return s.mutate(ctx, key, func(rec *datatypes.ConversationRecord) (*datatypes.ConversationRecord, error) {
		if rec != nil {
			return nil, nil
		}
		return s.newRecord(key), nil
	})
}

// AppendMessage appends one message, evicting oldest entries past the cap.
func (s *BadgerStore) AppendMessage(ctx context.Context, key datatypes.ConversationKey, msg datatypes.Message) error {
	return s.mutate(ctx, key, func(rec *datatypes.ConversationRecord) (*datatypes.ConversationRecord, error) {
		if rec == nil {
			rec = s.newRecord(key)
		}
		rec.Messages = append(rec.Messages, msg)
		if n := len(rec.Messages); n > datatypes.MaxMessagesStore {
			rec.Messages = rec.Messages[n-datatypes.MaxMessagesStore:]
		}
		rec.UpdatedAt = s.now().UnixMilli()
		return rec, nil
	})
}

// History returns up to limit most recent messages, oldest first.
func (s *BadgerStore) History(ctx context.Context, key datatypes.ConversationKey, limit int) ([]datatypes.Message, error) {
	rec, err := s.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	if rec == nil || len(rec.Messages) == 0 {
		return nil, nil
	}
	msgs := rec.Messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]datatypes.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// AddUsage applies the delta (negative components clamped to zero) and
// returns the cumulative snapshot. TotalTokens is recomputed from the three
// counters after every update.
func (s *BadgerStore) AddUsage(ctx context.Context, key datatypes.ConversationKey, delta UsageDelta) (datatypes.Usage, error) {
	var snapshot datatypes.Usage
	err := s.mutate(ctx, key, func(rec *datatypes.ConversationRecord) (*datatypes.ConversationRecord, error) {
		if rec == nil {
			rec = s.newRecord(key)
		}
		rec.Usage.EmbeddingTokens += clampNonNegative(delta.EmbeddingTokens)
		rec.Usage.ChatInputTokens += clampNonNegative(delta.ChatInputTokens)
		rec.Usage.ChatOutputTokens += clampNonNegative(delta.ChatOutputTokens)
		rec.Usage.TotalTokens = rec.Usage.EmbeddingTokens + rec.Usage.ChatInputTokens + rec.Usage.ChatOutputTokens
		if delta.CostUSD > 0 {
			rec.Usage.TotalCostUSD += delta.CostUSD
		}
		rec.UpdatedAt = s.now().UnixMilli()
		snapshot = rec.Usage
		return rec, nil
	})
	return snapshot, err
}

func clampNonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// SetFlagOnce latches the named flag, reporting whether this call flipped it.
func (s *BadgerStore) SetFlagOnce(ctx context.Context, key datatypes.ConversationKey, flag Flag) (bool, error) {
	var flipped bool
	err := s.mutate(ctx, key, func(rec *datatypes.ConversationRecord) (*datatypes.ConversationRecord, error) {
		if rec == nil {
			rec = s.newRecord(key)
		}
		var target *bool
		switch flag {
		case FlagEmailPromptShown:
			target = &rec.EmailPromptShown
		case FlagFirstReplyDone:
			target = &rec.FirstReplyDone
		default:
			return nil, fmt.Errorf("unknown conversation flag %q", flag)
		}
		if *target {
			return nil, nil
		}
		*target = true
		flipped = true
		rec.UpdatedAt = s.now().UnixMilli()
		return rec, nil
	})
	return flipped, err
}

// CaptureEmail stores the email if none is held yet.
func (s *BadgerStore) CaptureEmail(ctx context.Context, key datatypes.ConversationKey, email string) (bool, error) {
	var captured bool
	err := s.mutate(ctx, key, func(rec *datatypes.ConversationRecord) (*datatypes.ConversationRecord, error) {
		if rec == nil {
			rec = s.newRecord(key)
		}
		if rec.EmailCaptured != "" {
			return nil, nil
		}
		rec.EmailCaptured = email
		captured = true
		rec.UpdatedAt = s.now().UnixMilli()
		return rec, nil
	})
	return captured, err
}

// Reset clears messages, usage, flags, and the captured email. Stored
// settings live in their own records and are untouched.
func (s *BadgerStore) Reset(ctx context.Context, key datatypes.ConversationKey) error {
	return s.mutate(ctx, key, func(rec *datatypes.ConversationRecord) (*datatypes.ConversationRecord, error) {
		if rec == nil {
			return s.newRecord(key), nil
		}
		rec.Messages = []datatypes.Message{}
		rec.Usage = datatypes.Usage{}
		rec.EmailCaptured = ""
		rec.EmailPromptShown = false
		rec.FirstReplyDone = false
		rec.UpdatedAt = s.now().UnixMilli()
		return rec, nil
	})
}

// Load returns the full record, or (nil, nil) when absent.
func (s *BadgerStore) Load(ctx context.Context, key datatypes.ConversationKey) (*datatypes.ConversationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rec *datatypes.ConversationRecord
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = loadRecord(txn, key.Encode())
		return err
	})
	return rec, err
}

// =============================================================================
// SettingsStore
// =============================================================================

// badgerSettings is the SettingsStore view over the same database. Split off
// so the settings Load does not collide with the conversation Load.
type badgerSettings struct {
	s *BadgerStore
}

// Settings returns the SettingsStore view backed by the same database and
// per-key lock table.
func (s *BadgerStore) Settings() SettingsStore {
	return &badgerSettings{s: s}
}

// Save upserts the settings record at the given key.
func (v *badgerSettings) Save(ctx context.Context, key datatypes.SettingsKey, settings datatypes.Settings) error {
	s := v.s
	if err := ctx.Err(); err != nil {
		return err
	}

	encoded := key.Encode()
	lock := s.lockFor(encoded)
	lock.Lock()
	defer lock.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		now := s.now().UnixMilli()
		rec := datatypes.SettingsRecord{
			UserID:    key.UserID,
			LeadID:    key.LeadID,
			SessionID: key.SessionID,
			Settings:  settings,
			CreatedAt: now,
			UpdatedAt: now,
		}

		item, err := txn.Get(encoded)
		if err == nil {
			var existing datatypes.SettingsRecord
			decodeErr := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &existing)
			})
			if decodeErr == nil {
				rec.CreatedAt = existing.CreatedAt
			}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("read settings record: %w", err)
		}

		data, err := json.Marshal(&rec)
		if err != nil {
			return fmt.Errorf("encode settings record: %w", err)
		}
		if err := txn.Set(encoded, data); err != nil {
			return fmt.Errorf("write settings record: %w", err)
		}
		return nil
	})
}

// Load returns the stored settings and whether a record exists.
func (v *badgerSettings) Load(ctx context.Context, key datatypes.SettingsKey) (datatypes.Settings, bool, error) {
	if err := ctx.Err(); err != nil {
		return datatypes.Settings{}, false, err
	}
	s := v.s

	var settings datatypes.Settings
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key.Encode())
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read settings record: %w", err)
		}
		return item.Value(func(val []byte) error {
			var rec datatypes.SettingsRecord
			if err := json.Unmarshal(val, &rec); err != nil {
				return fmt.Errorf("decode settings record: %w", err)
			}
			settings = rec.Settings
			found = true
			return nil
		})
	})
	return settings, found, err
}
