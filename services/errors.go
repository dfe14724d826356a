// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package services contains the settings resolver and the answer engine
// orchestrating retrieval, prompting, and generation for chat turns.
package services

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError reports a structurally invalid or mode-ambiguous request.
// Maps to HTTP 400.
type ValidationError struct {
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s", e.Detail)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IncompleteSettingsError reports a settings-only request missing part of the
// role/tone/length triple. Maps to HTTP 400.
type IncompleteSettingsError struct {
	Missing []string
}

func (e *IncompleteSettingsError) Error() string {
	return fmt.Sprintf("incomplete settings: missing %s", strings.Join(e.Missing, ", "))
}

// IsIncompleteSettings reports whether err is an IncompleteSettingsError.
func IsIncompleteSettings(err error) bool {
	var ie *IncompleteSettingsError
	return errors.As(err, &ie)
}

// UpstreamError wraps a failure from a dependency (embedding provider, vector
// index, chat model). Timeout distinguishes deadline expiry (HTTP 503) from
// other upstream failures (HTTP 502).
type UpstreamError struct {
	Op      string
	Err     error
	Timeout bool
}

func (e *UpstreamError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("upstream %s timed out: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("upstream %s failed: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// IsUpstream reports whether err is an UpstreamError, returning it for
// inspection.
func IsUpstream(err error) (*UpstreamError, bool) {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}

// StoreError wraps a conversation/settings persistence failure. Maps to
// HTTP 503.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// IsStore reports whether err is a StoreError.
func IsStore(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}
