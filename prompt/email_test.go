// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package prompt

import (
	"strings"
	"testing"
)

func TestExtractEmail_Found(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"a.b-c@sub.example.co", "a.b-c@sub.example.co"},
		{"reach me at John.Doe@Example.COM thanks", "john.doe@example.com"},
		{"(contact: sales@acme.io)", "sales@acme.io"},
		{"email is bob@site.org.", "bob@site.org"},
		{"x_1@my-host.example.travel", "x_1@my-host.example.travel"},
	}
	for _, tt := range tests {
		got, ok := ExtractEmail(tt.text)
		if !ok {
			t.Errorf("ExtractEmail(%q): expected match", tt.text)
			continue
		}
		if got != tt.want {
			t.Errorf("ExtractEmail(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestExtractEmail_NotFound(t *testing.T) {
	tests := []string{
		"no email here",
		"",
		"weird@@two@at.com",
		"@missing-local.com",
		"trailing@dot.",
		"a@b", // TLD too short
		"double..dot@example.com",
		"-lead@example.com",
	}
	for _, text := range tests {
		if got, ok := ExtractEmail(text); ok {
			t.Errorf("ExtractEmail(%q) unexpectedly matched %q", text, got)
		}
	}
}

func TestExtractEmail_LocalPartLengthBound(t *testing.T) {
	local := strings.Repeat("a", 64)
	if _, ok := ExtractEmail(local + "@example.com"); !ok {
		t.Error("64-char local part must be accepted")
	}
	tooLong := strings.Repeat("a", 65)
	if _, ok := ExtractEmail(tooLong + "@example.com"); ok {
		t.Error("65-char local part must be rejected")
	}
}

func TestExtractEmail_FirstTokenWins(t *testing.T) {
	got, ok := ExtractEmail("first@example.com and second@example.com")
	if !ok || got != "first@example.com" {
		t.Errorf("expected first candidate to win, got %q (ok=%v)", got, ok)
	}
}
