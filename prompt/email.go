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
	"regexp"
	"strings"
)

// emailRe matches a strict email shape:
//
//   - local part from [A-Za-z0-9._-] with no leading/trailing/doubled
//     separators (length checked separately, 1–64)
//   - domain of dot-separated labels with no leading hyphen, ending in a
//     2+ letter top-level label
var emailRe = regexp.MustCompile(
	`^[A-Za-z0-9]+(?:[._-][A-Za-z0-9]+)*@(?:[A-Za-z0-9](?:[A-Za-z0-9-]*[A-Za-z0-9])?\.)+[A-Za-z]{2,}$`)

// tokenTrimCutset holds punctuation and bracket characters commonly glued to
// an address in free text ("mail me at a@b.com!", "(a@b.com)").
const tokenTrimCutset = ".,;:!?()[]{}<>\"'`"

// ExtractEmail scans free text for a syntactically valid email address.
//
// The whole trimmed string is tried first; failing that, the text is split on
// whitespace, each token is stripped of surrounding punctuation, and the
// first valid candidate wins. The result is lowercased. No match returns
// ("", false) — absence of an email is not an error.
func ExtractEmail(text string) (string, bool) {
	if !strings.Contains(text, "@") {
		return "", false
	}

	if email, ok := validEmail(strings.TrimSpace(text)); ok {
		return email, true
	}

	for _, token := range strings.Fields(text) {
		token = strings.Trim(token, tokenTrimCutset)
		if email, ok := validEmail(token); ok {
			return email, true
		}
	}
	return "", false
}

// validEmail applies the strict pattern plus the local-part length bound.
func validEmail(candidate string) (string, bool) {
	if candidate == "" || !strings.Contains(candidate, "@") {
		return "", false
	}
	if !emailRe.MatchString(candidate) {
		return "", false
	}
	local := candidate[:strings.Index(candidate, "@")]
	if len(local) > 64 {
		return "", false
	}
	return strings.ToLower(candidate), true
}
