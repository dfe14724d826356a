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

// greetings is the fixed small-talk phrase set. A normalized message that
// equals, or starts with, one of these (followed by a space) short-circuits
// the whole retrieval/generation pipeline.
var greetings = map[string]struct{}{
	"hi": {}, "hii": {}, "hiii": {}, "hello": {}, "hey": {}, "heyy": {},
	"hola": {}, "good morning": {}, "good afternoon": {}, "good evening": {},
	"namaste": {}, "yo": {},
}

var (
	punctRe      = regexp.MustCompile(`[^\w\s]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// normalizeText lowercases, strips punctuation, and collapses whitespace.
func normalizeText(text string) string {
	t := strings.ToLower(strings.TrimSpace(text))
	t = punctRe.ReplaceAllString(t, "")
	t = whitespaceRe.ReplaceAllString(t, " ")
	return strings.TrimSpace(t)
}

// IsGreeting reports whether the message is trivial small talk.
// Empty normalized text is never a greeting.
func IsGreeting(text string) bool {
	t := normalizeText(text)
	if t == "" {
		return false
	}
	if _, ok := greetings[t]; ok {
		return true
	}
	for g := range greetings {
		if strings.HasPrefix(t, g+" ") {
			return true
		}
	}
	return false
}

// GreetingReply builds the deterministic small-talk reply.
//
// Tone selects the opening line; length appends increasing elaboration.
// The role parameter is accepted for signature symmetry with SystemPrompt
// but does not change the reply.
func GreetingReply(role, tone, length string) string {
	_ = role

	var base string
	switch strings.TrimSpace(tone) {
	case "Professional":
		base = "Hello! How may I assist you today?"
	case "Casual":
		base = "Hey! What can I help you with?"
	default:
		base = "Hi! 😊 How can I help you today?"
	}

	switch strings.TrimSpace(length) {
	case "Minimal":
		return base
	case "Long":
		return base +
			"\n\nYou can ask things like:\n" +
			"1) Pricing / plans / features\n" +
			"2) Policies (refund, shipping, privacy)\n" +
			"3) Setup / troubleshooting steps"
	case "Chatty":
		return base +
			"\n\nTell me what you want to know — for example *pricing*, *policies*, *features*, or *how something works* — and I’ll guide you."
	default: // Short
		return base + " Ask me anything about the website data."
	}
}

// EmailNudge is the one-time sentence appended to a greeting reply when no
// contact email is on file. The answer engine latches a flag so it is shown
// at most once per conversation.
const EmailNudge = "By the way, if you’d like a follow-up, you can share your email here anytime."
