// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package prompt builds the system prompts, canned replies, and small-talk
// detection for the sitechat answer pipeline.
//
// Everything in this package is a pure function of its inputs: the same
// (role, tone, length) triple always yields byte-identical output. Model
// answer quality depends on that stability, and the tests assert it by
// direct string comparison.
package prompt

import "strings"

// Hard defaults applied when stored settings and request overrides are absent
// or unrecognized.
const (
	DefaultRole   = "Help Desk Specialist"
	DefaultTone   = "Friendly"
	DefaultLength = "Short"
)

// RolePrompts maps each supported role to its persona description.
var RolePrompts = map[string]string{
	"Help Desk Specialist":          "You handle common product/app issues, troubleshooting steps, FAQs, and quick resolutions.",
	"Client Service Representative": "You handle customer requests, billing/account questions, policy guidance, and polite resolutions.",
	"Technical Support Agent":       "You handle deeper technical debugging with precise steps, logs, edge cases, and accurate guidance.",
}

// ToneGuide maps each supported tone to its guidance sentence.
var ToneGuide = map[string]string{
	"Friendly":     "Be warm, approachable, empathetic, and helpful.",
	"Professional": "Be clear, respectful, structured, and business-like.",
	"Casual":       "Be relaxed, simple, and conversational (but still accurate).",
}

// LengthSpec bundles the per-length generation and style controls.
type LengthSpec struct {
	// MaxOut bounds the model's output tokens for this length.
	MaxOut int

	// Style and Format are the length-specific prompt instructions.
	Style  string
	Format string

	// TopK is the vector-index match count requested during retrieval.
	TopK int

	// ContextChars caps the assembled context string in characters.
	ContextChars int
}

// LengthSettings maps each supported length category to its controls.
var LengthSettings = map[string]LengthSpec{
	"Minimal": {
		MaxOut:       120,
		Style:        "Answer in 1–2 short sentences. No extra explanation.",
		Format:       "No bullets unless absolutely necessary.",
		TopK:         4,
		ContextChars: 2500,
	},
	"Short": {
		MaxOut:       220,
		Style:        "Answer in a short paragraph. Use bullets only if needed.",
		Format:       "Prefer 1 short paragraph. Use bullets only when listing items.",
		TopK:         5,
		ContextChars: 4000,
	},
	"Long": {
		MaxOut:       520,
		Style:        "Give a detailed answer with steps if relevant.",
		Format:       "Use numbered steps for procedures. Use short sections with headings if needed.",
		TopK:         6,
		ContextChars: 6500,
	},
	"Chatty": {
		MaxOut:       850,
		Style:        "Be detailed and conversational. Add helpful tips.",
		Format:       "Use a friendly flow. Add 1–2 practical tips when helpful.",
		TopK:         7,
		ContextChars: 8500,
	},
}

// NormalizeRole clamps an unrecognized or empty role to the default.
func NormalizeRole(role string) string {
	role = strings.TrimSpace(role)
	if _, ok := RolePrompts[role]; !ok {
		return DefaultRole
	}
	return role
}

// NormalizeLength clamps an unrecognized or empty length to the default.
func NormalizeLength(length string) string {
	length = strings.TrimSpace(length)
	if _, ok := LengthSettings[length]; !ok {
		return DefaultLength
	}
	return length
}

// LengthFor returns the generation controls for a (possibly unrecognized)
// length value, clamping first.
func LengthFor(length string) LengthSpec {
	return LengthSettings[NormalizeLength(length)]
}

// normalizeTones splits a tone value on commas or pipes and keeps the entries
// recognized by ToneGuide, matched case-insensitively. An empty or entirely
// unrecognized input clamps to the default tone.
//
// Accepted shapes: "Friendly", "Friendly, Professional", "Friendly | Casual".
func normalizeTones(tone string) []string {
	parts := strings.Split(strings.ReplaceAll(tone, "|", ","), ",")

	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		for key := range ToneGuide {
			if strings.EqualFold(p, key) {
				out = append(out, key)
				break
			}
		}
	}
	if len(out) == 0 {
		return []string{DefaultTone}
	}
	return out
}

// SystemPrompt assembles the system prompt for a chat turn.
//
// The prompt concatenates the role persona, combined tone guidance, the
// length-specific style and format instructions, and four fixed rule blocks
// (grounding-only, no fabrication, context-link-only markdown links, and
// output conciseness). Deterministic: no randomness, no external state.
func SystemPrompt(role, tone, length string) string {
	role = NormalizeRole(role)
	length = NormalizeLength(length)

	toneList := normalizeTones(tone)
	toneText := strings.Join(toneList, " + ")

	guides := make([]string, 0, len(toneList))
	for _, t := range toneList {
		guides = append(guides, ToneGuide[t])
	}
	toneRules := strings.Join(guides, " ")

	spec := LengthSettings[length]

	var b strings.Builder
	b.WriteString("You are a " + role + ". " + RolePrompts[role] + "\n")
	b.WriteString("Tone: " + toneText + ". " + toneRules + "\n")
	b.WriteString("Response style: " + spec.Style + "\n")
	b.WriteString("Formatting: " + spec.Format + "\n\n")
	b.WriteString("STRICT RULES:\n" +
		"- Use ONLY the provided context to answer.\n" +
		"- If the context does not contain the answer, say politely that you cannot find it in the saved website data.\n" +
		"- Do NOT invent details, prices, terms, contacts, or policy statements.\n" +
		"- If the question asks for something missing, suggest what page/link the user should share or add.\n\n")
	b.WriteString("LINK RULES:\n" +
		"- Only include links that appear in the context/metadata.\n" +
		"- If a link in context is relative like /privacy-policy, keep it exactly as-is (do NOT guess the domain).\n" +
		"- Always format links as markdown: [Title](url)\n\n")
	b.WriteString("OUTPUT RULES:\n" +
		"- Be concise and structured.\n" +
		"- Use steps only when the user asks 'how to' or when troubleshooting.\n")
	return b.String()
}

// FallbackNotFound returns the canned reply used when retrieval yields no
// usable grounding. One fixed literal per length category; the model is never
// called on this path.
func FallbackNotFound(length string) string {
	switch NormalizeLength(length) {
	case "Minimal":
		return "Sorry — I couldn’t find this information in your saved website data."
	case "Short":
		return "I’m sorry, I couldn’t find that information in the data I have saved for this website. " +
			"If you share a relevant page link/title (or add that page to the knowledge base), I can help right away."
	case "Long":
		return "I’m sorry — I couldn’t locate an answer to that in the website data currently saved in my knowledge base. " +
			"This usually means the page wasn’t crawled/added or the content isn’t present in the stored chunks. " +
			"If you share the page URL or section name, I can guide you on what to add so I can answer accurately."
	default: // Chatty
		return "Hmm — I couldn’t find a clear answer to that in the website data I currently have saved, so I don’t want to guess. " +
			"If you share the URL or the page name you’re referring to, I’ll help you add it and then answer properly."
	}
}
