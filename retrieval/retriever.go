// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package retrieval embeds questions, queries the vector index, and assembles
// the grounding context block handed to the chat model.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/AleutianAI/sitechat/llm"
	"github.com/AleutianAI/sitechat/prompt"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("aleutian.sitechat.retrieval")

// DefaultScoreThreshold is the minimum similarity score a match must reach to
// contribute to the context. Matches below it are discarded, never padded back.
const DefaultScoreThreshold = 0.25

// chunkSeparator joins context fragments; truncationMarker is appended
// whenever the assembled context exceeds the per-length character cap.
const (
	chunkSeparator   = "\n\n---\n\n"
	truncationMarker = "\n\n[Context truncated to save tokens.]"
)

// textMetaKeys and urlMetaKeys are checked in priority order when extracting
// chunk text and link candidates from match metadata.
var (
	textMetaKeys = []string{"text", "content", "chunk", "page_content", "body"}
	urlMetaKeys  = []string{"url", "source_url", "page_url", "source"}
)

// Match is one vector-index hit: a similarity score in [0,1] and the stored
// metadata for the chunk.
type Match struct {
	Score    float64
	Metadata map[string]string
}

// VectorIndex answers top-k similarity queries scoped to a namespace.
type VectorIndex interface {
	Query(ctx context.Context, vector []float32, topK int, namespace string) ([]Match, error)
}

// Result is the assembled retrieval outcome for one question.
type Result struct {
	// Context is the joined (and possibly truncated) grounding text. Empty
	// means nothing usable was retrieved and the caller must fall back.
	Context string

	// Sources lists the surviving matches as "src (score=0.873)" strings,
	// in index order.
	Sources []string

	// BaseURL is the scheme://host of the first absolute http(s) URL seen in
	// the surviving matches' metadata, or "" if none.
	BaseURL string

	// EmbeddingTokens is the token cost of embedding the question. It is
	// reported even when retrieval returns nothing usable.
	EmbeddingTokens int

	// RetrievedCount is the number of matches that survived the score
	// threshold; MissingTextCount counts survivors with no usable text key.
	RetrievedCount   int
	MissingTextCount int
}

// Retriever embeds a question and assembles grounding context from the index.
//
// # Thread Safety
//
// Retriever is safe for concurrent use; it holds no per-request state.
type Retriever struct {
	embedder  llm.EmbeddingProvider
	index     VectorIndex
	threshold float64
}

// NewRetriever builds a Retriever. A non-positive threshold falls back to
// DefaultScoreThreshold.
func NewRetriever(embedder llm.EmbeddingProvider, index VectorIndex, threshold float64) *Retriever {
	if threshold <= 0 {
		threshold = DefaultScoreThreshold
	}
	return &Retriever{embedder: embedder, index: index, threshold: threshold}
}

// Retrieve embeds the question, queries the index at the length-derived topK,
// and assembles the context block.
//
// Matches below the score threshold are discarded. Survivors with no usable
// text key are counted but contribute nothing. The joined context is hard
// truncated at the length-derived character cap with a visible marker.
func (r *Retriever) Retrieve(ctx context.Context, namespace, question, length string) (Result, error) {
	ctx, span := tracer.Start(ctx, "Retrieve")
	defer span.End()

	spec := prompt.LengthFor(length)

	emb, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return Result{}, fmt.Errorf("embedding question failed: %w", err)
	}

	res := Result{EmbeddingTokens: emb.Tokens}

	matches, err := r.index.Query(ctx, emb.Vector, spec.TopK, namespace)
	if err != nil {
		return res, fmt.Errorf("vector query failed: %w", err)
	}

	var fragments []string
	for _, m := range matches {
		if m.Score < r.threshold {
			continue
		}
		res.RetrievedCount++

		// Matches with no usable text are counted and then skipped
		// entirely: they must not surface as a cited source or supply
		// link provenance for content the model never saw.
		text := firstMetaValue(m.Metadata, textMetaKeys)
		if text == "" {
			res.MissingTextCount++
			continue
		}
		fragments = append(fragments, text)

		res.Sources = append(res.Sources, fmt.Sprintf("%s (score=%.3f)", sourceLabel(m.Metadata), m.Score))

		if res.BaseURL == "" {
			if u := firstMetaValue(m.Metadata, urlMetaKeys); u != "" {
				res.BaseURL = guessBaseURL(u)
			}
		}
	}

	res.Context = joinAndTruncate(fragments, spec.ContextChars)

	slog.Debug("Retrieval assembled",
		"namespace", namespace,
		"topK", spec.TopK,
		"retrieved", res.RetrievedCount,
		"missingText", res.MissingTextCount,
		"contextChars", len(res.Context))
	return res, nil
}

// firstMetaValue returns the first non-empty value among keys, in order.
func firstMetaValue(meta map[string]string, keys []string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(meta[k]); v != "" {
			return v
		}
	}
	return ""
}

// sourceLabel picks the display name for a match: source, then url, then
// source_url, then "unknown".
func sourceLabel(meta map[string]string) string {
	for _, k := range []string{"source", "url", "source_url"} {
		if v := strings.TrimSpace(meta[k]); v != "" {
			return v
		}
	}
	return "unknown"
}

// guessBaseURL extracts scheme://host from an absolute http(s) URL.
// Relative links and other schemes yield "".
func guessBaseURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// joinAndTruncate joins fragments with the chunk separator and hard-caps the
// result at maxChars, appending the truncation marker when cut.
func joinAndTruncate(fragments []string, maxChars int) string {
	joined := strings.Join(fragments, chunkSeparator)
	if maxChars > 0 && len(joined) > maxChars {
		joined = joined[:maxChars] + truncationMarker
	}
	return joined
}
