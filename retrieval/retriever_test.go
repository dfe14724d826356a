// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package retrieval

import (
	"context"
	"strings"
	"testing"

	"github.com/AleutianAI/sitechat/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbedder returns a fixed vector and token count.
type fakeEmbedder struct {
	tokens int
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) (llm.Embedding, error) {
	return llm.Embedding{Vector: []float32{0.1, 0.2, 0.3}, Tokens: f.tokens}, nil
}

// fakeIndex returns canned matches and records the query it received.
type fakeIndex struct {
	matches   []Match
	gotTopK   int
	gotSpace  string
	queryErr  error
	wasCalled bool
}

func (f *fakeIndex) Query(_ context.Context, _ []float32, topK int, namespace string) ([]Match, error) {
	f.wasCalled = true
	f.gotTopK = topK
	f.gotSpace = namespace
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.matches, nil
}

func TestRetrieve_ThresholdFilter(t *testing.T) {
	index := &fakeIndex{matches: []Match{
		{Score: 0.9, Metadata: map[string]string{"text": "above", "source": "a"}},
		{Score: 0.25, Metadata: map[string]string{"text": "at threshold", "source": "b"}},
		{Score: 0.249, Metadata: map[string]string{"text": "below", "source": "c"}},
	}}
	r := NewRetriever(&fakeEmbedder{tokens: 7}, index, 0.25)

	res, err := r.Retrieve(context.Background(), "user-1", "what is pricing", "Short")
	require.NoError(t, err)

	assert.Equal(t, 2, res.RetrievedCount)
	assert.Contains(t, res.Context, "above")
	assert.Contains(t, res.Context, "at threshold")
	assert.NotContains(t, res.Context, "below")
	assert.Equal(t, 7, res.EmbeddingTokens)

	// Short length queries at topK 5 against the caller's namespace.
	assert.Equal(t, 5, index.gotTopK)
	assert.Equal(t, "user-1", index.gotSpace)
}

func TestRetrieve_SourceFormatting(t *testing.T) {
	index := &fakeIndex{matches: []Match{
		{Score: 0.873, Metadata: map[string]string{"text": "t", "source": "pricing.html"}},
		{Score: 0.5, Metadata: map[string]string{"text": "t2", "url": "https://acme.io/faq"}},
		{Score: 0.5, Metadata: map[string]string{"text": "t3"}},
	}}
	r := NewRetriever(&fakeEmbedder{}, index, 0.25)

	res, err := r.Retrieve(context.Background(), "u", "q", "Short")
	require.NoError(t, err)
	require.Len(t, res.Sources, 3)
	assert.Equal(t, "pricing.html (score=0.873)", res.Sources[0])
	assert.Equal(t, "https://acme.io/faq (score=0.500)", res.Sources[1])
	assert.Equal(t, "unknown (score=0.500)", res.Sources[2])
}

func TestRetrieve_MissingTextCounted(t *testing.T) {
	index := &fakeIndex{matches: []Match{
		{Score: 0.8, Metadata: map[string]string{"text": "has text"}},
		{Score: 0.7, Metadata: map[string]string{"source": "meta-only.html"}},
	}}
	r := NewRetriever(&fakeEmbedder{}, index, 0.25)

	res, err := r.Retrieve(context.Background(), "u", "q", "Short")
	require.NoError(t, err)
	assert.Equal(t, 2, res.RetrievedCount)
	assert.Equal(t, 1, res.MissingTextCount)
	assert.Equal(t, "has text", res.Context)
}

func TestRetrieve_TextlessMatchContributesNothing(t *testing.T) {
	// A match with a source and URL but no text must be counted and then
	// skipped: no cited source, no base-URL provenance from content the
	// model never saw.
	index := &fakeIndex{matches: []Match{
		{Score: 0.9, Metadata: map[string]string{
			"source": "ghost.html",
			"url":    "https://ghost.example.com/page",
		}},
		{Score: 0.8, Metadata: map[string]string{
			"text":   "real content",
			"source": "real.html",
			"url":    "https://real.example.com/page",
		}},
	}}
	r := NewRetriever(&fakeEmbedder{}, index, 0.25)

	res, err := r.Retrieve(context.Background(), "u", "q", "Short")
	require.NoError(t, err)
	assert.Equal(t, 2, res.RetrievedCount)
	assert.Equal(t, 1, res.MissingTextCount)
	assert.Equal(t, []string{"real.html (score=0.800)"}, res.Sources)
	assert.Equal(t, "https://real.example.com", res.BaseURL)
	assert.Equal(t, "real content", res.Context)
}

func TestRetrieve_TextKeyPriority(t *testing.T) {
	index := &fakeIndex{matches: []Match{
		{Score: 0.8, Metadata: map[string]string{
			"body": "lowest priority",
			"text": "highest priority",
		}},
		{Score: 0.7, Metadata: map[string]string{
			"page_content": "mid priority",
			"body":         "lower",
		}},
	}}
	r := NewRetriever(&fakeEmbedder{}, index, 0.25)

	res, err := r.Retrieve(context.Background(), "u", "q", "Short")
	require.NoError(t, err)
	assert.Equal(t, "highest priority\n\n---\n\nmid priority", res.Context)
}

func TestRetrieve_BaseURL(t *testing.T) {
	index := &fakeIndex{matches: []Match{
		{Score: 0.8, Metadata: map[string]string{"text": "a", "url": "/relative/path"}},
		{Score: 0.7, Metadata: map[string]string{"text": "b", "source_url": "https://acme.io/pricing?x=1"}},
	}}
	r := NewRetriever(&fakeEmbedder{}, index, 0.25)

	res, err := r.Retrieve(context.Background(), "u", "q", "Short")
	require.NoError(t, err)
	// First match has only a relative link; its url key wins the priority
	// order but yields no base, so BaseURL stays empty for that match and
	// the second match supplies it.
	assert.Equal(t, "", res.BaseURL)
}

func TestRetrieve_BaseURLFromFirstAbsolute(t *testing.T) {
	index := &fakeIndex{matches: []Match{
		{Score: 0.8, Metadata: map[string]string{"text": "a", "url": "https://acme.io/pricing?x=1"}},
		{Score: 0.7, Metadata: map[string]string{"text": "b", "url": "https://other.example/page"}},
	}}
	r := NewRetriever(&fakeEmbedder{}, index, 0.25)

	res, err := r.Retrieve(context.Background(), "u", "q", "Short")
	require.NoError(t, err)
	assert.Equal(t, "https://acme.io", res.BaseURL)
}

func TestRetrieve_Truncation(t *testing.T) {
	// Minimal length caps context at 2500 chars.
	big := strings.Repeat("x", 3000)
	index := &fakeIndex{matches: []Match{
		{Score: 0.9, Metadata: map[string]string{"text": big}},
	}}
	r := NewRetriever(&fakeEmbedder{}, index, 0.25)

	res, err := r.Retrieve(context.Background(), "u", "q", "Minimal")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(res.Context, "[Context truncated to save tokens.]"))
	assert.Equal(t, 2500+len("\n\n[Context truncated to save tokens.]"), len(res.Context))
}

func TestRetrieve_EmptyWhenNothingSurvives(t *testing.T) {
	index := &fakeIndex{matches: []Match{
		{Score: 0.1, Metadata: map[string]string{"text": "too weak"}},
	}}
	r := NewRetriever(&fakeEmbedder{tokens: 3}, index, 0.25)

	res, err := r.Retrieve(context.Background(), "u", "q", "Short")
	require.NoError(t, err)
	assert.Empty(t, res.Context)
	assert.Zero(t, res.RetrievedCount)
	// Embedding spend is reported even when retrieval comes back empty.
	assert.Equal(t, 3, res.EmbeddingTokens)
}

func TestNewRetriever_DefaultThreshold(t *testing.T) {
	index := &fakeIndex{matches: []Match{
		{Score: 0.24, Metadata: map[string]string{"text": "just below default"}},
	}}
	r := NewRetriever(&fakeEmbedder{}, index, 0)

	res, err := r.Retrieve(context.Background(), "u", "q", "Short")
	require.NoError(t, err)
	assert.Zero(t, res.RetrievedCount)
}
