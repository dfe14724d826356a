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
	"fmt"
	"log/slog"

	"github.com/AleutianAI/sitechat/datatypes"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

// ChunkClassName is the Weaviate class holding ingested website chunks.
const ChunkClassName = "SiteChunk"

// WeaviateIndex implements VectorIndex over a Weaviate instance.
//
// Chunks are partitioned by a "namespace" property (one namespace per user)
// and scored by certainty, which is always in [0,1].
type WeaviateIndex struct {
	client *weaviate.Client
}

var _ VectorIndex = (*WeaviateIndex)(nil)

// NewWeaviateIndex wraps an already-connected client.
func NewWeaviateIndex(client *weaviate.Client) *WeaviateIndex {
	return &WeaviateIndex{client: client}
}

// Query runs a nearVector search against the SiteChunk class, filtered to the
// given namespace, and returns up to topK scored matches.
func (w *WeaviateIndex) Query(ctx context.Context, vector []float32, topK int, namespace string) ([]Match, error) {
	ctx, span := tracer.Start(ctx, "WeaviateQuery")
	defer span.End()

	namespaceFilter := filters.Where().
		WithPath([]string{"namespace"}).
		WithOperator(filters.Equal).
		WithValueString(namespace)

	nearVector := w.client.GraphQL().NearVectorArgBuilder().
		WithVector(vector)

	// Certainty is requested instead of distance: it is always [0,1]
	// regardless of the index's distance metric.
	fields := []graphql.Field{
		{Name: "text"},
		{Name: "content"},
		{Name: "chunk"},
		{Name: "page_content"},
		{Name: "body"},
		{Name: "url"},
		{Name: "source_url"},
		{Name: "page_url"},
		{Name: "source"},
		{Name: "_additional", Fields: []graphql.Field{
			{Name: "certainty"},
		}},
	}

	result, err := w.client.GraphQL().Get().
		WithClassName(ChunkClassName).
		WithFields(fields...).
		WithWhere(namespaceFilter).
		WithNearVector(nearVector).
		WithLimit(topK).
		Do(ctx)
	if err != nil {
		slog.Error("Failed to query SiteChunk class", "namespace", namespace, "error", err)
		return nil, fmt.Errorf("weaviate search failed: %w", err)
	}

	parsed, err := datatypes.ParseGraphQLResponse[datatypes.SiteChunkQueryResponse](result)
	if err != nil {
		slog.Error("Failed to parse SiteChunk results", "error", err)
		return nil, fmt.Errorf("failed to parse results: %w", err)
	}

	matches := make([]Match, 0, len(parsed.Get.SiteChunk))
	for _, chunk := range parsed.Get.SiteChunk {
		var score float64
		if chunk.Additional.Certainty != nil {
			score = float64(*chunk.Additional.Certainty)
		}
		matches = append(matches, Match{
			Score:    score,
			Metadata: chunk.ToMetadata(),
		})
	}

	slog.Debug("SiteChunk query returned", "namespace", namespace, "matches", len(matches))
	return matches, nil
}

// EnsureSchema creates the SiteChunk class if it does not exist yet.
// Existing classes are left untouched.
func (w *WeaviateIndex) EnsureSchema(ctx context.Context) error {
	exists, err := w.client.Schema().ClassExistenceChecker().
		WithClassName(ChunkClassName).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to check for class %s: %w", ChunkClassName, err)
	}
	if exists {
		slog.Debug("Weaviate class already present", "class", ChunkClassName)
		return nil
	}

	class := &models.Class{
		Class:       ChunkClassName,
		Description: "Ingested website content chunks, partitioned by namespace",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{Name: "namespace", DataType: []string{"text"}},
			{Name: "text", DataType: []string{"text"}},
			{Name: "content", DataType: []string{"text"}},
			{Name: "chunk", DataType: []string{"text"}},
			{Name: "page_content", DataType: []string{"text"}},
			{Name: "body", DataType: []string{"text"}},
			{Name: "url", DataType: []string{"text"}},
			{Name: "source_url", DataType: []string{"text"}},
			{Name: "page_url", DataType: []string{"text"}},
			{Name: "source", DataType: []string{"text"}},
		},
	}

	if err := w.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return fmt.Errorf("failed to create class %s: %w", ChunkClassName, err)
	}
	slog.Info("Created Weaviate class", "class", ChunkClassName)
	return nil
}
