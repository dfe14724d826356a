// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"encoding/json"
	"fmt"

	"github.com/weaviate/weaviate/entities/models"
)

// ParseGraphQLResponse parses a Weaviate GraphQL response into the target type.
//
// # Description
//
// This generic function encapsulates the marshal/unmarshal pattern required to
// convert Weaviate's dynamic response (map[string]models.JSONObject) into a
// strongly-typed Go struct. The target type T must have json tags matching
// the expected response shape.
//
// # Inputs
//
//   - resp: The GraphQL response from the Weaviate client's Do() method.
//
// # Outputs
//
//   - *T: Pointer to the parsed struct.
//   - error: Non-nil if the response is nil, carries GraphQL errors, or
//     cannot be decoded.
func ParseGraphQLResponse[T any](resp *models.GraphQLResponse) (*T, error) {
	if resp == nil {
		return nil, fmt.Errorf("nil GraphQL response")
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("GraphQL query returned errors: %s", resp.Errors[0].Message)
	}

	respBytes, err := json.Marshal(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GraphQL response data: %w", err)
	}

	var result T
	if err := json.Unmarshal(respBytes, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into target type: %w", err)
	}

	return &result, nil
}

// SiteChunkQueryResponse represents the response from querying the SiteChunk
// class with nearVector.
type SiteChunkQueryResponse struct {
	Get struct {
		SiteChunk []SiteChunkResult `json:"SiteChunk"`
	} `json:"Get"`
}

// SiteChunkResult is a single retrieved chunk. The text and URL fields cover
// every metadata key historically used by the ingestion side, so older chunks
// stay retrievable.
type SiteChunkResult struct {
	Text        string `json:"text"`
	Content     string `json:"content"`
	Chunk       string `json:"chunk"`
	PageContent string `json:"page_content"`
	Body        string `json:"body"`

	URL       string `json:"url"`
	SourceURL string `json:"source_url"`
	PageURL   string `json:"page_url"`
	Source    string `json:"source"`

	Additional struct {
		Certainty *float32 `json:"certainty"`
	} `json:"_additional"`
}

// ToMetadata flattens the chunk into the key/value map the retriever consumes,
// dropping empty fields so key-priority selection works.
func (r *SiteChunkResult) ToMetadata() map[string]string {
	meta := map[string]string{
		"text":         r.Text,
		"content":      r.Content,
		"chunk":        r.Chunk,
		"page_content": r.PageContent,
		"body":         r.Body,
		"url":          r.URL,
		"source_url":   r.SourceURL,
		"page_url":     r.PageURL,
		"source":       r.Source,
	}
	for k, v := range meta {
		if v == "" {
			delete(meta, k)
		}
	}
	return meta
}
