// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/AleutianAI/sitechat/conversation"
	"github.com/AleutianAI/sitechat/datatypes"
	"github.com/gin-gonic/gin"
)

// HandleUsage returns the GET /v1/usage handler.
//
// Query parameters userId and leadId address the conversation (sessionId is
// optional). Returns the cumulative usage snapshot, or zeros for an unknown
// conversation.
func HandleUsage(store conversation.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := datatypes.ConversationKey{
			UserID:    c.Query("userId"),
			LeadID:    c.Query("leadId"),
			SessionID: c.Query("sessionId"),
		}
		if key.UserID == "" || key.LeadID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "userId and leadId are required"})
			return
		}

		rec, err := store.Load(c.Request.Context(), key)
		if err != nil {
			slog.Error("Failed to load conversation for usage", "conversation", key.String(), "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		var usage datatypes.Usage
		messageCount := 0
		if rec != nil {
			usage = rec.Usage
			messageCount = len(rec.Messages)
		}
		c.JSON(http.StatusOK, gin.H{
			"usage":        usage,
			"messageCount": messageCount,
		})
	}
}
