// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers contains the gin HTTP handlers for the sitechat API.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/AleutianAI/sitechat/datatypes"
	"github.com/AleutianAI/sitechat/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("aleutian.sitechat.handlers")

// HandleChat returns the POST /v1/chat handler.
//
// The handler binds and validates the request, assigns a request ID, invokes
// the answer engine, and maps the engine's typed errors to status codes:
// validation and incomplete settings to 400, upstream timeouts to 503, other
// upstream failures to 502, everything else to 500.
func HandleChat(engine *services.AnswerEngine) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "HandleChat")
		defer span.End()

		var req datatypes.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			slog.Warn("Malformed chat request body", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
			return
		}

		req.RequestID = uuid.New().String()
		span.SetAttributes(attribute.String("request.id", req.RequestID))

		if err := req.Validate(); err != nil {
			slog.Warn("Chat request failed validation",
				"requestId", req.RequestID, "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "detail": err.Error()})
			return
		}

		slog.Info("Processing chat request",
			"requestId", req.RequestID,
			"userId", req.UserID,
			"leadId", req.LeadID,
			"mode", string(req.Mode()))

		resp, err := engine.Process(ctx, &req)
		if err != nil {
			writeEngineError(c, req.RequestID, err)
			return
		}

		c.JSON(http.StatusOK, resp)
	}
}

// writeEngineError maps the services error taxonomy to HTTP responses.
func writeEngineError(c *gin.Context, requestID string, err error) {
	switch {
	case services.IsValidation(err), services.IsIncompleteSettings(err):
		slog.Warn("Rejected chat request", "requestId", requestID, "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case services.IsStore(err):
		slog.Error("Persistence failure handling chat request", "requestId", requestID, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable"})
	default:
		if ue, ok := services.IsUpstream(err); ok {
			status := http.StatusBadGateway
			if ue.Timeout {
				status = http.StatusServiceUnavailable
			}
			slog.Error("Upstream failure handling chat request",
				"requestId", requestID, "op", ue.Op, "timeout", ue.Timeout, "error", err)
			c.JSON(status, gin.H{"error": "upstream dependency failed"})
			return
		}
		slog.Error("Internal failure handling chat request", "requestId", requestID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
