// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package routes wires the gin router for the sitechat API.
package routes

import (
	"github.com/AleutianAI/sitechat/conversation"
	"github.com/AleutianAI/sitechat/handlers"
	"github.com/AleutianAI/sitechat/middleware"
	"github.com/AleutianAI/sitechat/services"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes registers all API routes on the router.
//
// /health and /metrics are unauthenticated; the /v1 group is guarded by the
// API-key middleware (a no-op when no key is configured).
func SetupRoutes(router *gin.Engine, engine *services.AnswerEngine, store conversation.Store, apiKey string) {
	router.GET("/health", handlers.HandleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	v1.Use(middleware.APIKeyAuth(apiKey))
	{
		v1.POST("/chat", handlers.HandleChat(engine))
		v1.GET("/usage", handlers.HandleUsage(store))
	}
}
