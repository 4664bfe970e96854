// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/AleutianGate/services/gatekeeper/chunker"
	"github.com/AleutianAI/AleutianGate/services/gatekeeper/conversation"
	"github.com/AleutianAI/AleutianGate/services/gatekeeper/handlers"
	"github.com/AleutianAI/AleutianGate/services/gatekeeper/middleware"
	"github.com/AleutianAI/AleutianGate/services/gatekeeper/observability"
	"github.com/AleutianAI/AleutianGate/services/gatekeeper/pipeline"
	"github.com/AleutianAI/AleutianGate/services/gatekeeper/retrieval"
)

// Deps carries everything the route table needs. Ingestor may be nil when
// the retrieval backend is populated out of band.
type Deps struct {
	Pipeline      *pipeline.Pipeline
	Chunker       *chunker.Chunker
	Ingestor      retrieval.Ingestor
	Store         conversation.Store
	Observability *observability.Observability
	RateLimit     middleware.RateLimiterConfig
}

// SetupRoutes registers the gatekeeper's HTTP surface. Chat routes sit
// behind the rate limiter; read-only and operator routes do not.
func SetupRoutes(router *gin.Engine, deps Deps) {
	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		chat := v1.Group("/chat")
		chat.Use(middleware.RateLimit(deps.RateLimit))
		{
			chat.POST("", handlers.HandleChat(deps.Pipeline))
			chat.POST("/stream", handlers.HandleChatStream(deps.Pipeline))
		}

		v1.POST("/documents", handlers.CreateDocument(deps.Chunker, deps.Ingestor))
		v1.GET("/sessions/:sessionId/history", handlers.GetSessionHistory(deps.Store))
		v1.GET("/stats", handlers.GetStats(deps.Observability))
		v1.POST("/cache/clear", handlers.ClearCache(deps.Observability))
	}
}
