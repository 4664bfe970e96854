// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers holds the gatekeeper's HTTP surface: buffered and
// streaming chat, document ingestion, session history, and operator
// endpoints. Handlers are thin; all question-answering semantics live in
// the pipeline package.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianGate/services/gatekeeper/datatypes"
	"github.com/AleutianAI/AleutianGate/services/gatekeeper/pipeline"
)

// HandleChat runs one request through the pipeline and returns the complete
// result as JSON. Refusals are successful HTTP responses: the caller gets
// the refusal text and the terminal state, not an error status.
func HandleChat(pipe *pipeline.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
			return
		}
		if req.SessionID == "" {
			req.SessionID = uuid.New().String()
		}

		result, err := pipe.Execute(c.Request.Context(), &req, nil)
		if err != nil {
			slog.Error("chat request failed", "session_id", req.SessionID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process chat request"})
			return
		}

		c.JSON(http.StatusOK, datatypes.ChatResponse{
			SessionID: req.SessionID,
			Result:    result,
		})
	}
}
