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

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianGate/services/gatekeeper/datatypes"
	"github.com/AleutianAI/AleutianGate/services/gatekeeper/pipeline"
)

// HandleChatStream runs one request through the pipeline with SSE output.
//
// # Description
//
//	Event order on success: status, token*, sources, result, done. Refusals
//	arrive as a single token event followed by result and done; the HTTP
//	status is always 200 once streaming has begun. A client disconnect is
//	detected through the request context and surfaced to the pipeline via
//	the fragment sink, which stops generation at the next fragment.
//
// # Limitations
//
//   - Requires an http.Flusher-capable ResponseWriter.
func HandleChatStream(pipe *pipeline.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
			return
		}
		if req.SessionID == "" {
			req.SessionID = uuid.New().String()
		}

		SetSSEHeaders(c.Writer)
		writer, err := NewSSEWriter(c.Writer)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
			return
		}

		if err := writer.WriteStatus("Processing your question..."); err != nil {
			slog.Warn("client gone before first event", "session_id", req.SessionID)
			return
		}

		ctx := c.Request.Context()
		sink := func(fragment string) error {
			// The request context closes when the client disconnects;
			// checking it here stops generation at the next fragment.
			if err := ctx.Err(); err != nil {
				return err
			}
			return writer.WriteToken(fragment)
		}

		result, err := pipe.Execute(ctx, &req, sink)
		if err != nil {
			slog.Error("streaming chat failed", "session_id", req.SessionID, "error", err)
			_ = writer.WriteError("failed to process chat request")
			_ = writer.WriteDone(req.SessionID)
			return
		}

		if len(result.Sources) > 0 {
			_ = writer.WriteSources(result.Sources)
		}
		_ = writer.WriteResult(result)
		_ = writer.WriteDone(req.SessionID)
	}
}
