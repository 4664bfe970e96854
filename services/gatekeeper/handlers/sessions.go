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
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianGate/services/gatekeeper/conversation"
	"github.com/AleutianAI/AleutianGate/services/gatekeeper/datatypes"
)

// GetSessionHistory returns the persisted turns for a session, oldest
// first. The optional limit query parameter keeps only the newest N turns.
// An unknown session returns an empty turn list, not 404: the session may
// simply not have spoken yet.
func GetSessionHistory(store conversation.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("sessionId")

		limit := 0
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
				return
			}
			limit = parsed
		}

		turns, err := store.History(c.Request.Context(), sessionID, limit)
		if err != nil {
			slog.Error("failed to load session history", "session_id", sessionID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session history"})
			return
		}
		if turns == nil {
			turns = []datatypes.Turn{}
		}

		c.JSON(http.StatusOK, datatypes.HistoryResponse{
			SessionID: sessionID,
			Turns:     turns,
		})
	}
}
