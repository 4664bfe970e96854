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

	"github.com/AleutianAI/AleutianGate/services/gatekeeper/observability"
)

// HealthCheck reports liveness. Kept dependency-free so it answers even
// when backends are degraded.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetStats returns the session-lifetime cost and cache counters.
func GetStats(obs *observability.Observability) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, obs.Stats())
	}
}

// ClearCache drops every prompt cache entry. Operator endpoint, used after
// re-indexing a corpus whose fingerprint did not change.
func ClearCache(obs *observability.Observability) gin.HandlerFunc {
	return func(c *gin.Context) {
		removed := obs.Cache.Len()
		obs.Cache.Clear()
		slog.Info("prompt cache cleared", "entries_removed", removed)
		c.JSON(http.StatusOK, gin.H{"status": "cleared", "entries_removed": removed})
	}
}
