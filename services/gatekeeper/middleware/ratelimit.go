// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides HTTP middleware for the gatekeeper service.
//
// # Rate Limiting
//
// Generation endpoints cost real money per request, so the chat routes sit
// behind a per-client token bucket. Each client IP gets its own limiter;
// clients over the limit receive 429 with a Retry-After hint. Read-only
// endpoints (history, stats, health) are not limited.
package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiterConfig tunes the per-client token bucket.
type RateLimiterConfig struct {
	// RequestsPerSecond is the sustained refill rate per client.
	RequestsPerSecond float64
	// Burst is the bucket depth per client.
	Burst int
}

// clientLimiters holds one token bucket per client IP. Entries are never
// evicted; the map is bounded by the number of distinct clients, which for
// a single-tenant deployment stays small.
type clientLimiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

func (cl *clientLimiters) get(clientIP string) *rate.Limiter {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	limiter, ok := cl.limiters[clientIP]
	if !ok {
		limiter = rate.NewLimiter(cl.rps, cl.burst)
		cl.limiters[clientIP] = limiter
	}
	return limiter
}

// RateLimit returns gin middleware enforcing a per-client-IP token bucket.
// Zero or negative config values fall back to 2 req/s with a burst of 5.
func RateLimit(cfg RateLimiterConfig) gin.HandlerFunc {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 2
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	cl := &clientLimiters{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(cfg.RequestsPerSecond),
		burst:    cfg.Burst,
	}

	return func(c *gin.Context) {
		if !cl.get(c.ClientIP()).Allow() {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				gin.H{"error": "rate limit exceeded, slow down"})
			return
		}
		c.Next()
	}
}
