// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package observability

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianGate/services/gatekeeper/datatypes"
)

const (
	DefaultCacheTTL     = time.Hour
	DefaultCacheMaxSize = 1000
)

// Clock abstracts time for TTL tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// CacheKey derives the cache key from the normalized query and the corpus
// fingerprint. Folding the fingerprint in means any corpus change silently
// invalidates every prior entry without an explicit flush.
func CacheKey(query, fingerprint string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(query)) + ":" + fingerprint))
	return hex.EncodeToString(sum[:])
}

type cacheEntry struct {
	result   datatypes.PipelineResult
	storedAt time.Time
}

// PromptCache is a TTL- and capacity-bounded result cache. Expiry is lazy
// (checked on Get); when full, Set evicts exactly one entry, the oldest by
// insert time. A single mutex guards the whole structure; entries are
// stored and returned by value so callers cannot mutate cached state.
type PromptCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration
	maxSize int
	enabled bool
	clock   Clock
}

func NewPromptCache(ttl time.Duration, maxSize int, enabled bool) *PromptCache {
	return NewPromptCacheWithClock(ttl, maxSize, enabled, systemClock{})
}

func NewPromptCacheWithClock(ttl time.Duration, maxSize int, enabled bool, clock Clock) *PromptCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if maxSize <= 0 {
		maxSize = DefaultCacheMaxSize
	}
	if clock == nil {
		clock = systemClock{}
	}
	return &PromptCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		maxSize: maxSize,
		enabled: enabled,
		clock:   clock,
	}
}

// Get returns a copy of the cached result for key. Entries past their TTL
// are removed on access and reported as a miss.
func (c *PromptCache) Get(key string) (*datatypes.PipelineResult, bool) {
	if !c.enabled {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.clock.Now().Sub(entry.storedAt) >= c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	result := entry.result
	return &result, true
}

// Set stores a copy of result under key. At capacity it first evicts the
// single oldest entry. Overwriting an existing key refreshes its insert
// time and never evicts.
func (c *PromptCache) Set(key string, result *datatypes.PipelineResult) {
	if !c.enabled || result == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictOldestLocked()
	}
	c.entries[key] = cacheEntry{result: *result, storedAt: c.clock.Now()}
}

func (c *PromptCache) evictOldestLocked() {
	var oldestKey string
	var oldestAt time.Time
	first := true
	for k, e := range c.entries {
		if first || e.storedAt.Before(oldestAt) {
			oldestKey, oldestAt = k, e.storedAt
			first = false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
	}
}

// Clear drops every entry.
func (c *PromptCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// Len reports the current entry count.
func (c *PromptCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Capacity reports the configured maximum entry count.
func (c *PromptCache) Capacity() int { return c.maxSize }

// Enabled reports whether the cache is active.
func (c *PromptCache) Enabled() bool { return c.enabled }
