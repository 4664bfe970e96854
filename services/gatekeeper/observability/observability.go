// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability bundles the request-scoped accounting surfaces of
// the pipeline: token/cost tracking, the prompt cache, and Prometheus
// instruments.
//
// The Observability value is constructed once in service wiring and passed
// down explicitly. There is no package-level singleton for counters or
// cache: two services in one process get independent state, and tests get a
// fresh value per case.
package observability

import (
	"sync/atomic"
	"time"

	"github.com/AleutianAI/AleutianGate/services/gatekeeper/datatypes"
)

type Config struct {
	EnableTokenLogging bool
	EnableCache        bool
	CacheTTL           time.Duration
	CacheMaxSize       int
}

type Observability struct {
	Tracker *CostTracker
	Cache   *PromptCache
	Metrics *PipelineMetrics

	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
}

// SessionStats is the aggregate snapshot served on the stats endpoint.
type SessionStats struct {
	Requests          int64            `json:"requests"`
	RequestsByType    map[string]int64 `json:"requests_by_type"`
	InputTokens       int64            `json:"input_tokens"`
	OutputTokens      int64            `json:"output_tokens"`
	TotalCostUSD      float64          `json:"total_cost_usd"`
	AvgCostPerRequest float64          `json:"avg_cost_per_request"`
	CacheHits         int64            `json:"cache_hits"`
	CacheMisses       int64            `json:"cache_misses"`
	CacheHitRate      float64          `json:"cache_hit_rate"`
	CacheSize         int              `json:"cache_size"`
	CacheCapacity     int              `json:"cache_capacity"`
}

func New(cfg Config) *Observability {
	return &Observability{
		Tracker: NewCostTracker(cfg.EnableTokenLogging),
		Cache:   NewPromptCache(cfg.CacheTTL, cfg.CacheMaxSize, cfg.EnableCache),
		Metrics: NewPipelineMetrics(),
	}
}

// NewWithClock is New with an injectable cache clock for TTL tests.
func NewWithClock(cfg Config, clock Clock) *Observability {
	return &Observability{
		Tracker: NewCostTracker(cfg.EnableTokenLogging),
		Cache:   NewPromptCacheWithClock(cfg.CacheTTL, cfg.CacheMaxSize, cfg.EnableCache, clock),
		Metrics: NewPipelineMetrics(),
	}
}

// LookupCache checks the prompt cache and books the hit or miss on both the
// session counters and the Prometheus instruments.
func (o *Observability) LookupCache(query, fingerprint string) (*datatypes.PipelineResult, bool) {
	result, ok := o.Cache.Get(CacheKey(query, fingerprint))
	if ok {
		o.cacheHits.Add(1)
		o.Metrics.RecordCacheHit()
	} else {
		o.cacheMisses.Add(1)
		o.Metrics.RecordCacheMiss()
	}
	return result, ok
}

// StoreCache writes a terminal result into the prompt cache.
func (o *Observability) StoreCache(query, fingerprint string, result *datatypes.PipelineResult) {
	o.Cache.Set(CacheKey(query, fingerprint), result)
}

// LogEmbedding books an embedding request, estimating input tokens from the
// embedded text.
func (o *Observability) LogEmbedding(model, text string) TokenCostRecord {
	record := o.Tracker.LogRequest(RequestTypeEmbedding, model, EstimateTokens(text), 0)
	o.Metrics.RecordTokens(model, record.InputTokens, 0)
	o.Metrics.RecordCost(record.CostUSD)
	return record
}

// LogGeneration books a generation request with known token counts.
func (o *Observability) LogGeneration(model string, inputTokens, outputTokens int) TokenCostRecord {
	record := o.Tracker.LogRequest(RequestTypeGeneration, model, inputTokens, outputTokens)
	o.Metrics.RecordTokens(model, inputTokens, outputTokens)
	o.Metrics.RecordCost(record.CostUSD)
	return record
}

// Stats snapshots the session counters with the derived rates.
func (o *Observability) Stats() SessionStats {
	requests, in, out, cost, byType := o.Tracker.Totals()
	stats := SessionStats{
		Requests:       requests,
		RequestsByType: byType,
		InputTokens:    in,
		OutputTokens:   out,
		TotalCostUSD:   cost,
		CacheHits:      o.cacheHits.Load(),
		CacheMisses:    o.cacheMisses.Load(),
		CacheSize:      o.Cache.Len(),
		CacheCapacity:  o.Cache.Capacity(),
	}
	if requests > 0 {
		stats.AvgCostPerRequest = cost / float64(requests)
	}
	if lookups := stats.CacheHits + stats.CacheMisses; lookups > 0 {
		stats.CacheHitRate = float64(stats.CacheHits) / float64(lookups)
	}
	return stats
}
