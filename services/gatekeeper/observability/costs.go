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
	"log/slog"
	"sync"
	"time"
)

// Request types accepted by the cost tracker.
const (
	RequestTypeEmbedding  = "embedding"
	RequestTypeGeneration = "generation"
)

const fallbackPricingModel = "gpt-4o-mini"

type modelPricing struct {
	inputPerMillion  float64
	outputPerMillion float64
}

// USD per 1M tokens. Static by design: pricing drift shows up as a cost
// estimate error, never as a runtime dependency on a billing API.
var pricingTable = map[string]modelPricing{
	"gpt-4o-mini":            {inputPerMillion: 0.150, outputPerMillion: 0.600},
	"gpt-4o":                 {inputPerMillion: 2.50, outputPerMillion: 10.00},
	"gpt-4":                  {inputPerMillion: 30.00, outputPerMillion: 60.00},
	"text-embedding-3-small": {inputPerMillion: 0.020, outputPerMillion: 0},
	"text-embedding-3-large": {inputPerMillion: 0.130, outputPerMillion: 0},
	"text-embedding-ada-002": {inputPerMillion: 0.100, outputPerMillion: 0},
}

// EstimateTokens approximates token count as len(text)/4 bytes. Deliberately
// a proxy, not a tokenizer: deterministic, dependency-free, and monotone in
// input length, which is all the cost accounting needs.
func EstimateTokens(text string) int {
	return len(text) / 4
}

// CalculateCost prices a request in USD from the static table. Unknown
// models are priced at the gpt-4o-mini rate with a warning rather than
// failing the request.
func CalculateCost(model string, inputTokens, outputTokens int) float64 {
	p, ok := pricingTable[model]
	if !ok {
		slog.Warn("unknown model in pricing table, using fallback rates",
			"model", model, "fallback", fallbackPricingModel)
		p = pricingTable[fallbackPricingModel]
	}
	return float64(inputTokens)/1_000_000*p.inputPerMillion +
		float64(outputTokens)/1_000_000*p.outputPerMillion
}

// TokenCostRecord is one priced request, suitable for structured logging.
type TokenCostRecord struct {
	Timestamp    time.Time `json:"timestamp"`
	RequestType  string    `json:"request_type"`
	Model        string    `json:"model"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	CostUSD      float64   `json:"cost_usd"`
}

// CostTracker accumulates per-session token and cost totals. All methods
// are safe for concurrent use. When disabled every call is a no-op that
// returns a zero record.
type CostTracker struct {
	mu           sync.Mutex
	enabled      bool
	requests     int64
	inputTokens  int64
	outputTokens int64
	totalCost    float64
	byType       map[string]int64
}

func NewCostTracker(enabled bool) *CostTracker {
	return &CostTracker{enabled: enabled, byType: make(map[string]int64)}
}

// LogRequest prices the request, folds it into the cumulative counters, and
// returns the record.
func (t *CostTracker) LogRequest(requestType, model string, inputTokens, outputTokens int) TokenCostRecord {
	if !t.enabled {
		return TokenCostRecord{}
	}
	record := TokenCostRecord{
		Timestamp:    time.Now(),
		RequestType:  requestType,
		Model:        model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		CostUSD:      CalculateCost(model, inputTokens, outputTokens),
	}

	t.mu.Lock()
	t.requests++
	t.inputTokens += int64(inputTokens)
	t.outputTokens += int64(outputTokens)
	t.totalCost += record.CostUSD
	t.byType[requestType]++
	t.mu.Unlock()

	slog.Debug("logged model request",
		"request_type", requestType,
		"model", model,
		"input_tokens", inputTokens,
		"output_tokens", outputTokens,
		"cost_usd", record.CostUSD)
	return record
}

// Totals returns a snapshot of the cumulative counters.
func (t *CostTracker) Totals() (requests, inputTokens, outputTokens int64, totalCost float64, byType map[string]int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	byType = make(map[string]int64, len(t.byType))
	for k, v := range t.byType {
		byType[k] = v
	}
	return t.requests, t.inputTokens, t.outputTokens, t.totalCost, byType
}
