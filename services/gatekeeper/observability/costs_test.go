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
	"math"
	"strings"
	"testing"
)

// TestEstimateTokens verifies the len/4 proxy and its monotonicity.
func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens(""); got != 0 {
		t.Errorf("empty = %d, want 0", got)
	}
	if got := EstimateTokens("abcd"); got != 1 {
		t.Errorf("4 bytes = %d, want 1", got)
	}
	if got := EstimateTokens("abcdefg"); got != 1 {
		t.Errorf("7 bytes = %d, want 1 (floor)", got)
	}
	prev := 0
	for i := 1; i <= 64; i++ {
		cur := EstimateTokens(strings.Repeat("x", i))
		if cur < prev {
			t.Fatalf("estimate not monotone at length %d: %d < %d", i, cur, prev)
		}
		prev = cur
	}
}

// TestCalculateCost verifies table pricing and the unknown-model fallback.
func TestCalculateCost(t *testing.T) {
	// 1M input + 1M output at gpt-4o-mini rates.
	if got := CalculateCost("gpt-4o-mini", 1_000_000, 1_000_000); math.Abs(got-0.750) > 1e-9 {
		t.Errorf("gpt-4o-mini = %v, want 0.750", got)
	}
	if got := CalculateCost("gpt-4", 1_000_000, 0); math.Abs(got-30.0) > 1e-9 {
		t.Errorf("gpt-4 input only = %v, want 30.0", got)
	}
	// Embedding models price output at zero.
	if got := CalculateCost("text-embedding-3-small", 2_000_000, 5); math.Abs(got-0.040) > 1e-9 {
		t.Errorf("embedding = %v, want 0.040", got)
	}
	// Unknown model falls back to gpt-4o-mini rates.
	unknown := CalculateCost("some-future-model", 1_000_000, 1_000_000)
	known := CalculateCost("gpt-4o-mini", 1_000_000, 1_000_000)
	if unknown != known {
		t.Errorf("fallback = %v, want %v", unknown, known)
	}
}

// TestCostTracker_LogRequest verifies accumulation across requests.
func TestCostTracker_LogRequest(t *testing.T) {
	tr := NewCostTracker(true)
	r1 := tr.LogRequest(RequestTypeGeneration, "gpt-4o-mini", 1000, 500)
	if r1.Model != "gpt-4o-mini" || r1.InputTokens != 1000 || r1.OutputTokens != 500 {
		t.Errorf("record = %+v", r1)
	}
	if r1.CostUSD <= 0 {
		t.Errorf("cost = %v, want > 0", r1.CostUSD)
	}
	tr.LogRequest(RequestTypeEmbedding, "text-embedding-3-small", 200, 0)

	requests, in, out, cost, byType := tr.Totals()
	if requests != 2 || in != 1200 || out != 500 {
		t.Errorf("totals = %d req, %d in, %d out", requests, in, out)
	}
	if cost <= 0 {
		t.Errorf("total cost = %v", cost)
	}
	if byType[RequestTypeGeneration] != 1 || byType[RequestTypeEmbedding] != 1 {
		t.Errorf("byType = %v", byType)
	}
}

// TestCostTracker_Disabled verifies the disabled tracker is a no-op that
// returns a zero record.
func TestCostTracker_Disabled(t *testing.T) {
	tr := NewCostTracker(false)
	record := tr.LogRequest(RequestTypeGeneration, "gpt-4o", 1000, 1000)
	if record != (TokenCostRecord{}) {
		t.Errorf("disabled tracker returned %+v, want zero record", record)
	}
	requests, in, out, cost, _ := tr.Totals()
	if requests != 0 || in != 0 || out != 0 || cost != 0 {
		t.Error("disabled tracker accumulated state")
	}
}
