// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

// PipelineResult is the terminal output of one pipeline run. State is the
// terminal state name; Cached marks a replay of a previously stored result.
type PipelineResult struct {
	Answer           string              `json:"answer"`
	Sentences        []AnnotatedSentence `json:"sentences,omitempty"`
	HasHallucination bool                `json:"has_hallucination"`
	GroundingScore   float64             `json:"grounding_score"`
	Attribution      *AttributionStats   `json:"attribution,omitempty"`
	Guardrails       GuardrailFlags      `json:"guardrails"`
	Sources          []Citation          `json:"sources,omitempty"`
	State            string              `json:"state"`
	FinishReason     string              `json:"finish_reason"`
	Cached           bool                `json:"cached"`
	InputTokens      int                 `json:"input_tokens"`
	OutputTokens     int                 `json:"output_tokens"`
	CostUSD          float64             `json:"cost_usd"`
	Model            string              `json:"model,omitempty"`
	DurationMS       int64               `json:"duration_ms"`
}
