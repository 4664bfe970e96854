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

type QueryGuardrailResult struct {
	OriginalQuery     string   `json:"original_query"`
	ProcessedQuery    string   `json:"processed_query"`
	InjectionDetected bool     `json:"injection_detected"`
	InjectionReason   string   `json:"injection_reason,omitempty"`
	PIIRedacted       bool     `json:"pii_redacted"`
	RedactedItems     []string `json:"redacted_items,omitempty"`
	Warnings          []string `json:"warnings,omitempty"`
}

type ResponseGuardrailResult struct {
	OriginalResponse  string   `json:"original_response"`
	ProcessedResponse string   `json:"processed_response"`
	PIIRedacted       bool     `json:"pii_redacted"`
	RedactedItems     []string `json:"redacted_items,omitempty"`
}

// GuardrailFlags is the per-request summary surfaced in pipeline results.
type GuardrailFlags struct {
	InjectionDetected   bool `json:"injection_detected"`
	QueryPIIRedacted    bool `json:"query_pii_redacted"`
	ResponsePIIRedacted bool `json:"response_pii_redacted"`
	GroundingPassed     bool `json:"grounding_passed"`
}
