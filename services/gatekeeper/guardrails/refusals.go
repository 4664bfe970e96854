// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package guardrails

// Refusal kinds accepted by RefusalResponse.
const (
	RefusalSafety    = "safety"
	RefusalInjection = "injection"
	RefusalGrounding = "grounding"
)

var refusalTexts = map[string]string{
	RefusalSafety:    "I can't process that request. Please rephrase your question in a different way.",
	RefusalInjection: "I detected an attempt to alter my instructions. Please ask your question normally.",
	RefusalGrounding: "I don't have enough relevant information to answer this question confidently. Try rephrasing or providing more context.",
}

// RefusalResponse returns the fixed user-facing refusal text for a kind.
// Unknown kinds fall back to the safety refusal.
func RefusalResponse(kind string) string {
	if text, ok := refusalTexts[kind]; ok {
		return text
	}
	return refusalTexts[RefusalSafety]
}
