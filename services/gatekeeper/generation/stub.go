// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package generation

import (
	"context"
	"strings"
)

// StubGenerator is the deterministic offline backend: it echoes the first
// evidence lines as the answer, one word per fragment. Selected through
// config for air-gapped runs and tests; never a fallback for a failed real
// backend.
type StubGenerator struct{}

var _ Generator = (*StubGenerator)(nil)

func NewStubGenerator() *StubGenerator { return &StubGenerator{} }

func (g *StubGenerator) Model() string { return "stub" }

// Stream implements Generator.
func (g *StubGenerator) Stream(_ context.Context, req Request, onToken func(string) error) (*Result, error) {
	answer := g.compose(req)
	result := &Result{
		Model:        "stub",
		FinishReason: FinishReasonStop,
		InputTokens:  len(BuildUserPrompt(req.Evidence, req.Query)) / 4,
		OutputTokens: len(answer) / 4,
	}
	words := strings.Fields(answer)
	for i, w := range words {
		fragment := w
		if i < len(words)-1 {
			fragment += " "
		}
		if err := onToken(fragment); err != nil {
			result.FinishReason = FinishReasonCancelled
			return result, err
		}
	}
	return result, nil
}

func (g *StubGenerator) compose(req Request) string {
	evidence := strings.TrimSpace(req.Evidence)
	if evidence == "" {
		return "I don't know."
	}
	// First non-header line of the evidence block.
	for _, line := range strings.Split(evidence, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "[") {
			continue
		}
		return line
	}
	return "I don't know."
}
