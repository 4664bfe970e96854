// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package generation defines the token-streaming generation capability and
// its backends. One backend is selected at service construction; the
// pipeline only sees the Generator interface.
package generation

import (
	"context"
	"errors"
	"fmt"

	"github.com/AleutianAI/AleutianGate/services/gatekeeper/datatypes"
)

// Finish reasons reported in Result.
const (
	FinishReasonStop      = "stop"
	FinishReasonLength    = "length"
	FinishReasonCancelled = "cancelled"
	FinishReasonError     = "error"
)

// Request carries everything a backend needs to produce an answer.
type Request struct {
	Instructions string
	History      []datatypes.Message
	Evidence     string
	Query        string
	MaxTokens    int
	Temperature  float32
}

// Result is the terminal metadata of one generation stream. Token counts
// are 0 when the backend does not report usage; callers fall back to
// estimates.
type Result struct {
	FinishReason string
	InputTokens  int
	OutputTokens int
	Model        string
}

// Generator streams an answer fragment by fragment.
//
// onToken is invoked in arrival order. When it returns an error (the
// caller's sink went away), the backend stops pulling, releases the
// upstream handle, and returns the partial Result with FinishReason
// cancelled alongside the sink's error. The upstream handle is released on
// every path.
type Generator interface {
	Stream(ctx context.Context, req Request, onToken func(string) error) (*Result, error)
	Model() string
}

// UpstreamError wraps a model-backend failure with the backend name.
type UpstreamError struct {
	Backend string
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("generation backend %s failed: %v", e.Backend, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func IsUpstreamError(err error) bool {
	var target *UpstreamError
	return errors.As(err, &target)
}

// DefaultInstructions is the system prompt used when config does not
// override it.
const DefaultInstructions = "You are a helpful assistant. Answer using only the provided context. " +
	"If the context does not contain the answer, say you don't know."

// BuildUserPrompt renders the evidence block and question the way every
// backend presents them.
func BuildUserPrompt(evidence, query string) string {
	if evidence == "" {
		return query
	}
	return "Context:\n" + evidence + "\n\nQuestion: " + query
}
