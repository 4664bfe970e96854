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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var ollamaTracer = otel.Tracer("aleutian.gatekeeper.generation.ollama")

type OllamaGenerator struct {
	httpClient *http.Client
	baseURL    string
	model      string
}

var _ Generator = (*OllamaGenerator)(nil)

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaStreamChunk struct {
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	DoneReason      string `json:"done_reason"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

func NewOllamaGenerator() (*OllamaGenerator, error) {
	baseURL := os.Getenv("OLLAMA_BASE_URL")
	model := os.Getenv("OLLAMA_MODEL")
	if baseURL == "" {
		return nil, fmt.Errorf("OLLAMA_BASE_URL environment variable not set")
	}
	if model == "" {
		slog.Warn("OLLAMA_MODEL not set, defaulting to gpt-oss")
		model = "gpt-oss"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	slog.Info("Initializing Ollama generator", "base_url", baseURL, "model", model)
	return &OllamaGenerator{
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		baseURL:    baseURL,
		model:      model,
	}, nil
}

func (g *OllamaGenerator) Model() string { return g.model }

// Stream implements Generator against /api/generate with stream=true. The
// response is NDJSON; the final object carries done=true plus the token
// counts.
func (g *OllamaGenerator) Stream(ctx context.Context, req Request, onToken func(string) error) (*Result, error) {
	ctx, span := ollamaTracer.Start(ctx, "OllamaGenerator.Stream")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", g.model))

	instructions := req.Instructions
	if instructions == "" {
		instructions = DefaultInstructions
	}
	prompt := BuildUserPrompt(req.Evidence, req.Query)
	if len(req.History) > 0 {
		var b strings.Builder
		for _, m := range req.History {
			fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
		}
		b.WriteString(prompt)
		prompt = b.String()
	}

	options := make(map[string]any)
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}
	if req.Temperature > 0 {
		options["temperature"] = req.Temperature
	}
	payload := ollamaGenerateRequest{
		Model:   g.model,
		Prompt:  prompt,
		System:  instructions,
		Stream:  true,
		Options: options,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &UpstreamError{Backend: "ollama", Err: fmt.Errorf("marshaling request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, &UpstreamError{Backend: "ollama", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, &UpstreamError{Backend: "ollama", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("ollama failed with status %d: %s", resp.StatusCode, string(respBody))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, &UpstreamError{Backend: "ollama", Err: err}
	}

	result := &Result{Model: g.model, FinishReason: FinishReasonStop}
	decoder := json.NewDecoder(resp.Body)
	for {
		var chunk ollamaStreamChunk
		if err := decoder.Decode(&chunk); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, &UpstreamError{Backend: "ollama", Err: fmt.Errorf("decoding stream: %w", err)}
		}
		if chunk.Response != "" {
			if sinkErr := onToken(chunk.Response); sinkErr != nil {
				result.FinishReason = FinishReasonCancelled
				return result, sinkErr
			}
		}
		if chunk.Done {
			result.InputTokens = chunk.PromptEvalCount
			result.OutputTokens = chunk.EvalCount
			if chunk.DoneReason == "length" {
				result.FinishReason = FinishReasonLength
			}
			break
		}
	}
	span.SetAttributes(attribute.String("llm.finish_reason", result.FinishReason))
	return result, nil
}
