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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var openaiTracer = otel.Tracer("aleutian.gatekeeper.generation.openai")

type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

var _ Generator = (*OpenAIGenerator)(nil)

// NewOpenAIGenerator reads OPENAI_API_KEY from the environment, falling
// back to the container secret file the same way the other services do.
func NewOpenAIGenerator() (*OpenAIGenerator, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	model := os.Getenv("OPENAI_MODEL")
	if apiKey == "" {
		secretPath := "/run/secrets/openai_api_key"
		apiKeyBytes, err := os.ReadFile(secretPath)
		if err == nil {
			apiKey = strings.TrimSpace(string(apiKeyBytes))
			slog.Info("Read the OpenAI API Key from Podman Secrets")
		} else {
			slog.Error("OPENAI_API_KEY environment variable not set and secret not found", "path", secretPath)
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	}
	if model == "" {
		model = "gpt-4o-mini"
		slog.Warn("OPENAI_MODEL not set, defaulting to gpt-4o-mini")
	}
	slog.Info("Initializing OpenAI generator", "model", model)
	return &OpenAIGenerator{client: openai.NewClient(apiKey), model: model}, nil
}

func (g *OpenAIGenerator) Model() string { return g.model }

// Stream implements Generator over the chat completions streaming API.
// Usage comes from the final stream chunk (IncludeUsage).
func (g *OpenAIGenerator) Stream(ctx context.Context, req Request, onToken func(string) error) (*Result, error) {
	ctx, span := openaiTracer.Start(ctx, "OpenAIGenerator.Stream")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", g.model))

	instructions := req.Instructions
	if instructions == "" {
		instructions = DefaultInstructions
	}
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: instructions},
	}
	for _, m := range req.History {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: BuildUserPrompt(req.Evidence, req.Query),
	})

	chatReq := openai.ChatCompletionRequest{
		Model:         g.model,
		Messages:      messages,
		Stream:        true,
		StreamOptions: &openai.StreamOptions{IncludeUsage: true},
	}
	if req.MaxTokens > 0 {
		chatReq.MaxCompletionTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		chatReq.Temperature = req.Temperature
	}

	stream, err := g.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, &UpstreamError{Backend: "openai", Err: err}
	}
	defer stream.Close()

	result := &Result{Model: g.model, FinishReason: FinishReasonStop}
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, &UpstreamError{Backend: "openai", Err: err}
		}
		if resp.Usage != nil {
			result.InputTokens = resp.Usage.PromptTokens
			result.OutputTokens = resp.Usage.CompletionTokens
		}
		if len(resp.Choices) == 0 {
			continue
		}
		choice := resp.Choices[0]
		if choice.Delta.Content != "" {
			if sinkErr := onToken(choice.Delta.Content); sinkErr != nil {
				result.FinishReason = FinishReasonCancelled
				span.SetAttributes(attribute.String("llm.finish_reason", result.FinishReason))
				return result, sinkErr
			}
		}
		if choice.FinishReason == openai.FinishReasonLength {
			result.FinishReason = FinishReasonLength
		}
	}
	span.SetAttributes(attribute.String("llm.finish_reason", result.FinishReason))
	return result, nil
}
