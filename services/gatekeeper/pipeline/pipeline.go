// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline runs one guarded question-answering request end to end.
//
// # Description
//
//	A run moves through a fixed sequence of stages: input guardrails, cache
//	check, retrieval, grounding gate, streamed generation, attribution, and
//	output guardrails. Refusals short-circuit to a terminal state before any
//	model call is made, so a refused request never costs tokens. Only a
//	fully successful run writes the prompt cache.
//
// # Assumptions
//   - Capability backends (retriever, generator, embedder, store) were
//     selected at construction; the pipeline never branches on backend
//     identity.
//   - One Execute call per request; the Pipeline itself is safe for
//     concurrent Execute calls.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianGate/services/gatekeeper/attribution"
	"github.com/AleutianAI/AleutianGate/services/gatekeeper/conversation"
	"github.com/AleutianAI/AleutianGate/services/gatekeeper/datatypes"
	"github.com/AleutianAI/AleutianGate/services/gatekeeper/generation"
	"github.com/AleutianAI/AleutianGate/services/gatekeeper/guardrails"
	"github.com/AleutianAI/AleutianGate/services/gatekeeper/observability"
	"github.com/AleutianAI/AleutianGate/services/gatekeeper/retrieval"
)

var tracer = otel.Tracer("aleutian.gatekeeper.pipeline")

// User-facing fixed messages.
const (
	noCorpusMessage = "I don't have any knowledge base to help answer your question."
	failureMessage  = "I apologize, but I encountered an error while processing your request. Please try again."

	placeholderContent = "..."
)

// Finish reasons the pipeline adds on top of the generator's.
const (
	finishReasonRefused  = "refused"
	finishReasonNoCorpus = "no_corpus"
	finishReasonError    = "error"
	finishReasonCached   = "cached"
)

type Config struct {
	TopK         int
	HistoryLimit int
	Instructions string
	MaxTokens    int
	Temperature  float32
}

// Deps are the capability backends, selected once in service wiring.
// Retriever and Embedder may be nil (no corpus / keyword-only deployments);
// everything else is required.
type Deps struct {
	Guardrails    *guardrails.Engine
	Attribution   *attribution.Engine
	Retriever     retrieval.Retriever
	Generator     generation.Generator
	Embedder      generation.Embedder
	Store         conversation.Store
	Observability *observability.Observability
}

type Pipeline struct {
	cfg  Config
	deps Deps
}

func New(cfg Config, deps Deps) (*Pipeline, error) {
	if deps.Guardrails == nil {
		return nil, fmt.Errorf("guardrails engine is required")
	}
	if deps.Attribution == nil {
		return nil, fmt.Errorf("attribution engine is required")
	}
	if deps.Generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("conversation store is required")
	}
	if deps.Observability == nil {
		return nil, fmt.Errorf("observability context is required")
	}
	if cfg.TopK <= 0 {
		cfg.TopK = retrieval.DefaultTopK
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 10
	}
	return &Pipeline{cfg: cfg, deps: deps}, nil
}

// Execute runs one request. Fragments stream to sink as they arrive (nil
// sink buffers silently). The returned result is always non-nil; the error
// is non-nil only for the FAILED terminal, where the result still carries
// the generic failure answer.
func (p *Pipeline) Execute(ctx context.Context, req *datatypes.ChatRequest, sink FragmentSink) (*datatypes.PipelineResult, error) {
	ctx, span := tracer.Start(ctx, "Pipeline.Execute")
	defer span.End()
	start := time.Now()

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	span.SetAttributes(attribute.String("pipeline.session_id", sessionID))

	topK := req.TopK
	if topK <= 0 {
		topK = p.cfg.TopK
	}

	obs := p.deps.Observability
	finish := func(res *datatypes.PipelineResult) *datatypes.PipelineResult {
		res.DurationMS = time.Since(start).Milliseconds()
		obs.Metrics.RecordRequest(outcomeLabel(State(res.State)), time.Since(start))
		span.SetAttributes(attribute.String("pipeline.state", res.State))
		return res
	}
	emit := func(text string) {
		if sink != nil {
			// Best effort: a consumer that is already gone cannot receive
			// the refusal either.
			_ = sink(text)
		}
	}

	// --- GUARDED_INPUT ---
	queryResult := p.deps.Guardrails.ProcessQuery(req.Message)
	flags := datatypes.GuardrailFlags{
		InjectionDetected: queryResult.InjectionDetected,
		QueryPIIRedacted:  queryResult.PIIRedacted,
	}
	for _, w := range queryResult.Warnings {
		slog.Warn("input guardrail warning", "session_id", sessionID, "warning", w)
	}
	if queryResult.InjectionDetected {
		obs.Metrics.RecordRefusal(guardrails.RefusalInjection)
		answer := guardrails.RefusalResponse(guardrails.RefusalInjection)
		emit(answer)
		return finish(&datatypes.PipelineResult{
			Answer:       answer,
			Guardrails:   flags,
			State:        string(StateRefusedInjection),
			FinishReason: finishReasonRefused,
		}), nil
	}
	processedQuery := queryResult.ProcessedQuery

	// --- CACHE_CHECK ---
	fingerprint := ""
	if p.deps.Retriever != nil {
		fingerprint = p.deps.Retriever.Fingerprint()
	}
	if cached, ok := obs.LookupCache(req.Message, fingerprint); ok {
		slog.Info("prompt cache hit", "session_id", sessionID)
		cached.Cached = true
		cached.FinishReason = finishReasonCached
		emit(cached.Answer)
		p.persistExchange(ctx, sessionID, processedQuery, cached.Answer)
		return finish(cached), nil
	}

	// History is read before this exchange is appended so the generator
	// sees only prior turns.
	history := p.loadHistory(ctx, sessionID)
	placeholderSeq := p.beginExchange(ctx, sessionID, processedQuery)

	// --- RETRIEVING ---
	if p.deps.Retriever == nil {
		emit(noCorpusMessage)
		p.completeExchange(ctx, sessionID, placeholderSeq, noCorpusMessage)
		return finish(&datatypes.PipelineResult{
			Answer:       noCorpusMessage,
			Guardrails:   flags,
			State:        string(StateNoCorpus),
			FinishReason: finishReasonNoCorpus,
		}), nil
	}

	evidence, err := p.retrieve(ctx, processedQuery, topK)
	if retrieval.IsNoCorpusError(err) {
		emit(noCorpusMessage)
		p.completeExchange(ctx, sessionID, placeholderSeq, noCorpusMessage)
		return finish(&datatypes.PipelineResult{
			Answer:       noCorpusMessage,
			Guardrails:   flags,
			State:        string(StateNoCorpus),
			FinishReason: finishReasonNoCorpus,
		}), nil
	}
	if err != nil {
		return p.fail(ctx, span, finish, emit, sessionID, placeholderSeq, flags, err), err
	}
	requestCost := 0.0
	if p.deps.Embedder != nil {
		record := obs.LogEmbedding(p.deps.Embedder.Model(), processedQuery)
		requestCost += record.CostUSD
	}

	// --- GROUNDING_CHECK ---
	groundingScore := attribution.GroundingScore(evidence)
	span.SetAttributes(attribute.Float64("pipeline.grounding_score", groundingScore))
	if ok, refusal := p.deps.Guardrails.ValidateGroundingScore(groundingScore); !ok {
		obs.Metrics.RecordRefusal(guardrails.RefusalGrounding)
		emit(refusal)
		p.completeExchange(ctx, sessionID, placeholderSeq, refusal)
		return finish(&datatypes.PipelineResult{
			Answer:         refusal,
			GroundingScore: groundingScore,
			Guardrails:     flags,
			State:          string(StateRefusedUngrounded),
			FinishReason:   finishReasonRefused,
		}), nil
	}
	flags.GroundingPassed = true

	// --- STREAMING_ANSWER ---
	acc := newAnswerAccumulator(sink)
	genReq := generation.Request{
		Instructions: p.cfg.Instructions,
		History:      history,
		Evidence:     formatEvidence(evidence),
		Query:        processedQuery,
		MaxTokens:    p.cfg.MaxTokens,
		Temperature:  p.cfg.Temperature,
	}
	obs.Metrics.StreamStarted()
	genStart := time.Now()
	genResult, genErr := p.deps.Generator.Stream(ctx, genReq, acc.Write)
	obs.Metrics.StreamEnded()
	if firstAt, ok := acc.FirstFragmentAt(); ok {
		obs.Metrics.RecordTimeToFirstToken(firstAt.Sub(genStart))
	}

	// A disconnect surfaces either as a sink write failure or as a context
	// cancellation inside the generator's receive loop, depending on what
	// the backend was doing when the client went away.
	if genErr != nil && (acc.SinkFailed() || errors.Is(genErr, context.Canceled) || ctx.Err() != nil) {
		// Consumer disconnected: keep the partial answer, log the spend,
		// never cache.
		partial := acc.String()
		slog.Info("stream cancelled by consumer",
			"session_id", sessionID, "fragments_buffered", len(partial))
		p.completeExchange(ctx, sessionID, placeholderSeq, partial)
		cost := p.logGeneration(genResult, genReq, partial)
		return finish(&datatypes.PipelineResult{
			Answer:       partial,
			Guardrails:   flags,
			State:        string(StateCancelled),
			FinishReason: generation.FinishReasonCancelled,
			Model:        p.deps.Generator.Model(),
			CostUSD:      requestCost + cost,
		}), nil
	}
	if genErr != nil {
		return p.fail(ctx, span, finish, emit, sessionID, placeholderSeq, flags, genErr), genErr
	}

	// --- ANNOTATING / GUARDED_OUTPUT ---
	// Output redaction runs first so sentence annotations match the final
	// answer text exactly.
	responseResult := p.deps.Guardrails.ProcessResponse(acc.String())
	finalAnswer := responseResult.ProcessedResponse
	flags.ResponsePIIRedacted = responseResult.PIIRedacted
	if responseResult.PIIRedacted {
		slog.Warn("redacted PII from generated answer",
			"session_id", sessionID, "items", len(responseResult.RedactedItems))
	}

	sentences, hallucinated, stats := p.deps.Attribution.AnnotateResponse(finalAnswer, evidence)

	// --- CACHED_AND_LOGGED ---
	cost := p.logGeneration(genResult, genReq, finalAnswer)
	p.completeExchange(ctx, sessionID, placeholderSeq, finalAnswer)

	result := &datatypes.PipelineResult{
		Answer:           finalAnswer,
		Sentences:        sentences,
		HasHallucination: hallucinated,
		GroundingScore:   groundingScore,
		Attribution:      &stats,
		Guardrails:       flags,
		Sources:          collectSources(sentences),
		State:            string(StateCachedAndLogged),
		FinishReason:     genResult.FinishReason,
		InputTokens:      genResult.InputTokens,
		OutputTokens:     genResult.OutputTokens,
		CostUSD:          requestCost + cost,
		Model:            genResult.Model,
	}
	obs.StoreCache(req.Message, fingerprint, result)
	return finish(result), nil
}

// =============================================================================
// Stage helpers
// =============================================================================

func (p *Pipeline) retrieve(ctx context.Context, query string, topK int) ([]datatypes.EvidenceChunk, error) {
	ctx, span := tracer.Start(ctx, "Pipeline.retrieve")
	defer span.End()
	span.SetAttributes(attribute.Int("retrieval.top_k", topK))

	evidence, err := p.deps.Retriever.Retrieve(ctx, query, topK)
	if err != nil {
		span.RecordError(err)
		if !retrieval.IsNoCorpusError(err) {
			span.SetStatus(codes.Error, err.Error())
		}
		return nil, err
	}
	span.SetAttributes(attribute.Int("retrieval.result_count", len(evidence)))
	return evidence, nil
}

func (p *Pipeline) fail(
	ctx context.Context,
	span trace.Span,
	finish func(*datatypes.PipelineResult) *datatypes.PipelineResult,
	emit func(string),
	sessionID string,
	placeholderSeq uint64,
	flags datatypes.GuardrailFlags,
	cause error,
) *datatypes.PipelineResult {
	span.RecordError(cause)
	span.SetStatus(codes.Error, cause.Error())
	slog.Error("pipeline run failed", "session_id", sessionID, "error", cause)
	emit(failureMessage)
	p.completeExchange(ctx, sessionID, placeholderSeq, failureMessage)
	return finish(&datatypes.PipelineResult{
		Answer:       failureMessage,
		Guardrails:   flags,
		State:        string(StateFailed),
		FinishReason: finishReasonError,
	})
}

func (p *Pipeline) loadHistory(ctx context.Context, sessionID string) []datatypes.Message {
	turns, err := p.deps.Store.History(ctx, sessionID, p.cfg.HistoryLimit)
	if err != nil {
		slog.Warn("failed to load conversation history", "session_id", sessionID, "error", err)
		return nil
	}
	messages := make([]datatypes.Message, 0, len(turns))
	for _, t := range turns {
		messages = append(messages, datatypes.Message{Role: t.Role, Content: t.Content})
	}
	return messages
}

// beginExchange persists the user turn and the assistant placeholder.
// Store errors are logged, not fatal: losing history must not fail the
// answer.
func (p *Pipeline) beginExchange(ctx context.Context, sessionID, query string) uint64 {
	if _, err := p.deps.Store.AppendTurn(ctx, sessionID, conversation.RoleUser, query); err != nil {
		slog.Warn("failed to persist user turn", "session_id", sessionID, "error", err)
	}
	placeholderSeq, err := p.deps.Store.AppendTurn(ctx, sessionID, conversation.RoleAssistant, placeholderContent)
	if err != nil {
		slog.Warn("failed to persist assistant placeholder", "session_id", sessionID, "error", err)
	}
	return placeholderSeq
}

func (p *Pipeline) completeExchange(ctx context.Context, sessionID string, placeholderSeq uint64, answer string) {
	if placeholderSeq == 0 {
		return
	}
	if err := p.deps.Store.UpdateTurn(ctx, sessionID, placeholderSeq, answer); err != nil {
		slog.Warn("failed to finalize assistant turn",
			"session_id", sessionID, "seq", placeholderSeq, "error", err)
	}
}

// persistExchange writes a complete user/assistant pair (cache-hit path).
func (p *Pipeline) persistExchange(ctx context.Context, sessionID, query, answer string) {
	if _, err := p.deps.Store.AppendTurn(ctx, sessionID, conversation.RoleUser, query); err != nil {
		slog.Warn("failed to persist user turn", "session_id", sessionID, "error", err)
		return
	}
	if _, err := p.deps.Store.AppendTurn(ctx, sessionID, conversation.RoleAssistant, answer); err != nil {
		slog.Warn("failed to persist assistant turn", "session_id", sessionID, "error", err)
	}
}

// logGeneration books the generation spend, estimating token counts when
// the backend did not report usage.
func (p *Pipeline) logGeneration(genResult *generation.Result, genReq generation.Request, answer string) float64 {
	if genResult == nil {
		return 0
	}
	inputTokens := genResult.InputTokens
	if inputTokens == 0 {
		prompt := genReq.Instructions + generation.BuildUserPrompt(genReq.Evidence, genReq.Query)
		inputTokens = observability.EstimateTokens(prompt)
	}
	outputTokens := genResult.OutputTokens
	if outputTokens == 0 {
		outputTokens = observability.EstimateTokens(answer)
	}
	record := p.deps.Observability.LogGeneration(genResult.Model, inputTokens, outputTokens)
	return record.CostUSD
}

// =============================================================================
// Formatting helpers
// =============================================================================

func formatEvidence(chunks []datatypes.EvidenceChunk) string {
	var b strings.Builder
	for i, ch := range chunks {
		fmt.Fprintf(&b, "[Document %d: %s]\n%s\n\n", i+1, ch.DocID, ch.Content)
	}
	return strings.TrimSpace(b.String())
}

// collectSources deduplicates citations across sentences by chunk id,
// keeping each chunk's best similarity.
func collectSources(sentences []datatypes.AnnotatedSentence) []datatypes.Citation {
	seen := make(map[string]int)
	var sources []datatypes.Citation
	for _, s := range sentences {
		for _, c := range s.Citations {
			if idx, ok := seen[c.ChunkID]; ok {
				if c.Similarity > sources[idx].Similarity {
					sources[idx] = c
				}
				continue
			}
			seen[c.ChunkID] = len(sources)
			sources = append(sources, c)
		}
	}
	return sources
}
