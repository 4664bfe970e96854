// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/AleutianGate/services/gatekeeper/datatypes"
)

var weaviateTracer = otel.Tracer("aleutian.gatekeeper.retrieval.weaviate")

// WeaviateRetriever queries a Weaviate class for evidence chunks. With an
// Embedder it runs nearVector search; without one it falls back to BM25.
// The chunk schema mirrors the chunker output fields (content, doc_id,
// chunk_id, line_start, line_end).
type WeaviateRetriever struct {
	client   *weaviate.Client
	class    string
	embedder Embedder
}

var _ Retriever = (*WeaviateRetriever)(nil)

// NewWeaviateRetriever builds a retriever over an existing class. embedder
// may be nil for keyword-only deployments.
func NewWeaviateRetriever(client *weaviate.Client, class string, embedder Embedder) (*WeaviateRetriever, error) {
	if client == nil {
		return nil, fmt.Errorf("weaviate client is required")
	}
	if class == "" {
		return nil, fmt.Errorf("weaviate class name is required")
	}
	return &WeaviateRetriever{client: client, class: class, embedder: embedder}, nil
}

// Retrieve implements Retriever.
func (r *WeaviateRetriever) Retrieve(ctx context.Context, query string, topK int) ([]datatypes.EvidenceChunk, error) {
	ctx, span := weaviateTracer.Start(ctx, "WeaviateRetriever.Retrieve")
	defer span.End()
	span.SetAttributes(
		attribute.String("retrieval.class", r.class),
		attribute.Int("retrieval.top_k", topK),
	)
	if topK <= 0 {
		topK = DefaultTopK
	}

	fields := []graphql.Field{
		{Name: "content"},
		{Name: "doc_id"},
		{Name: "chunk_id"},
		{Name: "line_start"},
		{Name: "line_end"},
		{Name: "_additional", Fields: []graphql.Field{
			{Name: "certainty"},
			{Name: "distance"},
			{Name: "score"},
		}},
	}
	builder := r.client.GraphQL().Get().
		WithClassName(r.class).
		WithFields(fields...).
		WithLimit(topK)

	if r.embedder != nil {
		vector, err := r.embedder.Embed(ctx, query)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, &RetrievalError{Backend: "weaviate", Err: fmt.Errorf("embedding query: %w", err)}
		}
		builder = builder.WithNearVector(
			r.client.GraphQL().NearVectorArgBuilder().WithVector(vector))
	} else {
		builder = builder.WithBM25(
			r.client.GraphQL().Bm25ArgBuilder().WithQuery(query))
	}

	resp, err := builder.Do(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, &RetrievalError{Backend: "weaviate", Err: err}
	}
	if len(resp.Errors) > 0 {
		err := fmt.Errorf("graphql error: %s", resp.Errors[0].Message)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, &RetrievalError{Backend: "weaviate", Err: err}
	}

	// Re-key into plain any values; the client's response map uses a named
	// alias for interface{}.
	data := make(map[string]any, len(resp.Data))
	for k, v := range resp.Data {
		data[k] = v
	}
	chunks := r.parseResponse(data)
	span.SetAttributes(attribute.Int("retrieval.result_count", len(chunks)))
	slog.Debug("weaviate retrieval complete", "class", r.class, "results", len(chunks))
	return chunks, nil
}

// Fingerprint implements Retriever. The class name identifies the corpus;
// re-pointing the service at another class invalidates prior cache entries.
func (r *WeaviateRetriever) Fingerprint() string {
	return "weaviate:" + r.class
}

func (r *WeaviateRetriever) parseResponse(data map[string]any) []datatypes.EvidenceChunk {
	get, ok := data["Get"].(map[string]any)
	if !ok {
		return nil
	}
	objects, ok := get[r.class].([]any)
	if !ok {
		return nil
	}

	chunks := make([]datatypes.EvidenceChunk, 0, len(objects))
	for _, raw := range objects {
		obj, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		chunk := datatypes.EvidenceChunk{
			Content:   asString(obj["content"]),
			DocID:     asString(obj["doc_id"]),
			ChunkID:   asString(obj["chunk_id"]),
			LineStart: int(asFloat(obj["line_start"])),
			LineEnd:   int(asFloat(obj["line_end"])),
		}
		if additional, ok := obj["_additional"].(map[string]any); ok {
			chunk.Relevance = relevanceFromAdditional(additional)
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}

// relevanceFromAdditional normalizes Weaviate's score variants into [0,1]:
// certainty is already normalized, distance inverts, and the BM25 score is
// squashed with score/(score+1).
func relevanceFromAdditional(additional map[string]any) float64 {
	if certainty := asFloat(additional["certainty"]); certainty > 0 {
		return clamp01(certainty)
	}
	if distance, ok := additional["distance"]; ok {
		if d := asFloat(distance); d > 0 {
			return clamp01(1 - d)
		}
	}
	if score := asFloat(additional["score"]); score > 0 {
		return score / (score + 1)
	}
	return 0
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// Weaviate returns numbers as float64 in most positions but _additional
// score fields arrive as strings.
func asFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
