// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package retrieval defines the evidence-retrieval capability and its
// backends. The pipeline selects one backend at construction time and only
// ever talks to the Retriever interface.
package retrieval

import (
	"context"
	"errors"
	"fmt"

	"github.com/AleutianAI/AleutianGate/services/gatekeeper/datatypes"
)

// DefaultTopK is the evidence window handed to generation.
const DefaultTopK = 5

// Retriever finds evidence chunks for a query.
//
// Fingerprint identifies the current corpus state. It feeds the prompt
// cache key, so any change that could alter retrieval results must change
// the fingerprint.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]datatypes.EvidenceChunk, error)
	Fingerprint() string
}

// Ingestor is implemented by backends that accept chunker output directly
// (bleve, stub). Remote indexes are populated out of band.
type Ingestor interface {
	IndexChunks(ctx context.Context, chunks []datatypes.Chunk) error
}

// Embedder is the slice of the embedding capability the vector backend
// needs. generation.Embedder satisfies it.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// NoCorpusError reports that the backend has no indexed documents at all,
// as opposed to a query that merely matched nothing.
type NoCorpusError struct {
	Backend string
}

func (e *NoCorpusError) Error() string {
	return fmt.Sprintf("retrieval backend %s has no indexed corpus", e.Backend)
}

func IsNoCorpusError(err error) bool {
	var target *NoCorpusError
	return errors.As(err, &target)
}

// RetrievalError wraps a backend failure with the backend name.
type RetrievalError struct {
	Backend string
	Err     error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval failed on backend %s: %v", e.Backend, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

func IsRetrievalError(err error) bool {
	var target *RetrievalError
	return errors.As(err, &target)
}
