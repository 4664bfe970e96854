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
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"

	"github.com/AleutianAI/AleutianGate/services/gatekeeper/datatypes"
)

// StubRetriever is the deterministic in-memory backend for offline runs and
// tests. Selected deliberately through config, never as a silent fallback
// when a real backend fails to come up.
type StubRetriever struct {
	mu     sync.RWMutex
	chunks []datatypes.Chunk
}

var (
	_ Retriever = (*StubRetriever)(nil)
	_ Ingestor  = (*StubRetriever)(nil)
)

func NewStubRetriever() *StubRetriever {
	return &StubRetriever{}
}

// IndexChunks implements Ingestor.
func (s *StubRetriever) IndexChunks(_ context.Context, chunks []datatypes.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, chunks...)
	return nil
}

// Retrieve implements Retriever, scoring chunks by the fraction of query
// words the chunk contains.
func (s *StubRetriever) Retrieve(_ context.Context, query string, topK int) ([]datatypes.EvidenceChunk, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.chunks) == 0 {
		return nil, &NoCorpusError{Backend: "stub"}
	}

	scored := make([]datatypes.EvidenceChunk, 0, len(s.chunks))
	for _, ch := range s.chunks {
		scored = append(scored, datatypes.EvidenceChunk{
			Content:   ch.Content,
			DocID:     ch.DocID,
			ChunkID:   ch.ChunkID,
			LineStart: ch.LineStart,
			LineEnd:   ch.LineEnd,
			Relevance: wordOverlap(query, ch.Content),
			Metadata:  ch.Metadata,
		})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Relevance > scored[j].Relevance
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

// Fingerprint implements Retriever: a short hash over the sorted chunk ids.
func (s *StubRetriever) Fingerprint() string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.chunks))
	for _, ch := range s.chunks {
		ids = append(ids, ch.ChunkID)
	}
	s.mu.RUnlock()

	sort.Strings(ids)
	sum := sha256.Sum256([]byte(strings.Join(ids, ",")))
	return "stub:" + hex.EncodeToString(sum[:])[:12]
}

// wordOverlap is query coverage: the fraction of the query's words present
// in the chunk. Unlike symmetric Jaccard this does not penalize long chunks,
// which keeps stub relevance comparable to the real backends' scores.
func wordOverlap(query, content string) float64 {
	querySet := fieldSet(query)
	contentSet := fieldSet(content)
	if len(querySet) == 0 || len(contentSet) == 0 {
		return 0
	}
	shared := 0
	for w := range querySet {
		if _, ok := contentSet[w]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(querySet))
}

func fieldSet(text string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		w = strings.Trim(w, ".,;:!?\"'()")
		if w != "" {
			set[w] = struct{}{}
		}
	}
	return set
}
