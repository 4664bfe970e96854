// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package attribution maps generated sentences back to the evidence chunks
// that support them and flags unsupported sentences as potential
// hallucinations.
//
// Scoring is lexical word-overlap (Jaccard). It is a weak signal on
// paraphrased text; the Scorer interface lets an embedding-based scorer
// replace it without changing the annotation contract.
package attribution

import (
	"sort"
	"strings"

	"github.com/AleutianAI/AleutianGate/services/gatekeeper/datatypes"
)

const (
	DefaultCitationThreshold = 0.65
	DefaultMinCitations      = 1
	DefaultTopK              = 3

	previewLength = 200
)

// Scorer computes a similarity in [0,1] between a sentence and a chunk.
type Scorer interface {
	Score(sentence, chunkContent string) float64
}

type Config struct {
	CitationThreshold float64
	MinCitations      int
	TopK              int
}

// Engine annotates answers against retrieved evidence. Immutable after
// construction; safe for concurrent use.
type Engine struct {
	cfg    Config
	scorer Scorer
}

var _ Scorer = jaccardScorer{}

type jaccardScorer struct{}

func NewEngine(cfg Config) *Engine {
	if cfg.CitationThreshold <= 0 {
		cfg.CitationThreshold = DefaultCitationThreshold
	}
	if cfg.MinCitations <= 0 {
		cfg.MinCitations = DefaultMinCitations
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	return &Engine{cfg: cfg, scorer: jaccardScorer{}}
}

// NewEngineWithScorer swaps the lexical scorer for a custom one.
func NewEngineWithScorer(cfg Config, s Scorer) *Engine {
	e := NewEngine(cfg)
	if s != nil {
		e.scorer = s
	}
	return e
}

// =============================================================================
// Sentence splitting
// =============================================================================

// Common abbreviations masked before the terminator split so they do not
// end a sentence. The sentinel must never appear in model output; '~' is
// restored after splitting.
var abbreviations = []string{"e.g.", "i.e.", "etc.", "Dr.", "Mr.", "Mrs.", "Ms."}

// SplitIntoSentences splits text on sentence terminators ('.', '?', '!')
// followed by whitespace. Abbreviation periods are masked first. No
// non-whitespace content is dropped: the concatenation of the returned
// sentences contains every word of the input.
func SplitIntoSentences(text string) []string {
	masked := text
	for _, abbr := range abbreviations {
		masked = strings.ReplaceAll(masked, abbr, strings.ReplaceAll(abbr, ".", "~"))
	}

	var sentences []string
	start := 0
	for i := 0; i < len(masked); i++ {
		c := masked[i]
		if (c == '.' || c == '?' || c == '!') && i+1 < len(masked) && isSpace(masked[i+1]) {
			sentences = append(sentences, masked[start:i+1])
			start = i + 1
		}
	}
	if start < len(masked) {
		sentences = append(sentences, masked[start:])
	}

	out := make([]string, 0, len(sentences))
	for _, s := range sentences {
		s = strings.TrimSpace(strings.ReplaceAll(s, "~", "."))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// =============================================================================
// Similarity
// =============================================================================

// Score is case-insensitive word-set Jaccard: |A∩B| / |A∪B|. Zero when
// either side has no words.
func (jaccardScorer) Score(sentence, chunkContent string) float64 {
	a := wordSet(sentence)
	b := wordSet(chunkContent)
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for w := range a {
		if _, ok := b[w]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

func wordSet(text string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// Similarity exposes the engine's scorer.
func (e *Engine) Similarity(sentence, chunkContent string) float64 {
	return e.scorer.Score(sentence, chunkContent)
}

// =============================================================================
// Citations
// =============================================================================

// FindSupportingChunks returns citations for every chunk whose similarity to
// the sentence meets the citation threshold, sorted by similarity descending
// and truncated to the configured top-k.
func (e *Engine) FindSupportingChunks(sentence string, chunks []datatypes.EvidenceChunk) []datatypes.Citation {
	var citations []datatypes.Citation
	for _, ch := range chunks {
		score := e.scorer.Score(sentence, ch.Content)
		if score < e.cfg.CitationThreshold {
			continue
		}
		preview := ch.Content
		if len(preview) > previewLength {
			preview = preview[:previewLength]
		}
		citations = append(citations, datatypes.Citation{
			DocID:      ch.DocID,
			ChunkID:    ch.ChunkID,
			LineStart:  ch.LineStart,
			LineEnd:    ch.LineEnd,
			Similarity: score,
			Preview:    preview,
		})
	}
	sort.SliceStable(citations, func(i, j int) bool {
		return citations[i].Similarity > citations[j].Similarity
	})
	if len(citations) > e.cfg.TopK {
		citations = citations[:e.cfg.TopK]
	}
	return citations
}

// AnnotateResponse splits the answer into sentences and attaches citations
// to each. A sentence is supported when it has at least MinCitations
// citations; its confidence is the best citation similarity, 0 when
// uncited. The response hallucinates iff any sentence is unsupported.
func (e *Engine) AnnotateResponse(answer string, chunks []datatypes.EvidenceChunk) ([]datatypes.AnnotatedSentence, bool, datatypes.AttributionStats) {
	sentences := SplitIntoSentences(answer)

	annotated := make([]datatypes.AnnotatedSentence, 0, len(sentences))
	hallucinated := false
	supported := 0
	confidenceSum := 0.0
	for _, s := range sentences {
		citations := e.FindSupportingChunks(s, chunks)
		confidence := 0.0
		if len(citations) > 0 {
			confidence = citations[0].Similarity
		}
		isSupported := len(citations) >= e.cfg.MinCitations
		if isSupported {
			supported++
		} else {
			hallucinated = true
		}
		confidenceSum += confidence
		annotated = append(annotated, datatypes.AnnotatedSentence{
			Text:        s,
			Citations:   citations,
			IsSupported: isSupported,
			Confidence:  confidence,
		})
	}

	stats := datatypes.AttributionStats{
		TotalSentences:       len(annotated),
		SupportedSentences:   supported,
		UnsupportedSentences: len(annotated) - supported,
	}
	if len(annotated) > 0 {
		stats.SupportRate = float64(supported) / float64(len(annotated))
		stats.HallucinationRate = float64(stats.UnsupportedSentences) / float64(len(annotated))
		stats.MeanConfidence = confidenceSum / float64(len(annotated))
	}
	return annotated, hallucinated, stats
}

// GroundingScore is the best retriever relevance across the evidence set,
// 0 when there is no evidence.
func GroundingScore(chunks []datatypes.EvidenceChunk) float64 {
	best := 0.0
	for _, ch := range chunks {
		if ch.Relevance > best {
			best = ch.Relevance
		}
	}
	return best
}
