// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package attribution

import (
	"math"
	"strings"
	"testing"

	"github.com/AleutianAI/AleutianGate/services/gatekeeper/datatypes"
)

// TestSplitIntoSentences_Abbreviations verifies masked abbreviations do not
// terminate sentences and are restored afterwards.
func TestSplitIntoSentences_Abbreviations(t *testing.T) {
	got := SplitIntoSentences("Dr. Smith works here. He treats kids, e.g. toddlers. Done!")
	want := []string{
		"Dr. Smith works here.",
		"He treats kids, e.g. toddlers.",
		"Done!",
	}
	if len(got) != len(want) {
		t.Fatalf("got %d sentences %v, want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sentence %d = %q, want %q", i, got[i], want[i])
		}
	}
}

// TestSplitIntoSentences_NoContentDropped verifies every word of the input
// survives splitting.
func TestSplitIntoSentences_NoContentDropped(t *testing.T) {
	in := "First point. Second point? Third point! trailing fragment without terminator"
	got := SplitIntoSentences(in)
	joined := strings.Join(got, " ")
	for _, w := range strings.Fields(in) {
		if !strings.Contains(joined, w) {
			t.Errorf("word %q lost in split: %v", w, got)
		}
	}
}

// TestSplitIntoSentences_Empty verifies blank input yields nothing.
func TestSplitIntoSentences_Empty(t *testing.T) {
	if got := SplitIntoSentences("   "); len(got) != 0 {
		t.Errorf("expected no sentences, got %v", got)
	}
}

// TestJaccardScorer_Score verifies the word-set overlap arithmetic.
func TestJaccardScorer_Score(t *testing.T) {
	s := jaccardScorer{}
	if got := s.Score("the cat sat", "THE CAT SAT"); got != 1.0 {
		t.Errorf("identical sets = %v, want 1.0", got)
	}
	if got := s.Score("alpha beta", "gamma delta"); got != 0.0 {
		t.Errorf("disjoint sets = %v, want 0.0", got)
	}
	// 3 shared of 5 distinct words.
	if got := s.Score("a b c", "a b d e"); math.Abs(got-0.4) > 1e-9 {
		t.Errorf("partial overlap = %v, want 0.4", got)
	}
	if got := s.Score("", "words here"); got != 0.0 {
		t.Errorf("empty side = %v, want 0.0", got)
	}
}

// TestEngine_FindSupportingChunks_ThresholdAndTopK verifies filtering, sort
// order, and truncation.
func TestEngine_FindSupportingChunks_ThresholdAndTopK(t *testing.T) {
	e := NewEngine(Config{})
	sentence := "paris is the capital of france"
	chunks := []datatypes.EvidenceChunk{
		{ChunkID: "c1", Content: "paris is the capital of france"},
		{ChunkID: "c2", Content: "paris is the capital of france today"},
		{ChunkID: "c3", Content: "bananas are yellow fruit"},
		{ChunkID: "c4", Content: "paris is the capital of france"},
		{ChunkID: "c5", Content: "paris is the capital of france"},
	}
	got := e.FindSupportingChunks(sentence, chunks)
	if len(got) != DefaultTopK {
		t.Fatalf("got %d citations, want %d", len(got), DefaultTopK)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Similarity > got[i-1].Similarity {
			t.Errorf("citations not sorted desc at %d", i)
		}
	}
	for _, c := range got {
		if c.ChunkID == "c3" {
			t.Error("below-threshold chunk cited")
		}
	}
}

// TestEngine_FindSupportingChunks_Preview verifies the 200-char preview cap.
func TestEngine_FindSupportingChunks_Preview(t *testing.T) {
	e := NewEngine(Config{CitationThreshold: 0.1})
	long := strings.Repeat("paris ", 100)
	got := e.FindSupportingChunks("paris", []datatypes.EvidenceChunk{{ChunkID: "c1", Content: long}})
	if len(got) != 1 {
		t.Fatalf("got %d citations, want 1", len(got))
	}
	if len(got[0].Preview) != 200 {
		t.Errorf("preview length = %d, want 200", len(got[0].Preview))
	}
}

// TestEngine_AnnotateResponse verifies per-sentence support flags, the
// hallucination flag, and the aggregate stats.
func TestEngine_AnnotateResponse(t *testing.T) {
	e := NewEngine(Config{})
	chunks := []datatypes.EvidenceChunk{
		{ChunkID: "c1", DocID: "d1", Content: "Paris is the capital of France", Relevance: 0.9},
	}
	sentences, hallucinated, stats := e.AnnotateResponse(
		"Paris is the capital of France. Bananas are blue.", chunks)

	if len(sentences) != 2 {
		t.Fatalf("got %d sentences, want 2", len(sentences))
	}
	if !sentences[0].IsSupported || len(sentences[0].Citations) == 0 {
		t.Errorf("grounded sentence unsupported: %+v", sentences[0])
	}
	if sentences[1].IsSupported || sentences[1].Confidence != 0 {
		t.Errorf("ungrounded sentence supported: %+v", sentences[1])
	}
	if !hallucinated {
		t.Error("expected hallucination flag")
	}
	if stats.TotalSentences != 2 || stats.SupportedSentences != 1 || stats.UnsupportedSentences != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if math.Abs(stats.SupportRate-0.5) > 1e-9 {
		t.Errorf("support rate = %v, want 0.5", stats.SupportRate)
	}
	if math.Abs(stats.HallucinationRate-0.5) > 1e-9 {
		t.Errorf("hallucination rate = %v, want 0.5", stats.HallucinationRate)
	}
}

// TestEngine_AnnotateResponse_AllSupported verifies no hallucination when
// every sentence is cited.
func TestEngine_AnnotateResponse_AllSupported(t *testing.T) {
	e := NewEngine(Config{})
	chunks := []datatypes.EvidenceChunk{
		{ChunkID: "c1", Content: "the sky is blue during the day"},
	}
	_, hallucinated, stats := e.AnnotateResponse("the sky is blue during the day", chunks)
	if hallucinated {
		t.Error("unexpected hallucination flag")
	}
	if stats.SupportRate != 1.0 {
		t.Errorf("support rate = %v, want 1.0", stats.SupportRate)
	}
	if stats.UnsupportedSentences != 0 || stats.HallucinationRate != 0 {
		t.Errorf("stats = %+v, want no unsupported sentences", stats)
	}
}

// TestGroundingScore verifies the max-relevance aggregation.
func TestGroundingScore(t *testing.T) {
	chunks := []datatypes.EvidenceChunk{
		{Relevance: 0.4},
		{Relevance: 0.9},
		{Relevance: 0.7},
	}
	if got := GroundingScore(chunks); got != 0.9 {
		t.Errorf("GroundingScore = %v, want 0.9", got)
	}
	if got := GroundingScore(nil); got != 0 {
		t.Errorf("GroundingScore(nil) = %v, want 0", got)
	}
}
