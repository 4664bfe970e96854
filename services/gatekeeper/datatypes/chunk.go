// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

// Chunk is one window of a source document, carrying enough positional
// metadata to cite it later (char offsets and 1-based line numbers).
type Chunk struct {
	Content    string         `json:"content"`
	ChunkID    string         `json:"chunk_id"`
	DocID      string         `json:"doc_id"`
	ChunkIndex int            `json:"chunk_index"`
	CharStart  int            `json:"char_start"`
	CharEnd    int            `json:"char_end"`
	LineStart  int            `json:"line_start"`
	LineEnd    int            `json:"line_end"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// EvidenceChunk is a retrieved chunk plus the retriever's relevance signal
// in [0,1]. Retrieval backends normalize their native scores into Relevance.
type EvidenceChunk struct {
	Content   string         `json:"content"`
	ChunkID   string         `json:"chunk_id"`
	DocID     string         `json:"doc_id"`
	LineStart int            `json:"line_start"`
	LineEnd   int            `json:"line_end"`
	Relevance float64        `json:"relevance"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}
