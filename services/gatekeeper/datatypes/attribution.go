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

type Citation struct {
	DocID      string  `json:"doc_id"`
	ChunkID    string  `json:"chunk_id"`
	LineStart  int     `json:"line_start"`
	LineEnd    int     `json:"line_end"`
	Similarity float64 `json:"similarity"`
	Preview    string  `json:"preview"`
}

type AnnotatedSentence struct {
	Text        string     `json:"text"`
	Citations   []Citation `json:"citations,omitempty"`
	IsSupported bool       `json:"is_supported"`
	Confidence  float64    `json:"confidence"`
}

type AttributionStats struct {
	TotalSentences       int     `json:"total_sentences"`
	SupportedSentences   int     `json:"supported_sentences"`
	UnsupportedSentences int     `json:"unsupported_sentences"`
	SupportRate          float64 `json:"support_rate"`
	HallucinationRate    float64 `json:"hallucination_rate"`
	MeanConfidence       float64 `json:"mean_confidence"`
}
