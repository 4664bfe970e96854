// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package chunker splits documents into overlapping windows that carry
// citation metadata (char offsets, 1-based line numbers, stable ids) so the
// attribution layer can point back into the source text.
package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianGate/services/gatekeeper/datatypes"
)

const (
	DefaultChunkSize     = 512
	DefaultChunkOverlap  = 50
	DefaultLinesPerChunk = 50
	DefaultOverlapLines  = 5
)

// Chunker produces word-window chunks with a fixed size and overlap.
// The zero value is not usable; construct with New.
type Chunker struct {
	size    int
	overlap int
}

// =============================================================================
// Construction
// =============================================================================

// New builds a Chunker.
//
// # Inputs
//   - size: window length in words; <= 0 selects DefaultChunkSize.
//   - overlap: words shared between consecutive windows; < 0 selects
//     DefaultChunkOverlap.
//
// # Outputs
//   - *Chunker, or an error when overlap >= size (the stride would be <= 0
//     and the window loop could not advance).
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultChunkOverlap
	}
	if overlap >= size {
		return nil, fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", overlap, size)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// =============================================================================
// Word-window chunking
// =============================================================================

// Chunk splits text into overlapping word windows.
//
// # Description
//
//	Windows are size words long and advance by size-overlap words. The final
//	window ends the document: once a window reaches the last word the loop
//	stops, so no trailing window that is fully contained in the previous
//	overlap is emitted. Char offsets are recovered by searching each window's
//	boundary words forward from the previous window's start offset, which
//	keeps CharStart monotonically non-decreasing even when words repeat.
//
// # Inputs
//   - text: raw document text. Empty or whitespace-only text yields nil.
//   - filename: source name, normalized into the doc id.
//   - metadata: caller fields merged into every chunk's metadata.
//
// # Outputs
//   - Chunks in document order. The last chunk's CharEnd is len(text).
func (c *Chunker) Chunk(text, filename string, metadata map[string]any) []datatypes.Chunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	docID := DocID(filename, text)
	stride := c.size - c.overlap

	var chunks []datatypes.Chunk
	searchFrom := 0
	for pos := 0; pos < len(words); pos += stride {
		end := pos + c.size
		if end > len(words) {
			end = len(words)
		}
		window := words[pos:end]
		content := strings.Join(window, " ")

		charStart := indexFrom(text, window[0], searchFrom)
		charEnd := len(text)
		if end < len(words) {
			last := window[len(window)-1]
			if i := indexFrom(text, last, charStart); i >= 0 {
				charEnd = i + len(last)
			}
		}

		md := mergeMetadata(metadata, map[string]any{
			"filename":    filename,
			"doc_length":  len(text),
			"chunk_index": len(chunks),
			"word_count":  len(window),
		})
		chunks = append(chunks, datatypes.Chunk{
			Content:    content,
			ChunkID:    fmt.Sprintf("%s_chunk_%d", docID, len(chunks)),
			DocID:      docID,
			ChunkIndex: len(chunks),
			CharStart:  charStart,
			CharEnd:    charEnd,
			LineStart:  strings.Count(text[:charStart], "\n") + 1,
			LineEnd:    strings.Count(text[:charEnd], "\n") + 1,
			Metadata:   md,
		})
		searchFrom = charStart
		if end == len(words) {
			break
		}
	}
	return chunks
}

// =============================================================================
// Line-window chunking
// =============================================================================

// ChunkByLines splits text into overlapping line windows. Unlike the word
// mode, char offsets are exact because they come from cumulative line
// lengths. linesPerChunk <= 0 selects the default; an overlap that is
// negative or >= linesPerChunk is clamped to 0.
func (c *Chunker) ChunkByLines(text, filename string, linesPerChunk, overlapLines int, metadata map[string]any) []datatypes.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if linesPerChunk <= 0 {
		linesPerChunk = DefaultLinesPerChunk
	}
	if overlapLines < 0 || overlapLines >= linesPerChunk {
		overlapLines = 0
	}
	lines := strings.Split(text, "\n")
	docID := DocID(filename, text)
	stride := linesPerChunk - overlapLines

	// offsets[i] is the char offset where line i begins.
	offsets := make([]int, len(lines))
	running := 0
	for i, line := range lines {
		offsets[i] = running
		running += len(line) + 1
	}

	var chunks []datatypes.Chunk
	for pos := 0; pos < len(lines); pos += stride {
		end := pos + linesPerChunk
		if end > len(lines) {
			end = len(lines)
		}
		content := strings.Join(lines[pos:end], "\n")
		charStart := offsets[pos]

		md := mergeMetadata(metadata, map[string]any{
			"filename":    filename,
			"doc_length":  len(text),
			"chunk_index": len(chunks),
			"line_count":  end - pos,
		})
		chunks = append(chunks, datatypes.Chunk{
			Content:    content,
			ChunkID:    fmt.Sprintf("%s_chunk_%d", docID, len(chunks)),
			DocID:      docID,
			ChunkIndex: len(chunks),
			CharStart:  charStart,
			CharEnd:    charStart + len(content),
			LineStart:  pos + 1,
			LineEnd:    end,
			Metadata:   md,
		})
		if end == len(lines) {
			break
		}
	}
	return chunks
}

// =============================================================================
// Identity helpers
// =============================================================================

// DocID derives a stable document id from the normalized filename and a
// short content hash. The same (filename, content) pair always yields the
// same id; changing the content changes the suffix.
func DocID(filename, content string) string {
	clean := strings.NewReplacer(" ", "_", "/", "_").Replace(filename)
	sum := sha256.Sum256([]byte(content))
	return clean + "_" + hex.EncodeToString(sum[:])[:8]
}

func indexFrom(text, word string, from int) int {
	if from < 0 || from > len(text) {
		from = 0
	}
	if i := strings.Index(text[from:], word); i >= 0 {
		return from + i
	}
	return from
}

func mergeMetadata(base, extra map[string]any) map[string]any {
	md := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		md[k] = v
	}
	for k, v := range extra {
		md[k] = v
	}
	return md
}
