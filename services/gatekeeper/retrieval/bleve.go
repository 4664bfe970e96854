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
	"errors"
	"fmt"
	"log/slog"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianGate/services/gatekeeper/datatypes"
)

var bleveTracer = otel.Tracer("aleutian.gatekeeper.retrieval.bleve")

// BleveRetriever is the local full-text backend: an on-disk bleve index over
// chunker output, no external services. BM25-family scores are unbounded, so
// relevance is normalized with score/(score+1).
type BleveRetriever struct {
	index bleve.Index
	path  string
}

var (
	_ Retriever = (*BleveRetriever)(nil)
	_ Ingestor  = (*BleveRetriever)(nil)
)

type bleveChunkDoc struct {
	Content   string `json:"content"`
	DocID     string `json:"doc_id"`
	ChunkID   string `json:"chunk_id"`
	LineStart int    `json:"line_start"`
	LineEnd   int    `json:"line_end"`
}

// NewBleveRetriever opens the index at path, creating it with the chunk
// schema when absent.
func NewBleveRetriever(path string) (*BleveRetriever, error) {
	index, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		slog.Info("creating bleve index", "path", path)
		index, err = bleve.New(path, chunkIndexMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("opening bleve index at %s: %w", path, err)
	}
	return &BleveRetriever{index: index, path: path}, nil
}

func chunkIndexMapping() mapping.IndexMapping {
	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("content", bleve.NewTextFieldMapping())
	doc.AddFieldMappingsAt("doc_id", bleve.NewKeywordFieldMapping())
	doc.AddFieldMappingsAt("chunk_id", bleve.NewKeywordFieldMapping())
	doc.AddFieldMappingsAt("line_start", bleve.NewNumericFieldMapping())
	doc.AddFieldMappingsAt("line_end", bleve.NewNumericFieldMapping())

	im := bleve.NewIndexMapping()
	im.DefaultMapping = doc
	return im
}

// ingestBatchSize is the number of chunks per bleve batch write. Large
// documents are split across batches written concurrently.
const ingestBatchSize = 128

// IndexChunks implements Ingestor. Chunks are written in batches of
// ingestBatchSize, up to four batches in flight; bleve indexes are safe for
// concurrent batch writes.
func (r *BleveRetriever) IndexChunks(ctx context.Context, chunks []datatypes.Chunk) error {
	ctx, span := bleveTracer.Start(ctx, "BleveRetriever.IndexChunks")
	defer span.End()
	span.SetAttributes(attribute.Int("retrieval.chunk_count", len(chunks)))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for start := 0; start < len(chunks); start += ingestBatchSize {
		end := start + ingestBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		part := chunks[start:end]
		g.Go(func() error {
			return r.writeBatch(part)
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	slog.Info("indexed chunks", "backend", "bleve", "count", len(chunks))
	return nil
}

func (r *BleveRetriever) writeBatch(chunks []datatypes.Chunk) error {
	batch := r.index.NewBatch()
	for _, ch := range chunks {
		doc := bleveChunkDoc{
			Content:   ch.Content,
			DocID:     ch.DocID,
			ChunkID:   ch.ChunkID,
			LineStart: ch.LineStart,
			LineEnd:   ch.LineEnd,
		}
		if err := batch.Index(ch.ChunkID, doc); err != nil {
			return fmt.Errorf("batching chunk %s: %w", ch.ChunkID, err)
		}
	}
	if err := r.index.Batch(batch); err != nil {
		return fmt.Errorf("writing bleve batch: %w", err)
	}
	return nil
}

// Retrieve implements Retriever with a match query over chunk content.
func (r *BleveRetriever) Retrieve(ctx context.Context, query string, topK int) ([]datatypes.EvidenceChunk, error) {
	ctx, span := bleveTracer.Start(ctx, "BleveRetriever.Retrieve")
	defer span.End()
	span.SetAttributes(attribute.Int("retrieval.top_k", topK))
	if topK <= 0 {
		topK = DefaultTopK
	}

	count, err := r.index.DocCount()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, &RetrievalError{Backend: "bleve", Err: err}
	}
	if count == 0 {
		return nil, &NoCorpusError{Backend: "bleve"}
	}

	match := bleve.NewMatchQuery(query)
	match.SetField("content")
	req := bleve.NewSearchRequestOptions(match, topK, 0, false)
	req.Fields = []string{"content", "doc_id", "chunk_id", "line_start", "line_end"}

	res, err := r.index.SearchInContext(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, &RetrievalError{Backend: "bleve", Err: err}
	}

	chunks := make([]datatypes.EvidenceChunk, 0, len(res.Hits))
	for _, hit := range res.Hits {
		chunks = append(chunks, datatypes.EvidenceChunk{
			Content:   asString(hit.Fields["content"]),
			DocID:     asString(hit.Fields["doc_id"]),
			ChunkID:   asString(hit.Fields["chunk_id"]),
			LineStart: int(asFloat(hit.Fields["line_start"])),
			LineEnd:   int(asFloat(hit.Fields["line_end"])),
			Relevance: hit.Score / (hit.Score + 1),
		})
	}
	span.SetAttributes(attribute.Int("retrieval.result_count", len(chunks)))
	return chunks, nil
}

// Fingerprint implements Retriever. The doc count is folded in so ingestion
// invalidates prior cache entries.
func (r *BleveRetriever) Fingerprint() string {
	count, _ := r.index.DocCount()
	return fmt.Sprintf("bleve:%s:%d", r.path, count)
}

// Close releases the underlying index.
func (r *BleveRetriever) Close() error {
	return r.index.Close()
}
