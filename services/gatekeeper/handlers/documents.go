// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianGate/services/gatekeeper/chunker"
	"github.com/AleutianAI/AleutianGate/services/gatekeeper/datatypes"
	"github.com/AleutianAI/AleutianGate/services/gatekeeper/retrieval"
)

// CreateDocument chunks the submitted document and indexes the chunks into
// the retrieval backend. Backends without in-process ingestion (remote
// vector stores populated out of band) get 501.
func CreateDocument(chk *chunker.Chunker, ingestor retrieval.Ingestor) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ingestor == nil {
			c.JSON(http.StatusNotImplemented,
				gin.H{"error": "configured retrieval backend does not accept direct ingestion"})
			return
		}

		var req datatypes.IngestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
			return
		}

		chunks := chk.Chunk(req.Content, req.Filename, req.Metadata)
		if len(chunks) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "document has no indexable content"})
			return
		}

		if err := ingestor.IndexChunks(c.Request.Context(), chunks); err != nil {
			slog.Error("document ingestion failed", "filename", req.Filename, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to index document"})
			return
		}

		slog.Info("document ingested",
			"filename", req.Filename, "doc_id", chunks[0].DocID, "chunks", len(chunks))
		c.JSON(http.StatusCreated, datatypes.IngestResponse{
			DocID:      chunks[0].DocID,
			ChunkCount: len(chunks),
		})
	}
}
