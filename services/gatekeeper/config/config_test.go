// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load with clean env: %v", err)
	}
	if cfg.Port != 12230 {
		t.Errorf("Port = %d, want 12230", cfg.Port)
	}
	if cfg.RetrievalBackend != RetrievalStub {
		t.Errorf("RetrievalBackend = %q, want stub", cfg.RetrievalBackend)
	}
	if cfg.ChunkSize != 512 || cfg.ChunkOverlap != 50 {
		t.Errorf("chunking = %d/%d, want 512/50", cfg.ChunkSize, cfg.ChunkOverlap)
	}
	if cfg.GroundingThreshold != 0.62 {
		t.Errorf("GroundingThreshold = %v, want 0.62", cfg.GroundingThreshold)
	}
	if cfg.CacheTTL != time.Hour {
		t.Errorf("CacheTTL = %v, want 1h", cfg.CacheTTL)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GATEKEEPER_PORT", "9000")
	t.Setenv("GATEKEEPER_RETRIEVAL_BACKEND", "bleve")
	t.Setenv("GATEKEEPER_TOP_K", "3")
	t.Setenv("GATEKEEPER_CACHE_TTL", "30m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Port)
	}
	if cfg.RetrievalBackend != RetrievalBleve {
		t.Errorf("RetrievalBackend = %q, want bleve", cfg.RetrievalBackend)
	}
	if cfg.TopK != 3 {
		t.Errorf("TopK = %d, want 3", cfg.TopK)
	}
	if cfg.CacheTTL != 30*time.Minute {
		t.Errorf("CacheTTL = %v, want 30m", cfg.CacheTTL)
	}
}

func TestLoad_UnparseableValuesFallBack(t *testing.T) {
	t.Setenv("GATEKEEPER_PORT", "not-a-number")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 12230 {
		t.Errorf("Port = %d, want default 12230", cfg.Port)
	}
}

func TestValidate_RejectsUnknownBackend(t *testing.T) {
	t.Setenv("GATEKEEPER_RETRIEVAL_BACKEND", "pinecone")
	if _, err := Load(); err == nil {
		t.Fatal("unknown retrieval backend accepted")
	}
}

func TestValidate_RejectsOverlapNotSmallerThanSize(t *testing.T) {
	t.Setenv("GATEKEEPER_CHUNK_SIZE", "100")
	t.Setenv("GATEKEEPER_CHUNK_OVERLAP", "100")
	_, err := Load()
	if err == nil {
		t.Fatal("overlap == size accepted")
	}
	if !strings.Contains(err.Error(), "overlap") {
		t.Errorf("error should name the overlap rule: %v", err)
	}
}

func TestValidate_WeaviateRequiresURL(t *testing.T) {
	t.Setenv("GATEKEEPER_RETRIEVAL_BACKEND", "weaviate")
	if _, err := Load(); err == nil {
		t.Fatal("weaviate backend without WEAVIATE_URL accepted")
	}

	t.Setenv("WEAVIATE_URL", "http://localhost:8080")
	if _, err := Load(); err != nil {
		t.Fatalf("weaviate backend with URL rejected: %v", err)
	}
}
