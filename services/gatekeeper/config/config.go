// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads and validates the gatekeeper's environment-driven
// configuration.
//
// # Description
//
//	All settings come from GATEKEEPER_* environment variables with sensible
//	defaults; provider credentials (OPENAI_API_KEY, OLLAMA_BASE_URL) are read
//	by the backend constructors themselves. Validation is fatal at startup:
//	a misconfigured gatekeeper refuses to boot rather than degrade silently.
//
// # Assumptions
//   - Backend selection happens exactly once at startup; there is no
//     hot-reload.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// Backend selector values.
const (
	RetrievalWeaviate = "weaviate"
	RetrievalBleve    = "bleve"
	RetrievalStub     = "stub"

	GenerationOpenAI = "openai"
	GenerationOllama = "ollama"
	GenerationStub   = "stub"

	EmbeddingOpenAI = "openai"
	EmbeddingStub   = "stub"

	StoreBadger = "badger"
	StoreMemory = "memory"
)

// Config is the gatekeeper's complete startup configuration.
type Config struct {
	Port    int    `validate:"gte=1,lte=65535"`
	GinMode string `validate:"omitempty,oneof=debug release test"`

	RetrievalBackend  string `validate:"oneof=weaviate bleve stub"`
	GenerationBackend string `validate:"oneof=openai ollama stub"`
	EmbeddingBackend  string `validate:"oneof=openai stub"`
	StoreBackend      string `validate:"oneof=badger memory"`

	WeaviateURL    string `validate:"omitempty,url"`
	WeaviateClass  string
	BleveIndexPath string
	BadgerPath     string

	ChunkSize    int `validate:"gt=0"`
	ChunkOverlap int `validate:"gte=0"`
	TopK         int `validate:"gt=0,lte=50"`
	HistoryLimit int `validate:"gt=0"`

	GroundingThreshold float64 `validate:"gte=0,lte=1"`

	CacheTTL     time.Duration
	CacheMaxSize int `validate:"gt=0"`

	RateLimitRPS   float64 `validate:"gt=0"`
	RateLimitBurst int     `validate:"gt=0"`

	OTelEndpoint  string
	EnableMetrics bool
}

// Load reads the environment, applies defaults, and validates. Returns an
// error rather than a partially-usable config.
func Load() (Config, error) {
	cfg := Config{
		Port:               envInt("GATEKEEPER_PORT", 12230),
		GinMode:            os.Getenv("GIN_MODE"),
		RetrievalBackend:   envString("GATEKEEPER_RETRIEVAL_BACKEND", RetrievalStub),
		GenerationBackend:  envString("GATEKEEPER_GENERATION_BACKEND", GenerationStub),
		EmbeddingBackend:   envString("GATEKEEPER_EMBEDDING_BACKEND", EmbeddingStub),
		StoreBackend:       envString("GATEKEEPER_STORE_BACKEND", StoreMemory),
		WeaviateURL:        os.Getenv("WEAVIATE_URL"),
		WeaviateClass:      envString("GATEKEEPER_WEAVIATE_CLASS", "DocumentChunk"),
		BleveIndexPath:     envString("GATEKEEPER_BLEVE_PATH", "./data/bleve"),
		BadgerPath:         envString("GATEKEEPER_BADGER_PATH", "./data/conversations"),
		ChunkSize:          envInt("GATEKEEPER_CHUNK_SIZE", 512),
		ChunkOverlap:       envInt("GATEKEEPER_CHUNK_OVERLAP", 50),
		TopK:               envInt("GATEKEEPER_TOP_K", 5),
		HistoryLimit:       envInt("GATEKEEPER_HISTORY_LIMIT", 10),
		GroundingThreshold: envFloat("GATEKEEPER_GROUNDING_THRESHOLD", 0.62),
		CacheTTL:           envDuration("GATEKEEPER_CACHE_TTL", time.Hour),
		CacheMaxSize:       envInt("GATEKEEPER_CACHE_MAX_SIZE", 1000),
		RateLimitRPS:       envFloat("GATEKEEPER_RATE_LIMIT_RPS", 2),
		RateLimitBurst:     envInt("GATEKEEPER_RATE_LIMIT_BURST", 5),
		OTelEndpoint:       envString("OTEL_EXPORTER_OTLP_ENDPOINT", "aleutian-otel-collector:4317"),
		EnableMetrics:      envBool("GATEKEEPER_ENABLE_METRICS", true),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate enforces field constraints plus the cross-field rules the struct
// tags cannot express.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("invalid configuration: chunk overlap (%d) must be smaller than chunk size (%d)",
			c.ChunkOverlap, c.ChunkSize)
	}
	if c.RetrievalBackend == RetrievalWeaviate && c.WeaviateURL == "" {
		return fmt.Errorf("invalid configuration: WEAVIATE_URL is required for the weaviate retrieval backend")
	}
	return nil
}

// =============================================================================
// Env helpers
// =============================================================================

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envFloat(key string, fallback float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}

func envBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return v
}
