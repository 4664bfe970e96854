// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command gatekeeper starts the guarded generation HTTP server.
//
// Configuration comes from environment variables; see the config package
// for the full list. Validation failures are fatal at startup.
//
// # Environment Variables
//
//   - GATEKEEPER_PORT: HTTP server port (default: 12230)
//   - GATEKEEPER_RETRIEVAL_BACKEND: weaviate, bleve, or stub (default: stub)
//   - GATEKEEPER_GENERATION_BACKEND: openai, ollama, or stub (default: stub)
//   - GATEKEEPER_STORE_BACKEND: badger or memory (default: memory)
//   - WEAVIATE_URL: vector DB URL, required for the weaviate backend
//   - OPENAI_API_KEY: required for the openai backends
//     (falls back to /run/secrets/openai_api_key)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: collector endpoint
//     (default: aleutian-otel-collector:4317)
//
// # Usage
//
//	go build -o gatekeeper ./cmd/gatekeeper
//	./gatekeeper
package main

import (
	"log"
	"log/slog"
	"os"

	"github.com/AleutianAI/AleutianGate/services/gatekeeper"
	"github.com/AleutianAI/AleutianGate/services/gatekeeper/config"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid gatekeeper configuration: %v", err)
	}

	slog.Info("starting gatekeeper",
		"port", cfg.Port,
		"retrieval_backend", cfg.RetrievalBackend,
		"generation_backend", cfg.GenerationBackend,
		"embedding_backend", cfg.EmbeddingBackend,
		"store_backend", cfg.StoreBackend,
	)

	svc, err := gatekeeper.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create gatekeeper: %v", err)
	}

	if err := svc.Run(); err != nil {
		log.Fatalf("Gatekeeper error: %v", err)
	}
}
