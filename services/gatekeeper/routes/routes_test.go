// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianGate/services/gatekeeper/attribution"
	"github.com/AleutianAI/AleutianGate/services/gatekeeper/chunker"
	"github.com/AleutianAI/AleutianGate/services/gatekeeper/conversation"
	"github.com/AleutianAI/AleutianGate/services/gatekeeper/generation"
	"github.com/AleutianAI/AleutianGate/services/gatekeeper/guardrails"
	"github.com/AleutianAI/AleutianGate/services/gatekeeper/middleware"
	"github.com/AleutianAI/AleutianGate/services/gatekeeper/observability"
	"github.com/AleutianAI/AleutianGate/services/gatekeeper/pipeline"
	"github.com/AleutianAI/AleutianGate/services/gatekeeper/retrieval"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testDeps(t *testing.T) Deps {
	t.Helper()
	retriever := retrieval.NewStubRetriever()
	store := conversation.NewMemoryStore()
	obs := observability.New(observability.Config{EnableTokenLogging: true, EnableCache: true})
	p, err := pipeline.New(pipeline.Config{}, pipeline.Deps{
		Guardrails:    guardrails.NewEngine(guardrails.Config{EnableInjectionDetection: true}),
		Attribution:   attribution.NewEngine(attribution.Config{}),
		Retriever:     retriever,
		Generator:     generation.NewStubGenerator(),
		Store:         store,
		Observability: obs,
	})
	require.NoError(t, err)
	chk, err := chunker.New(0, 0)
	require.NoError(t, err)
	return Deps{
		Pipeline:      p,
		Chunker:       chk,
		Ingestor:      retriever,
		Store:         store,
		Observability: obs,
		RateLimit:     middleware.RateLimiterConfig{},
	}
}

// TestSetupRoutes_RegistersFullSurface verifies every public endpoint is
// present after setup.
func TestSetupRoutes_RegistersFullSurface(t *testing.T) {
	router := gin.New()
	SetupRoutes(router, testDeps(t))

	expected := []struct {
		method string
		path   string
	}{
		{"GET", "/health"},
		{"GET", "/metrics"},
		{"POST", "/api/v1/chat"},
		{"POST", "/api/v1/chat/stream"},
		{"POST", "/api/v1/documents"},
		{"GET", "/api/v1/sessions/:sessionId/history"},
		{"GET", "/api/v1/stats"},
		{"POST", "/api/v1/cache/clear"},
	}

	registered := router.Routes()
	for _, want := range expected {
		found := false
		for _, r := range registered {
			if r.Method == want.method && r.Path == want.path {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("route %s %s not registered", want.method, want.path)
		}
	}
}

// TestSetupRoutes_NilIngestorDoesNotPanic verifies backends without direct
// ingestion still get a route table.
func TestSetupRoutes_NilIngestorDoesNotPanic(t *testing.T) {
	deps := testDeps(t)
	deps.Ingestor = nil
	router := gin.New()
	SetupRoutes(router, deps)
	require.NotEmpty(t, router.Routes())
}
