// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package gatekeeper assembles the guarded generation service.
//
// # Description
//
//	The gatekeeper answers questions over an operator-supplied corpus with
//	guardrails on both sides of the model: prompt-injection and PII checks
//	on input, grounding and attribution checks on output. This package owns
//	the service lifecycle: configuration, backend selection, OpenTelemetry
//	tracing, HTTP routing, and cleanup. All request semantics live in the
//	pipeline package.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svc, err := gatekeeper.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
//
// # Assumptions
//   - Backends named in config are reachable at startup; a backend that
//     fails to initialize is fatal, never silently swapped for the stub.
package gatekeeper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/AleutianAI/AleutianGate/services/gatekeeper/attribution"
	"github.com/AleutianAI/AleutianGate/services/gatekeeper/chunker"
	"github.com/AleutianAI/AleutianGate/services/gatekeeper/config"
	"github.com/AleutianAI/AleutianGate/services/gatekeeper/conversation"
	"github.com/AleutianAI/AleutianGate/services/gatekeeper/generation"
	"github.com/AleutianAI/AleutianGate/services/gatekeeper/guardrails"
	"github.com/AleutianAI/AleutianGate/services/gatekeeper/middleware"
	"github.com/AleutianAI/AleutianGate/services/gatekeeper/observability"
	"github.com/AleutianAI/AleutianGate/services/gatekeeper/pipeline"
	"github.com/AleutianAI/AleutianGate/services/gatekeeper/retrieval"
	"github.com/AleutianAI/AleutianGate/services/gatekeeper/routes"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service is the gatekeeper lifecycle contract.
//
// # Limitations
//
//   - Run() blocks until the server stops; no graceful shutdown yet
//
// # Assumptions
//
//   - Run() is called at most once per instance
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	Run() error

	// Router returns the configured Gin engine for integration tests.
	Router() *gin.Engine
}

// =============================================================================
// Implementation
// =============================================================================

// service wires the capability backends selected by config into the
// pipeline and exposes them over HTTP. All fields are read-only after New.
type service struct {
	cfg           config.Config
	router        *gin.Engine
	pipeline      *pipeline.Pipeline
	retriever     retrieval.Retriever
	ingestor      retrieval.Ingestor
	generator     generation.Generator
	embedder      generation.Embedder
	store         conversation.Store
	obs           *observability.Observability
	chunker       *chunker.Chunker
	tracerCleanup func(context.Context)
	closers       []func() error
}

var _ Service = (*service)(nil)

// =============================================================================
// Constructor
// =============================================================================

// New builds a ready-to-run gatekeeper from validated configuration.
//
// # Description
//
//	Initialization order: tracer, stores, retrieval, generation, pipeline,
//	router. Backend selection happens here exactly once; the pipeline never
//	learns which backend it is talking to. Any backend failure aborts
//	construction after releasing what was already opened.
func New(cfg config.Config) (Service, error) {
	s := &service{cfg: cfg}

	cleanup, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	s.obs = observability.New(observability.Config{
		EnableTokenLogging: true,
		EnableCache:        true,
		CacheTTL:           cfg.CacheTTL,
		CacheMaxSize:       cfg.CacheMaxSize,
	})

	s.chunker, err = chunker.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize chunker: %w", err)
	}

	if err := s.initStore(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize conversation store: %w", err)
	}
	if err := s.initGeneration(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize generation backend: %w", err)
	}
	if err := s.initRetrieval(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize retrieval backend: %w", err)
	}

	s.pipeline, err = pipeline.New(
		pipeline.Config{
			TopK:         cfg.TopK,
			HistoryLimit: cfg.HistoryLimit,
			Instructions: generation.DefaultInstructions,
		},
		pipeline.Deps{
			Guardrails: guardrails.NewEngine(guardrails.Config{
				EnableInjectionDetection: true,
				EnablePIIRedaction:       true,
				EnableGroundingCheck:     true,
				GroundingThreshold:       cfg.GroundingThreshold,
			}),
			Attribution:   attribution.NewEngine(attribution.Config{}),
			Retriever:     s.retriever,
			Generator:     s.generator,
			Embedder:      s.embedder,
			Store:         s.store,
			Observability: s.obs,
		})
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to assemble pipeline: %w", err)
	}

	s.initRouter()
	return s, nil
}

// =============================================================================
// Service Interface Methods
// =============================================================================

// Run starts the HTTP server and blocks until it stops. Cleanup runs on
// return.
func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.cfg.Port)
	slog.Info("starting gatekeeper server",
		"port", s.cfg.Port,
		"retrieval_backend", s.cfg.RetrievalBackend,
		"generation_backend", s.cfg.GenerationBackend,
		"store_backend", s.cfg.StoreBackend)

	return s.router.Run(addr)
}

func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// initTracer sets up the OTLP trace exporter over insecure gRPC, which is
// appropriate for the internal collector network.
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.cfg.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("gatekeeper-service")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

func (s *service) initStore() error {
	switch s.cfg.StoreBackend {
	case config.StoreBadger:
		store, err := conversation.NewBadgerStore(s.cfg.BadgerPath)
		if err != nil {
			return err
		}
		s.store = store
		s.closers = append(s.closers, store.Close)
		slog.Info("using badger conversation store", "path", s.cfg.BadgerPath)
	case config.StoreMemory:
		s.store = conversation.NewMemoryStore()
		slog.Info("using in-memory conversation store")
	default:
		return fmt.Errorf("unknown store backend %q", s.cfg.StoreBackend)
	}
	return nil
}

func (s *service) initGeneration() error {
	switch s.cfg.GenerationBackend {
	case config.GenerationOpenAI:
		gen, err := generation.NewOpenAIGenerator()
		if err != nil {
			return err
		}
		s.generator = gen
		slog.Info("using OpenAI generation backend", "model", gen.Model())
	case config.GenerationOllama:
		gen, err := generation.NewOllamaGenerator()
		if err != nil {
			return err
		}
		s.generator = gen
		slog.Info("using Ollama generation backend", "model", gen.Model())
	case config.GenerationStub:
		s.generator = generation.NewStubGenerator()
		slog.Info("using stub generation backend")
	default:
		return fmt.Errorf("unknown generation backend %q", s.cfg.GenerationBackend)
	}

	switch s.cfg.EmbeddingBackend {
	case config.EmbeddingOpenAI:
		emb, err := generation.NewOpenAIEmbedder()
		if err != nil {
			return err
		}
		s.embedder = emb
		slog.Info("using OpenAI embedding backend", "model", emb.Model())
	case config.EmbeddingStub:
		s.embedder = generation.NewStubEmbedder(0)
		slog.Info("using stub embedding backend")
	default:
		return fmt.Errorf("unknown embedding backend %q", s.cfg.EmbeddingBackend)
	}
	return nil
}

func (s *service) initRetrieval() error {
	switch s.cfg.RetrievalBackend {
	case config.RetrievalWeaviate:
		client, err := newWeaviateClient(s.cfg.WeaviateURL)
		if err != nil {
			return err
		}
		retriever, err := retrieval.NewWeaviateRetriever(client, s.cfg.WeaviateClass, s.embedder)
		if err != nil {
			return err
		}
		// Weaviate indexes are populated out of band; no local ingestor.
		s.retriever = retriever
		slog.Info("using weaviate retrieval backend",
			"url", s.cfg.WeaviateURL, "class", s.cfg.WeaviateClass)
	case config.RetrievalBleve:
		retriever, err := retrieval.NewBleveRetriever(s.cfg.BleveIndexPath)
		if err != nil {
			return err
		}
		s.retriever = retriever
		s.ingestor = retriever
		s.closers = append(s.closers, retriever.Close)
		slog.Info("using bleve retrieval backend", "path", s.cfg.BleveIndexPath)
	case config.RetrievalStub:
		retriever := retrieval.NewStubRetriever()
		s.retriever = retriever
		s.ingestor = retriever
		slog.Info("using stub retrieval backend")
	default:
		return fmt.Errorf("unknown retrieval backend %q", s.cfg.RetrievalBackend)
	}
	return nil
}

func newWeaviateClient(rawURL string) (*weaviate.Client, error) {
	parsed, err := url.Parse(strings.Trim(rawURL, "\"' "))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid Weaviate URL: %s", rawURL)
	}
	return weaviate.NewClient(weaviate.Config{
		Host:   parsed.Host,
		Scheme: parsed.Scheme,
	})
}

func (s *service) initRouter() {
	if s.cfg.GinMode != "" {
		gin.SetMode(s.cfg.GinMode)
	}
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("gatekeeper-service"))

	routes.SetupRoutes(s.router, routes.Deps{
		Pipeline:      s.pipeline,
		Chunker:       s.chunker,
		Ingestor:      s.ingestor,
		Store:         s.store,
		Observability: s.obs,
		RateLimit: middleware.RateLimiterConfig{
			RequestsPerSecond: s.cfg.RateLimitRPS,
			Burst:             s.cfg.RateLimitBurst,
		},
	})
}

// cleanup releases backends in reverse acquisition order, then flushes the
// tracer.
func (s *service) cleanup() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			slog.Warn("backend close error", "error", err)
		}
	}
	s.closers = nil

	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}
