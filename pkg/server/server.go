// Package server is the composition root for the Sparky recommender. It
// wires configuration, the graph store, the session store, the embedding
// and LLM clients, the three pipeline agents and the HTTP surface into one
// ready-to-serve unit.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/beedev/sparky/internal/api"
	"github.com/beedev/sparky/internal/api/handlers"
	"github.com/beedev/sparky/internal/compose"
	"github.com/beedev/sparky/internal/config"
	"github.com/beedev/sparky/internal/embeddings"
	"github.com/beedev/sparky/internal/graph"
	"github.com/beedev/sparky/internal/intent"
	"github.com/beedev/sparky/internal/llm"
	"github.com/beedev/sparky/internal/metrics"
	"github.com/beedev/sparky/internal/orchestrator"
	"github.com/beedev/sparky/internal/recommend"
	"github.com/beedev/sparky/internal/sessions"
	"github.com/beedev/sparky/internal/telemetry"
	"github.com/beedev/sparky/internal/vocabulary"
)

// Server holds the initialized recommender.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Port is the port the server should listen on.
	Port int

	// Close releases the graph driver and session pool.
	Close func()

	// ShutdownFunc flushes telemetry; call it on graceful shutdown.
	ShutdownFunc func(context.Context) error
}

// New initializes all components from environment configuration.
func New(ctx context.Context) (*Server, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration: %w", err)
	}
	return NewWithConfig(ctx, cfg)
}

// NewWithConfig initializes the recommender with an explicit configuration.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*Server, error) {
	shutdown, err := telemetry.Init(cfg.Telemetry, cfg.Version, log.Logger)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	vocab, err := vocabulary.Load(cfg.WeldingProcessesPath)
	if err != nil {
		return nil, fmt.Errorf("load welding vocabulary: %w", err)
	}
	modes, err := intent.LoadModeConfig(cfg.ModeDetectionPath)
	if err != nil {
		return nil, fmt.Errorf("load mode detection config: %w", err)
	}

	graphStore, err := graph.New(ctx, cfg.Graph)
	if err != nil {
		return nil, fmt.Errorf("connect graph: %w", err)
	}
	log.Info().Str("uri", cfg.Graph.URI).Msg("graph store connected")

	// Sessions degrade to in-memory when Postgres is not configured; chat
	// still works, history just does not survive restarts.
	var sessionStore sessions.Store
	var relationalCheck handlers.HealthChecker
	if cfg.Relational.Password != "" {
		pg, err := sessions.NewPostgres(ctx, cfg.Relational, log.Logger)
		if err != nil {
			graphStore.Close(ctx)
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		sessionStore = pg
		relationalCheck = pg
		log.Info().Str("host", cfg.Relational.Host).Msg("session store connected")
	} else {
		sessionStore = sessions.NewMemory()
		log.Info().Msg("session store running in memory")
	}

	embedDriver, err := embeddings.NewDriver(cfg.Embeddings.Kind, cfg.Embeddings.Endpoint,
		cfg.Embeddings.APIKey, cfg.Embeddings.Model, cfg.Embeddings.Dimensions)
	if err != nil {
		graphStore.Close(ctx)
		sessionStore.Close()
		return nil, fmt.Errorf("embedding driver: %w", err)
	}
	embedService := embeddings.NewService(embedDriver, vocab)
	log.Info().
		Str("driver", embedDriver.Kind()).
		Int("dimensions", embedService.Dimensions()).
		Msg("embedding service ready")
	llmClient := llm.New(cfg.LLM)

	processor := intent.NewProcessor(llmClient, vocab, modes, log.Logger)
	engine := recommend.NewEngine(graphStore, embedService, cfg.Engine, log.Logger)
	composer := compose.NewComposer(cfg.Engine, log.Logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	pipelineMetrics := metrics.NewPipeline(registry)

	orch := orchestrator.New(processor, engine, composer, cfg.Engine.StageTimeout, log.Logger).
		WithObserver(pipelineMetrics)

	h := handlers.New(orch, sessionStore, pipelineMetrics)
	h.Graph = graphStore
	h.Relational = relationalCheck
	h.Embeddings = embedService
	h.LLM = llmClient

	router := api.NewRouter(cfg, h, registry)

	return &Server{
		Handler: router,
		Port:    cfg.Port,
		Close: func() {
			sessionStore.Close()
			graphStore.Close(context.Background())
		},
		ShutdownFunc: shutdown,
	}, nil
}
