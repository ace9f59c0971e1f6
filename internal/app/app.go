// Package app provides application initialization and dependency injection
// for the MCP server process: config → logger → tracing → backends.
//
// Each dependency has its own provide function; Setup composes them and App
// carries the results. Backends are constructed eagerly so misconfiguration
// surfaces at startup, but none of them dials anything until the first tool
// call: object-store clients are lazy by construction and the database tools
// connect per call.
package app

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/quarryhq/quarry/internal/config"
	"github.com/quarryhq/quarry/internal/log"
	"github.com/quarryhq/quarry/internal/objstore"
	"github.com/quarryhq/quarry/internal/observability"
	"github.com/quarryhq/quarry/internal/relational"
	"github.com/quarryhq/quarry/internal/vector"
)

// App is the application container for the MCP server.
type App struct {
	Config *config.Config
	Logger log.Logger

	ObjectStore *objstore.Client
	Relational  *relational.Tools
	Vector      *vector.Store

	otelShutdown func(context.Context) error
}

// Setup creates and initializes the application. Call Close to release.
func Setup(ctx context.Context, cfg *config.Config) (_ *App, retErr error) {
	a := &App{Config: cfg}

	defer func() {
		if retErr != nil {
			a.Close()
		}
	}()

	logger, err := provideLogger(cfg)
	if err != nil {
		return nil, err
	}
	a.Logger = logger

	if cfg.Otel.Enabled {
		shutdown, err := observability.Setup(ctx, observability.Config{
			Endpoint:    cfg.Otel.Endpoint,
			ServiceName: cfg.Otel.ServiceName,
			Environment: cfg.Otel.Environment,
		}, logger)
		if err != nil {
			return nil, err
		}
		a.otelShutdown = shutdown
	}

	store, err := provideObjectStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.ObjectStore = store

	rel, err := provideRelational(cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Relational = rel

	vec, err := provideVector(cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Vector = vec

	return a, nil
}

// Close flushes pending telemetry. The backends hold no persistent
// connections, so there is nothing else to release.
func (a *App) Close() {
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.otelShutdown(ctx); err != nil && a.Logger != nil {
			a.Logger.Warn("flushing traces", "error", err)
		}
	}
}

func provideLogger(cfg *config.Config) (log.Logger, error) {
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return log.New(log.Config{
		Level:     level,
		JSON:      cfg.Log.JSON,
		AddSource: cfg.Log.AddSource,
	}), nil
}

func provideObjectStore(ctx context.Context, cfg *config.Config, logger log.Logger) (*objstore.Client, error) {
	if err := cfg.ObjectStore.Validate(); err != nil {
		return nil, err
	}
	return objstore.New(ctx, objstore.Config{
		Region:    cfg.ObjectStore.Region,
		Endpoint:  cfg.ObjectStore.Endpoint,
		AccessKey: cfg.ObjectStore.AccessKey,
		SecretKey: cfg.ObjectStore.SecretKey,
	}, logger)
}

func provideRelational(cfg *config.Config, logger log.Logger) (*relational.Tools, error) {
	if err := cfg.Postgres.Validate(); err != nil {
		return nil, err
	}
	return relational.New(cfg.Postgres.URL, logger), nil
}

// provideVector builds the vector store. The embedder is optional: without an
// API key, pgvector_search still works with caller-supplied embedding arrays
// and fails with a validation fault only for plain-text queries.
func provideVector(cfg *config.Config, logger log.Logger) (*vector.Store, error) {
	if err := cfg.Vector.Validate(); err != nil {
		return nil, err
	}

	var embedder vector.Embedder
	if cfg.Embedding.APIKey != "" {
		if err := cfg.Embedding.Validate(); err != nil {
			return nil, err
		}
		embedder = vector.NewOpenAIEmbedder(vector.EmbedderConfig{
			APIKey:    cfg.Embedding.APIKey,
			BaseURL:   cfg.Embedding.BaseURL,
			Model:     cfg.Embedding.Model,
			RateLimit: rate.Limit(cfg.Embedding.RateLimit),
			RateBurst: cfg.Embedding.RateBurst,
		}, logger)
	} else {
		logger.Warn("no embedding API key configured; pgvector_search accepts only ready-made embeddings")
	}

	return vector.NewStore(cfg.Postgres.URL, embedder, logger), nil
}
