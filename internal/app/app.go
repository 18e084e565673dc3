// Package app builds the collaborators shared by the server and the admin
// tool from configuration.
package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/adamscao/certvault/internal/commendation"
	"github.com/adamscao/certvault/internal/config"
	"github.com/adamscao/certvault/internal/db"
	"github.com/adamscao/certvault/internal/db/repository"
	"github.com/adamscao/certvault/internal/registry"
	"github.com/adamscao/certvault/internal/render"
)

// OpenRegistry returns the registry backend named in cfg. The returned
// close function releases backend connections; it does not close database.
func OpenRegistry(ctx context.Context, cfg *config.Config, database *db.DB) (registry.Registry, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Registry.Backend {
	case "sqlite", "":
		return repository.NewCertRepository(database.DB), noop, nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Registry.Redis.Addr,
			Password: cfg.Registry.Redis.Password,
			DB:       cfg.Registry.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Registry.Redis.Addr, err)
		}
		return registry.NewRedisRegistry(client, cfg.Registry.Redis.Key), client.Close, nil

	case "memory":
		return registry.NewMemoryRegistry(), noop, nil

	default:
		return nil, nil, fmt.Errorf("unknown registry backend %q", cfg.Registry.Backend)
	}
}

// NewExporter returns the document exporter named in cfg
func NewExporter(cfg *config.Config) (render.Exporter, func() error) {
	if cfg.Render.Exporter == "chrome" {
		e := render.NewChromeExporter(cfg.Render.ChromeBin)
		return e, e.Close
	}
	return render.HTMLExporter{}, func() error { return nil }
}

// NewCommendationGenerator returns a Gemini backed generator when an API key
// is configured and the fixed fallback generator otherwise
func NewCommendationGenerator(ctx context.Context, cfg *config.Config, logger *zap.Logger) (commendation.Generator, error) {
	if cfg.Commendation.APIKey == "" {
		logger.Info("no commendation API key configured, using fallback commendations")
		return commendation.StaticGenerator{}, nil
	}

	g, err := commendation.NewGenAIGenerator(ctx, cfg.Commendation.APIKey, cfg.Commendation.Model, cfg.GetCommendationTimeout(), logger)
	if err != nil {
		return nil, err
	}
	return g, nil
}
