package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/adamscao/certvault/internal/commendation"
	"github.com/adamscao/certvault/internal/config"
	"github.com/adamscao/certvault/internal/db"
	"github.com/adamscao/certvault/internal/db/repository"
	"github.com/adamscao/certvault/internal/models"
	"github.com/adamscao/certvault/internal/registry"
	"github.com/adamscao/certvault/internal/registry/registrytest"
	"github.com/adamscao/certvault/internal/render"
)

func setupTestDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "certvault.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	require.NoError(t, db.RunMigrations(database))
	return database
}

func TestOpenRegistry(t *testing.T) {
	ctx := context.Background()
	database := setupTestDB(t)

	t.Run("sqlite", func(t *testing.T) {
		cfg := config.Default()
		reg, closeFn, err := OpenRegistry(ctx, cfg, database)
		require.NoError(t, err)
		defer closeFn()
		assert.IsType(t, &repository.CertRepository{}, reg)
	})

	t.Run("memory", func(t *testing.T) {
		cfg := config.Default()
		cfg.Registry.Backend = "memory"
		reg, _, err := OpenRegistry(ctx, cfg, database)
		require.NoError(t, err)
		assert.IsType(t, &registry.MemoryRegistry{}, reg)
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := config.Default()
		cfg.Registry.Backend = "redis"
		cfg.Registry.Redis.Addr = mr.Addr()

		reg, closeFn, err := OpenRegistry(ctx, cfg, database)
		require.NoError(t, err)
		defer closeFn()

		require.NoError(t, reg.Append(ctx, registrytest.Record("MANAS360-CERT-2025-000001", "meera", models.RoleTherapist, time.Now())))
		assert.True(t, mr.Exists("certificates"))
	})

	t.Run("redis unreachable", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()

		cfg := config.Default()
		cfg.Registry.Backend = "redis"
		cfg.Registry.Redis.Addr = addr
		_, _, err := OpenRegistry(ctx, cfg, database)
		assert.Error(t, err)
	})

	t.Run("unknown", func(t *testing.T) {
		cfg := config.Default()
		cfg.Registry.Backend = "etcd"
		_, _, err := OpenRegistry(ctx, cfg, database)
		assert.Error(t, err)
	})
}

func TestNewExporter(t *testing.T) {
	cfg := config.Default()
	e, closeFn := NewExporter(cfg)
	assert.IsType(t, render.HTMLExporter{}, e)
	assert.NoError(t, closeFn())

	cfg.Render.Exporter = "chrome"
	e, closeFn = NewExporter(cfg)
	assert.IsType(t, &render.ChromeExporter{}, e)
	assert.NoError(t, closeFn())
}

func TestNewCommendationGenerator_WithoutKey(t *testing.T) {
	g, err := NewCommendationGenerator(context.Background(), config.Default(), zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, commendation.StaticGenerator{}, g)
}
