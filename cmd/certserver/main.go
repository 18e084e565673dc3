package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/adamscao/certvault/internal/api"
	"github.com/adamscao/certvault/internal/app"
	"github.com/adamscao/certvault/internal/config"
	"github.com/adamscao/certvault/internal/db"
	"github.com/adamscao/certvault/internal/db/repository"
	"github.com/adamscao/certvault/internal/issuance"
	"github.com/adamscao/certvault/internal/logging"
)

var (
	// Version information (set via ldflags)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "/etc/certvault/config.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("Certificate Vault Server\n")
		fmt.Printf("Version:    %s\n", Version)
		fmt.Printf("Commit:     %s\n", Commit)
		fmt.Printf("Build Time: %s\n", BuildTime)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format, "certserver")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("starting certificate vault server",
		zap.String("version", Version),
		zap.String("commit", Commit))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	logger.Info("connecting to database", zap.String("path", cfg.Database.Path))
	database, err := db.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	// Run migrations
	if err := db.RunMigrations(database); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	reg, closeRegistry, err := app.OpenRegistry(ctx, cfg, database)
	if err != nil {
		return err
	}
	defer closeRegistry()
	logger.Info("registry ready", zap.String("backend", cfg.Registry.Backend))

	exporter, closeExporter := app.NewExporter(cfg)
	defer closeExporter()

	commendations, err := app.NewCommendationGenerator(ctx, cfg, logger)
	if err != nil {
		return err
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(database.DB)
	auditRepo := repository.NewAuditRepository(database.DB)

	service := issuance.NewService(cfg, reg, exporter, logger)

	// Create HTTP server
	server := api.NewServer(cfg, api.Deps{
		UserRepo:      userRepo,
		AuditRepo:     auditRepo,
		Registry:      reg,
		Service:       service,
		Commendations: commendations,
		Logger:        logger,
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", zap.String("addr", cfg.Server.ListenAddr))
		errCh <- server.Run()
	}()

	// Wait for interrupt signal
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down cleanly: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
