package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/adamscao/certvault/internal/config"
	"github.com/adamscao/certvault/internal/db"
	"github.com/adamscao/certvault/internal/logging"
)

var (
	configPath string
	cfg        *config.Config
	database   *db.DB
	logger     *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "admin",
	Short: "Certificate vault administration tool",
	Long:  "Administrative tool for managing issuer accounts, certificates, and audit logs",
}

func init() {
	// Root flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "/etc/certvault/config.yaml", "Config file path")

	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(certCmd)
	rootCmd.AddCommand(auditCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initDB() error {
	// Load configuration
	var err error
	cfg, err = config.LoadWithEnv(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err = logging.NewLogger(cfg.Logging.Level, "console", "admin")
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	// Connect to database
	database, err = db.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.RunMigrations(database); err != nil {
		database.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func closeDB() {
	database.Close()
	_ = logger.Sync()
}

// signalContext is cancelled on Ctrl+C so a running issuance can be
// discarded before it commits
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
