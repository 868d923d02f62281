package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/josh-kwaku/starbridge/internal/config"
	"github.com/josh-kwaku/starbridge/internal/logging"
	"github.com/josh-kwaku/starbridge/internal/repository"
)

var Version = "dev"

var jsonOutput bool

func main() {
	rootCmd := &cobra.Command{
		Use:           "settlectl",
		Short:         "Operator tooling for the Star Bridge settlement service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print results as JSON")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(paymentsCmd())
	rootCmd.AddCommand(vaultCmd())
	rootCmd.AddCommand(tokenCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.CLIConfig, error) {
	cfg, err := config.LoadCLI()
	if err != nil {
		return nil, err
	}
	logging.Init("settlectl", cfg.LogLevel, cfg.AppEnv)
	return cfg, nil
}

func openDB(ctx context.Context, cfg *config.CLIConfig) (*sql.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	return repository.NewPostgresDB(ctx, cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:     2,
		MaxIdleConns:     1,
		ConnMaxLifetimeS: 60,
		ConnMaxIdleTimeS: 30,
		ConnectTimeout:   10 * time.Second,
	})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
