// Package main provides a CLI tool for running database migrations.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/scenario-simulator/internal/config"
	"github.com/scenario-simulator/internal/logging"
	"github.com/scenario-simulator/internal/storage"
)

func main() {
	var (
		action = flag.String("action", "up", "Migration action: up, down, version")
		dbType = flag.String("db", "postgres", "Database type: postgres, clickhouse")
	)
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format)).
		WithComponent("migrate")

	switch *dbType {
	case "postgres":
		if err := runPostgresMigrations(cfg, *action, logger); err != nil {
			logger.WithError(err).Fatal("Postgres migration failed")
		}
	case "clickhouse":
		if err := runClickHouseMigrations(cfg, *action, logger); err != nil {
			logger.WithError(err).Fatal("ClickHouse migration failed")
		}
	default:
		logger.WithField("db", *dbType).Fatal("Unknown database type")
	}
}

func runPostgresMigrations(cfg *config.Config, action string, logger *logging.Logger) error {
	databaseURL := cfg.Database.Postgres.URL()
	migrationsPath := cfg.Database.Postgres.MigrationsPath
	if migrationsPath == "" {
		migrationsPath = "migrations/postgres"
	}

	switch action {
	case "up":
		logger.Info("Running Postgres migrations...")
		if err := storage.RunMigrations(databaseURL, migrationsPath); err != nil {
			return err
		}
		logger.Info("Postgres migrations completed successfully")

	case "down":
		logger.Info("Rolling back Postgres migration...")
		if err := storage.RollbackMigrations(databaseURL, migrationsPath); err != nil {
			return err
		}
		logger.Info("Postgres migration rolled back successfully")

	case "version":
		version, dirty, err := storage.MigrationVersion(databaseURL, migrationsPath)
		if err != nil {
			return err
		}
		logger.WithFields(map[string]interface{}{
			"version": version,
			"dirty":   dirty,
		}).Info("Current Postgres migration version")

	default:
		return fmt.Errorf("unknown action: %s", action)
	}

	return nil
}

func runClickHouseMigrations(cfg *config.Config, action string, logger *logging.Logger) error {
	if action != "up" {
		return fmt.Errorf("ClickHouse migrations only support 'up' action")
	}

	logger.Info("Connecting to ClickHouse...")
	db, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
	if err != nil {
		return fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.WithError(err).Warn("Error closing ClickHouse connection")
		}
	}()

	migrationsPath := "migrations/clickhouse"
	if _, err := os.Stat(migrationsPath); os.IsNotExist(err) {
		return fmt.Errorf("migrations directory not found: %s", migrationsPath)
	}

	return storage.RunClickHouseMigrations(context.Background(), db, migrationsPath, logger)
}
