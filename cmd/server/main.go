// Package main provides the API server entry point for the scenario simulator.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/scenario-simulator/internal/api"
	"github.com/scenario-simulator/internal/app"
	"github.com/scenario-simulator/internal/config"
	"github.com/scenario-simulator/internal/logging"
)

func main() {
	fmt.Println("Scenario Simulator API Server")

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logging
	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logging.InitGlobalLogger(logLevel, logFormat)

	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	if cfg.Simulation.ExportDir != "" {
		if err := os.MkdirAll(cfg.Simulation.ExportDir, 0o755); err != nil {
			logger.WithError(err).Fatal("Failed to create export directory")
		}
	}

	logger.WithFields(map[string]interface{}{
		"source":   cfg.Scenario.Source,
		"scenario": cfg.Scenario.Name,
	}).Info("Loading scenario...")

	application, err := app.New(context.Background(), cfg, app.Options{}, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load scenario")
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.WithError(err).Warn("Error closing connections")
		}
	}()

	serverConfig := &api.ServerConfig{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ShutdownTimeout:   cfg.Server.ShutdownTimeout,
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
		TrustedProxies:    cfg.RateLimit.TrustedProxies,
	}

	server := api.NewServer(serverConfig, application.Sessions, logger)

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started successfully")

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
