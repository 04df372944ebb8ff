package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ctfquest/internal/config"
	"github.com/ctfquest/internal/live"
	"github.com/ctfquest/internal/trainer"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	demoPlayers := flag.Int("demo-players", 0, "Number of demo players to seed on the leaderboard")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	// Initialize the score feed hub
	hub := live.NewHub(logger)
	go hub.Run()
	logger.Info("score feed hub initialized")

	// Initialize the practice backend
	srv := trainer.NewServer(hub, logger)
	if *demoPlayers > 0 {
		srv.Seed(*demoPlayers)
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Trainer.Port),
		Handler:      srv.Router(),
		ReadTimeout:  cfg.Trainer.ReadTimeout,
		WriteTimeout: cfg.Trainer.WriteTimeout,
		IdleTimeout:  cfg.Trainer.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting trainer server", "port", cfg.Trainer.Port)
		logger.Info("score feed available at /ws")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down trainer...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	hub.Stop()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	logger.Info("trainer stopped")
}
