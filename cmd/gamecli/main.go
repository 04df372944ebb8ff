// gamecli is the terminal client for the security-training game: it resolves
// the player session, drives the exploit labs, redeems flags and pages
// through the leaderboard against either the course backend or a local
// trainerd instance.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ctfquest/internal/api"
	"github.com/ctfquest/internal/config"
	"github.com/ctfquest/internal/game"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "gamecli",
	Short: "Client for the security-training game",
	Long: `gamecli talks to the training backend: check your session, run the
vulnerable labs, submit flags and browse the leaderboard.

Point it at a local practice server with trainerd, or at the course
backend via the backend.base_url config key.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(
		statusCmd,
		registerCmd,
		catalogCmd,
		flagsCmd,
		submitCmd,
		leaderboardCmd,
		watchCmd,
		searchCmd,
		loginCmd,
		weakAuthCmd,
		profileCmd,
		logsCmd,
		recipeCmd,
		passwdCmd,
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// newLogger builds the CLI logger. Diagnostics go to stderr so command
// output stays pipeable.
func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// newEngine loads configuration and assembles the progress engine.
func newEngine() (*game.Engine, *config.Config, *slog.Logger) {
	logger := newLogger()

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Debug("config file not loaded, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	client := api.NewClient(&cfg.Backend, logger)
	return game.New(cfg, client, logger), cfg, logger
}
