package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ctfquest/internal/api"
	"github.com/ctfquest/internal/live"
	"github.com/ctfquest/internal/worker"
)

var (
	registerNickname  string
	registerFirstName string
	registerLastName  string
	registerEmail     string

	leaderboardPage int
	leaderboardSize int
)

// statusCmd shows the session and reconciled score
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current session and score",
	RunE:  runStatus,
}

// registerCmd creates a new player
var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a new player and open a session",
	RunE:  runRegister,
}

// catalogCmd lists the vulnerability catalog
var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List the vulnerability catalog",
	RunE:  runCatalog,
}

// flagsCmd lists the player's redeemed flags
var flagsCmd = &cobra.Command{
	Use:   "flags",
	Short: "List your redeemed flags",
	RunE:  runFlags,
}

// submitCmd redeems a flag token
var submitCmd = &cobra.Command{
	Use:   "submit <flag>",
	Short: "Submit a captured flag",
	Args:  cobra.ExactArgs(1),
	RunE:  runSubmit,
}

// leaderboardCmd shows one leaderboard page
var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Show a leaderboard page",
	RunE:  runLeaderboard,
}

// watchCmd keeps state fresh until interrupted
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the leaderboard and score feed",
	Long: `Keep the local state converged with the backend: a periodic refresh
reloads the ledger and the current leaderboard page, and when the live
feed is enabled each accepted flag triggers an immediate refresh.`,
	RunE: runWatch,
}

func init() {
	registerCmd.Flags().StringVar(&registerNickname, "nickname", "", "player nickname (required)")
	registerCmd.Flags().StringVar(&registerFirstName, "first-name", "", "first name (required)")
	registerCmd.Flags().StringVar(&registerLastName, "last-name", "", "last name (required)")
	registerCmd.Flags().StringVar(&registerEmail, "email", "", "email address (required)")
	registerCmd.MarkFlagRequired("nickname")
	registerCmd.MarkFlagRequired("first-name")
	registerCmd.MarkFlagRequired("last-name")
	registerCmd.MarkFlagRequired("email")

	leaderboardCmd.Flags().IntVar(&leaderboardPage, "page", 1, "page number")
	leaderboardCmd.Flags().IntVar(&leaderboardSize, "size", 0, "page size (default from config)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	eng, _, _ := newEngine()
	eng.Start(cmd.Context())

	player := eng.Player()
	if player == nil {
		fmt.Println("No active session. Run 'gamecli register' to create a player.")
		return nil
	}

	score, source := eng.Score()
	fmt.Printf("Player:  %s\n", player.DisplayName())
	fmt.Printf("Score:   %d points (from %s)\n", score, source)
	fmt.Printf("Flags:   %d redeemed\n", len(eng.Flags()))
	return nil
}

func runRegister(cmd *cobra.Command, args []string) error {
	eng, _, _ := newEngine()

	player, token, err := eng.Register(cmd.Context(), api.RegisterRequest{
		Nickname: registerNickname,
		Nombre:   registerFirstName,
		Apellido: registerLastName,
		Email:    registerEmail,
		Role:     api.RolePlayer,
	})
	if err != nil {
		return fmt.Errorf("registering player: %w", err)
	}

	fmt.Printf("Welcome, %s!\n", player.DisplayName())
	fmt.Printf("Session token: %s\n", token)
	fmt.Println("Store it under backend.session_token in your config to stay signed in.")
	return nil
}

func runCatalog(cmd *cobra.Command, args []string) error {
	eng, _, _ := newEngine()
	eng.Start(cmd.Context())

	entries := eng.CatalogEntries()
	if len(entries) == 0 {
		return fmt.Errorf("catalog unavailable; is the backend reachable?")
	}

	redeemed := make(map[string]bool)
	for _, f := range eng.Flags() {
		redeemed[f.Token] = true
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tDIFFICULTY\tPOINTS\tSTATUS")
	for _, e := range entries {
		status := "open"
		if redeemed[e.FlagToken] {
			status = "captured"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n", e.ID, e.Name, e.Difficulty, e.Points, status)
	}
	return w.Flush()
}

func runFlags(cmd *cobra.Command, args []string) error {
	eng, _, _ := newEngine()
	eng.Start(cmd.Context())

	if !eng.SignedIn() {
		fmt.Println("No active session.")
		return nil
	}

	flags := eng.Flags()
	if len(flags) == 0 {
		fmt.Println("No flags redeemed yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VULNERABILITY\tPOINTS\tCOMPLETED")
	total := 0
	for _, f := range flags {
		fmt.Fprintf(w, "%s\t%d\t%s\n", f.Vulnerability, f.Points, f.CompletedAt.Format("2006-01-02 15:04"))
		total += f.Points
	}
	fmt.Fprintf(w, "TOTAL\t%d\t\n", total)
	return w.Flush()
}

func runSubmit(cmd *cobra.Command, args []string) error {
	eng, _, _ := newEngine()
	eng.Start(cmd.Context())

	outcome, err := eng.SubmitFlag(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("submitting flag: %w", err)
	}

	if outcome.Accepted {
		fmt.Printf("Accepted! %s: +%d points\n", outcome.Vulnerability, outcome.Points)
		score, _ := eng.Score()
		fmt.Printf("Total score: %d\n", score)
	} else {
		fmt.Printf("Rejected: %s\n", outcome.Reason)
	}
	return nil
}

func runLeaderboard(cmd *cobra.Command, args []string) error {
	eng, _, _ := newEngine()
	eng.Start(cmd.Context())

	if leaderboardSize > 0 {
		if err := eng.SetPageSize(cmd.Context(), leaderboardSize); err != nil {
			return fmt.Errorf("setting page size: %w", err)
		}
	}
	if err := eng.FetchLeaderboard(cmd.Context(), leaderboardPage); err != nil {
		return fmt.Errorf("fetching leaderboard: %w", err)
	}

	board := eng.Leaderboard()
	stats := board.Stats()
	pg := board.Pagination()

	fmt.Printf("Top score: %d  |  Players with score: %d\n\n", stats.TopScore, stats.PlayersWithScore)

	medals := map[int64]string{}
	for i, row := range board.Podium() {
		medals[row.PlayerID] = []string{"🥇", "🥈", "🥉"}[i]
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "POS\tNICKNAME\tSCORE\tFLAGS")
	me := eng.Player()
	for _, row := range board.Rows() {
		marker := medals[row.PlayerID]
		if me != nil && row.PlayerID == me.NumericID {
			marker += " *"
		}
		fmt.Fprintf(w, "%d\t%s %s\t%d\t%d\n", row.Position, row.Nickname, marker, row.TotalScore, row.FlagsCompleted)
	}
	w.Flush()

	fmt.Printf("\nPage %d of %d (%d players)", pg.Page, pg.TotalPages, pg.TotalPlayers)
	if buttons := board.PageButtons(); len(buttons) > 1 {
		fmt.Print("  |  pages:")
		for _, p := range buttons {
			if p == pg.Page {
				fmt.Printf(" [%d]", p)
			} else {
				fmt.Printf(" %d", p)
			}
		}
	}
	fmt.Println()
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	eng, cfg, logger := newEngine()
	eng.Start(cmd.Context())

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	refresher := worker.NewRefreshWorker(eng, &cfg.Refresh, logger)
	if cfg.Refresh.Enabled {
		if err := refresher.Start(ctx); err != nil {
			return fmt.Errorf("starting refresh worker: %w", err)
		}
		defer refresher.Stop()
	}

	if cfg.Live.Enabled && cfg.Live.URL != "" {
		watcher := live.NewWatcher(cfg.Live.URL, func(msg live.Message) {
			fmt.Printf("[feed] %s captured %s (+%d)\n", msg.Nickname, msg.Vulnerability, msg.Points)
			refresher.RunOnce(ctx)
		}, logger)
		go watcher.Run(ctx)
	}

	fmt.Println("Watching for updates (Ctrl+C to stop)...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	fmt.Println("\nStopped.")
	return nil
}
