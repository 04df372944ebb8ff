package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ctfquest/internal/domain"
	"github.com/ctfquest/internal/game"
)

// searchCmd runs the recipe-search lab
var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Run the recipe-search lab",
	Long: `Send a search query to the vulnerable recipe search. Raw results are
always shown; if the attempt demonstrates a catalog vulnerability the
matching flag is redeemed automatically.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

// loginCmd runs the vulnerable-login lab
var loginCmd = &cobra.Command{
	Use:   "login <username> <password>",
	Short: "Run the vulnerable-login lab",
	Args:  cobra.ExactArgs(2),
	RunE:  runLogin,
}

// weakAuthCmd runs the weak-authentication lab
var weakAuthCmd = &cobra.Command{
	Use:   "weakauth <username> <password>",
	Short: "Run the weak-authentication lab",
	Args:  cobra.ExactArgs(2),
	RunE:  runWeakAuth,
}

// profileCmd runs the profile-by-id lab
var profileCmd = &cobra.Command{
	Use:   "profile <user-id>",
	Short: "Run the profile-lookup lab",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfile,
}

// logsCmd runs the system-logs lab
var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Run the system-logs lab",
	RunE:  runLogs,
}

// recipeCmd groups the recipe object actions
var recipeCmd = &cobra.Command{
	Use:   "recipe",
	Short: "Run the recipe object-action labs",
	Long: `Act on individual recipes by id: lock, unlock or delete them. The
endpoints never check who owns the recipe, which is the point.`,
}

var recipeLockCmd = &cobra.Command{
	Use:   "lock <recipe-id> <password>",
	Short: "Set a lock password on a recipe",
	Args:  cobra.ExactArgs(2),
	RunE:  runRecipeLock,
}

var recipeUnlockCmd = &cobra.Command{
	Use:   "unlock <recipe-id> <password>",
	Short: "Unlock a recipe with its lock password",
	Args:  cobra.ExactArgs(2),
	RunE:  runRecipeUnlock,
}

var recipeDeleteCmd = &cobra.Command{
	Use:   "delete <recipe-id>",
	Short: "Delete a recipe",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecipeDelete,
}

// passwdCmd runs the password-change object action
var passwdCmd = &cobra.Command{
	Use:   "passwd <user-id> <new-password>",
	Short: "Change a user's password",
	Args:  cobra.ExactArgs(2),
	RunE:  runPasswd,
}

func init() {
	recipeCmd.AddCommand(recipeLockCmd, recipeUnlockCmd, recipeDeleteCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	eng, _, _ := newEngine()
	eng.Start(cmd.Context())

	res, fb, err := eng.Search(cmd.Context(), args[0])
	printLab(res, fb, err)
	if err != nil && domain.IsConnectivity(err) {
		return err
	}
	return nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	eng, _, _ := newEngine()
	eng.Start(cmd.Context())

	res, fb, err := eng.LoginAttempt(cmd.Context(), args[0], args[1])
	printLab(res, fb, err)
	if err != nil && domain.IsConnectivity(err) {
		return err
	}
	return nil
}

func runWeakAuth(cmd *cobra.Command, args []string) error {
	eng, _, _ := newEngine()
	eng.Start(cmd.Context())

	res, fb, err := eng.WeakAuth(cmd.Context(), args[0], args[1])
	printLab(res, fb, err)
	if err != nil && domain.IsConnectivity(err) {
		return err
	}
	return nil
}

func runProfile(cmd *cobra.Command, args []string) error {
	eng, _, _ := newEngine()
	eng.Start(cmd.Context())

	res, fb, err := eng.ProfileByID(cmd.Context(), args[0])
	printLab(res, fb, err)
	if err != nil && domain.IsConnectivity(err) {
		return err
	}
	return nil
}

func runLogs(cmd *cobra.Command, args []string) error {
	eng, _, _ := newEngine()
	eng.Start(cmd.Context())

	res, fb, err := eng.SystemLogs(cmd.Context())
	printLab(res, fb, err)
	if err != nil && domain.IsConnectivity(err) {
		return err
	}
	return nil
}

func runRecipeLock(cmd *cobra.Command, args []string) error {
	recipeID, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid recipe id %q", args[0])
	}
	eng, _, _ := newEngine()
	eng.Start(cmd.Context())

	res, fb, err := eng.LockRecipe(cmd.Context(), recipeID, args[1])
	printLab(res, fb, err)
	if err != nil && domain.IsConnectivity(err) {
		return err
	}
	return nil
}

func runRecipeUnlock(cmd *cobra.Command, args []string) error {
	recipeID, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid recipe id %q", args[0])
	}
	eng, _, _ := newEngine()
	eng.Start(cmd.Context())

	res, fb, err := eng.UnlockRecipe(cmd.Context(), recipeID, args[1])
	printLab(res, fb, err)
	if err != nil && domain.IsConnectivity(err) {
		return err
	}
	return nil
}

func runRecipeDelete(cmd *cobra.Command, args []string) error {
	recipeID, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid recipe id %q", args[0])
	}
	eng, _, _ := newEngine()
	eng.Start(cmd.Context())

	res, fb, err := eng.DeleteRecipe(cmd.Context(), recipeID)
	printLab(res, fb, err)
	if err != nil && domain.IsConnectivity(err) {
		return err
	}
	return nil
}

func runPasswd(cmd *cobra.Command, args []string) error {
	userID, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid user id %q", args[0])
	}
	eng, _, _ := newEngine()
	eng.Start(cmd.Context())

	res, fb, err := eng.ChangeUserPassword(cmd.Context(), userID, args[1])
	printLab(res, fb, err)
	if err != nil && domain.IsConnectivity(err) {
		return err
	}
	return nil
}

// printLab renders a lab's raw outcome and any detection feedback. Backend
// failures are part of the exercise (a simulated query error is a signal),
// so they print rather than abort.
func printLab(res *domain.ExploitResult, fb *game.AttemptFeedback, err error) {
	if err != nil {
		fmt.Printf("Backend error: %v\n", err)
	}
	if res != nil {
		if res.Message != "" {
			fmt.Println(res.Message)
		}
		for _, row := range res.Rows {
			printRow(row)
		}
		if res.Flag != "" {
			fmt.Printf("Flag found: %s\n", res.Flag)
		}
	}

	if fb == nil {
		return
	}
	fmt.Printf("\nDetected: %s (%d points)\n", fb.Entry.Name, fb.Entry.Points)
	switch {
	case fb.Err != nil:
		fmt.Printf("Redemption failed: %v\n", fb.Err)
	case fb.Outcome == nil:
		fmt.Println("Sign in to redeem this flag.")
	case fb.Outcome.Accepted:
		fmt.Printf("Flag redeemed: +%d points\n", fb.Outcome.Points)
	default:
		fmt.Printf("Not redeemed: %s\n", fb.Outcome.Reason)
	}
}

// printRow renders one result row with stable key order.
func printRow(row domain.ResultRow) {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Print("  ")
	for i, k := range keys {
		if i > 0 {
			fmt.Print("  ")
		}
		fmt.Printf("%s=%v", k, row[k])
	}
	fmt.Println()
}
