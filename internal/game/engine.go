// Package game wires the progress engine together: session resolution, the
// flag ledger, the catalog cache, the classifier, the redemption protocol
// and the leaderboard window, with the engine as the single writer of the
// player record.
package game

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/ctfquest/internal/api"
	"github.com/ctfquest/internal/catalog"
	"github.com/ctfquest/internal/classifier"
	"github.com/ctfquest/internal/config"
	"github.com/ctfquest/internal/domain"
	"github.com/ctfquest/internal/ledger"
	"github.com/ctfquest/internal/leaderboard"
	"github.com/ctfquest/internal/reconciler"
	"github.com/ctfquest/internal/redemption"
	"github.com/ctfquest/internal/session"
)

// reloadTimeout bounds the background ledger reload scheduled after an
// accepted redemption.
const reloadTimeout = 15 * time.Second

// AttemptFeedback is what an exploit attempt earned: the classified catalog
// entry and, when a player is signed in, the redemption outcome.
type AttemptFeedback struct {
	Entry   domain.CatalogEntry
	Outcome *redemption.Outcome
	Err     error
}

// Engine owns the session-scoped game state.
type Engine struct {
	cfg    *config.Config
	api    *api.Client
	logger *slog.Logger

	resolver   *session.Resolver
	ledger     *ledger.Ledger
	catalog    *catalog.Cache
	classifier *classifier.Classifier
	protocol   *redemption.Protocol
	board      *leaderboard.Window

	mu           sync.Mutex
	player       *domain.Player
	sessionScore int
}

// New assembles an engine from configuration and a backend client.
func New(cfg *config.Config, client *api.Client, logger *slog.Logger) *Engine {
	l := ledger.New(client, logger)
	return &Engine{
		cfg:        cfg,
		api:        client,
		logger:     logger,
		resolver:   session.New(client, logger),
		ledger:     l,
		catalog:    catalog.New(client, logger),
		classifier: classifier.New(),
		protocol:   redemption.New(client, l, logger),
		board: leaderboard.New(
			client,
			cfg.Leaderboard.DefaultPageSize,
			cfg.Leaderboard.MaxPageSize,
			logger,
		),
	}
}

// Start resolves the session and, when a player is present, loads the flag
// ledger and then the vulnerability catalog, in that order: the ledger's
// point sum is preferred over the session-provided score. All failures here
// degrade to the no-player steady state; Start never returns an error.
func (e *Engine) Start(ctx context.Context) {
	player := e.resolver.Resolve(ctx)

	e.mu.Lock()
	e.player = player
	if player != nil {
		e.sessionScore = player.TotalScore
	}
	e.mu.Unlock()

	if player != nil {
		if _, err := e.ledger.Reload(ctx); err != nil {
			e.logger.Warn("initial ledger load failed", "error", err)
		}
		if err := e.catalog.Load(ctx); err != nil {
			e.logger.Warn("initial catalog load failed", "error", err)
		}
		e.reconcile()
	}

	if err := e.board.Fetch(ctx, 1); err != nil && !domain.IsStale(err) {
		e.logger.Warn("initial leaderboard load failed", "error", err)
	}
	e.reconcile()
}

// Refresh re-resolves the session and reloads ledger, catalog and the
// current leaderboard page, converging with any out-of-band server change.
func (e *Engine) Refresh(ctx context.Context) {
	player := e.resolver.Resolve(ctx)

	e.mu.Lock()
	hadPlayer := e.player != nil
	e.player = player
	if player != nil {
		e.sessionScore = player.TotalScore
	}
	e.mu.Unlock()

	if player == nil {
		if hadPlayer {
			e.logger.Info("session lost, clearing player state")
		}
		e.ledger.Reset()
	} else {
		if _, err := e.ledger.Reload(ctx); err != nil {
			e.logger.Warn("ledger reload failed", "error", err)
		}
		if err := e.catalog.Load(ctx); err != nil {
			e.logger.Warn("catalog load failed", "error", err)
		}
	}

	if err := e.board.Refresh(ctx); err != nil && !domain.IsStale(err) {
		e.logger.Warn("leaderboard refresh failed", "error", err)
	}
	e.reconcile()
}

// Register creates a new player, adopts the returned session token and
// initializes the player state. The returned token is what a future session
// must present.
func (e *Engine) Register(ctx context.Context, req api.RegisterRequest) (*domain.Player, string, error) {
	player, token, err := e.api.RegisterPlayer(ctx, req)
	if err != nil {
		return nil, "", err
	}
	e.api.SetSessionToken(token)

	e.mu.Lock()
	e.player = player
	e.sessionScore = player.TotalScore
	e.mu.Unlock()

	if _, err := e.ledger.Reload(ctx); err != nil {
		e.logger.Warn("ledger load after registration failed", "error", err)
	}
	if err := e.catalog.Load(ctx); err != nil {
		e.logger.Warn("catalog load after registration failed", "error", err)
	}
	e.reconcile()
	return e.Player(), token, nil
}

// Logout destroys the player record and all session-scoped state.
func (e *Engine) Logout() {
	e.mu.Lock()
	e.player = nil
	e.sessionScore = 0
	e.mu.Unlock()
	e.ledger.Reset()
	e.api.SetSessionToken("")
}

// SignedIn reports whether a player session is active.
func (e *Engine) SignedIn() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.player != nil
}

// Player returns a copy of the current player, or nil.
func (e *Engine) Player() *domain.Player {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.player == nil {
		return nil
	}
	p := *e.player
	return &p
}

// Score returns the reconciled score and the source it was selected from.
func (e *Engine) Score() (int, reconciler.Source) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resolveScoreLocked()
}

// SubmitFlag runs the redemption protocol for a token. On acceptance the
// player's total is reconciled against the optimistically updated ledger and
// an authoritative ledger reload is scheduled; the reload always wins.
func (e *Engine) SubmitFlag(ctx context.Context, token string) (redemption.Outcome, error) {
	outcome, err := e.protocol.Submit(ctx, e.Player(), token)
	if err != nil {
		return outcome, err
	}
	if outcome.Accepted {
		e.reconcile()
		e.scheduleLedgerReload()
	}
	return outcome, nil
}

// ReloadLedger reloads the flag ledger and reconciles the player's score.
func (e *Engine) ReloadLedger(ctx context.Context) error {
	if !e.SignedIn() {
		return domain.ErrNoSession
	}
	if _, err := e.ledger.Reload(ctx); err != nil {
		return err
	}
	e.reconcile()
	return nil
}

// Flags returns the player's redeemed flags.
func (e *Engine) Flags() []domain.RedeemedFlag {
	return e.ledger.Flags()
}

// CatalogEntries returns the cached vulnerability catalog.
func (e *Engine) CatalogEntries() []domain.CatalogEntry {
	return e.catalog.Entries()
}

// EvaluateAttempt classifies one exploit attempt and, when it matches a
// catalog entry and a player is signed in, redeems the entry's flag. A nil
// return means no detection; raw results must still be displayed.
func (e *Engine) EvaluateAttempt(ctx context.Context, a classifier.Attempt) *AttemptFeedback {
	if !e.catalog.Loaded() {
		e.logger.Debug("catalog not loaded, skipping classification")
		return nil
	}
	entry, ok := e.classifier.Classify(e.catalog.Entries(), a)
	if !ok {
		return nil
	}

	fb := &AttemptFeedback{Entry: entry}
	if !e.SignedIn() {
		return fb
	}
	outcome, err := e.SubmitFlag(ctx, entry.FlagToken)
	fb.Outcome = &outcome
	fb.Err = err
	return fb
}

// Search runs the recipe-search lab and evaluates the attempt. The raw
// result is always returned; classification never blocks it.
func (e *Engine) Search(ctx context.Context, query string) (*domain.ExploitResult, *AttemptFeedback, error) {
	res, err := e.api.Search(ctx, query)
	return res, e.evaluateLab(ctx, query, res, err), err
}

// LoginAttempt runs the vulnerable-login lab.
func (e *Engine) LoginAttempt(ctx context.Context, username, password string) (*domain.ExploitResult, *AttemptFeedback, error) {
	res, err := e.api.LoginAttempt(ctx, username, password)
	return res, e.evaluateLab(ctx, username+" "+password, res, err), err
}

// WeakAuth runs the weak-authentication lab.
func (e *Engine) WeakAuth(ctx context.Context, username, password string) (*domain.ExploitResult, *AttemptFeedback, error) {
	res, err := e.api.WeakAuth(ctx, username, password)
	return res, e.evaluateLab(ctx, username+" "+password, res, err), err
}

// ProfileByID runs the profile-by-id lab.
func (e *Engine) ProfileByID(ctx context.Context, userID string) (*domain.ExploitResult, *AttemptFeedback, error) {
	res, err := e.api.ProfileByID(ctx, userID)
	return res, e.evaluateLab(ctx, userID, res, err), err
}

// SystemLogs runs the system-logs lab.
func (e *Engine) SystemLogs(ctx context.Context) (*domain.ExploitResult, *AttemptFeedback, error) {
	res, err := e.api.SystemLogs(ctx)
	return res, e.evaluateLab(ctx, "", res, err), err
}

// LockRecipe runs the recipe-lock object action.
func (e *Engine) LockRecipe(ctx context.Context, recipeID int, password string) (*domain.ExploitResult, *AttemptFeedback, error) {
	res, err := e.api.LockRecipe(ctx, recipeID, password)
	return res, e.evaluateLab(ctx, strconv.Itoa(recipeID), res, err), err
}

// UnlockRecipe runs the recipe-unlock object action.
func (e *Engine) UnlockRecipe(ctx context.Context, recipeID int, password string) (*domain.ExploitResult, *AttemptFeedback, error) {
	res, err := e.api.UnlockRecipe(ctx, recipeID, password)
	return res, e.evaluateLab(ctx, strconv.Itoa(recipeID), res, err), err
}

// DeleteRecipe runs the recipe-delete object action.
func (e *Engine) DeleteRecipe(ctx context.Context, recipeID int) (*domain.ExploitResult, *AttemptFeedback, error) {
	res, err := e.api.DeleteRecipe(ctx, recipeID)
	return res, e.evaluateLab(ctx, strconv.Itoa(recipeID), res, err), err
}

// ChangeUserPassword runs the password-change object action.
func (e *Engine) ChangeUserPassword(ctx context.Context, userID int, newPassword string) (*domain.ExploitResult, *AttemptFeedback, error) {
	res, err := e.api.ChangeUserPassword(ctx, userID, newPassword)
	return res, e.evaluateLab(ctx, strconv.Itoa(userID), res, err), err
}

// evaluateLab builds the classifier input for a lab call. Connectivity
// failures are not classification input: only a structured backend error
// (the simulated query failure) feeds the error-based rules.
func (e *Engine) evaluateLab(ctx context.Context, payload string, res *domain.ExploitResult, err error) *AttemptFeedback {
	if err != nil && domain.IsConnectivity(err) {
		return nil
	}
	return e.EvaluateAttempt(ctx, classifier.Attempt{Payload: payload, Result: res, Err: err})
}

// FetchLeaderboard loads the given leaderboard page and cross-checks the
// player's score against it. A response superseded by a newer request is not
// an error: the window already shows the newer page, so the stale outcome
// stays invisible to the caller.
func (e *Engine) FetchLeaderboard(ctx context.Context, page int) error {
	if err := e.board.Fetch(ctx, page); err != nil {
		if domain.IsStale(err) {
			return nil
		}
		return err
	}
	e.reconcile()
	return nil
}

// RefreshLeaderboard re-fetches the currently selected page.
func (e *Engine) RefreshLeaderboard(ctx context.Context) error {
	if err := e.board.Refresh(ctx); err != nil {
		if domain.IsStale(err) {
			return nil
		}
		return err
	}
	e.reconcile()
	return nil
}

// SetPageSize changes the leaderboard page size, resetting to page 1.
func (e *Engine) SetPageSize(ctx context.Context, size int) error {
	if err := e.board.SetPageSize(ctx, size); err != nil {
		if domain.IsStale(err) {
			return nil
		}
		return err
	}
	e.reconcile()
	return nil
}

// Leaderboard exposes the current window for display.
func (e *Engine) Leaderboard() *leaderboard.Window {
	return e.board
}

// reconcile recomputes the player's displayed score by source precedence:
// ledger sum, then the matching leaderboard row, then the session value.
// The engine is the only writer of the player record.
func (e *Engine) reconcile() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.player == nil {
		return
	}
	score, source := e.resolveScoreLocked()
	if e.player.TotalScore != score {
		e.logger.Debug("score reconciled",
			"score", score,
			"source", source.String(),
			"previous", e.player.TotalScore,
		)
	}
	e.player.TotalScore = score
}

// resolveScoreLocked gathers the reconciler inputs. Callers hold e.mu.
func (e *Engine) resolveScoreLocked() (int, reconciler.Source) {
	in := reconciler.Inputs{
		SessionScore: e.sessionScore,
		LedgerSum:    e.ledger.Total(),
		LedgerLoaded: e.ledger.Loaded(),
	}
	if e.player != nil {
		in.RowScore, in.RowFound = e.board.ScoreFor(e.player.NumericID)
	}
	return reconciler.Resolve(in)
}

// scheduleLedgerReload converges with the authoritative backend state after
// an optimistic update. The reload result always overwrites the optimism.
func (e *Engine) scheduleLedgerReload() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
		defer cancel()
		if err := e.ReloadLedger(ctx); err != nil && !errors.Is(err, domain.ErrNoSession) {
			e.logger.Warn("scheduled ledger reload failed", "error", err)
		}
	}()
}
