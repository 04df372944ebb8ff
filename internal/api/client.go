package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ctfquest/internal/config"
	"github.com/ctfquest/internal/domain"
)

// sessionCookie is the cookie the backend uses to track the player session.
const sessionCookie = "session_token"

// BackendError is a non-2xx response from the backend that still carried a
// parseable body. The lab endpoints use it to report simulated query errors.
type BackendError struct {
	Status  int
	Message string
}

func (e *BackendError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("backend returned status %d", e.Status)
}

// Client talks to the training backend. Every response is decoded into an
// explicit per-endpoint result type and validated here, so callers never
// branch on ad hoc presence checks.
type Client struct {
	baseURL string
	httpc   *http.Client
	logger  *slog.Logger

	mu    sync.Mutex
	token string
}

// NewClient creates a backend client from configuration.
func NewClient(cfg *config.BackendConfig, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpc:   &http.Client{Timeout: cfg.Timeout},
		token:   cfg.SessionToken,
		logger:  logger,
	}
}

// SetSessionToken replaces the session token sent with every request. It is
// safe to call while requests are in flight on other goroutines.
func (c *Client) SetSessionToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) sessionToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// do issues one request and decodes the JSON response into out. Transport
// failures and timeouts map to ErrConnectivity; non-2xx statuses map to
// BackendError with whatever message the body carried.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.New().String())
	if token := c.sessionToken(); token != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: token})
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrConnectivity, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", domain.ErrConnectivity, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var fail struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(data, &fail)
		c.logger.Debug("backend error response",
			"path", path,
			"status", resp.StatusCode,
			"message", fail.Message,
		)
		return &BackendError{Status: resp.StatusCode, Message: fail.Message}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding response from %s: %w", path, err)
		}
	}
	return nil
}

// CheckSession resolves the current session. A missing or unauthorized
// session returns (nil, nil): not an error, a steady state.
func (c *Client) CheckSession(ctx context.Context) (*domain.Player, error) {
	var res SessionResponse
	if err := c.do(ctx, http.MethodGet, "/session", nil, nil, &res); err != nil {
		var be *BackendError
		if errors.As(err, &be) && (be.Status == http.StatusUnauthorized || be.Status == http.StatusForbidden) {
			return nil, nil
		}
		return nil, err
	}
	if !res.Success || res.Usuario == nil {
		return nil, nil
	}
	if res.Usuario.Role != RolePlayer {
		return nil, nil
	}
	return res.Usuario.toPlayer(), nil
}

// RegisterPlayer registers a new game participant and returns the created
// player plus the session token to use from now on.
func (c *Client) RegisterPlayer(ctx context.Context, req RegisterRequest) (*domain.Player, string, error) {
	if req.Role == "" {
		req.Role = RolePlayer
	}
	var res RegisterResponse
	if err := c.do(ctx, http.MethodPost, "/game/register", nil, req, &res); err != nil {
		return nil, "", err
	}
	if !res.Success || res.Player == nil {
		return nil, "", &domain.RejectionError{Reason: res.Message}
	}
	return res.Player.toPlayer(), res.SessionToken, nil
}

// Catalog fetches the vulnerability catalog.
func (c *Client) Catalog(ctx context.Context) ([]domain.CatalogEntry, error) {
	var res CatalogResponse
	if err := c.do(ctx, http.MethodGet, "/game/vulnerabilities", nil, nil, &res); err != nil {
		return nil, err
	}
	if !res.Success {
		return nil, fmt.Errorf("catalog fetch refused: %s", res.Message)
	}
	return res.Vulnerabilities, nil
}

// SubmitFlag submits a candidate flag token. A backend rejection (duplicate,
// unknown token, wrong player) comes back as *domain.RejectionError carrying
// the backend's verbatim reason.
func (c *Client) SubmitFlag(ctx context.Context, token string) (*SubmitResponse, error) {
	var res SubmitResponse
	if err := c.do(ctx, http.MethodPost, "/game/submit-flag", nil, SubmitRequest{FlagHash: token}, &res); err != nil {
		return nil, err
	}
	if !res.Success {
		return nil, &domain.RejectionError{Reason: res.Message}
	}
	return &res, nil
}

// MyFlags fetches the authoritative list of the player's redeemed flags and
// the backend's total.
func (c *Client) MyFlags(ctx context.Context) ([]domain.RedeemedFlag, int, error) {
	var res MyFlagsResponse
	if err := c.do(ctx, http.MethodGet, "/game/my-flags", nil, nil, &res); err != nil {
		return nil, 0, err
	}
	if !res.Success {
		return nil, 0, fmt.Errorf("my-flags fetch refused: %s", res.Message)
	}
	flags := make([]domain.RedeemedFlag, 0, len(res.Flags))
	for i := range res.Flags {
		flags = append(flags, res.Flags[i].toFlag())
	}
	return flags, res.TotalPoints, nil
}

// Leaderboard fetches one page of the global ranking.
func (c *Client) Leaderboard(ctx context.Context, page, perPage int) (*LeaderboardResponse, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))
	var res LeaderboardResponse
	if err := c.do(ctx, http.MethodGet, "/game/leaderboard", q, nil, &res); err != nil {
		return nil, err
	}
	if !res.Success {
		return nil, fmt.Errorf("leaderboard fetch refused: %s", res.Message)
	}
	return &res, nil
}

// Search runs the recipe-search lab (SQL injection surface).
func (c *Client) Search(ctx context.Context, query string) (*domain.ExploitResult, error) {
	q := url.Values{}
	q.Set("q", query)
	var res LabResponse
	if err := c.do(ctx, http.MethodGet, "/search", q, nil, &res); err != nil {
		return nil, err
	}
	return res.toExploitResult(), nil
}

// LoginAttempt runs the vulnerable-login lab.
func (c *Client) LoginAttempt(ctx context.Context, username, password string) (*domain.ExploitResult, error) {
	body := map[string]string{"username": username, "password": password}
	var res LabResponse
	if err := c.do(ctx, http.MethodPost, "/labs/login", nil, body, &res); err != nil {
		return nil, err
	}
	return res.toExploitResult(), nil
}

// WeakAuth runs the weak-authentication lab.
func (c *Client) WeakAuth(ctx context.Context, username, password string) (*domain.ExploitResult, error) {
	body := map[string]string{"username": username, "password": password}
	var res LabResponse
	if err := c.do(ctx, http.MethodPost, "/labs/weak-auth", nil, body, &res); err != nil {
		return nil, err
	}
	return res.toExploitResult(), nil
}

// ProfileByID runs the profile-by-id lab (IDOR surface).
func (c *Client) ProfileByID(ctx context.Context, userID string) (*domain.ExploitResult, error) {
	q := url.Values{}
	q.Set("user_id", userID)
	var res LabResponse
	if err := c.do(ctx, http.MethodGet, "/labs/profile", q, nil, &res); err != nil {
		return nil, err
	}
	return res.toExploitResult(), nil
}

// SystemLogs runs the system-logs lab (information-disclosure surface).
func (c *Client) SystemLogs(ctx context.Context) (*domain.ExploitResult, error) {
	var res LabResponse
	if err := c.do(ctx, http.MethodGet, "/labs/logs", nil, nil, &res); err != nil {
		return nil, err
	}
	return res.toExploitResult(), nil
}

// LockRecipe runs the recipe-lock object action: setting a lock password on
// a recipe the caller does not own is the IDOR.
func (c *Client) LockRecipe(ctx context.Context, recipeID int, password string) (*domain.ExploitResult, error) {
	body := map[string]string{"password": password}
	var res LabResponse
	path := "/labs/recipes/" + strconv.Itoa(recipeID) + "/lock"
	if err := c.do(ctx, http.MethodPost, path, nil, body, &res); err != nil {
		return nil, err
	}
	return res.toExploitResult(), nil
}

// UnlockRecipe runs the recipe-unlock object action: private recipes are
// protected by guessable lock passwords.
func (c *Client) UnlockRecipe(ctx context.Context, recipeID int, password string) (*domain.ExploitResult, error) {
	body := map[string]string{"password": password}
	var res LabResponse
	path := "/labs/recipes/" + strconv.Itoa(recipeID) + "/unlock"
	if err := c.do(ctx, http.MethodPost, path, nil, body, &res); err != nil {
		return nil, err
	}
	return res.toExploitResult(), nil
}

// DeleteRecipe runs the recipe-delete object action: removing another user's
// recipe is the IDOR.
func (c *Client) DeleteRecipe(ctx context.Context, recipeID int) (*domain.ExploitResult, error) {
	var res LabResponse
	path := "/labs/recipes/" + strconv.Itoa(recipeID)
	if err := c.do(ctx, http.MethodDelete, path, nil, nil, &res); err != nil {
		return nil, err
	}
	return res.toExploitResult(), nil
}

// ChangeUserPassword runs the password-change object action: resetting
// another user's password is the IDOR.
func (c *Client) ChangeUserPassword(ctx context.Context, userID int, newPassword string) (*domain.ExploitResult, error) {
	body := map[string]string{"new_password": newPassword}
	var res LabResponse
	path := "/labs/users/" + strconv.Itoa(userID) + "/password"
	if err := c.do(ctx, http.MethodPost, path, nil, body, &res); err != nil {
		return nil, err
	}
	return res.toExploitResult(), nil
}
