package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctfquest/internal/config"
	"github.com/ctfquest/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(&config.BackendConfig{
		BaseURL:      srv.URL,
		Timeout:      2 * time.Second,
		SessionToken: "tok-test",
	}, testLogger())
}

func TestCheckSession(t *testing.T) {
	t.Run("active player session", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/session", r.URL.Path)
			cookie, err := r.Cookie("session_token")
			require.NoError(t, err)
			assert.Equal(t, "tok-test", cookie.Value)
			assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

			json.NewEncoder(w).Encode(SessionResponse{
				Success: true,
				Usuario: &UserPayload{
					ID: "u-1", NumericID: 7, Role: RolePlayer,
					Nombre: "Juan", Apellido: "Perez",
					Nickname: "jp", TotalScore: 230,
				},
			})
		}))

		p, err := c.CheckSession(context.Background())
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, int64(7), p.NumericID)
		assert.Equal(t, "jp", p.Nickname)
		assert.Equal(t, 230, p.TotalScore)
		assert.True(t, p.Registered)
	})

	t.Run("unauthorized is a steady state, not an error", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "no session"})
		}))

		p, err := c.CheckSession(context.Background())
		assert.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("non-player role yields no player", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(SessionResponse{
				Success: true,
				Usuario: &UserPayload{ID: "u-2", Role: "admin"},
			})
		}))

		p, err := c.CheckSession(context.Background())
		assert.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("server error is an error", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))

		_, err := c.CheckSession(context.Background())
		require.Error(t, err)
		var be *BackendError
		assert.ErrorAs(t, err, &be)
	})
}

func TestCheckSession_ConnectivityFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close() // nothing listens here anymore

	c := NewClient(&config.BackendConfig{BaseURL: url, Timeout: time.Second}, testLogger())
	_, err := c.CheckSession(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsConnectivity(err))
}

func TestSubmitFlag(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/game/submit-flag", r.URL.Path)
			var req SubmitRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "flag-union", req.FlagHash)

			json.NewEncoder(w).Encode(SubmitResponse{
				Success: true, Points: 220, Vulnerability: "Extraccion con UNION",
			})
		}))

		res, err := c.SubmitFlag(context.Background(), "flag-union")
		require.NoError(t, err)
		assert.Equal(t, 220, res.Points)
	})

	t.Run("rejection carries the verbatim reason", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(SubmitResponse{
				Success: false, Message: "you already completed this vulnerability",
			})
		}))

		_, err := c.SubmitFlag(context.Background(), "flag-union")
		require.Error(t, err)
		var rej *domain.RejectionError
		require.ErrorAs(t, err, &rej)
		assert.Equal(t, "you already completed this vulnerability", rej.Reason)
		assert.ErrorIs(t, err, domain.ErrFlagRejected)
	})
}

func TestMyFlags(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/game/my-flags", r.URL.Path)
		json.NewEncoder(w).Encode(MyFlagsResponse{
			Success: true,
			Flags: []FlagPayload{
				{FlagHash: "f1", Points: 150, VulnerabilityType: "IDOR en Perfiles", CompletedAt: "2026-08-28 12:30:00"},
				{FlagHash: "f2", Points: 80, VulnerabilityType: "Divulgacion de Informacion", CompletedAt: "2026-08-28T13:00:00Z"},
			},
			TotalPoints: 230,
		})
	}))

	flags, total, err := c.MyFlags(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 230, total)
	require.Len(t, flags, 2)
	assert.Equal(t, "f1", flags[0].Token)
	assert.Equal(t, 2026, flags[0].CompletedAt.Year(), "space-separated timestamp parses")
	assert.Equal(t, 13, flags[1].CompletedAt.Hour(), "RFC 3339 timestamp parses")
}

func TestLeaderboard_QueryParameters(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/game/leaderboard", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "10", r.URL.Query().Get("per_page"))
		json.NewEncoder(w).Encode(LeaderboardResponse{
			Success:    true,
			Pagination: domain.PaginationState{Page: 2, PageSize: 10, TotalPages: 4},
		})
	}))

	res, err := c.Leaderboard(context.Background(), 2, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Pagination.Page)
}

func TestSearch_RowMapping(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "mole", r.URL.Query().Get("q"))
		json.NewEncoder(w).Encode(LabResponse{
			Success: true,
			Recetas: []domain.ResultRow{{"id": float64(1), "nombre": "Mole Poblano"}},
		})
	}))

	res, err := c.Search(context.Background(), "mole")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "Mole Poblano", res.Rows[0]["nombre"])
}

func TestSearch_BackendErrorSurfacesMessage(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"message": `database error: unrecognized token near "AND"`,
		})
	}))

	_, err := c.Search(context.Background(), "mole' AND 1=2--")
	require.Error(t, err)
	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, http.StatusInternalServerError, be.Status)
	assert.Contains(t, be.Message, "database error")
	assert.False(t, domain.IsConnectivity(err), "a structured error is not a connectivity failure")
}

func TestObjectActionEndpoints(t *testing.T) {
	t.Run("lock recipe posts the password", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/labs/recipes/2/lock", r.URL.Path)
			var req map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "hijacked", req["password"])
			json.NewEncoder(w).Encode(LabResponse{
				Success: true,
				Flag:    "flag-lock",
				Receta:  &domain.ResultRow{"id": float64(2), "bloqueada": true},
			})
		}))

		res, err := c.LockRecipe(context.Background(), 2, "hijacked")
		require.NoError(t, err)
		assert.Equal(t, "flag-lock", res.Flag)
		require.Len(t, res.Rows, 1)
		assert.Equal(t, true, res.Rows[0]["bloqueada"])
	})

	t.Run("unlock recipe posts the password", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/labs/recipes/5/unlock", r.URL.Path)
			var req map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "secreto", req["password"])
			json.NewEncoder(w).Encode(LabResponse{
				Success: true,
				Receta:  &domain.ResultRow{"id": float64(5)},
			})
		}))

		res, err := c.UnlockRecipe(context.Background(), 5, "secreto")
		require.NoError(t, err)
		require.Len(t, res.Rows, 1)
	})

	t.Run("delete recipe uses DELETE", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodDelete, r.Method)
			assert.Equal(t, "/labs/recipes/3", r.URL.Path)
			json.NewEncoder(w).Encode(LabResponse{Success: true, Flag: "flag-delete"})
		}))

		res, err := c.DeleteRecipe(context.Background(), 3)
		require.NoError(t, err)
		assert.Equal(t, "flag-delete", res.Flag)
	})

	t.Run("password change posts the new password", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/labs/users/3/password", r.URL.Path)
			var req map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "taken-over", req["new_password"])
			json.NewEncoder(w).Encode(LabResponse{Success: true, Flag: "flag-passwd"})
		}))

		res, err := c.ChangeUserPassword(context.Background(), 3, "taken-over")
		require.NoError(t, err)
		assert.Equal(t, "flag-passwd", res.Flag)
	})
}

func TestSetSessionToken_ConcurrentWithRequests(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(SessionResponse{Success: true})
	}))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			c.SetSessionToken("tok-" + strconv.Itoa(i))
		}(i)
		go func() {
			defer wg.Done()
			_, err := c.CheckSession(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	c.SetSessionToken("tok-final")
	assert.Equal(t, "tok-final", c.sessionToken())
}

func TestLabResponse_ToExploitResult(t *testing.T) {
	t.Run("single user row", func(t *testing.T) {
		res := (&LabResponse{
			Success: true,
			Flag:    "flag-login",
			User:    &domain.ResultRow{"username": "admin"},
		}).toExploitResult()
		assert.Equal(t, "flag-login", res.Flag)
		require.Len(t, res.Rows, 1)
	})

	t.Run("logs rows", func(t *testing.T) {
		res := (&LabResponse{
			Success: true,
			Logs:    []domain.ResultRow{{"event": "login"}, {"event": "search"}},
		}).toExploitResult()
		assert.Len(t, res.Rows, 2)
	})
}
