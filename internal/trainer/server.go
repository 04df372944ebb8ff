// Package trainer is a self-contained practice backend implementing the
// wire contract the engine consumes: session, registration, catalog, flag
// submission, my-flags, paginated leaderboard, the vulnerable lab endpoints
// and the score feed. State is deliberately in-memory; the trainer exists so
// the engine can be exercised end to end without the course backend.
package trainer

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/ctfquest/internal/api"
	"github.com/ctfquest/internal/domain"
	"github.com/ctfquest/internal/live"
)

// maxPageSize bounds the per_page query parameter.
const maxPageSize = 100

type playerRecord struct {
	ID        string
	NumericID int64
	Nickname  string
	Nombre    string
	Apellido  string
	Email     string
	CreatedAt time.Time
}

// Server holds the in-memory game state.
type Server struct {
	logger *slog.Logger
	hub    *live.Hub

	mu       sync.Mutex
	nextID   int64
	players  map[int64]*playerRecord
	sessions map[string]int64
	flags    map[int64][]domain.RedeemedFlag
	catalog  []domain.CatalogEntry
	users    []labUser
	recipes  []recipe
	logs     []domain.ResultRow
}

// NewServer creates a trainer server with the seeded catalog and fixtures.
func NewServer(hub *live.Hub, logger *slog.Logger) *Server {
	return &Server{
		logger:   logger,
		hub:      hub,
		nextID:   1,
		players:  make(map[int64]*playerRecord),
		sessions: make(map[string]int64),
		flags:    make(map[int64][]domain.RedeemedFlag),
		catalog:  seedCatalog(),
		users:    seedUsers(),
		recipes:  seedRecipes(),
		logs:     seedLogs(),
	}
}

// Router creates and configures the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/health", s.HealthCheck)
	r.Get("/ws", s.HandleFeed)

	r.Route("/api", func(r chi.Router) {
		r.Get("/session", s.CheckSession)
		r.Get("/search", s.Search)

		r.Route("/game", func(r chi.Router) {
			r.Post("/register", s.Register)
			r.Get("/vulnerabilities", s.Catalog)
			r.Post("/submit-flag", s.SubmitFlag)
			r.Get("/my-flags", s.MyFlags)
			r.Get("/leaderboard", s.Leaderboard)
		})

		r.Route("/labs", func(r chi.Router) {
			r.Post("/login", s.LabLogin)
			r.Post("/weak-auth", s.LabWeakAuth)
			r.Get("/profile", s.LabProfile)
			r.Get("/logs", s.LabLogs)
			r.Post("/recipes/{id}/lock", s.RecipeLock)
			r.Post("/recipes/{id}/unlock", s.RecipeUnlock)
			r.Delete("/recipes/{id}", s.RecipeDelete)
			r.Post("/users/{id}/password", s.UserPasswordChange)
		})
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeFailure writes a success=false payload with a reason.
func (s *Server) writeFailure(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{
		"success": false,
		"message": message,
	})
}

// HealthCheck returns service health status
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// HandleFeed upgrades to the score feed.
func (s *Server) HandleFeed(w http.ResponseWriter, r *http.Request) {
	live.ServeFeed(s.hub, s.logger, w, r)
}

// sessionPlayer resolves the request's session cookie to a player record.
func (s *Server) sessionPlayer(r *http.Request) *playerRecord {
	cookie, err := r.Cookie("session_token")
	if err != nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.sessions[cookie.Value]
	if !ok {
		return nil
	}
	return s.players[id]
}

// totalFor sums a player's redeemed points. Callers hold s.mu.
func (s *Server) totalFor(playerID int64) int {
	total := 0
	for _, f := range s.flags[playerID] {
		total += f.Points
	}
	return total
}

// toUserPayload converts a player record to the wire user shape.
func (s *Server) toUserPayload(p *playerRecord) *api.UserPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &api.UserPayload{
		ID:         p.ID,
		NumericID:  p.NumericID,
		Role:       api.RolePlayer,
		Nombre:     p.Nombre,
		Apellido:   p.Apellido,
		Email:      p.Email,
		Nickname:   p.Nickname,
		Username:   p.Nickname,
		TotalScore: s.totalFor(p.NumericID),
	}
}

// standings returns all players ordered by score descending, nickname
// ascending for ties. Callers hold s.mu.
func (s *Server) standings() []*playerRecord {
	out := make([]*playerRecord, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		si, sj := s.totalFor(out[i].NumericID), s.totalFor(out[j].NumericID)
		if si != sj {
			return si > sj
		}
		return out[i].Nickname < out[j].Nickname
	})
	return out
}

// createPlayer registers a player and opens a session for them. It returns
// the record and the session token.
func (s *Server) createPlayer(nickname, nombre, apellido, email string) (*playerRecord, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := &playerRecord{
		ID:        uuid.New().String(),
		NumericID: s.nextID,
		Nickname:  nickname,
		Nombre:    nombre,
		Apellido:  apellido,
		Email:     email,
		CreatedAt: time.Now(),
	}
	s.nextID++
	s.players[p.NumericID] = p

	token := uuid.New().String()
	s.sessions[token] = p.NumericID
	return p, token
}

// Seed populates demo players with pre-redeemed flags so the leaderboard has
// content to paginate. Nicknames follow the generated Prefix+N scheme.
func (s *Server) Seed(count int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := 0; i < count; i++ {
		p := &playerRecord{
			ID:        uuid.New().String(),
			NumericID: s.nextID,
			Nickname:  demoNickname(i),
			Nombre:    "Demo",
			Apellido:  "Player",
			CreatedAt: time.Now(),
		}
		s.nextID++
		s.players[p.NumericID] = p

		// Give each demo player a deterministic slice of the catalog.
		for j, entry := range s.catalog {
			if (i+j)%3 != 0 {
				continue
			}
			s.flags[p.NumericID] = append(s.flags[p.NumericID], domain.RedeemedFlag{
				Token:         entry.FlagToken,
				Points:        entry.Points,
				Vulnerability: entry.Name,
				CompletedAt:   time.Now(),
			})
		}
	}
	s.logger.Info("seeded demo players", "count", count)
}
