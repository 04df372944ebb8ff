package trainer

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ctfquest/internal/api"
	"github.com/ctfquest/internal/domain"
)

// CheckSession resolves the session cookie into the wire user payload.
func (s *Server) CheckSession(w http.ResponseWriter, r *http.Request) {
	p := s.sessionPlayer(r)
	if p == nil {
		s.writeJSON(w, http.StatusOK, api.SessionResponse{
			Success: false,
			Message: "no active session",
		})
		return
	}
	s.writeJSON(w, http.StatusOK, api.SessionResponse{
		Success: true,
		Usuario: s.toUserPayload(p),
	})
}

// Register creates a player and opens a session.
func (s *Server) Register(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Nickname == "" || req.Nombre == "" || req.Apellido == "" || req.Email == "" {
		s.writeFailure(w, http.StatusOK, "all fields are required")
		return
	}

	s.mu.Lock()
	for _, p := range s.players {
		if p.Nickname == req.Nickname {
			s.mu.Unlock()
			s.writeFailure(w, http.StatusOK, "nickname already exists")
			return
		}
		if p.Email != "" && p.Email == req.Email {
			s.mu.Unlock()
			s.writeFailure(w, http.StatusOK, "email already registered")
			return
		}
	}
	s.mu.Unlock()

	p, token := s.createPlayer(req.Nickname, req.Nombre, req.Apellido, req.Email)
	s.logger.Info("player registered", "nickname", p.Nickname, "numeric_id", p.NumericID)

	http.SetCookie(w, &http.Cookie{Name: "session_token", Value: token, Path: "/"})
	s.writeJSON(w, http.StatusOK, api.RegisterResponse{
		Success:      true,
		Player:       s.toUserPayload(p),
		SessionToken: token,
	})
}

// Catalog returns the vulnerability definitions.
func (s *Server) Catalog(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	entries := make([]domain.CatalogEntry, len(s.catalog))
	copy(entries, s.catalog)
	s.mu.Unlock()

	s.writeJSON(w, http.StatusOK, api.CatalogResponse{
		Success:         true,
		Vulnerabilities: entries,
	})
}

// SubmitFlag validates and records a flag submission.
func (s *Server) SubmitFlag(w http.ResponseWriter, r *http.Request) {
	p := s.sessionPlayer(r)
	if p == nil {
		s.writeFailure(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req api.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FlagHash == "" {
		s.writeFailure(w, http.StatusOK, "incomplete submission")
		return
	}

	s.mu.Lock()
	var entry *domain.CatalogEntry
	for i := range s.catalog {
		if s.catalog[i].FlagToken == req.FlagHash {
			entry = &s.catalog[i]
			break
		}
	}
	if entry == nil {
		s.mu.Unlock()
		s.writeFailure(w, http.StatusOK, "invalid flag")
		return
	}
	for _, f := range s.flags[p.NumericID] {
		if f.Token == req.FlagHash {
			s.mu.Unlock()
			s.writeFailure(w, http.StatusOK, "you already completed this vulnerability")
			return
		}
	}
	s.flags[p.NumericID] = append(s.flags[p.NumericID], domain.RedeemedFlag{
		Token:         entry.FlagToken,
		Points:        entry.Points,
		Vulnerability: entry.Name,
		CompletedAt:   time.Now(),
	})
	points, name := entry.Points, entry.Name
	s.mu.Unlock()

	s.logger.Info("flag accepted",
		"nickname", p.Nickname,
		"vulnerability", name,
		"points", points,
	)
	if s.hub != nil {
		s.hub.BroadcastScoreUpdate(p.NumericID, p.Nickname, points, name)
	}

	s.writeJSON(w, http.StatusOK, api.SubmitResponse{
		Success:       true,
		Message:       "vulnerability " + name + " completed! +" + strconv.Itoa(points) + " points",
		Points:        points,
		Vulnerability: name,
	})
}

// MyFlags returns the session player's redeemed flags.
func (s *Server) MyFlags(w http.ResponseWriter, r *http.Request) {
	p := s.sessionPlayer(r)
	if p == nil {
		s.writeFailure(w, http.StatusUnauthorized, "authentication required")
		return
	}

	s.mu.Lock()
	flags := make([]api.FlagPayload, 0, len(s.flags[p.NumericID]))
	for _, f := range s.flags[p.NumericID] {
		flags = append(flags, api.FlagPayload{
			FlagHash:          f.Token,
			Points:            f.Points,
			VulnerabilityType: f.Vulnerability,
			CompletedAt:       f.CompletedAt.Format("2006-01-02 15:04:05"),
		})
	}
	total := s.totalFor(p.NumericID)
	s.mu.Unlock()

	s.writeJSON(w, http.StatusOK, api.MyFlagsResponse{
		Success:     true,
		Flags:       flags,
		TotalPoints: total,
	})
}

// Leaderboard returns one page of the global ranking plus the aggregate
// stats. Out-of-range pages are clamped, never an error.
func (s *Server) Leaderboard(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 {
		perPage = 20
	}
	if perPage > maxPageSize {
		perPage = maxPageSize
	}

	s.mu.Lock()
	ranked := s.standings()
	totalPlayers := len(ranked)
	totalPages := (totalPlayers + perPage - 1) / perPage
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * perPage
	end := start + perPage
	if end > totalPlayers {
		end = totalPlayers
	}

	rows := make([]domain.LeaderboardRow, 0, end-start)
	for i := start; i < end; i++ {
		p := ranked[i]
		rows = append(rows, domain.LeaderboardRow{
			Position:       i + 1,
			PlayerID:       p.NumericID,
			Nickname:       p.Nickname,
			TotalScore:     s.totalFor(p.NumericID),
			FlagsCompleted: len(s.flags[p.NumericID]),
		})
	}

	stats := domain.GlobalStats{}
	for _, p := range ranked {
		if total := s.totalFor(p.NumericID); total > 0 {
			stats.PlayersWithScore++
			if total > stats.TopScore {
				stats.TopScore = total
			}
		}
	}
	s.mu.Unlock()

	s.writeJSON(w, http.StatusOK, api.LeaderboardResponse{
		Success:     true,
		Leaderboard: rows,
		Pagination: domain.PaginationState{
			Page:         page,
			PageSize:     perPage,
			TotalPages:   totalPages,
			TotalPlayers: totalPlayers,
			HasNext:      page < totalPages,
			HasPrev:      page > 1,
		},
		GlobalStats: stats,
	})
}

// Search is the recipe-search lab. The query is matched against the recipe
// fixtures; injection patterns widen the result set, leak the user table or
// fail with a simulated query error, mirroring the vulnerable original.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	lowered := strings.ToLower(query)

	// Simulated parse failure for boolean-blind probes.
	if strings.Contains(lowered, "' and 1=2") {
		s.writeFailure(w, http.StatusInternalServerError, `database error: unrecognized token near "AND"`)
		return
	}

	users := s.snapshotUsers()
	recipes := s.snapshotRecipes()

	res := api.LabResponse{Success: true}
	switch {
	case strings.Contains(lowered, "union") && strings.Contains(lowered, "select"):
		// Cross-table extraction: recipe rows replaced by user credentials.
		// No explicit flag; detection is the client's job here.
		for _, u := range users {
			res.Recetas = append(res.Recetas, domain.ResultRow{
				"id":       u.ID,
				"username": u.Username,
				"password": u.Password,
				"role":     u.Role,
			})
		}
		res.Message = "search returned unexpected columns"

	case strings.Contains(lowered, "' or 1=1") || strings.Contains(lowered, "%' or") ||
		strings.Contains(lowered, "' or '1'='1"):
		// Filter bypass: every recipe comes back, hidden ones included.
		for _, rec := range recipes {
			res.Recetas = append(res.Recetas, rec.toRow())
		}
		res.Message = "search matched all records"

	default:
		for _, rec := range recipes {
			if rec.Hidden {
				continue
			}
			if query == "" || strings.Contains(strings.ToLower(rec.Name), lowered) {
				res.Recetas = append(res.Recetas, rec.toRow())
			}
		}
	}
	if res.Recetas == nil {
		res.Recetas = []domain.ResultRow{}
	}

	s.writeJSON(w, http.StatusOK, res)
}

// LabLogin is the vulnerable-login lab: classic quote-bypass payloads log in
// without credentials and earn the login-bypass flag.
func (s *Server) LabLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}

	combined := strings.ToLower(req.Username + " " + req.Password)
	bypass := strings.Contains(combined, "' or '1'='1") || strings.Contains(combined, "' or 1=1--")

	users := s.snapshotUsers()
	if bypass {
		entry, _ := s.entryByID(domain.VulnLoginBypass)
		admin := users[0]
		s.writeJSON(w, http.StatusOK, api.LabResponse{
			Success:       true,
			Flag:          entry.FlagToken,
			Message:       "authentication bypassed",
			Vulnerability: entry.Name,
			Points:        entry.Points,
			User: &domain.ResultRow{
				"id":       admin.ID,
				"username": admin.Username,
				"role":     admin.Role,
			},
		})
		return
	}

	for _, u := range users {
		if u.Username == req.Username && u.Password == req.Password {
			s.writeJSON(w, http.StatusOK, api.LabResponse{
				Success: true,
				Message: "login successful",
				User: &domain.ResultRow{
					"id":       u.ID,
					"username": u.Username,
					"role":     u.Role,
				},
			})
			return
		}
	}
	s.writeFailure(w, http.StatusOK, "invalid credentials")
}

// LabWeakAuth is the weak-authentication lab: valid credentials from the
// known-weak password list earn the flag.
func (s *Server) LabWeakAuth(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}

	for _, u := range s.snapshotUsers() {
		if u.Username != req.Username || u.Password != req.Password {
			continue
		}
		res := api.LabResponse{
			Success: true,
			Message: "login successful",
			User: &domain.ResultRow{
				"id":       u.ID,
				"username": u.Username,
				"role":     u.Role,
			},
		}
		if isWeakPassword(req.Password) {
			entry, _ := s.entryByID(domain.VulnWeakAuth)
			res.Flag = entry.FlagToken
			res.Message = "weak credentials accepted"
			res.Vulnerability = entry.Name
			res.Points = entry.Points
		}
		s.writeJSON(w, http.StatusOK, res)
		return
	}
	s.writeFailure(w, http.StatusOK, "invalid credentials")
}

// LabProfile is the profile-by-id lab: fetching any profile other than your
// own demonstrates the insecure direct object reference.
func (s *Server) LabProfile(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		s.writeFailure(w, http.StatusOK, "user_id required")
		return
	}

	for _, u := range s.snapshotUsers() {
		if strconv.Itoa(u.ID) != userID {
			continue
		}
		res := api.LabResponse{
			Success: true,
			Message: "profile loaded",
			UserData: &domain.ResultRow{
				"id":        u.ID,
				"username":  u.Username,
				"role":      u.Role,
				"email":     u.Email,
				"full_name": u.FullName,
			},
		}
		// The visitor's own profile is id 1; anything else is a
		// cross-account read.
		if u.ID != 1 {
			entry, _ := s.entryByID(domain.VulnIDORProfiles)
			res.Flag = entry.FlagToken
			res.Message = "cross-account profile access"
			res.Vulnerability = entry.Name
			res.Points = entry.Points
		}
		s.writeJSON(w, http.StatusOK, res)
		return
	}
	s.writeFailure(w, http.StatusOK, "no profile found")
}

// LabLogs is the information-disclosure lab: the system log dump includes
// entries with credentials in them, which earns the flag.
func (s *Server) LabLogs(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	logs := make([]domain.ResultRow, len(s.logs))
	copy(logs, s.logs)
	s.mu.Unlock()

	res := api.LabResponse{
		Success: true,
		Message: "system logs retrieved",
		Logs:    logs,
	}

	sensitive := false
	for _, row := range logs {
		if details, ok := row["details"].(string); ok {
			lowered := strings.ToLower(details)
			if strings.Contains(lowered, "password") || strings.Contains(lowered, "flag") {
				sensitive = true
				break
			}
		}
	}
	if sensitive {
		entry, _ := s.entryByID(domain.VulnInfoDisclosure)
		res.Flag = entry.FlagToken
		res.Message = "sensitive data exposed in logs"
		res.Vulnerability = entry.Name
		res.Points = entry.Points
	}

	s.writeJSON(w, http.StatusOK, res)
}

// RecipeLock is the recipe-lock object action: any caller can set a lock
// password on any recipe, owner check missing. Locking a recipe that is not
// yours earns the flag.
func (s *Server) RecipeLock(w http.ResponseWriter, r *http.Request) {
	recipeID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		s.writeFailure(w, http.StatusBadRequest, "invalid recipe id")
		return
	}
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Password == "" {
		s.writeFailure(w, http.StatusOK, "password required")
		return
	}

	s.mu.Lock()
	var locked *recipe
	for i := range s.recipes {
		if s.recipes[i].ID == recipeID {
			s.recipes[i].Locked = true
			s.recipes[i].LockPassword = req.Password
			rec := s.recipes[i]
			locked = &rec
			break
		}
	}
	s.mu.Unlock()

	if locked == nil {
		s.writeFailure(w, http.StatusOK, "recipe not found")
		return
	}

	row := locked.toRow()
	res := api.LabResponse{
		Success: true,
		Message: "recipe locked",
		Receta:  &row,
	}
	if locked.OwnerID != 1 {
		entry, _ := s.entryByID(domain.VulnRecipeLock)
		res.Flag = entry.FlagToken
		res.Message = "locked a recipe you do not own"
		res.Vulnerability = entry.Name
		res.Points = entry.Points
	}
	s.writeJSON(w, http.StatusOK, res)
}

// RecipeUnlock is the recipe-unlock object action: the lock passwords on the
// private recipes are guessable, and unlocking one earns the flag.
func (s *Server) RecipeUnlock(w http.ResponseWriter, r *http.Request) {
	recipeID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		s.writeFailure(w, http.StatusBadRequest, "invalid recipe id")
		return
	}
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	var unlocked *recipe
	wrongPassword := false
	for i := range s.recipes {
		if s.recipes[i].ID != recipeID {
			continue
		}
		if s.recipes[i].Locked && s.recipes[i].LockPassword != req.Password {
			wrongPassword = true
			break
		}
		s.recipes[i].Locked = false
		s.recipes[i].LockPassword = ""
		rec := s.recipes[i]
		unlocked = &rec
		break
	}
	s.mu.Unlock()

	if wrongPassword {
		s.writeFailure(w, http.StatusOK, "incorrect password")
		return
	}
	if unlocked == nil {
		s.writeFailure(w, http.StatusOK, "recipe not found")
		return
	}

	row := unlocked.toRow()
	res := api.LabResponse{
		Success: true,
		Message: "recipe unlocked",
		Receta:  &row,
	}
	if unlocked.Hidden {
		entry, _ := s.entryByID(domain.VulnPrivateRecipe)
		res.Flag = entry.FlagToken
		res.Message = "private recipe unlocked"
		res.Vulnerability = entry.Name
		res.Points = entry.Points
	}
	s.writeJSON(w, http.StatusOK, res)
}

// RecipeDelete is the recipe-delete object action: deletion never checks
// ownership, and removing someone else's recipe earns the flag.
func (s *Server) RecipeDelete(w http.ResponseWriter, r *http.Request) {
	recipeID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		s.writeFailure(w, http.StatusBadRequest, "invalid recipe id")
		return
	}

	s.mu.Lock()
	var deleted *recipe
	for i := range s.recipes {
		if s.recipes[i].ID == recipeID {
			rec := s.recipes[i]
			deleted = &rec
			s.recipes = append(s.recipes[:i], s.recipes[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	if deleted == nil {
		s.writeFailure(w, http.StatusOK, "recipe not found")
		return
	}

	row := deleted.toRow()
	res := api.LabResponse{
		Success: true,
		Message: "recipe deleted",
		Receta:  &row,
	}
	if deleted.OwnerID != 1 {
		entry, _ := s.entryByID(domain.VulnRecipeDelete)
		res.Flag = entry.FlagToken
		res.Message = "deleted a recipe you do not own"
		res.Vulnerability = entry.Name
		res.Points = entry.Points
	}
	s.writeJSON(w, http.StatusOK, res)
}

// UserPasswordChange is the password-change object action: the endpoint
// accepts any user id, so resetting another account's password earns the flag.
func (s *Server) UserPasswordChange(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		s.writeFailure(w, http.StatusBadRequest, "invalid user id")
		return
	}
	var req struct {
		NewPassword string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.NewPassword == "" {
		s.writeFailure(w, http.StatusOK, "new_password required")
		return
	}

	s.mu.Lock()
	var changed *labUser
	for i := range s.users {
		if s.users[i].ID == userID {
			s.users[i].Password = req.NewPassword
			u := s.users[i]
			changed = &u
			break
		}
	}
	s.mu.Unlock()

	if changed == nil {
		s.writeFailure(w, http.StatusOK, "user not found")
		return
	}

	res := api.LabResponse{
		Success: true,
		Message: "password updated",
		User: &domain.ResultRow{
			"id":       changed.ID,
			"username": changed.Username,
			"role":     changed.Role,
		},
	}
	if changed.ID != 1 {
		entry, _ := s.entryByID(domain.VulnPasswordChange)
		res.Flag = entry.FlagToken
		res.Message = "changed another user's password"
		res.Vulnerability = entry.Name
		res.Points = entry.Points
	}
	s.writeJSON(w, http.StatusOK, res)
}

// snapshotUsers copies the user table out under the lock.
func (s *Server) snapshotUsers() []labUser {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]labUser, len(s.users))
	copy(out, s.users)
	return out
}

// snapshotRecipes copies the recipe table out under the lock.
func (s *Server) snapshotRecipes() []recipe {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]recipe, len(s.recipes))
	copy(out, s.recipes)
	return out
}

// entryByID looks up a catalog entry.
func (s *Server) entryByID(id int) (domain.CatalogEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.catalog {
		if e.ID == id {
			return e, true
		}
	}
	return domain.CatalogEntry{}, false
}
