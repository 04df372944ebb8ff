package api

import (
	"time"

	"github.com/ctfquest/internal/domain"
)

// RolePlayer is the backend's role string for game participants.
const RolePlayer = "jugador"

// timeLayout is the timestamp format the backend uses for completed_at.
const timeLayout = "2006-01-02 15:04:05"

// UserPayload is the wire shape of a user inside the session response.
type UserPayload struct {
	ID         string `json:"id"`
	NumericID  int64  `json:"numeric_id"`
	Role       string `json:"role"`
	Nombre     string `json:"nombre"`
	Apellido   string `json:"apellido"`
	Email      string `json:"email"`
	Nickname   string `json:"nickname"`
	Username   string `json:"username"`
	TotalScore int    `json:"total_score"`
}

// SessionResponse is the session-check endpoint payload.
type SessionResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Usuario *UserPayload `json:"usuario,omitempty"`
}

// RegisterRequest is the player-registration request body.
type RegisterRequest struct {
	Nickname string `json:"nickname"`
	Nombre   string `json:"nombre"`
	Apellido string `json:"apellido"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// RegisterResponse is the player-registration payload.
type RegisterResponse struct {
	Success      bool         `json:"success"`
	Message      string       `json:"message,omitempty"`
	Player       *UserPayload `json:"player,omitempty"`
	SessionToken string       `json:"session_token,omitempty"`
}

// CatalogResponse is the vulnerability-catalog payload.
type CatalogResponse struct {
	Success         bool                  `json:"success"`
	Message         string                `json:"message,omitempty"`
	Vulnerabilities []domain.CatalogEntry `json:"vulnerabilities"`
}

// SubmitRequest is the flag-submission request body.
type SubmitRequest struct {
	FlagHash string `json:"flag_hash"`
}

// SubmitResponse is the flag-submission payload.
type SubmitResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message,omitempty"`
	Points        int    `json:"points,omitempty"`
	Vulnerability string `json:"vulnerability,omitempty"`
}

// FlagPayload is the wire shape of one redeemed flag.
type FlagPayload struct {
	FlagHash          string `json:"flag_hash"`
	Points            int    `json:"points"`
	VulnerabilityType string `json:"vulnerability_type"`
	CompletedAt       string `json:"completed_at"`
}

// MyFlagsResponse is the my-flags payload.
type MyFlagsResponse struct {
	Success     bool          `json:"success"`
	Message     string        `json:"message,omitempty"`
	Flags       []FlagPayload `json:"flags"`
	TotalPoints int           `json:"total_points"`
}

// LeaderboardResponse is the leaderboard-fetch payload.
type LeaderboardResponse struct {
	Success     bool                    `json:"success"`
	Message     string                  `json:"message,omitempty"`
	Leaderboard []domain.LeaderboardRow `json:"leaderboard"`
	Pagination  domain.PaginationState  `json:"pagination"`
	GlobalStats domain.GlobalStats      `json:"global_stats"`
}

// LabResponse is the common wire shape of the free-form exploit endpoints.
// Exactly one of the row-bearing fields is populated per endpoint.
type LabResponse struct {
	Success       bool               `json:"success"`
	Message       string             `json:"message,omitempty"`
	Flag          string             `json:"flag,omitempty"`
	Vulnerability string             `json:"vulnerability,omitempty"`
	Points        int                `json:"points,omitempty"`
	Recetas       []domain.ResultRow `json:"recetas,omitempty"`
	Receta        *domain.ResultRow  `json:"receta,omitempty"`
	Logs          []domain.ResultRow `json:"logs,omitempty"`
	User          *domain.ResultRow  `json:"user,omitempty"`
	UserData      *domain.ResultRow  `json:"user_data,omitempty"`
}

// toExploitResult flattens a lab payload into the classifier's input shape.
func (r *LabResponse) toExploitResult() *domain.ExploitResult {
	res := &domain.ExploitResult{
		Success: r.Success,
		Flag:    r.Flag,
		Message: r.Message,
	}
	switch {
	case r.Recetas != nil:
		res.Rows = r.Recetas
	case r.Receta != nil:
		res.Rows = []domain.ResultRow{*r.Receta}
	case r.Logs != nil:
		res.Rows = r.Logs
	case r.User != nil:
		res.Rows = []domain.ResultRow{*r.User}
	case r.UserData != nil:
		res.Rows = []domain.ResultRow{*r.UserData}
	}
	return res
}

// toPlayer maps the wire user to the domain player record.
func (u *UserPayload) toPlayer() *domain.Player {
	return &domain.Player{
		ID:         u.ID,
		NumericID:  u.NumericID,
		Nickname:   u.Nickname,
		Username:   u.Username,
		FirstName:  u.Nombre,
		LastName:   u.Apellido,
		Email:      u.Email,
		TotalScore: u.TotalScore,
		Registered: true,
	}
}

// toFlag maps a wire flag to the domain record, tolerating both the backend's
// space-separated timestamps and RFC 3339.
func (f *FlagPayload) toFlag() domain.RedeemedFlag {
	ts, err := time.Parse(timeLayout, f.CompletedAt)
	if err != nil {
		ts, _ = time.Parse(time.RFC3339, f.CompletedAt)
	}
	return domain.RedeemedFlag{
		Token:         f.FlagHash,
		Points:        f.Points,
		Vulnerability: f.VulnerabilityType,
		CompletedAt:   ts,
	}
}
