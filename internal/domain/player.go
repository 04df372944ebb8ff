package domain

// Player is the current user's identity in the player role. The backend keys
// some endpoints on the stable string ID and others (leaderboard rows) on the
// numeric ID, so both are carried.
type Player struct {
	ID         string `json:"id"`
	NumericID  int64  `json:"numeric_id"`
	Nickname   string `json:"nickname"`
	Username   string `json:"username"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email,omitempty"`
	TotalScore int    `json:"total_score"`
	Registered bool   `json:"is_registered"`
}

// DisplayName returns the name shown in rankings and feedback messages.
func (p *Player) DisplayName() string {
	if p.Nickname != "" {
		return p.Nickname
	}
	return p.FirstName
}
