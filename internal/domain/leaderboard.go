package domain

// LeaderboardRow is a snapshot of one player's standing as reported by the
// backend for a single page of results. Rows are never merged incrementally;
// every fetch replaces the full set.
type LeaderboardRow struct {
	Position       int    `json:"position"`
	PlayerID       int64  `json:"id"`
	Nickname       string `json:"nickname"`
	TotalScore     int    `json:"total_score"`
	FlagsCompleted int    `json:"flags_completed"`
}

// PaginationState describes the window position within the full ranking.
// Page is always within [1, TotalPages] once TotalPages is known.
type PaginationState struct {
	Page         int  `json:"page"`
	PageSize     int  `json:"per_page"`
	TotalPages   int  `json:"total_pages"`
	TotalPlayers int  `json:"total_players"`
	HasNext      bool `json:"has_next"`
	HasPrev      bool `json:"has_prev"`
}

// GlobalStats is the denormalized aggregate refreshed alongside the
// leaderboard. It is never computed client-side from a partial page.
type GlobalStats struct {
	TopScore         int `json:"top_score"`
	PlayersWithScore int `json:"total_players_with_score"`
}
