// Package leaderboard maintains one paginated window over the global
// ranking. Every fetch replaces the full row set, stale in-flight responses
// are discarded under a latest-request-wins discipline, and the page-button
// window is computed from the pagination state.
package leaderboard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ctfquest/internal/api"
	"github.com/ctfquest/internal/domain"
)

// PageFetcher fetches one leaderboard page from the backend.
type PageFetcher interface {
	Leaderboard(ctx context.Context, page, perPage int) (*api.LeaderboardResponse, error)
}

// Window is the session-scoped leaderboard view.
type Window struct {
	api    PageFetcher
	logger *slog.Logger

	mu         sync.Mutex
	gen        uint64 // generation of the most recent request
	rows       []domain.LeaderboardRow
	pagination domain.PaginationState
	stats      domain.GlobalStats
	pageSize   int
	maxSize    int
	loaded     bool
}

// New creates a leaderboard window with the given page-size bounds.
func New(api PageFetcher, defaultSize, maxSize int, logger *slog.Logger) *Window {
	return &Window{
		api:      api,
		logger:   logger,
		pageSize: defaultSize,
		maxSize:  maxSize,
	}
}

// Fetch loads one page and replaces the displayed window. The requested page
// is clamped to [1, total_pages] when the total is already known. If a newer
// fetch starts while this one is in flight, the late response is discarded
// and ErrStaleResponse returned; stale discards are invisible to the user.
func (w *Window) Fetch(ctx context.Context, page int) error {
	w.mu.Lock()
	page = clampPage(page, w.pagination.TotalPages)
	size := w.pageSize
	w.gen++
	gen := w.gen
	w.mu.Unlock()

	res, err := w.api.Leaderboard(ctx, page, size)

	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.gen {
		w.logger.Debug("discarding stale leaderboard response", "page", page)
		return domain.ErrStaleResponse
	}
	if err != nil {
		return fmt.Errorf("fetching leaderboard page %d: %w", page, err)
	}

	w.rows = res.Leaderboard
	w.pagination = res.Pagination
	w.stats = res.GlobalStats
	w.loaded = true
	return nil
}

// Refresh re-fetches the currently selected page.
func (w *Window) Refresh(ctx context.Context) error {
	w.mu.Lock()
	page := w.pagination.Page
	w.mu.Unlock()
	if page == 0 {
		page = 1
	}
	return w.Fetch(ctx, page)
}

// SetPageSize changes the page size, resets to page 1 and re-fetches.
func (w *Window) SetPageSize(ctx context.Context, size int) error {
	if size < 1 {
		size = 1
	}
	if w.maxSize > 0 && size > w.maxSize {
		size = w.maxSize
	}
	w.mu.Lock()
	w.pageSize = size
	w.pagination.TotalPages = 0 // totals are stale for the new size
	w.mu.Unlock()
	return w.Fetch(ctx, 1)
}

// Rows returns a copy of the current page's rows.
func (w *Window) Rows() []domain.LeaderboardRow {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]domain.LeaderboardRow, len(w.rows))
	copy(out, w.rows)
	return out
}

// Pagination returns the current pagination state.
func (w *Window) Pagination() domain.PaginationState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pagination
}

// Stats returns the global aggregate refreshed with the last fetch.
func (w *Window) Stats() domain.GlobalStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// Loaded reports whether at least one fetch has completed.
func (w *Window) Loaded() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.loaded
}

// Podium returns the first three rows when page 1 is displayed. This is a
// presentation rule conditioned on the page, not a data-model distinction.
func (w *Window) Podium() []domain.LeaderboardRow {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pagination.Page != 1 {
		return nil
	}
	n := len(w.rows)
	if n > 3 {
		n = 3
	}
	out := make([]domain.LeaderboardRow, n)
	copy(out, w.rows[:n])
	return out
}

// ScoreFor looks up the given player in the current window. The second
// return is false when the player is not on the loaded page.
func (w *Window) ScoreFor(playerID int64) (int, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, row := range w.rows {
		if row.PlayerID == playerID {
			return row.TotalScore, true
		}
	}
	return 0, false
}

// PageButtons returns the window of page numbers to offer: two pages before
// and after the current one, clipped to bounds.
func (w *Window) PageButtons() []int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return PageWindow(w.pagination.Page, w.pagination.TotalPages)
}

// PageWindow computes the page-button window centered on current, two before
// and two after, clipped to [1, total].
func PageWindow(current, total int) []int {
	if total < 1 {
		return nil
	}
	current = clampPage(current, total)
	lo := current - 2
	if lo < 1 {
		lo = 1
	}
	hi := current + 2
	if hi > total {
		hi = total
	}
	pages := make([]int, 0, hi-lo+1)
	for p := lo; p <= hi; p++ {
		pages = append(pages, p)
	}
	return pages
}

// clampPage keeps a page within [1, total]. A zero total means the bound is
// not yet known and only the lower bound applies.
func clampPage(page, total int) int {
	if page < 1 {
		return 1
	}
	if total > 0 && page > total {
		return total
	}
	return page
}
