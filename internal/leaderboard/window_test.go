package leaderboard

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctfquest/internal/api"
	"github.com/ctfquest/internal/domain"
)

// fakeBoard serves a deterministic ranking of n players at 10*i points.
type fakeBoard struct {
	mu      sync.Mutex
	players int
	calls   []int
	errNext error
	// hold, when non-nil, is waited on before answering; release by close.
	hold chan struct{}
}

func (f *fakeBoard) Leaderboard(ctx context.Context, page, perPage int) (*api.LeaderboardResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, page)
	hold := f.hold
	f.hold = nil
	err := f.errNext
	f.errNext = nil
	players := f.players
	f.mu.Unlock()

	if hold != nil {
		<-hold
	}
	if err != nil {
		return nil, err
	}

	totalPages := (players + perPage - 1) / perPage
	if totalPages < 1 {
		totalPages = 1
	}
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * perPage
	end := start + perPage
	if end > players {
		end = players
	}
	rows := make([]domain.LeaderboardRow, 0, end-start)
	for i := start; i < end; i++ {
		rows = append(rows, domain.LeaderboardRow{
			Position:   i + 1,
			PlayerID:   int64(i + 1),
			Nickname:   "player",
			TotalScore: (players - i) * 10,
		})
	}
	return &api.LeaderboardResponse{
		Success:     true,
		Leaderboard: rows,
		Pagination: domain.PaginationState{
			Page:         page,
			PageSize:     perPage,
			TotalPages:   totalPages,
			TotalPlayers: players,
			HasNext:      page < totalPages,
			HasPrev:      page > 1,
		},
		GlobalStats: domain.GlobalStats{TopScore: players * 10, PlayersWithScore: players},
	}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFetch_ReplacesWindow(t *testing.T) {
	board := &fakeBoard{players: 45}
	w := New(board, 20, 100, testLogger())

	require.NoError(t, w.Fetch(context.Background(), 1))
	assert.True(t, w.Loaded())
	assert.Len(t, w.Rows(), 20)
	assert.Equal(t, 3, w.Pagination().TotalPages)
	assert.Equal(t, 450, w.Stats().TopScore)

	require.NoError(t, w.Fetch(context.Background(), 3))
	rows := w.Rows()
	assert.Len(t, rows, 5, "last page holds the remainder")
	assert.Equal(t, 41, rows[0].Position)
}

func TestFetch_ClampsPage(t *testing.T) {
	board := &fakeBoard{players: 45}
	w := New(board, 20, 100, testLogger())

	// Totals unknown yet: only the lower bound applies.
	require.NoError(t, w.Fetch(context.Background(), -5))
	assert.Equal(t, 1, w.Pagination().Page)

	// Totals known: the upper bound applies before the request goes out.
	require.NoError(t, w.Fetch(context.Background(), 99))
	assert.Equal(t, 3, w.Pagination().Page)
	assert.Equal(t, 3, board.calls[len(board.calls)-1])
}

func TestFetch_StaleResponseDiscarded(t *testing.T) {
	board := &fakeBoard{players: 45}
	w := New(board, 20, 100, testLogger())
	require.NoError(t, w.Fetch(context.Background(), 1))

	// A page-2 request stalls in flight; the user navigates back to page 1
	// before it lands.
	hold := make(chan struct{})
	board.mu.Lock()
	board.hold = hold
	board.mu.Unlock()

	staleDone := make(chan error, 1)
	go func() { staleDone <- w.Fetch(context.Background(), 2) }()

	// Wait for the page-2 request to be issued.
	for {
		board.mu.Lock()
		issued := len(board.calls) >= 2
		board.mu.Unlock()
		if issued {
			break
		}
		time.Sleep(time.Millisecond)
	}

	require.NoError(t, w.Fetch(context.Background(), 1))
	close(hold)

	err := <-staleDone
	require.ErrorIs(t, err, domain.ErrStaleResponse)
	assert.True(t, domain.IsStale(err))

	// The window still shows page 1.
	assert.Equal(t, 1, w.Pagination().Page)
	assert.Equal(t, 1, w.Rows()[0].Position)
}

func TestFetch_ErrorKeepsPreviousWindow(t *testing.T) {
	board := &fakeBoard{players: 45}
	w := New(board, 20, 100, testLogger())
	require.NoError(t, w.Fetch(context.Background(), 1))

	board.mu.Lock()
	board.errNext = errors.New("backend down")
	board.mu.Unlock()

	err := w.Fetch(context.Background(), 2)
	require.Error(t, err)
	assert.Equal(t, 1, w.Pagination().Page)
	assert.Len(t, w.Rows(), 20)
}

func TestSetPageSize_ResetsToPageOne(t *testing.T) {
	board := &fakeBoard{players: 45}
	w := New(board, 20, 100, testLogger())
	require.NoError(t, w.Fetch(context.Background(), 3))

	require.NoError(t, w.SetPageSize(context.Background(), 50))
	pg := w.Pagination()
	assert.Equal(t, 1, pg.Page)
	assert.Equal(t, 50, pg.PageSize)
	assert.Equal(t, 1, pg.TotalPages)
	assert.Len(t, w.Rows(), 45)
}

func TestSetPageSize_Bounds(t *testing.T) {
	board := &fakeBoard{players: 45}
	w := New(board, 20, 100, testLogger())

	require.NoError(t, w.SetPageSize(context.Background(), 9999))
	assert.Equal(t, 100, w.Pagination().PageSize)

	require.NoError(t, w.SetPageSize(context.Background(), 0))
	assert.Equal(t, 1, w.Pagination().PageSize)
}

func TestPodium(t *testing.T) {
	board := &fakeBoard{players: 45}
	w := New(board, 20, 100, testLogger())

	require.NoError(t, w.Fetch(context.Background(), 1))
	podium := w.Podium()
	require.Len(t, podium, 3)
	assert.Equal(t, 1, podium[0].Position)

	// The podium is a page-1 presentation rule only.
	require.NoError(t, w.Fetch(context.Background(), 2))
	assert.Nil(t, w.Podium())
}

func TestScoreFor(t *testing.T) {
	board := &fakeBoard{players: 45}
	w := New(board, 20, 100, testLogger())
	require.NoError(t, w.Fetch(context.Background(), 1))

	score, found := w.ScoreFor(1)
	assert.True(t, found)
	assert.Equal(t, 450, score)

	_, found = w.ScoreFor(44) // lives on page 3
	assert.False(t, found)
}

func TestPageWindow(t *testing.T) {
	assert.Equal(t, []int{1, 2, 3, 4, 5}, PageWindow(3, 10))
	assert.Equal(t, []int{1, 2, 3}, PageWindow(1, 10))
	assert.Equal(t, []int{8, 9, 10}, PageWindow(10, 10))
	assert.Equal(t, []int{1}, PageWindow(1, 1))
	assert.Equal(t, []int{1, 2}, PageWindow(7, 2))
	assert.Nil(t, PageWindow(1, 0))
}
