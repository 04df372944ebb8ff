// Package ledger holds the authoritative local cache of the player's
// redeemed flags. Reload always replaces the full set with the backend's
// list; the derived point sum is preferred over any other score source.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ctfquest/internal/domain"
)

// FlagsFetcher fetches the player's redeemed flags from the backend.
type FlagsFetcher interface {
	MyFlags(ctx context.Context) ([]domain.RedeemedFlag, int, error)
}

// Ledger is the session-scoped flag cache.
type Ledger struct {
	api    FlagsFetcher
	logger *slog.Logger

	mu     sync.RWMutex
	flags  []domain.RedeemedFlag
	loaded bool
}

// New creates an empty ledger backed by the given fetcher.
func New(api FlagsFetcher, logger *slog.Logger) *Ledger {
	return &Ledger{api: api, logger: logger}
}

// Reload replaces the entire local set with the backend's authoritative list.
// It never merges partially, which guarantees convergence after any external
// change. On failure the previous state is kept untouched.
func (l *Ledger) Reload(ctx context.Context) ([]domain.RedeemedFlag, error) {
	flags, total, err := l.api.MyFlags(ctx)
	if err != nil {
		return nil, fmt.Errorf("reloading flag ledger: %w", err)
	}

	l.mu.Lock()
	l.flags = flags
	l.loaded = true
	l.mu.Unlock()

	l.logger.Debug("flag ledger reloaded", "flags", len(flags), "total_points", total)
	return l.Flags(), nil
}

// Flags returns a copy of the current flag list.
func (l *Ledger) Flags() []domain.RedeemedFlag {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.RedeemedFlag, len(l.flags))
	copy(out, l.flags)
	return out
}

// Total returns the point sum over all redeemed flags.
func (l *Ledger) Total() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	total := 0
	for _, f := range l.flags {
		total += f.Points
	}
	return total
}

// Contains reports whether the token was already redeemed.
func (l *Ledger) Contains(token string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, f := range l.flags {
		if f.Token == token {
			return true
		}
	}
	return false
}

// Count returns the number of redeemed flags.
func (l *Ledger) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.flags)
}

// Loaded reports whether at least one reload has completed.
func (l *Ledger) Loaded() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.loaded
}

// Append records a tentative flag after an accepted redemption. Duplicates
// are ignored so the optimistic write stays idempotent. The next Reload
// supersedes whatever was appended here.
func (l *Ledger) Append(flag domain.RedeemedFlag) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, f := range l.flags {
		if f.Token == flag.Token {
			return
		}
	}
	l.flags = append(l.flags, flag)
}

// Reset clears the ledger on logout or session loss.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.flags = nil
	l.loaded = false
}
