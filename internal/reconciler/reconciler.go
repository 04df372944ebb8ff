// Package reconciler selects the single authoritative score when the
// session payload, the flag ledger and the leaderboard window disagree.
// It always picks exactly one source by fixed precedence, never blending:
// the ledger sum is recomputed from the complete redemption history and wins
// whenever it is available; the leaderboard row is a cross-check used only
// before the ledger has loaded; the session value is the initial placeholder.
package reconciler

// Source identifies which input a reconciled score came from.
type Source int

const (
	SourceSession Source = iota
	SourceLeaderboard
	SourceLedger
)

// String returns a short label for logging.
func (s Source) String() string {
	switch s {
	case SourceLedger:
		return "ledger"
	case SourceLeaderboard:
		return "leaderboard"
	default:
		return "session"
	}
}

// Inputs are the candidate score values and their availability.
type Inputs struct {
	SessionScore int
	LedgerSum    int
	LedgerLoaded bool
	RowScore     int
	RowFound     bool
}

// Resolve picks the authoritative score and reports where it came from.
func Resolve(in Inputs) (int, Source) {
	if in.LedgerLoaded {
		return in.LedgerSum, SourceLedger
	}
	if in.RowFound {
		return in.RowScore, SourceLeaderboard
	}
	return in.SessionScore, SourceSession
}
