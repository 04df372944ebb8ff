package reconciler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	t.Run("ledger wins when loaded", func(t *testing.T) {
		score, source := Resolve(Inputs{
			SessionScore: 100,
			LedgerSum:    350,
			LedgerLoaded: true,
			RowScore:     300,
			RowFound:     true,
		})
		assert.Equal(t, 350, score)
		assert.Equal(t, SourceLedger, source)
	})

	t.Run("loaded empty ledger still wins", func(t *testing.T) {
		// A loaded ledger with no flags means zero points, even if the
		// session claimed otherwise.
		score, source := Resolve(Inputs{
			SessionScore: 100,
			LedgerSum:    0,
			LedgerLoaded: true,
		})
		assert.Equal(t, 0, score)
		assert.Equal(t, SourceLedger, source)
	})

	t.Run("leaderboard row before ledger loads", func(t *testing.T) {
		score, source := Resolve(Inputs{
			SessionScore: 100,
			RowScore:     300,
			RowFound:     true,
		})
		assert.Equal(t, 300, score)
		assert.Equal(t, SourceLeaderboard, source)
	})

	t.Run("session value as last resort", func(t *testing.T) {
		score, source := Resolve(Inputs{SessionScore: 100})
		assert.Equal(t, 100, score)
		assert.Equal(t, SourceSession, source)
	})
}

func TestSourceString(t *testing.T) {
	assert.Equal(t, "ledger", SourceLedger.String())
	assert.Equal(t, "leaderboard", SourceLeaderboard.String())
	assert.Equal(t, "session", SourceSession.String())
}
