package classifier

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctfquest/internal/domain"
)

func testCatalog() []domain.CatalogEntry {
	return []domain.CatalogEntry{
		{ID: domain.VulnIDORProfiles, Name: "IDOR en Perfiles", Points: 150, FlagToken: "flag-idor"},
		{ID: domain.VulnInfoDisclosure, Name: "Divulgacion de Informacion", Points: 80, FlagToken: "flag-info"},
		{ID: domain.VulnWeakAuth, Name: "Autenticacion Debil", Points: 120, FlagToken: "flag-weak"},
		{ID: domain.VulnLoginBypass, Name: "Bypass de Login", Points: 150, FlagToken: "flag-login"},
		{ID: domain.VulnHiddenRecords, Name: "Registros Ocultos", Points: 180, FlagToken: "flag-hidden"},
		{ID: domain.VulnUnionExtract, Name: "Extraccion con UNION", Points: 220, FlagToken: "flag-union"},
		{ID: domain.VulnBlindBoolean, Name: "Inyeccion Ciega Booleana", Points: 250, FlagToken: "flag-blind"},
	}
}

func rows(n int) []domain.ResultRow {
	out := make([]domain.ResultRow, n)
	for i := range out {
		out[i] = domain.ResultRow{"id": i, "nombre": "receta"}
	}
	return out
}

func TestClassify_ExplicitFlagIsAuthoritative(t *testing.T) {
	c := New()

	t.Run("flag token matches catalog entry", func(t *testing.T) {
		entry, ok := c.Classify(testCatalog(), Attempt{
			Payload: "anything at all",
			Result:  &domain.ExploitResult{Flag: "flag-idor"},
		})
		require.True(t, ok)
		assert.Equal(t, domain.VulnIDORProfiles, entry.ID)
	})

	t.Run("explicit flag bypasses heuristics even when a rule would match", func(t *testing.T) {
		// Payload looks like a login bypass, but the backend named the
		// weak-auth flag; the backend wins.
		entry, ok := c.Classify(testCatalog(), Attempt{
			Payload: "' or '1'='1",
			Result:  &domain.ExploitResult{Flag: "flag-weak", Rows: rows(1)},
		})
		require.True(t, ok)
		assert.Equal(t, domain.VulnWeakAuth, entry.ID)
	})

	t.Run("unknown flag token yields no detection", func(t *testing.T) {
		_, ok := c.Classify(testCatalog(), Attempt{
			Payload: "' or '1'='1",
			Result:  &domain.ExploitResult{Flag: "flag-nonexistent", Rows: rows(1)},
		})
		assert.False(t, ok)
	})
}

func TestClassify_RulePriority(t *testing.T) {
	c := New()

	t.Run("login bypass needs at least one row", func(t *testing.T) {
		entry, ok := c.Classify(testCatalog(), Attempt{
			Payload: "admin' OR '1'='1",
			Result:  &domain.ExploitResult{Rows: rows(1)},
		})
		require.True(t, ok)
		assert.Equal(t, domain.VulnLoginBypass, entry.ID)

		_, ok = c.Classify(testCatalog(), Attempt{
			Payload: "admin' OR '1'='1",
			Result:  &domain.ExploitResult{},
		})
		assert.False(t, ok)
	})

	t.Run("hidden records needs more than three rows", func(t *testing.T) {
		entry, ok := c.Classify(testCatalog(), Attempt{
			Payload: "x%' OR nombre LIKE '%",
			Result:  &domain.ExploitResult{Rows: rows(4)},
		})
		require.True(t, ok)
		assert.Equal(t, domain.VulnHiddenRecords, entry.ID)

		_, ok = c.Classify(testCatalog(), Attempt{
			Payload: "x%' OR nombre LIKE '%",
			Result:  &domain.ExploitResult{Rows: rows(3)},
		})
		assert.False(t, ok)
	})

	t.Run("bypass outranks hidden records on overlapping payloads", func(t *testing.T) {
		// ' or 1=1-- satisfies both the bypass and the aggregation pattern
		// with enough rows; fixed order picks the bypass.
		entry, ok := c.Classify(testCatalog(), Attempt{
			Payload: "' or 1=1--",
			Result:  &domain.ExploitResult{Rows: rows(10)},
		})
		require.True(t, ok)
		assert.Equal(t, domain.VulnLoginBypass, entry.ID)
	})

	t.Run("union keyword match", func(t *testing.T) {
		entry, ok := c.Classify(testCatalog(), Attempt{
			Payload: "' UNION SELECT username, password FROM users--",
			Result:  &domain.ExploitResult{},
		})
		require.True(t, ok)
		assert.Equal(t, domain.VulnUnionExtract, entry.ID)
	})

	t.Run("structural leak without union keyword", func(t *testing.T) {
		entry, ok := c.Classify(testCatalog(), Attempt{
			Payload: "mole",
			Result: &domain.ExploitResult{Rows: []domain.ResultRow{
				{"username": "admin", "password": "ChefObscuro123!"},
			}},
		})
		require.True(t, ok)
		assert.Equal(t, domain.VulnUnionExtract, entry.ID)
	})

	t.Run("blind boolean needs a backend error", func(t *testing.T) {
		entry, ok := c.Classify(testCatalog(), Attempt{
			Payload: "mole' AND 1=2--",
			Err:     errors.New("database error near AND"),
		})
		require.True(t, ok)
		assert.Equal(t, domain.VulnBlindBoolean, entry.ID)

		_, ok = c.Classify(testCatalog(), Attempt{
			Payload: "mole' AND 1=2--",
			Result:  &domain.ExploitResult{},
		})
		assert.False(t, ok)
	})
}

func TestClassify_UnionScenario(t *testing.T) {
	// A UNION extraction where the response has no explicit flag and the
	// rows carry user-table columns: the heuristic path must identify the
	// extraction entry.
	c := New()
	entry, ok := c.Classify(testCatalog(), Attempt{
		Payload: "' UNION SELECT id, username, password, role FROM users--",
		Result: &domain.ExploitResult{Rows: []domain.ResultRow{
			{"id": 2, "username": "admin", "password": "ChefObscuro123!", "role": "admin"},
			{"id": 3, "username": "abuela", "password": "abuela123", "role": "jugador"},
		}},
	})
	require.True(t, ok)
	assert.Equal(t, domain.VulnUnionExtract, entry.ID)
	assert.Equal(t, 220, entry.Points)
}

func TestClassify_EmptyCatalogSkips(t *testing.T) {
	c := New()
	_, ok := c.Classify(nil, Attempt{
		Payload: "' or '1'='1",
		Result:  &domain.ExploitResult{Flag: "flag-login", Rows: rows(1)},
	})
	assert.False(t, ok)
}

func TestClassify_MatchedRuleMissingFromCatalog(t *testing.T) {
	// Catalog without the bypass entry: the bypass rule matches but cannot
	// bind, and later rules do not get a turn.
	partial := []domain.CatalogEntry{
		{ID: domain.VulnHiddenRecords, Name: "Registros Ocultos", Points: 180, FlagToken: "flag-hidden"},
	}
	c := New()
	_, ok := c.Classify(partial, Attempt{
		Payload: "' or 1=1--",
		Result:  &domain.ExploitResult{Rows: rows(10)},
	})
	assert.False(t, ok)
}

func TestHasUserFields(t *testing.T) {
	assert.True(t, hasUserFields([]domain.ResultRow{
		{"login": "admin", "password_hash": "x"},
	}))
	assert.False(t, hasUserFields([]domain.ResultRow{
		{"username": "admin"},
		{"password": "x"},
	}))
	assert.False(t, hasUserFields(nil))
}
