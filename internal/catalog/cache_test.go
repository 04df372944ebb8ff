package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctfquest/internal/domain"
)

type stubFetcher struct {
	entries []domain.CatalogEntry
	err     error
	calls   int
}

func (s *stubFetcher) Catalog(ctx context.Context) ([]domain.CatalogEntry, error) {
	s.calls++
	return s.entries, s.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoad_FetchesOnce(t *testing.T) {
	fetcher := &stubFetcher{entries: []domain.CatalogEntry{
		{ID: domain.VulnIDORProfiles, Name: "IDOR en Perfiles", Points: 150, FlagToken: "flag-idor"},
	}}
	c := New(fetcher, testLogger())

	require.NoError(t, c.Load(context.Background()))
	require.NoError(t, c.Load(context.Background()))
	assert.Equal(t, 1, fetcher.calls)
	assert.True(t, c.Loaded())
	assert.Len(t, c.Entries(), 1)
}

func TestLoad_FailureStaysUnloaded(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("backend down")}
	c := New(fetcher, testLogger())

	require.Error(t, c.Load(context.Background()))
	assert.False(t, c.Loaded())

	// The next Load retries instead of caching the failure.
	fetcher.err = nil
	fetcher.entries = []domain.CatalogEntry{{ID: 1, FlagToken: "flag-idor"}}
	require.NoError(t, c.Load(context.Background()))
	assert.True(t, c.Loaded())
	assert.Equal(t, 2, fetcher.calls)
}

func TestLookups(t *testing.T) {
	fetcher := &stubFetcher{entries: []domain.CatalogEntry{
		{ID: domain.VulnWeakAuth, Name: "Autenticacion Debil", FlagToken: "flag-weak"},
		{ID: domain.VulnLoginBypass, Name: "Bypass de Login", FlagToken: "flag-login"},
	}}
	c := New(fetcher, testLogger())
	require.NoError(t, c.Load(context.Background()))

	e, ok := c.ByID(domain.VulnLoginBypass)
	require.True(t, ok)
	assert.Equal(t, "Bypass de Login", e.Name)

	e, ok = c.ByToken("flag-weak")
	require.True(t, ok)
	assert.Equal(t, domain.VulnWeakAuth, e.ID)

	_, ok = c.ByID(99)
	assert.False(t, ok)
	_, ok = c.ByToken("nope")
	assert.False(t, ok)
}
