package redemption

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctfquest/internal/api"
	"github.com/ctfquest/internal/domain"
	"github.com/ctfquest/internal/ledger"
)

type stubSubmitter struct {
	res     *api.SubmitResponse
	err     error
	calls   int
	block   chan struct{} // when set, SubmitFlag waits until closed
	started chan struct{}
}

func (s *stubSubmitter) SubmitFlag(ctx context.Context, token string) (*api.SubmitResponse, error) {
	s.calls++
	if s.started != nil {
		close(s.started)
		s.started = nil
	}
	if s.block != nil {
		<-s.block
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.res, nil
}

type noFlags struct{}

func (noFlags) MyFlags(ctx context.Context) ([]domain.RedeemedFlag, int, error) {
	return nil, 0, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func player() *domain.Player {
	return &domain.Player{ID: "p-1", NumericID: 7, Nickname: "tester", Registered: true}
}

func TestSubmit_NoPlayer(t *testing.T) {
	sub := &stubSubmitter{}
	p := New(sub, ledger.New(noFlags{}, testLogger()), testLogger())

	outcome, err := p.Submit(context.Background(), nil, "flag-a")
	require.ErrorIs(t, err, domain.ErrNoSession)
	assert.False(t, outcome.Accepted)
	assert.Equal(t, ReasonNotRegistered, outcome.Reason)
	assert.Zero(t, sub.calls, "no network call without a player")
}

func TestSubmit_AlreadyCaptured(t *testing.T) {
	sub := &stubSubmitter{}
	l := ledger.New(noFlags{}, testLogger())
	l.Append(domain.RedeemedFlag{Token: "flag-a", Points: 150})
	p := New(sub, l, testLogger())

	outcome, err := p.Submit(context.Background(), player(), "flag-a")
	require.NoError(t, err)
	assert.False(t, outcome.Accepted)
	assert.Equal(t, ReasonAlreadyCaptured, outcome.Reason)
	assert.Zero(t, sub.calls, "duplicate resolves locally")
}

func TestSubmit_Accepted(t *testing.T) {
	sub := &stubSubmitter{res: &api.SubmitResponse{
		Success:       true,
		Message:       "vulnerability completed",
		Points:        220,
		Vulnerability: "Extraccion con UNION",
	}}
	l := ledger.New(noFlags{}, testLogger())
	p := New(sub, l, testLogger())

	outcome, err := p.Submit(context.Background(), player(), "flag-union")
	require.NoError(t, err)
	assert.True(t, outcome.Accepted)
	assert.Equal(t, 220, outcome.Points)
	assert.Equal(t, "Extraccion con UNION", outcome.Vulnerability)

	// Optimistic ledger write makes an immediate resubmit a local no-op.
	assert.True(t, l.Contains("flag-union"))
	outcome, err = p.Submit(context.Background(), player(), "flag-union")
	require.NoError(t, err)
	assert.False(t, outcome.Accepted)
	assert.Equal(t, ReasonAlreadyCaptured, outcome.Reason)
	assert.Equal(t, 1, sub.calls)
}

func TestSubmit_RejectionReasonVerbatim(t *testing.T) {
	sub := &stubSubmitter{err: &domain.RejectionError{Reason: "you already completed this vulnerability"}}
	l := ledger.New(noFlags{}, testLogger())
	p := New(sub, l, testLogger())

	outcome, err := p.Submit(context.Background(), player(), "flag-a")
	require.NoError(t, err, "a rejection is an outcome, not an error")
	assert.False(t, outcome.Accepted)
	assert.Equal(t, "you already completed this vulnerability", outcome.Reason)
	assert.False(t, l.Contains("flag-a"), "rejection mutates nothing")
}

func TestSubmit_ConnectivityFailure(t *testing.T) {
	sub := &stubSubmitter{err: fmt.Errorf("posting flag: %w", domain.ErrConnectivity)}
	l := ledger.New(noFlags{}, testLogger())
	p := New(sub, l, testLogger())

	_, err := p.Submit(context.Background(), player(), "flag-a")
	require.ErrorIs(t, err, domain.ErrConnectivity)
	assert.False(t, l.Contains("flag-a"), "failure mutates nothing")

	// The same token is retryable once connectivity returns.
	sub.err = nil
	sub.res = &api.SubmitResponse{Success: true, Points: 150, Vulnerability: "Bypass de Login"}
	outcome, err := p.Submit(context.Background(), player(), "flag-a")
	require.NoError(t, err)
	assert.True(t, outcome.Accepted)
}

func TestSubmit_ConcurrentSameToken(t *testing.T) {
	sub := &stubSubmitter{
		res:     &api.SubmitResponse{Success: true, Points: 150},
		block:   make(chan struct{}),
		started: make(chan struct{}),
	}
	l := ledger.New(noFlags{}, testLogger())
	p := New(sub, l, testLogger())

	started := sub.started
	done := make(chan Outcome, 1)
	go func() {
		outcome, _ := p.Submit(context.Background(), player(), "flag-a")
		done <- outcome
	}()
	<-started

	// Second submission of the same token while the first is in flight.
	outcome, err := p.Submit(context.Background(), player(), "flag-a")
	require.NoError(t, err)
	assert.Equal(t, ReasonInFlight, outcome.Reason)

	close(sub.block)
	first := <-done
	assert.True(t, first.Accepted)
	assert.Equal(t, 1, sub.calls)
}
