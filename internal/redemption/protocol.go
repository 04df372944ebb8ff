// Package redemption implements the idempotent flag-redemption protocol:
// local short-circuit for already-captured tokens, optimistic ledger update
// on acceptance, verbatim backend reasons on rejection, and no local mutation
// on any failure.
package redemption

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ctfquest/internal/api"
	"github.com/ctfquest/internal/domain"
	"github.com/ctfquest/internal/ledger"
)

// User-visible reasons produced locally, without a network round-trip.
const (
	ReasonNotRegistered   = "not registered as a player"
	ReasonAlreadyCaptured = "already captured"
	ReasonInFlight        = "submission already in progress"
)

// Submitter submits a flag token to the backend.
type Submitter interface {
	SubmitFlag(ctx context.Context, token string) (*api.SubmitResponse, error)
}

// Outcome is the result of one submission attempt.
type Outcome struct {
	Accepted      bool
	Points        int
	Vulnerability string
	Reason        string
}

// Protocol coordinates flag submissions against the ledger.
type Protocol struct {
	api    Submitter
	ledger *ledger.Ledger
	logger *slog.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// New creates a redemption protocol bound to a ledger.
func New(api Submitter, l *ledger.Ledger, logger *slog.Logger) *Protocol {
	return &Protocol{
		api:      api,
		ledger:   l,
		logger:   logger,
		inFlight: make(map[string]struct{}),
	}
}

// Submit runs the redemption protocol for one token.
//
// Preconditions are checked before any network call: a present player and a
// token not already in the ledger. On backend acceptance the flag is appended
// to the ledger optimistically; the caller is expected to schedule a ledger
// reload, which always supersedes the optimistic write. On rejection the
// backend's reason is surfaced verbatim and nothing is mutated. On
// connectivity failure the returned error wraps domain.ErrConnectivity and
// the operation is safely retryable.
func (p *Protocol) Submit(ctx context.Context, player *domain.Player, token string) (Outcome, error) {
	if player == nil {
		return Outcome{Reason: ReasonNotRegistered}, domain.ErrNoSession
	}
	if p.ledger.Contains(token) {
		p.logger.Debug("flag already in ledger, short-circuiting", "token", token)
		return Outcome{Reason: ReasonAlreadyCaptured}, nil
	}

	if !p.begin(token) {
		return Outcome{Reason: ReasonInFlight}, nil
	}
	defer p.end(token)

	res, err := p.api.SubmitFlag(ctx, token)
	if err != nil {
		var rej *domain.RejectionError
		if errors.As(err, &rej) {
			p.logger.Info("flag rejected by backend", "reason", rej.Reason)
			return Outcome{Reason: rej.Reason}, nil
		}
		return Outcome{}, fmt.Errorf("submitting flag: %w", err)
	}

	p.ledger.Append(domain.RedeemedFlag{
		Token:         token,
		Points:        res.Points,
		Vulnerability: res.Vulnerability,
		CompletedAt:   time.Now(),
	})
	p.logger.Info("flag accepted",
		"vulnerability", res.Vulnerability,
		"points", res.Points,
	)

	return Outcome{
		Accepted:      true,
		Points:        res.Points,
		Vulnerability: res.Vulnerability,
		Reason:        res.Message,
	}, nil
}

// begin marks a token as having an outstanding submission. It returns false
// when one is already in flight, so the same token is never submitted twice
// concurrently.
func (p *Protocol) begin(token string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.inFlight[token]; busy {
		return false
	}
	p.inFlight[token] = struct{}{}
	return true
}

func (p *Protocol) end(token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inFlight, token)
}
