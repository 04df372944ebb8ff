package domain

import "errors"

// Domain errors. These map the failure taxonomy: absence of a session and a
// classification miss are steady states, connectivity failures are retryable,
// rejections carry the backend's verbatim reason, and stale responses are
// discarded silently.
var (
	ErrNoSession     = errors.New("no authenticated player session")
	ErrConnectivity  = errors.New("backend unreachable")
	ErrFlagRejected  = errors.New("flag rejected by backend")
	ErrStaleResponse = errors.New("response superseded by a newer request")
)

// RejectionError carries the backend's verbatim reason for refusing a flag
// submission (duplicate, unknown token, wrong player).
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string { return e.Reason }

// Is makes RejectionError match ErrFlagRejected under errors.Is.
func (e *RejectionError) Is(target error) bool { return target == ErrFlagRejected }

// IsConnectivity checks if an error is a retryable connectivity failure.
func IsConnectivity(err error) bool {
	return errors.Is(err, ErrConnectivity)
}

// IsStale checks if an error marks a superseded in-flight response.
func IsStale(err error) bool {
	return errors.Is(err, ErrStaleResponse)
}
