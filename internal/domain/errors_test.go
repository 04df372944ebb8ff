package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRejectionError(t *testing.T) {
	err := fmt.Errorf("submitting flag: %w", &RejectionError{Reason: "already completed"})

	assert.ErrorIs(t, err, ErrFlagRejected)

	var rej *RejectionError
	assert.ErrorAs(t, err, &rej)
	assert.Equal(t, "already completed", rej.Reason)
	assert.Equal(t, "already completed", rej.Error())
}

func TestErrorHelpers(t *testing.T) {
	assert.True(t, IsConnectivity(fmt.Errorf("%w: dial tcp refused", ErrConnectivity)))
	assert.False(t, IsConnectivity(errors.New("dial tcp refused")))

	assert.True(t, IsStale(fmt.Errorf("fetching page: %w", ErrStaleResponse)))
	assert.False(t, IsStale(ErrConnectivity))
}
