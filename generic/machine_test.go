package generic

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type door string

var doorTransitions = Transitions[door]{
	"closed": {"open", "locked"},
	"open":   {"closed"},
	"locked": {"closed"},
}

func TestTransitions(t *testing.T) {
	assert.True(t, doorTransitions.Permits("closed", "locked"))
	assert.False(t, doorTransitions.Permits("open", "locked"))
	assert.False(t, doorTransitions.Permits("gone", "open"))

	assert.False(t, doorTransitions.IsTerminal("open"))
	assert.True(t, doorTransitions.IsTerminal("gone"))
}

func TestTransitions_CheckWrapsSentinel(t *testing.T) {
	err := doorTransitions.Check("open", "locked")

	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Contains(t, err.Error(), "open -> locked")
	assert.NoError(t, doorTransitions.Check("open", "closed"))
}

func TestErrorHelpers(t *testing.T) {
	conflict := fmt.Errorf("save loan L-1: %w", ErrConcurrentModification)
	missing := fmt.Errorf("get loan L-2: %w", ErrEntityNotFound)

	assert.True(t, IsRetryable(conflict))
	assert.False(t, IsRetryable(missing))
	assert.True(t, IsNotFound(missing))
	assert.False(t, IsNotFound(errors.New("boom")))
	assert.True(t, IsDuplicate(fmt.Errorf("create loan X1: %w", ErrDuplicateRecord)))
	assert.False(t, IsDuplicate(missing))
}
