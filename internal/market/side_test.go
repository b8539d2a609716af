package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSide(t *testing.T) {
	s, err := ParseSide("sell")
	require.NoError(t, err)
	assert.Equal(t, SideSell, s)

	s, err = ParseSide("buy")
	require.NoError(t, err)
	assert.Equal(t, SideBuy, s)

	// No free-text comparison: casing variants are rejected, not coerced.
	_, err = ParseSide("SELL")
	assert.Error(t, err)
	_, err = ParseSide("wts")
	assert.Error(t, err)
}

func TestSideOpposite(t *testing.T) {
	assert.Equal(t, SideBuy, SideSell.Opposite())
	assert.Equal(t, SideSell, SideBuy.Opposite())
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("buyer")
	require.NoError(t, err)
	assert.Equal(t, RoleBuyer, r)
	_, err = ParseRole("middleman")
	assert.Error(t, err)
}

func TestEventTransitions(t *testing.T) {
	assert.True(t, CanTransitionEvent(EventPending, EventStarted))
	assert.True(t, CanTransitionEvent(EventStarted, EventCompleted))
	assert.True(t, CanTransitionEvent(EventPending, EventCancelled))
	assert.False(t, CanTransitionEvent(EventPending, EventCompleted))
	assert.False(t, CanTransitionEvent(EventCompleted, EventStarted))
	assert.False(t, CanTransitionEvent(EventCancelled, EventStarted))
}
