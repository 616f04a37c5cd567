package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	legal := []struct{ from, to State }{
		{StateCreated, StateSubscriptionOpen},
		{StateSubscriptionOpen, StateIssuanceClosed},
		{StateIssuanceClosed, StateFunded},
		{StateFunded, StateRedeemRequested},
		{StateRedeemRequested, StateRedeemed},
	}
	for _, tc := range legal {
		assert.True(t, CanTransition(tc.from, tc.to), "%s -> %s should be legal", tc.from, tc.to)
	}

	illegal := []struct{ from, to State }{
		{StateCreated, StateIssuanceClosed},
		{StateSubscriptionOpen, StateFunded},
		{StateIssuanceClosed, StateIssuanceClosed},
		{StateFunded, StateSubscriptionOpen},
		{StateRedeemed, StateRedeemRequested},
		{StateIssuanceClosed, StateRedeemRequested},
	}
	for _, tc := range illegal {
		assert.False(t, CanTransition(tc.from, tc.to), "%s -> %s should be illegal", tc.from, tc.to)
	}
}

func TestTransitionError(t *testing.T) {
	err := &TransitionError{From: StateIssuanceClosed, To: StateIssuanceClosed}
	assert.Equal(t, "illegal lifecycle transition from issuance_closed to issuance_closed", err.Error())
}
