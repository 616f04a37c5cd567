package orchestrator

import "fmt"

// State is a bond's position in its lifecycle. The first four states are
// global to the bond; RedeemRequested and Redeemed are per holder.
type State string

const (
	StateCreated          State = "created"
	StateSubscriptionOpen State = "subscription_open"
	StateIssuanceClosed   State = "issuance_closed"
	StateFunded           State = "funded"
	StateRedeemRequested  State = "redeem_requested"
	StateRedeemed         State = "redeemed"
)

// legalSources maps each state to the states it may be entered from. The
// ledger contracts enforce these transitions authoritatively; this table
// exists so workflows with cheap preconditions can fail before submitting.
var legalSources = map[State][]State{
	StateSubscriptionOpen: {StateCreated},
	StateIssuanceClosed:   {StateSubscriptionOpen},
	StateFunded:           {StateIssuanceClosed},
	StateRedeemRequested:  {StateFunded},
	StateRedeemed:         {StateRedeemRequested},
}

// CanTransition reports whether moving from one state to another is legal.
func CanTransition(from, to State) bool {
	for _, src := range legalSources[to] {
		if src == from {
			return true
		}
	}
	return false
}

// TransitionError describes an illegal lifecycle move detected before any
// ledger submission.
type TransitionError struct {
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal lifecycle transition from %s to %s", e.From, e.To)
}
