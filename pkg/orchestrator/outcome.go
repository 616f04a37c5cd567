// Package orchestrator sequences multi-step confidential bond workflows:
// encrypt inputs off-chain, submit ledger transactions, await confirmations
// and drive the redemption claim loop. Every workflow returns a tri-state
// Outcome; the orchestrator never reports success before confirmation and
// never resubmits a transaction whose outcome is unknown.
package orchestrator

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/smartbond/middleware/pkg/ledger"
)

// Status is the terminal state of a workflow run.
type Status string

const (
	// StatusSucceeded means the final transaction confirmed at depth.
	StatusSucceeded Status = "succeeded"

	// StatusFailed means the workflow stopped on a definitive error.
	StatusFailed Status = "failed"

	// StatusPending means the retry budget was exhausted while the ledger-side
	// condition could still resolve. The workflow may be re-invoked later; no
	// transaction is in flight.
	StatusPending Status = "pending"
)

// Outcome is the terminal report of a workflow run.
type Outcome struct {
	Workflow string
	Status   Status
	TxHash   common.Hash
	Receipt  *ledger.Receipt
	Attempts int
	Err      error
}

func succeeded(workflow string, receipt *ledger.Receipt) Outcome {
	out := Outcome{Workflow: workflow, Status: StatusSucceeded, Receipt: receipt, Attempts: 1}
	if receipt != nil {
		out.TxHash = receipt.TxHash
	}
	return out
}

func failed(workflow string, err error) Outcome {
	return Outcome{Workflow: workflow, Status: StatusFailed, Err: err, Attempts: 1}
}

func pendingOutcome(workflow string, attempts int, err error) Outcome {
	return Outcome{Workflow: workflow, Status: StatusPending, Attempts: attempts, Err: err}
}
