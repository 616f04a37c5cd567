// Package ledger submits and reads transactions against the EVM ledger that
// hosts the bond contracts.
package ledger

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// TransactionRequest describes a single contract write. Created per workflow
// step and discarded after submission.
type TransactionRequest struct {
	To       common.Address
	ABI      *abi.ABI
	Method   string
	Args     []any
	GasLimit uint64
}

// Receipt is the immutable confirmation record for a submitted transaction.
// It is only produced once the transaction has reached the requested
// confirmation depth.
type Receipt struct {
	TxHash        common.Hash
	BlockNumber   uint64
	GasUsed       uint64
	Confirmations uint64
}

var (
	// ErrRPCUnavailable indicates a transport-level failure talking to the node.
	ErrRPCUnavailable = errors.New("ledger: rpc unavailable")

	// ErrSubmissionRejected indicates the signer or node refused the
	// transaction before it entered the mempool.
	ErrSubmissionRejected = errors.New("ledger: submission rejected")

	// ErrConfirmationTimeout indicates the transaction did not reach the
	// required confirmation depth in time. The transaction may still land
	// later; callers must treat this as unknown outcome, not failure, and must
	// not resubmit.
	ErrConfirmationTimeout = errors.New("ledger: confirmation timeout")
)

// RevertError carries the ledger-provided revert reason verbatim.
type RevertError struct {
	Reason string
}

func (e *RevertError) Error() string {
	if e.Reason == "" {
		return "execution reverted"
	}
	return fmt.Sprintf("execution reverted: %s", e.Reason)
}

// AsRevert extracts a RevertError from an error chain
func AsRevert(err error) (*RevertError, bool) {
	var rev *RevertError
	if errors.As(err, &rev) {
		return rev, true
	}
	return nil, false
}
