package orchestrator

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/smartbond/middleware/internal/metrics"
	"github.com/smartbond/middleware/pkg/cofhe"
	"github.com/smartbond/middleware/pkg/ledger"
	"github.com/smartbond/middleware/pkg/ledger/contracts"
	"github.com/smartbond/middleware/pkg/retry"
)

// payoutPendingMarker is the contract's revert reason while the payout
// decryption has not landed on-chain yet. Matched as a substring; it is the
// only revert treated as transient.
const payoutPendingMarker = "Payout decryption pending"

// RedeemBond encrypts the redemption amount, submits redeem and then drives
// the claim loop until the payout is released, the retry budget is spent or a
// definitive error occurs. A spent budget yields a Pending outcome; the
// redemption stays claimable via ClaimRedeem.
func (o *Orchestrator) RedeemBond(ctx context.Context, bond common.Address, amount uint64) Outcome {
	const workflow = "redeem_bond"
	startedAt := time.Now().UTC()

	release, err := o.locks.TryAcquire(redeemKey(bond, o.ledger.Signer()))
	if err != nil {
		return o.conclude(ctx, bond, startedAt, failed(workflow, err))
	}
	defer release()

	o.reporter.Report(workflow, StepEncrypting)
	cts, err := o.gateway.Encrypt(ctx, []cofhe.Encryptable{cofhe.Uint64(amount)})
	if err != nil {
		return o.conclude(ctx, bond, startedAt, failed(workflow, err))
	}

	if _, hash, err := o.transact(ctx, workflow, ledger.TransactionRequest{
		To:     bond,
		ABI:    contracts.BondABI,
		Method: "redeem",
		Args:   []any{contracts.InEuint64FromCiphertext(cts[0])},
	}); err != nil {
		out := failed(workflow, err)
		out.TxHash = hash
		return o.conclude(ctx, bond, startedAt, out)
	}

	return o.conclude(ctx, bond, startedAt, o.claimLoop(ctx, workflow, bond))
}

// ClaimRedeem runs only the claim loop, for a redemption whose earlier run
// ended Pending.
func (o *Orchestrator) ClaimRedeem(ctx context.Context, bond common.Address) Outcome {
	const workflow = "claim_redeem"
	startedAt := time.Now().UTC()

	release, err := o.locks.TryAcquire(redeemKey(bond, o.ledger.Signer()))
	if err != nil {
		return o.conclude(ctx, bond, startedAt, failed(workflow, err))
	}
	defer release()

	return o.conclude(ctx, bond, startedAt, o.claimLoop(ctx, workflow, bond))
}

// claimLoop repeatedly submits claimRedeem while the payout decryption is
// still pending on-chain. Every other error is definitive.
func (o *Orchestrator) claimLoop(ctx context.Context, workflow string, bond common.Address) Outcome {
	o.reporter.Report(workflow, StepAwaitingDecryption)

	receipt, attempts, err := retry.Do(ctx, o.cfg.ClaimPolicy,
		func(ctx context.Context) (*ledger.Receipt, error) {
			o.reporter.Report(workflow, StepClaiming)
			receipt, _, err := o.transact(ctx, workflow, ledger.TransactionRequest{
				To:     bond,
				ABI:    contracts.BondABI,
				Method: "claimRedeem",
			})
			if err != nil {
				if rev, ok := ledger.AsRevert(err); ok && strings.Contains(rev.Reason, payoutPendingMarker) {
					return nil, retry.Transient(err)
				}
				return nil, err
			}
			return receipt, nil
		})

	metrics.ClaimAttempts.Observe(float64(attempts))

	if err != nil {
		if errors.Is(err, retry.ErrExhausted) {
			return pendingOutcome(workflow, attempts, err)
		}
		out := failed(workflow, err)
		out.Attempts = attempts
		return out
	}

	out := succeeded(workflow, receipt)
	out.Attempts = attempts
	return out
}

func redeemKey(bond, holder common.Address) string {
	// shared between RedeemBond and ClaimRedeem so the two cannot interleave
	return "redeem/" + bond.Hex() + "/" + holder.Hex()
}
