package orchestrator

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/smartbond/middleware/pkg/cofhe"
	"github.com/smartbond/middleware/pkg/ledger"
	"github.com/smartbond/middleware/pkg/ledger/contracts"
)

// IssueParams are the plaintext bond terms. Cap, price and coupon are in the
// bond's smallest denomination; they exist in plaintext only inside this
// process and reach the ledger exclusively as ciphertext handles.
type IssueParams struct {
	ISIN              string
	Cap               uint64
	PriceAtIssue      uint64
	CouponRatePerYear uint64
	Maturity          time.Time

	// PaymentToken overrides the configured settlement token when set.
	PaymentToken common.Address
}

// IssueBond encrypts the four confidential terms as a single batch and
// submits createBond. An encryption failure aborts before any ledger write.
func (o *Orchestrator) IssueBond(ctx context.Context, params IssueParams) Outcome {
	const workflow = "issue_bond"
	startedAt := time.Now().UTC()

	release, err := o.locks.TryAcquire("issue/" + params.ISIN)
	if err != nil {
		return o.conclude(ctx, common.Address{}, startedAt, failed(workflow, err))
	}
	defer release()

	maturitySeconds := uint64(params.Maturity.Unix())

	o.reporter.Report(workflow, StepEncrypting)
	cts, err := o.gateway.Encrypt(ctx, []cofhe.Encryptable{
		cofhe.Uint64(params.Cap),
		cofhe.Uint64(params.PriceAtIssue),
		cofhe.Uint64(params.CouponRatePerYear),
		cofhe.Uint64(maturitySeconds),
	})
	if err != nil {
		return o.conclude(ctx, common.Address{}, startedAt, failed(workflow, err))
	}
	capCt, priceCt, couponCt, maturityCt := cts[0], cts[1], cts[2], cts[3]

	paymentToken := params.PaymentToken
	if paymentToken == (common.Address{}) {
		paymentToken = o.cfg.PaymentToken
	}

	receipt, hash, err := o.transact(ctx, workflow, ledger.TransactionRequest{
		To:     o.cfg.Factory,
		ABI:    contracts.FactoryABI,
		Method: "createBond",
		Args: []any{
			paymentToken,
			contracts.InEuint64FromCiphertext(capCt),
			contracts.InEuint64FromCiphertext(maturityCt),
			contracts.InEuint64FromCiphertext(priceCt),
			contracts.InEuint64FromCiphertext(couponCt),
			params.ISIN,
		},
	})
	if err != nil {
		out := failed(workflow, err)
		out.TxHash = hash
		return o.conclude(ctx, common.Address{}, startedAt, out)
	}

	return o.conclude(ctx, common.Address{}, startedAt, succeeded(workflow, receipt))
}

// BuyBond approves the payment amount for the bond and then buys. The buy is
// never submitted unless the approval has confirmed.
func (o *Orchestrator) BuyBond(ctx context.Context, bond common.Address, paymentAmount *big.Int) Outcome {
	const workflow = "buy_bond"
	startedAt := time.Now().UTC()

	release, err := o.locks.TryAcquire(runKey(workflow, bond, o.ledger.Signer()))
	if err != nil {
		return o.conclude(ctx, bond, startedAt, failed(workflow, err))
	}
	defer release()

	paymentToken, err := o.readAddress(ctx, bond, "paymentToken")
	if err != nil {
		return o.conclude(ctx, bond, startedAt, failed(workflow, err))
	}

	if _, hash, err := o.transact(ctx, workflow, ledger.TransactionRequest{
		To:     paymentToken,
		ABI:    contracts.PaymentTokenABI,
		Method: "approve",
		Args:   []any{bond, paymentAmount},
	}); err != nil {
		out := failed(workflow, err)
		out.TxHash = hash
		return o.conclude(ctx, bond, startedAt, out)
	}

	receipt, hash, err := o.transact(ctx, workflow, ledger.TransactionRequest{
		To:     bond,
		ABI:    contracts.BondABI,
		Method: "buy",
		Args:   []any{paymentAmount},
	})
	if err != nil {
		out := failed(workflow, err)
		out.TxHash = hash
		return o.conclude(ctx, bond, startedAt, out)
	}

	return o.conclude(ctx, bond, startedAt, succeeded(workflow, receipt))
}

// Whitelist flips a holder's whitelist status on the bond's asset token.
func (o *Orchestrator) Whitelist(ctx context.Context, bond, holder common.Address, status bool) Outcome {
	const workflow = "whitelist"
	startedAt := time.Now().UTC()

	release, err := o.locks.TryAcquire(runKey(workflow, bond, holder))
	if err != nil {
		return o.conclude(ctx, bond, startedAt, failed(workflow, err))
	}
	defer release()

	assetToken, err := o.readAddress(ctx, bond, "assetToken")
	if err != nil {
		return o.conclude(ctx, bond, startedAt, failed(workflow, err))
	}

	receipt, hash, err := o.transact(ctx, workflow, ledger.TransactionRequest{
		To:     assetToken,
		ABI:    contracts.AssetTokenABI,
		Method: "setWhitelist",
		Args:   []any{holder, status},
	})
	if err != nil {
		out := failed(workflow, err)
		out.TxHash = hash
		return o.conclude(ctx, bond, startedAt, out)
	}

	return o.conclude(ctx, bond, startedAt, succeeded(workflow, receipt))
}

// CloseIssuance ends the subscription phase. The lifecycle precondition is
// checked with a read first so an already-closed bond fails without a
// submission.
func (o *Orchestrator) CloseIssuance(ctx context.Context, bond common.Address) Outcome {
	const workflow = "close_issuance"
	startedAt := time.Now().UTC()

	release, err := o.locks.TryAcquire(runKey(workflow, bond, o.ledger.Signer()))
	if err != nil {
		return o.conclude(ctx, bond, startedAt, failed(workflow, err))
	}
	defer release()

	state, err := o.bondState(ctx, bond)
	if err != nil {
		return o.conclude(ctx, bond, startedAt, failed(workflow, err))
	}
	if !CanTransition(state, StateIssuanceClosed) {
		return o.conclude(ctx, bond, startedAt,
			failed(workflow, &TransitionError{From: state, To: StateIssuanceClosed}))
	}

	receipt, hash, err := o.transact(ctx, workflow, ledger.TransactionRequest{
		To:     bond,
		ABI:    contracts.BondABI,
		Method: "closeIssuance",
	})
	if err != nil {
		out := failed(workflow, err)
		out.TxHash = hash
		return o.conclude(ctx, bond, startedAt, out)
	}

	return o.conclude(ctx, bond, startedAt, succeeded(workflow, receipt))
}

// FundPayout moves the payout escrow into the bond: approve, then
// fundUpfront. A nil amount funds the contract-computed total payout.
func (o *Orchestrator) FundPayout(ctx context.Context, bond common.Address, amount *big.Int) Outcome {
	const workflow = "fund_payout"
	startedAt := time.Now().UTC()

	release, err := o.locks.TryAcquire(runKey(workflow, bond, o.ledger.Signer()))
	if err != nil {
		return o.conclude(ctx, bond, startedAt, failed(workflow, err))
	}
	defer release()

	state, err := o.bondState(ctx, bond)
	if err != nil {
		return o.conclude(ctx, bond, startedAt, failed(workflow, err))
	}
	if !CanTransition(state, StateFunded) {
		return o.conclude(ctx, bond, startedAt,
			failed(workflow, &TransitionError{From: state, To: StateFunded}))
	}

	if amount == nil {
		out, err := o.ledger.Call(ctx, bond, contracts.BondABI, "totalPayoutRequired")
		if err != nil {
			return o.conclude(ctx, bond, startedAt,
				failed(workflow, fmt.Errorf("failed to read totalPayoutRequired: %w", err)))
		}
		amount, err = contracts.DecodeBig(out)
		if err != nil {
			return o.conclude(ctx, bond, startedAt, failed(workflow, err))
		}
	}

	paymentToken, err := o.readAddress(ctx, bond, "paymentToken")
	if err != nil {
		return o.conclude(ctx, bond, startedAt, failed(workflow, err))
	}

	if _, hash, err := o.transact(ctx, workflow, ledger.TransactionRequest{
		To:     paymentToken,
		ABI:    contracts.PaymentTokenABI,
		Method: "approve",
		Args:   []any{bond, amount},
	}); err != nil {
		out := failed(workflow, err)
		out.TxHash = hash
		return o.conclude(ctx, bond, startedAt, out)
	}

	receipt, hash, err := o.transact(ctx, workflow, ledger.TransactionRequest{
		To:     bond,
		ABI:    contracts.BondABI,
		Method: "fundUpfront",
		Args:   []any{amount},
	})
	if err != nil {
		out := failed(workflow, err)
		out.TxHash = hash
		return o.conclude(ctx, bond, startedAt, out)
	}

	return o.conclude(ctx, bond, startedAt, succeeded(workflow, receipt))
}

// MintPaymentToken mints settlement tokens from the faucet. Test networks
// only; the production token has no public mint.
func (o *Orchestrator) MintPaymentToken(ctx context.Context, to common.Address, amount *big.Int) Outcome {
	const workflow = "mint_payment_token"
	startedAt := time.Now().UTC()

	receipt, hash, err := o.transact(ctx, workflow, ledger.TransactionRequest{
		To:     o.cfg.PaymentToken,
		ABI:    contracts.PaymentTokenABI,
		Method: "mint",
		Args:   []any{to, amount},
	})
	if err != nil {
		out := failed(workflow, err)
		out.TxHash = hash
		return o.conclude(ctx, common.Address{}, startedAt, out)
	}

	return o.conclude(ctx, common.Address{}, startedAt, succeeded(workflow, receipt))
}

func runKey(workflow string, bond, holder common.Address) string {
	return workflow + "/" + bond.Hex() + "/" + holder.Hex()
}
