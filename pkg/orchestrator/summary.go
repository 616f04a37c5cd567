package orchestrator

import (
	"context"
	"fmt"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/smartbond/middleware/internal/metrics"
	"github.com/smartbond/middleware/pkg/cofhe"
	"github.com/smartbond/middleware/pkg/ledger/contracts"
)

// BondSummary is the decrypted read model for one bond, as seen by one
// holder. Confidential fields are plaintext here and must never be written
// back to the ledger.
type BondSummary struct {
	Bond          common.Address `json:"bond"`
	AssetToken    common.Address `json:"assetToken"`
	Issuer        common.Address `json:"issuer"`
	CurrencyToken common.Address `json:"currencyToken"`
	ISIN          string         `json:"isin"`

	IssueDate           time.Time `json:"issueDate"`
	SubscriptionEndDate time.Time `json:"subscriptionEndDate"`
	Maturity            time.Time `json:"maturity"`

	NotionalCap       uint64 `json:"notionalCap"`
	CouponRatePerYear uint64 `json:"couponRatePerYear"`
	TotalPayout       uint64 `json:"totalPayout"`
	HolderBalance     uint64 `json:"holderBalance"`

	IssuanceClosed bool  `json:"issuanceClosed"`
	Funded         bool  `json:"funded"`
	State          State `json:"state"`
}

type snapshotHolder struct {
	p atomic.Pointer[[]BondSummary]
}

// Snapshot returns the last complete summary slice, or nil before the first
// successful refresh. The returned slice is never mutated after publication.
func (o *Orchestrator) Snapshot() []BondSummary {
	if s := o.summaries.p.Load(); s != nil {
		return *s
	}
	return nil
}

// RefreshAll rebuilds the full bond read model for one holder and publishes
// it atomically. Any read or decrypt failure aborts the whole refresh; the
// previous snapshot stays published, a partial list is never observable.
func (o *Orchestrator) RefreshAll(ctx context.Context, holder common.Address) error {
	started := time.Now()

	out, err := o.ledger.Call(ctx, o.cfg.Registry, contracts.RegistryABI, "getAllBonds")
	if err != nil {
		return fmt.Errorf("failed to list bonds: %w", err)
	}
	infos, err := contracts.DecodeBondInfos(out)
	if err != nil {
		return err
	}

	summaries := make([]BondSummary, 0, len(infos))
	for _, info := range infos {
		summary, err := o.summarize(ctx, info, holder)
		if err != nil {
			return fmt.Errorf("bond %s: %w", info.Bond.Hex(), err)
		}
		summaries = append(summaries, summary)
	}

	o.summaries.p.Store(&summaries)
	metrics.RefreshDuration.Observe(time.Since(started).Seconds())
	metrics.SnapshotBonds.Set(float64(len(summaries)))
	o.logger.Info("Bond summaries refreshed",
		zap.Int("bonds", len(summaries)),
		zap.String("holder", holder.Hex()))
	return nil
}

func (o *Orchestrator) summarize(ctx context.Context, info contracts.BondInfo, holder common.Address) (BondSummary, error) {
	summary := BondSummary{
		Bond:                info.Bond,
		Issuer:              info.Issuer,
		CurrencyToken:       info.CurrencyToken,
		ISIN:                info.Isin,
		IssueDate:           time.Unix(int64(info.IssueDate), 0).UTC(),
		SubscriptionEndDate: time.Unix(int64(info.SubscriptionEndDate), 0).UTC(),
	}

	maturitySeconds, err := o.decryptHandle(ctx, "maturityDate", info.MaturityDate)
	if err != nil {
		return BondSummary{}, err
	}
	summary.Maturity = time.Unix(int64(maturitySeconds), 0).UTC()

	summary.NotionalCap, err = o.decryptHandle(ctx, "notionalCap", info.NotionalCap)
	if err != nil {
		return BondSummary{}, err
	}

	summary.CouponRatePerYear, err = o.readAndDecrypt(ctx, info.Bond, "couponRatePerYear")
	if err != nil {
		return BondSummary{}, err
	}

	summary.TotalPayout, err = o.readAndDecrypt(ctx, info.Bond, "totalPayoutRequired")
	if err != nil {
		return BondSummary{}, err
	}

	assetToken, err := o.readAddress(ctx, info.Bond, "assetToken")
	if err != nil {
		return BondSummary{}, err
	}
	summary.AssetToken = assetToken

	balanceOut, err := o.ledger.Call(ctx, assetToken, contracts.AssetTokenABI, "confidentialBalanceOf", holder)
	if err != nil {
		return BondSummary{}, fmt.Errorf("failed to read confidentialBalanceOf: %w", err)
	}
	balanceHandle, err := contracts.DecodeBig(balanceOut)
	if err != nil {
		return BondSummary{}, err
	}
	summary.HolderBalance, err = o.decryptHandle(ctx, "confidentialBalanceOf", balanceHandle)
	if err != nil {
		return BondSummary{}, err
	}

	state, err := o.bondState(ctx, info.Bond)
	if err != nil {
		return BondSummary{}, err
	}
	summary.IssuanceClosed = state != StateSubscriptionOpen
	summary.Funded = state == StateFunded

	if state == StateFunded {
		pendingOut, err := o.ledger.Call(ctx, info.Bond, contracts.BondABI, "pendingPayoutHandle", holder)
		if err != nil {
			return BondSummary{}, fmt.Errorf("failed to read pendingPayoutHandle: %w", err)
		}
		pendingHandle, err := contracts.DecodeBig(pendingOut)
		if err != nil {
			return BondSummary{}, err
		}
		if pendingHandle.Sign() != 0 {
			state = StateRedeemRequested
		}
	}
	summary.State = state

	return summary, nil
}

// readAndDecrypt resolves an euint64 view on the bond and decrypts its handle.
func (o *Orchestrator) readAndDecrypt(ctx context.Context, bond common.Address, method string) (uint64, error) {
	out, err := o.ledger.Call(ctx, bond, contracts.BondABI, method)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", method, err)
	}
	handle, err := contracts.DecodeBig(out)
	if err != nil {
		return 0, err
	}
	return o.decryptHandle(ctx, method, handle)
}

// decryptHandle resolves a ciphertext handle to plaintext. The zero handle
// means the value was never set on-chain and decodes as zero without a
// coprocessor round trip.
func (o *Orchestrator) decryptHandle(ctx context.Context, field string, handle *big.Int) (uint64, error) {
	if handle == nil || handle.Sign() == 0 {
		return 0, nil
	}
	value, err := o.gateway.Decrypt(ctx, handle, cofhe.TypeUint64)
	if err != nil {
		return 0, fmt.Errorf("failed to decrypt %s: %w", field, err)
	}
	return value, nil
}
