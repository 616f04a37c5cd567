package orchestrator

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smartbond/middleware/internal/metrics"
	"github.com/smartbond/middleware/pkg/cofhe"
	"github.com/smartbond/middleware/pkg/ledger"
	"github.com/smartbond/middleware/pkg/ledger/contracts"
	"github.com/smartbond/middleware/pkg/retry"
)

// Gateway encrypts workflow inputs and decrypts on-chain handles.
type Gateway interface {
	Encrypt(ctx context.Context, values []cofhe.Encryptable) ([]cofhe.SignedCiphertext, error)
	Decrypt(ctx context.Context, handle *big.Int, typ cofhe.FheType) (uint64, error)
}

// Ledger submits transactions and reads contract state.
type Ledger interface {
	Submit(ctx context.Context, req ledger.TransactionRequest) (common.Hash, error)
	AwaitConfirmation(ctx context.Context, hash common.Hash, requiredConfirmations uint64, timeout time.Duration) (*ledger.Receipt, error)
	Call(ctx context.Context, to common.Address, cabi *abi.ABI, method string, args ...any) ([]any, error)
	Signer() common.Address
}

// RunRecord is the journal row written once per workflow run.
type RunRecord struct {
	ID         uuid.UUID
	Workflow   string
	Bond       string
	Holder     string
	TxHash     string
	Status     string
	Attempts   int
	Detail     string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Journal persists workflow run records. A nil Journal disables persistence.
type Journal interface {
	RecordRun(ctx context.Context, rec *RunRecord) error
}

// Config carries the contract addresses and transaction policy.
type Config struct {
	Factory      common.Address
	Registry     common.Address
	PaymentToken common.Address

	GasLimit       uint64
	Confirmations  uint64
	ReceiptTimeout time.Duration

	ClaimPolicy retry.Policy
}

// Orchestrator drives bond workflows end to end.
type Orchestrator struct {
	gateway  Gateway
	ledger   Ledger
	journal  Journal
	reporter Reporter
	locks    *keyedMutex
	cfg      Config
	logger   *zap.Logger

	summaries snapshotHolder
}

// New creates an orchestrator. Zero policy fields fall back to the contract
// suite defaults: 16M gas, 1 confirmation, 180s receipt timeout and a
// 30 x 4s claim budget.
func New(gateway Gateway, ledgerClient Ledger, journal Journal, reporter Reporter, cfg Config, logger *zap.Logger) *Orchestrator {
	if cfg.GasLimit == 0 {
		cfg.GasLimit = 16_000_000
	}
	if cfg.Confirmations == 0 {
		cfg.Confirmations = 1
	}
	if cfg.ReceiptTimeout == 0 {
		cfg.ReceiptTimeout = 180 * time.Second
	}
	if cfg.ClaimPolicy.MaxAttempts == 0 {
		cfg.ClaimPolicy = retry.Policy{MaxAttempts: 30, Delay: 4 * time.Second}
	}
	if reporter == nil {
		reporter = NopReporter{}
	}

	return &Orchestrator{
		gateway:  gateway,
		ledger:   ledgerClient,
		journal:  journal,
		reporter: reporter,
		locks:    newKeyedMutex(),
		cfg:      cfg,
		logger:   logger,
	}
}

// Signer returns the address every workflow transaction is signed with.
func (o *Orchestrator) Signer() common.Address {
	return o.ledger.Signer()
}

// transact submits one transaction and waits for it to confirm at depth.
func (o *Orchestrator) transact(ctx context.Context, workflow string, req ledger.TransactionRequest) (*ledger.Receipt, common.Hash, error) {
	if req.GasLimit == 0 {
		req.GasLimit = o.cfg.GasLimit
	}

	o.reporter.Report(workflow, StepSubmitting)
	hash, err := o.ledger.Submit(ctx, req)
	if err != nil {
		return nil, common.Hash{}, fmt.Errorf("%s: %w", req.Method, err)
	}

	o.reporter.Report(workflow, StepConfirming)
	receipt, err := o.ledger.AwaitConfirmation(ctx, hash, o.cfg.Confirmations, o.cfg.ReceiptTimeout)
	if err != nil {
		return nil, hash, fmt.Errorf("%s: %w", req.Method, err)
	}

	metrics.GasUsed.WithLabelValues(req.Method).Observe(float64(receipt.GasUsed))
	o.logger.Info("Transaction confirmed",
		zap.String("workflow", workflow),
		zap.String("method", req.Method),
		zap.String("tx_hash", hash.Hex()),
		zap.Uint64("block", receipt.BlockNumber),
		zap.Uint64("gas_used", receipt.GasUsed))
	return receipt, hash, nil
}

// conclude records the terminal outcome in metrics and the journal.
func (o *Orchestrator) conclude(ctx context.Context, bond common.Address, startedAt time.Time, out Outcome) Outcome {
	metrics.WorkflowsTotal.WithLabelValues(out.Workflow, string(out.Status)).Inc()
	metrics.WorkflowDuration.WithLabelValues(out.Workflow).Observe(time.Since(startedAt).Seconds())

	switch out.Status {
	case StatusSucceeded:
		o.logger.Info("Workflow succeeded",
			zap.String("workflow", out.Workflow),
			zap.String("tx_hash", out.TxHash.Hex()))
	case StatusPending:
		o.logger.Warn("Workflow pending",
			zap.String("workflow", out.Workflow),
			zap.Int("attempts", out.Attempts),
			zap.Error(out.Err))
	default:
		o.logger.Error("Workflow failed",
			zap.String("workflow", out.Workflow),
			zap.Error(out.Err))
	}

	if o.journal != nil {
		rec := &RunRecord{
			ID:         uuid.New(),
			Workflow:   out.Workflow,
			Bond:       bond.Hex(),
			Holder:     o.ledger.Signer().Hex(),
			Status:     string(out.Status),
			Attempts:   out.Attempts,
			StartedAt:  startedAt,
			FinishedAt: time.Now().UTC(),
		}
		if out.TxHash != (common.Hash{}) {
			rec.TxHash = out.TxHash.Hex()
		}
		if out.Err != nil {
			rec.Detail = out.Err.Error()
		}
		if err := o.journal.RecordRun(ctx, rec); err != nil {
			// journal failures never change a workflow outcome
			o.logger.Error("Failed to record workflow run", zap.Error(err))
		}
	}

	return out
}

// bondState derives the global lifecycle state from the bond's on-chain flags.
func (o *Orchestrator) bondState(ctx context.Context, bond common.Address) (State, error) {
	out, err := o.ledger.Call(ctx, bond, contracts.BondABI, "issuanceClosed")
	if err != nil {
		return "", fmt.Errorf("failed to read issuanceClosed: %w", err)
	}
	issuanceClosed, err := contracts.DecodeBool(out)
	if err != nil {
		return "", err
	}
	if !issuanceClosed {
		return StateSubscriptionOpen, nil
	}

	out, err = o.ledger.Call(ctx, bond, contracts.BondABI, "funded")
	if err != nil {
		return "", fmt.Errorf("failed to read funded: %w", err)
	}
	funded, err := contracts.DecodeBool(out)
	if err != nil {
		return "", err
	}
	if funded {
		return StateFunded, nil
	}
	return StateIssuanceClosed, nil
}

// readAddress resolves an address-returning view on the bond contract.
func (o *Orchestrator) readAddress(ctx context.Context, bond common.Address, method string) (common.Address, error) {
	out, err := o.ledger.Call(ctx, bond, contracts.BondABI, method)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to read %s: %w", method, err)
	}
	return contracts.DecodeAddress(out)
}
