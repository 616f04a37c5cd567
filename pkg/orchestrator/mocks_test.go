package orchestrator

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/smartbond/middleware/pkg/cofhe"
	"github.com/smartbond/middleware/pkg/ledger"
	"github.com/smartbond/middleware/pkg/retry"
)

var (
	factoryAddr  = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	registryAddr = common.HexToAddress("0x00000000000000000000000000000000000000f2")
	paymentAddr  = common.HexToAddress("0x00000000000000000000000000000000000000f3")
	bondAddr     = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	assetAddr    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	holderAddr   = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	signerAddr   = common.HexToAddress("0x00000000000000000000000000000000000000e1")
)

type mockGateway struct {
	encryptFunc func(ctx context.Context, values []cofhe.Encryptable) ([]cofhe.SignedCiphertext, error)
	decryptFunc func(ctx context.Context, handle *big.Int, typ cofhe.FheType) (uint64, error)
}

func (m *mockGateway) Encrypt(ctx context.Context, values []cofhe.Encryptable) ([]cofhe.SignedCiphertext, error) {
	if m.encryptFunc != nil {
		return m.encryptFunc(ctx, values)
	}
	cts := make([]cofhe.SignedCiphertext, len(values))
	for i := range values {
		cts[i] = cofhe.SignedCiphertext{
			CtHash:    big.NewInt(int64(9000 + i)),
			Utype:     uint8(values[i].Type),
			Signature: []byte{0x01},
		}
	}
	return cts, nil
}

func (m *mockGateway) Decrypt(ctx context.Context, handle *big.Int, typ cofhe.FheType) (uint64, error) {
	if m.decryptFunc != nil {
		return m.decryptFunc(ctx, handle, typ)
	}
	return handle.Uint64(), nil
}

type submission struct {
	To     common.Address
	Method string
	Args   []any
}

type mockLedger struct {
	mu          sync.Mutex
	submissions []submission

	submitFunc func(ctx context.Context, req ledger.TransactionRequest) (common.Hash, error)
	awaitFunc  func(ctx context.Context, hash common.Hash, confirmations uint64, timeout time.Duration) (*ledger.Receipt, error)
	callFunc   func(ctx context.Context, to common.Address, cabi *abi.ABI, method string, args ...any) ([]any, error)
}

func (m *mockLedger) Submit(ctx context.Context, req ledger.TransactionRequest) (common.Hash, error) {
	m.mu.Lock()
	m.submissions = append(m.submissions, submission{To: req.To, Method: req.Method, Args: req.Args})
	n := len(m.submissions)
	m.mu.Unlock()

	if m.submitFunc != nil {
		return m.submitFunc(ctx, req)
	}
	return common.BigToHash(big.NewInt(int64(n))), nil
}

func (m *mockLedger) AwaitConfirmation(ctx context.Context, hash common.Hash, confirmations uint64, timeout time.Duration) (*ledger.Receipt, error) {
	if m.awaitFunc != nil {
		return m.awaitFunc(ctx, hash, confirmations, timeout)
	}
	return &ledger.Receipt{TxHash: hash, BlockNumber: 100, GasUsed: 90_000, Confirmations: confirmations}, nil
}

func (m *mockLedger) Call(ctx context.Context, to common.Address, cabi *abi.ABI, method string, args ...any) ([]any, error) {
	if m.callFunc != nil {
		return m.callFunc(ctx, to, cabi, method, args...)
	}
	return nil, nil
}

func (m *mockLedger) Signer() common.Address {
	return signerAddr
}

func (m *mockLedger) submitted() []submission {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]submission, len(m.submissions))
	copy(out, m.submissions)
	return out
}

func (m *mockLedger) methods() []string {
	var names []string
	for _, s := range m.submitted() {
		names = append(names, s.Method)
	}
	return names
}

type mockJournal struct {
	mu      sync.Mutex
	records []*RunRecord
	err     error
}

func (m *mockJournal) RecordRun(ctx context.Context, rec *RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return m.err
}

func (m *mockJournal) recorded() []*RunRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*RunRecord, len(m.records))
	copy(out, m.records)
	return out
}

type recordingReporter struct {
	mu    sync.Mutex
	steps []Step
}

func (r *recordingReporter) Report(workflow string, step Step) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, step)
}

func (r *recordingReporter) seen() []Step {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Step, len(r.steps))
	copy(out, r.steps)
	return out
}

func newTestOrchestrator(t *testing.T, gateway *mockGateway, ledgerMock *mockLedger, journal *mockJournal) *Orchestrator {
	t.Helper()

	var j Journal
	if journal != nil {
		j = journal
	}
	return New(gateway, ledgerMock, j, nil, Config{
		Factory:        factoryAddr,
		Registry:       registryAddr,
		PaymentToken:   paymentAddr,
		ReceiptTimeout: time.Second,
		ClaimPolicy:    retry.Policy{MaxAttempts: 3, Delay: time.Millisecond},
	}, zap.NewNop())
}

// openBondCalls answers the view reads for a bond still in subscription.
func openBondCalls(ctx context.Context, to common.Address, cabi *abi.ABI, method string, args ...any) ([]any, error) {
	switch method {
	case "paymentToken":
		return []any{paymentAddr}, nil
	case "assetToken":
		return []any{assetAddr}, nil
	case "issuanceClosed":
		return []any{false}, nil
	case "funded":
		return []any{false}, nil
	}
	return nil, nil
}
