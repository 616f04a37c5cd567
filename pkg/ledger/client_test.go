package ledger

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockBackend struct {
	pendingNonceAtFunc     func(ctx context.Context, account common.Address) (uint64, error)
	suggestGasPriceFunc    func(ctx context.Context) (*big.Int, error)
	sendTransactionFunc    func(ctx context.Context, tx *types.Transaction) error
	transactionReceiptFunc func(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	transactionByHashFunc  func(ctx context.Context, txHash common.Hash) (*types.Transaction, bool, error)
	headerByNumberFunc     func(ctx context.Context, number *big.Int) (*types.Header, error)
	callContractFunc       func(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

func (m *mockBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	if m.pendingNonceAtFunc != nil {
		return m.pendingNonceAtFunc(ctx, account)
	}
	return 7, nil
}

func (m *mockBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	if m.suggestGasPriceFunc != nil {
		return m.suggestGasPriceFunc(ctx)
	}
	return big.NewInt(1_000_000_000), nil
}

func (m *mockBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if m.sendTransactionFunc != nil {
		return m.sendTransactionFunc(ctx, tx)
	}
	return nil
}

func (m *mockBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	if m.transactionReceiptFunc != nil {
		return m.transactionReceiptFunc(ctx, txHash)
	}
	return nil, ethereum.NotFound
}

func (m *mockBackend) TransactionByHash(ctx context.Context, txHash common.Hash) (*types.Transaction, bool, error) {
	if m.transactionByHashFunc != nil {
		return m.transactionByHashFunc(ctx, txHash)
	}
	return nil, false, ethereum.NotFound
}

func (m *mockBackend) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	if m.headerByNumberFunc != nil {
		return m.headerByNumberFunc(ctx, number)
	}
	return &types.Header{Number: big.NewInt(100)}, nil
}

func (m *mockBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if m.callContractFunc != nil {
		return m.callContractFunc(ctx, msg, blockNumber)
	}
	return nil, nil
}

var testABI = func() *abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(`[
		{"type":"function","name":"ping","stateMutability":"nonpayable","inputs":[{"name":"v","type":"uint256"}],"outputs":[]},
		{"type":"function","name":"value","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]}
	]`))
	if err != nil {
		panic(err)
	}
	return &parsed
}()

func newTestClient(t *testing.T, backend *mockBackend) *Client {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	return &Client{
		backend:      backend,
		privateKey:   key,
		address:      crypto.PubkeyToAddress(key.PublicKey),
		signer:       types.LatestSignerForChainID(big.NewInt(421614)),
		pollInterval: time.Millisecond,
		logger:       zap.NewNop(),
	}
}

func testRequest() TransactionRequest {
	return TransactionRequest{
		To:       common.HexToAddress("0x1111111111111111111111111111111111111111"),
		ABI:      testABI,
		Method:   "ping",
		Args:     []any{big.NewInt(1)},
		GasLimit: 16_000_000,
	}
}

func TestSubmit(t *testing.T) {
	t.Run("successful submission returns the signed hash", func(t *testing.T) {
		var sent *types.Transaction
		backend := &mockBackend{
			sendTransactionFunc: func(ctx context.Context, tx *types.Transaction) error {
				sent = tx
				return nil
			},
		}
		client := newTestClient(t, backend)

		hash, err := client.Submit(context.Background(), testRequest())
		require.NoError(t, err)
		require.NotNil(t, sent)
		assert.Equal(t, sent.Hash(), hash)
		assert.Equal(t, uint64(7), sent.Nonce())
		assert.Equal(t, uint64(16_000_000), sent.Gas())
	})

	t.Run("simulation revert is surfaced before broadcasting", func(t *testing.T) {
		sendCalled := false
		backend := &mockBackend{
			callContractFunc: func(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
				return nil, errors.New("execution reverted: Issuance already closed")
			},
			sendTransactionFunc: func(ctx context.Context, tx *types.Transaction) error {
				sendCalled = true
				return nil
			},
		}
		client := newTestClient(t, backend)

		_, err := client.Submit(context.Background(), testRequest())
		rev, ok := AsRevert(err)
		require.True(t, ok)
		assert.Equal(t, "Issuance already closed", rev.Reason)
		assert.False(t, sendCalled)
	})

	t.Run("node refusal maps to ErrSubmissionRejected", func(t *testing.T) {
		backend := &mockBackend{
			sendTransactionFunc: func(ctx context.Context, tx *types.Transaction) error {
				return errors.New("insufficient funds for gas * price + value")
			},
		}
		client := newTestClient(t, backend)

		_, err := client.Submit(context.Background(), testRequest())
		assert.ErrorIs(t, err, ErrSubmissionRejected)
	})

	t.Run("transport failure maps to ErrRPCUnavailable", func(t *testing.T) {
		backend := &mockBackend{
			sendTransactionFunc: func(ctx context.Context, tx *types.Transaction) error {
				return errors.New("connection refused")
			},
		}
		client := newTestClient(t, backend)

		_, err := client.Submit(context.Background(), testRequest())
		assert.ErrorIs(t, err, ErrRPCUnavailable)
	})

	t.Run("gas price is capped at the configured maximum", func(t *testing.T) {
		var sent *types.Transaction
		backend := &mockBackend{
			suggestGasPriceFunc: func(ctx context.Context) (*big.Int, error) {
				return big.NewInt(50_000_000_000), nil
			},
			sendTransactionFunc: func(ctx context.Context, tx *types.Transaction) error {
				sent = tx
				return nil
			},
		}
		client := newTestClient(t, backend)
		client.maxGasPrice = big.NewInt(2_000_000_000)

		_, err := client.Submit(context.Background(), testRequest())
		require.NoError(t, err)
		assert.Equal(t, int64(2_000_000_000), sent.GasPrice().Int64())
	})
}

func TestAwaitConfirmation(t *testing.T) {
	hash := common.HexToHash("0xabc1")

	t.Run("returns receipt once confirmation depth is reached", func(t *testing.T) {
		polls := 0
		backend := &mockBackend{
			transactionReceiptFunc: func(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
				polls++
				if polls < 3 {
					return nil, ethereum.NotFound
				}
				return &types.Receipt{
					Status:      types.ReceiptStatusSuccessful,
					BlockNumber: big.NewInt(100),
					GasUsed:     90_000,
				}, nil
			},
		}
		client := newTestClient(t, backend)

		receipt, err := client.AwaitConfirmation(context.Background(), hash, 1, time.Second)
		require.NoError(t, err)
		assert.Equal(t, uint64(100), receipt.BlockNumber)
		assert.Equal(t, uint64(90_000), receipt.GasUsed)
		assert.GreaterOrEqual(t, receipt.Confirmations, uint64(1))
	})

	t.Run("waits for deeper confirmation depth", func(t *testing.T) {
		head := int64(100)
		backend := &mockBackend{
			transactionReceiptFunc: func(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
				return &types.Receipt{
					Status:      types.ReceiptStatusSuccessful,
					BlockNumber: big.NewInt(100),
				}, nil
			},
			headerByNumberFunc: func(ctx context.Context, number *big.Int) (*types.Header, error) {
				head++
				return &types.Header{Number: big.NewInt(head)}, nil
			},
		}
		client := newTestClient(t, backend)

		receipt, err := client.AwaitConfirmation(context.Background(), hash, 3, time.Second)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, receipt.Confirmations, uint64(3))
	})

	t.Run("reverted receipt yields RevertError with replayed reason", func(t *testing.T) {
		key, err := crypto.GenerateKey()
		require.NoError(t, err)
		to := common.HexToAddress("0x2222222222222222222222222222222222222222")
		tx := types.MustSignNewTx(key, types.LatestSignerForChainID(big.NewInt(421614)), &types.LegacyTx{
			Nonce: 1, To: &to, Gas: 100_000, GasPrice: big.NewInt(1),
		})

		backend := &mockBackend{
			transactionReceiptFunc: func(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
				return &types.Receipt{
					Status:      types.ReceiptStatusFailed,
					BlockNumber: big.NewInt(100),
				}, nil
			},
			transactionByHashFunc: func(ctx context.Context, txHash common.Hash) (*types.Transaction, bool, error) {
				return tx, false, nil
			},
			callContractFunc: func(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
				require.NotNil(t, blockNumber)
				return nil, errors.New("execution reverted: Payout decryption pending")
			},
		}
		client := newTestClient(t, backend)

		_, err = client.AwaitConfirmation(context.Background(), hash, 1, time.Second)
		rev, ok := AsRevert(err)
		require.True(t, ok)
		assert.Equal(t, "Payout decryption pending", rev.Reason)
	})

	t.Run("timeout yields ErrConfirmationTimeout", func(t *testing.T) {
		client := newTestClient(t, &mockBackend{})

		_, err := client.AwaitConfirmation(context.Background(), hash, 1, 20*time.Millisecond)
		assert.ErrorIs(t, err, ErrConfirmationTimeout)
	})

	t.Run("caller cancellation is passed through, not a timeout", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		client := newTestClient(t, &mockBackend{})

		_, err := client.AwaitConfirmation(ctx, hash, 1, time.Second)
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, ErrConfirmationTimeout)
	})
}

func TestCall(t *testing.T) {
	to := common.HexToAddress("0x3333333333333333333333333333333333333333")

	t.Run("unpacks return values", func(t *testing.T) {
		backend := &mockBackend{
			callContractFunc: func(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
				return testABI.Methods["value"].Outputs.Pack(big.NewInt(42))
			},
		}
		client := newTestClient(t, backend)

		out, err := client.Call(context.Background(), to, testABI, "value")
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, int64(42), out[0].(*big.Int).Int64())
	})

	t.Run("revert during call is classified", func(t *testing.T) {
		backend := &mockBackend{
			callContractFunc: func(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
				return nil, errors.New("execution reverted: Not whitelisted")
			},
		}
		client := newTestClient(t, backend)

		_, err := client.Call(context.Background(), to, testABI, "value")
		rev, ok := AsRevert(err)
		require.True(t, ok)
		assert.Equal(t, "Not whitelisted", rev.Reason)
	})
}
