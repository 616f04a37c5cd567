package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/smartbond/middleware/internal/metrics"
	"github.com/smartbond/middleware/pkg/config"
)

// Backend is the subset of the Ethereum node API the client needs.
// *ethclient.Client satisfies it.
type Backend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	TransactionByHash(ctx context.Context, txHash common.Hash) (*types.Transaction, bool, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Client signs and submits contract transactions and reads contract state
type Client struct {
	backend      Backend
	privateKey   *ecdsa.PrivateKey
	address      common.Address
	signer       types.Signer
	maxGasPrice  *big.Int
	pollInterval time.Duration
	logger       *zap.Logger

	closeFn func()
}

// NewClient connects to the configured RPC endpoint and loads the signer key
func NewClient(cfg *config.EthereumConfig, logger *zap.Logger) (*Client, error) {
	ethClient, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Ethereum RPC: %w", err)
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.SignerPrivateKey, "0x"))
	if err != nil {
		ethClient.Close()
		return nil, fmt.Errorf("failed to load signer key: %w", err)
	}
	address := crypto.PubkeyToAddress(privateKey.PublicKey)

	var maxGasPrice *big.Int
	if cfg.MaxGasPrice != "" {
		maxGasPrice = new(big.Int)
		if _, ok := maxGasPrice.SetString(cfg.MaxGasPrice, 10); !ok {
			ethClient.Close()
			return nil, fmt.Errorf("invalid max_gas_price: %q", cfg.MaxGasPrice)
		}
	}

	pollInterval := cfg.PollingInterval
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}

	logger.Info("Connected to Ethereum",
		zap.Int64("chain_id", cfg.ChainID),
		zap.String("rpc_url", cfg.RPCURL),
		zap.String("signer_address", address.Hex()))

	return &Client{
		backend:      ethClient,
		privateKey:   privateKey,
		address:      address,
		signer:       types.LatestSignerForChainID(big.NewInt(cfg.ChainID)),
		maxGasPrice:  maxGasPrice,
		pollInterval: pollInterval,
		logger:       logger,
		closeFn:      ethClient.Close,
	}, nil
}

// Close closes the underlying RPC connection
func (c *Client) Close() {
	if c.closeFn != nil {
		c.closeFn()
	}
}

// Signer returns the address transactions are submitted from
func (c *Client) Signer() common.Address {
	return c.address
}

// Submit packs, simulates, signs and broadcasts a transaction. The
// pre-submission simulation surfaces contract reverts (as *RevertError)
// before any gas is spent.
func (c *Client) Submit(ctx context.Context, req TransactionRequest) (common.Hash, error) {
	data, err := req.ABI.Pack(req.Method, req.Args...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to pack %s: %w", req.Method, err)
	}

	msg := ethereum.CallMsg{
		From: c.address,
		To:   &req.To,
		Gas:  req.GasLimit,
		Data: data,
	}
	if _, err := c.backend.CallContract(ctx, msg, nil); err != nil {
		if reason, ok := revertReason(err); ok || isRevertErr(err) {
			metrics.TransactionsSent.WithLabelValues(req.Method, "reverted").Inc()
			return common.Hash{}, &RevertError{Reason: reason}
		}
		return common.Hash{}, fmt.Errorf("%w: simulation failed: %v", ErrRPCUnavailable, err)
	}

	nonce, err := c.backend.PendingNonceAt(ctx, c.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: failed to get nonce: %v", ErrRPCUnavailable, err)
	}

	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: failed to suggest gas price: %v", ErrRPCUnavailable, err)
	}
	if c.maxGasPrice != nil && gasPrice.Cmp(c.maxGasPrice) > 0 {
		c.logger.Warn("Suggested gas price exceeds maximum",
			zap.String("suggested", gasPrice.String()),
			zap.String("max", c.maxGasPrice.String()))
		gasPrice = c.maxGasPrice
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &req.To,
		Gas:      req.GasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signed, err := types.SignTx(tx, c.signer, c.privateKey)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: failed to sign transaction: %v", ErrSubmissionRejected, err)
	}

	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		metrics.TransactionsSent.WithLabelValues(req.Method, "rejected").Inc()
		if reason, ok := revertReason(err); ok {
			return common.Hash{}, &RevertError{Reason: reason}
		}
		if isRejection(err) {
			return common.Hash{}, fmt.Errorf("%w: %v", ErrSubmissionRejected, err)
		}
		return common.Hash{}, fmt.Errorf("%w: %v", ErrRPCUnavailable, err)
	}

	metrics.TransactionsSent.WithLabelValues(req.Method, "submitted").Inc()
	c.logger.Info("Transaction submitted",
		zap.String("method", req.Method),
		zap.String("to", req.To.Hex()),
		zap.String("tx_hash", signed.Hash().Hex()))

	return signed.Hash(), nil
}

// AwaitConfirmation blocks until the transaction reaches the required
// confirmation depth or the timeout elapses. A reverted transaction is
// reported as *RevertError with the replayed reason.
func (c *Client) AwaitConfirmation(ctx context.Context, hash common.Hash, requiredConfirmations uint64, timeout time.Duration) (*Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.backend.TransactionReceipt(waitCtx, hash)
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			c.logger.Debug("Receipt lookup failed, will retry",
				zap.String("tx_hash", hash.Hex()), zap.Error(err))
		}

		if err == nil && receipt != nil {
			confirmed, confs, cerr := c.confirmations(waitCtx, receipt)
			if cerr == nil && confirmed >= requiredConfirmations {
				if receipt.Status == types.ReceiptStatusFailed {
					reason := c.replayReason(waitCtx, hash, receipt)
					metrics.TransactionsSent.WithLabelValues("", "reverted").Inc()
					return nil, &RevertError{Reason: reason}
				}
				return &Receipt{
					TxHash:        hash,
					BlockNumber:   receipt.BlockNumber.Uint64(),
					GasUsed:       receipt.GasUsed,
					Confirmations: confs,
				}, nil
			}
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				// caller cancelled; not a timeout
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: %s not confirmed within %s",
				ErrConfirmationTimeout, hash.Hex(), timeout)
		case <-ticker.C:
		}
	}
}

func (c *Client) confirmations(ctx context.Context, receipt *types.Receipt) (uint64, uint64, error) {
	head, err := c.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	headNum := head.Number.Uint64()
	blockNum := receipt.BlockNumber.Uint64()
	if headNum < blockNum {
		return 0, 0, nil
	}
	confs := headNum - blockNum + 1
	return confs, confs, nil
}

// replayReason re-executes a reverted transaction as a call at its block to
// recover the revert reason. Best effort; an empty reason is acceptable.
func (c *Client) replayReason(ctx context.Context, hash common.Hash, receipt *types.Receipt) string {
	tx, _, err := c.backend.TransactionByHash(ctx, hash)
	if err != nil || tx == nil {
		return ""
	}

	msg := ethereum.CallMsg{
		From:     c.address,
		To:       tx.To(),
		Gas:      tx.Gas(),
		GasPrice: tx.GasPrice(),
		Value:    tx.Value(),
		Data:     tx.Data(),
	}
	_, callErr := c.backend.CallContract(ctx, msg, receipt.BlockNumber)
	if callErr == nil {
		return ""
	}
	reason, _ := revertReason(callErr)
	return reason
}

// Call performs a side-effect-free contract read and returns the unpacked
// output values.
func (c *Client) Call(ctx context.Context, to common.Address, cabi *abi.ABI, method string, args ...any) ([]any, error) {
	data, err := cabi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}

	ret, err := c.backend.CallContract(ctx, ethereum.CallMsg{From: c.address, To: &to, Data: data}, nil)
	if err != nil {
		if reason, ok := revertReason(err); ok {
			return nil, &RevertError{Reason: reason}
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrRPCUnavailable, method, err)
	}

	out, err := cabi.Unpack(method, ret)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", method, err)
	}
	return out, nil
}

func isRevertErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "execution reverted")
}

// isRejection distinguishes signer/node refusals from transport failures
func isRejection(err error) bool {
	msg := err.Error()
	for _, marker := range []string{
		"insufficient funds",
		"nonce too low",
		"replacement transaction underpriced",
		"already known",
		"exceeds block gas limit",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
