package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/uhyunpark/leaftrade/pkg/util"
)

// Transactor supplies signing options for the connected account.
type Transactor interface {
	TransactOpts(ctx context.Context, chainID *big.Int) (*bind.TransactOpts, error)
}

// receiptSource is the subset of ethclient.Client the watcher polls.
type receiptSource interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// EthClient talks to a JSON-RPC node through go-ethereum.
type EthClient struct {
	client  *ethclient.Client
	chainID *big.Int
	keys    Transactor
	watcher *ReceiptPoller
	logger  *zap.SugaredLogger
}

// DialEth connects to rpcURL and checks that the node serves chainID.
func DialEth(ctx context.Context, rpcURL string, chainID int64, keys Transactor, poll time.Duration, logger *zap.SugaredLogger) (*EthClient, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}

	remote, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("query chain id: %w", err)
	}
	if remote.Int64() != chainID {
		client.Close()
		return nil, fmt.Errorf("chain id mismatch: node=%s configured=%d", remote, chainID)
	}

	return &EthClient{
		client:  client,
		chainID: big.NewInt(chainID),
		keys:    keys,
		watcher: NewReceiptPoller(client, poll, util.RealClock{}, logger),
		logger:  logger,
	}, nil
}

func (e *EthClient) Close() { e.client.Close() }

// WriteContract signs and sends call. It makes exactly one attempt.
func (e *EthClient) WriteContract(ctx context.Context, call Call) (common.Hash, error) {
	opts, err := e.keys.TransactOpts(ctx, e.chainID)
	if err != nil {
		return common.Hash{}, err
	}
	opts.Context = ctx

	contract := bind.NewBoundContract(call.Address, contractABI, e.client, e.client, e.client)
	tx, err := contract.Transact(opts, call.Method, call.Args...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("transact %s: %w", call.Method, err)
	}

	e.logger.Infow("tx_sent",
		"method", call.Method,
		"hash", tx.Hash().Hex(),
		"nonce", tx.Nonce(),
		"gas", tx.Gas())
	return tx.Hash(), nil
}

func (e *EthClient) WaitReceipt(ctx context.Context, hash common.Hash) (*Receipt, error) {
	return e.watcher.WaitReceipt(ctx, hash)
}

// ReceiptPoller implements ReceiptWatcher by polling eth_getTransactionReceipt.
type ReceiptPoller struct {
	src      receiptSource
	interval time.Duration
	clock    util.Clock
	logger   *zap.SugaredLogger
}

func NewReceiptPoller(src receiptSource, interval time.Duration, clock util.Clock, logger *zap.SugaredLogger) *ReceiptPoller {
	if interval <= 0 {
		interval = time.Second
	}
	return &ReceiptPoller{src: src, interval: interval, clock: clock, logger: logger}
}

// WaitReceipt polls until the receipt exists. RPC errors other than
// NotFound are logged and polling continues; only ctx ends the wait.
func (p *ReceiptPoller) WaitReceipt(ctx context.Context, hash common.Hash) (*Receipt, error) {
	for {
		receipt, err := p.src.TransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			return fromEthReceipt(receipt), nil
		case errors.Is(err, ethereum.NotFound):
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			p.logger.Warnw("receipt_poll_failed", "hash", hash.Hex(), "err", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-p.clock.After(p.interval):
		}
	}
}

func fromEthReceipt(r *types.Receipt) *Receipt {
	out := &Receipt{
		TxHash:  r.TxHash,
		GasUsed: r.GasUsed,
		Success: r.Status == types.ReceiptStatusSuccessful,
	}
	if r.BlockNumber != nil {
		out.BlockNumber = r.BlockNumber.Uint64()
	}
	return out
}

var _ Backend = (*EthClient)(nil)
var _ ReceiptWatcher = (*ReceiptPoller)(nil)
