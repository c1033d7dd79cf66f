package chain

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/crypto/sha3"

	"github.com/uhyunpark/leaftrade/pkg/util"
)

var ErrUnknownTx = errors.New("unknown transaction")

type devTx struct {
	call    Call
	mined   chan struct{}
	receipt *Receipt
}

// DevChain is an in-process stand-in for a node running LeafConfidentialTrade.
// Calls are mined after MineDelay; createTrade allocates sequential trade IDs
// and executeTrade reverts for unknown or already executed IDs.
type DevChain struct {
	mu      sync.Mutex
	txs     map[common.Hash]*devTx
	trades  map[uint64]bool // tradeID -> executed
	nextID  uint64
	nonce   uint64
	height  uint64
	chainID *big.Int
	keys    Transactor
	delay   time.Duration
	clock   util.Clock
	logger  *zap.SugaredLogger

	// Reject, when set, can refuse a call before it is accepted.
	Reject func(Call) error
}

// NewDevChain creates a dev chain. keys may be nil, in which case calls are
// not required to come from a connected wallet.
func NewDevChain(chainID int64, keys Transactor, mineDelay time.Duration, clock util.Clock, logger *zap.SugaredLogger) *DevChain {
	if clock == nil {
		clock = util.RealClock{}
	}
	return &DevChain{
		txs:     make(map[common.Hash]*devTx),
		trades:  make(map[uint64]bool),
		chainID: big.NewInt(chainID),
		keys:    keys,
		delay:   mineDelay,
		clock:   clock,
		logger:  logger,
	}
}

func (d *DevChain) WriteContract(ctx context.Context, call Call) (common.Hash, error) {
	if d.keys != nil {
		if _, err := d.keys.TransactOpts(ctx, d.chainID); err != nil {
			return common.Hash{}, err
		}
	}
	if d.Reject != nil {
		if err := d.Reject(call); err != nil {
			return common.Hash{}, err
		}
	}
	data, err := call.Calldata()
	if err != nil {
		return common.Hash{}, err
	}

	d.mu.Lock()
	d.nonce++
	hash := devHash(data, d.nonce)
	tx := &devTx{call: call, mined: make(chan struct{})}
	d.txs[hash] = tx
	d.mu.Unlock()

	d.logger.Debugw("devchain_tx_accepted", "hash", hash.Hex(), "method", call.Method)
	go d.mine(hash, tx)
	return hash, nil
}

func (d *DevChain) mine(hash common.Hash, tx *devTx) {
	if d.delay > 0 {
		<-d.clock.After(d.delay)
	}

	d.mu.Lock()
	d.height++
	success := d.applyLocked(tx.call)
	tx.receipt = &Receipt{
		TxHash:      hash,
		BlockNumber: d.height,
		GasUsed:     21000,
		Success:     success,
	}
	d.mu.Unlock()

	close(tx.mined)
	d.logger.Debugw("devchain_tx_mined", "hash", hash.Hex(), "block", tx.receipt.BlockNumber, "success", success)
}

// applyLocked runs the contract logic. Caller holds d.mu.
func (d *DevChain) applyLocked(call Call) bool {
	switch call.Method {
	case MethodCreateTrade:
		d.nextID++
		d.trades[d.nextID] = false
		return true
	case MethodExecuteTrade:
		id, ok := call.Args[0].(*big.Int)
		if !ok || !id.IsUint64() {
			return false
		}
		executed, exists := d.trades[id.Uint64()]
		if !exists || executed {
			return false
		}
		d.trades[id.Uint64()] = true
		return true
	}
	return false
}

func (d *DevChain) WaitReceipt(ctx context.Context, hash common.Hash) (*Receipt, error) {
	d.mu.Lock()
	tx, ok := d.txs[hash]
	d.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTx, hash.Hex())
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-tx.mined:
		r := *tx.receipt
		return &r, nil
	}
}

// TradeCount returns how many trades createTrade has produced.
func (d *DevChain) TradeCount() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.nextID
}

// devHash is keccak256(calldata || nonce).
func devHash(data []byte, nonce uint64) common.Hash {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], nonce)
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	h.Write(n[:])
	return common.BytesToHash(h.Sum(nil))
}

var _ Backend = (*DevChain)(nil)
