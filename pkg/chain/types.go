package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ErrReverted is returned by a Receipt whose execution failed on chain.
var ErrReverted = errors.New("transaction reverted")

// Call is one state-changing contract invocation: {address, functionSignature, args}.
type Call struct {
	Address common.Address
	Method  string
	Args    []interface{}
}

// Calldata packs the call with the LeafConfidentialTrade ABI.
func (c Call) Calldata() ([]byte, error) {
	return Pack(c.Method, c.Args...)
}

func (c Call) String() string {
	return fmt.Sprintf("%s.%s%v", c.Address.Hex(), c.Method, c.Args)
}

// Receipt is the finalized outcome of a submitted transaction.
type Receipt struct {
	TxHash      common.Hash
	BlockNumber uint64
	GasUsed     uint64
	Success     bool
}

// Err is nil for successful receipts and ErrReverted otherwise.
func (r *Receipt) Err() error {
	if r.Success {
		return nil
	}
	return fmt.Errorf("%w: %s in block %d", ErrReverted, r.TxHash.Hex(), r.BlockNumber)
}

// Writer submits a call and returns the transaction hash as its handle.
type Writer interface {
	WriteContract(ctx context.Context, call Call) (common.Hash, error)
}

// ReceiptWatcher blocks until the transaction identified by hash is
// finalized or ctx is done. There is no internal timeout.
type ReceiptWatcher interface {
	WaitReceipt(ctx context.Context, hash common.Hash) (*Receipt, error)
}

// Backend bundles both external capabilities.
type Backend interface {
	Writer
	ReceiptWatcher
}
