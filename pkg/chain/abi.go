package chain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// LeafConfidentialTradeABI is the ABI of the two functions the dashboard calls.
const LeafConfidentialTradeABI = `[
  {
    "inputs": [
      {"internalType": "uint32", "name": "amount", "type": "uint32"},
      {"internalType": "uint32", "name": "price", "type": "uint32"},
      {"internalType": "uint8", "name": "tradeType", "type": "uint8"},
      {"internalType": "string", "name": "assetSymbol", "type": "string"}
    ],
    "name": "createTrade",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "uint256", "name": "tradeId", "type": "uint256"}],
    "name": "executeTrade",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  }
]`

const (
	MethodCreateTrade  = "createTrade"
	MethodExecuteTrade = "executeTrade"
)

var contractABI = mustParseABI(LeafConfidentialTradeABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Errorf("parse contract abi: %w", err))
	}
	return parsed
}

// ContractABI returns the parsed LeafConfidentialTrade ABI.
func ContractABI() abi.ABI { return contractABI }

// CreateTradeArgs orders the createTrade arguments as the ABI expects them.
func CreateTradeArgs(amount, price uint32, tradeType uint8, assetSymbol string) []interface{} {
	return []interface{}{amount, price, tradeType, assetSymbol}
}

// ExecuteTradeArgs wraps a trade ID as the single uint256 argument.
func ExecuteTradeArgs(tradeID *big.Int) []interface{} {
	return []interface{}{new(big.Int).Set(tradeID)}
}

// Pack encodes a call into calldata (selector + arguments).
func Pack(method string, args ...interface{}) ([]byte, error) {
	if _, ok := contractABI.Methods[method]; !ok {
		return nil, fmt.Errorf("unknown method %q", method)
	}
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	return data, nil
}

// Unpack decodes calldata produced by Pack back into the method name and its
// arguments.
func Unpack(data []byte) (string, []interface{}, error) {
	if len(data) < 4 {
		return "", nil, fmt.Errorf("calldata too short: %d bytes", len(data))
	}
	method, err := contractABI.MethodById(data[:4])
	if err != nil {
		return "", nil, fmt.Errorf("lookup selector: %w", err)
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return "", nil, fmt.Errorf("unpack %s: %w", method.Name, err)
	}
	return method.Name, args, nil
}
