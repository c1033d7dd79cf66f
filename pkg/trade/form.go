package trade

import (
	"math/big"
	"strconv"
	"strings"
)

type Side uint8

const (
	Buy  Side = 0
	Sell Side = 1
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "unknown"
	}
}

// Form carries the raw createTrade fields as typed by the user.
type Form struct {
	Amount      string `json:"amount"`
	Price       string `json:"price"`
	TradeType   string `json:"tradeType"`
	AssetSymbol string `json:"assetSymbol"`
}

// Request is the validated createTrade payload. It lives for one submission.
type Request struct {
	Amount      uint32
	Price       uint32
	Side        Side
	AssetSymbol string
}

// Request validates every field. Empty fields are reported first, in form
// order, so a blank form names "amount".
func (f Form) Request() (Request, error) {
	fields := []struct{ name, value string }{
		{"amount", f.Amount},
		{"price", f.Price},
		{"tradeType", f.TradeType},
		{"assetSymbol", f.AssetSymbol},
	}
	for _, fld := range fields {
		if strings.TrimSpace(fld.value) == "" {
			return Request{}, &ValidationError{Field: fld.name, Reason: "required"}
		}
	}

	amount, err := parseUint32("amount", f.Amount)
	if err != nil {
		return Request{}, err
	}
	price, err := parseUint32("price", f.Price)
	if err != nil {
		return Request{}, err
	}
	side, err := parseSide(f.TradeType)
	if err != nil {
		return Request{}, err
	}

	return Request{
		Amount:      amount,
		Price:       price,
		Side:        side,
		AssetSymbol: strings.TrimSpace(f.AssetSymbol),
	}, nil
}

func parseUint32(field, raw string) (uint32, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 32)
	if err != nil {
		return 0, &ValidationError{Field: field, Reason: "must be an unsigned 32-bit integer"}
	}
	return uint32(v), nil
}

func parseSide(raw string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "0", "buy":
		return Buy, nil
	case "1", "sell":
		return Sell, nil
	}
	return 0, &ValidationError{Field: "tradeType", Reason: `must be "0" (buy) or "1" (sell)`}
}

// ParseTradeID validates the executeTrade argument.
func ParseTradeID(raw string) (*big.Int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, &ValidationError{Field: "tradeId", Reason: "required"}
	}
	id, ok := new(big.Int).SetString(raw, 10)
	if !ok || id.Sign() < 0 || id.BitLen() > 256 {
		return nil, &ValidationError{Field: "tradeId", Reason: "must be an unsigned 256-bit integer"}
	}
	return id, nil
}
