// encode-trade prints the LeafConfidentialTrade calldata a trade form would
// produce, then decodes it back as a check.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/uhyunpark/leaftrade/params"
	"github.com/uhyunpark/leaftrade/pkg/chain"
	"github.com/uhyunpark/leaftrade/pkg/trade"
)

func main() {
	var (
		amount   = flag.String("amount", "", "createTrade amount (uint32)")
		price    = flag.String("price", "", "createTrade price (uint32)")
		side     = flag.String("type", "0", `trade type: "0"/"buy" or "1"/"sell"`)
		symbol   = flag.String("symbol", "", "asset symbol")
		execute  = flag.String("execute", "", "encode executeTrade(tradeId) instead")
		contract = flag.String("contract", params.PlaceholderContract, "contract address")
	)
	flag.Parse()

	if !common.IsHexAddress(*contract) {
		fail("invalid contract address %q", *contract)
	}
	call := chain.Call{Address: common.HexToAddress(*contract)}

	if *execute != "" {
		id, err := trade.ParseTradeID(*execute)
		if err != nil {
			fail("%v", err)
		}
		call.Method = chain.MethodExecuteTrade
		call.Args = chain.ExecuteTradeArgs(id)
	} else {
		req, err := trade.Form{Amount: *amount, Price: *price, TradeType: *side, AssetSymbol: *symbol}.Request()
		if err != nil {
			fail("%v", err)
		}
		call.Method = chain.MethodCreateTrade
		call.Args = chain.CreateTradeArgs(req.Amount, req.Price, uint8(req.Side), req.AssetSymbol)
	}

	data, err := call.Calldata()
	if err != nil {
		fail("encode: %v", err)
	}

	fmt.Printf("To:       %s\n", call.Address.Hex())
	fmt.Printf("Function: %s\n", chain.ContractABI().Methods[call.Method].Sig)
	fmt.Printf("Selector: %s\n", hexutil.Encode(data[:4]))
	fmt.Printf("Calldata: %s\n\n", hexutil.Encode(data))

	// Decode back to confirm the encoding round-trips
	method, args, err := chain.Unpack(data)
	if err != nil {
		fail("decode: %v", err)
	}
	fmt.Printf("Decoded:  %s%v\n", method, args)
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
