package chain

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// contractABI packs and unpacks the read/write surface of §6 directly
// against the function signatures, standing in for abigen-generated
// bindings (none are available in the retrieved corpus; see DESIGN.md).
const contractABIJSON = `[
  {"name":"queue_head","type":"function","stateMutability":"view",
   "inputs":[],"outputs":[{"name":"requestId","type":"uint256"}]},
  {"name":"queued_requests","type":"function","stateMutability":"view",
   "inputs":[{"name":"requestId","type":"uint256"}],
   "outputs":[
     {"name":"tradingPair","type":"bytes32"},
     {"name":"trader","type":"address"},
     {"name":"kind","type":"uint8"},
     {"name":"orderType","type":"uint8"},
     {"name":"isAsk","type":"bool"},
     {"name":"price","type":"uint256"},
     {"name":"amount","type":"uint256"},
     {"name":"nextRequestId","type":"uint256"},
     {"name":"prevRequestId","type":"uint256"}
   ]},
  {"name":"order_books","type":"function","stateMutability":"view",
   "inputs":[{"name":"tradingPair","type":"bytes32"}],
   "outputs":[
     {"name":"askHead","type":"uint256"},
     {"name":"askTail","type":"uint256"},
     {"name":"bidHead","type":"uint256"},
     {"name":"bidTail","type":"uint256"},
     {"name":"marketAskHead","type":"uint256"},
     {"name":"marketAskTail","type":"uint256"},
     {"name":"marketBidHead","type":"uint256"},
     {"name":"marketBidTail","type":"uint256"}
   ]},
  {"name":"get_price_level","type":"function","stateMutability":"view",
   "inputs":[{"name":"price","type":"uint256"},{"name":"isAsk","type":"bool"}],
   "outputs":[
     {"name":"price","type":"uint256"},
     {"name":"totalVolume","type":"uint256"},
     {"name":"headOrder","type":"uint256"},
     {"name":"tailOrder","type":"uint256"},
     {"name":"nextPrice","type":"uint256"},
     {"name":"prevPrice","type":"uint256"}
   ]},
  {"name":"orders","type":"function","stateMutability":"view",
   "inputs":[{"name":"orderId","type":"uint256"}],
   "outputs":[
     {"name":"id","type":"uint256"},
     {"name":"trader","type":"address"},
     {"name":"amount","type":"uint256"},
     {"name":"filled","type":"uint256"},
     {"name":"isMarket","type":"bool"},
     {"name":"priceLevel","type":"uint256"},
     {"name":"nextOrder","type":"uint256"},
     {"name":"prevOrder","type":"uint256"}
   ]},
  {"name":"batch_process_requests","type":"function","stateMutability":"nonpayable",
   "inputs":[
     {"name":"orderIds","type":"uint256[]"},
     {"name":"insertAfterPrices","type":"uint256[]"},
     {"name":"insertAfterOrders","type":"uint256[]"}
   ],"outputs":[]}
]`

var contractABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(contractABIJSON))
	if err != nil {
		panic("chain: invalid embedded ABI: " + err.Error())
	}
	return parsed
}()

func toBig(v *uint256.Int) *big.Int { return v.ToBig() }

func fromBig(v *big.Int) uint256.Int {
	out, _ := uint256.FromBig(v)
	return *out
}

func packQueueHead() []byte {
	data, _ := contractABI.Pack("queue_head")
	return data
}

func unpackQueueHead(out []byte) (uint256.Int, error) {
	vals, err := contractABI.Unpack("queue_head", out)
	if err != nil || len(vals) != 1 {
		return uint256.Int{}, ErrUnknownEntityRPC
	}
	return fromBig(vals[0].(*big.Int)), nil
}

func packQueuedRequests(requestID uint256.Int) []byte {
	data, _ := contractABI.Pack("queued_requests", toBig(&requestID))
	return data
}

func unpackQueuedRequests(out []byte) (QueuedRequestData, error) {
	vals, err := contractABI.Unpack("queued_requests", out)
	if err != nil || len(vals) != 9 {
		return QueuedRequestData{}, ErrUnknownEntityRPC
	}
	return QueuedRequestData{
		TradingPair:   common.Hash(vals[0].([32]byte)),
		Trader:        vals[1].(common.Address),
		Kind:          vals[2].(uint8),
		OrderType:     vals[3].(uint8),
		IsAsk:         vals[4].(bool),
		Price:         fromBig(vals[5].(*big.Int)),
		Amount:        fromBig(vals[6].(*big.Int)),
		NextRequestID: fromBig(vals[7].(*big.Int)),
		PrevRequestID: fromBig(vals[8].(*big.Int)),
	}, nil
}

func packOrderBooks(tradingPair common.Hash) []byte {
	data, _ := contractABI.Pack("order_books", [32]byte(tradingPair))
	return data
}

func unpackOrderBooks(out []byte) (OrderBookBounds, error) {
	vals, err := contractABI.Unpack("order_books", out)
	if err != nil || len(vals) != 8 {
		return OrderBookBounds{}, ErrUnknownEntityRPC
	}
	return OrderBookBounds{
		AskHead:       fromBig(vals[0].(*big.Int)),
		AskTail:       fromBig(vals[1].(*big.Int)),
		BidHead:       fromBig(vals[2].(*big.Int)),
		BidTail:       fromBig(vals[3].(*big.Int)),
		MarketAskHead: fromBig(vals[4].(*big.Int)),
		MarketAskTail: fromBig(vals[5].(*big.Int)),
		MarketBidHead: fromBig(vals[6].(*big.Int)),
		MarketBidTail: fromBig(vals[7].(*big.Int)),
	}, nil
}

func packGetPriceLevel(price uint256.Int, isAsk bool) []byte {
	data, _ := contractABI.Pack("get_price_level", toBig(&price), isAsk)
	return data
}

func unpackPriceLevel(out []byte) (PriceLevelData, error) {
	vals, err := contractABI.Unpack("get_price_level", out)
	if err != nil || len(vals) != 6 {
		return PriceLevelData{}, ErrUnknownEntityRPC
	}
	return PriceLevelData{
		Price:       fromBig(vals[0].(*big.Int)),
		TotalVolume: fromBig(vals[1].(*big.Int)),
		HeadOrder:   fromBig(vals[2].(*big.Int)),
		TailOrder:   fromBig(vals[3].(*big.Int)),
		NextPrice:   fromBig(vals[4].(*big.Int)),
		PrevPrice:   fromBig(vals[5].(*big.Int)),
	}, nil
}

func packOrders(orderID uint256.Int) []byte {
	data, _ := contractABI.Pack("orders", toBig(&orderID))
	return data
}

func unpackOrder(out []byte) (OrderData, error) {
	vals, err := contractABI.Unpack("orders", out)
	if err != nil || len(vals) != 8 {
		return OrderData{}, ErrUnknownEntityRPC
	}
	return OrderData{
		ID:         fromBig(vals[0].(*big.Int)),
		Trader:     vals[1].(common.Address),
		Amount:     fromBig(vals[2].(*big.Int)),
		Filled:     fromBig(vals[3].(*big.Int)),
		IsMarket:   vals[4].(bool),
		PriceLevel: fromBig(vals[5].(*big.Int)),
		NextOrder:  fromBig(vals[6].(*big.Int)),
		PrevOrder:  fromBig(vals[7].(*big.Int)),
	}, nil
}

func packBatchProcessRequests(req BatchRequest) []byte {
	orderIDs := make([]*big.Int, len(req.OrderIDs))
	prices := make([]*big.Int, len(req.InsertAfterPrices))
	orders := make([]*big.Int, len(req.InsertAfterOrders))
	for i := range req.OrderIDs {
		orderIDs[i] = toBig(&req.OrderIDs[i])
		prices[i] = toBig(&req.InsertAfterPrices[i])
		orders[i] = toBig(&req.InsertAfterOrders[i])
	}
	data, _ := contractABI.Pack("batch_process_requests", orderIDs, prices, orders)
	return data
}
