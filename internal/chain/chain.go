// Package chain defines the engine's external chain interfaces (§6):
// reading Sequencer/OrderBook state, subscribing to their events, and
// submitting batch transactions. OUT OF SCOPE per §1 means these
// collaborators are defined by interface here and backed by concrete
// go-ethereum implementations, not reimplemented chain logic.
package chain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
)

// QueuedRequestData is the raw tuple returned by
// Sequencer.queued_requests (§6).
type QueuedRequestData struct {
	TradingPair   common.Hash
	Trader        common.Address
	Kind          uint8
	OrderType     uint8
	IsAsk         bool
	Price         uint256.Int
	Amount        uint256.Int
	NextRequestID uint256.Int
	PrevRequestID uint256.Int
}

// OrderBookBounds is the raw tuple returned by OrderBook.order_books.
type OrderBookBounds struct {
	AskHead       uint256.Int
	AskTail       uint256.Int
	BidHead       uint256.Int
	BidTail       uint256.Int
	MarketAskHead uint256.Int
	MarketAskTail uint256.Int
	MarketBidHead uint256.Int
	MarketBidTail uint256.Int
}

// PriceLevelData is the raw tuple returned by OrderBook.get_price_level.
type PriceLevelData struct {
	Price       uint256.Int
	TotalVolume uint256.Int
	HeadOrder   uint256.Int
	TailOrder   uint256.Int
	NextPrice   uint256.Int
	PrevPrice   uint256.Int
}

// OrderData is the raw tuple returned by OrderBook.orders.
type OrderData struct {
	ID         uint256.Int
	Trader     common.Address
	Amount     uint256.Int
	Filled     uint256.Int
	IsMarket   bool
	PriceLevel uint256.Int
	NextOrder  uint256.Int
	PrevOrder  uint256.Int
}

// Reader is the read surface of §6: RPC queries against the Sequencer
// and OrderBook contracts, used by the Reconciler's cold sync and its
// block-lag polling.
type Reader interface {
	QueueHead(ctx context.Context) (uint256.Int, error)
	QueuedRequest(ctx context.Context, requestID uint256.Int) (QueuedRequestData, error)
	OrderBookBounds(ctx context.Context, tradingPair common.Hash) (OrderBookBounds, error)
	PriceLevel(ctx context.Context, price uint256.Int, isAsk bool) (PriceLevelData, error)
	Order(ctx context.Context, orderID uint256.Int) (OrderData, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// EventKind names the chain event types consumed by the Reconciler.
type EventKind int

const (
	EventTrade EventKind = iota
	EventOrderFilled
	EventOrderRemoved
	EventOrderInserted
	EventPriceLevelCreated
	EventPriceLevelRemoved
	EventMarketOrderRemoved
	EventPlaceOrderRequested
	EventRemoveOrderRequested
)

// Event is a decoded chain log: the Reconciler dispatches on Kind and
// reads the fields relevant to it, leaving the rest zero.
type Event struct {
	Kind            EventKind
	BlockNumber     uint64
	LogIndex        uint
	OrderID         uint256.Int
	Price           uint256.Int
	Amount          uint256.Int
	IsAsk           bool
	FilledAmount    uint256.Int
	IsFullyFilled   bool
	BuyOrderID      uint256.Int
	SellOrderID     uint256.Int
	RequestID       uint256.Int
	TradingPair     common.Hash
	Trader          common.Address
	OrderType       uint8
	OrderIDToRemove uint256.Int
}

// EventSubscriber streams decoded OrderBook and Sequencer events
// starting at fromBlock (§4.4's synced_block + 1), closing ch when ctx
// is cancelled or the underlying transport drops.
type EventSubscriber interface {
	Subscribe(ctx context.Context, fromBlock uint64) (<-chan Event, <-chan error)
}

// BatchRequest is the payload of OrderBook.batch_process_requests: three
// parallel arrays, one entry per request, in queue order (§4.3, §6).
type BatchRequest struct {
	OrderIDs          []uint256.Int
	InsertAfterPrices []uint256.Int
	InsertAfterOrders []uint256.Int
}

// SubmitterStatus reports the TxSubmitter's connection and throughput
// state, matching the teacher's own SubmitterStatus shape.
type SubmitterStatus struct {
	Connected        bool
	PendingTxCount   int
	LastError        string
	TotalSubmissions int64
	FailedBatches    int64
}

// TxSubmitter sends a batch transaction and reports its eventual
// receipt, following the teacher's TxSubmitter interface shape
// (offchain/matcher/submitter.go).
type TxSubmitter interface {
	SubmitBatch(ctx context.Context, req BatchRequest) (txHash common.Hash, err error)
	AwaitReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	GetStatus() SubmitterStatus
}
