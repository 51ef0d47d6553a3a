// Package replica implements an in-memory mirror of the on-chain order
// book for a single trading pair: a doubly-linked list of price levels
// per side, each holding a doubly-linked list of orders, plus FIFO
// queues for market orders. All linkage is expressed as integer-keyed
// table lookups rather than pointers, so the structure never forms a
// reference cycle and removal is O(1) by key.
package replica

import (
	"github.com/holiman/uint256"
)

// bidBit distinguishes bid price levels from ask price levels sharing
// the same underlying price: the composite key for a bid level is the
// price with this bit set.
var bidBit = func() *uint256.Int {
	one := uint256.NewInt(1)
	return one.Lsh(one, 255)
}()

// CompositeKey returns the price-level table key for price on the given
// side: price itself for asks, price with the top bit set for bids.
func CompositeKey(price *uint256.Int, isAsk bool) uint256.Int {
	if isAsk {
		return *price
	}
	var key uint256.Int
	key.Or(price, bidBit)
	return key
}

// Zero is the sentinel "none" value for ids and price-level keys.
func Zero() uint256.Int { return uint256.Int{} }

func isZero(v *uint256.Int) bool { return v.IsZero() }

// Order mirrors the on-chain Order record.
type Order struct {
	ID         uint256.Int
	Trader     [20]byte
	Amount     uint256.Int
	Filled     uint256.Int
	IsMarket   bool
	IsAsk      bool
	PriceLevel uint256.Int // composite key of the containing level; zero for market orders
	NextOrder  uint256.Int
	PrevOrder  uint256.Int
}

// Remaining returns amount - filled.
func (o *Order) Remaining() uint256.Int {
	var r uint256.Int
	r.Sub(&o.Amount, &o.Filled)
	return r
}

// IsFullyFilled reports whether filled has reached amount.
func (o *Order) IsFullyFilled() bool {
	return o.Filled.Eq(&o.Amount)
}

// Status is the order's position in its state machine (§4.1.5):
// Open -> PartiallyFilled -> {Filled | Cancelled}.
type Status int

const (
	StatusOpen Status = iota
	StatusPartiallyFilled
	StatusFilled
	StatusCancelled
)

// Status derives the order's current lifecycle state from its filled
// amount. Cancelled is not recoverable from this alone; callers that
// cancel an order must track that explicitly before removal.
func (o *Order) Status() Status {
	if o.Filled.IsZero() {
		return StatusOpen
	}
	if o.IsFullyFilled() {
		return StatusFilled
	}
	return StatusPartiallyFilled
}

// PriceLevel mirrors the on-chain PriceLevel record. It is keyed in the
// level table by CompositeKey(Price, isAsk implied by the key's top bit).
type PriceLevel struct {
	Price       uint256.Int
	IsAsk       bool
	TotalVolume uint256.Int
	HeadOrder   uint256.Int
	TailOrder   uint256.Int
	NextPrice   uint256.Int
	PrevPrice   uint256.Int
}

// IsEmpty reports whether the level holds no orders.
func (l *PriceLevel) IsEmpty() bool {
	return l.HeadOrder.IsZero() && l.TotalVolume.IsZero()
}

// side holds the boundary pointers for one side of the book: the
// doubly-linked price-level list plus the market-order FIFO.
type side struct {
	headKey    uint256.Int
	tailKey    uint256.Int
	marketHead uint256.Int
	marketTail uint256.Int
}
