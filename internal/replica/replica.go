package replica

import (
	"github.com/holiman/uint256"
)

// maxMatchIterations bounds the post-insertion matching loop so a
// pathological chain of trades cannot stall a tick indefinitely.
const maxMatchIterations = 50

// Replica is the in-memory mirror of the on-chain order book for one
// trading pair. It owns its orders and price levels exclusively; all
// linkage is by table key, never by pointer, so the structure cannot
// form a reference cycle and every removal is O(1).
type Replica struct {
	orders map[uint256.Int]*Order
	levels map[uint256.Int]*PriceLevel
	asks   side
	bids   side

	// TradeHook, when set, is invoked once per counterparty order
	// touched by a trade during post-insertion matching, after its
	// Filled amount is updated. The Dispatcher's scratch simulator uses
	// it to record the PendingChange entries a batch will produce,
	// without the Replica needing to know anything about pending
	// changes itself.
	TradeHook func(o *Order)
}

// New returns an empty Replica.
func New() *Replica {
	return &Replica{
		orders: make(map[uint256.Int]*Order),
		levels: make(map[uint256.Int]*PriceLevel),
	}
}

func (r *Replica) sideFor(isAsk bool) *side {
	if isAsk {
		return &r.asks
	}
	return &r.bids
}

// InsertLimitOrder computes the insertion hint, splices a price level
// in if one does not already exist at this price, appends the order to
// the tail of the level's order list, and runs post-insertion matching.
// The returned hint is computed against state as it stood before any of
// this call's mutations, matching on-chain contract semantics.
func (r *Replica) InsertLimitOrder(orderID, price, amount *uint256.Int, isAsk bool) uint256.Int {
	hint := r.computeInsertAfterPrice(price, isAsk)

	key := CompositeKey(price, isAsk)
	lvl, exists := r.levels[key]
	if !exists {
		lvl = &PriceLevel{Price: *price, IsAsk: isAsk}
		r.levels[key] = lvl
		r.spliceLevelIn(key, lvl, isAsk, &hint)
	}
	r.appendOrderToLevel(lvl, key, orderID, amount, isAsk)
	r.runPostInsertionMatching()
	return hint
}

// InsertMarketOrder appends orderID to the side's market FIFO and runs
// post-insertion matching. Market orders produce no insertion hint.
func (r *Replica) InsertMarketOrder(orderID, amount *uint256.Int, isAsk bool) {
	o := &Order{ID: *orderID, Amount: *amount, IsMarket: true, IsAsk: isAsk}
	r.orders[*orderID] = o

	s := r.sideFor(isAsk)
	if s.marketTail.IsZero() {
		s.marketHead = *orderID
		s.marketTail = *orderID
	} else {
		tail := r.orders[s.marketTail]
		tail.NextOrder = *orderID
		o.PrevOrder = s.marketTail
		s.marketTail = *orderID
	}
	r.runPostInsertionMatching()
}

// AppendOrder appends orderID to the tail of an existing limit price
// level's order list without running post-insertion matching. Used by
// the Reconciler to apply an authoritative OrderInserted event, whose
// resulting fills arrive as their own separate Trade/OrderFilled events
// rather than being derived locally (§4.4): re-running the matching
// loop here would double-apply a trade the chain already decided.
// Reports false if no level exists at price yet.
func (r *Replica) AppendOrder(orderID, price, amount *uint256.Int, isAsk bool) bool {
	key := CompositeKey(price, isAsk)
	lvl, exists := r.levels[key]
	if !exists {
		return false
	}
	r.appendOrderToLevel(lvl, key, orderID, amount, isAsk)
	return true
}

// AppendMarketOrder appends orderID to the side's market FIFO without
// running post-insertion matching, for the same reason as AppendOrder.
func (r *Replica) AppendMarketOrder(orderID, amount *uint256.Int, isAsk bool) {
	o := &Order{ID: *orderID, Amount: *amount, IsMarket: true, IsAsk: isAsk}
	r.orders[*orderID] = o

	s := r.sideFor(isAsk)
	if s.marketTail.IsZero() {
		s.marketHead = *orderID
		s.marketTail = *orderID
	} else {
		tail := r.orders[s.marketTail]
		tail.NextOrder = *orderID
		o.PrevOrder = s.marketTail
		s.marketTail = *orderID
	}
}

// RemoveOrder unlinks orderID from its level (destroying the level if it
// empties) or market FIFO. Reports false if the id is unknown.
func (r *Replica) RemoveOrder(orderID *uint256.Int, isAsk bool) bool {
	o, ok := r.orders[*orderID]
	if !ok {
		return false
	}
	if o.IsMarket {
		r.unlinkFromMarketFIFO(o, isAsk)
	} else {
		lvl := r.levels[o.PriceLevel]
		remaining := o.Remaining()
		r.unlinkOrderFromLevel(o, lvl)
		lvl.TotalVolume = saturatingSub(&lvl.TotalVolume, &remaining)
		if lvl.IsEmpty() {
			r.destroyLevel(o.PriceLevel, lvl, isAsk)
		}
	}
	delete(r.orders, *orderID)
	return true
}

// AddExistingLevel installs a price level read from chain state during
// cold sync, without touching any linkage. Callers are responsible for
// installing consistent next/prev pointers across all levels on the
// side, and for calling AddExistingOrder to populate its order list.
// This is the cold-sync counterpart of InsertEmptyLevel: cold-sync reads
// already carry NextPrice/PrevPrice straight off the chain, so there is
// nothing to splice here.
func (r *Replica) AddExistingLevel(lvl *PriceLevel, isAsk bool) {
	key := CompositeKey(&lvl.Price, isAsk)
	cp := *lvl
	r.levels[key] = &cp
}

// InsertEmptyLevel creates a new, orderless price level at price and
// splices it into the side's list by the same price comparison
// InsertLimitOrder uses, for the Reconciler's warm-phase
// PriceLevelCreated handler (§4.4): unlike cold sync, a warm event
// carries no next/prev pointers of its own, so the level must be
// positioned the same way a simulated insertion would position it.
// Reports false if a level already exists at this composite key.
func (r *Replica) InsertEmptyLevel(price *uint256.Int, isAsk bool) bool {
	key := CompositeKey(price, isAsk)
	if _, exists := r.levels[key]; exists {
		return false
	}
	hint := r.computeInsertAfterPrice(price, isAsk)
	lvl := &PriceLevel{Price: *price, IsAsk: isAsk}
	r.levels[key] = lvl
	r.spliceLevelIn(key, lvl, isAsk, &hint)
	return true
}

// AddExistingOrder installs an order read from chain state during cold
// sync, without running matching or recomputing level volume.
func (r *Replica) AddExistingOrder(o *Order) {
	cp := *o
	r.orders[o.ID] = &cp
}

// SetSideBounds installs the head/tail price-level keys and market FIFO
// bounds for a side, as read from the chain's OrderBook boundary
// pointers during cold sync.
func (r *Replica) SetSideBounds(isAsk bool, headPrice, tailPrice, marketHead, marketTail uint256.Int) {
	s := r.sideFor(isAsk)
	s.headKey = headPrice
	s.tailKey = tailPrice
	s.marketHead = marketHead
	s.marketTail = marketTail
}

// Order looks up an order by id.
func (r *Replica) Order(id *uint256.Int) (*Order, bool) {
	o, ok := r.orders[*id]
	return o, ok
}

// Level looks up a price level by composite key.
func (r *Replica) Level(key *uint256.Int) (*PriceLevel, bool) {
	l, ok := r.levels[*key]
	return l, ok
}

// RemoveLevel splices a price level out of its side's list and deletes
// it directly, without regard to whether it is empty. Used by the
// Reconciler to apply a PriceLevelRemoved event, which names the level
// itself rather than an order within it.
func (r *Replica) RemoveLevel(key *uint256.Int, isAsk bool) {
	lvl, ok := r.levels[*key]
	if !ok {
		return
	}
	r.destroyLevel(*key, lvl, isAsk)
}

// BestPrice returns the head level's price for the given side, or false
// if the side is empty.
func (r *Replica) BestPrice(isAsk bool) (uint256.Int, bool) {
	s := r.sideFor(isAsk)
	if s.headKey.IsZero() {
		return uint256.Int{}, false
	}
	lvl := r.levels[s.headKey]
	return lvl.Price, true
}

// SidePrices returns the price-ordered list of level prices for the
// given side, head to tail. Intended for tests and diagnostics, not the
// hot path.
func (r *Replica) SidePrices(isAsk bool) []uint256.Int {
	s := r.sideFor(isAsk)
	var out []uint256.Int
	cur := s.headKey
	for !cur.IsZero() {
		lvl, ok := r.levels[cur]
		if !ok {
			break
		}
		out = append(out, lvl.Price)
		cur = lvl.NextPrice
	}
	return out
}

// Clone returns a deep copy suitable for use as a scratch simulator: the
// Dispatcher mutates the clone while deriving insertion hints, leaving
// the live Replica untouched.
func (r *Replica) Clone() *Replica {
	out := New()
	out.asks = r.asks
	out.bids = r.bids
	for k, v := range r.orders {
		cp := *v
		out.orders[k] = &cp
	}
	for k, v := range r.levels {
		cp := *v
		out.levels[k] = &cp
	}
	return out
}

// --- insertion position -----------------------------------------------------

func (r *Replica) computeInsertAfterPrice(price *uint256.Int, isAsk bool) uint256.Int {
	key := CompositeKey(price, isAsk)
	if _, exists := r.levels[key]; exists {
		return *price
	}

	s := r.sideFor(isAsk)
	var prevPrice uint256.Int
	cur := s.headKey
	for !cur.IsZero() {
		lvl, ok := r.levels[cur]
		if !ok {
			break
		}
		if isAsk {
			if price.Cmp(&lvl.Price) <= 0 {
				return prevPrice
			}
		} else {
			if price.Cmp(&lvl.Price) >= 0 {
				return prevPrice
			}
		}
		prevPrice = lvl.Price
		cur = lvl.NextPrice
	}
	return prevPrice
}

// --- splicing ----------------------------------------------------------------

func (r *Replica) spliceLevelIn(key uint256.Int, lvl *PriceLevel, isAsk bool, insertAfterPrice *uint256.Int) {
	s := r.sideFor(isAsk)

	if isZero(insertAfterPrice) {
		if s.headKey.IsZero() {
			s.headKey = key
			s.tailKey = key
			return
		}
		oldHeadKey := s.headKey
		oldHead := r.levels[oldHeadKey]
		oldHead.PrevPrice = key
		lvl.NextPrice = oldHeadKey
		s.headKey = key
		return
	}

	anchorKey := CompositeKey(insertAfterPrice, isAsk)
	anchor := r.levels[anchorKey]
	nextKey := anchor.NextPrice

	lvl.PrevPrice = anchorKey
	lvl.NextPrice = nextKey
	anchor.NextPrice = key

	if nextKey.IsZero() {
		s.tailKey = key
	} else {
		next := r.levels[nextKey]
		next.PrevPrice = key
	}
}

func (r *Replica) destroyLevel(key uint256.Int, lvl *PriceLevel, isAsk bool) {
	s := r.sideFor(isAsk)

	if lvl.PrevPrice.IsZero() {
		s.headKey = lvl.NextPrice
	} else {
		prev := r.levels[lvl.PrevPrice]
		prev.NextPrice = lvl.NextPrice
	}
	if lvl.NextPrice.IsZero() {
		s.tailKey = lvl.PrevPrice
	} else {
		next := r.levels[lvl.NextPrice]
		next.PrevPrice = lvl.PrevPrice
	}
	delete(r.levels, key)
}

// --- order list maintenance ---------------------------------------------------

func (r *Replica) appendOrderToLevel(lvl *PriceLevel, levelKey uint256.Int, orderID, amount *uint256.Int, isAsk bool) {
	o := &Order{ID: *orderID, Amount: *amount, IsAsk: isAsk, PriceLevel: levelKey}
	r.orders[*orderID] = o

	if lvl.TailOrder.IsZero() {
		lvl.HeadOrder = *orderID
		lvl.TailOrder = *orderID
	} else {
		tail := r.orders[lvl.TailOrder]
		tail.NextOrder = *orderID
		o.PrevOrder = lvl.TailOrder
		lvl.TailOrder = *orderID
	}
	lvl.TotalVolume.Add(&lvl.TotalVolume, amount)
}

func (r *Replica) unlinkOrderFromLevel(o *Order, lvl *PriceLevel) {
	if o.PrevOrder.IsZero() {
		lvl.HeadOrder = o.NextOrder
	} else {
		prev := r.orders[o.PrevOrder]
		prev.NextOrder = o.NextOrder
	}
	if o.NextOrder.IsZero() {
		lvl.TailOrder = o.PrevOrder
	} else {
		next := r.orders[o.NextOrder]
		next.PrevOrder = o.PrevOrder
	}
}

func (r *Replica) unlinkFromMarketFIFO(o *Order, isAsk bool) {
	s := r.sideFor(isAsk)
	if o.PrevOrder.IsZero() {
		s.marketHead = o.NextOrder
	} else {
		prev := r.orders[o.PrevOrder]
		prev.NextOrder = o.NextOrder
	}
	if o.NextOrder.IsZero() {
		s.marketTail = o.PrevOrder
	} else {
		next := r.orders[o.NextOrder]
		next.PrevOrder = o.PrevOrder
	}
}

// removeFilledOrder unlinks a fully-filled order from whichever list it
// belongs to, destroying its level if it empties. It does not adjust
// TotalVolume: the caller (executeTrade) has already accounted the
// traded amount.
func (r *Replica) removeFilledOrder(o *Order) {
	if o.IsMarket {
		r.unlinkFromMarketFIFO(o, o.IsAsk)
	} else {
		lvl := r.levels[o.PriceLevel]
		r.unlinkOrderFromLevel(o, lvl)
		if lvl.IsEmpty() {
			r.destroyLevel(o.PriceLevel, lvl, o.IsAsk)
		}
	}
	delete(r.orders, o.ID)
}

// --- matching ------------------------------------------------------------

// runPostInsertionMatching performs limit-vs-limit matching followed by
// market-vs-limit matching against both market FIFOs, within a shared
// iteration budget (§4.1.3).
func (r *Replica) runPostInsertionMatching() {
	budget := maxMatchIterations

	for budget > 0 {
		bidKey := r.bids.headKey
		askKey := r.asks.headKey
		if bidKey.IsZero() || askKey.IsZero() {
			break
		}
		bidLvl := r.levels[bidKey]
		askLvl := r.levels[askKey]
		if bidLvl.Price.Cmp(&askLvl.Price) < 0 {
			break
		}
		bidOrder := r.orders[bidLvl.HeadOrder]
		askOrder := r.orders[askLvl.HeadOrder]
		if !r.executeTrade(askOrder, bidOrder) {
			break
		}
		budget--
	}

	for budget > 0 {
		if r.bids.marketHead.IsZero() {
			break
		}
		askKey := r.asks.headKey
		if askKey.IsZero() {
			break
		}
		askLvl := r.levels[askKey]
		askOrder := r.orders[askLvl.HeadOrder]
		bidOrder := r.orders[r.bids.marketHead]
		if !r.executeTrade(askOrder, bidOrder) {
			break
		}
		budget--
	}

	for budget > 0 {
		if r.asks.marketHead.IsZero() {
			break
		}
		bidKey := r.bids.headKey
		if bidKey.IsZero() {
			break
		}
		bidLvl := r.levels[bidKey]
		bidOrder := r.orders[bidLvl.HeadOrder]
		askOrder := r.orders[r.asks.marketHead]
		if !r.executeTrade(askOrder, bidOrder) {
			break
		}
		budget--
	}
}

// executeTrade matches ask against bid for min(remaining) and reports
// whether a trade occurred. A zero trade amount breaks the caller's loop.
func (r *Replica) executeTrade(ask, bid *Order) bool {
	askRemaining := ask.Remaining()
	bidRemaining := bid.Remaining()

	var tradeAmt uint256.Int
	if askRemaining.Cmp(&bidRemaining) < 0 {
		tradeAmt = askRemaining
	} else {
		tradeAmt = bidRemaining
	}
	if tradeAmt.IsZero() {
		return false
	}

	ask.Filled.Add(&ask.Filled, &tradeAmt)
	bid.Filled.Add(&bid.Filled, &tradeAmt)

	if !ask.IsMarket {
		lvl := r.levels[ask.PriceLevel]
		lvl.TotalVolume = saturatingSub(&lvl.TotalVolume, &tradeAmt)
	}
	if !bid.IsMarket {
		lvl := r.levels[bid.PriceLevel]
		lvl.TotalVolume = saturatingSub(&lvl.TotalVolume, &tradeAmt)
	}

	if r.TradeHook != nil {
		r.TradeHook(ask)
		r.TradeHook(bid)
	}

	if ask.IsFullyFilled() {
		r.removeFilledOrder(ask)
	}
	if bid.IsFullyFilled() {
		r.removeFilledOrder(bid)
	}
	return true
}

func saturatingSub(a, b *uint256.Int) uint256.Int {
	if a.Cmp(b) < 0 {
		return uint256.Int{}
	}
	var out uint256.Int
	out.Sub(a, b)
	return out
}
