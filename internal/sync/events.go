package sync

import (
	"github.com/riddles-are-us/permissionless-onchain-orderbook/internal/chain"
	"github.com/riddles-are-us/permissionless-onchain-orderbook/internal/replica"
	"github.com/riddles-are-us/permissionless-onchain-orderbook/internal/sequencer"
	"github.com/riddles-are-us/permissionless-onchain-orderbook/metrics"
)

var eventKindLabels = map[chain.EventKind]string{
	chain.EventTrade:                "trade",
	chain.EventOrderFilled:          "order_filled",
	chain.EventOrderRemoved:         "order_removed",
	chain.EventOrderInserted:        "order_inserted",
	chain.EventPriceLevelCreated:    "price_level_created",
	chain.EventPriceLevelRemoved:    "price_level_removed",
	chain.EventMarketOrderRemoved:   "market_order_removed",
	chain.EventPlaceOrderRequested:  "place_order_requested",
	chain.EventRemoveOrderRequested: "remove_order_requested",
}

// apply mutates the Replica or SequencerMirror for a single chain event,
// per the table in §4.4. Every handler is idempotent with respect to a
// missing entity: it logs and returns rather than treating the gap as
// fatal, tolerating the overlap between cold-sync state and the first
// few warm events.
func (r *Reconciler) apply(ev chain.Event) {
	r.shared.Lock()
	defer r.shared.Unlock()

	if label, ok := eventKindLabels[ev.Kind]; ok {
		metrics.GetCollector().EventsTotal.WithLabelValues(label).Inc()
	}

	switch ev.Kind {
	case chain.EventPriceLevelCreated:
		r.applyPriceLevelCreated(ev)
	case chain.EventOrderInserted:
		r.applyOrderInserted(ev)
	case chain.EventTrade:
		// Informational only; paired OrderFilled events carry the
		// semantics (§4.4). The engine mirrors chain trades rather
		// than deriving its own, so this is the only place the trade
		// counter is incremented.
		metrics.GetCollector().TradesTotal.Inc()
	case chain.EventOrderFilled:
		r.applyOrderFilled(ev)
	case chain.EventOrderRemoved, chain.EventMarketOrderRemoved:
		r.applyOrderRemoved(ev)
	case chain.EventPriceLevelRemoved:
		r.applyPriceLevelRemoved(ev)
	case chain.EventPlaceOrderRequested:
		r.applyPlaceOrderRequested(ev)
	case chain.EventRemoveOrderRequested:
		r.applyRemoveOrderRequested(ev)
	default:
		r.logger.Debug("unhandled event kind", "kind", ev.Kind)
	}

	if ev.BlockNumber > r.syncedBlock.Load() {
		r.syncedBlock.Store(ev.BlockNumber)
	}
}

func (r *Reconciler) applyPriceLevelCreated(ev chain.Event) {
	// InsertEmptyLevel splices the new level into the side's head/tail
	// chain by price comparison, the way a simulated insertion would:
	// a warm event carries no next/prev pointers of its own, unlike a
	// cold-sync read. It is idempotent against a level that already
	// exists at this composite key.
	r.shared.Repl.InsertEmptyLevel(&ev.Price, ev.IsAsk)
}

func (r *Reconciler) applyOrderInserted(ev chain.Event) {
	if _, exists := r.shared.Repl.Order(&ev.OrderID); exists {
		return
	}
	if ev.Price.IsZero() {
		r.shared.Repl.AppendMarketOrder(&ev.OrderID, &ev.Amount, ev.IsAsk)
		return
	}
	key := replica.CompositeKey(&ev.Price, ev.IsAsk)
	if _, exists := r.shared.Repl.Level(&key); !exists {
		r.logger.Debug("order inserted for unknown level, skipping", "order_id", ev.OrderID.Dec())
		return
	}
	r.shared.Repl.AppendOrder(&ev.OrderID, &ev.Price, &ev.Amount, ev.IsAsk)
}

func (r *Reconciler) applyOrderFilled(ev chain.Event) {
	order, exists := r.shared.Repl.Order(&ev.OrderID)
	if !exists {
		r.logger.Debug("fill for unknown order, skipping", "order_id", ev.OrderID.Dec())
		return
	}
	if ev.IsFullyFilled {
		// Rely on the subsequent OrderRemoved/PriceLevelRemoved events
		// to fix up the lists (§4.4 table).
		return
	}
	order.Filled = ev.FilledAmount
}

func (r *Reconciler) applyOrderRemoved(ev chain.Event) {
	order, exists := r.shared.Repl.Order(&ev.OrderID)
	if !exists {
		r.logger.Debug("removal of unknown order, skipping", "order_id", ev.OrderID.Dec())
		return
	}
	r.shared.Repl.RemoveOrder(&ev.OrderID, order.IsAsk)
}

func (r *Reconciler) applyPriceLevelRemoved(ev chain.Event) {
	for _, isAsk := range [...]bool{true, false} {
		key := replica.CompositeKey(&ev.Price, isAsk)
		if _, exists := r.shared.Repl.Level(&key); exists {
			r.shared.Repl.RemoveLevel(&key, isAsk)
			return
		}
	}
	r.logger.Debug("removal of unknown level, skipping", "price", ev.Price.Dec())
}

func (r *Reconciler) applyPlaceOrderRequested(ev chain.Event) {
	r.shared.Queue.Add(&sequencer.QueuedRequest{
		RequestID:   ev.RequestID,
		Kind:        sequencer.KindPlaceOrder,
		TradingPair: ev.TradingPair,
		Trader:      ev.Trader,
		OrderType:   decodeOrderTypeLenient(ev.OrderType),
		IsAsk:       ev.IsAsk,
		Price:       ev.Price,
		Amount:      ev.Amount,
	})
}

func (r *Reconciler) applyRemoveOrderRequested(ev chain.Event) {
	r.shared.Queue.Add(&sequencer.QueuedRequest{
		RequestID:       ev.RequestID,
		Kind:            sequencer.KindRemoveOrder,
		TradingPair:     ev.TradingPair,
		Trader:          ev.Trader,
		IsAsk:           ev.IsAsk,
		OrderIDToRemove: ev.OrderIDToRemove,
	})
}

func decodeOrderTypeLenient(tag uint8) sequencer.OrderType {
	if tag == uint8(sequencer.OrderTypeMarket) {
		return sequencer.OrderTypeMarket
	}
	return sequencer.OrderTypeLimit
}
