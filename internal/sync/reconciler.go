// Package sync implements the Reconciler (StateSynchronizer): a startup
// cold sync of the Replica and SequencerMirror from chain RPC reads,
// followed by a warm phase that authoritatively applies an ordered
// stream of chain events (§4.4).
package sync

import (
	"context"
	"sync/atomic"
	"time"

	"cosmossdk.io/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/riddles-are-us/permissionless-onchain-orderbook/internal/chain"
	"github.com/riddles-are-us/permissionless-onchain-orderbook/internal/replica"
	"github.com/riddles-are-us/permissionless-onchain-orderbook/internal/sequencer"
	"github.com/riddles-are-us/permissionless-onchain-orderbook/internal/state"
	"github.com/riddles-are-us/permissionless-onchain-orderbook/metrics"
)

// lagPollInterval is how often Run samples the chain head to update the
// reconciler_block_lag gauge.
const lagPollInterval = 5 * time.Second

// Reconciler owns cold sync and the warm event-application phase for
// one trading pair. The Replica and SequencerMirror it mutates live in
// a Shared, the single reader-writer lock split with the Dispatcher
// (§5), acquired here on every event applied.
type Reconciler struct {
	shared *state.Shared

	reader      chain.Reader
	subscriber  chain.EventSubscriber
	tradingPair common.Hash
	logger      log.Logger

	syncedBlock atomic.Uint64
}

// New returns a Reconciler for one trading pair, operating on the
// given Shared's Replica and SequencerMirror.
func New(reader chain.Reader, subscriber chain.EventSubscriber, tradingPair common.Hash, shared *state.Shared, logger log.Logger) *Reconciler {
	return &Reconciler{
		shared:      shared,
		reader:      reader,
		subscriber:  subscriber,
		tradingPair: tradingPair,
		logger:      logger.With("component", "reconciler"),
	}
}

// SyncedBlock reports the block height cold sync reached, establishing
// the happens-before boundary for the warm phase (§5).
func (r *Reconciler) SyncedBlock() uint64 {
	return r.syncedBlock.Load()
}

// ColdSync reconstructs the SequencerMirror and Replica from RPC reads
// only, per §4.4's cold-sync algorithm, then records the reached block
// height as syncedBlock.
func (r *Reconciler) ColdSync(ctx context.Context, startBlock uint64) error {
	if err := r.coldSyncQueue(ctx); err != nil {
		return err
	}
	if err := r.coldSyncOrderBook(ctx); err != nil {
		return err
	}

	block := startBlock
	if block == 0 {
		current, err := r.reader.BlockNumber(ctx)
		if err != nil {
			return err
		}
		block = current
	}

	r.syncedBlock.Store(block)
	r.logger.Info("cold sync complete", "synced_block", block)
	return nil
}

// coldSyncQueue walks the Sequencer queue from its head by next_request_id,
// populating the SequencerMirror. It stops (rather than defaulting) the
// moment it encounters an unrecognized request/order type tag, per §7 and
// §12's supplemented queue-walk-abort behavior.
func (r *Reconciler) coldSyncQueue(ctx context.Context) error {
	head, err := r.reader.QueueHead(ctx)
	if err != nil {
		return err
	}
	r.shared.Queue.SetHead(head)
	if head.IsZero() {
		return nil
	}

	current := head
	for !current.IsZero() {
		data, err := r.reader.QueuedRequest(ctx, current)
		if err != nil {
			r.logger.Warn("queued request unreadable, stopping walk", "request_id", current.Dec(), "error", err)
			return nil
		}

		kind, ok := decodeRequestKind(data.Kind)
		if !ok {
			r.logger.Warn("unknown request kind, stopping queue walk", "request_id", current.Dec(), "kind", data.Kind)
			return nil
		}
		orderType, ok := decodeOrderType(data.OrderType)
		if !ok {
			r.logger.Warn("unknown order type, stopping queue walk", "request_id", current.Dec(), "order_type", data.OrderType)
			return nil
		}

		req := &sequencer.QueuedRequest{
			RequestID:     current,
			Kind:          kind,
			TradingPair:   data.TradingPair,
			Trader:        data.Trader,
			OrderType:     orderType,
			IsAsk:         data.IsAsk,
			Amount:        data.Amount,
			NextRequestID: data.NextRequestID,
		}
		if kind == sequencer.KindRemoveOrder {
			req.OrderIDToRemove = data.Price
		} else {
			req.Price = data.Price
		}
		r.shared.Queue.Add(req)

		current = data.NextRequestID
	}
	return nil
}

// coldSyncOrderBook walks the price-level and order lists of both sides
// via RPC reads, populating the Replica through AddExistingLevel and
// AddExistingOrder (§4.4 step 3).
func (r *Reconciler) coldSyncOrderBook(ctx context.Context) error {
	bounds, err := r.reader.OrderBookBounds(ctx, r.tradingPair)
	if err != nil {
		return err
	}

	r.shared.Lock()
	defer r.shared.Unlock()

	r.shared.Repl.SetSideBounds(true, bounds.AskHead, bounds.AskTail, bounds.MarketAskHead, bounds.MarketAskTail)
	r.shared.Repl.SetSideBounds(false, bounds.BidHead, bounds.BidTail, bounds.MarketBidHead, bounds.MarketBidTail)

	if err := r.walkSide(ctx, bounds.AskHead, true); err != nil {
		return err
	}
	return r.walkSide(ctx, bounds.BidHead, false)
}

func (r *Reconciler) walkSide(ctx context.Context, headKey uint256.Int, isAsk bool) error {
	current := headKey
	for !current.IsZero() {
		levelData, err := r.reader.PriceLevel(ctx, current, isAsk)
		if err != nil {
			return err
		}
		r.shared.Repl.AddExistingLevel(&replica.PriceLevel{
			Price:       levelData.Price,
			IsAsk:       isAsk,
			TotalVolume: levelData.TotalVolume,
			HeadOrder:   levelData.HeadOrder,
			TailOrder:   levelData.TailOrder,
			NextPrice:   levelData.NextPrice,
			PrevPrice:   levelData.PrevPrice,
		}, isAsk)

		if err := r.walkOrders(ctx, levelData.HeadOrder, replica.CompositeKey(&levelData.Price, isAsk), isAsk); err != nil {
			return err
		}
		current = levelData.NextPrice
	}
	return nil
}

func (r *Reconciler) walkOrders(ctx context.Context, headOrderID uint256.Int, levelKey uint256.Int, isAsk bool) error {
	current := headOrderID
	for !current.IsZero() {
		data, err := r.reader.Order(ctx, current)
		if err != nil {
			return err
		}
		r.shared.Repl.AddExistingOrder(&replica.Order{
			ID:         data.ID,
			Amount:     data.Amount,
			Filled:     data.Filled,
			IsMarket:   data.IsMarket,
			IsAsk:      isAsk,
			PriceLevel: levelKey,
			NextOrder:  data.NextOrder,
			PrevOrder:  data.PrevOrder,
		})
		current = data.NextOrder
	}
	return nil
}

// Run subscribes to the event stream starting at syncedBlock + 1 and
// applies every event to the Replica/SequencerMirror until ctx is
// cancelled or the subscription errors. It returns the subscription
// error (nil on clean cancellation), for the caller's supervisor to act
// on per §5's cancellation semantics.
func (r *Reconciler) Run(ctx context.Context) error {
	fromBlock := r.SyncedBlock() + 1
	events, errs := r.subscriber.Subscribe(ctx, fromBlock)

	go r.pollLag(ctx)

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				if errs == nil {
					return nil
				}
				continue
			}
			r.apply(ev)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				if events == nil {
					return nil
				}
				continue
			}
			return err
		case <-ctx.Done():
			return nil
		}
	}
}

// pollLag periodically samples the chain head and publishes the gap
// between it and syncedBlock as the reconciler_block_lag gauge, until
// ctx is cancelled.
func (r *Reconciler) pollLag(ctx context.Context) {
	ticker := time.NewTicker(lagPollInterval)
	defer ticker.Stop()

	collector := metrics.GetCollector()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			head, err := r.reader.BlockNumber(ctx)
			if err != nil {
				continue
			}
			synced := r.SyncedBlock()
			if head > synced {
				collector.ReconcilerLag.Set(float64(head - synced))
			} else {
				collector.ReconcilerLag.Set(0)
			}
		}
	}
}

func decodeRequestKind(tag uint8) (sequencer.RequestKind, bool) {
	switch tag {
	case 0:
		return sequencer.KindPlaceOrder, true
	case 1:
		return sequencer.KindRemoveOrder, true
	default:
		return 0, false
	}
}

func decodeOrderType(tag uint8) (sequencer.OrderType, bool) {
	switch tag {
	case 0:
		return sequencer.OrderTypeLimit, true
	case 1:
		return sequencer.OrderTypeMarket, true
	default:
		return 0, false
	}
}
