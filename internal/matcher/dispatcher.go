// Package matcher implements the Dispatcher (MatchingEngine, §4.3): the
// periodic driver that pops head requests off the SequencerMirror, runs
// them through a cloned Replica to derive each on-chain insertion hint,
// submits the resulting batch transaction, and records the simulated
// match outcome as an optimistic PendingChange awaiting confirmation or
// rollback. It never mutates the live Replica itself; that is the
// Reconciler's job alone (§9).
package matcher

import (
	"context"
	"time"

	"cosmossdk.io/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"github.com/riddles-are-us/permissionless-onchain-orderbook/internal/apperrors"
	"github.com/riddles-are-us/permissionless-onchain-orderbook/internal/chain"
	"github.com/riddles-are-us/permissionless-onchain-orderbook/internal/replica"
	"github.com/riddles-are-us/permissionless-onchain-orderbook/internal/sequencer"
	"github.com/riddles-are-us/permissionless-onchain-orderbook/internal/state"
	"github.com/riddles-are-us/permissionless-onchain-orderbook/metrics"
)

// sweepEveryNTicks expires pending entries older than Config.PendingTimeout
// once every tenth tick, per §4.3.
const sweepEveryNTicks = 10

// Config holds the Dispatcher's tick cadence and batch limits, mirroring
// the config.Matching document (§6).
type Config struct {
	MaxBatchSize   int
	TickInterval   time.Duration
	PendingTimeout time.Duration
}

// DefaultConfig returns conservative defaults matching config.Default's
// matching section.
func DefaultConfig() Config {
	return Config{
		MaxBatchSize:   100,
		TickInterval:   500 * time.Millisecond,
		PendingTimeout: 60 * time.Second,
	}
}

// Dispatcher is the MatchingEngine of §4.3. One Dispatcher drives one
// trading pair's Shared state against a single TxSubmitter.
type Dispatcher struct {
	shared    *state.Shared
	submitter chain.TxSubmitter
	cfg       Config
	logger    log.Logger
	metrics   *metrics.Collector

	tickCount uint64
}

// New returns a Dispatcher for one trading pair.
func New(shared *state.Shared, submitter chain.TxSubmitter, cfg Config, logger log.Logger) *Dispatcher {
	return &Dispatcher{
		shared:    shared,
		submitter: submitter,
		cfg:       cfg,
		logger:    logger.With("component", "dispatcher"),
		metrics:   metrics.GetCollector(),
	}
}

// Run drives the tick loop until ctx is cancelled, matching the
// teacher's own OffchainMatcher.batchLoop shape (offchain/matcher/matcher.go).
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.tickCount++
			if err := d.Tick(ctx); err != nil {
				d.logger.Warn("tick failed", "error", err)
			}
			if d.tickCount%sweepEveryNTicks == 0 {
				d.sweepExpired()
			}
		}
	}
}

// Tick runs one dispatch cycle: snapshot, simulate, submit, record
// pending, await receipt, and clean up the queue (§4.3 steps 1-6).
func (d *Dispatcher) Tick(ctx context.Context) error {
	requests := d.shared.Queue.WalkHead(d.cfg.MaxBatchSize)
	if len(requests) == 0 {
		return nil
	}

	tickID := uuid.NewString()
	logger := d.logger.With("tick_id", tickID)

	scratch := d.shared.CloneReplica()

	batch, changes := d.simulate(scratch, requests)
	d.metrics.QueueDepth.Set(float64(d.shared.Queue.Len()))
	d.metrics.BatchSize.Observe(float64(len(requests)))

	defer d.shared.Queue.RemoveBatch(requests)

	if len(batch.OrderIDs) == 0 {
		return nil
	}

	logger.Debug("submitting batch", "request_count", len(requests))
	txHash, err := d.submitter.SubmitBatch(ctx, batch)
	if err != nil {
		// Contract call failure on submission: the whole batch rolls
		// back (nothing was recorded yet), but the queue cleanup above
		// still runs via defer, since the on-chain queue has itself
		// already advanced past these requests (§7).
		d.metrics.BatchFailures.Inc()
		return apperrors.ErrContractCallFailed.Wrap(err.Error())
	}
	d.metrics.BatchesTotal.Inc()

	if len(changes) > 0 {
		d.shared.Lock()
		d.shared.Pending.Add(txHash, changes, time.Now())
		d.metrics.PendingSetSize.Set(float64(d.shared.Pending.Len()))
		d.shared.Unlock()
	}

	receipt, err := d.submitter.AwaitReceipt(ctx, txHash)
	if err != nil || receipt == nil || receipt.Status != types.ReceiptStatusSuccessful {
		d.rollback(txHash)
		d.metrics.BatchFailures.Inc()
		if err != nil {
			return apperrors.ErrTxDropped.Wrap(err.Error())
		}
		return apperrors.ErrTxReverted
	}

	// Receipt success: the pending entry stays in place. The
	// authoritative Replica mutation happens only when the Reconciler
	// observes the corresponding events (§9).
	return nil
}

// rollback discards a batch's pending entry on transaction failure or
// drop (§4.3 step 5, §7): no Replica mutation was ever made, so there
// is nothing to undo beyond the prediction itself.
func (d *Dispatcher) rollback(txHash common.Hash) {
	d.shared.Lock()
	d.shared.Pending.Remove(txHash)
	d.metrics.PendingSetSize.Set(float64(d.shared.Pending.Len()))
	d.shared.Unlock()
}

// simulate runs requests through scratch in queue order, producing the
// batch payload and the StateChange set every counterparty trade
// touched, via the scratch Replica's TradeHook (§4.3 step 2, §9).
func (d *Dispatcher) simulate(scratch *replica.Replica, requests []*sequencer.QueuedRequest) (chain.BatchRequest, []state.StateChange) {
	var batch chain.BatchRequest
	var changes []state.StateChange

	scratch.TradeHook = func(o *replica.Order) {
		if o.IsFullyFilled() {
			changes = append(changes, state.StateChange{Kind: state.StateChangeRemoveOrder, OrderID: o.ID})
			return
		}
		changes = append(changes, state.StateChange{Kind: state.StateChangeUpdateFilled, OrderID: o.ID, NewFilled: o.Filled})
	}

	zero := uint256.Int{}
	for _, req := range requests {
		switch req.Kind {
		case sequencer.KindRemoveOrder:
			scratch.RemoveOrder(&req.OrderIDToRemove, req.IsAsk)
			batch.OrderIDs = append(batch.OrderIDs, req.RequestID)
			batch.InsertAfterPrices = append(batch.InsertAfterPrices, zero)
			batch.InsertAfterOrders = append(batch.InsertAfterOrders, zero)
		case sequencer.KindPlaceOrder:
			d.simulatePlaceOrder(scratch, req, &batch, zero)
		default:
			d.logger.Warn("unknown request kind, skipping", "request_id", req.RequestID.Dec())
		}
	}

	scratch.TradeHook = nil
	return batch, changes
}

func (d *Dispatcher) simulatePlaceOrder(scratch *replica.Replica, req *sequencer.QueuedRequest, batch *chain.BatchRequest, zero uint256.Int) {
	switch req.OrderType {
	case sequencer.OrderTypeLimit:
		timer := metrics.NewTimer()
		hint := scratch.InsertLimitOrder(&req.RequestID, &req.Price, &req.Amount, req.IsAsk)
		timer.ObserveSeconds(d.metrics.InsertLatency)

		batch.OrderIDs = append(batch.OrderIDs, req.RequestID)
		batch.InsertAfterPrices = append(batch.InsertAfterPrices, hint)
		batch.InsertAfterOrders = append(batch.InsertAfterOrders, zero)
	case sequencer.OrderTypeMarket:
		scratch.InsertMarketOrder(&req.RequestID, &req.Amount, req.IsAsk)
		batch.OrderIDs = append(batch.OrderIDs, req.RequestID)
		batch.InsertAfterPrices = append(batch.InsertAfterPrices, zero)
		batch.InsertAfterOrders = append(batch.InsertAfterOrders, zero)
	default:
		d.logger.Warn("unknown order type, skipping", "request_id", req.RequestID.Dec())
	}
}

// sweepExpired discards pending entries older than the configured
// timeout, logging a warning for each, bounding memory against
// undelivered receipts (§4.3, §7).
func (d *Dispatcher) sweepExpired() {
	cutoff := time.Now().Add(-d.cfg.PendingTimeout)

	d.shared.Lock()
	expired := d.shared.Pending.ExpireOlderThan(cutoff)
	d.metrics.PendingSetSize.Set(float64(d.shared.Pending.Len()))
	d.shared.Unlock()

	for _, txHash := range expired {
		d.logger.Warn("pending change expired before confirmation", "tx_hash", txHash.Hex())
		d.metrics.PendingExpired.Inc()
	}
}
