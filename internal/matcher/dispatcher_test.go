package matcher

import (
	"context"
	"testing"
	"time"

	"cosmossdk.io/log"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/riddles-are-us/permissionless-onchain-orderbook/internal/chain"
	"github.com/riddles-are-us/permissionless-onchain-orderbook/internal/sequencer"
	"github.com/riddles-are-us/permissionless-onchain-orderbook/internal/state"
)

func u(v uint64) uint256.Int { return *uint256.NewInt(v) }

func newTestDispatcher(submitter chain.TxSubmitter) (*Dispatcher, *state.Shared) {
	shared := state.New()
	d := New(shared, submitter, DefaultConfig(), log.NewNopLogger())
	return d, shared
}

// S7: a batch of [place_limit(r1, 100, 10, B), cancel(r2, r1)] yields
// hints [(r1, 0), (r2, 0)] and leaves the bid side empty post-scratch,
// while the live Replica (never touched by the Dispatcher) stays empty
// too.
func TestTickSimulatesBatchAndLeavesLiveReplicaUntouched(t *testing.T) {
	submitter := chain.NewMockSubmitter()
	d, shared := newTestDispatcher(submitter)

	shared.Queue.Add(&sequencer.QueuedRequest{
		RequestID: u(1), NextRequestID: u(2),
		Kind: sequencer.KindPlaceOrder, OrderType: sequencer.OrderTypeLimit,
		IsAsk: false, Price: u(100), Amount: u(10),
	})
	shared.Queue.Add(&sequencer.QueuedRequest{
		RequestID: u(2), NextRequestID: u(0),
		Kind: sequencer.KindRemoveOrder, IsAsk: false, OrderIDToRemove: u(1),
	})
	shared.Queue.SetHead(u(1))

	require.NoError(t, d.Tick(context.Background()))

	submissions := submitter.Submissions()
	require.Len(t, submissions, 1)
	require.Equal(t, []uint256.Int{u(1), u(2)}, submissions[0].OrderIDs)
	require.True(t, submissions[0].InsertAfterPrices[0].IsZero())
	require.True(t, submissions[0].InsertAfterPrices[1].IsZero())

	// Processed requests leave the queue regardless of outcome.
	require.Equal(t, 0, shared.Queue.Len())

	// The Dispatcher never mutates the live Replica.
	require.Empty(t, shared.Repl.SidePrices(false))
}

func TestTickRecordsPendingChangesForCrossingMatch(t *testing.T) {
	submitter := chain.NewMockSubmitter()
	d, shared := newTestDispatcher(submitter)

	shared.Queue.Add(&sequencer.QueuedRequest{
		RequestID: u(1), NextRequestID: u(2),
		Kind: sequencer.KindPlaceOrder, OrderType: sequencer.OrderTypeLimit,
		IsAsk: false, Price: u(100), Amount: u(10),
	})
	shared.Queue.Add(&sequencer.QueuedRequest{
		RequestID: u(2), NextRequestID: u(0),
		Kind: sequencer.KindPlaceOrder, OrderType: sequencer.OrderTypeLimit,
		IsAsk: true, Price: u(100), Amount: u(5),
	})
	shared.Queue.SetHead(u(1))

	require.NoError(t, d.Tick(context.Background()))

	submissions := submitter.Submissions()
	require.Len(t, submissions, 1)

	pending, ok := shared.Pending.Get(submitter.LastTxHash())
	require.True(t, ok)
	require.NotEmpty(t, pending.Changes)
}

func TestTickRollsBackOnFailedReceipt(t *testing.T) {
	submitter := chain.NewMockSubmitter()
	submitter.FailNext = true
	d, shared := newTestDispatcher(submitter)

	shared.Queue.Add(&sequencer.QueuedRequest{
		RequestID: u(1), NextRequestID: u(2),
		Kind: sequencer.KindPlaceOrder, OrderType: sequencer.OrderTypeLimit,
		IsAsk: false, Price: u(100), Amount: u(10),
	})
	shared.Queue.Add(&sequencer.QueuedRequest{
		RequestID: u(2), NextRequestID: u(0),
		Kind: sequencer.KindPlaceOrder, OrderType: sequencer.OrderTypeLimit,
		IsAsk: true, Price: u(100), Amount: u(5),
	})
	shared.Queue.SetHead(u(1))

	err := d.Tick(context.Background())
	require.Error(t, err)

	_, ok := shared.Pending.Get(submitter.LastTxHash())
	require.False(t, ok)

	// Cleanup still happens: the on-chain queue has already advanced.
	require.Equal(t, 0, shared.Queue.Len())
}

func TestTickSkipsEmptyQueue(t *testing.T) {
	submitter := chain.NewMockSubmitter()
	d, _ := newTestDispatcher(submitter)

	require.NoError(t, d.Tick(context.Background()))
	require.Empty(t, submitter.Submissions())
}

func TestSweepExpiredDiscardsOldPendingEntries(t *testing.T) {
	submitter := chain.NewMockSubmitter()
	d, shared := newTestDispatcher(submitter)
	d.cfg.PendingTimeout = 0

	shared.Pending.Add([32]byte{1}, nil, time.Now().Add(-time.Minute))

	d.sweepExpired()
	require.Equal(t, 0, shared.Pending.Len())
}
