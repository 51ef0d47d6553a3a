package sync

import (
	"context"
	"testing"

	"cosmossdk.io/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/riddles-are-us/permissionless-onchain-orderbook/internal/chain"
	"github.com/riddles-are-us/permissionless-onchain-orderbook/internal/state"
)

func u(v uint64) uint256.Int { return *uint256.NewInt(v) }

func TestColdSyncWalksQueueAndStopsOnUnknownTag(t *testing.T) {
	reader := chain.NewMockReader()
	reader.Head = u(1)
	reader.Requests[u(1)] = chain.QueuedRequestData{
		Kind: 0, OrderType: 0, IsAsk: true, Price: u(100), Amount: u(10),
		NextRequestID: u(2),
	}
	reader.Requests[u(2)] = chain.QueuedRequestData{
		Kind: 9, // unknown tag: walk must stop here, not default
		NextRequestID: u(3),
	}
	reader.Requests[u(3)] = chain.QueuedRequestData{Kind: 0, OrderType: 0}

	shared := state.New()
	rec := New(reader, &chain.MockEventSubscriber{}, common.Hash{}, shared, log.NewNopLogger())

	err := rec.ColdSync(context.Background(), 50)
	require.NoError(t, err)
	require.Equal(t, 1, shared.Queue.Len())
	require.Equal(t, uint64(50), rec.SyncedBlock())
}

func TestColdSyncWalksOrderBookLevels(t *testing.T) {
	reader := chain.NewMockReader()
	askKey := u(100)
	reader.Bounds[common.Hash{}] = chain.OrderBookBounds{AskHead: askKey, AskTail: askKey}
	reader.Levels[askKey] = chain.PriceLevelData{Price: u(100), TotalVolume: u(10), HeadOrder: u(5), TailOrder: u(5)}
	reader.Orders[u(5)] = chain.OrderData{ID: u(5), Amount: u(10)}

	shared := state.New()
	rec := New(reader, &chain.MockEventSubscriber{}, common.Hash{}, shared, log.NewNopLogger())

	require.NoError(t, rec.ColdSync(context.Background(), 10))

	prices := shared.Repl.SidePrices(true)
	require.Len(t, prices, 1)
	require.True(t, prices[0].Eq(uint256.NewInt(100)))

	orderID := u(5)
	_, orderExists := shared.Repl.Order(&orderID)
	require.True(t, orderExists)
}

func TestWarmPhaseAppliesOrderInsertedAndFilled(t *testing.T) {
	shared := state.New()

	price := u(100)
	orderID := u(1)
	sub := &chain.MockEventSubscriber{Events: []chain.Event{
		{Kind: chain.EventPriceLevelCreated, BlockNumber: 11, Price: price, IsAsk: true},
		{Kind: chain.EventOrderInserted, BlockNumber: 11, OrderID: orderID, Price: price, Amount: u(10), IsAsk: true},
		{Kind: chain.EventOrderFilled, BlockNumber: 12, OrderID: orderID, FilledAmount: u(4), IsFullyFilled: false},
	}}

	rec := New(chain.NewMockReader(), sub, common.Hash{}, shared, log.NewNopLogger())
	require.NoError(t, rec.ColdSync(context.Background(), 10))
	require.NoError(t, rec.Run(context.Background()))

	order, ok := shared.Repl.Order(&orderID)
	require.True(t, ok)
	require.True(t, order.Filled.Eq(uint256.NewInt(4)))

	// PriceLevelCreated must splice the level into the side's list, not
	// merely install it in the level table: SidePrices/BestPrice walk
	// head/tail pointers, a direct Order/Level lookup would not catch a
	// level left unlinked.
	prices := shared.Repl.SidePrices(true)
	require.Len(t, prices, 1)
	require.True(t, prices[0].Eq(uint256.NewInt(100)))

	best, ok := shared.Repl.BestPrice(true)
	require.True(t, ok)
	require.True(t, best.Eq(uint256.NewInt(100)))
}

// TestReplayEquivalenceMatchesColdSync is §8 invariant 8: applying a
// chain-ordered event trace to an empty Replica must yield the same
// state cold-syncing after the same prefix would. The event trace below
// constructs, from empty state, the exact two-level ask book the
// cold-sync fixture constructs from pre-linked chain reads. The events
// create level 100 and then level 101, and carry no next/prev pointers,
// so the 100 -> 101 link comes from InsertEmptyLevel's own position
// splicing rather than from chain-supplied pointers.
func TestReplayEquivalenceMatchesColdSync(t *testing.T) {
	coldReader := chain.NewMockReader()
	coldReader.Bounds[common.Hash{}] = chain.OrderBookBounds{AskHead: u(100), AskTail: u(101)}
	coldReader.Levels[u(100)] = chain.PriceLevelData{Price: u(100), TotalVolume: u(10), HeadOrder: u(1), TailOrder: u(1), NextPrice: u(101)}
	coldReader.Levels[u(101)] = chain.PriceLevelData{Price: u(101), TotalVolume: u(5), HeadOrder: u(2), TailOrder: u(2), PrevPrice: u(100)}
	coldReader.Orders[u(1)] = chain.OrderData{ID: u(1), Amount: u(10)}
	coldReader.Orders[u(2)] = chain.OrderData{ID: u(2), Amount: u(5)}

	coldShared := state.New()
	coldRec := New(coldReader, &chain.MockEventSubscriber{}, common.Hash{}, coldShared, log.NewNopLogger())
	require.NoError(t, coldRec.ColdSync(context.Background(), 10))

	warmEvents := []chain.Event{
		{Kind: chain.EventPriceLevelCreated, BlockNumber: 1, Price: u(100), IsAsk: true},
		{Kind: chain.EventOrderInserted, BlockNumber: 1, OrderID: u(1), Price: u(100), Amount: u(10), IsAsk: true},
		{Kind: chain.EventPriceLevelCreated, BlockNumber: 1, Price: u(101), IsAsk: true},
		{Kind: chain.EventOrderInserted, BlockNumber: 1, OrderID: u(2), Price: u(101), Amount: u(5), IsAsk: true},
	}
	warmShared := state.New()
	warmRec := New(chain.NewMockReader(), &chain.MockEventSubscriber{Events: warmEvents}, common.Hash{}, warmShared, log.NewNopLogger())
	require.NoError(t, warmRec.ColdSync(context.Background(), 0))
	require.NoError(t, warmRec.Run(context.Background()))

	require.Equal(t, coldShared.Repl.SidePrices(true), warmShared.Repl.SidePrices(true))

	for _, id := range []uint64{1, 2} {
		oid := u(id)
		coldOrder, coldOK := coldShared.Repl.Order(&oid)
		warmOrder, warmOK := warmShared.Repl.Order(&oid)
		require.Equal(t, coldOK, warmOK)
		require.True(t, coldOrder.Amount.Eq(&warmOrder.Amount))
		require.True(t, coldOrder.Filled.Eq(&warmOrder.Filled))
	}

	coldBest, coldOK := coldShared.Repl.BestPrice(true)
	warmBest, warmOK := warmShared.Repl.BestPrice(true)
	require.Equal(t, coldOK, warmOK)
	require.True(t, coldBest.Eq(&warmBest))
}

func TestWarmPhaseSkipsUnknownEntityWithoutFailing(t *testing.T) {
	shared := state.New()

	unknown := u(999)
	sub := &chain.MockEventSubscriber{Events: []chain.Event{
		{Kind: chain.EventOrderFilled, BlockNumber: 11, OrderID: unknown, FilledAmount: u(1)},
		{Kind: chain.EventOrderRemoved, BlockNumber: 11, OrderID: unknown},
	}}

	rec := New(chain.NewMockReader(), sub, common.Hash{}, shared, log.NewNopLogger())
	require.NoError(t, rec.ColdSync(context.Background(), 10))
	require.NoError(t, rec.Run(context.Background()))
}
