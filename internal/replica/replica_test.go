package replica

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

func TestScenarioS1SingleBidIsNewHead(t *testing.T) {
	r := New()
	hint := r.InsertLimitOrder(u(1), u(100), u(10), false)
	require.True(t, hint.IsZero())

	prices := r.SidePrices(false)
	require.Len(t, prices, 1)
	require.True(t, prices[0].Eq(u(100)))
}

func TestScenarioS2BidOrderingAndHints(t *testing.T) {
	r := New()
	r.InsertLimitOrder(u(1), u(100), u(10), false)

	hint := r.InsertLimitOrder(u(2), u(90), u(10), false)
	require.True(t, hint.Eq(u(100)))
	requirePrices(t, r, false, 100, 90)

	hint = r.InsertLimitOrder(u(3), u(110), u(10), false)
	require.True(t, hint.IsZero())
	requirePrices(t, r, false, 110, 100, 90)
}

func TestScenarioS3PartialFillLeavesBidResting(t *testing.T) {
	r := New()
	r.InsertLimitOrder(u(1), u(100), u(10), false)
	r.InsertLimitOrder(u(2), u(100), u(5), true)

	bid, ok := r.Order(u(1))
	require.True(t, ok)
	require.True(t, bid.Filled.Eq(u(5)))

	_, askSurvives := r.Order(u(2))
	require.False(t, askSurvives)
	require.Empty(t, r.SidePrices(true))
}

func TestScenarioS4ExactFillDestroysBothLevels(t *testing.T) {
	r := New()
	r.InsertLimitOrder(u(1), u(100), u(10), false)
	r.InsertLimitOrder(u(2), u(100), u(10), true)

	require.Empty(t, r.SidePrices(false))
	require.Empty(t, r.SidePrices(true))
	_, bidExists := r.Order(u(1))
	_, askExists := r.Order(u(2))
	require.False(t, bidExists)
	require.False(t, askExists)
}

func TestScenarioS5MarketOrderThenReinsertAtSamePrice(t *testing.T) {
	r := New()
	r.InsertLimitOrder(u(101), u(100), u(10), true)
	r.InsertLimitOrder(u(102), u(101), u(10), true)
	r.InsertLimitOrder(u(103), u(102), u(10), true)

	r.InsertMarketOrder(u(99), u(10), false)
	requirePrices(t, r, true, 101, 102)

	hint := r.InsertLimitOrder(u(11), u(100), u(10), true)
	require.True(t, hint.IsZero())
	requirePrices(t, r, true, 100, 101, 102)
}

func TestScenarioS6ThreeMarketBidsDrainSingleAsk(t *testing.T) {
	r := New()
	r.InsertLimitOrder(u(1001), u(100), u(30), true)

	r.InsertMarketOrder(u(1), u(10), false)
	r.InsertMarketOrder(u(2), u(10), false)
	r.InsertMarketOrder(u(3), u(10), false)

	require.Empty(t, r.SidePrices(true))
	for _, id := range []uint64{1, 2, 3, 1001} {
		_, exists := r.Order(u(id))
		require.False(t, exists, "order %d should have been removed", id)
	}
}

func TestScenarioS7BatchPlaceThenCancelOnScratch(t *testing.T) {
	r := New()
	scratch := r.Clone()

	hint1 := scratch.InsertLimitOrder(u(1), u(100), u(10), false)
	require.True(t, hint1.IsZero())

	removed := scratch.RemoveOrder(u(1), false)
	require.True(t, removed)
	require.Empty(t, scratch.SidePrices(false))
}

func requirePrices(t *testing.T, r *Replica, isAsk bool, want ...uint64) {
	t.Helper()
	got := r.SidePrices(isAsk)
	require.Len(t, got, len(want))
	for i, w := range want {
		require.Truef(t, got[i].Eq(u(w)), "position %d: want %d got %s", i, w, got[i].Dec())
	}
}

func TestRemoveOrderUnknownIDReturnsFalse(t *testing.T) {
	r := New()
	require.False(t, r.RemoveOrder(u(404), true))
}

func TestCloneIsIndependentOfLive(t *testing.T) {
	r := New()
	r.InsertLimitOrder(u(1), u(100), u(10), false)

	scratch := r.Clone()
	scratch.InsertLimitOrder(u(2), u(90), u(10), false)

	requirePrices(t, r, false, 100)
	requirePrices(t, scratch, false, 100, 90)
}
