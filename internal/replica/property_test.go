package replica

import (
	"math/rand"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

// TestPropertyInvariantsHoldUnderRandomSequences drives a Replica through a bounded number of random
// insert/remove operations across a small price range, then checks the
// invariants of §8 hold after every step. The price range and order
// count are kept small so that crossing orders (and therefore matching,
// level destruction and FIFO draining) are exercised often.
func TestPropertyInvariantsHoldUnderRandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 200; trial++ {
		r := New()
		var liveIDs []uint64

		for step := 0; step < 40; step++ {
			if len(liveIDs) > 0 && rng.Intn(3) == 0 {
				idx := rng.Intn(len(liveIDs))
				id := liveIDs[idx]
				isAsk := id%2 == 0
				r.RemoveOrder(u(id), isAsk)
				liveIDs = append(liveIDs[:idx], liveIDs[idx+1:]...)
				continue
			}

			id := uint64(trial)*1000 + uint64(step) + 1
			isAsk := id%2 == 0
			price := uint64(95 + rng.Intn(10))
			amount := uint64(1 + rng.Intn(20))

			if rng.Intn(5) == 0 {
				r.InsertMarketOrder(u(id), u(amount), isAsk)
			} else {
				r.InsertLimitOrder(u(id), u(price), u(amount), isAsk)
			}
			if _, ok := r.Order(u(id)); ok {
				liveIDs = append(liveIDs, id)
			}

			assertSideOrdering(t, r, true)
			assertSideOrdering(t, r, false)
			assertListIntegrity(t, r, true)
			assertListIntegrity(t, r, false)
			assertVolumeAccounting(t, r)
			assertMatchingMonotonicity(t, r)
		}
	}
}

// assertSideOrdering is invariant 1: ask prices strictly ascending,
// bid prices strictly descending.
func assertSideOrdering(t *testing.T, r *Replica, isAsk bool) {
	t.Helper()
	prices := r.SidePrices(isAsk)
	for i := 1; i < len(prices); i++ {
		if isAsk {
			require.True(t, prices[i-1].Cmp(&prices[i]) < 0, "ask prices must be strictly ascending")
		} else {
			require.True(t, prices[i-1].Cmp(&prices[i]) > 0, "bid prices must be strictly descending")
		}
	}
}

// assertListIntegrity is invariant 2: next/prev pointers agree in both
// directions for the price-level list of one side.
func assertListIntegrity(t *testing.T, r *Replica, isAsk bool) {
	t.Helper()
	s := r.sideFor(isAsk)

	forward := make([]uint256.Int, 0)
	cur := s.headKey
	var prevSeen uint256.Int
	for !cur.IsZero() {
		lvl, ok := r.levels[cur]
		require.True(t, ok, "dangling next_price pointer")
		require.True(t, lvl.PrevPrice.Eq(&prevSeen), "level.prev must equal the walked predecessor")
		forward = append(forward, cur)
		prevSeen = cur
		cur = lvl.NextPrice
	}

	backward := make([]uint256.Int, 0)
	cur = s.tailKey
	for !cur.IsZero() {
		lvl, ok := r.levels[cur]
		require.True(t, ok, "dangling prev_price pointer")
		backward = append(backward, cur)
		cur = lvl.PrevPrice
	}
	require.Equal(t, len(forward), len(backward), "forward and backward walks must reach the same count")
}

// assertVolumeAccounting is invariant 3 and 4: total_volume equals the
// sum of remaining amounts, and emptiness implies the level is absent.
func assertVolumeAccounting(t *testing.T, r *Replica) {
	t.Helper()
	for key, lvl := range r.levels {
		var sum uint256.Int
		cur := lvl.HeadOrder
		for !cur.IsZero() {
			o, ok := r.orders[cur]
			require.True(t, ok, "dangling head/next order pointer in level %s", key.Dec())
			remaining := o.Remaining()
			sum.Add(&sum, &remaining)
			cur = o.NextOrder
		}
		require.True(t, sum.Eq(&lvl.TotalVolume), "level %s: total_volume mismatch", key.Dec())
		require.False(t, lvl.IsEmpty(), "an empty level must have been destroyed, found %s", key.Dec())
	}
}

// assertMatchingMonotonicity is invariant 6: after matching settles, the
// best bid no longer crosses the best ask.
func assertMatchingMonotonicity(t *testing.T, r *Replica) {
	t.Helper()
	bidPrice, bidOK := r.BestPrice(false)
	askPrice, askOK := r.BestPrice(true)
	if !bidOK || !askOK {
		return
	}
	require.True(t, bidPrice.Cmp(&askPrice) < 0, "best bid must not cross best ask after matching")
}
