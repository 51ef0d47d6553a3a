package cmd

import (
	"fmt"

	"cosmossdk.io/log"
	"github.com/holiman/uint256"

	"github.com/riddles-are-us/permissionless-onchain-orderbook/internal/replica"
)

// runDemo seeds a bare Replica with a small resting book and an
// aggressive market order, then prints the book before and after, the
// same walkthrough the teacher's own cmd/matcher main.go runs without a
// live chain (offchain/cmd/matcher/main.go's runDemo/printOrderBook).
func runDemo(logger log.Logger) error {
	repl := replica.New()

	asks := []int64{50300, 50200, 50100}
	bids := []int64{49900, 49800, 49700}
	amount := uint256.NewInt(2)

	nextID := uint64(1)
	seed := func(price int64, isAsk bool) {
		id := uint256.NewInt(nextID)
		nextID++
		hint := repl.InsertLimitOrder(id, uint256.NewInt(uint64(price)), amount, isAsk)
		logger.Info("seeded limit order", "order_id", id.String(), "price", price, "is_ask", isAsk, "insert_after_price", hint.String())
	}
	for _, p := range asks {
		seed(p, true)
	}
	for _, p := range bids {
		seed(p, false)
	}

	fmt.Println("order book after seeding:")
	printOrderBook(repl)

	marketID := uint256.NewInt(nextID)
	marketAmount := uint256.NewInt(3)
	logger.Info("submitting aggressive market order", "order_id", marketID.String(), "amount", marketAmount.String())
	repl.InsertMarketOrder(marketID, marketAmount, false)

	fmt.Println("order book after market order:")
	printOrderBook(repl)

	return nil
}

// printOrderBook renders each side best-to-worst, one line per price
// level with its resting volume.
func printOrderBook(repl *replica.Replica) {
	fmt.Println("  asks:")
	for _, price := range repl.SidePrices(true) {
		printLevel(repl, price, true)
	}
	fmt.Println("  bids:")
	for _, price := range repl.SidePrices(false) {
		printLevel(repl, price, false)
	}
}

func printLevel(repl *replica.Replica, price uint256.Int, isAsk bool) {
	key := replica.CompositeKey(&price, isAsk)
	lvl, ok := repl.Level(&key)
	if !ok {
		return
	}
	fmt.Printf("    %s @ %s\n", lvl.TotalVolume.String(), price.String())
}
