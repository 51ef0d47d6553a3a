package main

import (
	"os"

	"cosmossdk.io/log"

	"github.com/riddles-are-us/permissionless-onchain-orderbook/cmd/matcher/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		log.NewLogger(os.Stderr).Error("failure when running matcher", "err", err)
		os.Exit(1)
	}
}
