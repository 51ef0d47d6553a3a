// Package cmd defines the matcher daemon's single root command,
// following the teacher's own command-construction style
// (cmd/perpdexd/cmd/root.go) without the chain-node subcommands that do
// not apply to an off-chain engine.
package cmd

import (
	"github.com/spf13/cobra"
)

// NewRootCmd returns the matcher daemon's root command: one long-running
// process, no subcommands (§6).
func NewRootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
		startBlock uint64
		demo       bool
	)

	root := &cobra.Command{
		Use:   "matcher",
		Short: "Off-chain order-book matching engine",
		Long: `matcher mirrors an on-chain Sequencer/OrderBook pair, computes the
insertion position and match outcome the on-chain execution will
produce for each pending request, and submits batch transactions naming
those positions.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if demo {
				return runDemo(newLogger(logLevel))
			}
			return runEngine(cmd.Context(), configPath, logLevel, startBlock)
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "config.toml", "path to the TOML configuration file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: trace, debug, info, warn, error")
	root.PersistentFlags().Uint64Var(&startBlock, "start-block", 0, "override sync.start_block (0 keeps the config value)")
	root.PersistentFlags().BoolVar(&demo, "demo", false, "seed sample orders against an in-memory replica and print the resulting book, without a live chain")

	return root
}
