package cmd

import (
	"os"

	"cosmossdk.io/log"
	"github.com/rs/zerolog"
)

// newLogger builds the engine's structured logger at the requested
// level (§6's --log-level flag), falling back to info on an
// unrecognized level string rather than failing startup over a typo.
func newLogger(levelStr string) log.Logger {
	level, err := zerolog.ParseLevel(levelStr)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return log.NewLogger(os.Stderr, log.LevelOption(level))
}
