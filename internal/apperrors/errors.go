// Package apperrors registers the engine's error taxonomy (§7) as
// cosmossdk.io/errors sentinels, grouped by failure category, the same
// way x/orderbook/types/errors.go registers its module's errors.
package apperrors

import (
	"cosmossdk.io/errors"
)

const moduleName = "matcher"

var (
	// Transport errors: fatal to the affected task, surfaced to the
	// supervisor for process exit.
	ErrTransportDisconnected = errors.Register(moduleName, 1, "chain transport disconnected")

	// Contract call failures: per-request, handled by skipping the
	// request (simulation) or rolling back the batch (submission).
	ErrContractCallFailed = errors.Register(moduleName, 2, "contract call failed")

	// Transaction outcomes.
	ErrTxReverted = errors.Register(moduleName, 3, "transaction reverted")
	ErrTxDropped  = errors.Register(moduleName, 4, "transaction dropped before inclusion")

	// Queue and event data errors.
	ErrUnknownEnumTag = errors.Register(moduleName, 5, "unknown enum tag in queue data")
	ErrUnknownEntity  = errors.Register(moduleName, 6, "event referenced an unknown entity")

	// Pending-set lifecycle.
	ErrPendingTimeout  = errors.Register(moduleName, 7, "pending change expired before confirmation")
	ErrPendingNotFound = errors.Register(moduleName, 8, "no pending change for transaction hash")

	// Configuration.
	ErrInvalidConfig = errors.Register(moduleName, 9, "invalid configuration")
)
