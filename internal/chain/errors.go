package chain

import "github.com/riddles-are-us/permissionless-onchain-orderbook/internal/apperrors"

var (
	// ErrUnknownReceipt is returned by a TxSubmitter when asked about a
	// transaction hash it never submitted.
	ErrUnknownReceipt = apperrors.ErrUnknownEntity.Wrap("no receipt for transaction hash")

	// ErrUnknownEntityRPC is returned by a Reader when a requested id
	// has no corresponding on-chain record.
	ErrUnknownEntityRPC = apperrors.ErrUnknownEntity.Wrap("no chain record for id")
)
