package state

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/btree"
	"github.com/holiman/uint256"
)

// pendingBtreeDegree follows the teacher's own B-tree degree choice for
// its price-level index (x/orderbook/keeper/orderbook_btree.go).
const pendingBtreeDegree = 32

// StateChangeKind distinguishes the three predicted effects a batch can
// carry (§3).
type StateChangeKind int

const (
	StateChangeAddOrder StateChangeKind = iota
	StateChangeRemoveOrder
	StateChangeUpdateFilled
)

// StateChange is one predicted effect of a batch's simulated matching,
// recorded optimistically and never applied to the live Replica (§4.3,
// §9): the authoritative mutation path is always the event stream.
type StateChange struct {
	Kind      StateChangeKind
	OrderID   uint256.Int
	NewFilled uint256.Int
}

// PendingChange is the prediction recorded for one batch transaction:
// the changes its simulated matching produced, keyed by the resulting
// tx hash and timestamped for the expiry sweep (§4.3).
type PendingChange struct {
	TxHash      common.Hash
	Changes     []StateChange
	SubmittedAt time.Time
}

// pendingTimeItem orders PendingChange entries by (submitted_at,
// tx_hash) in the expiry B-tree, the pending set's time-index key
// described in §3.
type pendingTimeItem struct {
	submittedAt time.Time
	txHash      common.Hash
}

func (a *pendingTimeItem) Less(than btree.Item) bool {
	b := than.(*pendingTimeItem)
	if a.submittedAt.Equal(b.submittedAt) {
		return bytesLess(a.txHash[:], b.txHash[:])
	}
	return a.submittedAt.Before(b.submittedAt)
}

func bytesLess(a, b []byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// PendingSet holds optimistic predictions awaiting event confirmation
// or rollback, keyed by tx hash, with a B-tree time index so the
// Dispatcher's periodic sweep (§4.3) can find expired entries without a
// full scan. It is not independently synchronized: callers hold the
// same Shared writer lock that guards the Replica (§5, §9).
type PendingSet struct {
	entries map[common.Hash]*PendingChange
	index   *btree.BTree
}

// NewPendingSet returns an empty PendingSet.
func NewPendingSet() *PendingSet {
	return &PendingSet{
		entries: make(map[common.Hash]*PendingChange),
		index:   btree.New(pendingBtreeDegree),
	}
}

// Add records a PendingChange for txHash, replacing any prior entry for
// the same hash (the caller is expected to have resolved it first).
func (p *PendingSet) Add(txHash common.Hash, changes []StateChange, submittedAt time.Time) {
	if old, ok := p.entries[txHash]; ok {
		p.index.Delete(&pendingTimeItem{submittedAt: old.SubmittedAt, txHash: txHash})
	}
	p.entries[txHash] = &PendingChange{TxHash: txHash, Changes: changes, SubmittedAt: submittedAt}
	p.index.ReplaceOrInsert(&pendingTimeItem{submittedAt: submittedAt, txHash: txHash})
}

// Get looks up the pending change for a tx hash.
func (p *PendingSet) Get(txHash common.Hash) (*PendingChange, bool) {
	pc, ok := p.entries[txHash]
	return pc, ok
}

// Remove discards the pending entry for txHash. The Dispatcher calls it
// when a transaction is rolled back; no event handler calls it.
func (p *PendingSet) Remove(txHash common.Hash) {
	pc, ok := p.entries[txHash]
	if !ok {
		return
	}
	delete(p.entries, txHash)
	p.index.Delete(&pendingTimeItem{submittedAt: pc.SubmittedAt, txHash: txHash})
}

// Len reports the number of pending changes awaiting confirmation.
func (p *PendingSet) Len() int {
	return len(p.entries)
}

// ExpireOlderThan removes and returns every pending entry submitted
// strictly before cutoff, walking the time index ascending so the sweep
// touches only the expired prefix rather than the whole set.
func (p *PendingSet) ExpireOlderThan(cutoff time.Time) []common.Hash {
	var expired []*pendingTimeItem
	p.index.Ascend(func(item btree.Item) bool {
		it := item.(*pendingTimeItem)
		if !it.submittedAt.Before(cutoff) {
			return false
		}
		expired = append(expired, it)
		return true
	})

	hashes := make([]common.Hash, 0, len(expired))
	for _, it := range expired {
		delete(p.entries, it.txHash)
		p.index.Delete(it)
		hashes = append(hashes, it.txHash)
	}
	return hashes
}
