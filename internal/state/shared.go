// Package state holds the single reader-writer lock shared between the
// Reconciler and the Dispatcher (§5): the Reconciler takes the writer
// lock to apply each event; the Dispatcher takes the reader lock to
// clone the Replica into its scratch simulator, and the writer lock
// only for pending-set updates. The pending set lives beside the
// Replica under this same lock; SequencerMirror cleanup goes through the
// Mirror's own lock.
package state

import (
	"sync"

	"github.com/riddles-are-us/permissionless-onchain-orderbook/internal/replica"
	"github.com/riddles-are-us/permissionless-onchain-orderbook/internal/sequencer"
)

// Shared bundles the Replica, SequencerMirror, and pending set for one
// trading pair under the single lock that guards the Replica (the
// SequencerMirror guards itself internally; see sequencer.Mirror). The
// pending set lives beside the Replica under this same writer lock, per
// §5: the Dispatcher takes it only for pending-set updates, never to
// mutate the Replica itself.
type Shared struct {
	mu      sync.RWMutex
	Repl    *replica.Replica
	Queue   *sequencer.Mirror
	Pending *PendingSet
}

// New returns a Shared wrapping a fresh, empty Replica, Mirror, and
// pending set.
func New() *Shared {
	return &Shared{Repl: replica.New(), Queue: sequencer.New(), Pending: NewPendingSet()}
}

// Lock acquires the writer lock, for the Reconciler applying an event or
// the Dispatcher updating the pending set.
func (s *Shared) Lock()   { s.mu.Lock() }
func (s *Shared) Unlock() { s.mu.Unlock() }

// RLock acquires the reader lock, for the Dispatcher cloning the
// Replica into a scratch simulator.
func (s *Shared) RLock()   { s.mu.RLock() }
func (s *Shared) RUnlock() { s.mu.RUnlock() }

// CloneReplica takes the reader lock and returns a scratch copy.
func (s *Shared) CloneReplica() *replica.Replica {
	s.RLock()
	defer s.RUnlock()
	return s.Repl.Clone()
}
