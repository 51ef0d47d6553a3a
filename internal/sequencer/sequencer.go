// Package sequencer mirrors the on-chain Sequencer contract's queue: an
// ordered map of pending requests keyed by request id, plus a head
// pointer, walked by following next_request_id links the way the
// contract's own singly-linked queue does.
package sequencer

import (
	"sync"

	"github.com/holiman/uint256"
)

// RequestKind distinguishes the two request shapes the Sequencer queues.
type RequestKind int

const (
	KindPlaceOrder RequestKind = iota
	KindRemoveOrder
)

// OrderType mirrors the on-chain order type tag.
type OrderType int

const (
	OrderTypeLimit OrderType = iota
	OrderTypeMarket
)

// QueuedRequest mirrors a single entry of the on-chain Sequencer queue.
type QueuedRequest struct {
	RequestID       uint256.Int
	Kind            RequestKind
	TradingPair     [32]byte
	Trader          [20]byte
	OrderType       OrderType
	IsAsk           bool
	Price           uint256.Int
	Amount          uint256.Int
	OrderIDToRemove uint256.Int
	NextRequestID   uint256.Int
}

// Mirror maintains the queued-request map and head pointer. It is safe
// for concurrent use: the Reconciler inserts requests observed from
// chain events while the Dispatcher concurrently walks the head, hence
// the single RWMutex guarding the shard — a fine-grained sharded map is
// named in §5 but no such container exists anywhere in the retrieved
// corpus, so a single lock stands in for it here (see DESIGN.md).
type Mirror struct {
	mu       sync.RWMutex
	requests map[uint256.Int]*QueuedRequest
	head     uint256.Int
}

// New returns an empty Mirror.
func New() *Mirror {
	return &Mirror{requests: make(map[uint256.Int]*QueuedRequest)}
}

// Add inserts a request observed from a PlaceOrderRequested or
// RemoveOrderRequested event, or from a cold-sync queue walk.
func (m *Mirror) Add(req *QueuedRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *req
	m.requests[req.RequestID] = &cp
}

// Remove drops a request by id, e.g. once the Dispatcher has processed
// it into a batch and it is no longer queue-visible on chain.
func (m *Mirror) Remove(requestID *uint256.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.requests, *requestID)
}

// SetHead installs the queue head pointer, as read from cold sync or
// derived after a batch of requests has been processed.
func (m *Mirror) SetHead(id uint256.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.head = id
}

// Head returns the current head request id.
func (m *Mirror) Head() uint256.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.head
}

// Get looks up a single request by id.
func (m *Mirror) Get(requestID *uint256.Int) (*QueuedRequest, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.requests[*requestID]
	return r, ok
}

// Len reports the number of queued requests currently mirrored.
func (m *Mirror) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// WalkHead follows next_request_id links from the head, returning up to
// n requests in queue order. The walk is tolerant of dangling pointers:
// it stops (rather than erroring) the moment a linked id is missing,
// since that id may have already been cleaned up by the Dispatcher.
func (m *Mirror) WalkHead(n int) []*QueuedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*QueuedRequest, 0, n)
	cur := m.head
	for len(out) < n && !cur.IsZero() {
		req, ok := m.requests[cur]
		if !ok {
			break
		}
		cp := *req
		out = append(out, &cp)
		cur = req.NextRequestID
	}
	return out
}

// RemoveBatch drops every processed request from the map and advances
// the head to the next-in-line request (the last processed request's
// NextRequestID), matching §4.3 step 6: processed requests are removed
// regardless of batch outcome and the head is reset to the first
// still-present request, or zero if none remains.
func (m *Mirror) RemoveBatch(processed []*QueuedRequest) {
	if len(processed) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, req := range processed {
		delete(m.requests, req.RequestID)
	}

	next := processed[len(processed)-1].NextRequestID
	for !next.IsZero() {
		if _, ok := m.requests[next]; ok {
			m.head = next
			return
		}
		break
	}
	m.head = uint256.Int{}
}
