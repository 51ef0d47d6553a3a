package chain

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// MockSubmitter is an in-memory TxSubmitter for tests, matching the
// shape of the teacher's own MockSubmitter.
type MockSubmitter struct {
	mu         sync.Mutex
	FailNext   bool
	receipts   map[common.Hash]*types.Receipt
	submitted  []BatchRequest
	txHashes   []common.Hash
	totalSubs  int64
	failedSubs int64
}

// NewMockSubmitter returns a MockSubmitter that succeeds by default.
func NewMockSubmitter() *MockSubmitter {
	return &MockSubmitter{receipts: make(map[common.Hash]*types.Receipt)}
}

// SubmitBatch records the batch and synthesizes a receipt immediately,
// honoring FailNext for exercising the Dispatcher's rollback path.
func (m *MockSubmitter) SubmitBatch(ctx context.Context, req BatchRequest) (common.Hash, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.submitted = append(m.submitted, req)
	m.totalSubs++

	hash := common.BytesToHash([]byte(uuid.NewString()))
	status := uint64(types.ReceiptStatusSuccessful)
	if m.FailNext {
		status = types.ReceiptStatusFailed
		m.failedSubs++
		m.FailNext = false
	}
	m.receipts[hash] = &types.Receipt{Status: status}
	m.txHashes = append(m.txHashes, hash)
	return hash, nil
}

// LastTxHash returns the hash of the most recent SubmitBatch call, for
// tests that need to look up the resulting pending entry.
func (m *MockSubmitter) LastTxHash() common.Hash {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.txHashes) == 0 {
		return common.Hash{}
	}
	return m.txHashes[len(m.txHashes)-1]
}

// AwaitReceipt returns the synthesized receipt for a prior SubmitBatch
// call immediately: the mock never actually waits.
func (m *MockSubmitter) AwaitReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.receipts[txHash]
	if !ok {
		return nil, ErrUnknownReceipt
	}
	return r, nil
}

// GetStatus reports submission counters.
func (m *MockSubmitter) GetStatus() SubmitterStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return SubmitterStatus{
		Connected:        true,
		TotalSubmissions: m.totalSubs,
		FailedBatches:    m.failedSubs,
	}
}

// Submissions returns every batch submitted so far, for test assertions.
func (m *MockSubmitter) Submissions() []BatchRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]BatchRequest, len(m.submitted))
	copy(out, m.submitted)
	return out
}

// MockReader is a fixed-state Reader for tests exercising cold sync
// without a live chain connection.
type MockReader struct {
	Head         uint256.Int
	Requests     map[uint256.Int]QueuedRequestData
	Bounds       map[common.Hash]OrderBookBounds
	Levels       map[uint256.Int]PriceLevelData
	Orders       map[uint256.Int]OrderData
	CurrentBlock uint64
}

// NewMockReader returns an empty MockReader.
func NewMockReader() *MockReader {
	return &MockReader{
		Requests: make(map[uint256.Int]QueuedRequestData),
		Bounds:   make(map[common.Hash]OrderBookBounds),
		Levels:   make(map[uint256.Int]PriceLevelData),
		Orders:   make(map[uint256.Int]OrderData),
	}
}

func (m *MockReader) QueueHead(ctx context.Context) (uint256.Int, error) { return m.Head, nil }

func (m *MockReader) QueuedRequest(ctx context.Context, requestID uint256.Int) (QueuedRequestData, error) {
	d, ok := m.Requests[requestID]
	if !ok {
		return QueuedRequestData{}, ErrUnknownEntityRPC
	}
	return d, nil
}

func (m *MockReader) OrderBookBounds(ctx context.Context, tradingPair common.Hash) (OrderBookBounds, error) {
	return m.Bounds[tradingPair], nil
}

func (m *MockReader) PriceLevel(ctx context.Context, price uint256.Int, isAsk bool) (PriceLevelData, error) {
	d, ok := m.Levels[price]
	if !ok {
		return PriceLevelData{}, ErrUnknownEntityRPC
	}
	return d, nil
}

func (m *MockReader) Order(ctx context.Context, orderID uint256.Int) (OrderData, error) {
	d, ok := m.Orders[orderID]
	if !ok {
		return OrderData{}, ErrUnknownEntityRPC
	}
	return d, nil
}

func (m *MockReader) BlockNumber(ctx context.Context) (uint64, error) { return m.CurrentBlock, nil }

// MockEventSubscriber replays a fixed, pre-recorded slice of events
// through Subscribe, for tests exercising the Reconciler's warm phase
// without a live chain connection.
type MockEventSubscriber struct {
	Events []Event
}

// Subscribe streams every event whose BlockNumber is >= fromBlock, in
// slice order, then closes both channels.
func (m *MockEventSubscriber) Subscribe(ctx context.Context, fromBlock uint64) (<-chan Event, <-chan error) {
	events := make(chan Event, len(m.Events))
	errs := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errs)
		for _, ev := range m.Events {
			if ev.BlockNumber < fromBlock {
				continue
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, errs
}
