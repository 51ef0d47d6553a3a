package sequencer

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func req(id, next uint64) *QueuedRequest {
	return &QueuedRequest{
		RequestID:     *uint256.NewInt(id),
		NextRequestID: *uint256.NewInt(next),
		Kind:          KindPlaceOrder,
		OrderType:     OrderTypeLimit,
		Price:         *uint256.NewInt(100),
		Amount:        *uint256.NewInt(10),
	}
}

func TestWalkHeadStopsOnDanglingPointer(t *testing.T) {
	m := New()
	m.Add(req(1, 2))
	m.Add(req(2, 3)) // 3 is never added: dangling
	m.SetHead(*uint256.NewInt(1))

	got := m.WalkHead(10)
	require.Len(t, got, 2)
	require.True(t, got[0].RequestID.Eq(uint256.NewInt(1)))
	require.True(t, got[1].RequestID.Eq(uint256.NewInt(2)))
}

func TestWalkHeadRespectsLimit(t *testing.T) {
	m := New()
	m.Add(req(1, 2))
	m.Add(req(2, 3))
	m.Add(req(3, 0))
	m.SetHead(*uint256.NewInt(1))

	got := m.WalkHead(2)
	require.Len(t, got, 2)
}

func TestRemoveBatchAdvancesHead(t *testing.T) {
	m := New()
	m.Add(req(1, 2))
	m.Add(req(2, 3))
	m.Add(req(3, 0))
	m.SetHead(*uint256.NewInt(1))

	batch := m.WalkHead(2)
	m.RemoveBatch(batch)

	require.Equal(t, 1, m.Len())
	require.True(t, m.Head().Eq(uint256.NewInt(3)))
}

func TestRemoveBatchEmptiesQueueWhenNoSuccessor(t *testing.T) {
	m := New()
	m.Add(req(1, 0))
	m.SetHead(*uint256.NewInt(1))

	m.RemoveBatch(m.WalkHead(1))

	require.Equal(t, 0, m.Len())
	require.True(t, m.Head().IsZero())
}
