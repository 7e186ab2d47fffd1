package order

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrderAssignsMonotonicIDs(t *testing.T) {
	m := NewManager(nil)
	id1 := m.CreateOrder(1)
	id2 := m.CreateOrder(1)
	assert.Equal(t, uint32(1), id1)
	assert.Equal(t, uint32(2), id2)

	o, ok := m.GetOrder(id1)
	require.True(t, ok)
	assert.Equal(t, uint8(1), o.ProductType)
	assert.Equal(t, Wait, o.Status)
	assert.Equal(t, NoTray, o.TrayID)
}

func TestTryAssignToTrayEmptyQueueNoStateChange(t *testing.T) {
	m := NewManager(nil)
	_, ok := m.TryAssignToTray(context.Background(), 7)
	assert.False(t, ok)
	waiting, running, finished := m.Partition()
	assert.Empty(t, waiting)
	assert.Empty(t, running)
	assert.Empty(t, finished)
}

func TestTryAssignToTrayFIFO(t *testing.T) {
	m := NewManager(nil)
	id1 := m.CreateOrder(1)
	id2 := m.CreateOrder(1)

	assigned, ok := m.TryAssignToTray(context.Background(), 7)
	require.True(t, ok)
	assert.Equal(t, id1, assigned)

	o, _ := m.GetOrder(id1)
	assert.Equal(t, Executing, o.Status)
	assert.Equal(t, uint32(7), o.TrayID)

	assert.Equal(t, 1, m.WaitingCount())

	assigned2, ok := m.TryAssignToTray(context.Background(), 8)
	require.True(t, ok)
	assert.Equal(t, id2, assigned2)
}

func TestRecordProcessSuccessAndFinish(t *testing.T) {
	m := NewManager(nil)
	id := m.CreateOrder(1)
	m.TryAssignToTray(context.Background(), 7)

	m.RecordProcessSuccess(id, 10)
	m.RecordProcessSuccess(id, 20)

	o, _ := m.GetOrder(id)
	assert.Equal(t, []uint8{10, 20}, o.ExecutedProcesses)

	m.Finish(context.Background(), id)
	assert.True(t, m.IsDone(id))

	waiting, running, finished := m.Partition()
	assert.Empty(t, waiting)
	assert.Empty(t, running)
	assert.Equal(t, []uint32{id}, finished)
}

func TestPartitionInvariant(t *testing.T) {
	m := NewManager(nil)
	idA := m.CreateOrder(1)
	idB := m.CreateOrder(1)
	m.TryAssignToTray(context.Background(), 1) // assigns idA

	waiting, running, finished := m.Partition()
	all := append(append(append([]uint32{}, waiting...), running...), finished...)
	assert.ElementsMatch(t, []uint32{idA, idB}, all)
}

func TestGetOrderUnknownID(t *testing.T) {
	m := NewManager(nil)
	_, ok := m.GetOrder(999)
	assert.False(t, ok)
}
