package tray

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetOrCreateDefaults(t *testing.T) {
	r := NewRegistry()
	info := r.GetOrCreate(7)
	assert.Equal(t, uint32(7), info.TrayID)
	assert.False(t, info.ExecutingOrder)
	assert.Equal(t, NoOrder, info.CurrentOrderID)
}

func TestGetOrCreateIsLazyAndStable(t *testing.T) {
	r := NewRegistry()
	first := r.GetOrCreate(7)
	first.ExecutingOrder = true
	second := r.GetOrCreate(7)
	assert.True(t, second.ExecutingOrder)
}

func TestAssignAndReset(t *testing.T) {
	r := NewRegistry()
	r.Assign(7, 42)
	snap := r.Snapshot(7)
	assert.True(t, snap.ExecutingOrder)
	assert.Equal(t, uint32(42), snap.CurrentOrderID)

	r.Reset(7)
	snap = r.Snapshot(7)
	assert.False(t, snap.ExecutingOrder)
	assert.Equal(t, NoOrder, snap.CurrentOrderID)
}
