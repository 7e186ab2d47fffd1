package product

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstAndLastProcess(t *testing.T) {
	p := New(1, "widget", []Process{10, 20, 30})
	first, ok := p.FirstProcess()
	require.True(t, ok)
	assert.Equal(t, Process(10), first)

	last, ok := p.LastProcess()
	require.True(t, ok)
	assert.Equal(t, Process(30), last)
}

func TestFirstAndLastProcessEmptyPlan(t *testing.T) {
	p := New(1, "empty", nil)
	_, ok := p.FirstProcess()
	assert.False(t, ok)
	_, ok = p.LastProcess()
	assert.False(t, ok)
}

func TestRemainingProcessesFromStart(t *testing.T) {
	p := New(1, "widget", []Process{10, 20, 30})
	rem, ok := p.RemainingProcesses(nil)
	require.True(t, ok)
	assert.Equal(t, []Process{10, 20, 30}, rem)
}

func TestRemainingProcessesMidway(t *testing.T) {
	p := New(1, "widget", []Process{10, 20, 30})
	rem, ok := p.RemainingProcesses([]Process{10})
	require.True(t, ok)
	assert.Equal(t, []Process{20, 30}, rem)
}

func TestRemainingProcessesComplete(t *testing.T) {
	p := New(1, "widget", []Process{10, 20, 30})
	rem, ok := p.RemainingProcesses([]Process{10, 20, 30})
	require.True(t, ok)
	assert.Nil(t, rem)
}

func TestRemainingProcessesRejectsNonPrefix(t *testing.T) {
	p := New(1, "widget", []Process{10, 20, 30})
	_, ok := p.RemainingProcesses([]Process{10, 99})
	assert.False(t, ok)
}

func TestRemainingProcessesRejectsOverlong(t *testing.T) {
	p := New(1, "widget", []Process{10, 20})
	_, ok := p.RemainingProcesses([]Process{10, 20, 30})
	assert.False(t, ok)
}
