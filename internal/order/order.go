// Package order implements the order pool: waiting/running/finished
// partitions, per-order state, and tray assignment.
package order

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/stationmesh/dispatch/pkg/observability"
)

// Status is an order's lifecycle state.
type Status int

const (
	Wait Status = iota
	Executing
	Finished
)

func (s Status) String() string {
	switch s {
	case Wait:
		return "WAIT"
	case Executing:
		return "EXECUTING"
	case Finished:
		return "FINISHED"
	default:
		return "UNKNOWN"
	}
}

// NoTray is the sentinel for "no tray assigned".
const NoTray uint32 = ^uint32(0)

// Order is one production request for a unit of one product type.
type Order struct {
	ID                uint32
	ProductType       uint8
	TrayID            uint32
	Status            Status
	ExecutedProcesses []uint8
}

// Manager is the order pool: id allocation, the FIFO waiting queue, and
// the running/finished partitions. All exported methods are safe for
// concurrent use; a single mutex guards the pool the way the dispatch
// engine's collaborators are expected to be coarse-locked (spec §5).
type Manager struct {
	logger *observability.Logger

	mu      sync.Mutex
	nextID  uint32
	pool    map[uint32]*Order
	waiting []uint32
	running []uint32
	finished []uint32
}

// NewManager builds an empty order pool.
func NewManager(logger *observability.Logger) *Manager {
	return &Manager{
		logger: logger,
		pool:   make(map[uint32]*Order),
	}
}

// CreateOrder allocates a fresh, monotonically increasing order id,
// starting at 1, and enqueues it to the waiting queue in status WAIT.
func (m *Manager) CreateOrder(productType uint8) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := atomic.AddUint32(&m.nextID, 1)
	m.pool[id] = &Order{
		ID:          id,
		ProductType: productType,
		TrayID:      NoTray,
		Status:      Wait,
	}
	m.waiting = append(m.waiting, id)
	return id
}

// GetOrder returns a read-only copy of the order, or ok=false if unknown.
func (m *Manager) GetOrder(id uint32) (Order, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.pool[id]
	if !ok {
		return Order{}, false
	}
	return cloneOrder(o), true
}

// WaitingCount reports how many orders are queued and unassigned.
func (m *Manager) WaitingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.waiting)
}

// IsDone reports whether the order has reached FINISHED.
func (m *Manager) IsDone(id uint32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.pool[id]
	return ok && o.Status == Finished
}

// TryAssignToTray pops the front of the waiting queue, binds it to
// trayID, and moves it to EXECUTING/running. ok=false and no state change
// if the waiting queue is empty.
func (m *Manager) TryAssignToTray(ctx context.Context, trayID uint32) (uint32, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.waiting) == 0 {
		if m.logger != nil {
			m.logger.Info(ctx, "no order waiting to be assigned")
		}
		return 0, false
	}
	id := m.waiting[0]
	m.waiting = m.waiting[1:]
	o, ok := m.pool[id]
	if !ok {
		return 0, false
	}
	o.TrayID = trayID
	o.Status = Executing
	m.running = append(m.running, id)
	if m.logger != nil {
		m.logger.Info(ctx, "order assigned to tray", map[string]interface{}{
			"order_id": id,
			"tray_id":  trayID,
		})
	}
	return id, true
}

// RecordProcessSuccess appends processID to the order's executed list.
func (m *Manager) RecordProcessSuccess(id uint32, processID uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.pool[id]
	if !ok {
		return
	}
	o.ExecutedProcesses = append(o.ExecutedProcesses, processID)
}

// Finish marks the order FINISHED and moves it from running to finished.
func (m *Manager) Finish(ctx context.Context, id uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.pool[id]
	if !ok {
		return
	}
	o.Status = Finished
	m.running = removeFirst(m.running, id)
	m.finished = append(m.finished, id)
	if m.logger != nil {
		m.logger.Info(ctx, "order finished", map[string]interface{}{"order_id": id})
	}
}

// Partition returns copies of the waiting/running/finished id lists, for
// property tests checking the pool partition invariant.
func (m *Manager) Partition() (waiting, running, finished []uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uint32(nil), m.waiting...),
		append([]uint32(nil), m.running...),
		append([]uint32(nil), m.finished...)
}

func cloneOrder(o *Order) Order {
	cp := *o
	cp.ExecutedProcesses = append([]uint8(nil), o.ExecutedProcesses...)
	return cp
}

func removeFirst(s []uint32, v uint32) []uint32 {
	for i, x := range s {
		if x == v {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}
