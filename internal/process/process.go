// Package process implements the station capability map and the product
// plan lookup used to decide whether a tray should execute locally or be
// routed onward.
//
// The original implementation threads a back-pointer from the process
// manager through the server to the order manager; that cyclic ownership
// is a layering smell in a systems language (see the design notes this
// was distilled from). Manager instead takes the order lookup it needs
// as a plain function value injected at construction, so it never reaches
// back through a shared owner.
package process

import (
	"github.com/stationmesh/dispatch/internal/product"
)

// OrderView is the subset of order state Manager needs to compute the
// next process for an order.
type OrderView struct {
	ExecutedProcesses []uint8
}

// OrderLookup resolves an order id to the view Manager needs. Injected so
// Manager has no dependency on the order package's concrete Manager type.
type OrderLookup func(orderID uint32) (OrderView, bool)

// Manager holds the station→capabilities map, the ordered list of
// order-assigning stations, and the single product plan this instance
// dispatches.
type Manager struct {
	orderAssigningStations []uint32
	stationCapabilities    map[uint32][]uint8
	product                product.Product
	lookupOrder            OrderLookup
}

// New builds a Manager from a station→capability map (a station with no
// entry has no declared capability), the ordered list of order-assigning
// stations, the product plan, and an order lookup.
func New(stationCapabilities map[uint32][]uint8, orderAssigningStations []uint32, prod product.Product, lookup OrderLookup) *Manager {
	caps := make(map[uint32][]uint8, len(stationCapabilities))
	for id, procs := range stationCapabilities {
		caps[id] = append([]uint8(nil), procs...)
	}
	return &Manager{
		orderAssigningStations: append([]uint32(nil), orderAssigningStations...),
		stationCapabilities:    caps,
		product:                prod,
		lookupOrder:            lookup,
	}
}

// IsOrderAssigningStation reports whether id is in the (small) list of
// order-assigning stations. A linear scan is fine at this list's expected
// size (~10 entries).
func (m *Manager) IsOrderAssigningStation(id uint32) bool {
	for _, s := range m.orderAssigningStations {
		if s == id {
			return true
		}
	}
	return false
}

// NextProcessFor returns the next process the order should execute: its
// plan's first process if nothing has executed yet, otherwise the first
// remaining process per the perfect-prefix rule. ok=false means no more
// work for this order — either it is complete or the order id or prefix
// is invalid, which the caller treats as completion either way.
func (m *Manager) NextProcessFor(orderID uint32) (uint8, bool) {
	ov, ok := m.lookupOrder(orderID)
	if !ok {
		return 0, false
	}
	if len(ov.ExecutedProcesses) == 0 {
		return m.product.FirstProcess()
	}
	remaining, ok := m.product.RemainingProcesses(ov.ExecutedProcesses)
	if !ok || len(remaining) == 0 {
		return 0, false
	}
	return remaining[0], true
}

// CanStationExecute reports whether station advertises process among its
// declared capabilities.
func (m *Manager) CanStationExecute(process uint8, station uint32) bool {
	caps, ok := m.stationCapabilities[station]
	if !ok {
		return false
	}
	for _, p := range caps {
		if p == process {
			return true
		}
	}
	return false
}

// StationsCapableOf returns every station advertising process, sorted by
// ascending station id so the result is deterministic.
func (m *Manager) StationsCapableOf(process uint8) ([]uint32, bool) {
	var ids []uint32
	for station, caps := range m.stationCapabilities {
		for _, p := range caps {
			if p == process {
				ids = append(ids, station)
				break
			}
		}
	}
	if len(ids) == 0 {
		return nil, false
	}
	sortUint32(ids)
	return ids, true
}

// StationSoleCapability returns the first configured process capability
// for station, per the one-process-per-station simplification used when
// recording a completed process on ACTION_DONE_QUERY.
func (m *Manager) StationSoleCapability(station uint32) (uint8, bool) {
	caps, ok := m.stationCapabilities[station]
	if !ok || len(caps) == 0 {
		return 0, false
	}
	return caps[0], true
}

// DefaultReturningStation is the first configured order-assigning station.
func (m *Manager) DefaultReturningStation() uint32 {
	if len(m.orderAssigningStations) == 0 {
		return 0
	}
	return m.orderAssigningStations[0]
}

// ProductType exposes the configured product's type, used by the startup
// order-seeding routine.
func (m *Manager) ProductType() uint8 {
	return m.product.Type
}

func sortUint32(ids []uint32) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}
