// Package tray implements the sparse tray-id to tray-state mapping,
// created lazily on first sight and never removed for the server's
// lifetime.
package tray

import "sync"

// NoOrder is the sentinel for "no current order".
const NoOrder uint32 = ^uint32(0)

// Info is one tray's dispatch state.
type Info struct {
	TrayID         uint32
	ExecutingOrder bool
	CurrentOrderID uint32
}

// Registry is the tray-id to Info map.
type Registry struct {
	mu      sync.Mutex
	entries map[uint32]*Info
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[uint32]*Info)}
}

// GetOrCreate returns the tray's current state, creating it with default
// values {trayID, executing=false, current=NoOrder} on first sight.
func (r *Registry) GetOrCreate(trayID uint32) *Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	if info, ok := r.entries[trayID]; ok {
		return info
	}
	info := &Info{TrayID: trayID, ExecutingOrder: false, CurrentOrderID: NoOrder}
	r.entries[trayID] = info
	return info
}

// Assign marks the tray as executing orderID.
func (r *Registry) Assign(trayID, orderID uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info := r.get(trayID)
	info.ExecutingOrder = true
	info.CurrentOrderID = orderID
}

// Reset clears the tray back to idle.
func (r *Registry) Reset(trayID uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info := r.get(trayID)
	info.ExecutingOrder = false
	info.CurrentOrderID = NoOrder
}

// Snapshot returns a copy of the tray's current state.
func (r *Registry) Snapshot(trayID uint32) Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.get(trayID)
}

func (r *Registry) get(trayID uint32) *Info {
	if info, ok := r.entries[trayID]; ok {
		return info
	}
	info := &Info{TrayID: trayID, ExecutingOrder: false, CurrentOrderID: NoOrder}
	r.entries[trayID] = info
	return info
}
