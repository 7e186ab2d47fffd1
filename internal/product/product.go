// Package product models a single product type's ordered process plan and
// the prefix arithmetic used to compute an order's remaining work.
package product

// Process is a process-step identifier.
type Process = uint8

// Product is one product type's name and linear process plan.
type Product struct {
	Type      uint8
	Name      string
	Processes []Process
}

// New builds a Product from its configured process sequence.
func New(productType uint8, name string, processes []Process) Product {
	p := make([]Process, len(processes))
	copy(p, processes)
	return Product{Type: productType, Name: name, Processes: p}
}

// FirstProcess returns the plan's first process, or ok=false if the plan
// is empty.
func (p Product) FirstProcess() (Process, bool) {
	if len(p.Processes) == 0 {
		return 0, false
	}
	return p.Processes[0], true
}

// LastProcess returns the plan's last process, or ok=false if the plan is
// empty.
func (p Product) LastProcess() (Process, bool) {
	if len(p.Processes) == 0 {
		return 0, false
	}
	return p.Processes[len(p.Processes)-1], true
}

// RemainingProcesses enforces the perfect-prefix invariant: executed must
// equal, element by element, a prefix of the plan. ok=false means the
// prefix was violated. A fully-executed plan returns (nil, true).
func (p Product) RemainingProcesses(executed []Process) ([]Process, bool) {
	if len(executed) > len(p.Processes) {
		return nil, false
	}
	for i, step := range executed {
		if step != p.Processes[i] {
			return nil, false
		}
	}
	if len(executed) == len(p.Processes) {
		return nil, true
	}
	remaining := make([]Process, len(p.Processes)-len(executed))
	copy(remaining, p.Processes[len(executed):])
	return remaining, true
}
