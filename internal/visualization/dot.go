// Package visualization renders a station graph to Graphviz's dot
// format, suitable for `dot -Tpng system_graph.dot -o system_graph.png`.
package visualization

import (
	"fmt"
	"io"

	"github.com/stationmesh/dispatch/internal/stationgraph"
)

// WriteDot renders g to w as a directed graph: one boxed, light-yellow
// node per station labelled with its id, name, buffer capacity, and
// service-time distribution, and one labelled edge per transfer arc.
func WriteDot(w io.Writer, g *stationgraph.StationGraph) error {
	if _, err := fmt.Fprintln(w, "digraph StationGraph {"); err != nil {
		return err
	}

	for _, id := range g.VertexIDs() {
		v, ok := g.GetVertex(id)
		if !ok {
			continue
		}
		label := fmt.Sprintf("S%d", v.ID)
		if v.Name != "" {
			label += ": " + v.Name
		}
		label += fmt.Sprintf("\\nmax capacity: %d\\ns%d: %s", v.BufferCapacity, v.ID, v.ServiceTime.String())

		if _, err := fmt.Fprintf(w, "  %d [shape=box, style=filled, fillcolor=lightyellow, color=black, penwidth=1, label=%q];\n", v.ID, label); err != nil {
			return err
		}
	}

	for _, tail := range g.VertexIDs() {
		for _, head := range g.OutgoingNeighbours(tail) {
			a, ok := g.GetArc(tail, head)
			if !ok {
				continue
			}
			label := fmt.Sprintf("t%d,%d: %s", a.Tail, a.Head, a.TransferTime.String())
			if _, err := fmt.Fprintf(w, "  %d -> %d [color=black, penwidth=1, arrowsize=1.0, label=%q];\n", tail, head, label); err != nil {
				return err
			}
		}
	}

	_, err := fmt.Fprintln(w, "}")
	return err
}
