// Package stationgraph implements the labelled directed graph of stations
// and transfer links: vertex/arc lookup, neighbour enumeration,
// expected-time shortest paths, and the dynamic arc reweighting used to
// model anticipated congestion at a station committing to a process.
package stationgraph

import (
	"container/heap"
	"fmt"
	"math"
	"sync"

	"github.com/stationmesh/dispatch/internal/distribution"
)

// NoStation is the sentinel for "no station" / "unreachable".
const NoStation uint32 = math.MaxUint32

// Station is a graph vertex: a workstation with a buffer capacity and a
// service-time distribution. The identifier is immutable; the service
// distribution is not.
type Station struct {
	ID             uint32
	Name           string
	BufferCapacity uint8
	ServiceTime    distribution.TimeDistribution
}

// Transfer is a directed arc between two stations, unique per ordered pair.
type Transfer struct {
	Tail, Head   uint32
	TransferTime distribution.TimeDistribution
}

type arcKey struct {
	tail, head uint32
}

// Cache memoizes ShortestPath results and is invalidated whenever any arc
// distribution is mutated. The in-memory implementation (a map guarded by
// a sync.RWMutex) is the default; internal/routecache supplies a Redis-backed one
// with identical semantics.
type Cache interface {
	Get(tail, head uint32) (Path, bool)
	Set(tail, head uint32, p Path)
	Flush()
}

// Path is a shortest-path result: the ordered list of station ids visited
// (inclusive of src and dst) and its expected length.
type Path struct {
	Stations []uint32
	Length   float64
}

// StationGraph is the multi-indexed store of stations and arcs.
type StationGraph struct {
	mu sync.RWMutex

	vertices map[uint32]*Station
	arcs     map[arcKey]*Transfer

	// order preserves vertex/arc insertion order so enumeration and
	// Dijkstra tie-breaking are deterministic for a fixed construction.
	vertexOrder []uint32
	outgoing    map[uint32][]uint32
	incoming    map[uint32][]uint32

	cache Cache
}

// New builds an empty graph. Vertices and arcs must be added via AddVertex
// and AddArc before use.
func New() *StationGraph {
	return &StationGraph{
		vertices: make(map[uint32]*Station),
		arcs:     make(map[arcKey]*Transfer),
		outgoing: make(map[uint32][]uint32),
		incoming: make(map[uint32][]uint32),
		cache:    newMemCache(),
	}
}

// SetCache swaps in a different shortest-path cache (e.g. Redis-backed).
// Must be called before any ShortestPath call to take effect uniformly.
func (g *StationGraph) SetCache(c Cache) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cache = c
}

// AddVertex inserts a station. Re-adding an existing id overwrites it.
func (g *StationGraph) AddVertex(s Station) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.vertices[s.ID]; !exists {
		g.vertexOrder = append(g.vertexOrder, s.ID)
	}
	cp := s
	g.vertices[s.ID] = &cp
}

// AddArc inserts a transfer link. Both endpoints must already exist as
// vertices; AddArc does not validate this (callers construct the graph
// from a single validated configuration document).
func (g *StationGraph) AddArc(a Transfer) {
	g.mu.Lock()
	defer g.mu.Unlock()
	k := arcKey{a.Tail, a.Head}
	if _, exists := g.arcs[k]; !exists {
		g.outgoing[a.Tail] = append(g.outgoing[a.Tail], a.Head)
		g.incoming[a.Head] = append(g.incoming[a.Head], a.Tail)
	}
	cp := a
	g.arcs[k] = &cp
	g.cache.Flush()
}

// GetVertex returns a copy of the station's label and whether it exists.
func (g *StationGraph) GetVertex(id uint32) (Station, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	v, ok := g.vertices[id]
	if !ok {
		return Station{}, false
	}
	return *v, true
}

// GetArc returns a copy of the arc's label and whether it exists.
func (g *StationGraph) GetArc(tail, head uint32) (Transfer, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	a, ok := g.arcs[arcKey{tail, head}]
	if !ok {
		return Transfer{}, false
	}
	return *a, true
}

// OutgoingNeighbours returns the ordered list of stations reachable by a
// single outgoing arc from id, in insertion order.
func (g *StationGraph) OutgoingNeighbours(id uint32) []uint32 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]uint32(nil), g.outgoing[id]...)
}

// IncomingNeighbours returns the ordered list of stations with a single
// outgoing arc into id, in insertion order.
func (g *StationGraph) IncomingNeighbours(id uint32) []uint32 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]uint32(nil), g.incoming[id]...)
}

// SetVertexDist replaces a station's service-time distribution.
func (g *StationGraph) SetVertexDist(id uint32, d distribution.TimeDistribution) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	v, ok := g.vertices[id]
	if !ok {
		return false
	}
	v.ServiceTime = d
	return true
}

// SetArcDist replaces an arc's transfer-time distribution.
func (g *StationGraph) SetArcDist(tail, head uint32, d distribution.TimeDistribution) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	a, ok := g.arcs[arcKey{tail, head}]
	if !ok {
		return false
	}
	a.TransferTime = d
	g.cache.Flush()
	return true
}

// AdjustArcByVertex mutates the arc (tail, head) by the service-time
// distribution of vertexID, signed +1 or -1. Normal-only: it is a no-op
// for any other distribution kind on either side (see the open question
// on non-normal congestion modelling). new_mean = arc_mean + sign*vertex_mean,
// new_std = sqrt(arc_sigma^2 + sign*vertex_sigma^2); the sign on the
// variance term is intentional so a paired +1/-1 fully reverses the
// mutation.
func (g *StationGraph) AdjustArcByVertex(tail, head, vertexID uint32, sign int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	a, ok := g.arcs[arcKey{tail, head}]
	if !ok {
		return false
	}
	v, ok := g.vertices[vertexID]
	if !ok {
		return false
	}
	if a.TransferTime.Kind() != distribution.Normal || v.ServiceTime.Kind() != distribution.Normal {
		return false
	}

	ap := a.TransferTime.Parameters()
	vp := v.ServiceTime.Parameters()
	s := float64(sign)
	newMean := ap[0] + s*vp[0]
	newVar := ap[1]*ap[1] + s*vp[1]*vp[1]
	newStd := 0.0
	if newVar > 0 {
		newStd = math.Sqrt(newVar)
	}
	a.TransferTime = distribution.NewNormal(newMean, newStd)
	g.cache.Flush()
	return true
}

// AdjustAllIncomingArcsBy applies AdjustArcByVertex(u, vertexID, vertexID,
// sign) for every incoming neighbour u of vertexID. A vertex with no
// incoming neighbours is a no-op.
func (g *StationGraph) AdjustAllIncomingArcsBy(vertexID uint32, sign int) {
	incoming := g.IncomingNeighbours(vertexID)
	for _, u := range incoming {
		g.AdjustArcByVertex(u, vertexID, vertexID, sign)
	}
}

// ShortestPath computes the minimum expected-time path from src to dst
// using Dijkstra over arc Expected() weights. src == dst yields ([src], 0).
// An unreachable dst is reported via ok=false.
func (g *StationGraph) ShortestPath(src, dst uint32) (Path, bool) {
	if src == dst {
		if _, ok := g.GetVertex(src); !ok {
			return Path{}, false
		}
		return Path{Stations: []uint32{src}, Length: 0}, true
	}

	if p, ok := g.cache.Get(src, dst); ok {
		return p, true
	}

	g.mu.RLock()
	if _, ok := g.vertices[src]; !ok {
		g.mu.RUnlock()
		return Path{}, false
	}
	if _, ok := g.vertices[dst]; !ok {
		g.mu.RUnlock()
		return Path{}, false
	}

	dist := make(map[uint32]float64, len(g.vertices))
	prev := make(map[uint32]uint32, len(g.vertices))
	visited := make(map[uint32]bool, len(g.vertices))
	for id := range g.vertices {
		dist[id] = math.Inf(1)
	}
	dist[src] = 0

	pq := &priorityQueue{{id: src, dist: 0}}
	heap.Init(pq)

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(pqItem)
		if visited[cur.id] {
			continue
		}
		visited[cur.id] = true
		if cur.id == dst {
			break
		}
		for _, next := range g.outgoing[cur.id] {
			arc := g.arcs[arcKey{cur.id, next}]
			w := arc.TransferTime.Expected()
			if w < 0 {
				w = 0
			}
			nd := dist[cur.id] + w
			if nd < dist[next] {
				dist[next] = nd
				prev[next] = cur.id
				heap.Push(pq, pqItem{id: next, dist: nd})
			}
		}
	}
	g.mu.RUnlock()

	if math.IsInf(dist[dst], 1) {
		return Path{}, false
	}

	var rev []uint32
	for v := dst; ; {
		rev = append(rev, v)
		if v == src {
			break
		}
		p, ok := prev[v]
		if !ok {
			break
		}
		v = p
	}
	path := make([]uint32, len(rev))
	for i, v := range rev {
		path[len(rev)-1-i] = v
	}

	result := Path{Stations: path, Length: dist[dst]}
	g.cache.Set(src, dst, result)
	return result, true
}

// NextHopTo returns the second station on the shortest path from current
// to target, or target itself if they are adjacent (path length 2) or
// identical (path length 1). Reports ok=false if target is unreachable.
func (g *StationGraph) NextHopTo(current, target uint32) (uint32, bool) {
	p, ok := g.ShortestPath(current, target)
	if !ok {
		return NoStation, false
	}
	if len(p.Stations) >= 2 {
		return p.Stations[1], true
	}
	return p.Stations[0], true
}

// VertexIDs returns every station id in insertion order.
func (g *StationGraph) VertexIDs() []uint32 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]uint32(nil), g.vertexOrder...)
}

func (s Station) String() string {
	return fmt.Sprintf("S%d: %s [cap=%d] %s", s.ID, s.Name, s.BufferCapacity, s.ServiceTime.String())
}

// --- priority queue ---

type pqItem struct {
	id   uint32
	dist float64
}

type priorityQueue []pqItem

func (pq priorityQueue) Len() int { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].dist != pq[j].dist {
		return pq[i].dist < pq[j].dist
	}
	return pq[i].id < pq[j].id
}
func (pq priorityQueue) Swap(i, j int) { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x interface{}) {
	*pq = append(*pq, x.(pqItem))
}
func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}

// --- default in-memory cache ---

type memCache struct {
	mu sync.RWMutex
	m  map[arcKey]Path
}

func newMemCache() *memCache {
	return &memCache{m: make(map[arcKey]Path)}
}

func (c *memCache) Get(tail, head uint32) (Path, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.m[arcKey{tail, head}]
	return p, ok
}

func (c *memCache) Set(tail, head uint32, p Path) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[arcKey{tail, head}] = p
}

func (c *memCache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m = make(map[arcKey]Path)
}
