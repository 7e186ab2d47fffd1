package dispatch

import (
	"context"
	"testing"

	"github.com/stationmesh/dispatch/internal/order"
	"github.com/stationmesh/dispatch/internal/process"
	"github.com/stationmesh/dispatch/internal/product"
	"github.com/stationmesh/dispatch/internal/protocol"
	"github.com/stationmesh/dispatch/internal/stationgraph"
	"github.com/stationmesh/dispatch/internal/distribution"
	"github.com/stationmesh/dispatch/internal/tray"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildScenario constructs the 3-station graph A(1)->B(2)->C(3) with
// normal(5,1) arcs, service times constant 0, A the sole order-assigning
// station, one product [p1, p2], capabilities {A: [], B: [p1], C: [p2]}.
func buildScenario(t *testing.T) (*Engine, *order.Manager) {
	t.Helper()

	g := stationgraph.New()
	g.AddVertex(stationgraph.Station{ID: 1, Name: "A", ServiceTime: distribution.NewConstant(0)})
	g.AddVertex(stationgraph.Station{ID: 2, Name: "B", ServiceTime: distribution.NewConstant(0)})
	g.AddVertex(stationgraph.Station{ID: 3, Name: "C", ServiceTime: distribution.NewConstant(0)})
	g.AddArc(stationgraph.Transfer{Tail: 1, Head: 2, TransferTime: distribution.NewNormal(5, 1)})
	g.AddArc(stationgraph.Transfer{Tail: 2, Head: 3, TransferTime: distribution.NewNormal(5, 1)})
	// Trays physically return to the order-assigning station via a third
	// transfer link, closing the loop C->A.
	g.AddArc(stationgraph.Transfer{Tail: 3, Head: 1, TransferTime: distribution.NewNormal(5, 1)})

	orders := order.NewManager(nil)

	prod := product.New(1, "widget", []uint8{1, 2})
	caps := map[uint32][]uint8{
		1: {},
		2: {1},
		3: {2},
	}
	lookup := func(id uint32) (process.OrderView, bool) {
		o, ok := orders.GetOrder(id)
		if !ok {
			return process.OrderView{}, false
		}
		return process.OrderView{ExecutedProcesses: o.ExecutedProcesses}, true
	}
	procs := process.New(caps, []uint32{1}, prod, lookup)

	trays := tray.NewRegistry()

	return New(g, orders, procs, trays, nil), orders
}

func TestScenario1_NoWaitingOrders(t *testing.T) {
	e, _ := buildScenario(t)
	rsp := e.OnActionQuery(context.Background(), protocol.ActionQuery{WorkstationID: 1, TrayID: 7})
	assert.Equal(t, protocol.NoID, rsp.OrderID)
	assert.Equal(t, protocol.Release, rsp.Action)
	assert.Equal(t, uint32(2), rsp.NextStationID)
}

func TestScenario2_AssignAndRouteTowardB(t *testing.T) {
	e, orders := buildScenario(t)
	id := orders.CreateOrder(1)

	rsp := e.OnActionQuery(context.Background(), protocol.ActionQuery{WorkstationID: 1, TrayID: 7})
	assert.Equal(t, id, rsp.OrderID)
	assert.Equal(t, protocol.Release, rsp.Action)
	assert.Equal(t, uint32(2), rsp.NextStationID)
	assert.Equal(t, 0, orders.WaitingCount())
}

func TestScenario3_ExecuteAtB(t *testing.T) {
	e, orders := buildScenario(t)
	// Arc reweighting only applies to normal service times; give B one so
	// the inflation of its incoming arc is observable.
	e.Graph.SetVertexDist(2, distribution.NewNormal(2, 1))
	orders.CreateOrder(1)
	e.OnActionQuery(context.Background(), protocol.ActionQuery{WorkstationID: 1, TrayID: 7})

	rsp := e.OnActionQuery(context.Background(), protocol.ActionQuery{WorkstationID: 2, TrayID: 7})
	assert.Equal(t, uint32(1), rsp.OrderID)
	assert.Equal(t, protocol.Execute, rsp.Action)

	arc, ok := e.Graph.GetArc(1, 2)
	require.True(t, ok)
	assert.NotEqual(t, 5.0, arc.TransferTime.Expected())
}

func TestScenario4_DoneAtBRoutesTowardC(t *testing.T) {
	e, orders := buildScenario(t)
	orders.CreateOrder(1)
	e.OnActionQuery(context.Background(), protocol.ActionQuery{WorkstationID: 1, TrayID: 7})
	e.OnActionQuery(context.Background(), protocol.ActionQuery{WorkstationID: 2, TrayID: 7})

	rsp := e.OnActionDoneQuery(context.Background(), protocol.ActionQuery{WorkstationID: 2, TrayID: 7})
	assert.Equal(t, uint32(1), rsp.OrderID)
	assert.Equal(t, protocol.Release, rsp.Action)
	assert.Equal(t, uint32(3), rsp.NextStationID)

	o, _ := orders.GetOrder(1)
	assert.Equal(t, []uint8{1}, o.ExecutedProcesses)

	arc, _ := e.Graph.GetArc(1, 2)
	assert.InDelta(t, 5.0, arc.TransferTime.Expected(), 1e-9)
}

func TestScenario5_FinishAtCReturnsHome(t *testing.T) {
	e, orders := buildScenario(t)
	orders.CreateOrder(1)
	e.OnActionQuery(context.Background(), protocol.ActionQuery{WorkstationID: 1, TrayID: 7})
	e.OnActionQuery(context.Background(), protocol.ActionQuery{WorkstationID: 2, TrayID: 7})
	e.OnActionDoneQuery(context.Background(), protocol.ActionQuery{WorkstationID: 2, TrayID: 7})
	e.OnActionQuery(context.Background(), protocol.ActionQuery{WorkstationID: 3, TrayID: 7})

	rsp := e.OnActionDoneQuery(context.Background(), protocol.ActionQuery{WorkstationID: 3, TrayID: 7})
	assert.Equal(t, protocol.NoID, rsp.OrderID)
	assert.Equal(t, uint32(1), rsp.NextStationID) // default returning station A

	o, _ := orders.GetOrder(1)
	assert.Equal(t, []uint8{1, 2}, o.ExecutedProcesses)
	assert.True(t, orders.IsDone(1))
}

func TestScenario6_UnreachableStationFallsBackToDefault(t *testing.T) {
	e, orders := buildScenario(t)
	e.Graph.AddVertex(stationgraph.Station{ID: 4, Name: "D", ServiceTime: distribution.NewConstant(0)})
	// D alone advertises p2 but has no incoming arcs, so it is unreachable
	// from anywhere; C no longer advertises p2, so no capable station is
	// reachable and planRouteToProcess must fail outright.
	e.Processes = process.New(map[uint32][]uint8{
		1: {},
		2: {1},
		3: {},
		4: {2},
	}, []uint32{1}, product.New(1, "widget", []uint8{1, 2}), func(id uint32) (process.OrderView, bool) {
		o, ok := orders.GetOrder(id)
		if !ok {
			return process.OrderView{}, false
		}
		return process.OrderView{ExecutedProcesses: o.ExecutedProcesses}, true
	})

	_, ok := e.planRouteToProcess(1, 2)
	assert.False(t, ok) // no capable station is reachable; caller must fall back to the default

	orderID := orders.CreateOrder(1)
	rsp := e.OnActionQuery(context.Background(), protocol.ActionQuery{WorkstationID: 1, TrayID: 7})
	require.Equal(t, orderID, rsp.OrderID)
	rsp = e.OnActionQuery(context.Background(), protocol.ActionQuery{WorkstationID: 2, TrayID: 7})
	require.Equal(t, protocol.Execute, rsp.Action)

	rsp = e.OnActionDoneQuery(context.Background(), protocol.ActionQuery{WorkstationID: 2, TrayID: 7})
	assert.Equal(t, protocol.Release, rsp.Action)
	assert.Equal(t, e.DefaultNextStation(2), rsp.NextStationID) // no reachable capable station, falls back to default
}

func TestActionDoneQueryWithNoExecutingOrderFallsThrough(t *testing.T) {
	e, _ := buildScenario(t)
	rsp := e.OnActionDoneQuery(context.Background(), protocol.ActionQuery{WorkstationID: 1, TrayID: 99})
	assert.Equal(t, protocol.NoID, rsp.OrderID)
	assert.Equal(t, protocol.Release, rsp.Action)
}
