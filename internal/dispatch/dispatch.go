// Package dispatch implements the decision engine tying together the
// station graph, order pool, process manager, and tray registry: the two
// query handlers that turn a station action query into a dispatch
// decision.
package dispatch

import (
	"context"

	"github.com/stationmesh/dispatch/internal/order"
	"github.com/stationmesh/dispatch/internal/process"
	"github.com/stationmesh/dispatch/internal/protocol"
	"github.com/stationmesh/dispatch/internal/stationgraph"
	"github.com/stationmesh/dispatch/internal/tray"
	"github.com/stationmesh/dispatch/pkg/observability"
)

// Engine holds the collaborators a dispatch decision needs. Each is
// injected independently rather than reached through a shared owner —
// the source this was distilled from routes the process manager back
// through the server to reach the order manager; Engine instead holds
// both directly.
type Engine struct {
	Graph     *stationgraph.StationGraph
	Orders    *order.Manager
	Processes *process.Manager
	Trays     *tray.Registry

	Logger *observability.Logger
	Audit  *observability.AuditLogger
}

// New builds a dispatch engine from its collaborators. logger may be nil
// in tests; the engine then skips logging and audit entries.
func New(graph *stationgraph.StationGraph, orders *order.Manager, processes *process.Manager, trays *tray.Registry, logger *observability.Logger) *Engine {
	e := &Engine{
		Graph:     graph,
		Orders:    orders,
		Processes: processes,
		Trays:     trays,
		Logger:    logger,
	}
	if logger != nil {
		e.Audit = observability.NewAuditLogger(logger)
	}
	return e
}

// DefaultNextStation computes the fallback next station used when no
// stronger routing information is available.
func (e *Engine) DefaultNextStation(w uint32) uint32 {
	r := e.Processes.DefaultReturningStation()
	if w != r {
		next, ok := e.Graph.NextHopTo(w, r)
		if !ok {
			return protocol.NoID
		}
		return next
	}
	outgoing := e.Graph.OutgoingNeighbours(w)
	if len(outgoing) == 0 {
		return protocol.NoID
	}
	return outgoing[0]
}

func (e *Engine) seedResponse(q protocol.ActionQuery, info tray.Info) protocol.ActionRsp {
	orderID := protocol.NoID
	if info.ExecutingOrder {
		orderID = info.CurrentOrderID
	}
	return protocol.ActionRsp{
		Query:         q,
		OrderID:       orderID,
		Action:        protocol.Release,
		NextStationID: e.DefaultNextStation(q.WorkstationID),
	}
}

// OnActionQuery handles ACTION_QUERY: a tray has just arrived at a
// station and wants to know what to do.
func (e *Engine) OnActionQuery(ctx context.Context, q protocol.ActionQuery) protocol.ActionRsp {
	e.Trays.GetOrCreate(q.TrayID)
	info := e.Trays.Snapshot(q.TrayID)
	rsp := e.seedResponse(q, info)

	if !info.ExecutingOrder {
		if !e.Processes.IsOrderAssigningStation(q.WorkstationID) {
			e.logf(ctx, "tray not at order-assigning station, default release", q, rsp)
			return rsp
		}
		if e.Orders.WaitingCount() == 0 {
			e.logf(ctx, "no order waiting, default release", q, rsp)
			return rsp
		}
		orderID, ok := e.Orders.TryAssignToTray(ctx, q.TrayID)
		if !ok {
			e.logf(ctx, "assigning order failed, default release", q, rsp)
			return rsp
		}
		e.Trays.Assign(q.TrayID, orderID)
		rsp.OrderID = orderID
		return e.continueExecutingOrder(ctx, q, orderID, rsp)
	}

	return e.continueExecutingOrder(ctx, q, info.CurrentOrderID, rsp)
}

// continueExecutingOrder implements the shared "tray has (or was just
// given) an executing order" branch of Handler A.
func (e *Engine) continueExecutingOrder(ctx context.Context, q protocol.ActionQuery, orderID uint32, rsp protocol.ActionRsp) protocol.ActionRsp {
	proc, ok := e.Processes.NextProcessFor(orderID)
	if !ok {
		e.Orders.Finish(ctx, orderID)
		e.Trays.Reset(q.TrayID)
		rsp.OrderID = protocol.NoID
		e.logf(ctx, "order finished, tray reset", q, rsp)
		return rsp
	}

	if !e.Processes.CanStationExecute(proc, q.WorkstationID) {
		next, ok := e.planRouteToProcess(q.WorkstationID, proc)
		if !ok {
			rsp.OrderID = protocol.NoID
			e.logf(ctx, "no capable/reachable station, default release", q, rsp)
			return rsp
		}
		rsp.Action = protocol.Release
		rsp.NextStationID = next
		e.logf(ctx, "routing tray toward capable station", q, rsp)
		return rsp
	}

	rsp.Action = protocol.Execute
	e.Graph.AdjustAllIncomingArcsBy(q.WorkstationID, +1)
	e.logf(ctx, "executing process at station", q, rsp)
	return rsp
}

// OnActionDoneQuery handles ACTION_DONE_QUERY: a tray finished its local
// work at a station.
func (e *Engine) OnActionDoneQuery(ctx context.Context, q protocol.ActionQuery) protocol.ActionRsp {
	info := e.Trays.Snapshot(q.TrayID)
	rsp := e.seedResponse(q, info)

	if !info.ExecutingOrder {
		if e.Logger != nil {
			e.Logger.Error(ctx, "action-done query for tray with no executing order", nil, map[string]interface{}{
				"workstation_id": q.WorkstationID,
				"tray_id":        q.TrayID,
			})
		}
		return e.OnActionQuery(ctx, q)
	}

	completed, ok := e.Processes.StationSoleCapability(q.WorkstationID)
	if ok {
		e.Orders.RecordProcessSuccess(info.CurrentOrderID, completed)
	}
	e.Graph.AdjustAllIncomingArcsBy(q.WorkstationID, -1)

	return e.OnActionQuery(ctx, q)
}

// planRouteToProcess enumerates the stations capable of proc, picks the
// one with minimum expected shortest-path length from current, and
// returns the next hop toward it.
func (e *Engine) planRouteToProcess(current uint32, proc uint8) (uint32, bool) {
	candidates, ok := e.Processes.StationsCapableOf(proc)
	if !ok {
		return protocol.NoID, false
	}

	bestLen := -1.0
	bestTarget := protocol.NoID
	for _, c := range candidates {
		p, ok := e.Graph.ShortestPath(current, c)
		if !ok {
			continue
		}
		if bestTarget == protocol.NoID || p.Length < bestLen {
			bestLen = p.Length
			bestTarget = c
		}
	}
	if bestTarget == protocol.NoID {
		return protocol.NoID, false
	}

	next, ok := e.Graph.NextHopTo(current, bestTarget)
	if !ok {
		return protocol.NoID, false
	}
	return next, true
}

func (e *Engine) logf(ctx context.Context, msg string, q protocol.ActionQuery, rsp protocol.ActionRsp) {
	if e.Logger != nil {
		e.Logger.Info(ctx, msg, map[string]interface{}{
			"workstation_id": q.WorkstationID,
			"tray_id":        q.TrayID,
		})
	}
	if e.Audit != nil {
		e.Audit.LogSystemEvent(ctx, msg, "dispatch", map[string]interface{}{
			"order_id":        rsp.OrderID,
			"action_type":     rsp.Action,
			"next_station_id": rsp.NextStationID,
		})
	}
}
