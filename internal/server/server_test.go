package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stationmesh/dispatch/internal/config"
	"github.com/stationmesh/dispatch/internal/dispatch"
	"github.com/stationmesh/dispatch/internal/order"
	"github.com/stationmesh/dispatch/internal/process"
	"github.com/stationmesh/dispatch/internal/product"
	"github.com/stationmesh/dispatch/internal/protocol"
	"github.com/stationmesh/dispatch/internal/stationgraph"
	"github.com/stationmesh/dispatch/internal/tray"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *dispatch.Engine {
	t.Helper()

	g := stationgraph.New()
	g.AddVertex(stationgraph.Station{ID: 1, Name: "A", BufferCapacity: 5})

	orders := order.NewManager(nil)
	lookup := func(orderID uint32) (process.OrderView, bool) {
		o, ok := orders.GetOrder(orderID)
		if !ok {
			return process.OrderView{}, false
		}
		return process.OrderView{ExecutedProcesses: o.ExecutedProcesses}, true
	}

	prod := product.New(1, "widget", nil)
	procs := process.New(map[uint32][]uint8{1: {0}}, []uint32{1}, prod, lookup)
	trays := tray.NewRegistry()

	return dispatch.New(g, orders, procs, trays, nil)
}

func TestMessageDispatcherRoundTrip(t *testing.T) {
	engine := newTestEngine(t)
	d := New(engine, nil, nil, config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000, ShutdownGrace: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	errCh := make(chan error, 1)
	go func() { errCh <- d.ListenAndServe(ctx, addr) }()

	var conn net.Conn
	for i := 0; i < 50; i++ {
		conn, err = net.Dial("tcp", addr)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	require.NoError(t, err)
	defer conn.Close()

	q := protocol.ActionQuery{WorkstationID: 1, TrayID: 7}
	frame := protocol.Frame{Type: protocol.TypeActionQuery, Payload: protocol.EncodeActionQuery(q)}
	require.NoError(t, protocol.WriteFrame(conn, frame))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	rspFrame, err := protocol.ReadFrame(conn)
	require.NoError(t, err)
	require.Equal(t, protocol.TypeActionRsp, rspFrame.Type)

	rsp, err := protocol.DecodeActionRsp(rspFrame.Payload)
	require.NoError(t, err)
	require.Equal(t, q, rsp.Query)

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("dispatcher did not shut down in time")
	}
}
