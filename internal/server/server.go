// Package server implements MessageDispatcher: the TCP accept loop that
// reads framed station-action queries, invokes the dispatch engine, and
// writes framed responses.
package server

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stationmesh/dispatch/internal/config"
	"github.com/stationmesh/dispatch/internal/dispatch"
	"github.com/stationmesh/dispatch/internal/protocol"
	"github.com/stationmesh/dispatch/pkg/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// MessageDispatcher owns the TCP listener and fans connections out to
// one reader goroutine each. All of those goroutines share the single
// dispatch.Engine concurrently. The engine holds no lock of its own: each
// collaborator (graph, order pool, tray registry) guards its own state
// with its own mutex, so individual operations are atomic, but a whole
// decision is not serialised against decisions running on other
// connections.
type MessageDispatcher struct {
	engine    *dispatch.Engine
	logger    *observability.Logger
	metrics   *observability.MetricsProvider
	rateLimit config.RateLimitConfig
	tracer    trace.Tracer

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
}

// New builds a MessageDispatcher. metrics may be nil (metrics disabled).
func New(engine *dispatch.Engine, logger *observability.Logger, metrics *observability.MetricsProvider, rateLimit config.RateLimitConfig) *MessageDispatcher {
	return &MessageDispatcher{
		engine:    engine,
		logger:    logger,
		metrics:   metrics,
		rateLimit: rateLimit,
		tracer:    otel.Tracer("dispatch.server"),
	}
}

// ListenAndServe binds addr and accepts connections until ctx is
// cancelled. It blocks until the listener is closed and every active
// connection handler has returned, bounded by rateLimit.ShutdownGrace.
func (d *MessageDispatcher) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.listener = ln
	d.mu.Unlock()

	go func() {
		<-ctx.Done()
		d.mu.Lock()
		if d.listener != nil {
			d.listener.Close()
		}
		d.mu.Unlock()
	}()

	if d.logger != nil {
		d.logger.Info(ctx, "dispatcher listening", map[string]interface{}{"addr": addr})
	}

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				d.waitForHandlers()
				return nil
			default:
				return err
			}
		}

		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.handleConn(ctx, conn)
		}()
	}
}

func (d *MessageDispatcher) waitForHandlers() {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	grace := d.rateLimit.ShutdownGrace
	if grace <= 0 {
		grace = 5 * time.Second
	}
	select {
	case <-done:
	case <-time.After(grace):
		if d.logger != nil {
			d.logger.Warn(context.Background(), "dispatcher shutdown grace period expired with handlers still active", nil)
		}
	}
}

type connectionIDKey struct{}

func (d *MessageDispatcher) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	connID := uuid.New().String()
	if d.metrics != nil {
		d.metrics.IncrementConnections()
		defer d.metrics.DecrementConnections()
	}

	rps := d.rateLimit.RequestsPerSecond
	if rps <= 0 {
		rps = 200
	}
	burst := d.rateLimit.Burst
	if burst <= 0 {
		burst = 50
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	connCtx := context.WithValue(ctx, connectionIDKey{}, connID)

	if d.logger != nil {
		d.logger.Info(connCtx, "station connection opened", map[string]interface{}{
			"connection_id": connID,
			"remote_addr":   conn.RemoteAddr().String(),
		})
	}

	for {
		if err := limiter.Wait(connCtx); err != nil {
			return
		}

		frame, err := protocol.ReadFrame(conn)
		if err != nil {
			if d.logger != nil {
				d.logger.Debug(connCtx, "station connection closed", map[string]interface{}{"connection_id": connID})
			}
			return
		}

		rsp, ok := d.dispatch(connCtx, frame)
		if !ok {
			continue
		}

		if err := protocol.WriteFrame(conn, protocol.Frame{Type: protocol.TypeActionRsp, Payload: protocol.EncodeActionRsp(rsp)}); err != nil {
			if d.logger != nil {
				d.logger.Warn(connCtx, "failed writing response frame", map[string]interface{}{"connection_id": connID, "error": err.Error()})
			}
			return
		}
	}
}

func (d *MessageDispatcher) dispatch(ctx context.Context, frame protocol.Frame) (protocol.ActionRsp, bool) {
	switch frame.Type {
	case protocol.TypeActionQuery:
		q, err := protocol.DecodeActionQuery(frame.Payload)
		if err != nil {
			return protocol.ActionRsp{}, false
		}
		ctx, span := d.tracer.Start(ctx, "ACTION_QUERY", trace.WithAttributes(
			attribute.Int64("workstation_id", int64(q.WorkstationID)),
			attribute.Int64("tray_id", int64(q.TrayID)),
		))
		defer span.End()
		rsp := d.engine.OnActionQuery(ctx, q)
		d.recordDecision(rsp)
		return rsp, true

	case protocol.TypeActionDoneQuery:
		q, err := protocol.DecodeActionQuery(frame.Payload)
		if err != nil {
			return protocol.ActionRsp{}, false
		}
		ctx, span := d.tracer.Start(ctx, "ACTION_DONE_QUERY", trace.WithAttributes(
			attribute.Int64("workstation_id", int64(q.WorkstationID)),
			attribute.Int64("tray_id", int64(q.TrayID)),
		))
		defer span.End()
		rsp := d.engine.OnActionDoneQuery(ctx, q)
		d.recordDecision(rsp)
		return rsp, true

	default:
		if d.logger != nil {
			d.logger.Warn(ctx, "unknown message type", map[string]interface{}{"type": frame.Type})
		}
		return protocol.ActionRsp{}, false
	}
}

func (d *MessageDispatcher) recordDecision(rsp protocol.ActionRsp) {
	if d.metrics == nil {
		return
	}
	if rsp.Action == protocol.Execute {
		d.metrics.RecordDispatchDecision("execute")
	} else {
		d.metrics.RecordDispatchDecision("release")
	}
}
