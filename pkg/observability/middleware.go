package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// ObservabilityMiddleware wraps the HTTP health/metrics server with a
// request id, a trace span, and a log line per request. The dispatcher's
// HTTP surface is two unauthenticated endpoints (health, metrics), so
// this carries none of a user-facing API gateway's auth/audit concerns.
type ObservabilityMiddleware struct {
	tracer        trace.Tracer
	logger        *Logger
	performanceLog *PerformanceLogger
	serviceName   string
	slowThreshold time.Duration
}

// MiddlewareConfig configures ObservabilityMiddleware.
type MiddlewareConfig struct {
	ServiceName   string
	SlowThreshold time.Duration
}

// NewObservabilityMiddleware builds a middleware instance.
func NewObservabilityMiddleware(logger *Logger, config MiddlewareConfig) *ObservabilityMiddleware {
	slowThreshold := config.SlowThreshold
	if slowThreshold == 0 {
		slowThreshold = 1 * time.Second
	}

	return &ObservabilityMiddleware{
		tracer:         otel.Tracer(config.ServiceName),
		logger:         logger,
		performanceLog: NewPerformanceLogger(logger),
		serviceName:    config.ServiceName,
		slowThreshold:  slowThreshold,
	}
}

// Wrap returns next instrumented with a request id header, a trace span,
// a completion log line, and a slow-operation warning when the request
// takes longer than the configured threshold.
func (om *ObservabilityMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := uuid.New().String()
		w.Header().Set("X-Request-ID", requestID)

		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := om.tracer.Start(ctx, fmt.Sprintf("%s %s", r.Method, r.URL.Path))
		defer span.End()

		span.SetAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.url", r.URL.String()),
			attribute.String("request.id", requestID),
			attribute.String("service.name", om.serviceName),
		)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		r = r.WithContext(ctx)

		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		span.SetAttributes(
			attribute.Int("http.status_code", rw.statusCode),
			attribute.Float64("http.duration_ms", float64(duration.Nanoseconds())/1e6),
		)
		if rw.statusCode >= 400 {
			span.SetAttributes(attribute.Bool("error", true))
		}

		logFields := map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status_code": rw.statusCode,
			"duration_ms": duration.Milliseconds(),
			"request_id":  requestID,
		}
		if rw.statusCode >= 400 {
			om.logger.Warn(ctx, "HTTP request completed with error", logFields)
		} else {
			om.logger.Info(ctx, "HTTP request completed", logFields)
		}

		if duration > om.slowThreshold {
			om.performanceLog.LogSlowOperation(ctx, fmt.Sprintf("%s %s", r.Method, r.URL.Path), duration, om.slowThreshold, logFields)
		}
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}
