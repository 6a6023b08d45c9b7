package telemetry

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const (
	// HTTPInstrumentationName names the tracer and meter of the API server
	HTTPInstrumentationName = "github.com/stacklok/plugin-updater/http"

	// unknownRoute replaces unmatched paths to keep cardinality bounded
	unknownRoute = "unknown_route"
)

// AttrComponent carries the component addressed by an API request
var AttrComponent = attribute.Key("plugin_updater.component")

// httpDurationBuckets reach 15 minutes because a submit with ?wait=true holds the
// request until the run finishes
var httpDurationBuckets = []float64{0.005, 0.025, 0.1, 0.5, 1, 5, 30, 60, 300, 900}

// HTTPInstrumentation traces and measures API requests
type HTTPInstrumentation struct {
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator

	duration metric.Float64Histogram
	requests metric.Int64Counter
	inFlight metric.Int64UpDownCounter
}

// NewHTTPInstrumentation creates the instruments. A nil provider disables that half.
func NewHTTPInstrumentation(tp trace.TracerProvider, mp metric.MeterProvider) (*HTTPInstrumentation, error) {
	if tp == nil {
		tp = tracenoop.NewTracerProvider()
	}
	if mp == nil {
		mp = metricnoop.NewMeterProvider()
	}
	meter := mp.Meter(HTTPInstrumentationName)

	duration, err := meter.Float64Histogram(
		"plugin_updater_http_request_duration_seconds",
		metric.WithDescription("Duration of API requests in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(httpDurationBuckets...),
	)
	if err != nil {
		return nil, err
	}

	requests, err := meter.Int64Counter(
		"plugin_updater_http_requests_total",
		metric.WithDescription("Total number of API requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	inFlight, err := meter.Int64UpDownCounter(
		"plugin_updater_http_active_requests",
		metric.WithDescription("Number of API requests being served, including waiting submits"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return &HTTPInstrumentation{
		tracer:     tp.Tracer(HTTPInstrumentationName),
		propagator: otel.GetTextMapPropagator(),
		duration:   duration,
		requests:   requests,
		inFlight:   inFlight,
	}, nil
}

// Middleware must be installed on the chi router so the route pattern and the
// component name are known once the request has been served
func (h *HTTPInstrumentation) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := h.propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		ctx, span := h.tracer.Start(ctx, r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(r.Method),
				semconv.URLPath(r.URL.Path),
				semconv.UserAgentOriginal(r.UserAgent()),
			),
		)
		defer span.End()

		h.inFlight.Add(ctx, 1)
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))
		h.inFlight.Add(ctx, -1)

		route, component := routeOf(r)
		statusCode := ww.Status()

		span.SetName(fmt.Sprintf("%s %s", r.Method, route))
		span.SetAttributes(
			semconv.HTTPRouteKey.String(route),
			semconv.HTTPResponseStatusCode(statusCode),
		)
		if component != "" {
			span.SetAttributes(AttrComponent.String(component))
		}
		if statusCode >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(statusCode))
		}

		attrs := metric.WithAttributes(
			attribute.String("method", r.Method),
			attribute.String("route", route),
			attribute.String("status_code", strconv.Itoa(statusCode)),
		)
		h.duration.Record(ctx, time.Since(start).Seconds(), attrs)
		h.requests.Add(ctx, 1, attrs)
	})
}

// routeOf returns the matched chi pattern and the {name} parameter, if any
func routeOf(r *http.Request) (route, component string) {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil || rctx.RoutePattern() == "" {
		return unknownRoute, ""
	}
	return rctx.RoutePattern(), rctx.URLParam("name")
}
