// Package telemetry wires go.opentelemetry.io/otel tracing and metrics
// for flurecore: spans around an indexer refresh pass and policy
// equals-path evaluation, and counters for novelty bytes, indexed flakes
// and query fuel exhaustion, grounded on the teacher's
// internal/storage/dolt package, which registers a package-level
// otel.Tracer/otel.Meter against the global delegating provider at
// init time so instruments work whether or not a real provider has been
// installed — Init here is the missing piece that installs one, using the
// stdout exporters the teacher's go.mod already carries for local/dev use.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Tracer is the package-level tracer every flurecore component spans
// against; it forwards to the global provider, which is a no-op until
// Init runs, matching the teacher's doltTracer convention.
var Tracer = otel.Tracer("github.com/fluree/flurecore")

// Meter is the package-level meter for flurecore's counters/histograms.
var Meter = otel.Meter("github.com/fluree/flurecore")

// Shutdown flushes and stops the providers installed by Init.
type Shutdown func(ctx context.Context) error

// Init installs stdout-exporting trace and metric providers writing JSON
// spans/metrics to w, returning a Shutdown to flush and stop them. Passing
// a nil w defaults to os.Stderr, keeping operator output separate from
// query results on stdout.
func Init(w io.Writer) (Shutdown, error) {
	if w == nil {
		w = os.Stderr
	}

	traceExp, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("telemetry: new trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(traceExp))
	otel.SetTracerProvider(tp)

	metricExp, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("telemetry: new metric exporter: %w", err)
	}
	mp := metric.NewMeterProvider(metric.WithReader(metric.NewPeriodicReader(metricExp)))
	otel.SetMeterProvider(mp)

	return func(ctx context.Context) error {
		if err := tp.Shutdown(ctx); err != nil {
			return fmt.Errorf("telemetry: shutdown tracer provider: %w", err)
		}
		if err := mp.Shutdown(ctx); err != nil {
			return fmt.Errorf("telemetry: shutdown meter provider: %w", err)
		}
		return nil
	}, nil
}
