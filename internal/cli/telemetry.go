package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"github.com/randalmurphal/stategraph/pkg/stategraph"
	"github.com/randalmurphal/stategraph/pkg/stategraph/observability"
)

const serviceName = "stategraph"

// telemetry owns the SDK providers installed for one CLI invocation.
type telemetry struct {
	tracer *sdktrace.TracerProvider
	meter  *sdkmetric.MeterProvider
	reader *sdkmetric.ManualReader
}

// setupTelemetry installs an OTLP/HTTP trace exporter when endpoint is set
// and a manual metric reader when withMetrics is true. It returns the run
// options that wire them into the scheduler.
func setupTelemetry(ctx context.Context, endpoint string, withMetrics bool) (*telemetry, []stategraph.Option, error) {
	t := &telemetry{}
	var opts []stategraph.Option

	if endpoint != "" {
		exporter, err := newTraceExporter(ctx, endpoint)
		if err != nil {
			return nil, nil, fmt.Errorf("create OTLP exporter: %w", err)
		}
		res := resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(serviceName))
		t.tracer = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
		)
		opts = append(opts, stategraph.WithTracing(observability.NewSpanManagerFromProvider(t.tracer)))
	}

	if withMetrics {
		t.reader = sdkmetric.NewManualReader()
		t.meter = sdkmetric.NewMeterProvider(sdkmetric.WithReader(t.reader))
		recorder, err := observability.NewMetricsRecorderFromMeter(t.meter.Meter(serviceName))
		if err != nil {
			_ = t.shutdown(ctx)
			return nil, nil, fmt.Errorf("create metrics recorder: %w", err)
		}
		opts = append(opts, stategraph.WithMetrics(recorder))
	}

	return t, opts, nil
}

func newTraceExporter(ctx context.Context, endpoint string) (*otlptrace.Exporter, error) {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
	}
	// host:port only; the exporter adds the path.
	return otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
}

// printMetrics writes a one-line summary per collected instrument.
func (t *telemetry) printMetrics(ctx context.Context, w io.Writer) error {
	if t.reader == nil {
		return nil
	}
	var rm metricdata.ResourceMetrics
	if err := t.reader.Collect(ctx, &rm); err != nil {
		return fmt.Errorf("collect metrics: %w", err)
	}

	var lines []string
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				var total int64
				for _, dp := range data.DataPoints {
					total += dp.Value
				}
				lines = append(lines, fmt.Sprintf("%-32s %d", m.Name, total))
			case metricdata.Histogram[float64]:
				var count uint64
				var sum float64
				for _, dp := range data.DataPoints {
					count += dp.Count
					sum += dp.Sum
				}
				lines = append(lines, fmt.Sprintf("%-32s count=%d sum=%.2f", m.Name, count, sum))
			case metricdata.Histogram[int64]:
				var count uint64
				var sum int64
				for _, dp := range data.DataPoints {
					count += dp.Count
					sum += dp.Sum
				}
				lines = append(lines, fmt.Sprintf("%-32s count=%d sum=%d", m.Name, count, sum))
			}
		}
	}
	sort.Strings(lines)

	fmt.Fprintln(w, "metrics:")
	for _, l := range lines {
		fmt.Fprintln(w, "  "+l)
	}
	return nil
}

// shutdown flushes and stops every installed provider.
func (t *telemetry) shutdown(ctx context.Context) error {
	var errs []error
	if t.tracer != nil {
		errs = append(errs, t.tracer.Shutdown(ctx))
	}
	if t.meter != nil {
		errs = append(errs, t.meter.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
