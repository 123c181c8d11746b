// Package telemetry exports device activity counters over OTLP.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/twobottle/fedcore/fed"
)

// ScopeName is the instrumentation scope of the device meter.
const ScopeName = "github.com/twobottle/fedcore/fed"

// Shutdown flushes and stops the exporter.
type Shutdown func(ctx context.Context) error

// Init installs a global meter provider exporting to endpoint.
// With an empty endpoint nothing is exported and the no-op provider stays.
func Init(ctx context.Context, endpoint, serviceName, version string, insecure bool) (Shutdown, error) {
	if endpoint == "" {
		return func(ctx context.Context) error { return nil }, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create resource: %w", err)
	}

	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(endpoint)}
	if insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exp, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create metric exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(15*time.Second))),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)
	return mp.Shutdown, nil
}

// Meter returns the global meter for the device scope.
func Meter() metric.Meter {
	return otel.GetMeterProvider().Meter(ScopeName)
}

// Instruments implements fed.Observer with OTel counters.
type Instruments struct {
	events           metric.Int64Counter
	deliveryFailures metric.Int64Counter
	appendFailures   metric.Int64Counter
	modeChanges      metric.Int64Counter
	attrs            []attribute.KeyValue
}

// NewInstruments creates the counters on m. deviceID and sessionType are
// attached to every measurement.
func NewInstruments(m metric.Meter, deviceID int, sessionType string) (*Instruments, error) {
	events, err := m.Int64Counter("fed.events",
		metric.WithDescription("Classified events by kind and side"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: events counter: %w", err)
	}
	deliveryFailures, err := m.Int64Counter("fed.delivery.failures",
		metric.WithDescription("Deliveries not confirmed after all attempts"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: delivery failures counter: %w", err)
	}
	appendFailures, err := m.Int64Counter("fed.record.append_failures",
		metric.WithDescription("Records that could not be stored"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: append failures counter: %w", err)
	}
	modeChanges, err := m.Int64Counter("fed.mode.changes",
		metric.WithDescription("Session mode transitions"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: mode changes counter: %w", err)
	}
	return &Instruments{
		events:           events,
		deliveryFailures: deliveryFailures,
		appendFailures:   appendFailures,
		modeChanges:      modeChanges,
		attrs: []attribute.KeyValue{
			attribute.Int("device", deviceID),
			attribute.String("session_type", sessionType),
		},
	}, nil
}

func (i *Instruments) with(kv ...attribute.KeyValue) metric.AddOption {
	return metric.WithAttributes(append(append([]attribute.KeyValue{}, i.attrs...), kv...)...)
}

func (i *Instruments) EventRecorded(e fed.Event) {
	i.events.Add(context.Background(), 1, i.with(
		attribute.String("kind", e.Kind.String()),
		attribute.String("side", e.Side.String()),
	))
}

func (i *Instruments) DeliveryFailed(side fed.Side) {
	i.deliveryFailures.Add(context.Background(), 1, i.with(attribute.String("side", side.String())))
}

func (i *Instruments) AppendFailed() {
	i.appendFailures.Add(context.Background(), 1, i.with())
}

func (i *Instruments) ModeChanged(m fed.Mode) {
	i.modeChanges.Add(context.Background(), 1, i.with(attribute.String("mode", m.String())))
}
