// Package observe provides the OpenTelemetry metric instruments recorded by
// calibration, the frame loop and the transport layer, plus a Prometheus
// exporter bridge so they can be scraped from /metrics.
//
// Tests should build their own [Metrics] with [NewMetrics] and a
// ManualReader-backed provider instead of using [DefaultMetrics].
package observe

import (
	"context"
	"strconv"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/ayusman/ivory"

// Metrics holds all metric instruments for the application. The instruments
// are safe for concurrent use.
type Metrics struct {
	// CalibrationAttempts counts calibration attempts. Use with attributes
	// result ("accepted", "failed", "rejected") and code.
	CalibrationAttempts metric.Int64Counter

	// CalibrationDuration tracks the wall time of a full calibration run.
	CalibrationDuration metric.Float64Histogram

	// FramesProcessed counts frames that went through detection and
	// matching.
	FramesProcessed metric.Int64Counter

	// MatchDuration tracks per-frame key matching latency.
	MatchDuration metric.Float64Histogram

	// FingertipsMatched counts fingertip slots resolved to a key.
	FingertipsMatched metric.Int64Counter

	// TransmitErrors counts failed sends. Use with attribute sender.
	TransmitErrors metric.Int64Counter
}

// matchBuckets are in seconds; matching is sub-millisecond when healthy.
var matchBuckets = []float64{
	0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01,
}

var calibrationBuckets = []float64{
	1, 5, 10, 20, 30, 60, 120, 300,
}

// NewMetrics creates all instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.CalibrationAttempts, err = m.Int64Counter("ivory.calibration.attempts",
		metric.WithDescription("Calibration attempts by result and error code."),
	); err != nil {
		return nil, err
	}
	if met.CalibrationDuration, err = m.Float64Histogram("ivory.calibration.duration",
		metric.WithDescription("Wall time of a calibration run."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(calibrationBuckets...),
	); err != nil {
		return nil, err
	}
	if met.FramesProcessed, err = m.Int64Counter("ivory.frames.processed",
		metric.WithDescription("Camera frames run through detection and matching."),
	); err != nil {
		return nil, err
	}
	if met.MatchDuration, err = m.Float64Histogram("ivory.match.duration",
		metric.WithDescription("Latency of matching one frame of fingertips to keys."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(matchBuckets...),
	); err != nil {
		return nil, err
	}
	if met.FingertipsMatched, err = m.Int64Counter("ivory.fingertips.matched",
		metric.WithDescription("Fingertip slots resolved to a key."),
	); err != nil {
		return nil, err
	}
	if met.TransmitErrors, err = m.Int64Counter("ivory.transmit.errors",
		metric.WithDescription("Failed result or error-code transmissions by sender."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level Metrics built on the global meter
// provider. Call InitProvider first so the instruments are exported.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordCalibrationAttempt increments the attempt counter. code is ignored
// for accepted attempts.
func (m *Metrics) RecordCalibrationAttempt(ctx context.Context, result string, code int) {
	attrs := []attribute.KeyValue{attribute.String("result", result)}
	if result != "accepted" {
		attrs = append(attrs, attribute.String("code", strconv.Itoa(code)))
	}
	m.CalibrationAttempts.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordTransmitError increments the transmit error counter for sender.
func (m *Metrics) RecordTransmitError(ctx context.Context, sender string) {
	m.TransmitErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("sender", sender)))
}
