package engine

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const namespace = "harvester.engine"

// engineMetrics are the counters the engine reports.
type engineMetrics struct {
	submitted   metric.Int64Counter
	rejected    metric.Int64Counter
	finished    metric.Int64Counter
	corrections metric.Int64Counter
	purged      metric.Int64Counter
	running     metric.Int64UpDownCounter
	duration    metric.Float64Histogram
}

func newEngineMetrics(mp metric.MeterProvider) (*engineMetrics, error) {
	meter := mp.Meter(namespace, metric.WithInstrumentationVersion("v0.1.0"))

	m := new(engineMetrics)
	var err error

	if m.submitted, err = meter.Int64Counter(
		"jobs_submitted_total",
		metric.WithDescription("Total number of jobs accepted by the engine"),
	); err != nil {
		return nil, err
	}

	if m.rejected, err = meter.Int64Counter(
		"jobs_rejected_total",
		metric.WithDescription("Total number of submissions refused by the engine"),
	); err != nil {
		return nil, err
	}

	if m.finished, err = meter.Int64Counter(
		"jobs_finished_total",
		metric.WithDescription("Total number of jobs reaching a terminal status"),
	); err != nil {
		return nil, err
	}

	if m.corrections, err = meter.Int64Counter(
		"monitor_corrections_total",
		metric.WithDescription("Total number of inconsistent jobs fixed by the monitor"),
	); err != nil {
		return nil, err
	}

	if m.purged, err = meter.Int64Counter(
		"jobs_purged_total",
		metric.WithDescription("Total number of done jobs evicted from the engine"),
	); err != nil {
		return nil, err
	}

	if m.running, err = meter.Int64UpDownCounter(
		"jobs_running",
		metric.WithDescription("Number of jobs currently holding a worker"),
	); err != nil {
		return nil, err
	}

	if m.duration, err = meter.Float64Histogram(
		"job_duration_seconds",
		metric.WithDescription("Time from job start to a terminal status"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *engineMetrics) incFinished(ctx context.Context, s Status) {
	m.finished.Add(ctx, 1, metric.WithAttributes(attribute.String("status", s.String())))
}

func (m *engineMetrics) incCorrection(ctx context.Context, kind string) {
	m.corrections.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *engineMetrics) incRejected(ctx context.Context, reason string) {
	m.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
