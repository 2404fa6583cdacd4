package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// JobInstrumenter traces scheduled jobs and records their duration through
// the global OpenTelemetry providers installed by Setup.
type JobInstrumenter struct {
	tracer      trace.Tracer
	jobDuration metric.Float64Histogram
	jobsTotal   metric.Int64Counter
}

// NewJobInstrumenter creates instruments named after the service. Instruments
// that fail to register are left nil and skipped.
func NewJobInstrumenter(serviceName string) *JobInstrumenter {
	meter := otel.Meter(serviceName)
	j := &JobInstrumenter{tracer: otel.Tracer(serviceName)}

	if h, err := meter.Float64Histogram(
		"messaging_job_duration_seconds",
		metric.WithDescription("Scheduled job duration"),
		metric.WithUnit("s"),
	); err == nil {
		j.jobDuration = h
	}
	if c, err := meter.Int64Counter(
		"messaging_jobs_total",
		metric.WithDescription("Scheduled job runs"),
	); err == nil {
		j.jobsTotal = c
	}
	return j
}

// Track runs fn inside a span and records its outcome.
func (j *JobInstrumenter) Track(ctx context.Context, job string, fn func(context.Context) error) error {
	ctx, span := j.tracer.Start(ctx, "job."+job, trace.WithAttributes(attribute.String("job.name", job)))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	attrs := metric.WithAttributes(
		attribute.String("job.name", job),
		attribute.String("status", status),
	)
	if j.jobDuration != nil {
		j.jobDuration.Record(ctx, duration, attrs)
	}
	if j.jobsTotal != nil {
		j.jobsTotal.Add(ctx, 1, attrs)
	}
	return err
}
