package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// BusinessMetrics records use case outcomes.
type BusinessMetrics interface {
	// RecordOperation counts a use case call. domain is "access", "secrets" or "rotation";
	// status is "success" or "error".
	RecordOperation(ctx context.Context, domain, operation, status string)

	// RecordDuration records how long a use case call took, in seconds.
	RecordDuration(ctx context.Context, domain, operation string, duration time.Duration, status string)

	// RecordReadRepair counts one read-repair batch by outcome: repaired, skipped, conflict,
	// dropped or error.
	RecordReadRepair(ctx context.Context, outcome string)

	// RecordRotationFinished counts a rotation job reaching a terminal status together with
	// the secrets it attempted and the ones it could not re-encrypt.
	RecordRotationFinished(ctx context.Context, status string, processed, failed int64)
}

type businessMetrics struct {
	operationCounter  metric.Int64Counter
	durationHisto     metric.Float64Histogram
	readRepairCounter metric.Int64Counter
	rotationJobs      metric.Int64Counter
	rotationSecrets   metric.Int64Counter
}

// NewBusinessMetrics creates instruments prefixed with namespace on meterProvider.
func NewBusinessMetrics(meterProvider metric.MeterProvider, namespace string) (BusinessMetrics, error) {
	meter := meterProvider.Meter(namespace)
	m := &businessMetrics{}

	var err error
	if m.operationCounter, err = meter.Int64Counter(
		fmt.Sprintf("%s_operations_total", namespace),
		metric.WithDescription("Total number of business operations"),
		metric.WithUnit("{operation}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create operation counter: %w", err)
	}

	if m.durationHisto, err = meter.Float64Histogram(
		fmt.Sprintf("%s_operation_duration_seconds", namespace),
		metric.WithDescription("Duration of business operations in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	if m.readRepairCounter, err = meter.Int64Counter(
		fmt.Sprintf("%s_read_repair_total", namespace),
		metric.WithDescription("Read-repair batches by outcome"),
		metric.WithUnit("{batch}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create read repair counter: %w", err)
	}

	if m.rotationJobs, err = meter.Int64Counter(
		fmt.Sprintf("%s_rotation_jobs_total", namespace),
		metric.WithDescription("Key rotation jobs that reached a terminal status"),
		metric.WithUnit("{job}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create rotation job counter: %w", err)
	}

	if m.rotationSecrets, err = meter.Int64Counter(
		fmt.Sprintf("%s_rotation_secrets_total", namespace),
		metric.WithDescription("Secrets handled by finished key rotation jobs"),
		metric.WithUnit("{secret}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create rotation secret counter: %w", err)
	}

	return m, nil
}

func operationAttributes(domain, operation, status string) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("domain", domain),
		attribute.String("operation", operation),
		attribute.String("status", status),
	)
}

func (b *businessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {
	b.operationCounter.Add(ctx, 1, operationAttributes(domain, operation, status))
}

func (b *businessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
	b.durationHisto.Record(ctx, duration.Seconds(), operationAttributes(domain, operation, status))
}

func (b *businessMetrics) RecordReadRepair(ctx context.Context, outcome string) {
	b.readRepairCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (b *businessMetrics) RecordRotationFinished(ctx context.Context, status string, processed, failed int64) {
	b.rotationJobs.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	if rotated := processed - failed; rotated > 0 {
		b.rotationSecrets.Add(ctx, rotated, metric.WithAttributes(attribute.String("result", "rotated")))
	}
	if failed > 0 {
		b.rotationSecrets.Add(ctx, failed, metric.WithAttributes(attribute.String("result", "failed")))
	}
}

// NoOpBusinessMetrics discards everything. It is used when METRICS_ENABLED is false.
type NoOpBusinessMetrics struct{}

// NewNoOpBusinessMetrics creates a no-op BusinessMetrics implementation.
func NewNoOpBusinessMetrics() BusinessMetrics {
	return &NoOpBusinessMetrics{}
}

func (n *NoOpBusinessMetrics) RecordOperation(context.Context, string, string, string) {}

func (n *NoOpBusinessMetrics) RecordDuration(context.Context, string, string, time.Duration, string) {
}

func (n *NoOpBusinessMetrics) RecordReadRepair(context.Context, string) {}

func (n *NoOpBusinessMetrics) RecordRotationFinished(context.Context, string, int64, int64) {}
