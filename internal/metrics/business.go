package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Status labels shared by every dispatch component.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// BusinessMetrics records dispatch activity for the outbox, hospital and scheduler domains.
type BusinessMetrics interface {
	// RecordOperation counts one operation, e.g. ("outbox", "deliver", "success").
	RecordOperation(ctx context.Context, domain, operation, status string)

	// RecordDuration observes how long an operation took, in seconds.
	RecordDuration(ctx context.Context, domain, operation string, duration time.Duration, status string)

	// RecordBacklog sets the backlog gauges of a domain: items waiting and how long the
	// oldest one has been due. A zero age means nothing is overdue.
	RecordBacklog(ctx context.Context, domain string, pending int64, oldestAge time.Duration)
}

type businessMetrics struct {
	operations metric.Int64Counter
	durations  metric.Float64Histogram
	backlog    metric.Int64Gauge
	backlogAge metric.Float64Gauge
}

// NewBusinessMetrics creates the instruments under the given namespace, which prefixes
// every metric name (e.g. "courier_operations_total").
func NewBusinessMetrics(meterProvider metric.MeterProvider, namespace string) (BusinessMetrics, error) {
	meter := meterProvider.Meter(namespace)
	m := &businessMetrics{}

	var err error
	if m.operations, err = meter.Int64Counter(
		namespace+"_operations_total",
		metric.WithDescription("Total number of dispatch operations"),
		metric.WithUnit("{operation}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create operation counter: %w", err)
	}

	if m.durations, err = meter.Float64Histogram(
		namespace+"_operation_duration_seconds",
		metric.WithDescription("Duration of dispatch operations in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	if m.backlog, err = meter.Int64Gauge(
		namespace+"_backlog_items",
		metric.WithDescription("Items waiting to be dispatched"),
		metric.WithUnit("{item}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create backlog gauge: %w", err)
	}

	if m.backlogAge, err = meter.Float64Gauge(
		namespace+"_backlog_oldest_age_seconds",
		metric.WithDescription("How long the oldest waiting item has been due, in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create backlog age gauge: %w", err)
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
	b.operations.Add(ctx, 1, operationAttributes(domain, operation, status))
}

func (b *businessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
	b.durations.Record(ctx, duration.Seconds(), operationAttributes(domain, operation, status))
}

func (b *businessMetrics) RecordBacklog(ctx context.Context, domain string, pending int64, oldestAge time.Duration) {
	if oldestAge < 0 {
		oldestAge = 0
	}
	attrs := metric.WithAttributes(attribute.String("domain", domain))
	b.backlog.Record(ctx, pending, attrs)
	b.backlogAge.Record(ctx, oldestAge.Seconds(), attrs)
}

// NoOpBusinessMetrics is used when metrics are disabled.
type NoOpBusinessMetrics struct{}

// NewNoOpBusinessMetrics creates a no-op BusinessMetrics implementation.
func NewNoOpBusinessMetrics() BusinessMetrics {
	return &NoOpBusinessMetrics{}
}

func (n *NoOpBusinessMetrics) RecordOperation(context.Context, string, string, string) {}

func (n *NoOpBusinessMetrics) RecordDuration(
	context.Context,
	string,
	string,
	time.Duration,
	string,
) {
}

func (n *NoOpBusinessMetrics) RecordBacklog(context.Context, string, int64, time.Duration) {}
