package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/guildhall"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Pipeline metrics
	OperationsTotal         metric.Int64Counter
	OperationDuration       metric.Float64Histogram
	SlowOperationsTotal     metric.Int64Counter
	DenialsTotal            metric.Int64Counter
	ValidationFailuresTotal metric.Int64Counter
	UnexpectedFailuresTotal metric.Int64Counter

	// Event metrics
	EventsDispatchedTotal   metric.Int64Counter
	SubscriberFailuresTotal metric.Int64Counter
	EventsPublishedTotal    metric.Int64Counter
	DomainEventsTotal       metric.Int64Counter
	LevelUpsTotal           metric.Int64Counter

	// Session metrics
	SessionsCreatedTotal metric.Int64Counter
	SessionsRevokedTotal metric.Int64Counter
	SessionsSweptTotal   metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	// Pipeline metrics
	m.OperationsTotal, _ = meter.Int64Counter(
		"guildhall.pipeline.operations.total",
		metric.WithDescription("Total number of operations executed by the request pipeline"),
		metric.WithUnit("{operation}"),
	)

	m.OperationDuration, _ = meter.Float64Histogram(
		"guildhall.pipeline.operation.duration",
		metric.WithDescription("Duration of operations across the whole pipeline"),
		metric.WithUnit("ms"),
	)

	m.SlowOperationsTotal, _ = meter.Int64Counter(
		"guildhall.pipeline.slow_operations.total",
		metric.WithDescription("Total number of operations exceeding the slow threshold"),
		metric.WithUnit("{operation}"),
	)

	m.DenialsTotal, _ = meter.Int64Counter(
		"guildhall.pipeline.denials.total",
		metric.WithDescription("Total number of operations rejected by the authorization guard"),
		metric.WithUnit("{operation}"),
	)

	m.ValidationFailuresTotal, _ = meter.Int64Counter(
		"guildhall.pipeline.validation_failures.total",
		metric.WithDescription("Total number of operations rejected by validation"),
		metric.WithUnit("{operation}"),
	)

	m.UnexpectedFailuresTotal, _ = meter.Int64Counter(
		"guildhall.pipeline.unexpected_failures.total",
		metric.WithDescription("Total number of unclassified failures contained by the pipeline"),
		metric.WithUnit("{error}"),
	)

	// Event metrics
	m.EventsDispatchedTotal, _ = meter.Int64Counter(
		"guildhall.events.dispatched.total",
		metric.WithDescription("Total number of domain events handed to the dispatcher"),
		metric.WithUnit("{event}"),
	)

	m.SubscriberFailuresTotal, _ = meter.Int64Counter(
		"guildhall.events.subscriber_failures.total",
		metric.WithDescription("Total number of failed subscriber deliveries"),
		metric.WithUnit("{error}"),
	)

	m.EventsPublishedTotal, _ = meter.Int64Counter(
		"guildhall.events.published.total",
		metric.WithDescription("Total number of domain events published to the broker"),
		metric.WithUnit("{event}"),
	)

	m.DomainEventsTotal, _ = meter.Int64Counter(
		"guildhall.events.delivered.total",
		metric.WithDescription("Total number of domain events delivered to the metrics subscriber"),
		metric.WithUnit("{event}"),
	)

	m.LevelUpsTotal, _ = meter.Int64Counter(
		"guildhall.characters.level_ups.total",
		metric.WithDescription("Total number of character levels gained"),
		metric.WithUnit("{level}"),
	)

	// Session metrics
	m.SessionsCreatedTotal, _ = meter.Int64Counter(
		"guildhall.sessions.created.total",
		metric.WithDescription("Total number of sessions created"),
		metric.WithUnit("{session}"),
	)

	m.SessionsRevokedTotal, _ = meter.Int64Counter(
		"guildhall.sessions.revoked.total",
		metric.WithDescription("Total number of sessions revoked"),
		metric.WithUnit("{session}"),
	)

	m.SessionsSweptTotal, _ = meter.Int64Counter(
		"guildhall.sessions.swept.total",
		metric.WithDescription("Total number of expired sessions purged by the sweeper"),
		metric.WithUnit("{session}"),
	)

	return m
}
