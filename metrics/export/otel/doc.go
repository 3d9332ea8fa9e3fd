// Package otel binds authclient metrics to OpenTelemetry observable
// instruments.
//
// [NewExporter] registers one Int64ObservableCounter per client counter and
// one Int64ObservableGauge per latency bucket. A single callback reads
// [authclient.Client.MetricsSnapshot] on each collection cycle.
//
// Callers own the MeterProvider.
package otel
