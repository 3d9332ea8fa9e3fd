// Package internaldefs holds the metric names shared by the exporters so the
// Prometheus and OpenTelemetry views stay in sync.
package internaldefs
