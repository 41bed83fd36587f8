// Package otel exports vzauth session metrics through an OpenTelemetry
// meter.
//
// [NewExporter] registers one Int64ObservableCounter per counter and one
// Int64ObservableGauge per histogram bucket. A single callback reads
// [vzauth.Manager.MetricsSnapshot] on each collection cycle. The caller
// owns the MeterProvider.
package otel
