// Package otel bridges authcore engine metrics into an OpenTelemetry meter.
//
// [NewExporter] registers an Int64ObservableCounter per engine counter and a
// set of Int64ObservableGauge instruments per latency histogram bucket. One
// callback reads [authcore.Engine.MetricsSnapshot] per collection.
//
// Callers own the MeterProvider and supply the Meter.
package otel
