// Package prometheus exposes authcore engine metrics through
// client_golang.
//
// [Exporter] implements prometheus.Collector and converts a
// [authcore.MetricsSnapshot] into const counters and histograms at scrape
// time. Counters are named authcore_*_total; the login and validation
// latency histograms are authcore_*_latency_seconds.
//
// The exporter never touches the global default registry. Register it on
// your own registry or mount [Exporter.Handler].
package prometheus
