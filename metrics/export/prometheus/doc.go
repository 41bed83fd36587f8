// Package prometheus exposes vzauth session metrics to Prometheus.
//
// [Collector] implements the client_golang Collector interface, so it can
// be registered on any registry; [Collector.Handler] serves it from a
// private registry. Counter names are vzauth_*_total and latency
// histograms are vzauth_*_latency_seconds.
package prometheus
