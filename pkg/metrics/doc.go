// Package metrics exposes the mock server's own telemetry: packets and
// bytes received, lines decoded and rejected, and verification outcomes.
//
// Components depend on the Collector interface. Noop is the default;
// PrometheusCollector registers client_golang metrics on a Registerer.
package metrics
