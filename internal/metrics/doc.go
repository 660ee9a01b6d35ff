// Package metrics exposes Prometheus counters for scans, classifications, and
// tag operations, exported through the node-exporter textfile collector.
package metrics
