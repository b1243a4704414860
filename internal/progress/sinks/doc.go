// Package sinks implements listeners for the downloader and scheduler state
// broadcasts: an in-memory Stats view used by the status API and idle
// detection, and a Prometheus exporter.
package sinks
