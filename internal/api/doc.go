// Package api hosts the HTTP status server. Routes:
//   - GET /healthz and /readyz for probes. readyz reports 503 once the crawl
//     is no longer running.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/state for the latest crawl snapshots.
package api
