// Package api hosts the operator HTTP endpoint that runs alongside a pipeline
// run. Routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/run for the current run's progress.
package api
