// Package api hosts the HTTP server, middleware, and REST handlers.
// Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/links to save a URL (fire-and-forget by default).
//   - GET /v1/links for the grouped list view plus recycle bin.
//   - POST /v1/links/{id}/bin, /restore and DELETE /v1/links/{id}.
package api
