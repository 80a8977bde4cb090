// Package api hosts the HTTP server, middleware, and REST handlers of the
// Tinker proxy. Routes:
//   - GET /health for liveness probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /train to start a fine-tuning job.
//   - GET /jobs, GET /jobs/{job_id}, POST /jobs/{job_id}/cancel for job status and control.
//   - GET /models and GET /jobs/{job_id}/checkpoints[/{checkpoint_id}] for the catalog and checkpoints.
//   - GET /connection to check the caller's key against the backend.
//
// Every route except /health and /metrics requires the X-Tinker-Key header,
// which is relayed to the backend and never stored.
package api
