// Package server exposes build history and manual runs over HTTP.
//
// Endpoints:
//
//   - GET  /api/projects              projects with at least one build
//   - GET  /api/projects/{name}       builds of one project, newest first
//   - POST /api/projects/{name}/runs  start a one-off run of the project
//   - GET  /artifacts/{project}/{file} build logs and tarballs
//   - GET  /healthz                   liveness
//   - GET  /metrics                   Prometheus metrics
//
// History read failures answer 503, unknown projects 404.
package server
