// Package api defines the request and response types of the MeshFlow
// HTTP API.
//
// # API Overview
//
// MeshFlow serve mode exposes a RESTful API for:
//   - Running the furniture generation pipeline
//   - Browsing stored generation records
//   - Streaming per-stage progress over WebSocket
//   - Health monitoring and metrics
//
// # Authentication
//
// When auth is enabled, endpoints under /api/v1 require either the
// X-API-Key header:
//
//	X-API-Key: your-api-key
//
// or a JWT bearer token:
//
//	Authorization: Bearer <token>
//
// # Base URL
//
// The default base URL for the API is:
//
//	http://localhost:8080
//
// Prometheus metrics are served separately on the metrics port,
// http://localhost:9090/metrics by default.
package api
