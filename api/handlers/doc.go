// Package handlers implements the MeshFlow HTTP handlers: generation,
// record browsing, WebSocket progress streaming and health checks.
//
// All handlers reply with the shared response envelope defined in
// common.go; errors carry a stable machine-readable code from the
// types package.
package handlers
