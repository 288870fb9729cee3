// Package handlers provides HTTP request handlers for the mirrorsync API.
//
// Handlers are organized by concern:
//
//   - sync.go: reconciliation passes (one origin or all)
//   - read.go: merged view and quarantine listings
//   - admin.go: runtime statistics
//   - health.go: liveness and readiness checks
//   - realtime.go: WebSocket and SSE change streams
//   - openapi.go: the embedded OpenAPI document
//
// Read handlers serve from the view cache; sync handlers invalidate it
// after a pass that wrote to the store. Pass lifecycle events reach the
// broker through client hooks.
package handlers

//go:generate gomarkdoc --output README.md .
