// Package server exposes the audio stream over WebSocket and serves the
// session lookup and monitoring HTTP endpoints. All routes share one
// listener and one CORS policy.
package server
