// Package stream owns the lifecycle of client streaming sessions.
//
// Store is the registry of live sessions keyed by client identifier. The
// Controller runs one connection from handshake to close: it accumulates
// binary chunks, finalizes them when the client goes silent or sends the
// close token, and removes every trace of the session when the connection
// ends.
package stream
