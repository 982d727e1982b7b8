// Package protocol classifies inbound WebSocket messages into stream units
// and validates the client identifiers that name a stream.
//
// A stream carries binary audio chunks and a single text control token that
// asks the server to finalize and close. Every other message shape is a
// protocol violation that ends the connection.
package protocol
