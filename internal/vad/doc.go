// Package vad detects silence on a client stream using a fixed receive timeout.
// A client is considered silent once no unit has arrived for the configured
// interval; the interval restarts on every received unit.
package vad
