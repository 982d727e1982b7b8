// Package audio handles per-client chunk accumulation and finalization.
// It keeps the ordered binary frames of every client, drains them exactly once,
// writes the raw stream verbatim and re-encodes it as a mono PCM WAV file.
package audio
