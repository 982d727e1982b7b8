// Package transcription implements the HTTP client for the transcription API.
// Finalized WAV artifacts are uploaded as multipart form data with client
// metadata. Requests are bounded by a concurrency limit and never retried.
package transcription
