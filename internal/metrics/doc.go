// Package metrics defines the Prometheus collectors of the audio recorder service.
package metrics
