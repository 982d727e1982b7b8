// Package config provides configuration loading and validation for the audio recorder service.
// It handles YAML-based configuration on top of built-in defaults, environment overrides
// (optionally sourced from a .env file) and per-section validation.
package config
