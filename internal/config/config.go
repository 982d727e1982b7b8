package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Session       SessionConfig       `yaml:"session"`
	Output        OutputConfig        `yaml:"output"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig contains HTTP / WebSocket listener configuration
type ServerConfig struct {
	Address         string   `yaml:"address"`
	Port            int      `yaml:"port"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
	ReadBufferSize  int      `yaml:"read_buffer_size"`  // bytes
	WriteBufferSize int      `yaml:"write_buffer_size"` // bytes
	MaxMessageSize  int64    `yaml:"max_message_size"`  // bytes, 0 = unlimited
	ShutdownTimeout int      `yaml:"shutdown_timeout"`  // seconds
}

// SessionConfig contains per-connection streaming session parameters
type SessionConfig struct {
	IdleTimeout    float64 `yaml:"idle_timeout"` // seconds
	CloseToken     string  `yaml:"close_token"`
	MaxIdlePeriods int     `yaml:"max_idle_periods"` // 0 keeps idle connections open forever
}

// OutputConfig describes where and how finalized artifacts are written
type OutputConfig struct {
	Directory    string `yaml:"directory"`
	RawExtension string `yaml:"raw_extension"`
	WAVExtension string `yaml:"wav_extension"`
	SampleRate   int    `yaml:"sample_rate"`
	Channels     int    `yaml:"channels"`
	BitDepth     int    `yaml:"bit_depth"`
}

// TranscriptionConfig contains the optional transcription API configuration
type TranscriptionConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Endpoint      string `yaml:"endpoint"`
	APIKey        string `yaml:"api_key"`
	Timeout       int    `yaml:"timeout"` // seconds
	MaxConcurrent int    `yaml:"max_concurrent"`
	Language      string `yaml:"language"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// DefaultAllowedOrigins are the browser origins accepted when none are configured.
var DefaultAllowedOrigins = []string{
	"http://localhost:3000",
	"http://localhost:3001",
	"http://localhost:8000",
	"https://wln.inbeet.tech",
	"https://app.wln.inbeet.tech",
}

// Default returns a configuration populated with the service defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Address:         "0.0.0.0",
			Port:            8000,
			AllowedOrigins:  append([]string(nil), DefaultAllowedOrigins...),
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			MaxMessageSize:  10 << 20,
			ShutdownTimeout: 10,
		},
		Session: SessionConfig{
			IdleTimeout: 5,
			CloseToken:  "close()",
		},
		Output: OutputConfig{
			Directory:    ".",
			RawExtension: "webm",
			WAVExtension: "wav",
			SampleRate:   16000,
			Channels:     1,
			BitDepth:     32,
		},
		Transcription: TranscriptionConfig{
			Timeout:       30,
			MaxConcurrent: 4,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// Load reads and parses the configuration file on top of the defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("session config: %w", err)
	}

	if err := c.Output.Validate(); err != nil {
		return fmt.Errorf("output config: %w", err)
	}

	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
	}

	if s.Address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	if s.ReadBufferSize < 0 || s.WriteBufferSize < 0 {
		return fmt.Errorf("buffer sizes cannot be negative, got read=%d write=%d", s.ReadBufferSize, s.WriteBufferSize)
	}

	if s.MaxMessageSize < 0 {
		return fmt.Errorf("max_message_size cannot be negative, got %d", s.MaxMessageSize)
	}

	if s.ShutdownTimeout < 1 {
		return fmt.Errorf("shutdown_timeout must be at least 1 second, got %d", s.ShutdownTimeout)
	}

	for _, origin := range s.AllowedOrigins {
		if strings.TrimSpace(origin) == "" {
			return fmt.Errorf("allowed_origins cannot contain empty entries")
		}
	}

	return nil
}

// Validate validates session configuration
func (s *SessionConfig) Validate() error {
	if s.IdleTimeout <= 0 {
		return fmt.Errorf("idle_timeout must be positive, got %f", s.IdleTimeout)
	}

	if s.CloseToken == "" {
		return fmt.Errorf("close_token cannot be empty")
	}

	if s.MaxIdlePeriods < 0 {
		return fmt.Errorf("max_idle_periods cannot be negative, got %d", s.MaxIdlePeriods)
	}

	return nil
}

// Validate validates output configuration
func (o *OutputConfig) Validate() error {
	if o.Directory == "" {
		return fmt.Errorf("directory cannot be empty")
	}

	if o.RawExtension == "" || o.WAVExtension == "" {
		return fmt.Errorf("raw_extension and wav_extension cannot be empty")
	}

	if o.RawExtension == o.WAVExtension {
		return fmt.Errorf("raw_extension and wav_extension must differ, both are '%s'", o.RawExtension)
	}

	if strings.ContainsAny(o.RawExtension+o.WAVExtension, `/\.`) {
		return fmt.Errorf("extensions must not contain dots or path separators")
	}

	if o.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", o.SampleRate)
	}

	if o.Channels != 1 {
		return fmt.Errorf("channels must be 1 (mono), got %d", o.Channels)
	}

	if o.BitDepth != 16 && o.BitDepth != 32 {
		return fmt.Errorf("bit_depth must be 16 or 32, got %d", o.BitDepth)
	}

	return nil
}

// Validate validates transcription configuration
func (t *TranscriptionConfig) Validate() error {
	if !t.Enabled {
		return nil
	}

	if t.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty when transcription is enabled")
	}

	if t.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", t.Timeout)
	}

	if t.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", t.MaxConcurrent)
	}

	return nil
}

// Validate validates metrics configuration
func (m *MetricsConfig) Validate() error {
	if m.Enabled && !strings.HasPrefix(m.Path, "/") {
		return fmt.Errorf("path must start with '/', got '%s'", m.Path)
	}
	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	// Anything other than stdout/stderr is treated as a file path.
	return nil
}

// ListenAddr returns the host:port the HTTP server binds to
func (s *ServerConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", s.Address, s.Port)
}

// GetShutdownTimeout returns the graceful shutdown budget as a time.Duration
func (s *ServerConfig) GetShutdownTimeout() time.Duration {
	return time.Duration(s.ShutdownTimeout) * time.Second
}

// GetIdleTimeout returns the silence interval as a time.Duration
func (s *SessionConfig) GetIdleTimeout() time.Duration {
	return time.Duration(s.IdleTimeout * float64(time.Second))
}

// GetTimeoutDuration returns the transcription timeout as a time.Duration
func (t *TranscriptionConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(t.Timeout) * time.Second
}
