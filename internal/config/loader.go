package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// EnvPrefix is prepended to every environment override key.
const EnvPrefix = "AUDIO_RECORDER_"

// Loader layers environment overrides on top of the YAML file. Tests can
// override Lookup to inject deterministic maps.
type Loader struct {
	Lookup  func(string) (string, bool)
	EnvFile string
}

// Load reads the YAML file, applies environment overrides and validates the
// result.
func (l Loader) Load(path string) (*Config, error) {
	if l.Lookup == nil {
		if err := loadEnvFile(l.EnvFile); err != nil {
			return nil, err
		}
		l.Lookup = os.LookupEnv
	}

	cfg := Default()
	if path != "" {
		loaded, err := Load(path)
		if err != nil {
			return nil, err
		}
		cfg = *loaded
	}

	overrideString(l.Lookup, EnvPrefix+"ADDRESS", &cfg.Server.Address)
	overrideString(l.Lookup, EnvPrefix+"CLOSE_TOKEN", &cfg.Session.CloseToken)
	overrideString(l.Lookup, EnvPrefix+"OUTPUT_DIR", &cfg.Output.Directory)
	overrideString(l.Lookup, EnvPrefix+"LOG_LEVEL", &cfg.Logging.Level)
	overrideString(l.Lookup, EnvPrefix+"LOG_FORMAT", &cfg.Logging.Format)
	overrideString(l.Lookup, EnvPrefix+"TRANSCRIPTION_ENDPOINT", &cfg.Transcription.Endpoint)
	overrideString(l.Lookup, EnvPrefix+"TRANSCRIPTION_API_KEY", &cfg.Transcription.APIKey)

	if err := overrideInt(l.Lookup, EnvPrefix+"PORT", &cfg.Server.Port); err != nil {
		return nil, err
	}
	if err := overrideFloat(l.Lookup, EnvPrefix+"IDLE_TIMEOUT", &cfg.Session.IdleTimeout); err != nil {
		return nil, err
	}
	if err := overrideBool(l.Lookup, EnvPrefix+"TRANSCRIPTION_ENABLED", &cfg.Transcription.Enabled); err != nil {
		return nil, err
	}
	if value, ok := lookupTrimmed(l.Lookup, EnvPrefix+"ALLOWED_ORIGINS"); ok {
		cfg.Server.AllowedOrigins = splitList(value)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func lookupTrimmed(lookup func(string) (string, bool), key string) (string, bool) {
	value, ok := lookup(key)
	if !ok || strings.TrimSpace(value) == "" {
		return "", false
	}
	return strings.TrimSpace(value), true
}

func overrideString(lookup func(string) (string, bool), key string, target *string) {
	if value, ok := lookupTrimmed(lookup, key); ok {
		*target = value
	}
}

func overrideInt(lookup func(string) (string, bool), key string, target *int) error {
	value, ok := lookupTrimmed(lookup, key)
	if !ok {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("config: parse %s: %w", key, err)
	}
	*target = parsed
	return nil
}

func overrideFloat(lookup func(string) (string, bool), key string, target *float64) error {
	value, ok := lookupTrimmed(lookup, key)
	if !ok {
		return nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("config: parse %s: %w", key, err)
	}
	*target = parsed
	return nil
}

func overrideBool(lookup func(string) (string, bool), key string, target *bool) error {
	value, ok := lookupTrimmed(lookup, key)
	if !ok {
		return nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("config: parse %s: %w", key, err)
	}
	*target = parsed
	return nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
