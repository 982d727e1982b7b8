package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ali8molaee/audio-recorder/internal/audio"
	"github.com/ali8molaee/audio-recorder/internal/config"
	"github.com/ali8molaee/audio-recorder/internal/metrics"
	"github.com/ali8molaee/audio-recorder/internal/server"
	"github.com/ali8molaee/audio-recorder/internal/storage"
	"github.com/ali8molaee/audio-recorder/internal/stream"
	"github.com/ali8molaee/audio-recorder/internal/transcription"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "audio-recorder"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	envFile := flag.String("env-file", ".env", "Optional dotenv file with AUDIO_RECORDER_* overrides")
	flag.Parse()

	// Load configuration (YAML, then environment overrides)
	cfg, err := config.Loader{EnvFile: *envFile}.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// Log configuration summary (without sensitive data)
	logger.Info("Configuration loaded",
		slog.String("listen_address", cfg.Server.ListenAddr()),
		slog.Int("allowed_origins", len(cfg.Server.AllowedOrigins)),
		slog.Duration("idle_timeout", cfg.Session.GetIdleTimeout()),
		slog.Int("max_idle_periods", cfg.Session.MaxIdlePeriods),
		slog.String("output_directory", cfg.Output.Directory),
		slog.Int("sample_rate", cfg.Output.SampleRate),
		slog.Int("bit_depth", cfg.Output.BitDepth),
		slog.Bool("transcription_enabled", cfg.Transcription.Enabled),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Initialize Prometheus metrics on a dedicated registry
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appMetrics := metrics.NewMetrics(registry)
	logger.Info("Prometheus metrics initialized")

	// Artifact storage
	writer, err := storage.NewWriter(cfg.Output.Directory)
	if err != nil {
		logger.Error("Failed to prepare output directory", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Chunk accumulation and finalization
	accumulator := audio.NewAccumulator()
	finalizer, err := audio.NewFinalizer(audio.FinalizerConfig{
		RawExtension: cfg.Output.RawExtension,
		WAVExtension: cfg.Output.WAVExtension,
		Format: audio.WAVFormat{
			SampleRate: cfg.Output.SampleRate,
			Channels:   cfg.Output.Channels,
			BitDepth:   cfg.Output.BitDepth,
		},
	}, accumulator, writer, audio.RawFloat32Decoder{}, logger, appMetrics)
	if err != nil {
		logger.Error("Failed to create finalizer", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Optional transcription client
	var transcriptionClient *transcription.Client
	var transcriber stream.Transcriber
	if cfg.Transcription.Enabled {
		transcriptionClient, err = transcription.NewClient(transcription.Config{
			Endpoint:      cfg.Transcription.Endpoint,
			APIKey:        cfg.Transcription.APIKey,
			Timeout:       cfg.Transcription.GetTimeoutDuration(),
			MaxConcurrent: cfg.Transcription.MaxConcurrent,
			Language:      cfg.Transcription.Language,
		}, appMetrics)
		if err != nil {
			logger.Error("Failed to create transcription client", slog.String("error", err.Error()))
			os.Exit(1)
		}
		transcriber = transcriptionClient
		logger.Info("Transcription client initialized",
			slog.String("endpoint", cfg.Transcription.Endpoint),
			slog.Int("max_concurrent", cfg.Transcription.MaxConcurrent),
		)
	}

	// Session lifecycle
	controller, err := stream.NewController(stream.ControllerConfig{
		IdleTimeout:    cfg.Session.GetIdleTimeout(),
		CloseToken:     cfg.Session.CloseToken,
		MaxIdlePeriods: cfg.Session.MaxIdlePeriods,
		SampleRate:     cfg.Output.SampleRate,
	}, stream.NewStore(), accumulator, finalizer, transcriber, logger, appMetrics)
	if err != nil {
		logger.Error("Failed to create stream controller", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// HTTP + WebSocket server
	httpServer := server.NewHTTPServer(cfg, logger, controller,
		server.NewCORS(cfg.Server.AllowedOrigins), transcriptionClient, appMetrics)

	if err := httpServer.Start(); err != nil {
		logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("address", cfg.Server.ListenAddr()),
	)

	sig := <-sigChan
	logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	logger.Info("Starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.GetShutdownTimeout())
	defer shutdownCancel()

	// Stop accepting requests and close every open stream
	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
	}

	// Let in-flight transcriptions finish
	if err := controller.Wait(shutdownCtx); err != nil {
		logger.Warn("Transcriptions still running at shutdown", slog.String("error", err.Error()))
	}

	if transcriptionClient != nil {
		stats := transcriptionClient.GetStats()
		logger.Info("Final transcription statistics",
			slog.Uint64("total_requests", stats.TotalRequests),
			slog.Uint64("successful_requests", stats.SuccessRequests),
			slog.Uint64("failed_requests", stats.FailedRequests),
			slog.Float64("success_rate", stats.SuccessRate),
		)
	}

	logger.Info("Service stopped",
		slog.Int("remaining_sessions", controller.ActiveSessions()),
		slog.Int("pending_clients", accumulator.Clients()),
	)
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Anything else is a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
