package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/rs/cors"

	"github.com/ali8molaee/audio-recorder/internal/config"
	"github.com/ali8molaee/audio-recorder/internal/metrics"
	"github.com/ali8molaee/audio-recorder/internal/protocol"
	"github.com/ali8molaee/audio-recorder/internal/stream"
	"github.com/ali8molaee/audio-recorder/internal/transcription"
)

// HTTPServer serves the streaming endpoint together with the lookup and
// monitoring APIs
type HTTPServer struct {
	server        *http.Server
	logger        *slog.Logger
	config        *config.Config
	controller    *stream.Controller
	streams       *StreamServer
	transcription *transcription.Client
	metrics       *metrics.Metrics

	startTime time.Time
}

// NewCORS builds the CORS policy shared by HTTP routes and the WebSocket origin check
func NewCORS(allowedOrigins []string) *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions, http.MethodHead},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
}

// NewHTTPServer creates the HTTP server. client may be nil when transcription is disabled.
func NewHTTPServer(appConfig *config.Config, logger *slog.Logger, controller *stream.Controller,
	origins *cors.Cors, client *transcription.Client, m *metrics.Metrics) *HTTPServer {

	h := &HTTPServer{
		logger:        logger,
		config:        appConfig,
		controller:    controller,
		streams:       NewStreamServer(&appConfig.Server, logger, controller, origins),
		transcription: client,
		metrics:       m,
		startTime:     time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux)

	// Read and write timeouts would leak into hijacked WebSocket connections.
	h.server = &http.Server{
		Addr:              appConfig.Server.ListenAddr(),
		Handler:           origins.Handler(mux),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return h
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	// Streaming endpoint; the connection is hijacked so it bypasses withMetrics
	mux.Handle("GET /ws/{client_id}", h.streams)

	// Session lookup
	mux.HandleFunc("GET /api/{client_id}", h.withMetrics("/api/{client_id}", h.handleLookup))

	// Monitoring endpoints
	mux.HandleFunc("GET /health", h.withMetrics("/health", h.handleHealth))
	mux.HandleFunc("GET /sessions", h.withMetrics("/sessions", h.handleSessions))

	if h.config.Metrics.Enabled {
		mux.Handle("GET "+h.config.Metrics.Path, h.metrics.Handler())
	}

	// Root endpoint with API documentation
	mux.HandleFunc("GET /", h.withMetrics("/", h.handleRoot))
}

// Handler returns the root handler including CORS processing
func (h *HTTPServer) Handler() http.Handler {
	return h.server.Handler
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		// Create a response writer wrapper to capture status code
		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		statusCode := fmt.Sprintf("%d", ww.statusCode)

		h.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start binds the listener and serves in the background
func (h *HTTPServer) Start() error {
	listener, err := net.Listen("tcp", h.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", h.server.Addr, err)
	}

	h.logger.Info("Starting HTTP server",
		slog.String("address", listener.Addr().String()),
	)

	go func() {
		if err := h.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop stops accepting requests, closes every stream and waits for them
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP server...")

	// Shutdown does not track hijacked connections, so streams are closed separately.
	shutdownErr := h.server.Shutdown(ctx)
	streamErr := h.streams.Stop(ctx)

	return errors.Join(shutdownErr, streamErr)
}

// writeJSON encodes v as the response body
func (h *HTTPServer) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("Failed to encode response", slog.String("error", err.Error()))
	}
}

// handleLookup implements the /api/{client_id} endpoint
func (h *HTTPServer) handleLookup(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("client_id")
	if err := protocol.ValidateClientID(clientID); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.writeJSON(w, h.controller.Lookup(clientID))
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.startTime)
	streamStats := h.streams.GetStatistics()

	components := map[string]interface{}{
		"stream_server": map[string]interface{}{
			"status":               "running",
			"active_sessions":      streamStats.ActiveSessions,
			"connections_accepted": streamStats.ConnectionsAccepted,
			"connections_rejected": streamStats.ConnectionsRejected,
			"upgrade_failures":     streamStats.UpgradeFailures,
		},
	}

	if h.transcription != nil {
		transcriptionStats := h.transcription.GetStats()
		components["transcription"] = map[string]interface{}{
			"status":          "running",
			"total_requests":  transcriptionStats.TotalRequests,
			"success_rate":    transcriptionStats.SuccessRate,
			"active_requests": transcriptionStats.ActiveRequests,
		}
	}

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    uptime.String(),
		"service": map[string]interface{}{
			"name":    "audio-recorder",
			"version": "1.0.0",
		},
		"components": components,
	}

	h.writeJSON(w, health)
}

// handleSessions implements the /sessions endpoint
func (h *HTTPServer) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.controller.Sessions()

	response := map[string]interface{}{
		"total_sessions": len(sessions),
		"timestamp":      time.Now().UTC(),
		"sessions":       sessions,
	}

	h.writeJSON(w, response)
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	endpoints := map[string]interface{}{
		"GET /":                "API documentation",
		"GET /health":          "Service health check",
		"GET /sessions":        "List all live sessions",
		"GET /api/{client_id}": "Get the session record of a client",
		"GET /ws/{client_id}":  "Open an audio stream (WebSocket)",
	}
	if h.config.Metrics.Enabled {
		endpoints["GET "+h.config.Metrics.Path] = "Prometheus metrics"
	}

	apiDoc := map[string]interface{}{
		"service":   "Audio Recorder Service",
		"version":   "1.0.0",
		"endpoints": endpoints,
		"timestamp": time.Now().UTC(),
	}

	h.writeJSON(w, apiDoc)
}
