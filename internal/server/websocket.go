package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/cors"

	"github.com/ali8molaee/audio-recorder/internal/config"
	"github.com/ali8molaee/audio-recorder/internal/protocol"
	"github.com/ali8molaee/audio-recorder/internal/stream"
)

// StreamServer upgrades client requests to WebSocket connections and hands
// each one to the stream controller
type StreamServer struct {
	config     *config.ServerConfig
	logger     *slog.Logger
	controller *stream.Controller
	upgrader   websocket.Upgrader

	// Concurrency management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Statistics
	connectionsAccepted uint64
	connectionsRejected uint64
	upgradeFailures     uint64
	closed              bool
	mu                  sync.RWMutex
}

// ServerStatistics represents WebSocket endpoint counters
type ServerStatistics struct {
	ConnectionsAccepted uint64 `json:"connections_accepted"`
	ConnectionsRejected uint64 `json:"connections_rejected"`
	UpgradeFailures     uint64 `json:"upgrade_failures"`
	ActiveSessions      uint64 `json:"active_sessions"`
}

// NewStreamServer creates the WebSocket endpoint. origins decides which
// browser origins may open a stream.
func NewStreamServer(cfg *config.ServerConfig, logger *slog.Logger, controller *stream.Controller, origins *cors.Cors) *StreamServer {
	ctx, cancel := context.WithCancel(context.Background())

	s := &StreamServer{
		config:     cfg,
		logger:     logger,
		controller: controller,
		ctx:        ctx,
		cancel:     cancel,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			// Non-browser clients send no Origin header.
			if r.Header.Get("Origin") == "" {
				return true
			}
			return origins.OriginAllowed(r)
		},
	}
	return s
}

// ServeHTTP handles GET /ws/{client_id}
func (s *StreamServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("client_id")
	if err := protocol.ValidateClientID(clientID); err != nil {
		s.incrementRejected()
		s.logger.Warn("Rejected stream request",
			slog.String("client_id", clientID),
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("error", err.Error()),
		)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.incrementRejected()
		http.Error(w, "Server shutting down", http.StatusServiceUnavailable)
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	// Upgrade replies to the client on failure.
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.incrementUpgradeFailures()
		s.logger.Warn("WebSocket upgrade failed",
			slog.String("client_id", clientID),
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("error", err.Error()),
		)
		return
	}
	if s.config.MaxMessageSize > 0 {
		conn.SetReadLimit(s.config.MaxMessageSize)
	}

	s.mu.Lock()
	s.connectionsAccepted++
	s.mu.Unlock()

	s.controller.Serve(s.ctx, clientID, conn)
}

// Stop closes every open stream and waits for the controllers to finish
func (s *StreamServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping stream server...")

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()

	finished := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-ctx.Done():
		return ctx.Err()
	}

	stats := s.GetStatistics()
	s.logger.Info("Stream server stopped",
		slog.Uint64("connections_accepted", stats.ConnectionsAccepted),
		slog.Uint64("connections_rejected", stats.ConnectionsRejected),
		slog.Uint64("upgrade_failures", stats.UpgradeFailures),
	)
	return nil
}

func (s *StreamServer) incrementRejected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connectionsRejected++
}

func (s *StreamServer) incrementUpgradeFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upgradeFailures++
}

// GetStatistics returns current endpoint statistics
func (s *StreamServer) GetStatistics() ServerStatistics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return ServerStatistics{
		ConnectionsAccepted: s.connectionsAccepted,
		ConnectionsRejected: s.connectionsRejected,
		UpgradeFailures:     s.upgradeFailures,
		ActiveSessions:      uint64(s.controller.ActiveSessions()),
	}
}
