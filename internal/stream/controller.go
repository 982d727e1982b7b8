package stream

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ali8molaee/audio-recorder/internal/audio"
	"github.com/ali8molaee/audio-recorder/internal/metrics"
	"github.com/ali8molaee/audio-recorder/internal/protocol"
	"github.com/ali8molaee/audio-recorder/internal/transcription"
	"github.com/ali8molaee/audio-recorder/internal/vad"
)

// closeWriteTimeout bounds the time spent sending a close frame
const closeWriteTimeout = time.Second

// Conn is the subset of *websocket.Conn used by the controller
type Conn interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
	RemoteAddr() net.Addr
}

// Transcriber turns a finalized WAV artifact into text
type Transcriber interface {
	Transcribe(ctx context.Context, request *transcription.Request) (*transcription.Response, error)
}

// ControllerConfig contains per-connection session parameters
type ControllerConfig struct {
	IdleTimeout    time.Duration
	CloseToken     string
	MaxIdlePeriods int // 0 keeps silent connections open
	SampleRate     int
}

// Controller runs the lifecycle of every client connection against shared
// session, accumulation and finalization services.
type Controller struct {
	config      ControllerConfig
	store       *Store
	acc         *audio.Accumulator
	finalizer   *audio.Finalizer
	transcriber Transcriber
	logger      *slog.Logger
	metrics     *metrics.Metrics

	pending sync.WaitGroup // in-flight transcriptions
}

// NewController creates a controller. transcriber may be nil.
func NewController(config ControllerConfig, store *Store, acc *audio.Accumulator, finalizer *audio.Finalizer,
	transcriber Transcriber, logger *slog.Logger, m *metrics.Metrics) (*Controller, error) {

	if store == nil || acc == nil || finalizer == nil {
		return nil, fmt.Errorf("store, accumulator and finalizer are required")
	}
	if config.IdleTimeout <= 0 {
		return nil, fmt.Errorf("idle timeout must be positive, got %v", config.IdleTimeout)
	}
	if config.CloseToken == "" {
		config.CloseToken = protocol.DefaultCloseToken
	}
	if config.MaxIdlePeriods < 0 {
		return nil, fmt.Errorf("max idle periods cannot be negative, got %d", config.MaxIdlePeriods)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Controller{
		config:      config,
		store:       store,
		acc:         acc,
		finalizer:   finalizer,
		transcriber: transcriber,
		logger:      logger,
		metrics:     m,
	}, nil
}

// Serve runs the connection until it closes and returns the close reason.
// The session is registered on entry and fully removed before Serve returns.
func (c *Controller) Serve(ctx context.Context, clientID string, conn Conn) string {
	detector, err := vad.NewDetector(c.config.IdleTimeout)
	if err != nil {
		_ = conn.Close()
		return metrics.ReasonError
	}

	session := NewSession(clientID, conn)
	if previous, replaced := c.store.Register(clientID, session); replaced {
		c.logger.Warn("Client id already connected, replacing session",
			slog.String("client_id", clientID),
			slog.String("connection_id", session.ConnectionID),
			slog.String("replaced_connection_id", previous.ConnectionID),
		)
	}
	c.metrics.RecordConnectionOpened()

	c.logger.Info("Client connected",
		slog.String("client_id", clientID),
		slog.String("connection_id", session.ConnectionID),
		slog.String("remote_addr", session.RemoteAddr),
	)

	units := make(chan protocol.Unit)
	done := make(chan struct{})
	pumpExited := make(chan struct{})
	go func() {
		defer close(pumpExited)
		c.readPump(conn, units, done)
	}()

	reason := c.run(ctx, session, conn, detector, units)

	// Cleanup runs once on every exit path. A newer connection under the
	// same client id keeps its registration and its own chunks.
	if !c.store.UnregisterSession(session) {
		c.logger.Debug("Session already replaced",
			slog.String("client_id", clientID),
			slog.String("connection_id", session.ConnectionID),
		)
	}
	c.acc.Discard(session.ConnectionID)
	_ = conn.Close()
	close(done)
	<-pumpExited

	duration := time.Since(session.ConnectedAt)
	c.metrics.RecordConnectionClosed(reason, duration.Seconds())

	stats := detector.GetStats()
	c.logger.Info("Client disconnected",
		slog.String("client_id", clientID),
		slog.String("connection_id", session.ConnectionID),
		slog.String("reason", reason),
		slog.Duration("duration", duration),
		slog.Uint64("units", stats.TotalUnits),
		slog.Uint64("idle_periods", stats.IdlePeriods),
	)

	return reason
}

// run is the OPEN state loop. It returns when the session must close.
func (c *Controller) run(ctx context.Context, session *Session, conn Conn, detector *vad.Detector, units <-chan protocol.Unit) string {
	clientID := session.ClientID

	for {
		unit, event := detector.Next(ctx, units)

		switch event {
		case vad.EventCancelled:
			c.writeClose(conn, clientID, websocket.CloseGoingAway, "server shutting down")
			return metrics.ReasonShutdown

		case vad.EventClosed:
			return metrics.ReasonPeerClosed

		case vad.EventIdle:
			c.metrics.RecordIdleTimeout()
			if c.finalize(ctx, session) {
				detector.Reset()
				continue
			}
			if c.config.MaxIdlePeriods > 0 && detector.ConsecutiveIdle() >= c.config.MaxIdlePeriods {
				c.logger.Info("Closing silent connection",
					slog.String("client_id", clientID),
					slog.Int("idle_periods", detector.ConsecutiveIdle()),
				)
				c.writeClose(conn, clientID, websocket.CloseNormalClosure, "idle")
				return metrics.ReasonIdle
			}
			continue
		}

		switch unit.Kind {
		case protocol.KindBinary:
			if unit.IsEmpty() {
				continue
			}
			c.acc.Append(session.ConnectionID, unit.Data)
			c.metrics.RecordChunk(len(unit.Data))
			c.logChunk(ctx, clientID, unit.Data)

		case protocol.KindClose:
			c.logger.Info("Close token received",
				slog.String("client_id", clientID),
			)
			c.finalize(ctx, session)
			c.writeClose(conn, clientID, websocket.CloseNormalClosure, "")
			return metrics.ReasonCloseToken

		case protocol.KindError:
			if unit.PeerClosed() {
				return metrics.ReasonPeerClosed
			}
			c.logger.Warn("Connection error",
				slog.String("client_id", clientID),
				slog.String("error", unit.Err.Error()),
			)
			return metrics.ReasonError

		default:
			c.logger.Warn("Unexpected message, closing connection",
				slog.String("client_id", clientID),
				slog.Int("message_type", unit.MessageType),
				slog.Int("size", len(unit.Data)),
			)
			c.writeClose(conn, clientID, websocket.CloseUnsupportedData, "unsupported message")
			return metrics.ReasonUnexpected
		}
	}
}

// readPump moves inbound messages onto units until the connection fails or
// delivers a message that ends the session.
func (c *Controller) readPump(conn Conn, units chan<- protocol.Unit, done <-chan struct{}) {
	defer close(units)

	for {
		messageType, data, err := conn.ReadMessage()

		var unit protocol.Unit
		if err != nil {
			unit = protocol.TransportError(err)
		} else {
			unit = protocol.Classify(messageType, data, c.config.CloseToken)
		}

		select {
		case units <- unit:
		case <-done:
			return
		}

		if unit.Kind != protocol.KindBinary {
			return
		}
	}
}

// finalize writes the pending chunks of the session and reports whether
// anything was drained. Failures are logged; the connection stays up.
func (c *Controller) finalize(ctx context.Context, session *Session) bool {
	result, err := c.finalizer.FinalizeSequence(session.ConnectionID, session.ClientID)
	if err != nil {
		c.logger.Error("Failed to save audio",
			slog.String("client_id", session.ClientID),
			slog.String("error", err.Error()),
		)
	}
	if result == nil {
		return false
	}

	switch {
	case err != nil:
		session.SetNote(err.Error())
	case result.EncodeErr != nil:
		session.SetNote(result.EncodeErr.Error())
	default:
		session.SetNote("")
	}

	c.logger.Info("Audio finalized",
		slog.String("client_id", session.ClientID),
		slog.Int("chunks", result.Chunks),
		slog.Int("bytes", result.Bytes),
		slog.String("raw_path", result.RawPath),
		slog.String("wav_path", result.WAVPath),
	)

	if c.transcriber != nil && result.EncodeErr == nil && result.WAVPath != "" && result.Samples > 0 {
		c.dispatchTranscription(ctx, session, result)
	}
	return true
}

// dispatchTranscription uploads the WAV artifact in the background and
// appends the text to the session record
func (c *Controller) dispatchTranscription(ctx context.Context, session *Session, result *audio.Result) {
	data, err := os.ReadFile(result.WAVPath)
	if err != nil {
		c.logger.Warn("Failed to read WAV for transcription",
			slog.String("client_id", session.ClientID),
			slog.String("error", err.Error()),
		)
		return
	}

	request := &transcription.Request{
		ClientID:     session.ClientID,
		ConnectionID: session.ConnectionID,
		FileName:     c.finalizer.WAVName(session.ClientID),
		AudioData:    data,
		SampleRate:   c.config.SampleRate,
		Samples:      result.Samples,
	}

	// The upload outlives the connection that produced it.
	ctx = context.WithoutCancel(ctx)

	c.pending.Add(1)
	go func() {
		defer c.pending.Done()

		response, err := c.transcriber.Transcribe(ctx, request)
		if err != nil {
			c.logger.Error("Transcription failed",
				slog.String("client_id", request.ClientID),
				slog.String("error", err.Error()),
			)
			session.SetNote("transcription failed: " + err.Error())
			return
		}

		session.AppendText(response.Text)
		c.logger.Info("Transcription completed",
			slog.String("client_id", request.ClientID),
			slog.String("text", response.Text),
		)
	}()
}

// writeClose sends a close frame; errors only mean the peer is already gone
func (c *Controller) writeClose(conn Conn, clientID string, code int, text string) {
	message := websocket.FormatCloseMessage(code, text)
	if err := conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(closeWriteTimeout)); err != nil {
		c.logger.Debug("Failed to send close frame",
			slog.String("client_id", clientID),
			slog.String("error", err.Error()),
		)
	}
}

func (c *Controller) logChunk(ctx context.Context, clientID string, data []byte) {
	if !c.logger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	sum := md5.Sum(data)
	c.logger.Debug("Received audio chunk",
		slog.String("client_id", clientID),
		slog.Int("size", len(data)),
		slog.String("md5", hex.EncodeToString(sum[:])),
	)
}

// Lookup returns the record of the client's live session or the empty record
func (c *Controller) Lookup(clientID string) Record {
	session, exists := c.store.Lookup(clientID)
	if !exists {
		return EmptyRecord()
	}
	return session.Record(c.acc.Pending(session.ConnectionID))
}

// Sessions returns the records of all live sessions
func (c *Controller) Sessions() []Record {
	sessions := c.store.Sessions()
	records := make([]Record, 0, len(sessions))
	for _, session := range sessions {
		records = append(records, session.Record(c.acc.Pending(session.ConnectionID)))
	}
	return records
}

// ActiveSessions returns the number of live sessions
func (c *Controller) ActiveSessions() int {
	return c.store.Count()
}

// Wait blocks until in-flight transcriptions finish or ctx is done
func (c *Controller) Wait(ctx context.Context) error {
	finished := make(chan struct{})
	go func() {
		c.pending.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
