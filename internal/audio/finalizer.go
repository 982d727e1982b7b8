package audio

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ali8molaee/audio-recorder/internal/metrics"
	"github.com/ali8molaee/audio-recorder/internal/storage"
)

// Encode stages reported in EncodeError
const (
	StageDecode = "decode"
	StageEncode = "encode"
)

// FinalizerConfig contains artifact naming and PCM output parameters
type FinalizerConfig struct {
	RawExtension string
	WAVExtension string
	Format       WAVFormat
}

// Finalizer turns a client's accumulated chunks into durable artifacts: the
// raw stream verbatim, then a derived PCM WAV file.
type Finalizer struct {
	config  FinalizerConfig
	acc     *Accumulator
	writer  *storage.Writer
	decoder Decoder
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Result describes one finalize event. EncodeErr carries a failure of the
// derived WAV artifact; it never invalidates RawPath.
type Result struct {
	ClientID  string        `json:"client_id"`
	Chunks    int           `json:"chunks"`
	Bytes     int           `json:"bytes"`
	RawPath   string        `json:"raw_path,omitempty"`
	WAVPath   string        `json:"wav_path,omitempty"`
	Samples   int           `json:"samples"`
	Elapsed   time.Duration `json:"elapsed"`
	EncodeErr error         `json:"-"`
}

// EncodeError reports a failure while producing the derived WAV artifact
type EncodeError struct {
	ClientID string
	Stage    string
	Err      error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("%s wav for client %s: %v", e.Stage, e.ClientID, e.Err)
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}

// NewFinalizer creates a finalizer draining acc and writing through writer.
// A nil decoder selects RawFloat32Decoder.
func NewFinalizer(config FinalizerConfig, acc *Accumulator, writer *storage.Writer,
	decoder Decoder, logger *slog.Logger, m *metrics.Metrics) (*Finalizer, error) {

	if acc == nil || writer == nil {
		return nil, fmt.Errorf("accumulator and writer are required")
	}
	if config.RawExtension == "" || config.WAVExtension == "" {
		return nil, fmt.Errorf("artifact extensions cannot be empty")
	}
	if err := config.Format.Validate(); err != nil {
		return nil, fmt.Errorf("invalid wav format: %w", err)
	}
	if decoder == nil {
		decoder = RawFloat32Decoder{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Finalizer{
		config:  config,
		acc:     acc,
		writer:  writer,
		decoder: decoder,
		logger:  logger,
		metrics: m,
	}, nil
}

// RawName returns the raw artifact file name for a client
func (f *Finalizer) RawName(clientID string) string {
	return clientID + "." + f.config.RawExtension
}

// WAVName returns the WAV artifact file name for a client
func (f *Finalizer) WAVName(clientID string) string {
	return clientID + "." + f.config.WAVExtension
}

// FinalizeIfAny drains the client's pending chunks and writes the artifacts.
// It returns nil, nil when there is nothing to finalize. A non-nil error means
// the raw artifact could not be written; the WAV step is still attempted.
func (f *Finalizer) FinalizeIfAny(clientID string) (*Result, error) {
	return f.FinalizeSequence(clientID, clientID)
}

// FinalizeSequence is FinalizeIfAny for a chunk sequence accumulated under
// key, written to the artifacts named after clientID.
func (f *Finalizer) FinalizeSequence(key, clientID string) (*Result, error) {
	if !f.acc.IsNonEmpty(key) {
		return nil, nil
	}
	chunks := f.acc.DrainAndClear(key)
	if len(chunks) == 0 {
		return nil, nil
	}

	start := time.Now()
	data := Concat(chunks)
	result := &Result{
		ClientID: clientID,
		Chunks:   len(chunks),
		Bytes:    len(data),
	}

	rawPath, rawErr := f.writer.WriteFile(f.RawName(clientID), data)
	if rawErr != nil {
		rawErr = fmt.Errorf("write raw artifact for client %s: %w", clientID, rawErr)
	} else {
		result.RawPath = rawPath
	}

	f.encodeWAV(clientID, data, result)
	if result.EncodeErr != nil {
		// A WAV from an earlier finalize no longer matches the raw artifact.
		if err := f.writer.Remove(f.WAVName(clientID)); err != nil {
			f.logger.Warn("Failed to remove stale WAV",
				slog.String("client_id", clientID),
				slog.String("error", err.Error()),
			)
		}
	}
	result.Elapsed = time.Since(start)

	f.metrics.RecordFinalize(result.Bytes, result.Elapsed.Seconds(), rawErr == nil, result.EncodeErr == nil)

	if result.EncodeErr != nil {
		f.logger.Warn("WAV encoding failed",
			slog.String("client_id", clientID),
			slog.Int("bytes", result.Bytes),
			slog.String("error", result.EncodeErr.Error()),
		)
	}

	f.logger.Debug("Saved audio",
		slog.String("client_id", clientID),
		slog.Int("chunks", result.Chunks),
		slog.Int("bytes", result.Bytes),
		slog.String("raw_path", result.RawPath),
		slog.String("wav_path", result.WAVPath),
		slog.Duration("elapsed", result.Elapsed),
	)

	return result, rawErr
}

// encodeWAV runs the derived-artifact phase, recording any failure on result
func (f *Finalizer) encodeWAV(clientID string, data []byte, result *Result) {
	samples, err := f.decoder.Decode(data)
	if err != nil {
		result.EncodeErr = &EncodeError{ClientID: clientID, Stage: StageDecode, Err: err}
		return
	}

	pcm, err := ScaleToInt(samples, f.config.Format.BitDepth)
	if err != nil {
		result.EncodeErr = &EncodeError{ClientID: clientID, Stage: StageEncode, Err: err}
		return
	}

	wavPath, err := f.writer.Create(f.WAVName(clientID), func(out io.WriteSeeker) error {
		return EncodeWAV(out, pcm, f.config.Format)
	})
	if err != nil {
		result.EncodeErr = &EncodeError{ClientID: clientID, Stage: StageEncode, Err: err}
		return
	}

	result.WAVPath = wavPath
	result.Samples = len(pcm)
}
