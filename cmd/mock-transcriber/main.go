// Command mock-transcriber is a local stand-in for the transcription API.
// It accepts the multipart uploads sent by the recorder and answers with a
// fixed text.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/ali8molaee/audio-recorder/internal/audio"
	"github.com/ali8molaee/audio-recorder/internal/transcription"
)

type transcriber struct {
	logger *slog.Logger
	apiKey string
	text   string
	delay  time.Duration
}

func (t *transcriber) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if t.apiKey != "" && r.Header.Get("Authorization") != "Bearer "+t.apiKey {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Error getting audio file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	// Read the upload back as a WAV to report its real format.
	samples, info, err := audio.DecodeWAV(file)
	if err != nil {
		http.Error(w, "Invalid WAV upload: "+err.Error(), http.StatusBadRequest)
		return
	}

	t.logger.Info("Transcription request received",
		slog.String("client_id", r.FormValue("client_id")),
		slog.String("connection_id", r.FormValue("connection_id")),
		slog.String("filename", header.Filename),
		slog.Int("samples", len(samples)),
		slog.Int("sample_rate", info.SampleRate),
		slog.Int("bits_per_sample", info.BitsPerSample),
		slog.Duration("duration", info.Duration),
		slog.String("language", r.FormValue("language")),
	)

	time.Sleep(t.delay)

	response := transcription.Response{
		Text:        t.text,
		Language:    r.FormValue("language"),
		Duration:    info.Duration.Seconds(),
		ProcessedAt: time.Now(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		t.logger.Warn("Failed to write response", slog.String("error", err.Error()))
	}
}

func main() {
	addr := flag.String("addr", ":9000", "Listen address")
	apiKey := flag.String("api-key", "", "Require this bearer token when set")
	text := flag.String("text", "This is a test transcription", "Text returned for every upload")
	delay := flag.Duration("delay", 200*time.Millisecond, "Simulated processing time")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	t := &transcriber{logger: logger, apiKey: *apiKey, text: *text, delay: *delay}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /transcribe", t.handleTranscribe)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	})

	logger.Info("Mock transcription server starting",
		slog.String("address", *addr),
		slog.String("endpoint", "http://localhost"+*addr+"/transcribe"),
	)

	server := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
