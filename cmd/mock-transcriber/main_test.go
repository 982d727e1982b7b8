package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/ali8molaee/audio-recorder/internal/audio"
	"github.com/ali8molaee/audio-recorder/internal/transcription"
)

func wavUpload(t *testing.T) (*bytes.Buffer, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "abc.wav")
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	format := audio.WAVFormat{SampleRate: 16000, Channels: 1, BitDepth: 32}
	if err := audio.EncodeWAV(file, make([]int, 1600), format); err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}
	file.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, _ := writer.CreateFormFile("file", "abc.wav")
	part.Write(data)
	writer.WriteField("client_id", "abc")
	writer.WriteField("language", "en")
	writer.Close()

	return &body, writer.FormDataContentType()
}

func newTestTranscriber(apiKey string) *transcriber {
	return &transcriber{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		apiKey: apiKey,
		text:   "fixed text",
	}
}

func TestHandleTranscribe(t *testing.T) {
	body, contentType := wavUpload(t)
	req := httptest.NewRequest(http.MethodPost, "/transcribe", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	newTestTranscriber("").handleTranscribe(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp transcription.Response
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if resp.Text != "fixed text" {
		t.Errorf("Expected 'fixed text', got %q", resp.Text)
	}
	if resp.Duration != 0.1 {
		t.Errorf("Expected duration 0.1, got %v", resp.Duration)
	}
}

func TestHandleTranscribeRequiresKey(t *testing.T) {
	body, contentType := wavUpload(t)
	req := httptest.NewRequest(http.MethodPost, "/transcribe", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	newTestTranscriber("secret").handleTranscribe(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rec.Code)
	}
}

func TestHandleTranscribeRejectsNonWAV(t *testing.T) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, _ := writer.CreateFormFile("file", "abc.wav")
	part.Write([]byte("not a wav file at all, just some bytes padding it out"))
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/transcribe", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()

	newTestTranscriber("").handleTranscribe(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}
