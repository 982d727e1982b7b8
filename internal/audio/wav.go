package audio

import (
	"fmt"
	"io"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// wavFormatPCM is the RIFF audio format tag for integer PCM.
const wavFormatPCM = 1

// WAVFormat describes the PCM layout of a WAV artifact
type WAVFormat struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// WAVInfo represents basic information about a WAV file
type WAVInfo struct {
	SampleRate    int           `json:"sample_rate"`
	Channels      int           `json:"channels"`
	BitsPerSample int           `json:"bits_per_sample"`
	NumSamples    int           `json:"num_samples"`
	Duration      time.Duration `json:"duration"`
}

// Validate checks that the format can be encoded
func (f WAVFormat) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", f.SampleRate)
	}
	if f.Channels <= 0 {
		return fmt.Errorf("channel count must be positive, got %d", f.Channels)
	}
	if f.BitDepth != 16 && f.BitDepth != 32 {
		return fmt.Errorf("unsupported bit depth: %d (only 16 and 32 are supported)", f.BitDepth)
	}
	return nil
}

// EncodeWAV writes integer PCM samples to out as a WAV file. No samples
// yields a header-only file. The encoder patches the RIFF sizes on close, so
// out must be seekable.
func EncodeWAV(out io.WriteSeeker, samples []int, format WAVFormat) error {
	if err := format.Validate(); err != nil {
		return err
	}

	enc := wav.NewEncoder(out, format.SampleRate, format.BitDepth, format.Channels, wavFormatPCM)
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: format.Channels,
			SampleRate:  format.SampleRate,
		},
		Data:           samples,
		SourceBitDepth: format.BitDepth,
	}
	if err := enc.Write(buf); err != nil {
		_ = enc.Close()
		return fmt.Errorf("failed to write WAV samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize WAV header: %w", err)
	}
	return nil
}

// DecodeWAV reads a PCM WAV file back into integer samples
func DecodeWAV(in io.ReadSeeker) ([]int, *WAVInfo, error) {
	dec := wav.NewDecoder(in)
	if !dec.IsValidFile() {
		return nil, nil, fmt.Errorf("invalid WAV file")
	}
	if dec.WavAudioFormat != wavFormatPCM {
		return nil, nil, fmt.Errorf("unsupported audio format: %d (only PCM is supported)", dec.WavAudioFormat)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read WAV samples: %w", err)
	}

	info := &WAVInfo{
		SampleRate:    int(dec.SampleRate),
		Channels:      int(dec.NumChans),
		BitsPerSample: int(dec.BitDepth),
		NumSamples:    len(buf.Data),
	}
	if info.SampleRate > 0 && info.Channels > 0 {
		frames := info.NumSamples / info.Channels
		info.Duration = time.Duration(frames) * time.Second / time.Duration(info.SampleRate)
	}
	return buf.Data, info, nil
}
