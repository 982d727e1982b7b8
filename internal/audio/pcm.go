package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Float32SampleSize is the width in bytes of one little-endian float32 sample.
const Float32SampleSize = 4

// PCMScale converts a normalized float sample into the integer range used for
// the WAV artifact.
const PCMScale = 32767

// Decoder turns the concatenated stream buffer into normalized float samples.
// Implementations may understand a real container; the default treats the
// buffer as raw float32 PCM.
type Decoder interface {
	Decode(data []byte) ([]float32, error)
}

// DecoderFunc adapts a function to the Decoder interface
type DecoderFunc func(data []byte) ([]float32, error)

// Decode calls f(data)
func (f DecoderFunc) Decode(data []byte) ([]float32, error) {
	return f(data)
}

// RawFloat32Decoder interprets the buffer as little-endian IEEE-754 float32
// samples. Trailing bytes that do not form a whole sample are dropped, so a
// buffer shorter than one sample decodes to no samples.
type RawFloat32Decoder struct{}

// Decode implements Decoder
func (RawFloat32Decoder) Decode(data []byte) ([]float32, error) {
	count := len(data) / Float32SampleSize
	samples := make([]float32, count)
	for i := range samples {
		bits := binary.LittleEndian.Uint32(data[i*Float32SampleSize:])
		samples[i] = math.Float32frombits(bits)
	}
	return samples, nil
}

// ScaleToInt scales normalized float samples by PCMScale and converts them to
// integers of the given bit depth. The product is rounded to float32 before
// truncation toward zero. Values beyond the integer range saturate and NaN
// becomes silence.
func ScaleToInt(samples []float32, bitDepth int) ([]int, error) {
	var lo, hi float64
	switch bitDepth {
	case 16:
		lo, hi = math.MinInt16, math.MaxInt16
	case 32:
		lo, hi = math.MinInt32, math.MaxInt32
	default:
		return nil, fmt.Errorf("unsupported bit depth: %d (only 16 and 32 are supported)", bitDepth)
	}

	out := make([]int, len(samples))
	for i, sample := range samples {
		v := float64(float32(sample * PCMScale))
		switch {
		case math.IsNaN(v):
			out[i] = 0
		case v <= lo:
			out[i] = int(lo)
		case v >= hi:
			out[i] = int(hi)
		default:
			out[i] = int(v)
		}
	}
	return out, nil
}
