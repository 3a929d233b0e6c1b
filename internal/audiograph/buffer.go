package audiograph

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Buffer is decoded interleaved float PCM.
type Buffer struct {
	Samples    []float32
	Channels   int
	SampleRate int
}

// Frames is the number of sample frames (one sample per channel).
func (b Buffer) Frames() int {
	if b.Channels <= 0 {
		return 0
	}
	return len(b.Samples) / b.Channels
}

// Duration is the buffer length in seconds.
func (b Buffer) Duration() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(b.Frames()) / float64(b.SampleRate)
}

// Silence returns a zeroed buffer of the given length.
func Silence(frames, channels, sampleRate int) Buffer {
	return Buffer{Samples: make([]float32, frames*channels), Channels: channels, SampleRate: sampleRate}
}

// DecodeF32LE parses little-endian float32 PCM.
func DecodeF32LE(data []byte, channels, sampleRate int) (Buffer, error) {
	if channels <= 0 {
		return Buffer{}, fmt.Errorf("invalid channel count %d", channels)
	}
	if len(data)%(4*channels) != 0 {
		data = data[:len(data)-len(data)%(4*channels)]
	}
	samples := make([]float32, len(data)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return Buffer{Samples: samples, Channels: channels, SampleRate: sampleRate}, nil
}

// AppendF32LE encodes samples as little-endian float32 PCM.
func AppendF32LE(dst []byte, samples []float32) []byte {
	for _, s := range samples {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(s))
	}
	return dst
}
