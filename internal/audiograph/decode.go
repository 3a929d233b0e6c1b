package audiograph

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"reelforge/internal/services"
)

// Channels is the channel count used throughout the graph.
const Channels = 2

// Decoder converts any audio file ffmpeg understands into Buffer.
type Decoder struct {
	ffmpeg     string
	sampleRate int
	runner     func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewDecoder returns a decoder resampling to sampleRate stereo.
func NewDecoder(ffmpegBinary string, sampleRate int) *Decoder {
	if strings.TrimSpace(ffmpegBinary) == "" {
		ffmpegBinary = "ffmpeg"
	}
	if sampleRate <= 0 {
		sampleRate = 48000
	}
	return &Decoder{ffmpeg: ffmpegBinary, sampleRate: sampleRate}
}

// WithRunner sets a custom command runner returning stdout (for testing).
func (d *Decoder) WithRunner(runner func(ctx context.Context, name string, args ...string) ([]byte, error)) {
	d.runner = runner
}

// SampleRate is the output rate.
func (d *Decoder) SampleRate() int { return d.sampleRate }

// Decode reads path fully into memory.
func (d *Decoder) Decode(ctx context.Context, path string) (Buffer, error) {
	if strings.TrimSpace(path) == "" {
		return Buffer{}, errors.New("decode audio: empty path")
	}
	out, err := d.run(ctx, d.ffmpeg, DecodeArgs(path, d.sampleRate)...)
	if err != nil {
		return Buffer{}, err
	}
	buf, err := DecodeF32LE(out, Channels, d.sampleRate)
	if err != nil {
		return Buffer{}, err
	}
	if buf.Frames() == 0 {
		return Buffer{}, services.Wrap(services.ErrExternalTool, "recording", "decode audio",
			fmt.Sprintf("%s produced no samples", path), nil)
	}
	return buf, nil
}

// DecodeArgs builds the ffmpeg arguments that write f32le PCM to stdout.
func DecodeArgs(path string, sampleRate int) []string {
	return []string{
		"-hide_banner", "-nostdin", "-v", "error",
		"-i", path,
		"-vn",
		"-f", "f32le",
		"-acodec", "pcm_f32le",
		"-ac", strconv.Itoa(Channels),
		"-ar", strconv.Itoa(sampleRate),
		"pipe:1",
	}
}

func (d *Decoder) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if d.runner != nil {
		return d.runner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, services.Wrap(services.ErrExternalTool, "recording", "decode audio",
			strings.TrimSpace(stderr.String()), err)
	}
	return stdout.Bytes(), nil
}
