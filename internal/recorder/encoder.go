package recorder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"reelforge/internal/services"
)

// EncoderSpec describes the streams handed to an encoder.
type EncoderSpec struct {
	Width      int
	Height     int
	FPS        int
	SampleRate int
	Channels   int
	Container  Container
	OutputPath string
}

// Encoder consumes raw RGBA frames and float PCM and writes the container to
// spec.OutputPath. Finish flushes and waits; Abort discards.
type Encoder interface {
	Start(ctx context.Context, spec EncoderSpec) error
	WriteVideo(frame []byte) error
	WriteAudio(pcm []byte) error
	Finish() error
	Abort()
}

// writeQueue is the number of chunks buffered per stream. Video and audio are
// written from separate goroutines so ffmpeg can drain either input first.
const writeQueue = 4

// FFmpegEncoder encodes through an ffmpeg child process: video on stdin, audio
// on an extra pipe (fd 3).
type FFmpegEncoder struct {
	binary string

	cmd    *exec.Cmd
	cancel context.CancelFunc
	stderr bytes.Buffer
	group  *errgroup.Group
	gctx   context.Context

	video chan []byte
	audio chan []byte
	close sync.Once
}

// NewFFmpegEncoder returns an encoder using binary.
func NewFFmpegEncoder(binary string) *FFmpegEncoder {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	return &FFmpegEncoder{binary: binary}
}

// EncodeArgs builds the ffmpeg command line for spec.
func EncodeArgs(spec EncoderSpec) []string {
	channels := spec.Channels
	if channels <= 0 {
		channels = 2
	}
	layout := "stereo"
	if channels == 1 {
		layout = "mono"
	}
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-f", "rawvideo", "-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", spec.Width, spec.Height),
		"-r", strconv.Itoa(spec.FPS),
		"-i", "pipe:0",
		"-f", "f32le", "-ar", strconv.Itoa(spec.SampleRate), "-ch_layout", layout,
		"-i", "pipe:3",
		"-map", "0:v", "-map", "1:a",
		"-c:v", spec.Container.VideoEncoder, "-pix_fmt", "yuv420p",
	}
	switch spec.Container.VideoEncoder {
	case "libx264":
		args = append(args, "-preset", "veryfast", "-crf", "20")
	case "libvpx", "libvpx-vp9":
		args = append(args, "-deadline", "realtime", "-cpu-used", "8", "-b:v", "4M")
	}
	args = append(args, "-c:a", spec.Container.AudioEncoder, "-b:a", "192k")
	if spec.Container.Format == "mp4" {
		args = append(args, "-movflags", "+faststart")
	}
	return append(args, "-f", spec.Container.Format, spec.OutputPath)
}

// Start launches ffmpeg.
func (e *FFmpegEncoder) Start(ctx context.Context, spec EncoderSpec) error {
	audioR, audioW, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("audio pipe: %w", err)
	}
	ctx, e.cancel = context.WithCancel(ctx)
	e.cmd = exec.CommandContext(ctx, e.binary, EncodeArgs(spec)...) //nolint:gosec
	e.cmd.ExtraFiles = []*os.File{audioR}
	e.cmd.Stderr = &e.stderr
	videoW, err := e.cmd.StdinPipe()
	if err != nil {
		audioR.Close()
		audioW.Close()
		e.cancel()
		return fmt.Errorf("video pipe: %w", err)
	}
	if err := e.cmd.Start(); err != nil {
		audioR.Close()
		audioW.Close()
		e.cancel()
		return services.Wrap(services.ErrExternalTool, "recording", "start encoder", e.binary, err)
	}
	audioR.Close()

	e.video = make(chan []byte, writeQueue)
	e.audio = make(chan []byte, writeQueue)
	e.group, e.gctx = errgroup.WithContext(ctx)
	e.group.Go(func() error { return drain(e.video, videoW) })
	e.group.Go(func() error { return drain(e.audio, audioW) })
	return nil
}

func drain(in <-chan []byte, w io.WriteCloser) error {
	defer w.Close()
	for chunk := range in {
		if _, err := w.Write(chunk); err != nil {
			return err
		}
	}
	return nil
}

// WriteVideo queues one RGBA frame. The slice is copied.
func (e *FFmpegEncoder) WriteVideo(frame []byte) error {
	return e.send(e.video, frame)
}

// WriteAudio queues a block of f32le PCM. The slice is copied.
func (e *FFmpegEncoder) WriteAudio(pcm []byte) error {
	return e.send(e.audio, pcm)
}

func (e *FFmpegEncoder) send(ch chan []byte, data []byte) error {
	chunk := append([]byte(nil), data...)
	select {
	case ch <- chunk:
		return nil
	case <-e.gctx.Done():
		return services.Wrap(services.ErrExternalTool, "recording", "encode", "encoder stopped accepting input", errors.New("input pipe closed"))
	}
}

func (e *FFmpegEncoder) closeInputs() {
	e.close.Do(func() {
		close(e.video)
		close(e.audio)
	})
}

// Finish closes both inputs and waits for ffmpeg to write the container.
func (e *FFmpegEncoder) Finish() error {
	e.closeInputs()
	writeErr := e.group.Wait()
	waitErr := e.cmd.Wait()
	e.cancel()
	if waitErr != nil {
		return e.failure(waitErr)
	}
	if writeErr != nil {
		return e.failure(writeErr)
	}
	return nil
}

// Abort kills ffmpeg and waits for it to exit.
func (e *FFmpegEncoder) Abort() {
	if e.cmd == nil {
		return
	}
	e.cancel()
	e.closeInputs()
	_ = e.group.Wait()
	_ = e.cmd.Wait()
}

func (e *FFmpegEncoder) failure(err error) error {
	return services.Wrap(services.ErrExternalTool, "recording", "encode", strings.TrimSpace(e.stderr.String()), err)
}
