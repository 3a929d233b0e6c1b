package audiograph

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

const (
	playbackChunk = 20 * time.Millisecond
	playbackLead  = 100 * time.Millisecond
)

// Playback streams a graph to ffplay in real time. Its clock is the audio
// handed to the player minus the buffered lead, which keeps subtitles in step
// with what is audible.
type Playback struct {
	graph  *Graph
	ffplay string
	start  func(ctx context.Context, name string, args ...string) (io.WriteCloser, func() error, error)
	now    func() time.Time
	played atomic.Int64
}

// NewPlayback prepares live playback of graph through ffplay.
func NewPlayback(graph *Graph, ffplayBinary string) *Playback {
	if strings.TrimSpace(ffplayBinary) == "" {
		ffplayBinary = "ffplay"
	}
	return &Playback{graph: graph, ffplay: ffplayBinary, start: startPlayer, now: time.Now}
}

// WithStarter replaces process creation (for testing). The returned function
// waits for the player to exit.
func (p *Playback) WithStarter(start func(ctx context.Context, name string, args ...string) (io.WriteCloser, func() error, error)) {
	p.start = start
}

// Elapsed implements the compositor clock.
func (p *Playback) Elapsed() float64 {
	rate := p.graph.SampleRate()
	if rate <= 0 {
		return 0
	}
	frames := p.played.Load() - int64(playbackLead.Seconds()*float64(rate))
	if frames < 0 {
		return 0
	}
	return float64(frames) / float64(rate)
}

// PlayerArgs builds the ffplay arguments for raw float PCM on stdin.
func PlayerArgs(sampleRate, channels int) []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-nodisp", "-autoexit",
		"-f", "f32le",
		"-ar", strconv.Itoa(sampleRate),
		"-ch_layout", channelLayout(channels),
		"-i", "pipe:0",
	}
}

func channelLayout(channels int) string {
	if channels == 1 {
		return "mono"
	}
	return "stereo"
}

// Run plays until duration seconds of audio have been handed over or ctx is
// done. Sources are started here and stopped on return.
func (p *Playback) Run(ctx context.Context, duration float64) error {
	stdin, wait, err := p.start(ctx, p.ffplay, PlayerArgs(p.graph.SampleRate(), p.graph.Channels())...)
	if err != nil {
		return err
	}
	p.graph.Start()
	defer p.graph.Stop()

	rate := p.graph.SampleRate()
	chunk := int(playbackChunk.Seconds() * float64(rate))
	lead := int64(playbackLead.Seconds() * float64(rate))
	total := int64(duration * float64(rate))
	began := p.now()
	ticker := time.NewTicker(playbackChunk)
	defer ticker.Stop()

	var buf []byte
	for p.played.Load() < total {
		due := int64(p.now().Sub(began).Seconds()*float64(rate)) + lead
		for p.played.Load() < due && p.played.Load() < total {
			n := chunk
			if remaining := total - p.played.Load(); int64(n) > remaining {
				n = int(remaining)
			}
			buf = AppendF32LE(buf[:0], p.graph.Render(n))
			if _, err := stdin.Write(buf); err != nil {
				_ = stdin.Close()
				_ = wait()
				return fmt.Errorf("write audio to player: %w", err)
			}
			p.played.Add(int64(n))
		}
		select {
		case <-ctx.Done():
			_ = stdin.Close()
			_ = wait()
			return ctx.Err()
		case <-ticker.C:
		}
	}
	if err := stdin.Close(); err != nil {
		return fmt.Errorf("close player input: %w", err)
	}
	if err := wait(); err != nil && !errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("player exited: %w", err)
	}
	return nil
}

func startPlayer(ctx context.Context, name string, args ...string) (io.WriteCloser, func() error, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("player stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("start %s: %w", name, err)
	}
	return stdin, cmd.Wait, nil
}
