package audiograph_test

import (
	"bytes"
	"context"
	"io"
	"math"
	"slices"
	"sync"
	"testing"
	"time"

	"reelforge/internal/audiograph"
)

func constant(value float32, frames, rate int) audiograph.Buffer {
	buf := audiograph.Silence(frames, 2, rate)
	for i := range buf.Samples {
		buf.Samples[i] = value
	}
	return buf
}

func near(a, b float32) bool { return math.Abs(float64(a-b)) < 1e-6 }

func TestGraphMixesGainedSources(t *testing.T) {
	graph := audiograph.NewGraph(100, 2)
	graph.Connect(audiograph.NewSource(constant(0.5, 10, 100), false), 1.0)
	graph.Connect(audiograph.NewSource(constant(0.5, 3, 100), true), 0.2)
	graph.Start()

	out := graph.Render(10)
	if len(out) != 20 {
		t.Fatalf("expected 20 samples, got %d", len(out))
	}
	for i, s := range out {
		if !near(s, 0.6) {
			t.Fatalf("sample %d = %v, want 0.6", i, s)
		}
	}

	// Narration ended; the looping music continues alone.
	out = graph.Render(5)
	for i, s := range out {
		if !near(s, 0.1) {
			t.Fatalf("sample %d after narration = %v, want 0.1", i, s)
		}
	}
	if got := graph.Elapsed(); got != 0.15 {
		t.Fatalf("Elapsed = %v, want 0.15", got)
	}
}

func TestGraphClampsAndStops(t *testing.T) {
	graph := audiograph.NewGraph(10, 2)
	graph.Connect(audiograph.NewSource(constant(0.9, 10, 10), false), 1)
	gain := graph.Connect(audiograph.NewSource(constant(0.9, 10, 10), false), 1)
	graph.Start()
	if out := graph.Render(1); out[0] != 1 {
		t.Fatalf("expected clamped sample, got %v", out[0])
	}
	gain.Set(0)
	if out := graph.Render(1); !near(out[0], 0.9) {
		t.Fatalf("expected single source after gain change, got %v", out[0])
	}
	graph.Stop()
	if out := graph.Render(2); out[0] != 0 || out[3] != 0 {
		t.Fatalf("stopped graph must render silence, got %v", out)
	}
	if graph.RenderedFrames() != 4 {
		t.Fatalf("clock must keep advancing, got %d frames", graph.RenderedFrames())
	}
}

func TestGraphSilentBeforeStart(t *testing.T) {
	graph := audiograph.NewGraph(10, 2)
	graph.Connect(audiograph.NewSource(constant(0.5, 10, 10), false), 1)
	if out := graph.Render(1); out[0] != 0 {
		t.Fatalf("unstarted source must be silent, got %v", out[0])
	}
}

func TestF32LERoundTrip(t *testing.T) {
	samples := []float32{0, 0.25, -0.5, 1}
	buf, err := audiograph.DecodeF32LE(audiograph.AppendF32LE(nil, samples), 2, 48000)
	if err != nil {
		t.Fatalf("DecodeF32LE: %v", err)
	}
	if !slices.Equal(buf.Samples, samples) || buf.Frames() != 2 {
		t.Fatalf("decoded %+v", buf)
	}
}

func TestDecoderUsesFFmpegArgs(t *testing.T) {
	decoder := audiograph.NewDecoder("ffmpeg-test", 48000)
	var gotName string
	var gotArgs []string
	decoder.WithRunner(func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotName, gotArgs = name, args
		return audiograph.AppendF32LE(nil, make([]float32, 48000*2)), nil
	})
	buf, err := decoder.Decode(context.Background(), "/tmp/narration.wav")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if gotName != "ffmpeg-test" || !slices.Contains(gotArgs, "/tmp/narration.wav") || !slices.Contains(gotArgs, "48000") {
		t.Fatalf("unexpected command %s %v", gotName, gotArgs)
	}
	if buf.Duration() != 1 {
		t.Fatalf("Duration = %v, want 1", buf.Duration())
	}

	decoder.WithRunner(func(context.Context, string, ...string) ([]byte, error) { return nil, nil })
	if _, err := decoder.Decode(context.Background(), "/tmp/empty.wav"); err == nil {
		t.Fatal("expected error for empty output")
	}
}

type syncBuffer struct {
	mu sync.Mutex
	bytes.Buffer
	closed bool
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Buffer.Write(p)
}

func (b *syncBuffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func TestPlaybackStreamsDuration(t *testing.T) {
	graph := audiograph.NewGraph(1000, 2)
	graph.Connect(audiograph.NewSource(constant(0.5, 1000, 1000), false), 1)
	playback := audiograph.NewPlayback(graph, "ffplay-test")
	sink := &syncBuffer{}
	var gotArgs []string
	playback.WithStarter(func(_ context.Context, name string, args ...string) (io.WriteCloser, func() error, error) {
		gotArgs = args
		return sink, func() error { return nil }, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := playback.Run(ctx, 0.2); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !sink.closed {
		t.Fatal("player input must be closed")
	}
	if got := sink.Len(); got != 200*2*4 {
		t.Fatalf("wrote %d bytes, want %d", got, 200*2*4)
	}
	if !slices.Contains(gotArgs, "f32le") || !slices.Contains(gotArgs, "1000") {
		t.Fatalf("unexpected player args %v", gotArgs)
	}
	if e := playback.Elapsed(); e <= 0 || e > 0.2 {
		t.Fatalf("Elapsed = %v", e)
	}
}
