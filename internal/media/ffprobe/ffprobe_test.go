package ffprobe

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"reelforge/internal/services"
)

const sampleJSON = `{
  "streams": [
    {"index": 0, "codec_name": "h264", "codec_type": "video", "width": 1920, "height": 1080},
    {"index": 1, "codec_name": "aac", "codec_type": "audio", "sample_rate": "48000", "channels": 2}
  ],
  "format": {"filename": "out.mp4", "nb_streams": 2, "duration": "5.021000", "size": "123456", "format_name": "mov,mp4,m4a,3gp,3g2,mj2"}
}`

func TestProberInspectUsesRunner(t *testing.T) {
	var gotName string
	var gotArgs []string
	p := NewProber("")
	p.WithRunner(func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotName, gotArgs = name, args
		return []byte(sampleJSON), nil
	})

	result, err := p.Inspect(context.Background(), "/tmp/out.mp4")
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if gotName != "ffprobe" || gotArgs[len(gotArgs)-1] != "/tmp/out.mp4" {
		t.Fatalf("unexpected command %s %v", gotName, gotArgs)
	}
	video, ok := result.VideoStream()
	if !ok || video.Width != 1920 {
		t.Fatalf("unexpected video stream %+v", video)
	}
	if result.SizeBytes() != 123456 {
		t.Fatalf("unexpected size %d", result.SizeBytes())
	}
}

func TestProberDuration(t *testing.T) {
	p := NewProber("ffprobe")
	p.WithRunner(func(context.Context, string, ...string) ([]byte, error) {
		return []byte(`{"format": {"duration": "12.5"}}`), nil
	})
	d, err := p.Duration(context.Background(), "narration.wav")
	if err != nil || d != 12.5 {
		t.Fatalf("Duration = %v, %v", d, err)
	}

	p.WithRunner(func(context.Context, string, ...string) ([]byte, error) {
		return []byte(`{"format": {}}`), nil
	})
	if _, err := p.Duration(context.Background(), "narration.wav"); err == nil {
		t.Fatal("expected error for missing duration")
	}
}

func TestProberWrapsToolFailure(t *testing.T) {
	p := NewProber("ffprobe")
	p.WithRunner(func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("exit status 1")
	})
	_, err := p.Inspect(context.Background(), "missing.mp4")
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
	if _, err := p.Inspect(context.Background(), " "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestResultHandlesInvalidNumbers(t *testing.T) {
	result := Result{Format: Format{Duration: "bad", Size: "-1"}}
	if !math.IsNaN(result.DurationSeconds()) {
		t.Fatalf("expected duration NaN, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
}

func TestValidate(t *testing.T) {
	good, err := Parse([]byte(sampleJSON))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := Validate(good, Expectation{Width: 1920, Height: 1080, Duration: 5}); err != nil {
		t.Fatalf("expected valid recording, got %v", err)
	}

	cases := []struct {
		name   string
		result Result
		want   Expectation
		substr string
	}{
		{"wrong size", good, Expectation{Width: 1280, Height: 720}, "expected 1280x720"},
		{"drift", good, Expectation{Duration: 6}, "duration 5.02s"},
		{"no audio", Result{Streams: []Stream{{CodecType: "video"}}}, Expectation{}, "no audio stream"},
		{"no video", Result{Streams: []Stream{{CodecType: "audio"}}}, Expectation{}, "no video stream"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.result, tc.want)
			if err == nil || !strings.Contains(err.Error(), tc.substr) {
				t.Fatalf("expected error containing %q, got %v", tc.substr, err)
			}
		})
	}
}
