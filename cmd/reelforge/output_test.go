package main

import (
	"bytes"
	"strings"
	"testing"

	"reelforge/internal/compositor"
	"reelforge/internal/pipeline"
	"reelforge/internal/transcript"
)

func TestReadScriptInput(t *testing.T) {
	got, err := readScriptInput(strings.NewReader(""), "", []string{"hello", "world"})
	if err != nil || got != "hello world" {
		t.Fatalf("args: got %q, %v", got, err)
	}

	got, err = readScriptInput(strings.NewReader("  from stdin \n"), "-", nil)
	if err != nil || got != "from stdin" {
		t.Fatalf("stdin: got %q, %v", got, err)
	}

	if _, err := readScriptInput(strings.NewReader(""), "", nil); err == nil {
		t.Fatal("expected error without input")
	}
	if _, err := readScriptInput(strings.NewReader("   "), "-", nil); err == nil {
		t.Fatal("expected error for blank script")
	}
}

func TestFormatSeconds(t *testing.T) {
	tests := map[float64]string{
		0:     "00:00.0",
		3.3:   "00:03.3",
		65.5:  "01:05.5",
		-1:    "00:00.0",
		600.0: "10:00.0",
	}
	for in, want := range tests {
		if got := formatSeconds(in); got != want {
			t.Errorf("formatSeconds(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestProgressPrinterSamplesWhenNotTerminal(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressPrinter(&buf)
	p.OnProgress(pipeline.Progress{Stage: pipeline.StageNarrating})
	p.OnProgress(pipeline.Progress{Stage: pipeline.StageNarrating})
	for i := 0; i <= 8; i++ {
		p.OnProgress(pipeline.Progress{Stage: pipeline.StageIllustrating, Images: pipeline.Counter{Completed: i, Total: 8}})
	}
	p.Done()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if lines[0] != "narrating" {
		t.Fatalf("first line = %q", lines[0])
	}
	if strings.Count(buf.String(), "narrating") != 1 {
		t.Fatalf("repeated stage should be suppressed:\n%s", buf.String())
	}
	requireContains(t, buf.String(), "illustrating 8/8 images")
	if len(lines) >= 10 {
		t.Fatalf("expected sampled output, got %d lines", len(lines))
	}
}

func TestTerminalViewSkipsAnimationFrames(t *testing.T) {
	var buf bytes.Buffer
	view := terminalView(&buf)
	seg := transcript.Segment{Text: "Hello", StartTime: 0, EndTime: 1}
	img := pipeline.ImageTask{Index: 0}

	view.Show(0, compositor.VisualState{Subtitle: &seg, Image: &img, Scale: 70})
	view.Show(0.05, compositor.VisualState{Subtitle: &seg, Image: &img, Scale: 60})
	view.Show(0.1, compositor.VisualState{Subtitle: &seg, Image: &img, Scale: 50})
	view.Show(1.5, compositor.VisualState{Image: &img, Scale: 50})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %q", lines)
	}
	requireContains(t, lines[0], "[image 0] Hello")
}

func TestRenderStatusLine(t *testing.T) {
	plain := renderStatusLine("ffmpeg", statusOK, "found", false)
	if plain != "  ffmpeg:                [OK] found" {
		t.Fatalf("unexpected plain line %q", plain)
	}
	if strings.Contains(plain, "\x1b[") {
		t.Fatalf("plain line carries escape codes: %q", plain)
	}
	colored := renderStatusLine("ffmpeg", statusError, "missing", true)
	if !strings.Contains(colored, "ffmpeg:") || !strings.Contains(colored, "[ERROR] missing") {
		t.Fatalf("colored line lost its text: %q", colored)
	}
}
