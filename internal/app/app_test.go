package app_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"reelforge/internal/app"
	"reelforge/internal/compositor"
	"reelforge/internal/logging"
	"reelforge/internal/matting"
	"reelforge/internal/pipeline"
	"reelforge/internal/recorder"
	"reelforge/internal/services"
	"reelforge/internal/testsupport"
	"reelforge/internal/transcript"
)

type fakeGenerator struct {
	err      error
	regenErr error
}

func (g *fakeGenerator) Run(_ context.Context, req pipeline.Request, observer pipeline.Observer) (pipeline.Result, error) {
	if g.err != nil {
		return pipeline.Result{}, g.err
	}
	if observer != nil {
		observer.OnProgress(pipeline.Progress{RunID: "run-1", Stage: pipeline.StageReady})
	}
	return pipeline.Result{
		RunID:     "run-1",
		CreatedAt: time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC),
		AudioURL:  "https://cdn.example/a.wav",
		Subtitles: []transcript.Segment{{Text: "一。", StartTime: 0, EndTime: 1}, {Text: "二。", StartTime: 1, EndTime: 2}},
		Images: []pipeline.ImageTask{
			{Index: 0, RawURL: "r0", ProcessedURL: "r0", Status: pipeline.ImageSucceeded},
			{Index: 1, RawURL: req.CharacterImage, ProcessedURL: req.CharacterImage, Status: pipeline.ImageFailedFallback},
		},
	}, nil
}

func (g *fakeGenerator) Regenerate(_ context.Context, _ pipeline.Request, _ pipeline.Result, index int) (pipeline.ImageTask, error) {
	if g.regenErr != nil {
		return pipeline.ImageTask{}, g.regenErr
	}
	return pipeline.ImageTask{Index: index, RawURL: "new", ProcessedURL: "new", Status: pipeline.ImageSucceeded}, nil
}

type fakeRecorder struct {
	styles []compositor.Style
}

func (r *fakeRecorder) Record(_ context.Context, _ pipeline.Result, style compositor.Style, _ recorder.ProgressFunc) (recorder.Recording, error) {
	r.styles = append(r.styles, style)
	return recorder.Recording{Data: []byte("mp4"), MIMEType: "video/mp4", Extension: ".mp4", Duration: 2}, nil
}

func (*fakeRecorder) Busy() bool { return false }

type fakeNotifier struct {
	mu        sync.Mutex
	completed []int
	failed    []error
	recorded  []string
}

func (n *fakeNotifier) NotifyRunCompleted(_ context.Context, _ string, images, fallbacks int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed = append(n.completed, images, fallbacks)
	return nil
}

func (n *fakeNotifier) NotifyRunFailed(_ context.Context, _ string, err error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, err)
	return nil
}

func (n *fakeNotifier) NotifyRecordingCompleted(_ context.Context, _, path string, _ time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.recorded = append(n.recorded, path)
	return errors.New("ntfy down")
}

func (n *fakeNotifier) TestNotification(context.Context) error { return nil }

func newApp(t *testing.T, gen *fakeGenerator) (*app.App, *fakeNotifier) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	notifier := &fakeNotifier{}
	return &app.App{
		Config:    cfg,
		Logger:    logging.NewNop(),
		Generator: gen,
		Recorder:  &fakeRecorder{},
		History:   testsupport.MustOpenHistory(t, cfg),
		Notifier:  notifier,
	}, notifier
}

func TestGenerateStoresHistoryAndNotifies(t *testing.T) {
	a, notifier := newApp(t, &fakeGenerator{})
	req := pipeline.Request{Script: "一。二。", CharacterImage: "char.png"}

	rec, err := a.Generate(context.Background(), req, compositor.Style{MusicVolume: compositor.Float(0.2)}, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if rec.ID != "run-1" || rec.Title != "一。二。" {
		t.Fatalf("unexpected record %+v", rec)
	}
	stored, err := a.Lookup(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if stored.Style.MusicGain() != 0.2 || len(stored.Result.Images) != 2 {
		t.Fatalf("unexpected stored record %+v", stored)
	}
	if len(notifier.completed) != 2 || notifier.completed[0] != 2 || notifier.completed[1] != 1 {
		t.Fatalf("unexpected completion notification %v", notifier.completed)
	}
}

func TestGenerateFailureNotifies(t *testing.T) {
	boom := services.Wrap(services.ErrNarration, "narrating", "narrate", "", errors.New("401"))
	a, notifier := newApp(t, &fakeGenerator{err: boom})

	_, err := a.Generate(context.Background(), pipeline.Request{Script: "x"}, compositor.Style{}, nil)
	if !errors.Is(err, services.ErrNarration) {
		t.Fatalf("expected ErrNarration, got %v", err)
	}
	if len(notifier.failed) != 1 || !errors.Is(notifier.failed[0], services.ErrNarration) {
		t.Fatalf("unexpected failure notifications %v", notifier.failed)
	}
	records, err := a.History.List(context.Background())
	if err != nil || len(records) != 0 {
		t.Fatalf("expected empty history, got %d (%v)", len(records), err)
	}
}

func TestRegenerateUpdatesHistory(t *testing.T) {
	a, _ := newApp(t, &fakeGenerator{})
	ctx := context.Background()
	rec, err := a.Generate(ctx, pipeline.Request{Script: "一。二。", CharacterImage: "char.png"}, compositor.Style{}, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	updated, err := a.Regenerate(ctx, rec, 1)
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	if updated.Result.Images[1].RawURL != "new" || rec.Result.Images[1].RawURL != "char.png" {
		t.Fatalf("regenerate should copy images: updated=%+v original=%+v", updated.Result.Images[1], rec.Result.Images[1])
	}
	stored, err := a.Lookup(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if stored.Result.Images[1].Status != pipeline.ImageSucceeded {
		t.Fatalf("expected stored image to be replaced, got %+v", stored.Result.Images[1])
	}
}

func TestRecordUsesRunMattingMode(t *testing.T) {
	tests := []struct {
		name       string
		configured matting.Mode
		requested  matting.Mode
	}{
		{"request css-blend over config auto", matting.ModeAuto, matting.ModeCSSBlend},
		{"request none over config css-blend", matting.ModeCSSBlend, matting.ModeNone},
		{"request checkerboard-remove", matting.ModeNone, matting.ModeCheckerboardRemove},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := newApp(t, &fakeGenerator{})
			rec := &fakeRecorder{}
			a.Recorder = rec
			a.Config.Pipeline.Matting = string(tt.configured)
			ctx := context.Background()

			req := pipeline.Request{Script: "一。二。", Matting: tt.requested}
			stored, err := a.Generate(ctx, req, a.Style(compositor.Style{}), nil)
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if _, err := a.Record(ctx, stored, a.Style(compositor.Style{Matting: tt.configured}), nil); err != nil {
				t.Fatalf("Record: %v", err)
			}
			if len(rec.styles) != 1 || rec.styles[0].Matting != tt.requested {
				t.Fatalf("recorded with %+v, want matting %q", rec.styles, tt.requested)
			}
		})
	}
}

func TestLookupMissing(t *testing.T) {
	a, _ := newApp(t, &fakeGenerator{})
	if _, err := a.Lookup(context.Background(), "nope"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveRecordingWritesFile(t *testing.T) {
	a, notifier := newApp(t, &fakeGenerator{})
	ctx := context.Background()
	rec, err := a.Generate(ctx, pipeline.Request{Script: "一。二。"}, compositor.Style{}, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	recording, err := a.Record(ctx, rec, compositor.Style{}, nil)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	dir := t.TempDir()
	path, err := a.SaveRecording(ctx, rec, recording, dir)
	if err != nil {
		t.Fatalf("SaveRecording: %v", err)
	}
	if path != filepath.Join(dir, "run-1.mp4") {
		t.Fatalf("unexpected path %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "mp4" {
		t.Fatalf("unexpected file contents %q (%v)", data, err)
	}
	// A failing notifier is logged, not returned.
	if len(notifier.recorded) != 1 {
		t.Fatalf("expected recording notification, got %v", notifier.recorded)
	}
}
