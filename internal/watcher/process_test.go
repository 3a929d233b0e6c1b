package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reelforge/internal/compositor"
	"reelforge/internal/history"
	"reelforge/internal/logging"
	"reelforge/internal/pipeline"
	"reelforge/internal/recorder"
	"reelforge/internal/services"
)

type fakeBackend struct {
	generated []pipeline.Request
	saved     []string
	recordErr error
}

func (f *fakeBackend) Generate(_ context.Context, req pipeline.Request, style compositor.Style, observer pipeline.Observer) (history.Record, error) {
	f.generated = append(f.generated, req)
	observer.OnProgress(pipeline.Progress{RunID: "run-1", Stage: pipeline.StageIllustrating, Images: pipeline.Counter{Completed: 1, Total: 2}})
	return history.Record{ID: "run-1", Request: req, Style: style}, nil
}

func (f *fakeBackend) Record(context.Context, history.Record, compositor.Style, recorder.ProgressFunc) (recorder.Recording, error) {
	if f.recordErr != nil {
		return recorder.Recording{}, f.recordErr
	}
	return recorder.Recording{Data: []byte("video"), Extension: ".mp4", Duration: 3}, nil
}

func (f *fakeBackend) SaveRecording(_ context.Context, rec history.Record, _ recorder.Recording, dir string) (string, error) {
	path := filepath.Join(dir, rec.ID+".mp4")
	f.saved = append(f.saved, path)
	return path, nil
}

func (f *fakeBackend) Style(override compositor.Style) compositor.Style { return override }

func defaults(script string) pipeline.Request {
	return pipeline.Request{Script: script, Voice: "v"}
}

func TestScriptHandlerRunsPipelineAndSaves(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "story.txt")
	writeFile(t, path, "  once upon a time  \n")

	backend := &fakeBackend{}
	out := filepath.Join(dir, "out")
	handler := ScriptHandler(backend, defaults, out, logging.NewNop())
	if err := handler(context.Background(), path); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if len(backend.generated) != 1 || backend.generated[0].Script != "once upon a time" {
		t.Fatalf("generated = %+v", backend.generated)
	}
	if len(backend.saved) != 1 || backend.saved[0] != filepath.Join(out, "run-1.mp4") {
		t.Fatalf("saved = %v", backend.saved)
	}
}

func TestScriptHandlerPropagatesRecordingError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "story.txt")
	writeFile(t, path, "text")

	backend := &fakeBackend{recordErr: services.ErrRecordingBusy}
	err := ScriptHandler(backend, defaults, dir, logging.NewNop())(context.Background(), path)
	if !errors.Is(err, services.ErrRecordingBusy) {
		t.Fatalf("err = %v, want ErrRecordingBusy", err)
	}
	if len(backend.saved) != 0 {
		t.Fatal("nothing should be saved after a recording failure")
	}
}

func TestReadScriptRejectsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.txt")
	writeFile(t, path, " \n\t ")
	if _, err := readScript(path); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestReadScriptRejectsOversized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.txt")
	writeFile(t, path, strings.Repeat("a", maxScriptBytes+1))
	if _, err := readScript(path); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestReadScriptDecodesBOM(t *testing.T) {
	dir := t.TempDir()

	utf8Path := filepath.Join(dir, "utf8.txt")
	if err := os.WriteFile(utf8Path, append([]byte{0xEF, 0xBB, 0xBF}, []byte("你好")...), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := readScript(utf8Path)
	if err != nil || got != "你好" {
		t.Fatalf("utf8 bom: got %q, %v", got, err)
	}

	// "hi" as UTF-16LE with a BOM.
	utf16Path := filepath.Join(dir, "utf16.txt")
	if err := os.WriteFile(utf16Path, []byte{0xFF, 0xFE, 'h', 0, 'i', 0}, 0o644); err != nil {
		t.Fatal(err)
	}
	got, err = readScript(utf16Path)
	if err != nil || got != "hi" {
		t.Fatalf("utf16 bom: got %q, %v", got, err)
	}
}
