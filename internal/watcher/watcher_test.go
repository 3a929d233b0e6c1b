package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"reelforge/internal/testsupport"
)

func writeFile(t *testing.T, path, text string) {
	t.Helper()
	testsupport.WriteScript(t, filepath.Dir(path), filepath.Base(path), text)
}

func waitForFile(t *testing.T, path string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		if _, err := os.Stat(path); err == nil {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", path)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func startWatcher(t *testing.T, w *Watcher) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	return func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run returned %v", err)
			}
		case <-time.After(3 * time.Second):
			t.Error("watcher did not stop")
		}
	}
}

func TestIsScript(t *testing.T) {
	tests := map[string]bool{
		"story.txt":        true,
		"/inbox/STORY.TXT": true,
		"notes.md":         false,
		".hidden.txt":      false,
		"archive.txt.gz":   false,
	}
	for path, want := range tests {
		if got := IsScript(path); got != want {
			t.Errorf("IsScript(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestRunProcessesBacklog(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "good.txt"), "hello")
	writeFile(t, filepath.Join(dir, "bad.txt"), "boom")
	writeFile(t, filepath.Join(dir, "readme.md"), "ignored")

	handler := func(_ context.Context, path string) error {
		if filepath.Base(path) == "bad.txt" {
			return errors.New("generation failed")
		}
		return nil
	}
	w := New(dir, handler, 2, WithSettle(10*time.Millisecond))
	stop := startWatcher(t, w)

	waitForFile(t, filepath.Join(dir, ProcessedDir, "good.txt"))
	waitForFile(t, filepath.Join(dir, FailedDir, "bad.txt"))
	stop()

	if _, err := os.Stat(filepath.Join(dir, "readme.md")); err != nil {
		t.Fatalf("non-script file should stay in place: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "good.txt")); !os.IsNotExist(err) {
		t.Fatalf("processed script should leave the inbox, stat err = %v", err)
	}
}

func TestRunPicksUpNewFiles(t *testing.T) {
	dir := t.TempDir()
	var calls atomic.Int32
	handler := func(context.Context, string) error {
		calls.Add(1)
		return nil
	}
	w := New(dir, handler, 1, WithSettle(20*time.Millisecond))
	stop := startWatcher(t, w)

	writeFile(t, filepath.Join(dir, "new.txt"), "fresh script")
	waitForFile(t, filepath.Join(dir, ProcessedDir, "new.txt"))
	stop()

	if got := calls.Load(); got != 1 {
		t.Fatalf("handler calls = %d, want 1", got)
	}
}

func TestRunHonorsConcurrency(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		writeFile(t, filepath.Join(dir, name), name)
	}

	var mu sync.Mutex
	inFlight, peak := 0, 0
	handler := func(context.Context, string) error {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()
		time.Sleep(30 * time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
		return nil
	}
	w := New(dir, handler, 1, WithSettle(5*time.Millisecond))
	stop := startWatcher(t, w)
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		waitForFile(t, filepath.Join(dir, ProcessedDir, name))
	}
	stop()

	if peak != 1 {
		t.Fatalf("peak concurrency = %d, want 1", peak)
	}
}

func TestRunRequiresHandler(t *testing.T) {
	w := New(t.TempDir(), nil, 1)
	if err := w.Run(context.Background()); err == nil {
		t.Fatal("expected error for nil handler")
	}
}
