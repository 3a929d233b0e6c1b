package testsupport

import (
	"context"
	"testing"

	"reelforge/internal/compositor"
	"reelforge/internal/config"
	"reelforge/internal/history"
	"reelforge/internal/pipeline"
)

// MustOpenHistory opens a history.Store for tests and registers cleanup.
func MustOpenHistory(t testing.TB, cfg *config.Config) *history.Store {
	t.Helper()

	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// PutRun stores a run for tests using the provided store.
func PutRun(t testing.TB, store *history.Store, req pipeline.Request, result pipeline.Result) history.Record {
	t.Helper()

	rec := history.NewRecord(req, compositor.Style{}, result)
	if err := store.Put(context.Background(), rec); err != nil {
		t.Fatalf("store.Put: %v", err)
	}
	return rec
}
