package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"reelforge/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("Authorization") {
		case "Bearer good-key":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer srv.Close()

	if result := CheckEndpoint(context.Background(), "DashScope", srv.URL, "good-key"); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if result := CheckEndpoint(context.Background(), "DashScope", srv.URL, "bad-key"); result.Passed {
		t.Fatal("expected failure for bad key")
	}
	if result := CheckEndpoint(context.Background(), "DashScope", "", "key"); result.Passed {
		t.Fatal("expected failure for missing URL")
	}
}

func TestCheckAPIKey(t *testing.T) {
	if CheckAPIKey("k", " ").Passed {
		t.Fatal("expected blank key to fail")
	}
	if !CheckAPIKey("k", "sk-1").Passed {
		t.Fatal("expected key to pass")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_ReportsMissingKeys(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()
	cfg.Paths.OutputDir = t.TempDir()
	cfg.Paths.InboxDir = ""
	cfg.DashScope.APIKey = "sk-test"
	cfg.Evolink.APIKey = ""
	cfg.Pipeline.Matting = "removebg-api"
	cfg.RemoveBG.APIKey = ""

	results := RunAll(context.Background(), &cfg)
	byName := make(map[string]Result)
	for _, r := range results {
		byName[r.Name] = r
	}
	if !byName["Data directory"].Passed || !byName["Output directory"].Passed {
		t.Fatalf("expected directory checks to pass: %+v", results)
	}
	if !byName["DashScope API key"].Passed {
		t.Fatal("expected DashScope key to pass")
	}
	if byName["Evolink API key"].Passed {
		t.Fatal("expected Evolink key to fail")
	}
	rb, ok := byName["remove.bg API key"]
	if !ok || rb.Passed || rb.Optional {
		t.Fatalf("expected blocking remove.bg failure, got %+v", rb)
	}

	blocking := Blocking(results)
	names := make(map[string]bool)
	for _, r := range blocking {
		names[r.Name] = true
	}
	if !names["Evolink API key"] || !names["remove.bg API key"] {
		t.Fatalf("unexpected blocking set %v", names)
	}
	if names["FFprobe"] || names["FFplay"] {
		t.Fatalf("optional binaries must not block: %v", names)
	}
}

func TestRunAll_AutoMattingKeyOptional(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()
	cfg.Paths.OutputDir = t.TempDir()
	cfg.Pipeline.Matting = "auto"

	for _, r := range RunAll(context.Background(), &cfg) {
		if r.Name == "remove.bg API key" && !r.Optional {
			t.Fatal("expected remove.bg key to be optional in auto mode")
		}
	}
}
