package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteScript writes a narration script into dir and returns its path.
func WriteScript(t testing.TB, dir, name, text string) string {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
