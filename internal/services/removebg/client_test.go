package removebg_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"reelforge/internal/assets"
	"reelforge/internal/services/apiclient"
	"reelforge/internal/services/removebg"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestRemoveBackgroundByURL(t *testing.T) {
	cutout := pngBytes(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "rb-key" {
			t.Errorf("missing api key header")
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.FormValue("image_url") != "https://cdn.example/in.png" || r.FormValue("size") != "auto" {
			t.Errorf("unexpected form: %v", r.MultipartForm.Value)
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(cutout)
	}))
	defer srv.Close()

	store := assets.NewStore(t.TempDir())
	client := removebg.New(removebg.Config{APIKey: "rb-key", URL: srv.URL, Timeout: 5 * time.Second}, store)
	ref, err := client.RemoveBackground(context.Background(), "https://cdn.example/in.png")
	if err != nil {
		t.Fatalf("RemoveBackground returned error: %v", err)
	}
	path, err := assets.LocalPath(ref)
	if err != nil {
		t.Fatalf("LocalPath: %v", err)
	}
	if filepath.Ext(path) != ".png" {
		t.Fatalf("expected png asset, got %s", path)
	}
	saved, err := os.ReadFile(path)
	if err != nil || !bytes.Equal(saved, cutout) {
		t.Fatalf("saved asset mismatch: %v", err)
	}
}

func TestRemoveBackgroundUploadsLocalFile(t *testing.T) {
	source := pngBytes(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, _, err := r.FormFile("image_file")
		if err != nil {
			t.Fatalf("expected uploaded file: %v", err)
		}
		defer file.Close()
		got, _ := io.ReadAll(file)
		if !bytes.Equal(got, source) {
			t.Errorf("uploaded bytes differ")
		}
		if r.FormValue("image_url") != "" {
			t.Errorf("local input must not be sent by url")
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(source)
	}))
	defer srv.Close()

	dir := t.TempDir()
	input := filepath.Join(dir, "in.png")
	if err := os.WriteFile(input, source, 0o644); err != nil {
		t.Fatal(err)
	}
	client := removebg.New(removebg.Config{APIKey: "rb-key", URL: srv.URL}, assets.NewStore(dir))
	if _, err := client.RemoveBackground(context.Background(), input); err != nil {
		t.Fatalf("RemoveBackground returned error: %v", err)
	}
}

func TestRemoveBackgroundErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":[{"title":"Insufficient credits"}]}`, http.StatusPaymentRequired)
	}))
	defer srv.Close()

	store := assets.NewStore(t.TempDir())
	client := removebg.New(removebg.Config{APIKey: "rb-key", URL: srv.URL}, store, apiclient.WithSleeper(func(time.Duration) {}))
	if _, err := client.RemoveBackground(context.Background(), "https://cdn.example/in.png"); err == nil {
		t.Fatal("expected error for 402 response")
	}

	unkeyed := removebg.New(removebg.Config{URL: srv.URL}, store)
	if _, err := unkeyed.RemoveBackground(context.Background(), "https://cdn.example/in.png"); err == nil {
		t.Fatal("expected error without api key")
	}
}
