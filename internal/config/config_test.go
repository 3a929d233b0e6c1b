package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"reelforge/internal/config"
)

func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"DASHSCOPE_API_KEY", "EVOLINK_API_KEY", "REMOVE_BG_API_KEY"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	clearProviderEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "reelforge")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.HistoryPath() != filepath.Join(wantData, "history.db") {
		t.Fatalf("unexpected history path: %q", cfg.HistoryPath())
	}
	if cfg.Paths.APIBind != "127.0.0.1:7490" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Pipeline.IllustrationConcurrency != 10 || cfg.Pipeline.MattingConcurrency != 10 {
		t.Fatalf("expected concurrency caps of 10, got %d/%d", cfg.Pipeline.IllustrationConcurrency, cfg.Pipeline.MattingConcurrency)
	}
	if cfg.Pipeline.TranscriptionPollIntervalSeconds != 2 || cfg.Pipeline.TranscriptionPollAttempts != 30 {
		t.Fatalf("unexpected transcription polling: %ds x %d", cfg.Pipeline.TranscriptionPollIntervalSeconds, cfg.Pipeline.TranscriptionPollAttempts)
	}
	if cfg.Recording.Containers[0] != "video/mp4;codecs=avc1,mp4a.40.2" {
		t.Fatalf("unexpected container preference: %v", cfg.Recording.Containers)
	}
	if cfg.Style.MusicVolume != 0.2 {
		t.Fatalf("unexpected music volume: %v", cfg.Style.MusicVolume)
	}
	if err := cfg.RequireProviders(); err == nil {
		t.Fatal("expected missing provider credentials to be reported")
	}
}

func TestLoadUsesEnvCredentials(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	t.Setenv("DASHSCOPE_API_KEY", " ds-key ")
	t.Setenv("EVOLINK_API_KEY", "ev-key")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.DashScope.APIKey != "ds-key" {
		t.Fatalf("expected trimmed DashScope key, got %q", cfg.DashScope.APIKey)
	}
	if cfg.Evolink.APIKey != "ev-key" {
		t.Fatalf("expected Evolink key from env, got %q", cfg.Evolink.APIKey)
	}
	if err := cfg.RequireProviders(); err != nil {
		t.Fatalf("RequireProviders returned error: %v", err)
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("REMOVE_BG_API_KEY=rb-key\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("REMOVE_BG_API_KEY") })

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.RemoveBG.APIKey != "rb-key" {
		t.Fatalf("expected remove.bg key from .env, got %q", cfg.RemoveBG.APIKey)
	}
}

func TestLoadCustomPath(t *testing.T) {
	clearProviderEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	configPath := filepath.Join(t.TempDir(), "config.toml")
	payload := map[string]any{
		"paths": map[string]any{
			"data_dir":   "~/custom-data",
			"output_dir": "~/videos",
		},
		"pipeline": map[string]any{
			"matting":                  "CSS-Blend",
			"illustration_concurrency": 4,
		},
		"style": map[string]any{
			"background_image": "https://cdn.example.com/bg.jpg",
			"music":            "~/music/bed.mp3",
		},
	}
	data, err := toml.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal toml: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected existing config at %q, got %q (exists=%v)", configPath, resolved, exists)
	}
	if cfg.Paths.DataDir != filepath.Join(tempHome, "custom-data") {
		t.Fatalf("unexpected data dir: %q", cfg.Paths.DataDir)
	}
	if cfg.Pipeline.Matting != "css-blend" {
		t.Fatalf("expected lowercased matting mode, got %q", cfg.Pipeline.Matting)
	}
	if cfg.Pipeline.IllustrationConcurrency != 4 {
		t.Fatalf("unexpected illustration concurrency: %d", cfg.Pipeline.IllustrationConcurrency)
	}
	if cfg.Pipeline.MattingConcurrency != 10 {
		t.Fatalf("expected default matting concurrency, got %d", cfg.Pipeline.MattingConcurrency)
	}
	if cfg.Style.BackgroundImage != "https://cdn.example.com/bg.jpg" {
		t.Fatalf("remote reference should be untouched, got %q", cfg.Style.BackgroundImage)
	}
	if cfg.Style.Music != filepath.Join(tempHome, "music", "bed.mp3") {
		t.Fatalf("unexpected music path: %q", cfg.Style.Music)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"matting", func(c *config.Config) { c.Pipeline.Matting = "magic" }, "pipeline.matting"},
		{"volume", func(c *config.Config) { c.Style.MusicVolume = 1.5 }, "style.music_volume"},
		{"opacity", func(c *config.Config) { c.Style.SubtitleBackgroundOpacity = -0.1 }, "style.subtitle_background_opacity"},
		{"odd width", func(c *config.Config) { c.Recording.Width = 1921 }, "must be even"},
		{"concurrency", func(c *config.Config) { c.Pipeline.IllustrationConcurrency = 0 }, "pipeline.illustration_concurrency"},
		{"color", func(c *config.Config) { c.Style.SubtitleColor = "white" }, "style.subtitle_color"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %q in error, got %v", tt.want, err)
			}
		})
	}
}

func TestRequireProvidersRemoveBG(t *testing.T) {
	cfg := config.Default()
	cfg.DashScope.APIKey = "a"
	cfg.Evolink.APIKey = "b"
	cfg.Pipeline.Matting = "removebg-api"
	if err := cfg.RequireProviders(); err == nil || !strings.Contains(err.Error(), "removebg.api_key") {
		t.Fatalf("expected remove.bg key requirement, got %v", err)
	}
}

func TestCreateSampleParses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var cfg config.Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("sample config does not parse: %v", err)
	}
	if cfg.Recording.FPS != 30 {
		t.Fatalf("unexpected sample fps: %d", cfg.Recording.FPS)
	}
}
