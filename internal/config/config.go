package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
	InboxDir  string `toml:"inbox_dir"`
	APIBind   string `toml:"api_bind"`
}

// DashScope contains configuration for narration and transcription.
type DashScope struct {
	APIKey         string   `toml:"api_key"`
	BaseURL        string   `toml:"base_url"`
	TTSModel       string   `toml:"tts_model"`
	ASRModel       string   `toml:"asr_model"`
	Language       string   `toml:"language"`
	LanguageHints  []string `toml:"language_hints"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
}

// Evolink contains configuration for the image generation provider.
type Evolink struct {
	APIKey              string `toml:"api_key"`
	BaseURL             string `toml:"base_url"`
	Model               string `toml:"model"`
	Size                string `toml:"size"`
	PollIntervalSeconds int    `toml:"poll_interval_seconds"`
	PollAttempts        int    `toml:"poll_attempts"`
	TimeoutSeconds      int    `toml:"timeout_seconds"`
}

// RemoveBG contains configuration for the remote matting API.
type RemoveBG struct {
	APIKey         string `toml:"api_key"`
	URL            string `toml:"url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// LocalMatting configures the command used for on-host background removal.
// Args may reference {input} and {output}.
type LocalMatting struct {
	Command        string   `toml:"command"`
	Args           []string `toml:"args"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
}

// Pipeline contains generation defaults and concurrency limits.
type Pipeline struct {
	Voice                            string `toml:"voice"`
	CharacterImage                   string `toml:"character_image"`
	Model                            string `toml:"model"`
	Matting                          string `toml:"matting"`
	IllustrationConcurrency          int    `toml:"illustration_concurrency"`
	MattingConcurrency               int    `toml:"matting_concurrency"`
	TranscriptionPollIntervalSeconds int    `toml:"transcription_poll_interval_seconds"`
	TranscriptionPollAttempts        int    `toml:"transcription_poll_attempts"`
	PromptCatalog                    string `toml:"prompt_catalog"`
	WatchConcurrency                 int    `toml:"watch_concurrency"`
}

// Style contains the visual and audio defaults applied to every frame.
type Style struct {
	BackgroundImage           string  `toml:"background_image"`
	Watermark                 string  `toml:"watermark"`
	HeaderLeft                string  `toml:"header_left"`
	HeaderRight               string  `toml:"header_right"`
	Music                     string  `toml:"music"`
	MusicVolume               float64 `toml:"music_volume"`
	SubtitleFontSize          float64 `toml:"subtitle_font_size"`
	SubtitleColor             string  `toml:"subtitle_color"`
	SubtitleBackgroundOpacity float64 `toml:"subtitle_background_opacity"`
	FontPath                  string  `toml:"font_path"`
}

// Recording contains canvas, encoder, and tool settings.
type Recording struct {
	Width         int      `toml:"width"`
	Height        int      `toml:"height"`
	FPS           int      `toml:"fps"`
	SampleRate    int      `toml:"sample_rate"`
	FFmpegBinary  string   `toml:"ffmpeg_binary"`
	FFprobeBinary string   `toml:"ffprobe_binary"`
	FFplayBinary  string   `toml:"ffplay_binary"`
	Containers    []string `toml:"containers"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	RunComplete    bool   `toml:"run_complete"`
	RunFailed      bool   `toml:"run_failed"`
	Recording      bool   `toml:"recording"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for reelforge.
//
// Configuration sections by subsystem:
//   - Paths: data/output/log/inbox directories and API bind address
//   - DashScope: narration (TTS) and transcription (ASR)
//   - Evolink: image generation
//   - RemoveBG, LocalMatting: background removal providers
//   - Pipeline: generation defaults, concurrency caps, polling
//   - Style: frame styling and background music
//   - Recording: canvas size, frame rate, encoder tools
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	DashScope     DashScope     `toml:"dashscope"`
	Evolink       Evolink       `toml:"evolink"`
	RemoveBG      RemoveBG      `toml:"removebg"`
	LocalMatting  LocalMatting  `toml:"local_matting"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Style         Style         `toml:"style"`
	Recording     Recording     `toml:"recording"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. Environment files (.env, .env.local) in the
// working directory are loaded first so credential fallbacks can read them; variables
// already present in the process environment win.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	if err := loadEnvFiles(); err != nil {
		return nil, "", false, err
	}

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func loadEnvFiles() error {
	for _, name := range []string{".env.local", ".env"} {
		info, err := os.Stat(name)
		if err != nil || info.IsDir() {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			return fmt.Errorf("load %s: %w", name, err)
		}
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("reelforge.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data, output, and log directories. The inbox
// directory is only created when watch mode needs it.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.OutputDir, c.Paths.LogDir, c.AssetsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// AssetsDir is where downloaded and matted images are stored.
func (c *Config) AssetsDir() string {
	return filepath.Join(c.Paths.DataDir, "assets")
}

// HistoryPath is the SQLite database holding recent generations.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.DataDir, "history.db")
}

// RecordingLockPath guards the single active recording session across processes.
func (c *Config) RecordingLockPath() string {
	return filepath.Join(c.Paths.DataDir, "recording.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// isRemoteReference reports whether a style or character reference points at
// something other than a local file and must be left untouched by path expansion.
func isRemoteReference(value string) bool {
	lower := strings.ToLower(strings.TrimSpace(value))
	for _, prefix := range []string{"http://", "https://", "data:", "file://"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string {
	return sampleConfig
}
