package config

import (
	"errors"
	"fmt"
	"strings"
)

// MattingModes lists the accepted values of pipeline.matting.
var MattingModes = []string{"auto", "ai-remove", "removebg-api", "css-blend", "checkerboard-remove", "none"}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateStyle(); err != nil {
		return err
	}
	if err := c.validateRecording(); err != nil {
		return err
	}
	if err := ensurePositiveMap(map[string]int{
		"dashscope.timeout_seconds":     c.DashScope.TimeoutSeconds,
		"evolink.timeout_seconds":       c.Evolink.TimeoutSeconds,
		"removebg.timeout_seconds":      c.RemoveBG.TimeoutSeconds,
		"local_matting.timeout_seconds": c.LocalMatting.TimeoutSeconds,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	}); err != nil {
		return err
	}
	return nil
}

// RequireProviders reports missing credentials for the providers a generation
// run depends on. It is separate from Validate so read-only commands work
// without credentials.
func (c *Config) RequireProviders() error {
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = defaultConfigPath
	}
	if c.DashScope.APIKey == "" {
		return fmt.Errorf("dashscope.api_key is required. Set DASHSCOPE_API_KEY env var or edit %s (create with 'reelforge config init')", defaultPath)
	}
	if c.Evolink.APIKey == "" {
		return fmt.Errorf("evolink.api_key is required. Set EVOLINK_API_KEY env var or edit %s", defaultPath)
	}
	if c.Pipeline.Matting == "removebg-api" && c.RemoveBG.APIKey == "" {
		return errors.New("removebg.api_key must be set when pipeline.matting is removebg-api (or set REMOVE_BG_API_KEY)")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if !validMatting(c.Pipeline.Matting) {
		return fmt.Errorf("pipeline.matting must be one of %s", strings.Join(MattingModes, ", "))
	}
	return ensurePositiveMap(map[string]int{
		"pipeline.illustration_concurrency":            c.Pipeline.IllustrationConcurrency,
		"pipeline.matting_concurrency":                 c.Pipeline.MattingConcurrency,
		"pipeline.transcription_poll_interval_seconds": c.Pipeline.TranscriptionPollIntervalSeconds,
		"pipeline.transcription_poll_attempts":         c.Pipeline.TranscriptionPollAttempts,
		"pipeline.watch_concurrency":                   c.Pipeline.WatchConcurrency,
		"evolink.poll_interval_seconds":                c.Evolink.PollIntervalSeconds,
		"evolink.poll_attempts":                        c.Evolink.PollAttempts,
	})
}

func (c *Config) validateStyle() error {
	if c.Style.MusicVolume < 0 || c.Style.MusicVolume > 1 {
		return errors.New("style.music_volume must be between 0 and 1")
	}
	if c.Style.SubtitleBackgroundOpacity < 0 || c.Style.SubtitleBackgroundOpacity > 1 {
		return errors.New("style.subtitle_background_opacity must be between 0 and 1")
	}
	if !strings.HasPrefix(c.Style.SubtitleColor, "#") {
		return errors.New("style.subtitle_color must be a hex color such as #ffffff")
	}
	return nil
}

func (c *Config) validateRecording() error {
	if c.Recording.Width%2 != 0 || c.Recording.Height%2 != 0 {
		return errors.New("recording.width and recording.height must be even")
	}
	if c.Recording.FPS > 120 {
		return errors.New("recording.fps must be at most 120")
	}
	return nil
}

func validMatting(mode string) bool {
	for _, candidate := range MattingModes {
		if mode == candidate {
			return true
		}
	}
	return false
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
