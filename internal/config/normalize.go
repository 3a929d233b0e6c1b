package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeDashScope()
	c.normalizeEvolink()
	c.normalizeMatting()
	if err := c.normalizePipeline(); err != nil {
		return err
	}
	if err := c.normalizeStyle(); err != nil {
		return err
	}
	c.normalizeRecording()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.InboxDir) == "" {
		c.Paths.InboxDir = defaultInboxDir
	}
	if c.Paths.InboxDir, err = expandPath(c.Paths.InboxDir); err != nil {
		return fmt.Errorf("paths.inbox_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeDashScope() {
	c.DashScope.APIKey = strings.TrimSpace(c.DashScope.APIKey)
	if c.DashScope.APIKey == "" {
		c.DashScope.APIKey = envValue("DASHSCOPE_API_KEY")
	}
	c.DashScope.BaseURL = strings.TrimRight(strings.TrimSpace(c.DashScope.BaseURL), "/")
	if c.DashScope.BaseURL == "" {
		c.DashScope.BaseURL = defaultDashScopeBaseURL
	}
	c.DashScope.TTSModel = orDefault(c.DashScope.TTSModel, defaultTTSModel)
	c.DashScope.ASRModel = orDefault(c.DashScope.ASRModel, defaultASRModel)
	c.DashScope.Language = orDefault(c.DashScope.Language, defaultLanguage)
	c.DashScope.LanguageHints = normalizeList(c.DashScope.LanguageHints, []string{"zh"})
	if c.DashScope.TimeoutSeconds <= 0 {
		c.DashScope.TimeoutSeconds = defaultProviderTimeout
	}
}

func (c *Config) normalizeEvolink() {
	c.Evolink.APIKey = strings.TrimSpace(c.Evolink.APIKey)
	if c.Evolink.APIKey == "" {
		c.Evolink.APIKey = envValue("EVOLINK_API_KEY")
	}
	c.Evolink.BaseURL = strings.TrimRight(strings.TrimSpace(c.Evolink.BaseURL), "/")
	if c.Evolink.BaseURL == "" {
		c.Evolink.BaseURL = defaultEvolinkBaseURL
	}
	c.Evolink.Model = orDefault(c.Evolink.Model, defaultEvolinkModel)
	c.Evolink.Size = orDefault(c.Evolink.Size, defaultEvolinkSize)
	if c.Evolink.PollIntervalSeconds <= 0 {
		c.Evolink.PollIntervalSeconds = defaultEvolinkPollInterval
	}
	if c.Evolink.PollAttempts <= 0 {
		c.Evolink.PollAttempts = defaultEvolinkPollAttempts
	}
	if c.Evolink.TimeoutSeconds <= 0 {
		c.Evolink.TimeoutSeconds = defaultProviderTimeout
	}
}

func (c *Config) normalizeMatting() {
	c.RemoveBG.APIKey = strings.TrimSpace(c.RemoveBG.APIKey)
	if c.RemoveBG.APIKey == "" {
		c.RemoveBG.APIKey = envValue("REMOVE_BG_API_KEY")
	}
	c.RemoveBG.URL = orDefault(c.RemoveBG.URL, defaultRemoveBGURL)
	if c.RemoveBG.TimeoutSeconds <= 0 {
		c.RemoveBG.TimeoutSeconds = defaultProviderTimeout
	}
	c.LocalMatting.Command = strings.TrimSpace(c.LocalMatting.Command)
	if len(c.LocalMatting.Args) == 0 && (c.LocalMatting.Command == "" || c.LocalMatting.Command == defaultLocalMattingCommand) {
		c.LocalMatting.Args = append([]string(nil), DefaultLocalMattingArgs...)
	}
	if c.LocalMatting.TimeoutSeconds <= 0 {
		c.LocalMatting.TimeoutSeconds = defaultLocalMattingTimeout
	}
}

func (c *Config) normalizePipeline() error {
	c.Pipeline.Voice = orDefault(c.Pipeline.Voice, defaultVoice)
	c.Pipeline.CharacterImage = orDefault(c.Pipeline.CharacterImage, defaultCharacterImage)
	c.Pipeline.Model = orDefault(c.Pipeline.Model, c.Evolink.Model)
	c.Pipeline.Matting = strings.ToLower(orDefault(c.Pipeline.Matting, defaultMatting))
	if c.Pipeline.IllustrationConcurrency <= 0 {
		c.Pipeline.IllustrationConcurrency = defaultConcurrency
	}
	if c.Pipeline.MattingConcurrency <= 0 {
		c.Pipeline.MattingConcurrency = defaultConcurrency
	}
	if c.Pipeline.TranscriptionPollIntervalSeconds <= 0 {
		c.Pipeline.TranscriptionPollIntervalSeconds = defaultTranscriptionPollInterval
	}
	if c.Pipeline.TranscriptionPollAttempts <= 0 {
		c.Pipeline.TranscriptionPollAttempts = defaultTranscriptionPollAttempts
	}
	if c.Pipeline.WatchConcurrency <= 0 {
		c.Pipeline.WatchConcurrency = defaultWatchConcurrency
	}
	var err error
	if c.Pipeline.PromptCatalog = strings.TrimSpace(c.Pipeline.PromptCatalog); c.Pipeline.PromptCatalog != "" {
		if c.Pipeline.PromptCatalog, err = expandPath(c.Pipeline.PromptCatalog); err != nil {
			return fmt.Errorf("pipeline.prompt_catalog: %w", err)
		}
	}
	if c.Pipeline.CharacterImage, err = expandReference(c.Pipeline.CharacterImage); err != nil {
		return fmt.Errorf("pipeline.character_image: %w", err)
	}
	return nil
}

func (c *Config) normalizeStyle() error {
	var err error
	if c.Style.BackgroundImage, err = expandReference(c.Style.BackgroundImage); err != nil {
		return fmt.Errorf("style.background_image: %w", err)
	}
	if c.Style.Music, err = expandReference(c.Style.Music); err != nil {
		return fmt.Errorf("style.music: %w", err)
	}
	if c.Style.FontPath = strings.TrimSpace(c.Style.FontPath); c.Style.FontPath != "" {
		if c.Style.FontPath, err = expandPath(c.Style.FontPath); err != nil {
			return fmt.Errorf("style.font_path: %w", err)
		}
	}
	if c.Style.SubtitleFontSize <= 0 {
		c.Style.SubtitleFontSize = defaultSubtitleFontSize
	}
	c.Style.SubtitleColor = orDefault(c.Style.SubtitleColor, defaultSubtitleColor)
	return nil
}

func (c *Config) normalizeRecording() {
	if c.Recording.Width <= 0 {
		c.Recording.Width = defaultWidth
	}
	if c.Recording.Height <= 0 {
		c.Recording.Height = defaultHeight
	}
	if c.Recording.FPS <= 0 {
		c.Recording.FPS = defaultFPS
	}
	if c.Recording.SampleRate <= 0 {
		c.Recording.SampleRate = defaultSampleRate
	}
	c.Recording.FFmpegBinary = orDefault(c.Recording.FFmpegBinary, "ffmpeg")
	c.Recording.FFprobeBinary = orDefault(c.Recording.FFprobeBinary, "ffprobe")
	c.Recording.FFplayBinary = orDefault(c.Recording.FFplayBinary, "ffplay")
	c.Recording.Containers = normalizeList(c.Recording.Containers, DefaultContainers)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func expandReference(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" || isRemoteReference(value) {
		return value, nil
	}
	return expandPath(value)
}

func envValue(key string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func orDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

func normalizeList(values []string, fallback []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	if len(out) == 0 {
		return append([]string(nil), fallback...)
	}
	return out
}
