package pipeline

import (
	"log/slog"
	"time"

	"reelforge/internal/config"
	"reelforge/internal/matting"
	"reelforge/internal/poller"
	"reelforge/internal/prompts"
)

// OptionsFromConfig builds orchestrator options from the application config,
// loading the prompt catalog when one is configured.
func OptionsFromConfig(cfg *config.Config, logger *slog.Logger) (Options, error) {
	catalog, err := prompts.Load(cfg.Pipeline.PromptCatalog)
	if err != nil {
		return Options{}, err
	}
	return Options{
		IllustrationConcurrency: cfg.Pipeline.IllustrationConcurrency,
		MattingConcurrency:      cfg.Pipeline.MattingConcurrency,
		TranscriptionPoll: poller.Poller{
			Interval:    time.Duration(cfg.Pipeline.TranscriptionPollIntervalSeconds) * time.Second,
			MaxAttempts: cfg.Pipeline.TranscriptionPollAttempts,
		},
		Prompts: catalog,
		Logger:  logger,
	}, nil
}

// RequestFromConfig returns a request for script carrying the configured
// generation defaults.
func RequestFromConfig(cfg *config.Config, script string) Request {
	mode, err := matting.ParseMode(cfg.Pipeline.Matting)
	if err != nil {
		mode = matting.ModeNone
	}
	return Request{
		Script:         script,
		Voice:          cfg.Pipeline.Voice,
		CharacterImage: cfg.Pipeline.CharacterImage,
		Model:          cfg.Pipeline.Model,
		Matting:        mode,
	}
}

// Overrides carries optional per-request values. Empty fields keep the base
// request's value.
type Overrides struct {
	Voice          string `json:"voice,omitempty"`
	CharacterImage string `json:"character_image,omitempty"`
	Model          string `json:"model,omitempty"`
	Matting        string `json:"matting,omitempty"`
	DisableRemoval bool   `json:"disable_background_removal,omitempty"`
}

// Apply returns req with the overrides applied. DisableRemoval forces mode
// none regardless of Matting.
func (ov Overrides) Apply(req Request) (Request, error) {
	if ov.Voice != "" {
		req.Voice = ov.Voice
	}
	if ov.CharacterImage != "" {
		req.CharacterImage = ov.CharacterImage
	}
	if ov.Model != "" {
		req.Model = ov.Model
	}
	if ov.Matting != "" {
		mode, err := matting.ParseMode(ov.Matting)
		if err != nil {
			return req, err
		}
		req.Matting = mode
	}
	if ov.DisableRemoval {
		req.Matting = matting.ModeNone
	}
	return req, nil
}
