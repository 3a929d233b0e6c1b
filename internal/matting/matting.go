package matting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"reelforge/internal/logging"
	"reelforge/internal/services"
)

// Mode is the user-facing background removal mode.
type Mode string

const (
	ModeAuto               Mode = "auto"
	ModeAIRemove           Mode = "ai-remove"
	ModeRemoveBGAPI        Mode = "removebg-api"
	ModeCSSBlend           Mode = "css-blend"
	ModeCheckerboardRemove Mode = "checkerboard-remove"
	ModeNone               Mode = "none"
)

// Modes lists every recognized mode in display order.
var Modes = []Mode{ModeAuto, ModeAIRemove, ModeRemoveBGAPI, ModeCSSBlend, ModeCheckerboardRemove, ModeNone}

// ParseMode normalizes a mode name.
func ParseMode(value string) (Mode, error) {
	mode := Mode(strings.ToLower(strings.TrimSpace(value)))
	if mode == "" {
		return ModeNone, nil
	}
	for _, known := range Modes {
		if mode == known {
			return mode, nil
		}
	}
	return "", services.Wrap(services.ErrValidation, "matting", "parse mode",
		fmt.Sprintf("unknown mode %q", value), nil)
}

// NeedsProcessing reports whether the mode requires a removal pass over the
// generated images. Blend modes are applied at render time instead.
func (m Mode) NeedsProcessing() bool {
	switch m {
	case ModeNone, ModeCSSBlend, ModeCheckerboardRemove, "":
		return false
	default:
		return true
	}
}

// Provider removes the background of one image and returns a reference to the
// processed image.
type Provider interface {
	Name() string
	RemoveBackground(ctx context.Context, imageURL string) (string, error)
}

// Providers holds the concrete removal routines available to a run. Either may
// be nil when not configured.
type Providers struct {
	Remote Provider
	Local  Provider
}

// ErrNoProvider is returned when a mode needs a provider that is not configured.
var ErrNoProvider = errors.New("no matting provider configured")

// ProviderFor builds the provider that serves mode. It returns nil for modes
// that do not need processing.
func (p Providers) ProviderFor(mode Mode, logger *slog.Logger) (Provider, error) {
	switch mode {
	case ModeRemoveBGAPI:
		return require(p.Remote, mode)
	case ModeAIRemove:
		return require(p.Local, mode)
	case ModeAuto:
		var links []Provider
		for _, candidate := range []Provider{p.Remote, p.Local} {
			if candidate != nil {
				links = append(links, candidate)
			}
		}
		if len(links) == 0 {
			return nil, services.Wrap(services.ErrConfiguration, "matting", string(mode), "", ErrNoProvider)
		}
		return NewChain(logger, links...), nil
	default:
		if mode.NeedsProcessing() {
			return nil, services.Wrap(services.ErrValidation, "matting", "select provider",
				fmt.Sprintf("unknown mode %q", mode), nil)
		}
		return nil, nil
	}
}

func require(provider Provider, mode Mode) (Provider, error) {
	if provider == nil {
		return nil, services.Wrap(services.ErrConfiguration, "matting", string(mode), "", ErrNoProvider)
	}
	return provider, nil
}

// Chain tries providers in order. The first success wins; when every provider
// fails the last failure is returned.
type Chain struct {
	providers []Provider
	logger    *slog.Logger
}

// NewChain builds an ordered fallback chain.
func NewChain(logger *slog.Logger, providers ...Provider) *Chain {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Chain{providers: providers, logger: logger}
}

// Name joins the provider names.
func (c *Chain) Name() string {
	names := make([]string, 0, len(c.providers))
	for _, p := range c.providers {
		names = append(names, p.Name())
	}
	return strings.Join(names, "+")
}

// RemoveBackground runs the chain for one image.
func (c *Chain) RemoveBackground(ctx context.Context, imageURL string) (string, error) {
	if len(c.providers) == 0 {
		return "", ErrNoProvider
	}
	var lastErr error
	for i, provider := range c.providers {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		out, err := provider.RemoveBackground(ctx, imageURL)
		if err == nil {
			return out, nil
		}
		lastErr = fmt.Errorf("%s: %w", provider.Name(), err)
		if i < len(c.providers)-1 {
			c.logger.Debug("matting provider failed, trying next",
				logging.String("provider", provider.Name()),
				logging.Error(err),
			)
		}
	}
	return "", lastErr
}
