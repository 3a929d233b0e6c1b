// Package localmatte removes image backgrounds on the host by running a
// command-line segmentation tool (rembg by default).
package localmatte

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"reelforge/internal/assets"
	"reelforge/internal/config"
	"reelforge/internal/matting"
	"reelforge/internal/services"
)

const (
	inputPlaceholder  = "{input}"
	outputPlaceholder = "{output}"
)

// Config describes the matting command.
type Config struct {
	Command string
	Args    []string
	Timeout time.Duration
}

// ConfigFrom extracts the local matting settings from the application config.
func ConfigFrom(cfg *config.Config) Config {
	if cfg == nil {
		return Config{}
	}
	return Config{
		Command: cfg.LocalMatting.Command,
		Args:    append([]string(nil), cfg.LocalMatting.Args...),
		Timeout: time.Duration(cfg.LocalMatting.TimeoutSeconds) * time.Second,
	}
}

// Service implements matting.Provider.
type Service struct {
	cfg           Config
	store         *assets.Store
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewService creates a local matting service writing into store.
func NewService(cfg Config, store *assets.Store) *Service {
	if strings.TrimSpace(cfg.Command) == "" {
		cfg.Command = "rembg"
	}
	if len(cfg.Args) == 0 {
		cfg.Args = append([]string(nil), config.DefaultLocalMattingArgs...)
	}
	return &Service{cfg: cfg, store: store}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	s.commandRunner = runner
}

var _ matting.Provider = (*Service)(nil)

// Name identifies the provider in logs.
func (s *Service) Name() string { return "local" }

// Command returns the configured executable.
func (s *Service) Command() string { return s.cfg.Command }

// RemoveBackground localizes imageURL, runs the tool and returns a file://
// reference to the PNG it wrote.
func (s *Service) RemoveBackground(ctx context.Context, imageURL string) (string, error) {
	if s.store == nil {
		return "", errors.New("local matting asset store not configured")
	}
	input, err := s.store.Localize(ctx, imageURL)
	if err != nil {
		return "", err
	}
	output, err := s.store.NewPath(".png")
	if err != nil {
		return "", err
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}
	if err := s.run(ctx, s.cfg.Command, BuildArgs(s.cfg.Args, input, output)...); err != nil {
		_ = os.Remove(output)
		return "", err
	}
	info, err := os.Stat(output)
	if err != nil || info.Size() == 0 {
		_ = os.Remove(output)
		return "", services.Wrap(services.ErrExternalTool, "matting", s.cfg.Command, "no output image produced", err)
	}
	return assets.FileRef(output), nil
}

// BuildArgs substitutes the input and output paths into the argument template.
func BuildArgs(template []string, input, output string) []string {
	args := make([]string, 0, len(template))
	for _, arg := range template {
		arg = strings.ReplaceAll(arg, inputPlaceholder, input)
		arg = strings.ReplaceAll(arg, outputPlaceholder, output)
		args = append(args, arg)
	}
	return args
}

func (s *Service) run(ctx context.Context, name string, args ...string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return services.Wrap(services.ErrExternalTool, "matting", name,
			fmt.Sprintf("command failed: %s", strings.TrimSpace(string(output))), err)
	}
	return nil
}
