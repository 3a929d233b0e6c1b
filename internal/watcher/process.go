package watcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"reelforge/internal/compositor"
	"reelforge/internal/history"
	"reelforge/internal/logging"
	"reelforge/internal/pipeline"
	"reelforge/internal/recorder"
	"reelforge/internal/services"
)

// maxScriptBytes bounds how much of a script file is read.
const maxScriptBytes = 256 << 10

// Backend is the part of the application a script run needs. *app.App
// satisfies it.
type Backend interface {
	Generate(ctx context.Context, req pipeline.Request, style compositor.Style, observer pipeline.Observer) (history.Record, error)
	Record(ctx context.Context, rec history.Record, style compositor.Style, progress recorder.ProgressFunc) (recorder.Recording, error)
	SaveRecording(ctx context.Context, rec history.Record, recording recorder.Recording, dir string) (string, error)
	Style(override compositor.Style) compositor.Style
}

// ScriptHandler returns a Handler that generates a run from each script,
// records it, and saves the video into outputDir.
func ScriptHandler(backend Backend, defaults func(script string) pipeline.Request, outputDir string, logger *slog.Logger) Handler {
	logger = logging.NewComponentLogger(logger, "watcher")
	return func(ctx context.Context, path string) error {
		script, err := readScript(path)
		if err != nil {
			return err
		}
		req := defaults(script)
		style := backend.Style(compositor.Style{})

		sampler := logging.NewProgressSampler(25)
		observer := pipeline.ObserverFunc(func(p pipeline.Progress) {
			percent := -1.0
			if p.Images.Total > 0 {
				percent = float64(p.Images.Completed) / float64(p.Images.Total) * 100
			}
			if sampler.ShouldLog(percent, string(p.Stage)) {
				logger.Info("run progress",
					logging.String(logging.FieldRunID, p.RunID),
					logging.String(logging.FieldStage, string(p.Stage)),
					logging.Int("images_completed", p.Images.Completed),
					logging.Int("images_total", p.Images.Total),
				)
			}
		})

		rec, err := backend.Generate(ctx, req, style, observer)
		if err != nil {
			return err
		}
		recording, err := backend.Record(ctx, rec, rec.Style, nil)
		if err != nil {
			return err
		}
		out, err := backend.SaveRecording(ctx, rec, recording, outputDir)
		if err != nil {
			return err
		}
		logger.Info("recording saved",
			logging.String(logging.FieldRunID, rec.ID),
			logging.String("path", out),
			logging.Float64("duration_seconds", recording.Duration),
		)
		return nil
	}
}

func readScript(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open script: %w", err)
	}
	defer f.Close()
	// Editors on some platforms save UTF-16 or prepend a BOM.
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	data, err := io.ReadAll(io.LimitReader(transform.NewReader(f, decoder), maxScriptBytes+1))
	if err != nil {
		return "", fmt.Errorf("read script: %w", err)
	}
	if len(data) > maxScriptBytes {
		return "", services.Wrap(services.ErrValidation, "watcher", "read script", "script exceeds 256 KiB", nil)
	}
	script := strings.TrimSpace(string(data))
	if script == "" {
		return "", services.Wrap(services.ErrValidation, "watcher", "read script", "script is empty", nil)
	}
	return script, nil
}
