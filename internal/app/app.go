package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"reelforge/internal/assets"
	"reelforge/internal/audiograph"
	"reelforge/internal/compositor"
	"reelforge/internal/config"
	"reelforge/internal/fileutil"
	"reelforge/internal/history"
	"reelforge/internal/logging"
	"reelforge/internal/matting"
	"reelforge/internal/media/ffprobe"
	"reelforge/internal/notifications"
	"reelforge/internal/pipeline"
	"reelforge/internal/recorder"
	"reelforge/internal/services"
	"reelforge/internal/services/dashscope"
	"reelforge/internal/services/evolink"
	"reelforge/internal/services/localmatte"
	"reelforge/internal/services/removebg"
)

// Generator runs the pipeline.
type Generator interface {
	Run(ctx context.Context, req pipeline.Request, observer pipeline.Observer) (pipeline.Result, error)
	Regenerate(ctx context.Context, req pipeline.Request, result pipeline.Result, index int) (pipeline.ImageTask, error)
}

// Recorder encodes a result to video.
type Recorder interface {
	Record(ctx context.Context, result pipeline.Result, style compositor.Style, progress recorder.ProgressFunc) (recorder.Recording, error)
	Busy() bool
}

// Mixer builds the narration and music graph for live playback.
type Mixer interface {
	Mix(ctx context.Context, result pipeline.Result, style compositor.Style) (*audiograph.Graph, float64, error)
}

// HistoryStore persists finished runs.
type HistoryStore interface {
	Put(ctx context.Context, rec history.Record) error
	Get(ctx context.Context, id string) (history.Record, bool, error)
	List(ctx context.Context) ([]history.Record, error)
	Clear(ctx context.Context) (int64, error)
}

// App wires the run lifecycle together.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Assets    *assets.Store
	Generator Generator
	Recorder  Recorder
	Mixer     Mixer
	History   HistoryStore
	Notifier  notifications.Service
	Prober    *ffprobe.Prober

	closers []func() error
}

// New builds an App from cfg. The caller must Close it.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	store := assets.NewStore(cfg.AssetsDir())
	speech := dashscope.New(dashscope.ConfigFrom(cfg))
	images := evolink.New(evolink.ConfigFrom(cfg), evolink.WithLogger(logger))

	opts, err := pipeline.OptionsFromConfig(cfg, logger)
	if err != nil {
		return nil, err
	}
	orchestrator, err := pipeline.New(pipeline.Providers{
		Narrator:          speech,
		Transcriber:       speech,
		TranscriptFetcher: speech,
		Illustrator:       images,
		Matting:           MattingProviders(cfg, store),
	}, opts)
	if err != nil {
		return nil, err
	}

	hist, err := history.Open(cfg)
	if err != nil {
		return nil, err
	}

	rec := recorder.New(recorder.SettingsFromConfig(cfg), store, recorder.WithLogger(logger))
	return &App{
		Config:    cfg,
		Logger:    logger,
		Assets:    store,
		Generator: orchestrator,
		Recorder:  rec,
		Mixer:     rec,
		History:   hist,
		Notifier:  notifications.NewService(cfg),
		Prober:    ffprobe.NewProber(cfg.Recording.FFprobeBinary),
		closers:   []func() error{hist.Close},
	}, nil
}

// MattingProviders returns the background removal routines cfg makes
// available. remove.bg needs an API key and local matting needs its command
// on PATH.
func MattingProviders(cfg *config.Config, store *assets.Store) matting.Providers {
	var providers matting.Providers
	if strings.TrimSpace(cfg.RemoveBG.APIKey) != "" {
		providers.Remote = removebg.New(removebg.ConfigFrom(cfg), store)
	}
	local := localmatte.NewService(localmatte.ConfigFrom(cfg), store)
	if _, err := exec.LookPath(local.Command()); err == nil {
		providers.Local = local
	}
	return providers
}

// Close releases the stores.
func (a *App) Close() error {
	var errs []error
	for _, closer := range a.closers {
		if err := closer(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Style returns the configured style with override applied.
func (a *App) Style(override compositor.Style) compositor.Style {
	return compositor.StyleFromConfig(a.Config).Merge(override)
}

// Generate runs the pipeline for req, stores the result in history and sends
// the completion or failure notification.
func (a *App) Generate(ctx context.Context, req pipeline.Request, style compositor.Style, observer pipeline.Observer) (history.Record, error) {
	title := history.Title(req.Script)
	result, err := a.Generator.Run(ctx, req, observer)
	if err != nil {
		if ctx.Err() == nil {
			a.notify(ctx, "run failed", a.Notifier.NotifyRunFailed(context.WithoutCancel(ctx), title, err))
		}
		return history.Record{}, err
	}

	rec := history.NewRecord(req, style, result)
	if err := a.History.Put(ctx, rec); err != nil {
		logging.WarnWithContext(a.Logger, "history not saved", "history_put_failed",
			logging.String(logging.FieldRunID, result.RunID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "run will not appear in history"),
		)
	}

	fallbacks := 0
	for _, img := range result.Images {
		if img.Status == pipeline.ImageFailedFallback {
			fallbacks++
		}
	}
	a.notify(ctx, "run completed", a.Notifier.NotifyRunCompleted(ctx, title, len(result.Images), fallbacks))
	return rec, nil
}

// Regenerate replaces one image of rec and persists the updated record.
func (a *App) Regenerate(ctx context.Context, rec history.Record, index int) (history.Record, error) {
	task, err := a.Generator.Regenerate(ctx, rec.Request, rec.Result, index)
	if err != nil {
		return rec, err
	}
	images := append([]pipeline.ImageTask(nil), rec.Result.Images...)
	images[index] = task
	rec.Result.Images = images
	if err := a.History.Put(ctx, rec); err != nil {
		return rec, fmt.Errorf("save regenerated image: %w", err)
	}
	return rec, nil
}

// Lookup returns the stored record for id.
func (a *App) Lookup(ctx context.Context, id string) (history.Record, error) {
	rec, ok, err := a.History.Get(ctx, id)
	if err != nil {
		return history.Record{}, err
	}
	if !ok {
		return history.Record{}, services.Wrap(services.ErrNotFound, "history", "lookup", "run "+id, nil)
	}
	return rec, nil
}

// Record encodes rec into a video. Images get the treatment of the run's own
// matting mode whatever style carries.
func (a *App) Record(ctx context.Context, rec history.Record, style compositor.Style, progress recorder.ProgressFunc) (recorder.Recording, error) {
	style.Matting = rec.Request.Matting
	return a.Recorder.Record(ctx, rec.Result, style, progress)
}

// Play streams rec's audio through ffplay and drives view from the audio
// clock until the narration ends or ctx is canceled.
func (a *App) Play(ctx context.Context, rec history.Record, style compositor.Style, view compositor.View) error {
	if a.Mixer == nil {
		return services.Wrap(services.ErrConfiguration, "playback", "start", "no audio mixer configured", nil)
	}
	graph, duration, err := a.Mixer.Mix(ctx, rec.Result, style)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "playback", "load audio", "", err)
	}
	playback := audiograph.NewPlayback(graph, a.Config.Recording.FFplayBinary)

	// The player's clock trails the audio it has handed over by the buffered
	// lead; once ffplay exits the narration is fully audible.
	var finished atomic.Bool
	clock := compositor.ClockFunc(func() float64 {
		if finished.Load() {
			return duration
		}
		return playback.Elapsed()
	})
	player := &compositor.Player{Result: rec.Result, Clock: clock, View: view, Duration: duration}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer finished.Store(true)
		return playback.Run(gctx, duration)
	})
	g.Go(func() error { return player.Run(gctx) })
	return g.Wait()
}

// SaveRecording writes recording to dir (default paths.output_dir) as
// <run id><ext>, validates it with ffprobe when available, and sends the
// recording notification. It returns the written path.
func (a *App) SaveRecording(ctx context.Context, rec history.Record, recording recorder.Recording, dir string) (string, error) {
	if dir == "" {
		dir = a.Config.Paths.OutputDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("ensure output directory: %w", err)
	}
	path := filepath.Join(dir, rec.ID+recording.Extension)
	if err := fileutil.WriteFileAtomic(path, recording.Data, 0o644); err != nil {
		return "", fmt.Errorf("write recording: %w", err)
	}

	a.validate(ctx, path, recording)
	duration := time.Duration(recording.Duration * float64(time.Second))
	a.notify(ctx, "recording completed", a.Notifier.NotifyRecordingCompleted(ctx, rec.Title, path, duration))
	return path, nil
}

func (a *App) validate(ctx context.Context, path string, recording recorder.Recording) {
	if a.Prober == nil {
		return
	}
	if _, err := exec.LookPath(a.Config.Recording.FFprobeBinary); err != nil {
		return
	}
	result, err := a.Prober.Inspect(ctx, path)
	if err == nil {
		err = ffprobe.Validate(result, ffprobe.Expectation{
			Width:    a.Config.Recording.Width,
			Height:   a.Config.Recording.Height,
			Duration: recording.Duration,
		})
	}
	if err != nil {
		logging.WarnWithContext(a.Logger, "recording validation failed", "recording_validation_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "video may be incomplete"),
		)
	}
}

func (a *App) notify(ctx context.Context, event string, err error) {
	if err == nil {
		return
	}
	logging.WarnWithContext(logging.WithContext(ctx, a.Logger), "notification failed", "notification_failed",
		logging.String("event", event),
		logging.Error(err),
		logging.String(logging.FieldImpact, "no push notification sent"),
	)
}
