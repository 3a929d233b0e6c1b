package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"reelforge/internal/audiograph"
	"reelforge/internal/compositor"
	"reelforge/internal/config"
	"reelforge/internal/logging"
	"reelforge/internal/pipeline"
	"reelforge/internal/services"
)

const (
	narrationGain = 1.0
	stageLabel    = "recording"
)

// Settings configures the canvas, audio rate and tools.
type Settings struct {
	Width        int
	Height       int
	FPS          int
	SampleRate   int
	FFmpegBinary string
	Containers   []string
	// WorkDir holds the encoder output until it is read back.
	WorkDir string
	// LockPath guards against concurrent sessions across processes.
	LockPath string
}

// SettingsFromConfig extracts recorder settings.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Width:        cfg.Recording.Width,
		Height:       cfg.Recording.Height,
		FPS:          cfg.Recording.FPS,
		SampleRate:   cfg.Recording.SampleRate,
		FFmpegBinary: cfg.Recording.FFmpegBinary,
		Containers:   append([]string(nil), cfg.Recording.Containers...),
		WorkDir:      cfg.Paths.DataDir,
		LockPath:     cfg.RecordingLockPath(),
	}
}

// Recording is an encoded video.
type Recording struct {
	Data      []byte
	MIMEType  string
	Extension string
	// Duration is the narration length in seconds.
	Duration float64
	Frames   int
}

// ProgressFunc receives the completed percentage.
type ProgressFunc func(percent float64)

// Store resolves image and audio references.
type Store interface {
	compositor.ImageLoader
	Localize(ctx context.Context, ref string) (string, error)
}

// AudioDecoder converts an audio file to PCM at the recorder's sample rate.
type AudioDecoder interface {
	Decode(ctx context.Context, path string) (audiograph.Buffer, error)
}

// Recorder produces video files from pipeline results. Only one session runs
// at a time.
type Recorder struct {
	settings   Settings
	store      Store
	decoder    AudioDecoder
	newEncoder func() Encoder
	probe      func(ctx context.Context) (map[string]bool, error)
	logger     *slog.Logger
	busy       atomic.Bool
}

// Option customizes a Recorder.
type Option func(*Recorder)

// WithDecoder replaces the ffmpeg audio decoder.
func WithDecoder(decoder AudioDecoder) Option {
	return func(r *Recorder) { r.decoder = decoder }
}

// WithEncoderFactory replaces the ffmpeg encoder.
func WithEncoderFactory(factory func() Encoder) Option {
	return func(r *Recorder) { r.newEncoder = factory }
}

// WithEncoderProbe replaces encoder discovery.
func WithEncoderProbe(probe func(ctx context.Context) (map[string]bool, error)) Option {
	return func(r *Recorder) { r.probe = probe }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New constructs a recorder.
func New(settings Settings, store Store, opts ...Option) *Recorder {
	if settings.Width <= 0 {
		settings.Width = 1920
	}
	if settings.Height <= 0 {
		settings.Height = 1080
	}
	if settings.FPS <= 0 {
		settings.FPS = 30
	}
	if settings.SampleRate <= 0 {
		settings.SampleRate = 48000
	}
	if len(settings.Containers) == 0 {
		settings.Containers = append([]string(nil), config.DefaultContainers...)
	}
	r := &Recorder{settings: settings, store: store, logger: logging.NewNop()}
	r.decoder = audiograph.NewDecoder(settings.FFmpegBinary, settings.SampleRate)
	r.newEncoder = func() Encoder { return NewFFmpegEncoder(settings.FFmpegBinary) }
	r.probe = func(ctx context.Context) (map[string]bool, error) {
		return ProbeEncoders(ctx, settings.FFmpegBinary)
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.NewComponentLogger(r.logger, "recorder")
	return r
}

// Busy reports whether a session is active in this process.
func (r *Recorder) Busy() bool { return r.busy.Load() }

// Record renders result with style into an encoded video. The narration
// duration is the length of the output. Cancellation and failures release
// every resource and never return partial output.
func (r *Recorder) Record(ctx context.Context, result pipeline.Result, style compositor.Style, progress ProgressFunc) (Recording, error) {
	if !r.busy.CompareAndSwap(false, true) {
		return Recording{}, services.Wrap(services.ErrRecordingBusy, stageLabel, "acquire", "", nil)
	}
	defer r.busy.Store(false)

	if r.settings.LockPath != "" {
		if err := os.MkdirAll(filepath.Dir(r.settings.LockPath), 0o755); err != nil {
			return Recording{}, services.Wrap(services.ErrRecording, stageLabel, "acquire", "create lock directory", err)
		}
		lock := flock.New(r.settings.LockPath)
		ok, err := lock.TryLock()
		if err != nil {
			return Recording{}, services.Wrap(services.ErrRecording, stageLabel, "acquire", "lock", err)
		}
		if !ok {
			return Recording{}, services.Wrap(services.ErrRecordingBusy, stageLabel, "acquire",
				"another process holds "+r.settings.LockPath, nil)
		}
		defer func() { _ = lock.Unlock() }()
	}
	if progress == nil {
		progress = func(float64) {}
	}

	if result.RunID != "" {
		ctx = services.WithRunID(ctx, result.RunID)
	}
	ctx = services.WithStage(ctx, stageLabel)
	logger := logging.WithContext(ctx, r.logger)
	started := time.Now()

	s, err := r.prepare(ctx, result, style)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Recording{}, ctxErr
		}
		return Recording{}, err
	}
	defer s.release()

	logger.Info("recording started",
		logging.String("container", s.container.MIMEType),
		logging.String("video_encoder", s.container.VideoEncoder),
		logging.String("audio_encoder", s.container.AudioEncoder),
		logging.Float64("duration_seconds", s.duration),
		logging.Bool("music", style.Music != ""),
	)

	frames, err := s.run(ctx, progress)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			logger.Info("recording canceled", logging.Int("frames", frames))
			return Recording{}, ctxErr
		}
		return Recording{}, services.Wrap(services.ErrRecording, stageLabel, "encode", "", err)
	}

	data, err := os.ReadFile(s.output)
	if err != nil {
		return Recording{}, services.Wrap(services.ErrRecording, stageLabel, "read output", "", err)
	}
	if len(data) == 0 {
		return Recording{}, services.Wrap(services.ErrRecording, stageLabel, "read output", "encoder produced no data", nil)
	}
	logger.Info("recording finished",
		logging.Int("frames", frames),
		logging.Int("bytes", len(data)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return Recording{
		Data:      data,
		MIMEType:  s.container.MIMEType,
		Extension: s.container.Extension,
		Duration:  s.duration,
		Frames:    frames,
	}, nil
}

// session owns the canvas, graph and encoder of one recording.
type session struct {
	settings  Settings
	result    pipeline.Result
	painter   *compositor.Painter
	graph     *audiograph.Graph
	encoder   Encoder
	container Container
	duration  float64
	output    string
	started   bool
}

func (r *Recorder) prepare(ctx context.Context, result pipeline.Result, style compositor.Style) (*session, error) {
	s := &session{settings: r.settings, result: result}
	fail := func(op string, err error) (*session, error) {
		s.release()
		return nil, services.Wrap(services.ErrRecording, stageLabel, op, "", err)
	}

	assets, err := compositor.LoadAssets(ctx, r.store, style, result)
	if err != nil {
		return fail("preload images", err)
	}
	s.painter, err = compositor.NewPainter(r.settings.Width, r.settings.Height, style, assets)
	if err != nil {
		return fail("create canvas", err)
	}

	s.graph, s.duration, err = r.Mix(ctx, result, style)
	if err != nil {
		return fail("load audio", err)
	}

	available, err := r.probe(ctx)
	if err != nil {
		return fail("probe encoders", err)
	}
	s.container, err = SelectContainer(r.settings.Containers, available)
	if err != nil {
		s.release()
		return nil, err
	}

	dir := r.settings.WorkDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fail("create work directory", err)
	}
	file, err := os.CreateTemp(dir, "recording-*"+s.container.Extension)
	if err != nil {
		return fail("create output", err)
	}
	s.output = file.Name()
	_ = file.Close()

	s.encoder = r.newEncoder()
	if err := s.encoder.Start(ctx, EncoderSpec{
		Width:      r.settings.Width,
		Height:     r.settings.Height,
		FPS:        r.settings.FPS,
		SampleRate: r.settings.SampleRate,
		Channels:   audiograph.Channels,
		Container:  s.container,
		OutputPath: s.output,
	}); err != nil {
		s.encoder = nil
		return fail("start encoder", err)
	}
	s.started = true
	return s, nil
}

// Mix decodes the narration and background music and connects them into a
// graph at the recording sample rate. The returned duration is the
// narration's; music loops underneath it, and silence stands in when the
// style has none.
func (r *Recorder) Mix(ctx context.Context, result pipeline.Result, style compositor.Style) (*audiograph.Graph, float64, error) {
	narration, err := r.loadAudio(ctx, result.AudioURL)
	if err != nil {
		return nil, 0, fmt.Errorf("narration: %w", err)
	}
	music := audiograph.Silence(r.settings.SampleRate, audiograph.Channels, r.settings.SampleRate)
	if style.Music != "" {
		music, err = r.loadAudio(ctx, style.Music)
		if err != nil {
			return nil, 0, fmt.Errorf("music: %w", err)
		}
	}
	duration := narration.Duration()
	if duration <= 0 {
		return nil, 0, errors.New("narration is empty")
	}
	graph := audiograph.NewGraph(r.settings.SampleRate, audiograph.Channels)
	graph.Connect(audiograph.NewSource(narration, false), narrationGain)
	graph.Connect(audiograph.NewSource(music, true), style.MusicGain())
	return graph, duration, nil
}

func (r *Recorder) loadAudio(ctx context.Context, ref string) (audiograph.Buffer, error) {
	path, err := r.store.Localize(ctx, ref)
	if err != nil {
		return audiograph.Buffer{}, err
	}
	return r.decoder.Decode(ctx, path)
}

// run is the render loop. Each tick reads the graph clock, stops once it
// reaches the narration duration, and otherwise paints one frame and renders
// the matching slice of audio.
func (s *session) run(ctx context.Context, progress ProgressFunc) (int, error) {
	fps := s.settings.FPS
	rate := s.settings.SampleRate
	s.graph.Start()

	var pcm []byte
	frames := 0
	for tick := int64(0); ; tick++ {
		if err := ctx.Err(); err != nil {
			s.abort()
			return frames, err
		}
		t := s.graph.Elapsed()
		if t >= s.duration {
			break
		}
		frame := s.painter.PaintAt(t, s.result)
		if err := s.encoder.WriteVideo(frame.Pix); err != nil {
			s.abort()
			return frames, err
		}
		n := samplesForTick(tick, rate, fps)
		pcm = audiograph.AppendF32LE(pcm[:0], s.graph.Render(n))
		if err := s.encoder.WriteAudio(pcm); err != nil {
			s.abort()
			return frames, err
		}
		frames++
		progress(t / s.duration * 100)
	}

	s.graph.Stop()
	if err := s.encoder.Finish(); err != nil {
		s.encoder = nil
		return frames, err
	}
	s.encoder = nil
	progress(100)
	return frames, nil
}

// samplesForTick spreads rate samples over fps ticks without drift.
func samplesForTick(tick int64, rate, fps int) int {
	r, f := int64(rate), int64(fps)
	return int((tick+1)*r/f - tick*r/f)
}

func (s *session) abort() {
	if s.graph != nil {
		s.graph.Stop()
	}
	if s.encoder != nil {
		s.encoder.Abort()
		s.encoder = nil
	}
}

// release stops everything still running and removes the output file.
func (s *session) release() {
	s.abort()
	if s.painter != nil {
		s.painter.Release()
	}
	if s.output != "" {
		_ = os.Remove(s.output)
	}
}
