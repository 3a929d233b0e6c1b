package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"reelforge/internal/logging"
	"reelforge/internal/matting"
	"reelforge/internal/poller"
	"reelforge/internal/prompts"
	"reelforge/internal/services"
	"reelforge/internal/transcript"
	"reelforge/internal/workpool"
)

// Providers bundles the external capabilities a run depends on.
type Providers struct {
	Narrator          Narrator
	Transcriber       Transcriber
	TranscriptFetcher TranscriptFetcher
	Illustrator       Illustrator
	Matting           matting.Providers
}

// Options tunes the orchestrator.
type Options struct {
	IllustrationConcurrency int
	MattingConcurrency      int
	TranscriptionPoll       poller.Poller
	Prompts                 prompts.Catalog
	Logger                  *slog.Logger
	Now                     func() time.Time
	NewRunID                func() string
}

// Orchestrator sequences narration, transcription, segmentation, illustration
// and matting for a script.
type Orchestrator struct {
	providers Providers
	opts      Options
	logger    *slog.Logger
}

// New validates providers and fills option defaults.
func New(providers Providers, opts Options) (*Orchestrator, error) {
	switch {
	case providers.Narrator == nil:
		return nil, errors.New("pipeline: narrator is required")
	case providers.Transcriber == nil:
		return nil, errors.New("pipeline: transcriber is required")
	case providers.TranscriptFetcher == nil:
		return nil, errors.New("pipeline: transcript fetcher is required")
	case providers.Illustrator == nil:
		return nil, errors.New("pipeline: illustrator is required")
	}
	if opts.IllustrationConcurrency <= 0 {
		opts.IllustrationConcurrency = workpool.DefaultLimit
	}
	if opts.MattingConcurrency <= 0 {
		opts.MattingConcurrency = workpool.DefaultLimit
	}
	if opts.TranscriptionPoll.Interval <= 0 {
		opts.TranscriptionPoll.Interval = 2 * time.Second
	}
	if opts.TranscriptionPoll.MaxAttempts <= 0 {
		opts.TranscriptionPoll.MaxAttempts = 30
	}
	if opts.Prompts.Default == "" && len(opts.Prompts.Rules) == 0 {
		opts.Prompts = prompts.Builtin()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewRunID == nil {
		opts.NewRunID = uuid.NewString
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Orchestrator{
		providers: providers,
		opts:      opts,
		logger:    logging.NewComponentLogger(logger, "pipeline"),
	}, nil
}

// run carries the mutable state of one Run call. Only the goroutine that owns
// the run and the serialized workpool callbacks touch it.
type run struct {
	o        *Orchestrator
	req      Request
	progress Progress
	observer Observer
	logger   *slog.Logger
}

func (r *run) emit() {
	if r.observer != nil {
		r.observer.OnProgress(r.progress)
	}
}

func (r *run) enter(ctx context.Context, stage Stage) context.Context {
	r.progress.Stage = stage
	r.emit()
	r.logger.Debug("stage started", logging.String(logging.FieldStage, string(stage)))
	return services.WithStage(ctx, string(stage))
}

// Run executes the full pipeline under the run ID carried by ctx, or a new
// one when ctx has none. Stage failures before illustration abort the
// run; per-image failures fall back and never abort. Cancellation returns
// ctx.Err() with no result.
func (o *Orchestrator) Run(ctx context.Context, req Request, observer Observer) (Result, error) {
	if err := validateRequest(req); err != nil {
		return Result{}, err
	}
	runID, ok := services.RunIDFromContext(ctx)
	if !ok || runID == "" {
		runID = o.opts.NewRunID()
		ctx = services.WithRunID(ctx, runID)
	}
	r := &run{
		o:        o,
		req:      req,
		progress: Progress{RunID: runID},
		observer: observer,
		logger:   logging.WithContext(ctx, o.logger),
	}
	r.logger.Info("run started",
		logging.String("voice", req.Voice),
		logging.String("model", req.Model),
		logging.String("matting", string(req.Matting)),
		logging.Int("script_runes", len([]rune(req.Script))),
	)
	started := o.opts.Now()

	stageCtx := r.enter(ctx, StageNarrating)
	audioURL, err := o.providers.Narrator.Narrate(stageCtx, req.Script, req.Voice)
	if err != nil {
		return Result{}, stageError(ctx, services.ErrNarration, StageNarrating, "narrate", err)
	}

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	stageCtx = r.enter(ctx, StageTranscribing)
	transcriptURL, err := o.transcribe(stageCtx, r.logger, audioURL)
	if err != nil {
		return Result{}, err
	}

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	stageCtx = r.enter(ctx, StageFetchingTranscript)
	doc, err := o.providers.TranscriptFetcher.FetchTranscript(stageCtx, transcriptURL)
	if err != nil {
		return Result{}, stageError(ctx, services.ErrTranscription, StageFetchingTranscript, "fetch transcript", err)
	}
	segments, err := transcript.SegmentDocument(doc)
	if err != nil {
		return Result{}, err
	}
	if len(segments) == 0 {
		return Result{}, services.Wrap(services.ErrMalformedTranscript, string(StageFetchingTranscript), "segment", "no segments", nil)
	}
	r.logger.Info("transcript segmented", logging.Int("segments", len(segments)))

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	r.progress.Images = Counter{Total: len(segments)}
	stageCtx = r.enter(ctx, StageIllustrating)
	images, err := r.illustrateAll(stageCtx, segments)
	if err != nil {
		return Result{}, err
	}

	if req.Matting.NeedsProcessing() {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		r.progress.Matting = Counter{Total: len(images)}
		stageCtx = r.enter(ctx, StageMatting)
		images, err = r.matteAll(stageCtx, images)
		if err != nil {
			return Result{}, err
		}
	}

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	r.enter(ctx, StageReady)
	r.logger.Info("run ready",
		logging.Int("segments", len(segments)),
		logging.Int("fallback_images", countStatus(images, ImageFailedFallback)),
		logging.Duration("elapsed", o.opts.Now().Sub(started)),
	)
	return Result{
		RunID:     runID,
		CreatedAt: started,
		AudioURL:  audioURL,
		Subtitles: segments,
		Images:    images,
	}, nil
}

func (o *Orchestrator) transcribe(ctx context.Context, logger *slog.Logger, audioURL string) (string, error) {
	taskID, err := o.providers.Transcriber.SubmitTranscription(ctx, audioURL)
	if err != nil {
		return "", stageError(ctx, services.ErrTranscription, StageTranscribing, "submit", err)
	}
	logger.Debug("transcription submitted", logging.String("task_id", taskID))

	p := o.opts.TranscriptionPoll
	onState := p.OnState
	p.OnState = func(state poller.State, attempt int) {
		logger.Debug("transcription poll", logging.String("state", string(state)), logging.Int("attempt", attempt))
		if onState != nil {
			onState(state, attempt)
		}
	}
	url, err := poller.Poll(ctx, p, func(ctx context.Context, _ int) (poller.Status, string, error) {
		poll, err := o.providers.Transcriber.TranscriptionStatus(ctx, taskID)
		if err != nil {
			return poller.StatusRunning, "", err
		}
		if poll.Status == poller.StatusFailed && strings.TrimSpace(poll.Message) != "" {
			return poll.Status, "", errors.New(poll.Message)
		}
		return poll.Status, poll.TranscriptURL, nil
	})
	if err != nil {
		if errors.Is(err, poller.ErrTimedOut) {
			return "", services.Wrap(services.ErrTranscriptionTimeout, string(StageTranscribing), "poll",
				fmt.Sprintf("task %s", taskID), err)
		}
		return "", stageError(ctx, services.ErrTranscription, StageTranscribing, "poll", err)
	}
	return url, nil
}

func (r *run) illustrateAll(ctx context.Context, segments []transcript.Segment) ([]ImageTask, error) {
	o := r.o
	images, err := workpool.Run(ctx, segments, workpool.Options[transcript.Segment, ImageTask]{
		Limit: o.opts.IllustrationConcurrency,
		Fallback: func(index int, seg transcript.Segment, err error) ImageTask {
			task := o.pendingTask(index, seg)
			task.RawURL = r.req.CharacterImage
			task.ProcessedURL = task.RawURL
			task.Status = ImageFailedFallback
			logging.WarnWithContext(r.logger, "illustration failed, using character image", "illustration_fallback",
				logging.Int(logging.FieldSegmentIndex, index),
				logging.Error(services.Wrap(services.ErrIllustration, string(StageIllustrating), "illustrate", "", err)),
				logging.String(logging.FieldErrorHint, "check the image provider key and quota"),
				logging.String(logging.FieldImpact, "segment shows the character reference image"),
			)
			return task
		},
		OnSettled: func(completed, total int) {
			r.progress.Images = Counter{Completed: completed, Total: total}
			r.emit()
		},
	}, func(ctx context.Context, index int, seg transcript.Segment) (ImageTask, error) {
		return o.illustrate(services.WithSegmentIndex(ctx, index), r.req, index, seg)
	})
	if err != nil {
		return nil, err
	}
	return images, nil
}

func (r *run) matteAll(ctx context.Context, images []ImageTask) ([]ImageTask, error) {
	o := r.o
	provider, selectErr := o.providers.Matting.ProviderFor(r.req.Matting, r.logger)
	out, err := workpool.Run(ctx, images, workpool.Options[ImageTask, ImageTask]{
		Limit: o.opts.MattingConcurrency,
		Fallback: func(index int, task ImageTask, err error) ImageTask {
			task.ProcessedURL = task.RawURL
			logging.WarnWithContext(r.logger, "matting failed, keeping raw image", "matting_fallback",
				logging.Int(logging.FieldSegmentIndex, index),
				logging.Error(services.Wrap(services.ErrMatting, string(StageMatting), string(r.req.Matting), "", err)),
				logging.String(logging.FieldErrorHint, "check the remove.bg key or the local matting command"),
				logging.String(logging.FieldImpact, "segment shows the unprocessed image"),
			)
			return task
		},
		OnSettled: func(completed, total int) {
			r.progress.Matting = Counter{Completed: completed, Total: total}
			r.emit()
		},
	}, func(ctx context.Context, index int, task ImageTask) (ImageTask, error) {
		if selectErr != nil {
			return task, selectErr
		}
		return matte(services.WithSegmentIndex(ctx, index), provider, task)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Regenerate produces a new image for one segment of an existing result
// without repeating narration or transcription. Illustration failure is
// returned to the caller; matting failure still falls back to the raw image.
func (o *Orchestrator) Regenerate(ctx context.Context, req Request, result Result, index int) (ImageTask, error) {
	if index < 0 || index >= len(result.Subtitles) || index >= len(result.Images) {
		return ImageTask{}, services.Wrap(services.ErrValidation, "regenerate", "select image",
			fmt.Sprintf("index %d out of range (%d images)", index, len(result.Images)), nil)
	}
	if result.RunID != "" {
		ctx = services.WithRunID(ctx, result.RunID)
	}
	ctx = services.WithSegmentIndex(ctx, index)
	logger := logging.WithContext(ctx, o.logger)

	task, err := o.illustrate(services.WithStage(ctx, string(StageIllustrating)), req, index, result.Subtitles[index])
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ImageTask{}, ctxErr
		}
		return ImageTask{}, services.Wrap(services.ErrIllustration, string(StageIllustrating), "regenerate", "", err)
	}
	if req.Matting.NeedsProcessing() {
		provider, err := o.providers.Matting.ProviderFor(req.Matting, logger)
		if err == nil {
			task, err = matte(services.WithStage(ctx, string(StageMatting)), provider, task)
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ImageTask{}, ctxErr
			}
			task.ProcessedURL = task.RawURL
			logging.WarnWithContext(logger, "matting failed, keeping raw image", "matting_fallback",
				logging.Error(services.Wrap(services.ErrMatting, string(StageMatting), string(req.Matting), "", err)),
				logging.String(logging.FieldImpact, "regenerated image is unprocessed"),
			)
		}
	}
	logger.Info("image regenerated", logging.String("raw_url", task.RawURL))
	return task, nil
}

func (o *Orchestrator) pendingTask(index int, seg transcript.Segment) ImageTask {
	return ImageTask{
		Index:      index,
		SourceText: seg.Text,
		StartTime:  seg.StartTime,
		Prompt:     o.opts.Prompts.PromptFor(seg.Text),
		Status:     ImagePending,
	}
}

func (o *Orchestrator) illustrate(ctx context.Context, req Request, index int, seg transcript.Segment) (ImageTask, error) {
	task := o.pendingTask(index, seg)
	url, err := o.providers.Illustrator.Illustrate(ctx, req.CharacterImage, task.Prompt, req.Model)
	if err != nil {
		return task, err
	}
	if strings.TrimSpace(url) == "" {
		return task, errors.New("illustrator returned an empty image reference")
	}
	task.RawURL = url
	task.ProcessedURL = url
	task.Status = ImageSucceeded
	return task, nil
}

func matte(ctx context.Context, provider matting.Provider, task ImageTask) (ImageTask, error) {
	if provider == nil {
		return task, nil
	}
	out, err := provider.RemoveBackground(ctx, task.RawURL)
	if err != nil {
		return task, err
	}
	if strings.TrimSpace(out) == "" {
		return task, errors.New("matting provider returned an empty image reference")
	}
	task.ProcessedURL = out
	return task, nil
}

func validateRequest(req Request) error {
	if strings.TrimSpace(req.Script) == "" {
		return services.Wrap(services.ErrValidation, "request", "validate", "script is empty", nil)
	}
	if strings.TrimSpace(req.CharacterImage) == "" {
		return services.Wrap(services.ErrValidation, "request", "validate", "character image is required", nil)
	}
	if req.Matting != "" {
		if _, err := matting.ParseMode(string(req.Matting)); err != nil {
			return err
		}
	}
	return nil
}

// stageError wraps a stage-fatal error unless the run was canceled.
func stageError(ctx context.Context, marker error, stage Stage, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return services.Wrap(marker, string(stage), op, "", err)
}

func countStatus(images []ImageTask, status ImageStatus) int {
	n := 0
	for _, img := range images {
		if img.Status == status {
			n++
		}
	}
	return n
}
