package pipeline

import (
	"context"
	"time"

	"reelforge/internal/matting"
	"reelforge/internal/poller"
	"reelforge/internal/transcript"
)

// Request is the user input for one run. The orchestrator takes it by value,
// so later edits by the caller never affect a run in progress.
type Request struct {
	Script         string       `json:"script"`
	Voice          string       `json:"voice"`
	CharacterImage string       `json:"character_image"`
	Model          string       `json:"model"`
	Matting        matting.Mode `json:"matting"`
}

// Stage labels the run's current phase.
type Stage string

const (
	StageNarrating          Stage = "narrating"
	StageTranscribing       Stage = "transcribing"
	StageFetchingTranscript Stage = "fetching-transcript"
	StageIllustrating       Stage = "illustrating"
	StageMatting            Stage = "matting"
	StageReady              Stage = "ready"
)

// ImageStatus records how an image task settled.
type ImageStatus string

const (
	ImagePending        ImageStatus = "pending"
	ImageSucceeded      ImageStatus = "succeeded"
	ImageFailedFallback ImageStatus = "failed-fallback"
)

// ImageTask is the illustration for one subtitle segment. Index matches the
// segment's position. RawURL is never empty once the task settles; on failure
// it holds the character reference image.
type ImageTask struct {
	Index        int         `json:"index"`
	SourceText   string      `json:"source_text"`
	StartTime    float64     `json:"start_time"`
	Prompt       string      `json:"prompt,omitempty"`
	RawURL       string      `json:"raw_url"`
	ProcessedURL string      `json:"processed_url"`
	Status       ImageStatus `json:"status"`
}

// DisplayURL is the image to show: the processed variant when present.
func (t ImageTask) DisplayURL() string {
	if t.ProcessedURL != "" {
		return t.ProcessedURL
	}
	return t.RawURL
}

// Counter is a completed/total pair.
type Counter struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// Progress is a snapshot of a run, delivered to observers by value.
type Progress struct {
	RunID   string  `json:"run_id"`
	Stage   Stage   `json:"stage"`
	Images  Counter `json:"images"`
	Matting Counter `json:"matting"`
}

// Result is everything the compositor needs to play or record a run.
type Result struct {
	RunID     string               `json:"run_id"`
	CreatedAt time.Time            `json:"created_at"`
	AudioURL  string               `json:"audio_url"`
	Subtitles []transcript.Segment `json:"subtitles"`
	Images    []ImageTask          `json:"images"`
}

// TranscriptionPoll is one status check of a transcription job.
type TranscriptionPoll struct {
	Status        poller.Status
	TranscriptURL string
	Message       string
}

// Narrator turns text into a reference to synthesized speech audio.
type Narrator interface {
	Narrate(ctx context.Context, text, voice string) (string, error)
}

// Transcriber runs asynchronous speech recognition with word timestamps.
type Transcriber interface {
	SubmitTranscription(ctx context.Context, audioURL string) (string, error)
	TranscriptionStatus(ctx context.Context, taskID string) (TranscriptionPoll, error)
}

// TranscriptFetcher downloads a finished transcript.
type TranscriptFetcher interface {
	FetchTranscript(ctx context.Context, url string) (transcript.Document, error)
}

// Illustrator generates one image from a prompt and a character reference.
type Illustrator interface {
	Illustrate(ctx context.Context, referenceImage, prompt, model string) (string, error)
}

// Observer receives progress snapshots. Calls are serialized.
type Observer interface {
	OnProgress(Progress)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Progress)

// OnProgress calls f.
func (f ObserverFunc) OnProgress(p Progress) { f(p) }
