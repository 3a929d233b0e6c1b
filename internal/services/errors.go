package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")

	ErrNarration            = errors.New("narration failed")
	ErrTranscription        = errors.New("transcription failed")
	ErrTranscriptionTimeout = errors.New("transcription timed out")
	ErrMalformedTranscript  = errors.New("malformed transcript")
	ErrIllustration         = errors.New("illustration failed")
	ErrMatting              = errors.New("matting failed")
	ErrRecording            = errors.New("recording failed")
	ErrRecordingBusy        = errors.New("recording session already active")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// kinds is ordered most specific first; ErrTranscriptionTimeout must be checked
// before ErrTimeout and ErrTranscription.
var kinds = []struct {
	marker error
	label  string
}{
	{ErrTranscriptionTimeout, "transcription_timeout"},
	{ErrMalformedTranscript, "malformed_transcript"},
	{ErrNarration, "narration"},
	{ErrTranscription, "transcription"},
	{ErrIllustration, "illustration"},
	{ErrMatting, "matting"},
	{ErrRecordingBusy, "recording_busy"},
	{ErrRecording, "recording"},
	{ErrValidation, "validation"},
	{ErrConfiguration, "configuration"},
	{ErrNotFound, "not_found"},
	{ErrTimeout, "timeout"},
	{ErrExternalTool, "external_tool"},
	{ErrTransient, "transient"},
}

// Kind maps an error to a short taxonomy label for logs and API payloads.
// Context cancellation is reported as "canceled"; unknown errors as "unknown".
func Kind(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	for _, k := range kinds {
		if errors.Is(err, k.marker) {
			return k.label
		}
	}
	return "unknown"
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
