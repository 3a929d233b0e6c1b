package deps

import (
	"context"
	"fmt"
	"strings"

	"reelforge/internal/recorder"
)

// EncoderProbe lists the encoders compiled into ffmpeg.
type EncoderProbe func(ctx context.Context) (map[string]bool, error)

// CheckContainer reports which container preference ffmpeg can satisfy.
// The status is available only when at least one preference has both a video
// and an audio encoder.
func CheckContainer(ctx context.Context, preferences []string, probe EncoderProbe) Status {
	result := Status{
		Name:        "Recording container",
		Description: "First container preference with available encoders",
	}
	available, err := probe(ctx)
	if err != nil {
		result.Detail = fmt.Sprintf("probe encoders: %v", err)
		return result
	}
	container, err := recorder.SelectContainer(preferences, available)
	if err != nil {
		result.Detail = "no supported container among " + strings.Join(preferences, ", ")
		return result
	}
	result.Command = container.MIMEType
	result.Available = true
	result.Detail = container.VideoEncoder + " + " + container.AudioEncoder
	return result
}
