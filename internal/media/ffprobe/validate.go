package ffprobe

import (
	"fmt"
	"math"
	"strings"
)

// Expectation describes what a finished recording should contain.
type Expectation struct {
	Width    int
	Height   int
	Duration float64
	// Tolerance is the allowed duration drift in seconds. Zero means 0.25s.
	Tolerance float64
}

// Validate reports every way r falls short of want.
func Validate(r Result, want Expectation) error {
	var problems []string

	video, ok := r.VideoStream()
	if !ok {
		problems = append(problems, "no video stream")
	} else if want.Width > 0 && (video.Width != want.Width || video.Height != want.Height) {
		problems = append(problems, fmt.Sprintf("video is %dx%d, expected %dx%d",
			video.Width, video.Height, want.Width, want.Height))
	}
	if _, ok := r.AudioStream(); !ok {
		problems = append(problems, "no audio stream")
	}

	if want.Duration > 0 {
		tolerance := want.Tolerance
		if tolerance <= 0 {
			tolerance = 0.25
		}
		got := r.DurationSeconds()
		if math.IsNaN(got) || math.Abs(got-want.Duration) > tolerance {
			problems = append(problems, fmt.Sprintf("duration %.2fs, expected %.2fs", got, want.Duration))
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("recording validation failed: %s", strings.Join(problems, "; "))
}
