package compositor

import (
	"reelforge/internal/pipeline"
	"reelforge/internal/transcript"
)

const (
	// ImageDisplayWindow is how long an image stays on screen after its
	// segment starts, in seconds.
	ImageDisplayWindow = 3.5
	// EntranceDuration is the length of the image entrance animation.
	EntranceDuration = 0.1
	// EntranceScale and RestingScale are image heights in percent of the frame.
	EntranceScale = 70.0
	RestingScale  = 50.0
)

// VisualState is what the frame shows at one playhead position.
type VisualState struct {
	Subtitle *transcript.Segment
	Image    *pipeline.ImageTask
	// Scale is the image height in percent of the frame height.
	Scale float64
}

// DeriveVisualState picks the subtitle and image active at t seconds. The
// subtitle window is closed on both ends; the image window is
// [start, start+ImageDisplayWindow). The first match wins in both cases.
func DeriveVisualState(t float64, result pipeline.Result) VisualState {
	var state VisualState
	for i := range result.Subtitles {
		if result.Subtitles[i].Contains(t) {
			state.Subtitle = &result.Subtitles[i]
			break
		}
	}
	for i := range result.Images {
		img := &result.Images[i]
		if t >= img.StartTime && t < img.StartTime+ImageDisplayWindow {
			state.Image = img
			state.Scale = EntranceScaleAt(t - img.StartTime)
			break
		}
	}
	return state
}

// EntranceScaleAt is the image height percentage elapsed seconds after the
// image appeared.
func EntranceScaleAt(elapsed float64) float64 {
	switch {
	case elapsed <= 0:
		return EntranceScale
	case elapsed >= EntranceDuration:
		return RestingScale
	default:
		return EntranceScale - (elapsed/EntranceDuration)*(EntranceScale-RestingScale)
	}
}

// Same reports whether two states would render identically.
func (v VisualState) Same(other VisualState) bool {
	if (v.Subtitle == nil) != (other.Subtitle == nil) || (v.Image == nil) != (other.Image == nil) {
		return false
	}
	if v.Subtitle != nil && *v.Subtitle != *other.Subtitle {
		return false
	}
	if v.Image != nil && (v.Image.Index != other.Image.Index || v.Image.DisplayURL() != other.Image.DisplayURL()) {
		return false
	}
	return v.Scale == other.Scale
}
