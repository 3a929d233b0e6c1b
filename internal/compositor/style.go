package compositor

import (
	"reelforge/internal/config"
	"reelforge/internal/matting"
)

const (
	// DefaultMusicVolume and DefaultSubtitleOpacity apply when a style
	// leaves the field unset.
	DefaultMusicVolume     = 0.2
	DefaultSubtitleOpacity = 0.7
)

// Style is the per-run look of the video. MusicVolume and
// SubtitleBackgroundOpacity are pointers so an explicit 0 (muted music, a
// transparent subtitle box) survives a merge.
type Style struct {
	BackgroundImage           string   `json:"background_image,omitempty"`
	Watermark                 string   `json:"watermark,omitempty"`
	HeaderLeft                string   `json:"header_left,omitempty"`
	HeaderRight               string   `json:"header_right,omitempty"`
	Music                     string   `json:"music,omitempty"`
	MusicVolume               *float64 `json:"music_volume,omitempty"`
	SubtitleFontSize          float64  `json:"subtitle_font_size"`
	SubtitleColor             string   `json:"subtitle_color,omitempty"`
	SubtitleBackgroundOpacity *float64 `json:"subtitle_background_opacity,omitempty"`
	FontPath                  string   `json:"font_path,omitempty"`

	// Matting selects the image treatment. It always follows the run's
	// request mode and is never read from a stored or submitted style.
	Matting matting.Mode `json:"-"`
}

// Float returns a pointer to v, for the optional fields of Style.
func Float(v float64) *float64 {
	return &v
}

// StyleFromConfig returns the configured default style.
func StyleFromConfig(cfg *config.Config) Style {
	return Style{
		BackgroundImage:           cfg.Style.BackgroundImage,
		Watermark:                 cfg.Style.Watermark,
		HeaderLeft:                cfg.Style.HeaderLeft,
		HeaderRight:               cfg.Style.HeaderRight,
		Music:                     cfg.Style.Music,
		MusicVolume:               Float(cfg.Style.MusicVolume),
		SubtitleFontSize:          cfg.Style.SubtitleFontSize,
		SubtitleColor:             cfg.Style.SubtitleColor,
		SubtitleBackgroundOpacity: Float(cfg.Style.SubtitleBackgroundOpacity),
		FontPath:                  cfg.Style.FontPath,
	}
}

// Merge returns s with every set field of override applied. Matting is left
// alone.
func (s Style) Merge(override Style) Style {
	if override.BackgroundImage != "" {
		s.BackgroundImage = override.BackgroundImage
	}
	if override.Watermark != "" {
		s.Watermark = override.Watermark
	}
	if override.HeaderLeft != "" {
		s.HeaderLeft = override.HeaderLeft
	}
	if override.HeaderRight != "" {
		s.HeaderRight = override.HeaderRight
	}
	if override.Music != "" {
		s.Music = override.Music
	}
	if override.MusicVolume != nil {
		s.MusicVolume = Float(*override.MusicVolume)
	}
	if override.SubtitleFontSize > 0 {
		s.SubtitleFontSize = override.SubtitleFontSize
	}
	if override.SubtitleColor != "" {
		s.SubtitleColor = override.SubtitleColor
	}
	if override.SubtitleBackgroundOpacity != nil {
		s.SubtitleBackgroundOpacity = Float(*override.SubtitleBackgroundOpacity)
	}
	if override.FontPath != "" {
		s.FontPath = override.FontPath
	}
	return s
}

func (s Style) subtitleFontSize() float64 {
	if s.SubtitleFontSize <= 0 {
		return 4
	}
	return s.SubtitleFontSize
}

// MusicGain is the music volume clamped to [0, 1].
func (s Style) MusicGain() float64 {
	return unit(s.MusicVolume, DefaultMusicVolume)
}

func (s Style) subtitleOpacity() float64 {
	return unit(s.SubtitleBackgroundOpacity, DefaultSubtitleOpacity)
}

func unit(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return min(max(*v, 0), 1)
}

func (s Style) subtitleColor() string {
	if s.SubtitleColor == "" {
		return "#ffffff"
	}
	return s.SubtitleColor
}
