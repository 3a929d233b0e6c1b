package compositor

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"

	"reelforge/internal/matting"
)

type blendFunc func(dst, src float64) float64

func screen(dst, src float64) float64 { return 1 - (1-dst)*(1-src) }

func darken(dst, src float64) float64 { return math.Min(dst, src) }

// treatment is the render-time handling of a matting mode that is not a
// removal pass: a colour filter followed by a blend operator.
type treatment struct {
	contrast   float64
	brightness float64
	blend      blendFunc
}

func treatmentFor(mode matting.Mode) (treatment, bool) {
	switch mode {
	case matting.ModeCSSBlend:
		return treatment{contrast: 1.2, brightness: 1.1, blend: screen}, true
	case matting.ModeCheckerboardRemove:
		return treatment{contrast: 1.3, brightness: 1.2, blend: darken}, true
	default:
		return treatment{}, false
	}
}

// filter applies contrast then brightness the way CSS filter functions do.
func (t treatment) filter(img image.Image) *image.NRGBA {
	adjust := func(v uint8) uint8 {
		c := float64(v) / 255
		c = (c-0.5)*t.contrast + 0.5
		c *= t.brightness
		return clampByte(c)
	}
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{R: adjust(c.R), G: adjust(c.G), B: adjust(c.B), A: c.A}
	})
}

// blendOnto composites src over dst at offset using fn for the colour
// channels. dst must be opaque.
func blendOnto(dst *image.RGBA, src *image.NRGBA, at image.Point, fn blendFunc) {
	r := src.Bounds().Add(at.Sub(src.Bounds().Min)).Intersect(dst.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			sx := x - at.X + src.Bounds().Min.X
			sy := y - at.Y + src.Bounds().Min.Y
			si := src.PixOffset(sx, sy)
			alpha := float64(src.Pix[si+3]) / 255
			if alpha == 0 {
				continue
			}
			di := dst.PixOffset(x, y)
			for c := 0; c < 3; c++ {
				d := float64(dst.Pix[di+c]) / 255
				s := float64(src.Pix[si+c]) / 255
				dst.Pix[di+c] = clampByte(d*(1-alpha) + fn(d, s)*alpha)
			}
		}
	}
}

func drawOver(dst *image.RGBA, src image.Image, at image.Point) {
	b := src.Bounds()
	draw.Draw(dst, b.Sub(b.Min).Add(at), src, b.Min, draw.Over)
}

func clampByte(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	default:
		return uint8(v*255 + 0.5)
	}
}
