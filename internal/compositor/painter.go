package compositor

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"

	"reelforge/internal/pipeline"
)

// Layout constants are expressed for a 1080-pixel-high frame and scaled to the
// configured height.
const (
	referenceHeight = 1080.0

	watermarkSize  = 280.0
	watermarkAlpha = 0.15
	watermarkBlur  = 4.0

	headerSize     = 32.0
	headerMarginX  = 40.0
	headerBaseline = 60.0
	headerShadow   = 2.0

	imageShadowBlur    = 15.0
	imageShadowOffsetY = 10.0
	imageShadowAlpha   = 0.5

	subtitleRemPixels = 32.0
	subtitleLine      = 1.2
	subtitlePadX      = 50.0
	subtitlePadY      = 20.0
	subtitleRadius    = 15.0
	subtitleAnchorY   = 0.85
	subtitleShadow    = 3.0
)

// Painter renders frames onto a reused RGBA buffer. The static layer
// (background, watermark, headers) is rendered once.
type Painter struct {
	width  int
	height int
	unit   float64
	style  Style
	assets Assets
	fonts  *fontSet

	base  *image.RGBA
	frame *image.RGBA

	mu      sync.Mutex
	sprites map[spriteKey]sprite
}

type spriteKey struct {
	ref    string
	height int
}

type sprite struct {
	shadow   *image.NRGBA
	shadowAt image.Point
	img      *image.NRGBA
	imgAt    image.Point
}

// NewPainter prepares a painter for width x height frames.
func NewPainter(width, height int, style Style, assets Assets) (*Painter, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", width, height)
	}
	fonts, err := loadFonts(style.FontPath)
	if err != nil {
		return nil, err
	}
	if assets.Images == nil {
		assets.Images = map[string]image.Image{}
	}
	p := &Painter{
		width:   width,
		height:  height,
		unit:    float64(height) / referenceHeight,
		style:   style,
		assets:  assets,
		fonts:   fonts,
		frame:   image.NewRGBA(image.Rect(0, 0, width, height)),
		sprites: make(map[spriteKey]sprite),
	}
	p.base = p.renderBase()
	return p, nil
}

// Size returns the frame dimensions.
func (p *Painter) Size() (int, int) { return p.width, p.height }

// Paint renders state and returns the frame buffer. The buffer is reused by
// the next call.
func (p *Painter) Paint(state VisualState) *image.RGBA {
	copy(p.frame.Pix, p.base.Pix)
	if state.Image != nil {
		p.drawImage(state.Image, state.Scale)
	}
	if state.Subtitle != nil && state.Subtitle.Text != "" {
		p.drawSubtitle(state.Subtitle.Text)
	}
	return p.frame
}

// PaintAt derives the visual state at t and renders it.
func (p *Painter) PaintAt(t float64, result pipeline.Result) *image.RGBA {
	return p.Paint(DeriveVisualState(t, result))
}

// Release drops cached sprites and buffers.
func (p *Painter) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sprites = map[spriteKey]sprite{}
	p.assets = Assets{Images: map[string]image.Image{}}
}

func (p *Painter) renderBase() *image.RGBA {
	base := image.NewRGBA(image.Rect(0, 0, p.width, p.height))
	dc := gg.NewContextForRGBA(base)
	dc.SetRGB(0, 0, 0)
	dc.Clear()
	if p.assets.Background != nil {
		dc.DrawImage(imaging.Fill(p.assets.Background, p.width, p.height, imaging.Center, imaging.Lanczos), 0, 0)
	}

	if text := p.style.Watermark; text != "" {
		layer := gg.NewContext(p.width, p.height)
		layer.SetFontFace(p.fonts.face(true, watermarkSize*p.unit))
		layer.SetRGBA(0, 0, 0, watermarkAlpha)
		layer.DrawStringAnchored(text, float64(p.width)/2, float64(p.height)/2, 0.5, 0.5)
		dc.DrawImage(imaging.Blur(layer.Image(), watermarkBlur*p.unit), 0, 0)
	}

	if p.style.HeaderLeft != "" || p.style.HeaderRight != "" {
		face := p.fonts.face(false, headerSize*p.unit)
		shadow := gg.NewContext(p.width, p.height)
		shadow.SetFontFace(face)
		shadow.SetRGBA(0, 0, 0, 0.5)
		offset := headerShadow * p.unit
		p.drawHeaders(shadow, offset)
		dc.DrawImage(imaging.Blur(shadow.Image(), 2*p.unit), 0, 0)

		dc.SetFontFace(face)
		dc.SetRGB(1, 1, 1)
		p.drawHeaders(dc, 0)
	}
	return base
}

func (p *Painter) drawHeaders(dc *gg.Context, offset float64) {
	y := headerBaseline*p.unit + offset
	if p.style.HeaderLeft != "" {
		dc.DrawStringAnchored(p.style.HeaderLeft, headerMarginX*p.unit+offset, y, 0, 0)
	}
	if p.style.HeaderRight != "" {
		dc.DrawStringAnchored(p.style.HeaderRight, float64(p.width)-headerMarginX*p.unit+offset, y, 1, 0)
	}
}

func (p *Painter) drawImage(task *pipeline.ImageTask, scale float64) {
	ref := task.DisplayURL()
	src, ok := p.assets.Images[ref]
	if !ok || src == nil {
		return
	}
	height := int(math.Round(float64(p.height) * scale / 100))
	if height <= 0 {
		return
	}
	sp := p.sprite(ref, src, height)
	drawOver(p.frame, sp.shadow, sp.shadowAt)
	if t, ok := treatmentFor(p.style.Matting); ok {
		blendOnto(p.frame, sp.img, sp.imgAt, t.blend)
		return
	}
	drawOver(p.frame, sp.img, sp.imgAt)
}

// sprite returns the scaled image and its drop shadow, positioned so the image
// is centred in the frame.
func (p *Painter) sprite(ref string, src image.Image, height int) sprite {
	key := spriteKey{ref: ref, height: height}
	p.mu.Lock()
	if sp, ok := p.sprites[key]; ok {
		p.mu.Unlock()
		return sp
	}
	p.mu.Unlock()

	img := imaging.Resize(src, 0, height, imaging.Linear)
	if t, ok := treatmentFor(p.style.Matting); ok {
		img = t.filter(img)
	}
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	imgAt := image.Pt((p.width-w)/2, (p.height-h)/2)

	blur := imageShadowBlur * p.unit
	margin := int(math.Ceil(blur * 3))
	silhouette := imaging.New(w+2*margin, h+2*margin, color.NRGBA{})
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			a := img.Pix[img.PixOffset(x, y)+3]
			if a == 0 {
				continue
			}
			i := silhouette.PixOffset(x+margin, y+margin)
			silhouette.Pix[i+3] = uint8(float64(a) * imageShadowAlpha)
		}
	}
	shadow := imaging.Blur(silhouette, blur)
	shadowAt := imgAt.Add(image.Pt(-margin, -margin+int(math.Round(imageShadowOffsetY*p.unit))))

	sp := sprite{shadow: shadow, shadowAt: shadowAt, img: img, imgAt: imgAt}
	p.mu.Lock()
	p.sprites[key] = sp
	p.mu.Unlock()
	return sp
}

func (p *Painter) drawSubtitle(text string) {
	dc := gg.NewContextForRGBA(p.frame)
	fontSize := p.style.subtitleFontSize() * subtitleRemPixels * p.unit
	dc.SetFontFace(p.fonts.face(true, fontSize))

	textWidth, _ := dc.MeasureString(text)
	textHeight := fontSize * subtitleLine
	padX, padY := subtitlePadX*p.unit, subtitlePadY*p.unit
	boxW := textWidth + padX*2
	boxH := textHeight + padY
	cx := float64(p.width) / 2
	anchorY := float64(p.height) * subtitleAnchorY
	boxX, boxY := cx-boxW/2, anchorY-textHeight

	dc.SetRGBA(0, 0, 0, p.style.subtitleOpacity())
	dc.DrawRoundedRectangle(boxX, boxY, boxW, boxH, subtitleRadius*p.unit)
	dc.Fill()

	textY := boxY + boxH/2
	shadow := subtitleShadow * p.unit
	dc.SetRGBA(0, 0, 0, 0.8)
	dc.DrawStringAnchored(text, cx+shadow, textY+shadow, 0.5, 0.35)
	dc.SetHexColor(p.style.subtitleColor())
	dc.DrawStringAnchored(text, cx, textY, 0.5, 0.35)
}
