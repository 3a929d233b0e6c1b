package compositor

import (
	"fmt"
	"os"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomedium"
)

// fontSet caches faces by weight and pixel size. A custom font file replaces
// both weights; the bundled Go fonts have no CJK glyphs.
type fontSet struct {
	mu     sync.Mutex
	bold   *truetype.Font
	medium *truetype.Font
	faces  map[faceKey]font.Face
}

type faceKey struct {
	bold bool
	size int
}

func loadFonts(path string) (*fontSet, error) {
	set := &fontSet{faces: make(map[faceKey]font.Face)}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read font: %w", err)
		}
		f, err := truetype.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("parse font %s: %w", path, err)
		}
		set.bold, set.medium = f, f
		return set, nil
	}
	bold, err := truetype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse bundled bold font: %w", err)
	}
	medium, err := truetype.Parse(gomedium.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse bundled medium font: %w", err)
	}
	set.bold, set.medium = bold, medium
	return set, nil
}

func (s *fontSet) face(bold bool, size float64) font.Face {
	key := faceKey{bold: bold, size: int(size + 0.5)}
	if key.size < 1 {
		key.size = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if face, ok := s.faces[key]; ok {
		return face
	}
	f := s.medium
	if bold {
		f = s.bold
	}
	face := truetype.NewFace(f, &truetype.Options{Size: float64(key.size), DPI: 72, Hinting: font.HintingFull})
	s.faces[key] = face
	return face
}
