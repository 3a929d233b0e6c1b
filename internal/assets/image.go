package assets

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// LoadImage fetches ref and decodes it as an image.
func (s *Store) LoadImage(ctx context.Context, ref string) (image.Image, error) {
	data, _, err := s.Fetch(ctx, ref)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", truncate(ref, 64), err)
	}
	return img, nil
}
