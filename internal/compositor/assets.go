package compositor

import (
	"context"
	"fmt"
	"image"

	"reelforge/internal/pipeline"
	"reelforge/internal/workpool"
)

// ImageLoader decodes an image reference.
type ImageLoader interface {
	LoadImage(ctx context.Context, ref string) (image.Image, error)
}

// Assets are the decoded images a painter draws from.
type Assets struct {
	Background image.Image
	// Images is keyed by ImageTask.DisplayURL.
	Images map[string]image.Image
}

const preloadConcurrency = 4

// LoadAssets decodes the background and every distinct display image before
// rendering starts. Any failure aborts the preload.
func LoadAssets(ctx context.Context, loader ImageLoader, style Style, result pipeline.Result) (Assets, error) {
	out := Assets{Images: make(map[string]image.Image)}
	if style.BackgroundImage != "" {
		bg, err := loader.LoadImage(ctx, style.BackgroundImage)
		if err != nil {
			return Assets{}, fmt.Errorf("load background: %w", err)
		}
		out.Background = bg
	}

	seen := make(map[string]bool)
	var refs []string
	for _, img := range result.Images {
		ref := img.DisplayURL()
		if ref == "" || seen[ref] {
			continue
		}
		seen[ref] = true
		refs = append(refs, ref)
	}

	type loaded struct {
		img image.Image
		err error
	}
	decoded, err := workpool.Run(ctx, refs, workpool.Options[string, loaded]{
		Limit: preloadConcurrency,
		Fallback: func(_ int, ref string, err error) loaded {
			return loaded{err: fmt.Errorf("load image %s: %w", ref, err)}
		},
	}, func(ctx context.Context, _ int, ref string) (loaded, error) {
		img, err := loader.LoadImage(ctx, ref)
		return loaded{img: img}, err
	})
	if err != nil {
		return Assets{}, err
	}
	for i, item := range decoded {
		if item.err != nil {
			return Assets{}, item.err
		}
		out.Images[refs[i]] = item.img
	}
	return out, nil
}
