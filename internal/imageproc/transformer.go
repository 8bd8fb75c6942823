package imageproc

import (
	"bytes"
	"context"
	"fmt"

	"github.com/disintegration/imaging"

	"github.com/wanghaisheng/brand-qr-checker-verify/internal/preprocess"
)

// ImagingTransformer applies preprocess variants with disintegration/imaging.
// Contrast and brightness are percentages in [-100, 100]; blur is a gaussian
// sigma. Output is always PNG so the decode side sees a lossless buffer.
type ImagingTransformer struct{}

// NewImagingTransformer constructs the transform primitive.
func NewImagingTransformer() *ImagingTransformer {
	return &ImagingTransformer{}
}

// Apply implements Transformer.
func (t *ImagingTransformer) Apply(ctx context.Context, imageBytes []byte, resize int, spec preprocess.Spec) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if resize <= 0 {
		return nil, fmt.Errorf("imageproc: resize target must be positive, got %d", resize)
	}

	img, err := imaging.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return nil, fmt.Errorf("imageproc: decode image: %w", err)
	}

	// Resize is uniform across candidates; width is pinned, height follows
	// the aspect ratio.
	out := imaging.Resize(img, resize, 0, imaging.Lanczos)
	if spec.Contrast != nil {
		out = imaging.AdjustContrast(out, *spec.Contrast)
	}
	if spec.Brightness != nil {
		out = imaging.AdjustBrightness(out, *spec.Brightness)
	}
	if spec.Blur != nil && *spec.Blur > 0 {
		out = imaging.Blur(out, *spec.Blur)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.PNG); err != nil {
		return nil, fmt.Errorf("imageproc: encode image: %w", err)
	}
	return buf.Bytes(), nil
}
