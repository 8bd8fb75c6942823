package batch

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"

	"github.com/wanghaisheng/brand-qr-checker-verify/internal/preprocess"
	"github.com/wanghaisheng/brand-qr-checker-verify/internal/verify"
)

// FileFactory returns a RequestFactory that reads the source bytes from
// disk and validates the image header up front, so a corrupt file surfaces
// as a read error instead of being absorbed as failed attempts.
func FileFactory(resizeTarget int, candidates []preprocess.Spec) RequestFactory {
	return func(ctx context.Context, path string) (*verify.Request, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("batch: read %s: %w", path, err)
		}
		if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("batch: parse %s: %w", path, err)
		}
		return &verify.Request{
			Source:       data,
			ResizeTarget: resizeTarget,
			Candidates:   candidates,
		}, nil
	}
}
