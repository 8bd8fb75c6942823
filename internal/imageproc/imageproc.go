// Package imageproc holds the decode and transform primitives the
// verification engine drives. Both are stateless and safe to call from
// concurrently running file tasks.
package imageproc

import (
	"context"
	"errors"

	"github.com/wanghaisheng/brand-qr-checker-verify/internal/preprocess"
)

// ErrNoCode reports that the image was read fine but no QR code could be
// located or decoded in it.
var ErrNoCode = errors.New("imageproc: no QR code found")

// Decoder attempts to locate and decode one QR code in a raw image buffer.
// It returns ErrNoCode when the image holds no decodable code; any other
// error means the buffer itself could not be processed.
type Decoder interface {
	Decode(ctx context.Context, imageBytes []byte) (string, error)
}

// Transformer derives a fresh image buffer from a source buffer: the resize
// target is always applied, each adjustment axis only when present on the
// spec. Deterministic for given inputs.
type Transformer interface {
	Apply(ctx context.Context, imageBytes []byte, resize int, spec preprocess.Spec) ([]byte, error)
}
