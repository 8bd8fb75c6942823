package imageproc

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// QRDecoder decodes QR codes with gozxing. It keeps no state between calls;
// a fresh reader is built per attempt so concurrent use is safe.
type QRDecoder struct{}

// NewQRDecoder constructs the decode primitive.
func NewQRDecoder() *QRDecoder {
	return &QRDecoder{}
}

// Decode implements Decoder.
func (d *QRDecoder) Decode(ctx context.Context, imageBytes []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	img, _, err := image.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return "", fmt.Errorf("imageproc: decode image: %w", err)
	}

	bitmap, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("imageproc: build bitmap: %w", err)
	}

	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	result, err := qrcode.NewQRCodeReader().Decode(bitmap, hints)
	if err != nil {
		if _, ok := err.(gozxing.NotFoundException); ok {
			return "", ErrNoCode
		}
		return "", fmt.Errorf("imageproc: decode QR: %w", err)
	}

	text := result.GetText()
	if text == "" {
		return "", ErrNoCode
	}
	return text, nil
}
