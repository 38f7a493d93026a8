package landmark

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/example/smile-overlay/internal/smile"
)

// Precheck decodes the image locally before handing it to p. Bytes that do not
// decode, or whose header declares more than maxPixels pixels, yield
// ErrUndecodableImage; single-colour images are reported as faceless without
// calling p. maxPixels <= 0 disables the size check.
func Precheck(p Provider, maxPixels int) Provider {
	return ProviderFunc(func(ctx context.Context, data []byte) (*smile.FaceObservation, error) {
		cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUndecodableImage, err)
		}
		if cfg.Width <= 0 || cfg.Height <= 0 {
			return nil, fmt.Errorf("%w: empty %s image", ErrUndecodableImage, format)
		}
		if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
			return nil, fmt.Errorf("%w: %s image is %dx%d, limit is %d pixels",
				ErrUndecodableImage, format, cfg.Width, cfg.Height, maxPixels)
		}

		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUndecodableImage, err)
		}
		if img.Bounds().Empty() {
			return nil, fmt.Errorf("%w: empty %s image", ErrUndecodableImage, format)
		}
		if isUniform(img) {
			return nil, nil
		}
		return p.Detect(ctx, data)
	})
}

func isUniform(img image.Image) bool {
	b := img.Bounds()

	// JPEG decodes to YCbCr; compare the planes directly.
	if m, ok := img.(*image.YCbCr); ok {
		y0, c0 := m.YOffset(b.Min.X, b.Min.Y), m.COffset(b.Min.X, b.Min.Y)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				yi, ci := m.YOffset(x, y), m.COffset(x, y)
				if m.Y[yi] != m.Y[y0] || m.Cb[ci] != m.Cb[c0] || m.Cr[ci] != m.Cr[c0] {
					return false
				}
			}
		}
		return true
	}

	r0, g0, b0, a0 := img.At(b.Min.X, b.Min.Y).RGBA()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			if r != r0 || g != g0 || bl != b0 || a != a0 {
				return false
			}
		}
	}
	return true
}
