package storage

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"io"

	"github.com/disintegration/imaging"
)

// LogoSize bounds both sides of a stored school logo.
const LogoSize = 512

// Thumbnail decodes an image, fits it inside size×size and re-encodes it as PNG.
func Thumbnail(r io.Reader, size int) ([]byte, error) {
	src, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	var dst image.Image = src
	b := src.Bounds()
	if b.Dx() > size || b.Dy() > size {
		dst = imaging.Fit(src, size, size, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, dst, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
