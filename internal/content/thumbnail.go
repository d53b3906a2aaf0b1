package content

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"

	_ "image/gif"
	_ "image/jpeg"
)

// thumbMaxDim bounds the longest edge of generated thumbnails.
const thumbMaxDim = 256

// writeThumbnail decodes an image, scales it to fit thumbMaxDim, and
// writes it as PNG under dir. Returns the written filename.
func writeThumbnail(dir string, attachmentID int64, data []byte) (string, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("content: decode image: %w", err)
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return "", fmt.Errorf("content: empty image")
	}

	if w > thumbMaxDim || h > thumbMaxDim {
		if w >= h {
			h = h * thumbMaxDim / w
			w = thumbMaxDim
		} else {
			w = w * thumbMaxDim / h
			h = thumbMaxDim
		}
		if w < 1 {
			w = 1
		}
		if h < 1 {
			h = 1
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	name := fmt.Sprintf("%d_thumb.png", attachmentID)
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", fmt.Errorf("content: create thumbnail: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, dst); err != nil {
		return "", fmt.Errorf("content: encode thumbnail: %w", err)
	}
	return name, nil
}
