// Package photo prepares staged capture photos for upload.
package photo

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"strings"
	"time"

	"golang.org/x/image/draw"
)

const (
	DefaultMaxEdge = 1600
	JPEGQuality    = 85
)

type Staged struct {
	Data     []byte
	Filename string
}

func (s *Staged) Empty() bool { return s == nil || len(s.Data) == 0 }

// DefaultFilename names a capture photo after its staging time.
func DefaultFilename(now time.Time) string {
	return fmt.Sprintf("capture_%d.jpg", now.UnixMilli())
}

// Normalize scales data down so its longer edge fits maxEdge and re-encodes
// it as JPEG. Input that does not decode is returned unchanged.
func Normalize(data []byte, maxEdge int) ([]byte, bool) {
	if maxEdge <= 0 {
		maxEdge = DefaultMaxEdge
	}
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data, false
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxEdge && h <= maxEdge && format == "jpeg" {
		return data, false
	}

	dst := src
	if w > maxEdge || h > maxEdge {
		nw, nh := fit(w, h, maxEdge)
		scaled := image.NewRGBA(image.Rect(0, 0, nw, nh))
		draw.CatmullRom.Scale(scaled, scaled.Bounds(), src, b, draw.Over, nil)
		dst = scaled
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return data, false
	}
	return buf.Bytes(), true
}

func fit(w, h, maxEdge int) (int, int) {
	if w >= h {
		nh := h * maxEdge / w
		if nh < 1 {
			nh = 1
		}
		return maxEdge, nh
	}
	nw := w * maxEdge / h
	if nw < 1 {
		nw = 1
	}
	return nw, maxEdge
}

// JPEGName swaps the extension of name for .jpg.
func JPEGName(name string) string {
	if i := strings.LastIndex(name, "."); i > 0 {
		name = name[:i]
	}
	return name + ".jpg"
}
