package video

import (
	"image"
	"image/draw"

	"github.com/pkg/errors"
)

var errEmptyFrame = errors.New("empty frame")

// converter keeps an RGBA framebuffer sized after the last source frame.
// The encoder takes the framebuffer as is and does the I420 conversion itself.
type converter struct {
	fb *image.RGBA
}

// convert copies src into the framebuffer.
// The framebuffer is reallocated (and resized reported) when the source size changes.
// Odd sizes are cropped to even ones.
func (c *converter) convert(src image.Image) (fb *image.RGBA, resized bool, err error) {
	b := src.Bounds()
	w, h := b.Dx()&^1, b.Dy()&^1
	if w == 0 || h == 0 {
		err = errEmptyFrame
		return
	}

	if c.fb == nil || c.fb.Rect.Dx() != w || c.fb.Rect.Dy() != h {
		c.fb = image.NewRGBA(image.Rect(0, 0, w, h))
		resized = true
	}

	draw.Draw(c.fb, c.fb.Rect, src, b.Min, draw.Src)
	fb = c.fb
	return
}
