package video

import (
	"image"
	"image/color"
	"image/draw"
)

var bars = []color.RGBA{
	{192, 192, 192, 255},
	{192, 192, 0, 255},
	{0, 192, 192, 255},
	{0, 192, 0, 255},
	{192, 0, 192, 255},
	{192, 0, 0, 255},
	{0, 0, 192, 255},
}

// Pattern is the placeholder picture: color bars with a box moving across them.
type Pattern struct {
	img   *image.RGBA
	box   int
	frame int
}

func NewPattern(w, h int) *Pattern {
	box := h / 4
	if box < 2 {
		box = 2
	}
	return &Pattern{
		img: image.NewRGBA(image.Rect(0, 0, w, h)),
		box: box,
	}
}

func PatternFactory(w, h int) SourceFactory {
	return func() (Source, error) {
		return NewPattern(w, h), nil
	}
}

func (p *Pattern) Frame() (image.Image, error) {
	r := p.img.Rect
	bw := (r.Dx() + len(bars) - 1) / len(bars)
	for i, c := range bars {
		bar := image.Rect(i*bw, 0, (i+1)*bw, r.Dy()).Intersect(r)
		draw.Draw(p.img, bar, &image.Uniform{C: c}, image.Point{}, draw.Src)
	}

	span := r.Dx() - p.box
	if span <= 0 {
		span = 1
	}
	x := (p.frame * 4) % span
	y := (r.Dy() - p.box) / 2
	draw.Draw(p.img, image.Rect(x, y, x+p.box, y+p.box), image.White, image.Point{}, draw.Src)
	p.frame++

	return p.img, nil
}

func (p *Pattern) Close() error {
	return nil
}

// Static always returns the same picture.
type Static struct {
	img image.Image
}

func NewStatic(img image.Image) *Static {
	return &Static{img: img}
}

func StaticFactory(img image.Image) SourceFactory {
	return func() (Source, error) {
		return NewStatic(img), nil
	}
}

func (s *Static) Frame() (image.Image, error) {
	return s.img, nil
}

func (s *Static) Close() error {
	return nil
}
