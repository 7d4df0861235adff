package source

import (
	"image"
	"image/draw"
	"image/gif"
	"io"
	"os"
	"path/filepath"
)

// animation coalesces the frames of a GIF; each frame in the file may only
// cover part of the screen and relies on what was drawn before it.
type animation struct {
	name   string
	g      *gif.GIF
	i      int
	canvas *image.RGBA
}

func openGIF(path string) (*animation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, openError(path, err)
	}
	defer f.Close()

	g, err := gif.DecodeAll(f)
	if err != nil {
		return nil, openError(path, err)
	}

	return newAnimation(filepath.Base(path), g), nil
}

func newAnimation(name string, g *gif.GIF) *animation {
	r := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	if r.Empty() {
		for _, p := range g.Image {
			r = r.Union(p.Bounds())
		}
	}

	return &animation{
		name:   name,
		g:      g,
		canvas: image.NewRGBA(r),
	}
}

func cloneRGBA(m *image.RGBA) *image.RGBA {
	dup := *m
	dup.Pix = append([]uint8(nil), m.Pix...)
	return &dup
}

func (a *animation) Next() (image.Image, error) {
	if a.i >= len(a.g.Image) {
		return nil, io.EOF
	}

	p := a.g.Image[a.i]
	var disposal byte
	if a.i < len(a.g.Disposal) {
		disposal = a.g.Disposal[a.i]
	}
	a.i++

	var previous *image.RGBA
	if disposal == gif.DisposalPrevious {
		previous = cloneRGBA(a.canvas)
	}

	draw.Draw(a.canvas, p.Bounds(), p, p.Bounds().Min, draw.Over)
	frame := cloneRGBA(a.canvas)

	switch disposal {
	case gif.DisposalBackground:
		draw.Draw(a.canvas, p.Bounds(), image.Transparent, image.Point{}, draw.Src)
	case gif.DisposalPrevious:
		a.canvas = previous
	}

	return frame, nil
}

func (a *animation) Name() string {
	return a.name
}

func (a *animation) Video() bool {
	return len(a.g.Image) > 1
}

func (a *animation) Close() error {
	return nil
}
