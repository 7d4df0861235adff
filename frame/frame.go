/*
Package frame implements the geometric steps applied to each decoded frame
before it is packed: dropping alpha, letterboxing into a fixed display canvas
and rotation by a multiple of 90 degrees.

Each step is a plain function from one image to another so they can be
chained in any order.
*/
package frame

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/gift"
)

// ErrDegenerate is returned when letterboxing would produce a frame with no
// pixels, either because the target is empty or because the aspect ratios
// are so different that one side of the resized image rounds down to zero.
var ErrDegenerate = errors.New("frame: degenerate target dimensions")

// Step transforms a single frame.
type Step func(image.Image) (image.Image, error)

// Chain returns a Step that applies each step in turn, left to right.
func Chain(steps ...Step) Step {
	return func(m image.Image) (image.Image, error) {
		var err error
		for _, s := range steps {
			if m, err = s(m); err != nil {
				return nil, err
			}
		}
		return m, nil
	}
}

// Geometry returns the size of a srcW by srcH image scaled to fit inside a
// dstW by dstH canvas, preserving the aspect ratio. The scaled side is
// floored.
func Geometry(srcW, srcH, dstW, dstH int) (int, int, error) {
	if srcW <= 0 || srcH <= 0 || dstW <= 0 || dstH <= 0 {
		return 0, 0, ErrDegenerate
	}

	var w, h int
	// Comparing srcW/srcH against dstW/dstH without dividing
	if srcW*dstH > dstW*srcH {
		w, h = dstW, dstW*srcH/srcW
	} else {
		w, h = dstH*srcW/srcH, dstH
	}

	if w == 0 || h == 0 {
		return 0, 0, fmt.Errorf("%w: %dx%d into %dx%d", ErrDegenerate, srcW, srcH, dstW, dstH)
	}

	return w, h, nil
}

// Fit resizes m with Lanczos resampling to fit inside a width by height
// canvas, preserving the aspect ratio, and centers it. Any area not covered
// by the resized image is opaque black.
func Fit(m image.Image, width, height int) (*image.RGBA, error) {
	b := m.Bounds()
	w, h, err := Geometry(b.Dx(), b.Dy(), width, height)
	if err != nil {
		return nil, err
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)

	g := gift.New(gift.Resize(w, h, gift.LanczosResampling))
	g.DrawAt(dst, m, image.Pt((width-w)/2, (height-h)/2), gift.CopyOperator)

	return dst, nil
}

// Letterbox returns Fit as a Step.
func Letterbox(width, height int) Step {
	return func(m image.Image) (image.Image, error) {
		return Fit(m, width, height)
	}
}

// Flatten returns m as an opaque image holding its straight, un-premultiplied
// color channels. Alpha is dropped rather than composited, so a
// semi-transparent pixel keeps its full color. An opaque *image.RGBA is
// returned as is.
func Flatten(m image.Image) *image.RGBA {
	if rgba, ok := m.(*image.RGBA); ok && rgba.Opaque() {
		return rgba
	}

	b := m.Bounds()
	dst := image.NewRGBA(b)

	if src, ok := m.(*image.NRGBA); ok {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			i, j := src.PixOffset(b.Min.X, y), dst.PixOffset(b.Min.X, y)
			copy(dst.Pix[j:j+4*b.Dx()], src.Pix[i:i+4*b.Dx()])
		}
		for i := 3; i < len(dst.Pix); i += 4 {
			dst.Pix[i] = 0xff
		}
		return dst
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(m.At(x, y)).(color.NRGBA)
			dst.SetRGBA(x, y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff})
		}
	}

	return dst
}

// Opaque is Flatten as a Step.
func Opaque(m image.Image) (image.Image, error) {
	return Flatten(m), nil
}
