package image

import (
	"image"
	"image/color"
	"io"
)

// Convert packs every pixel of m into a new Image. The result always has its
// top-left corner at (0, 0).
func Convert(m image.Image) *Image {
	b := m.Bounds()
	dst := NewImage(image.Rect(0, 0, b.Dx(), b.Dy()))

	switch src := m.(type) {
	case *Image:
		for y := 0; y < b.Dy(); y++ {
			i := src.PixOffset(b.Min.X, b.Min.Y+y)
			copy(dst.Pix[y*dst.Stride:], src.Pix[i:i+b.Dx()])
		}
	case *image.NRGBA:
		for y := 0; y < b.Dy(); y++ {
			i := src.PixOffset(b.Min.X, b.Min.Y+y)
			for x := 0; x < b.Dx(); x++ {
				dst.Pix[y*dst.Stride+x] = Pack(src.Pix[i], src.Pix[i+1], src.Pix[i+2])
				i += 4
			}
		}
	case *image.RGBA:
		// Fast path for opaque pixels, anything else is un-premultiplied
		for y := 0; y < b.Dy(); y++ {
			i := src.PixOffset(b.Min.X, b.Min.Y+y)
			for x := 0; x < b.Dx(); x++ {
				p := src.Pix[i : i+4 : i+4]
				if p[3] == 0xff {
					dst.Pix[y*dst.Stride+x] = Pack(p[0], p[1], p[2])
				} else {
					dst.Pix[y*dst.Stride+x] = Pack(straight(color.RGBA{p[0], p[1], p[2], p[3]}))
				}
				i += 4
			}
		}
	default:
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				dst.Pix[y*dst.Stride+x] = Pack(straight(m.At(b.Min.X+x, b.Min.Y+y)))
			}
		}
	}

	return dst
}

// Encode writes the Image m to w as a raw RGB332 frame. Images that are not
// already packed are converted first.
func Encode(w io.Writer, m image.Image) error {
	pm, _ := m.(*Image)
	if pm == nil {
		pm = Convert(m)
	}

	_, err := w.Write(pm.Bytes())
	return err
}
