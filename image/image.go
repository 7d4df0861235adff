/*
Package image implements the packed RGB332 pixel format used by small
embedded displays.

Each pixel is stored as a single byte laid out as RRRGGGBB; the top three
bits of the red channel, the top three bits of the green channel and the top
two bits of the blue channel. Rows are stored top to bottom, pixels left to
right, with no padding so a frame of W by H pixels is exactly W*H bytes.

The format is lossy. Converting back to 24-bit color scales each channel
back to the full 0-255 range which is close enough to check a conversion by
eye but never recovers the original values.
*/
package image

import (
	"image"
	"image/color"
)

const (
	redBits   = 3
	greenBits = 3
	blueBits  = 2

	redMax   = 1<<redBits - 1
	greenMax = 1<<greenBits - 1
	blueMax  = 1<<blueBits - 1

	redShift   = greenBits + blueBits
	greenShift = blueBits
)

// Pack quantizes an 8-bit per channel color into a single RRRGGGBB byte.
func Pack(r, g, b uint8) uint8 {
	return (r>>5&redMax)<<redShift | (g>>5&greenMax)<<greenShift | b>>6&blueMax
}

// Unpack splits a packed byte into its 3-bit red, 3-bit green and 2-bit
// blue components.
func Unpack(v uint8) (r3, g3, b2 uint8) {
	return v >> redShift & redMax, v >> greenShift & greenMax, v & blueMax
}

// scale maps a value in the range 0-max to 0-255, rounding to nearest.
func scale(v, max uint8) uint8 {
	return uint8((uint32(v)*0xff + uint32(max)/2) / uint32(max))
}

// RGB332 represents a packed RRRGGGBB color.
type RGB332 struct {
	V uint8
}

// RGBA reconstructs an approximate 24-bit color. It implements the
// color.Color interface.
func (c RGB332) RGBA() (r, g, b, a uint32) {
	r3, g3, b2 := Unpack(c.V)
	r = uint32(scale(r3, redMax)) * 0x101
	g = uint32(scale(g3, greenMax)) * 0x101
	b = uint32(scale(b2, blueMax)) * 0x101
	return r, g, b, 0xffff
}

// straight returns the 8-bit channels of c without alpha applied. Alpha
// itself is dropped.
func straight(c color.Color) (r, g, b uint8) {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return n.R, n.G, n.B
}

func rgb332Model(c color.Color) color.Color {
	if _, ok := c.(RGB332); ok {
		return c
	}
	return RGB332{Pack(straight(c))}
}

// RGB332Model converts any color to RGB332.
var RGB332Model = color.ModelFunc(rgb332Model)

// Palette holds every reconstructed RGB332 color, indexed by packed value.
var Palette = func() color.Palette {
	p := make(color.Palette, 1<<8)
	for i := range p {
		p[i] = RGB332{uint8(i)}
	}
	return p
}()

// Image is an in-memory image whose At method returns RGB332 values.
type Image struct {
	// Pix holds one packed byte per pixel, row-major
	Pix    []uint8
	Stride int
	Rect   image.Rectangle
}

// NewImage returns a new Image with the given bounds.
func NewImage(r image.Rectangle) *Image {
	w, h := r.Dx(), r.Dy()
	if w < 0 || h < 0 {
		return &Image{Rect: r}
	}
	return &Image{
		Pix:    make([]uint8, w*h),
		Stride: w,
		Rect:   r,
	}
}

// ColorModel returns RGB332Model.
func (p *Image) ColorModel() color.Model {
	return RGB332Model
}

// Bounds returns the image bounds.
func (p *Image) Bounds() image.Rectangle {
	return p.Rect
}

// At returns the color of the pixel at (x, y).
func (p *Image) At(x, y int) color.Color {
	return p.RGB332At(x, y)
}

// RGB332At returns the packed color of the pixel at (x, y).
func (p *Image) RGB332At(x, y int) RGB332 {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return RGB332{}
	}
	return RGB332{p.Pix[p.PixOffset(x, y)]}
}

// PixOffset returns the index of the byte in Pix holding the pixel at (x, y).
func (p *Image) PixOffset(x, y int) int {
	return (y-p.Rect.Min.Y)*p.Stride + (x - p.Rect.Min.X)
}

// Set quantizes c and stores it at (x, y).
func (p *Image) Set(x, y int, c color.Color) {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return
	}
	p.Pix[p.PixOffset(x, y)] = RGB332Model.Convert(c).(RGB332).V
}

// SetRGB332 stores an already packed color at (x, y).
func (p *Image) SetRGB332(x, y int, c RGB332) {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return
	}
	p.Pix[p.PixOffset(x, y)] = c.V
}

// Opaque reports whether the image is fully opaque, which is always true.
func (p *Image) Opaque() bool {
	return true
}

// Bytes returns the packed frame, row-major with no padding. The returned
// slice aliases Pix when the image is stored contiguously.
func (p *Image) Bytes() []byte {
	w, h := p.Rect.Dx(), p.Rect.Dy()
	if p.Stride == w {
		return p.Pix[:w*h]
	}
	b := make([]byte, 0, w*h)
	for y := 0; y < h; y++ {
		i := y * p.Stride
		b = append(b, p.Pix[i:i+w]...)
	}
	return b
}
