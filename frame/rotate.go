package frame

import (
	"image"

	"github.com/disintegration/gift"
)

// Turns normalizes k quarter turns into the range 0-3.
func Turns(k int) int {
	return (k%4 + 4) % 4
}

// Rotate rotates m by k*90 degrees counter-clockwise. Zero (or any multiple
// of four) returns m unchanged.
func Rotate(m image.Image, k int) image.Image {
	var f gift.Filter
	switch Turns(k) {
	case 1:
		f = gift.Rotate90()
	case 2:
		f = gift.Rotate180()
	case 3:
		f = gift.Rotate270()
	default:
		return m
	}

	g := gift.New(f)
	dst := image.NewRGBA(g.Bounds(m.Bounds()))
	g.Draw(dst, m)
	return dst
}

// Rotation returns Rotate as a Step.
func Rotation(k int) Step {
	return func(m image.Image) (image.Image, error) {
		return Rotate(m, k), nil
	}
}
