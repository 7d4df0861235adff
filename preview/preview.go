/*
Package preview renders packed RGB332 frames next to the frames they were
packed from so the loss in color depth can be judged by eye, and measures
that loss.
*/
package preview

import (
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"sync"

	"github.com/disintegration/gift"
	"github.com/ericpauley/go-quantize/quantize"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	rgbimage "github.com/bodgit/rgb332/image"
)

const (
	margin     = 8
	captionPts = 14
	minPanel   = 192

	// Captions above each half of a sheet
	OriginalCaption      = "Original"
	ReconstructedCaption = "Reconstructed (RGB332)"
)

var (
	face     font.Face
	faceOnce sync.Once
)

func captionFace() font.Face {
	faceOnce.Do(func() {
		f, err := truetype.Parse(goregular.TTF)
		if err != nil {
			// The font is compiled in
			panic(err)
		}
		face = truetype.NewFace(f, &truetype.Options{Size: captionPts})
	})
	return face
}

// magnify scales m up by the smallest integer factor that makes it at least
// minPanel pixels wide, without smoothing so individual pixels stay visible.
func magnify(m image.Image) image.Image {
	b := m.Bounds()
	s := 1
	for b.Dx()*s < minPanel {
		s++
	}
	if s == 1 {
		return m
	}

	g := gift.New(gift.Resize(b.Dx()*s, b.Dy()*s, gift.NearestNeighborResampling))
	dst := image.NewRGBA(g.Bounds(b))
	g.Draw(dst, m)
	return dst
}

// Sheet draws original and packed side by side, each with a caption. The
// packed frame is drawn using its reconstructed colors.
func Sheet(original image.Image, packed *rgbimage.Image) *image.RGBA {
	left, right := magnify(original), magnify(packed)
	lb, rb := left.Bounds(), right.Bounds()

	height := lb.Dy()
	if rb.Dy() > height {
		height = rb.Dy()
	}
	caption := captionPts * 2

	dc := gg.NewContext(lb.Dx()+rb.Dx()+3*margin, height+caption+2*margin)
	dc.SetColor(color.White)
	dc.Clear()

	dc.SetFontFace(captionFace())
	dc.SetColor(color.Black)

	x := margin
	for _, panel := range []struct {
		m       image.Image
		caption string
	}{
		{left, OriginalCaption},
		{right, ReconstructedCaption},
	} {
		w := panel.m.Bounds().Dx()
		dc.DrawStringAnchored(panel.caption, float64(x+w/2), float64(margin+caption/2), 0.5, 0.5)
		dc.DrawImage(panel.m, x, margin+caption)
		x += w + margin
	}

	sheet, ok := dc.Image().(*image.RGBA)
	if !ok {
		sheet = image.NewRGBA(dc.Image().Bounds())
		draw.Draw(sheet, sheet.Bounds(), dc.Image(), image.Point{}, draw.Src)
	}
	return sheet
}

// Animation returns an animated GIF with one sheet per frame. delay is in
// hundredths of a second.
func Animation(originals []image.Image, packed []*rgbimage.Image, delay int) *gif.GIF {
	g := &gif.GIF{}

	q := quantize.MedianCutQuantizer{}
	for i := range packed {
		sheet := Sheet(originals[i], packed[i])
		b := sheet.Bounds()

		p := image.NewPaletted(b, q.Quantize(make(color.Palette, 0, 256), sheet))
		draw.Draw(p, b, sheet, b.Min, draw.Src)

		g.Image = append(g.Image, p)
		g.Delay = append(g.Delay, delay)
		g.Disposal = append(g.Disposal, gif.DisposalNone)
	}

	return g
}

// Report summarizes the quantization error of one or more frames.
type Report struct {
	// Largest absolute difference seen per channel, in 8-bit units
	MaxR, MaxG, MaxB int
	// MeanDeltaE is the mean CIE76 distance in L*a*b* space
	MeanDeltaE float64
	// Pixels is the number of pixels compared
	Pixels int
}

func rgb8(c color.Color) (int, int, int) {
	r, g, b, _ := c.RGBA()
	return int(r >> 8), int(g >> 8), int(b >> 8)
}

func diff(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}

func lab(r, g, b int) colorful.Color {
	return colorful.Color{
		R: float64(r) / 255.0,
		G: float64(g) / 255.0,
		B: float64(b) / 255.0,
	}
}

// Compare measures how far the reconstructed colors of packed are from
// original. Both must be the same size.
func Compare(original image.Image, packed *rgbimage.Image) Report {
	var (
		rep   Report
		total float64
	)

	ob, pb := original.Bounds(), packed.Bounds()
	for y := 0; y < ob.Dy() && y < pb.Dy(); y++ {
		for x := 0; x < ob.Dx() && x < pb.Dx(); x++ {
			r0, g0, b0 := rgb8(original.At(ob.Min.X+x, ob.Min.Y+y))
			r1, g1, b1 := rgb8(packed.At(pb.Min.X+x, pb.Min.Y+y))

			if d := diff(r0, r1); d > rep.MaxR {
				rep.MaxR = d
			}
			if d := diff(g0, g1); d > rep.MaxG {
				rep.MaxG = d
			}
			if d := diff(b0, b1); d > rep.MaxB {
				rep.MaxB = d
			}

			total += lab(r0, g0, b0).DistanceLab(lab(r1, g1, b1))
			rep.Pixels++
		}
	}

	if rep.Pixels > 0 {
		rep.MeanDeltaE = total / float64(rep.Pixels)
	}

	return rep
}

// Merge folds o into r as if both had been measured together.
func (r *Report) Merge(o Report) {
	if r.Pixels+o.Pixels == 0 {
		return
	}

	r.MeanDeltaE = (r.MeanDeltaE*float64(r.Pixels) + o.MeanDeltaE*float64(o.Pixels)) / float64(r.Pixels+o.Pixels)
	r.Pixels += o.Pixels
	r.MaxR = max(r.MaxR, o.MaxR)
	r.MaxG = max(r.MaxG, o.MaxG)
	r.MaxB = max(r.MaxB, o.MaxB)
}
