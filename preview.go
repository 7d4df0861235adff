package rgb332

import (
	"context"
	"fmt"
	"image"
	"image/gif"
	"os"
	"path/filepath"
	"strings"

	"github.com/fogleman/gg"

	rgbimage "github.com/bodgit/rgb332/image"
	"github.com/bodgit/rgb332/preview"
)

// Frame delay in an animated preview, in hundredths of a second.
const previewDelay = 10

// Preview converts the file at path and writes the frames next to their
// reconstructions to out. A .gif output animates every frame, anything else
// gets a PNG of the first frame only.
func (c *Converter) Preview(ctx context.Context, path, out string) (*preview.Report, error) {
	src, err := c.open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	animate := strings.EqualFold(filepath.Ext(out), ".gif")

	var (
		rep       preview.Report
		originals []image.Image
		packed    []*rgbimage.Image
	)
	if err := c.process(ctx, src, func(i int, r result) error {
		rep.Merge(preview.Compare(r.original, r.packed))
		if animate || i == 0 {
			originals = append(originals, r.original)
			packed = append(packed, r.packed)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if len(packed) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoFrames, src.Name())
	}

	if animate {
		err = createFile(out, func(f *os.File) error {
			return gif.EncodeAll(f, preview.Animation(originals, packed, previewDelay))
		})
	} else {
		err = gg.SavePNG(out, preview.Sheet(originals[0], packed[0]))
	}
	if err != nil {
		return nil, err
	}

	c.logger.Printf("Wrote \"%s\"\n", out)
	c.logger.Printf("Max error R=%d G=%d B=%d, mean deltaE %.2f over %d pixels\n", rep.MaxR, rep.MaxG, rep.MaxB, rep.MeanDeltaE, rep.Pixels)

	return &rep, nil
}
