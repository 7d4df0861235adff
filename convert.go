package rgb332

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bodgit/rgb332/header"
	rgbimage "github.com/bodgit/rgb332/image"
	"github.com/bodgit/rgb332/metadata"
	"github.com/bodgit/rgb332/source"
)

func info(src source.Source, seq *rgbimage.Sequence) *metadata.Info {
	kind := metadata.Image
	if src.Video() {
		kind = metadata.Video
	}

	return &metadata.Info{
		Kind:   kind,
		Name:   src.Name(),
		Frames: seq.Len(),
		Width:  seq.Width,
		Height: seq.Height,
	}
}

func (c *Converter) open(ctx context.Context, path string) (source.Source, error) {
	src, err := source.Open(ctx, path, c.options.source())
	if err != nil {
		return nil, err
	}
	c.logger.Printf("Opened \"%s\"\n", path)
	return src, nil
}

func (c *Converter) convert(ctx context.Context, src source.Source) (*rgbimage.Sequence, *metadata.Info, error) {
	seq := new(rgbimage.Sequence)
	if err := c.process(ctx, src, func(_ int, r result) error {
		return seq.Append(r.packed)
	}); err != nil {
		return nil, nil, err
	}

	if seq.Len() == 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrNoFrames, src.Name())
	}

	return seq, info(src, seq), nil
}

// Convert reads every frame from the file at path, up to MaxFrames, and
// returns them packed.
func (c *Converter) Convert(ctx context.Context, path string) (*rgbimage.Sequence, *metadata.Info, error) {
	src, err := c.open(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	defer src.Close()

	return c.convert(ctx, src)
}

// createFile creates file and calls fn with it, making sure it is closed
// and the close error is not lost.
func createFile(file string, fn func(*os.File) error) (err error) {
	f, err := os.Create(file)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	return fn(f)
}

func (c *Converter) writeHeader(dir, name string, seq *rgbimage.Sequence, i *metadata.Info) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	file := filepath.Join(dir, name+".h")
	if err := createFile(file, func(f *os.File) error {
		return header.Encode(f, name, seq, c.options.header(i.Name))
	}); err != nil {
		return err
	}
	c.logger.Printf("Wrote \"%s\"\n", file)

	file = filepath.Join(dir, name+"_array.txt")
	if err := createFile(file, func(f *os.File) error {
		return header.EncodeDump(f, seq)
	}); err != nil {
		return err
	}
	c.logger.Printf("Wrote \"%s\"\n", file)

	c.logger.Printf("%d frames of %dx%d, %d bytes\n", seq.Len(), seq.Width, seq.Height, seq.Len()*seq.FrameSize())

	return nil
}

// WriteHeader converts the file at path and writes name.h and
// name_array.txt into dir.
func (c *Converter) WriteHeader(ctx context.Context, path, dir, name string) error {
	// Fail on a bad name before doing any work
	if _, err := header.Identifier(name); err != nil {
		return err
	}

	seq, i, err := c.Convert(ctx, path)
	if err != nil {
		return err
	}

	return c.writeHeader(dir, name, seq, i)
}

func frameFile(dir string, i int) string {
	return filepath.Join(dir, fmt.Sprintf("frame%d.bin", i))
}

func writeInfo(dir string, i *metadata.Info) error {
	b, err := i.MarshalText()
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, metadata.Filename), b, 0644)
}

// recreate empties dir, creating it if necessary.
func recreate(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// WriteFrames converts the file at path, writing each frame to dir as
// frame1.bin, frame2.bin, and so on, followed by an info.txt. dir is
// emptied first, but only once the source has been opened.
func (c *Converter) WriteFrames(ctx context.Context, path, dir string) (*metadata.Info, error) {
	src, err := c.open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	if err := recreate(dir); err != nil {
		return nil, err
	}

	// Only the geometry is kept, the pixels are already on disk
	var seq rgbimage.Sequence
	if err := c.process(ctx, src, func(n int, r result) error {
		if err := seq.Append(&rgbimage.Image{Rect: r.packed.Rect}); err != nil {
			return err
		}
		return createFile(frameFile(dir, n+1), func(f *os.File) error {
			_, err := f.Write(r.packed.Bytes())
			return err
		})
	}); err != nil {
		return nil, err
	}

	if seq.Len() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoFrames, src.Name())
	}

	i := info(src, &seq)
	if err := writeInfo(dir, i); err != nil {
		return nil, err
	}
	c.logger.Printf("Wrote %d frames of %dx%d to \"%s\"\n", i.Frames, i.Width, i.Height, dir)

	return i, nil
}

// Verify checks a directory written by WriteFrames: every frame listed in
// info.txt must exist with the right size and there must be no extra frame
// after the last one.
func Verify(dir string) (*metadata.Info, error) {
	b, err := os.ReadFile(filepath.Join(dir, metadata.Filename))
	if err != nil {
		return nil, err
	}

	i := new(metadata.Info)
	if err := i.UnmarshalText(b); err != nil {
		return nil, err
	}

	for n := 1; n <= i.Frames; n++ {
		fi, err := os.Stat(frameFile(dir, n))
		if err != nil {
			return nil, err
		}
		switch size := int64(i.FrameSize()); {
		case fi.Size() < size:
			return nil, fmt.Errorf("%w: %s is %d bytes, expected %d", rgbimage.ErrShortFrame, fi.Name(), fi.Size(), size)
		case fi.Size() > size:
			return nil, fmt.Errorf("%w: %s is %d bytes, expected %d", rgbimage.ErrLongFrame, fi.Name(), fi.Size(), size)
		}
	}

	if _, err := os.Stat(frameFile(dir, i.Frames+1)); err == nil {
		return nil, fmt.Errorf("rgb332: unexpected %s", filepath.Base(frameFile(dir, i.Frames+1)))
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	return i, nil
}
