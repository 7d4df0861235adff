package rgb332

import (
	"context"
	"errors"
	"image"
	"io"
	"sync"

	"github.com/bodgit/rgb332/frame"
	rgbimage "github.com/bodgit/rgb332/image"
	"github.com/bodgit/rgb332/source"
)

var errCancelled = errors.New("rgb332: pipeline cancelled")

// result pairs a transformed frame with its packed form.
type result struct {
	original image.Image
	packed   *rgbimage.Image
}

// emitFunc is called once per frame, in order. i counts from zero.
type emitFunc func(i int, r result) error

func (c *Converter) readFrames(ctx context.Context, src source.Source) (<-chan image.Image, <-chan error, error) {
	out := make(chan image.Image)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errc)
		for i := 0; c.options.MaxFrames <= 0 || i < c.options.MaxFrames; i++ {
			m, err := src.Next()
			if err != nil {
				if err != io.EOF {
					errc <- err
				}
				return
			}

			select {
			case out <- m:
			case <-ctx.Done():
				errc <- errCancelled
				return
			}
		}
		c.logger.Printf("Stopping after %d frames\n", c.options.MaxFrames)
	}()
	return out, errc, nil
}

func (c *Converter) packFrames(ctx context.Context, in <-chan image.Image, step frame.Step) (<-chan result, <-chan error, error) {
	out := make(chan result)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errc)
		for m := range in {
			m, err := step(m)
			if err != nil {
				errc <- err
				return
			}

			select {
			case out <- result{original: m, packed: rgbimage.Convert(m)}:
			case <-ctx.Done():
				errc <- errCancelled
				return
			}
		}
	}()
	return out, errc, nil
}

func (c *Converter) emitFrames(in <-chan result, fn emitFunc) (<-chan error, error) {
	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		i := 0
		for r := range in {
			if err := fn(i, r); err != nil {
				errc <- err
				return
			}
			i++
			c.logger.Printf("Processed frame %d\n", i)
		}
	}()
	return errc, nil
}

// waitForPipeline returns the first error from any stage. The remaining
// stages are cancelled and drained so nothing is still using the source
// once it returns.
func waitForPipeline(cancel context.CancelFunc, errs ...<-chan error) error {
	var first error
	for err := range mergeErrors(errs...) {
		if err != nil && first == nil {
			first = err
			cancel()
		}
	}
	return first
}

func mergeErrors(cs ...<-chan error) <-chan error {
	var wg sync.WaitGroup
	out := make(chan error, len(cs))
	wg.Add(len(cs))
	for _, c := range cs {
		go func(c <-chan error) {
			for n := range c {
				out <- n
			}
			wg.Done()
		}(c)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// process runs every frame of src through the letterbox, rotate and pack
// stages and hands the results to fn.
func (c *Converter) process(ctx context.Context, src source.Source, fn emitFunc) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	var errcList []<-chan error

	frames, errc, err := c.readFrames(ctx, src)
	if err != nil {
		return err
	}
	errcList = append(errcList, errc)

	packed, errc, err := c.packFrames(ctx, frames, c.options.steps())
	if err != nil {
		return err
	}
	errcList = append(errcList, errc)

	errc, err = c.emitFrames(packed, fn)
	if err != nil {
		return err
	}
	errcList = append(errcList, errc)

	return waitForPipeline(cancelFunc, errcList...)
}
