/*
Package source implements the frame sources a conversion reads from.

Still images are decoded with the standard image package (plus BMP, TIFF and
WebP from golang.org/x/image), animated GIFs are decoded and coalesced so
every frame is a complete picture, AVI files holding MJPEG or uncompressed
frames are read natively and anything else is handed to ffmpeg which streams
raw RGB frames back over a pipe.
*/
package source

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder
)

// ErrOpen is returned, wrapped, when a source cannot be opened.
var ErrOpen = errors.New("source: cannot open source")

// Source yields a sequence of frames.
type Source interface {
	// Next returns the next frame or io.EOF once there are no more
	Next() (image.Image, error)
	// Name returns the base name of the source file
	Name() string
	// Video reports whether the source is a moving picture rather than a
	// single still image
	Video() bool
	Close() error
}

// Options configures how sources are opened.
type Options struct {
	// FFmpeg is the ffmpeg binary, defaults to "ffmpeg" on $PATH
	FFmpeg string
	// FFprobe is the ffprobe binary, defaults to "ffprobe" on $PATH
	FFprobe string
}

var videoExtensions = map[string]struct{}{
	".mp4":  {},
	".mov":  {},
	".mkv":  {},
	".webm": {},
	".m4v":  {},
	".mpg":  {},
	".mpeg": {},
	".wmv":  {},
	".flv":  {},
	".ts":   {},
}

func openError(path string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrOpen, path, err)
}

// Open opens the file at path, picking a decoder based on its extension.
// The context bounds the lifetime of any external decoder process.
func Open(ctx context.Context, path string, o *Options) (Source, error) {
	if o == nil {
		o = &Options{}
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".gif":
		return openGIF(path)
	case ".avi":
		s, err := openAVI(path)
		if errors.Is(err, errCodec) {
			// Let ffmpeg deal with anything that isn't MJPEG or raw
			return openFFmpeg(ctx, path, o)
		}
		return s, err
	default:
		if _, ok := videoExtensions[ext]; ok {
			return openFFmpeg(ctx, path, o)
		}
		return openStill(path)
	}
}
