/*
Package rgb332 converts still images and video into packed RGB332 frames for
small embedded displays.

Frames are letterboxed to the display, optionally rotated, packed to one byte
per pixel and then emitted either as a C header or as a directory of raw
frame files with an info.txt sidecar. Converted sequences can also be kept in
a Library and emitted again later without touching the source.
*/
package rgb332

import (
	"errors"
	"io"
	"log"

	"github.com/bodgit/rgb332/frame"
	"github.com/bodgit/rgb332/header"
	"github.com/bodgit/rgb332/source"
)

// ErrNoFrames is returned when a source produced nothing to emit.
var ErrNoFrames = errors.New("rgb332: no frames")

// Options controls a conversion.
type Options struct {
	// Width and Height of the display, zero for both keeps the source size
	Width  int
	Height int
	// MaxFrames stops the conversion after this many frames, zero means
	// every frame
	MaxFrames int
	// Rotate is the number of 90 degree counter-clockwise turns applied
	// after letterboxing
	Rotate int
	// Columns is the number of values per line in a C header
	Columns int
	// Includes are the headers included by a C header, nil means
	// Arduino.h
	Includes []string
	// FFmpeg and FFprobe override the binaries used for video
	FFmpeg  string
	FFprobe string
}

func (o *Options) steps() frame.Step {
	steps := []frame.Step{frame.Opaque}
	if o.Width > 0 && o.Height > 0 {
		steps = append(steps, frame.Letterbox(o.Width, o.Height))
	}
	return frame.Chain(append(steps, frame.Rotation(o.Rotate))...)
}

func (o *Options) source() *source.Options {
	return &source.Options{
		FFmpeg:  o.FFmpeg,
		FFprobe: o.FFprobe,
	}
}

func (o *Options) header(src string) *header.Options {
	return &header.Options{
		Source:   src,
		Columns:  o.Columns,
		Includes: o.Includes,
	}
}

// Converter converts sources according to its Options.
type Converter struct {
	lib     *Library
	logger  *log.Logger
	options Options
}

// New returns a Converter. lib may be nil if the library is not used. A nil
// logger discards everything.
func New(options Options, lib *Library, logger *log.Logger) *Converter {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	return &Converter{
		lib:     lib,
		logger:  logger,
		options: options,
	}
}
