/*
Package metadata implements the small plain text sidecar written next to a
directory of raw RGB332 frames.

The file is five lines in a fixed order:

	Video: clip.mp4
	Frames: 10
	Width: 128
	Height: 160
	Format: RGB332 (RRRGGGBB)

The first line is labelled Image rather than Video when the frames came from
a still image.
*/
package metadata

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

const (
	// Filename is the expected filename used when writing to disk
	Filename = "info.txt"

	// Format describes the pixel layout of every frame
	Format = "RGB332 (RRRGGGBB)"
)

// Kind labels where the frames came from.
type Kind string

// Frame sources.
const (
	Video Kind = "Video"
	Image Kind = "Image"
)

// ErrFormat is returned when a sidecar cannot be parsed.
var ErrFormat = errors.New("metadata: invalid format")

// Info describes a sequence of frames. It implements the
// encoding.TextMarshaler and encoding.TextUnmarshaler interfaces.
type Info struct {
	Kind   Kind
	Name   string
	Frames int
	Width  int
	Height int
}

// FrameSize returns the number of bytes in each frame.
func (i *Info) FrameSize() int {
	return i.Width * i.Height
}

// MarshalText encodes the sidecar.
func (i *Info) MarshalText() ([]byte, error) {
	switch i.Kind {
	case Video, Image:
	default:
		return nil, fmt.Errorf("metadata: unknown kind %q", i.Kind)
	}
	// The name shares its line with the kind
	if strings.ContainsFunc(i.Name, unicode.IsControl) {
		return nil, fmt.Errorf("%w: control character in name %q", ErrFormat, i.Name)
	}

	b := new(bytes.Buffer)
	fmt.Fprintf(b, "%s: %s\n", i.Kind, i.Name)
	fmt.Fprintf(b, "Frames: %d\n", i.Frames)
	fmt.Fprintf(b, "Width: %d\n", i.Width)
	fmt.Fprintf(b, "Height: %d\n", i.Height)
	fmt.Fprintf(b, "Format: %s\n", Format)

	return b.Bytes(), nil
}

func field(line, key string) (string, error) {
	k, v, ok := strings.Cut(line, ": ")
	if !ok || k != key {
		return "", fmt.Errorf("%w: expected %s, got %q", ErrFormat, key, line)
	}
	return v, nil
}

func intField(line, key string) (int, error) {
	v, err := field(line, key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: bad %s %q", ErrFormat, key, v)
	}
	return n, nil
}

// UnmarshalText decodes the sidecar.
func (i *Info) UnmarshalText(text []byte) error {
	var lines []string
	s := bufio.NewScanner(bytes.NewReader(text))
	for s.Scan() {
		if line := strings.TrimRight(s.Text(), "\r"); line != "" {
			lines = append(lines, line)
		}
	}
	if err := s.Err(); err != nil {
		return err
	}

	if len(lines) != 5 {
		return fmt.Errorf("%w: expected 5 lines, got %d", ErrFormat, len(lines))
	}

	var (
		n   Info
		err error
	)

	if n.Name, err = field(lines[0], string(Video)); err == nil {
		n.Kind = Video
	} else if n.Name, err = field(lines[0], string(Image)); err == nil {
		n.Kind = Image
	} else {
		return err
	}

	if n.Frames, err = intField(lines[1], "Frames"); err != nil {
		return err
	}
	if n.Width, err = intField(lines[2], "Width"); err != nil {
		return err
	}
	if n.Height, err = intField(lines[3], "Height"); err != nil {
		return err
	}

	format, err := field(lines[4], "Format")
	if err != nil {
		return err
	}
	if format != Format {
		return fmt.Errorf("%w: unsupported format %q", ErrFormat, format)
	}

	*i = n

	return nil
}
