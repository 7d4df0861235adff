package image

import (
	"errors"
	"image"
	"io"
)

var (
	// ErrShortFrame is returned when a raw frame holds fewer than W*H bytes
	ErrShortFrame = errors.New("image: not enough image data")
	// ErrLongFrame is returned when a raw frame holds more than W*H bytes
	ErrLongFrame = errors.New("image: too much image data")

	errBadSize = errors.New("image: invalid dimensions")
)

func readFull(r io.Reader, b []byte) error {
	_, err := io.ReadFull(r, b)
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return err
}

// Decode reads a raw RGB332 frame of the given dimensions from r. The frame
// must be exactly width*height bytes; there is no header to describe it.
func Decode(r io.Reader, width, height int) (*Image, error) {
	if width <= 0 || height <= 0 {
		return nil, errBadSize
	}

	m := NewImage(image.Rect(0, 0, width, height))
	if err := readFull(r, m.Pix); err != nil {
		if err != io.ErrUnexpectedEOF {
			return nil, err
		}
		return nil, ErrShortFrame
	}

	var tmp [1]byte
	switch _, err := io.ReadFull(r, tmp[:]); err {
	case io.EOF:
	case nil:
		return nil, ErrLongFrame
	default:
		return nil, err
	}

	return m, nil
}
