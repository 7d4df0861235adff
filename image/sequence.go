package image

import (
	"errors"
	"fmt"
	"io"
)

// ErrDimensions is returned when a frame does not match the size of the
// frames already in a Sequence.
var ErrDimensions = errors.New("image: frame dimensions differ from sequence")

// Sequence is an ordered list of packed frames that all share the same
// dimensions.
type Sequence struct {
	Width  int
	Height int
	Frames []*Image
}

// Append adds m to the end of the sequence. The first frame fixes the
// dimensions of the sequence.
func (s *Sequence) Append(m *Image) error {
	w, h := m.Rect.Dx(), m.Rect.Dy()
	if len(s.Frames) == 0 {
		s.Width, s.Height = w, h
	} else if w != s.Width || h != s.Height {
		return fmt.Errorf("%w: got %dx%d, want %dx%d", ErrDimensions, w, h, s.Width, s.Height)
	}
	s.Frames = append(s.Frames, m)
	return nil
}

// Len returns the number of frames.
func (s *Sequence) Len() int {
	return len(s.Frames)
}

// FrameSize returns the number of bytes in each frame.
func (s *Sequence) FrameSize() int {
	return s.Width * s.Height
}

// WriteTo writes every frame to w in order.
func (s *Sequence) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, f := range s.Frames {
		n, err := w.Write(f.Bytes())
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Bytes returns every frame concatenated in order.
func (s *Sequence) Bytes() []byte {
	b := make([]byte, 0, s.Len()*s.FrameSize())
	for _, f := range s.Frames {
		b = append(b, f.Bytes()...)
	}
	return b
}
