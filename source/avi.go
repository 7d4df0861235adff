package source

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
)

const (
	avihSize = 56 // fixed size of the main AVI header
	bmihSize = 40 // fixed size of a BITMAPINFOHEADER

	biRGB = 0
)

var (
	errNotAVI   = errors.New("source: not an AVI file")
	errNoMovi   = errors.New("source: no movi list found")
	errNoVideo  = errors.New("source: no video stream found")
	errAVIShort = errors.New("source: truncated AVI chunk")

	// errCodec means the file is a valid AVI but the frames need a real
	// video decoder
	errCodec = errors.New("source: unsupported AVI codec")
)

var fccMJPG = binary.LittleEndian.Uint32([]byte("MJPG"))

type chunk struct {
	id   [4]byte
	size uint32
}

func (c chunk) is(id string) bool {
	return string(c.id[:]) == id
}

// padded returns the size of the chunk data rounded up to a word boundary.
func (c chunk) padded() int64 {
	return int64(c.size) + int64(c.size&1)
}

func readChunk(r io.Reader) (chunk, error) {
	var tmp [8]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return chunk{}, err
	}
	var c chunk
	copy(c.id[:], tmp[:4])
	c.size = binary.LittleEndian.Uint32(tmp[4:])
	return c, nil
}

// avi reads frames from the movi list of an AVI file. Frames are either JPEG
// (MJPEG) or bottom-up uncompressed DIBs.
type avi struct {
	r      io.ReadSeeker
	c      io.Closer
	name   string
	stream string

	width       int
	height      int
	topDown     bool
	bitCount    int
	compression uint32

	pos int64
	end int64
}

func openAVI(path string) (*avi, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, openError(path, err)
	}

	a, err := newAVI(f, filepath.Base(path))
	if err != nil {
		f.Close()
		if errors.Is(err, errCodec) {
			return nil, err
		}
		return nil, openError(path, err)
	}
	a.c = f

	return a, nil
}

func newAVI(r io.ReadSeeker, name string) (*avi, error) {
	a := &avi{
		r:    r,
		name: name,
	}

	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, errNotAVI
	}
	if string(riff[:4]) != "RIFF" || string(riff[8:]) != "AVI " {
		return nil, errNotAVI
	}
	a.pos = int64(len(riff))

	var header bool
	for {
		c, err := readChunk(r)
		if err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil, errNoMovi
			}
			return nil, err
		}
		a.pos += 8

		if !c.is("LIST") || c.size < 4 {
			if err := a.skip(c.padded()); err != nil {
				return nil, err
			}
			continue
		}

		var listType [4]byte
		if _, err := io.ReadFull(r, listType[:]); err != nil {
			return nil, errAVIShort
		}
		a.pos += 4

		switch string(listType[:]) {
		case "hdrl":
			b := make([]byte, c.padded()-4)
			if _, err := io.ReadFull(r, b); err != nil {
				return nil, errAVIShort
			}
			a.pos += int64(len(b))
			if err := a.parseHeaders(b); err != nil {
				return nil, err
			}
			header = true
		case "movi":
			if !header {
				return nil, errNoVideo
			}
			a.end = a.pos + int64(c.size) - 4
			return a, nil
		default:
			if err := a.skip(c.padded() - 4); err != nil {
				return nil, err
			}
		}
	}
}

func (a *avi) skip(n int64) error {
	if _, err := a.r.Seek(n, io.SeekCurrent); err != nil {
		return err
	}
	a.pos += n
	return nil
}

// subChunks calls fn for every chunk held in b.
func subChunks(b []byte, fn func(chunk, []byte) error) error {
	for len(b) >= 8 {
		c, _ := readChunk(bytes.NewReader(b))
		b = b[8:]
		if int64(len(b)) < int64(c.size) {
			return errAVIShort
		}
		if err := fn(c, b[:c.size]); err != nil {
			return err
		}
		if int64(len(b)) < c.padded() {
			break
		}
		b = b[c.padded():]
	}
	return nil
}

func (a *avi) parseHeaders(b []byte) error {
	var (
		streams int
		video   = -1
	)

	err := subChunks(b, func(c chunk, data []byte) error {
		switch {
		case c.is("avih"):
			if len(data) < avihSize {
				return errAVIShort
			}
			a.width = int(binary.LittleEndian.Uint32(data[32:]))
			a.height = int(binary.LittleEndian.Uint32(data[36:]))
		case c.is("LIST") && len(data) >= 4 && string(data[:4]) == "strl":
			index := streams
			streams++
			if video >= 0 {
				return nil
			}
			var vids bool
			return subChunks(data[4:], func(c chunk, data []byte) error {
				switch {
				case c.is("strh"):
					vids = len(data) >= 4 && string(data[:4]) == "vids"
				case c.is("strf") && vids:
					if len(data) < bmihSize {
						return errAVIShort
					}
					height := int32(binary.LittleEndian.Uint32(data[8:]))
					a.topDown = height < 0
					a.bitCount = int(binary.LittleEndian.Uint16(data[14:]))
					a.compression = binary.LittleEndian.Uint32(data[16:])
					video = index
				}
				return nil
			})
		}
		return nil
	})
	if err != nil {
		return err
	}

	if a.width == 0 || a.height == 0 {
		return fmt.Errorf("%w: invalid frame dimensions", errNotAVI)
	}
	if video < 0 {
		return errNoVideo
	}

	switch {
	case a.compression == fccMJPG:
	case a.compression == biRGB && (a.bitCount == 24 || a.bitCount == 32):
	default:
		return errCodec
	}

	a.stream = fmt.Sprintf("%02d", video)

	return nil
}

func (a *avi) Next() (image.Image, error) {
	for a.pos+8 <= a.end {
		c, err := readChunk(a.r)
		if err != nil {
			return nil, errAVIShort
		}
		a.pos += 8

		if c.is("LIST") {
			// Descend into "rec " lists, the chunks inside are frames
			if err := a.skip(4); err != nil {
				return nil, err
			}
			continue
		}

		if string(c.id[:2]) != a.stream || (string(c.id[2:]) != "dc" && string(c.id[2:]) != "db") {
			if err := a.skip(c.padded()); err != nil {
				return nil, err
			}
			continue
		}

		b := make([]byte, c.size)
		if _, err := io.ReadFull(a.r, b); err != nil {
			return nil, errAVIShort
		}
		a.pos += int64(c.size)
		if c.size&1 != 0 {
			if err := a.skip(1); err != nil {
				return nil, err
			}
		}

		// Zero length chunks repeat the previous frame in some muxers
		if len(b) == 0 {
			continue
		}

		return a.decode(b)
	}

	return nil, io.EOF
}

func (a *avi) decode(b []byte) (image.Image, error) {
	if a.compression == fccMJPG {
		return jpeg.Decode(bytes.NewReader(b))
	}

	bpp := a.bitCount / 8
	stride := (a.width*bpp + 3) &^ 3
	if len(b) < stride*a.height {
		return nil, errAVIShort
	}

	m := image.NewRGBA(image.Rect(0, 0, a.width, a.height))
	for y := 0; y < a.height; y++ {
		row := y
		if !a.topDown {
			row = a.height - 1 - y
		}
		src := b[row*stride:]
		dst := m.Pix[y*m.Stride:]
		for x := 0; x < a.width; x++ {
			// DIBs store pixels as BGR(X)
			dst[x*4+0] = src[x*bpp+2]
			dst[x*4+1] = src[x*bpp+1]
			dst[x*4+2] = src[x*bpp+0]
			dst[x*4+3] = 0xff
		}
	}

	return m, nil
}

func (a *avi) Name() string {
	return a.name
}

func (a *avi) Video() bool {
	return true
}

func (a *avi) Close() error {
	if a.c == nil {
		return nil
	}
	return a.c.Close()
}
