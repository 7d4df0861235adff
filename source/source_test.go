package source

import (
	"bytes"
	"context"
	"encoding/binary"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

func solid(w, h int, c color.Color) *image.RGBA {
	m := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(m, m.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return m
}

func readAll(t *testing.T, s Source) []image.Image {
	t.Helper()
	var frames []image.Image
	for {
		m, err := s.Next()
		if err == io.EOF {
			return frames
		}
		require.NoError(t, err)
		frames = append(frames, m)
	}
}

func TestOpenMissing(t *testing.T) {
	for _, name := range []string{"missing.png", "missing.gif", "missing.avi"} {
		_, err := Open(context.Background(), filepath.Join(t.TempDir(), name), nil)
		assert.ErrorIs(t, err, ErrOpen, name)
	}
}

func TestOpenGarbage(t *testing.T) {
	file := filepath.Join(t.TempDir(), "garbage.png")
	require.NoError(t, os.WriteFile(file, []byte("not an image"), 0644))

	_, err := Open(context.Background(), file, nil)
	assert.ErrorIs(t, err, ErrOpen)
}

func TestStill(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name   string
		encode func(io.Writer, image.Image) error
	}{
		{"kar.png", png.Encode},
		{"kar.bmp", bmp.Encode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file := filepath.Join(dir, tt.name)
			f, err := os.Create(file)
			require.NoError(t, err)
			require.NoError(t, tt.encode(f, solid(6, 4, color.RGBA{255, 0, 0, 255})))
			require.NoError(t, f.Close())

			s, err := Open(context.Background(), file, nil)
			require.NoError(t, err)
			defer s.Close()

			assert.Equal(t, tt.name, s.Name())
			assert.False(t, s.Video())

			frames := readAll(t, s)
			require.Len(t, frames, 1)
			assert.Equal(t, image.Rect(0, 0, 6, 4), frames[0].Bounds())

			r, g, b, _ := frames[0].At(3, 2).RGBA()
			assert.Equal(t, []uint32{0xffff, 0, 0}, []uint32{r, g, b})
		})
	}
}

func palettedFrame(r image.Rectangle, c color.Color) *image.Paletted {
	p := image.NewPaletted(r, color.Palette{color.Transparent, color.Black, c})
	draw.Draw(p, r, image.NewUniform(c), image.Point{}, draw.Src)
	return p
}

func TestGIFCoalesce(t *testing.T) {
	red := color.RGBA{255, 0, 0, 255}
	blue := color.RGBA{0, 0, 255, 255}

	g := &gif.GIF{
		Image: []*image.Paletted{
			palettedFrame(image.Rect(0, 0, 4, 4), red),
			// Only the top-left corner changes
			palettedFrame(image.Rect(0, 0, 2, 2), blue),
			palettedFrame(image.Rect(2, 2, 4, 4), blue),
		},
		Delay:    []int{10, 10, 10},
		Disposal: []byte{gif.DisposalNone, gif.DisposalBackground, gif.DisposalNone},
		Config:   image.Config{Width: 4, Height: 4},
	}

	b := new(bytes.Buffer)
	require.NoError(t, gif.EncodeAll(b, g))

	file := filepath.Join(t.TempDir(), "disint.gif")
	require.NoError(t, os.WriteFile(file, b.Bytes(), 0644))

	s, err := Open(context.Background(), file, nil)
	require.NoError(t, err)
	defer s.Close()

	assert.True(t, s.Video())
	assert.Equal(t, "disint.gif", s.Name())

	frames := readAll(t, s)
	require.Len(t, frames, 3)

	for _, m := range frames {
		assert.Equal(t, image.Rect(0, 0, 4, 4), m.Bounds())
	}

	rgba := func(m image.Image, x, y int) color.RGBA {
		return color.RGBAModel.Convert(m.At(x, y)).(color.RGBA)
	}

	// Second frame is drawn over the first
	assert.Equal(t, blue, rgba(frames[1], 0, 0))
	assert.Equal(t, red, rgba(frames[1], 3, 3))

	// The second frame's area was cleared before the third was drawn
	assert.Equal(t, color.RGBA{}, rgba(frames[2], 0, 0))
	assert.Equal(t, red, rgba(frames[2], 2, 0))
	assert.Equal(t, blue, rgba(frames[2], 3, 3))
}

func le32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func riffChunk(id string, data ...[]byte) []byte {
	body := bytes.Join(data, nil)
	b := append([]byte(id), le32(uint32(len(body)))...)
	b = append(b, body...)
	if len(body)&1 != 0 {
		b = append(b, 0)
	}
	return b
}

func riffList(typ string, chunks ...[]byte) []byte {
	return riffChunk("LIST", append([][]byte{[]byte(typ)}, chunks...)...)
}

func aviFile(t *testing.T, w, h int, compression []byte, bitCount uint16, frames ...[]byte) []byte {
	t.Helper()

	avih := make([]byte, avihSize)
	binary.LittleEndian.PutUint32(avih[16:], uint32(len(frames)))
	binary.LittleEndian.PutUint32(avih[32:], uint32(w))
	binary.LittleEndian.PutUint32(avih[36:], uint32(h))

	strh := make([]byte, 56)
	copy(strh, "vids")

	strf := make([]byte, bmihSize)
	binary.LittleEndian.PutUint32(strf[0:], bmihSize)
	binary.LittleEndian.PutUint32(strf[4:], uint32(w))
	binary.LittleEndian.PutUint32(strf[8:], uint32(h))
	binary.LittleEndian.PutUint16(strf[12:], 1)
	binary.LittleEndian.PutUint16(strf[14:], bitCount)
	copy(strf[16:], compression)

	// An audio stream first so the video is stream 01
	auds := make([]byte, 56)
	copy(auds, "auds")

	var movi [][]byte
	for i, f := range frames {
		c := riffChunk("01dc", f)
		if i%2 == 1 {
			c = riffList("rec ", riffChunk("00wb", []byte{1, 2, 3}), c)
		}
		movi = append(movi, c)
	}

	return riffChunk("RIFF",
		[]byte("AVI "),
		riffList("hdrl",
			riffChunk("avih", avih),
			riffList("strl", riffChunk("strh", auds), riffChunk("strf", make([]byte, 18))),
			riffList("strl", riffChunk("strh", strh), riffChunk("strf", strf)),
		),
		riffChunk("JUNK", make([]byte, 7)),
		riffList("movi", movi...),
		riffChunk("idx1", make([]byte, 16)),
	)
}

func TestAVIMJPEG(t *testing.T) {
	var frames [][]byte
	for _, c := range []color.Color{color.White, color.Black, color.White} {
		b := new(bytes.Buffer)
		require.NoError(t, jpeg.Encode(b, solid(16, 8, c), &jpeg.Options{Quality: 100}))
		frames = append(frames, b.Bytes())
	}

	a, err := newAVI(bytes.NewReader(aviFile(t, 16, 8, []byte("MJPG"), 24, frames...)), "clip.avi")
	require.NoError(t, err)
	assert.Equal(t, "01", a.stream)
	assert.True(t, a.Video())
	assert.Equal(t, "clip.avi", a.Name())

	got := readAll(t, a)
	require.Len(t, got, 3)
	for i, m := range got {
		assert.Equal(t, image.Rect(0, 0, 16, 8), m.Bounds())
		r, _, _, _ := m.At(8, 4).RGBA()
		if i == 1 {
			assert.Less(t, r>>8, uint32(8))
		} else {
			assert.Greater(t, r>>8, uint32(247))
		}
	}
}

func TestAVIUncompressed(t *testing.T) {
	// 3x2 bottom-up BGR, rows padded to 12 bytes
	raw := []byte{
		0, 0, 255, 0, 0, 255, 0, 0, 255, 0, 0, 0, // bottom row, red
		255, 0, 0, 255, 0, 0, 255, 0, 0, 0, 0, 0, // top row, blue
	}

	a, err := newAVI(bytes.NewReader(aviFile(t, 3, 2, le32(biRGB), 24, raw)), "raw.avi")
	require.NoError(t, err)

	got := readAll(t, a)
	require.Len(t, got, 1)
	assert.Equal(t, color.Color(color.RGBA{0, 0, 255, 255}), got[0].At(0, 0))
	assert.Equal(t, color.Color(color.RGBA{255, 0, 0, 255}), got[0].At(2, 1))
}

func TestAVIErrors(t *testing.T) {
	_, err := newAVI(bytes.NewReader([]byte("RIFF\x00\x00\x00\x00WAVE")), "x.avi")
	assert.Equal(t, errNotAVI, err)

	_, err = newAVI(bytes.NewReader(aviFile(t, 4, 4, []byte("XVID"), 24, []byte{1})), "x.avi")
	assert.ErrorIs(t, err, errCodec)

	_, err = newAVI(bytes.NewReader(aviFile(t, 0, 4, []byte("MJPG"), 24, []byte{1})), "x.avi")
	assert.ErrorIs(t, err, errNotAVI)
}

func TestAVIFrameCount(t *testing.T) {
	raw := make([]byte, 3*4*2)

	// The avih frame count is advisory, movi is always read to the end
	b := aviFile(t, 4, 2, le32(biRGB), 24, raw, raw)
	avih := bytes.Index(b, []byte("avih")) + 8
	binary.LittleEndian.PutUint32(b[avih+16:], 0)

	a, err := newAVI(bytes.NewReader(b), "x.avi")
	require.NoError(t, err)
	assert.Len(t, readAll(t, a), 2)

	// No frames at all is an empty source, not a malformed file
	a, err = newAVI(bytes.NewReader(aviFile(t, 4, 2, le32(biRGB), 24)), "x.avi")
	require.NoError(t, err)
	_, err = a.Next()
	assert.Equal(t, io.EOF, err)
}

func TestRawReader(t *testing.T) {
	stream := []byte{
		255, 0, 0, 0, 255, 0, // frame 1
		0, 0, 255, 1, 2, 3, // frame 2
		9, 9, // truncated
	}

	rr := newRawReader(bytes.NewReader(stream), 2, 1)

	m, err := rr.Next()
	require.NoError(t, err)
	assert.Equal(t, color.Color(color.RGBA{255, 0, 0, 255}), m.At(0, 0))
	assert.Equal(t, color.Color(color.RGBA{0, 255, 0, 255}), m.At(1, 0))

	m, err = rr.Next()
	require.NoError(t, err)
	assert.Equal(t, color.Color(color.RGBA{1, 2, 3, 255}), m.At(1, 0))

	_, err = rr.Next()
	assert.Equal(t, errShortFrame, err)

	rr = newRawReader(bytes.NewReader(stream[:6]), 2, 1)
	_, err = rr.Next()
	require.NoError(t, err)
	_, err = rr.Next()
	assert.Equal(t, io.EOF, err)
}

func TestParseProbe(t *testing.T) {
	w, h, err := parseProbe([]byte(`{"programs": [], "streams": [{"width": 1280, "height": 720}]}`))
	require.NoError(t, err)
	assert.Equal(t, 1280, w)
	assert.Equal(t, 720, h)

	_, _, err = parseProbe([]byte(`{"streams": []}`))
	assert.Equal(t, errNoStream, err)

	_, _, err = parseProbe([]byte(`{"streams": [{"width": 0, "height": 720}]}`))
	assert.Error(t, err)

	_, _, err = parseProbe([]byte(`nope`))
	assert.Error(t, err)
}

func TestFFmpeg(t *testing.T) {
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not available", bin)
		}
	}

	file := filepath.Join(t.TempDir(), "testsrc.mp4")
	cmd := exec.Command("ffmpeg", "-v", "error", "-f", "lavfi", "-i", "testsrc=size=64x48:rate=10", "-frames:v", "5", "-pix_fmt", "yuv420p", file)
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Skipf("unable to generate test video: %s", output)
	}

	s, err := Open(context.Background(), file, nil)
	require.NoError(t, err)
	defer s.Close()

	assert.True(t, s.Video())

	frames := readAll(t, s)
	assert.Len(t, frames, 5)
	for _, m := range frames {
		assert.Equal(t, image.Rect(0, 0, 64, 48), m.Bounds())
	}
}

func TestFFmpegMissingBinary(t *testing.T) {
	file := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(file, nil, 0644))

	_, err := Open(context.Background(), file, &Options{FFmpeg: filepath.Join(t.TempDir(), "no-ffmpeg")})
	assert.ErrorIs(t, err, ErrOpen)
}
