package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
)

var (
	errNoStream   = errors.New("source: no video streams found")
	errShortFrame = errors.New("source: truncated raw frame")
)

type probeOutput struct {
	Streams []struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"streams"`
}

func parseProbe(b []byte) (int, int, error) {
	var p probeOutput
	if err := json.Unmarshal(b, &p); err != nil {
		return 0, 0, fmt.Errorf("error parsing ffprobe output: %w", err)
	}
	if len(p.Streams) == 0 {
		return 0, 0, errNoStream
	}
	if p.Streams[0].Width <= 0 || p.Streams[0].Height <= 0 {
		return 0, 0, fmt.Errorf("invalid stream dimensions %dx%d", p.Streams[0].Width, p.Streams[0].Height)
	}
	return p.Streams[0].Width, p.Streams[0].Height, nil
}

// probe returns the dimensions of the first video stream.
func probe(ctx context.Context, ffprobe, path string) (int, int, error) {
	args := []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "json",
		path,
	}

	output, err := exec.CommandContext(ctx, ffprobe, args...).Output()
	if err != nil {
		return 0, 0, fmt.Errorf("ffprobe error: %w", err)
	}

	return parseProbe(output)
}

// rawReader splits a stream of packed 24-bit RGB pixels into frames.
type rawReader struct {
	r      io.Reader
	width  int
	height int
	buf    []byte
}

func newRawReader(r io.Reader, width, height int) *rawReader {
	return &rawReader{
		r:      r,
		width:  width,
		height: height,
		buf:    make([]byte, width*height*3),
	}
}

func (rr *rawReader) Next() (image.Image, error) {
	if _, err := io.ReadFull(rr.r, rr.buf); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, errShortFrame
		}
		return nil, err
	}

	m := image.NewRGBA(image.Rect(0, 0, rr.width, rr.height))
	for i, j := 0, 0; i < len(rr.buf); i, j = i+3, j+4 {
		m.Pix[j+0] = rr.buf[i+0]
		m.Pix[j+1] = rr.buf[i+1]
		m.Pix[j+2] = rr.buf[i+2]
		m.Pix[j+3] = 0xff
	}

	return m, nil
}

type ffmpeg struct {
	*rawReader
	name   string
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr bytes.Buffer
	done   bool
}

func openFFmpeg(ctx context.Context, path string, o *Options) (*ffmpeg, error) {
	bin, probeBin := o.FFmpeg, o.FFprobe
	if bin == "" {
		bin = "ffmpeg"
	}
	if probeBin == "" {
		probeBin = "ffprobe"
	}

	if _, err := exec.LookPath(bin); err != nil {
		return nil, openError(path, fmt.Errorf("ffmpeg not found in $PATH: %w", err))
	}

	width, height, err := probe(ctx, probeBin, path)
	if err != nil {
		return nil, openError(path, err)
	}

	args := []string{
		"-v", "error",
		// Keep the frames the same shape ffprobe reported
		"-noautorotate",
		"-i", path,
		"-an",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"pipe:1",
	}

	f := &ffmpeg{
		name: filepath.Base(path),
		cmd:  exec.CommandContext(ctx, bin, args...),
	}
	f.cmd.Stderr = &f.stderr

	if f.stdout, err = f.cmd.StdoutPipe(); err != nil {
		return nil, openError(path, err)
	}

	if err := f.cmd.Start(); err != nil {
		return nil, openError(path, fmt.Errorf("failed to start ffmpeg: %w", err))
	}

	f.rawReader = newRawReader(f.stdout, width, height)

	return f, nil
}

func (f *ffmpeg) Next() (image.Image, error) {
	m, err := f.rawReader.Next()
	if err != io.EOF {
		return m, err
	}

	// Clean end of stream, make sure ffmpeg agrees
	f.done = true
	if err := f.cmd.Wait(); err != nil {
		return nil, fmt.Errorf("ffmpeg error: %w - stderr: %s", err, strings.TrimSpace(f.stderr.String()))
	}

	return nil, io.EOF
}

func (f *ffmpeg) Name() string {
	return f.name
}

func (f *ffmpeg) Video() bool {
	return true
}

func (f *ffmpeg) Close() error {
	if f.done {
		return nil
	}
	f.done = true

	_ = f.stdout.Close()
	if f.cmd.Process != nil {
		_ = f.cmd.Process.Kill()
	}
	// The process was killed so the exit status means nothing
	_ = f.cmd.Wait()

	return nil
}
