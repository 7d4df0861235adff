package source

import (
	"image"
	"io"
	"os"
	"path/filepath"
)

type still struct {
	name  string
	image image.Image
}

func openStill(path string) (*still, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, openError(path, err)
	}
	defer f.Close()

	m, _, err := image.Decode(f)
	if err != nil {
		return nil, openError(path, err)
	}

	return &still{
		name:  filepath.Base(path),
		image: m,
	}, nil
}

func (s *still) Next() (image.Image, error) {
	if s.image == nil {
		return nil, io.EOF
	}
	m := s.image
	s.image = nil
	return m, nil
}

func (s *still) Name() string {
	return s.name
}

func (s *still) Video() bool {
	return false
}

func (s *still) Close() error {
	s.image = nil
	return nil
}
