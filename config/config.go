/*
Package config loads conversion profiles from TOML files.

A profile only needs to set the values that differ from the defaults:

	max_frames = 30

	[display]
	width = 240
	height = 240
	rotate = 1

	[header]
	includes = ["Arduino.h", "pgmspace.h"]
*/
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// DefaultPath is the profile read when no other path is given.
const DefaultPath = "rgb332.toml"

// Display describes the target panel.
type Display struct {
	// Width and Height of the panel, zero keeps the source size
	Width  int `toml:"width"`
	Height int `toml:"height"`
	// Rotate is the number of quarter turns applied after resizing
	Rotate int `toml:"rotate"`
}

// Header configures the C header emitter.
type Header struct {
	Columns  int      `toml:"columns"`
	Includes []string `toml:"includes"`
}

// Decoder names the external video decoder binaries.
type Decoder struct {
	FFmpeg  string `toml:"ffmpeg"`
	FFprobe string `toml:"ffprobe"`
}

// Config is a conversion profile.
type Config struct {
	MaxFrames int     `toml:"max_frames"`
	Database  string  `toml:"database"`
	Display   Display `toml:"display"`
	Header    Header  `toml:"header"`
	Decoder   Decoder `toml:"decoder"`
}

// Default returns the profile used when nothing else is configured.
func Default() Config {
	return Config{
		Display: Display{
			Width:  128,
			Height: 160,
		},
	}
}

// Validate checks the profile for values that can never work.
func (c Config) Validate() error {
	switch {
	case c.Display.Width < 0 || c.Display.Height < 0:
		return fmt.Errorf("config: invalid display size %dx%d", c.Display.Width, c.Display.Height)
	case (c.Display.Width == 0) != (c.Display.Height == 0):
		return errors.New("config: display width and height must both be set or both be zero")
	case c.MaxFrames < 0:
		return fmt.Errorf("config: invalid max_frames %d", c.MaxFrames)
	case c.Header.Columns < 0:
		return fmt.Errorf("config: invalid header columns %d", c.Header.Columns)
	}
	return nil
}

// Parse decodes a profile over the defaults. Unknown keys are an error so
// typos don't silently fall back to a default.
func Parse(b []byte) (Config, error) {
	c := Default()

	d := toml.NewDecoder(bytes.NewReader(b))
	d.DisallowUnknownFields()
	if err := d.Decode(&c); err != nil {
		return c, fmt.Errorf("config: %w", err)
	}

	return c, c.Validate()
}

// Load reads the profile at file. An empty file means DefaultPath, which is
// allowed to not exist; any other path must exist.
func Load(file string) (Config, error) {
	explicit := file != ""
	if !explicit {
		file = DefaultPath
	}

	b, err := os.ReadFile(file)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return Default(), fmt.Errorf("config: %w", err)
	}

	return Parse(b)
}
