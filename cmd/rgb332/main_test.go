package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/bodgit/rgb332/config"
)

const testProfile = `max_frames = 30
database = "profile.db"

[display]
width = 240
height = 240
rotate = 1
`

func writeProfile(t *testing.T, text string) string {
	t.Helper()

	file := filepath.Join(t.TempDir(), "panel.toml")
	require.NoError(t, os.WriteFile(file, []byte(text), 0644))

	return file
}

func unsetenv(t *testing.T, key string) {
	t.Helper()

	// Setenv restores the original value when the test finishes
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

// runProfile parses args with the real global flags and returns what
// profile makes of them.
func runProfile(t *testing.T, args ...string) (config.Config, error) {
	t.Helper()

	var (
		cfg config.Config
		err error
	)

	app := cli.NewApp()
	app.Name = "rgb332"
	app.Flags = globalFlags("/work")
	app.Writer = io.Discard
	app.ErrWriter = io.Discard
	app.Action = func(c *cli.Context) error {
		cfg, err = profile(c)
		return nil
	}

	require.NoError(t, app.Run(append([]string{"rgb332"}, args...)))

	return cfg, err
}

func TestProfile(t *testing.T) {
	file := writeProfile(t, testProfile)

	tests := []struct {
		name string
		env  string
		args []string
		want config.Config
	}{
		{
			name: "profile only",
			args: []string{"--config", file},
			want: config.Config{
				MaxFrames: 30,
				Database:  "profile.db",
				Display:   config.Display{Width: 240, Height: 240, Rotate: 1},
			},
		},
		{
			name: "flags win",
			args: []string{"--config", file, "--width", "320", "--rotate", "3", "--max-frames", "5"},
			want: config.Config{
				MaxFrames: 5,
				Database:  "profile.db",
				Display:   config.Display{Width: 320, Height: 240, Rotate: 3},
			},
		},
		{
			name: "database flag",
			args: []string{"--config", file, "--db", "flag.db"},
			want: config.Config{
				MaxFrames: 30,
				Database:  "flag.db",
				Display:   config.Display{Width: 240, Height: 240, Rotate: 1},
			},
		},
		{
			name: "database environment",
			env:  "env.db",
			args: []string{"--config", file},
			want: config.Config{
				MaxFrames: 30,
				Database:  "env.db",
				Display:   config.Display{Width: 240, Height: 240, Rotate: 1},
			},
		},
		{
			name: "empty profile",
			args: []string{"--config", writeProfile(t, "# nothing\n")},
			want: config.Config{
				Database: filepath.Join("/work", defaultDB),
				Display:  config.Display{Width: 128, Height: 160},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.env != "" {
				t.Setenv("RGB332_DB", tt.env)
			} else {
				unsetenv(t, "RGB332_DB")
			}

			cfg, err := runProfile(t, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg)
		})
	}
}

func TestProfileInvalid(t *testing.T) {
	unsetenv(t, "RGB332_DB")

	file := writeProfile(t, testProfile)

	tests := []struct {
		name string
		args []string
	}{
		{"width only", []string{"--config", file, "--width", "0"}},
		{"height only", []string{"--config", file, "--height", "0"}},
		{"negative max frames", []string{"--config", file, "--max-frames", "-1"}},
		{"bad profile", []string{"--config", writeProfile(t, "[display]\ndepth = 8\n")}},
		{"missing profile", []string{"--config", filepath.Join(t.TempDir(), "missing.toml")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runProfile(t, tt.args...)
			assert.Error(t, err)
		})
	}

	// Both dimensions at zero keeps the source size
	cfg, err := runProfile(t, "--config", file, "--width", "0", "--height", "0")
	require.NoError(t, err)
	assert.Equal(t, config.Display{Rotate: 1}, cfg.Display)
}
