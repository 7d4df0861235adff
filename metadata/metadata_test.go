package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalText(t *testing.T) {
	i := Info{Kind: Video, Name: "amog.mp4", Frames: 10, Width: 128, Height: 160}

	b, err := i.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "Video: amog.mp4\nFrames: 10\nWidth: 128\nHeight: 160\nFormat: RGB332 (RRRGGGBB)\n", string(b))
	assert.Equal(t, 128*160, i.FrameSize())

	_, err = (&Info{Name: "x"}).MarshalText()
	assert.Error(t, err)
}

func TestMarshalTextControlCharacters(t *testing.T) {
	for _, name := range []string{"a\nFrames: 99.mp4", "a\rb.gif", "tab\there.png", "\x00"} {
		_, err := (&Info{Kind: Video, Name: name, Frames: 1, Width: 1, Height: 1}).MarshalText()
		assert.ErrorIs(t, err, ErrFormat, "name=%q", name)
	}

	// Spaces and non-ASCII are fine
	b, err := (&Info{Kind: Image, Name: "café logo.png", Frames: 1, Width: 1, Height: 1}).MarshalText()
	require.NoError(t, err)

	var i Info
	require.NoError(t, i.UnmarshalText(b))
	assert.Equal(t, "café logo.png", i.Name)
}

func TestUnmarshalText(t *testing.T) {
	for _, kind := range []Kind{Video, Image} {
		in := Info{Kind: kind, Name: "kar.jpeg", Frames: 1, Width: 160, Height: 128}
		b, err := in.MarshalText()
		require.NoError(t, err)

		var out Info
		require.NoError(t, out.UnmarshalText(b))
		assert.Equal(t, in, out)
	}
}

func TestUnmarshalTextCRLF(t *testing.T) {
	var i Info
	require.NoError(t, i.UnmarshalText([]byte("Video: a b.gif\r\nFrames: 2\r\nWidth: 4\r\nHeight: 3\r\nFormat: RGB332 (RRRGGGBB)\r\n")))
	assert.Equal(t, Info{Kind: Video, Name: "a b.gif", Frames: 2, Width: 4, Height: 3}, i)
}

func TestUnmarshalTextErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"short", "Video: x\nFrames: 1\n"},
		{"bad kind", "Clip: x\nFrames: 1\nWidth: 1\nHeight: 1\nFormat: RGB332 (RRRGGGBB)\n"},
		{"bad frames", "Video: x\nFrames: many\nWidth: 1\nHeight: 1\nFormat: RGB332 (RRRGGGBB)\n"},
		{"negative width", "Video: x\nFrames: 1\nWidth: -1\nHeight: 1\nFormat: RGB332 (RRRGGGBB)\n"},
		{"order", "Video: x\nWidth: 1\nFrames: 1\nHeight: 1\nFormat: RGB332 (RRRGGGBB)\n"},
		{"format", "Video: x\nFrames: 1\nWidth: 1\nHeight: 1\nFormat: RGB565\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var i Info
			assert.ErrorIs(t, i.UnmarshalText([]byte(tt.text)), ErrFormat)
		})
	}
}
