/*
Package header implements an encoder that renders a sequence of RGB332 frames
as a C header ready to be included in a firmware build.

All frames are stacked into a single const uint8_t array, with macros giving
the frame dimensions, the frame count and the size of each frame, plus a
helper macro returning a pointer to the start of frame n.
*/
package header

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	rgbimage "github.com/bodgit/rgb332/image"
)

const (
	indent = "    "

	// Values per line when the header holds more than one frame
	VideoColumns = 12
	// Values per line when the header holds a single frame
	ImageColumns = 16
)

// DefaultIncludes lists the headers included when Options.Includes is nil.
var DefaultIncludes = []string{"Arduino.h"}

// ErrName is returned when a name cannot be turned into a C identifier.
var ErrName = errors.New("header: invalid name")

// Options controls the layout of the generated header.
type Options struct {
	// Source is mentioned in the leading comment
	Source string
	// Columns is the number of values per line, zero picks a default
	// based on the number of frames
	Columns int
	// Includes are rendered as #include <...>, nil means DefaultIncludes
	Includes []string
}

// Identifier turns name into a valid C identifier.
func Identifier(name string) (string, error) {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	id := b.String()
	if strings.Trim(id, "_") == "" {
		return "", fmt.Errorf("%w: %q", ErrName, name)
	}
	if id[0] >= '0' && id[0] <= '9' {
		id = "_" + id
	}

	return id, nil
}

type encoder struct {
	w   *bufio.Writer
	err error
}

func (e *encoder) printf(format string, a ...interface{}) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, a...)
}

func (e *encoder) values(b []byte, columns int) {
	for i := 0; i < len(b); i += columns {
		end := i + columns
		if end > len(b) {
			end = len(b)
		}

		e.printf("%s", indent)
		for j, v := range b[i:end] {
			if j > 0 {
				e.printf(", ")
			}
			e.printf("0x%02X", v)
		}
		if end < len(b) {
			e.printf(",")
		}
		e.printf("\n")
	}
}

// Encode writes seq to w as a C header. The array is called name, after
// conversion to a valid identifier, and the macros use the upper case form.
func Encode(w io.Writer, name string, seq *rgbimage.Sequence, o *Options) error {
	if o == nil {
		o = &Options{}
	}

	id, err := Identifier(name)
	if err != nil {
		return err
	}
	macro := strings.ToUpper(id)

	columns := o.Columns
	if columns <= 0 {
		columns = VideoColumns
		if seq.Len() == 1 {
			columns = ImageColumns
		}
	}

	includes := o.Includes
	if includes == nil {
		includes = DefaultIncludes
	}

	source := o.Source
	if source == "" {
		source = name
	}

	e := encoder{w: bufio.NewWriter(w)}

	e.printf("// Auto-generated RGB332 data for %s\n", source)
	e.printf("// Contains %d frames of %dx%d pixels\n\n", seq.Len(), seq.Width, seq.Height)

	e.printf("#ifndef _%s_H_\n", macro)
	e.printf("#define _%s_H_\n\n", macro)

	for _, inc := range includes {
		e.printf("#include <%s>\n", inc)
	}
	if len(includes) > 0 {
		e.printf("\n")
	}

	e.printf("#define %s_WIDTH %d\n", macro, seq.Width)
	e.printf("#define %s_HEIGHT %d\n", macro, seq.Height)
	e.printf("#define %s_FRAMES %d\n", macro, seq.Len())
	e.printf("#define %s_FRAME_SIZE (%d*%d)\n\n", macro, seq.Width, seq.Height)

	e.printf("const uint8_t %s[] = {\n", id)
	// Lines run across frame boundaries
	e.values(seq.Bytes(), columns)
	e.printf("};\n\n")

	e.printf("// Helper macro to access a specific frame\n")
	e.printf("#define %s_FRAME(n) (&%s[(n) * %s_FRAME_SIZE])\n\n", macro, id, macro)

	e.printf("#endif\n")

	if e.err != nil {
		return e.err
	}

	return e.w.Flush()
}

// EncodeDump writes every packed value of seq to w in decimal, one per line.
func EncodeDump(w io.Writer, seq *rgbimage.Sequence) error {
	e := encoder{w: bufio.NewWriter(w)}
	for _, f := range seq.Frames {
		for _, v := range f.Bytes() {
			e.printf("%d\n", v)
		}
	}

	if e.err != nil {
		return e.err
	}

	return e.w.Flush()
}
