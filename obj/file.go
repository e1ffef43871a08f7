package obj

import (
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
)

// formatVersion is bumped whenever the encoded layout changes.
const formatVersion = 1

var magic = []byte{0xec, 0x0b, 0x1e, 0x57}

// ErrFormat is returned when reading data that is not an object file.
var ErrFormat = errors.New("unrecognized object file format")

// WriteTo writes the object to w: a gzip stream whose header carries the
// magic number and format version, wrapping the gob encoding.
func (o *Object) WriteTo(w io.Writer) (int64, error) {
	cw := &countWriter{w: w}

	gw := gzip.NewWriter(cw)
	gw.Header.Comment = "esocc object"
	gw.Header.Extra = append(append([]byte(nil), magic...), strconv.Itoa(formatVersion)...)
	gw.Header.OS = 255

	if err := gob.NewEncoder(gw).Encode(o); err != nil {
		return cw.n, err
	}

	if err := gw.Close(); err != nil {
		return cw.n, err
	}

	return cw.n, nil
}

// ReadFrom replaces o with the object read from r.
func (o *Object) ReadFrom(r io.Reader) (int64, error) {
	cr := &countReader{r: r}

	gr, err := gzip.NewReader(cr)
	if err != nil {
		return cr.n, fmt.Errorf("%w: %s", ErrFormat, err)
	}

	extra := gr.Header.Extra
	if len(extra) < len(magic) || !bytes.Equal(extra[:len(magic)], magic) {
		return cr.n, ErrFormat
	}

	v, err := strconv.Atoi(string(extra[len(magic):]))
	if err != nil || v != formatVersion {
		return cr.n, fmt.Errorf("unsupported object file version %q", extra[len(magic):])
	}

	*o = Object{}
	if err := gob.NewDecoder(gr).Decode(o); err != nil {
		return cr.n, fmt.Errorf("decoding object: %w", err)
	}

	for k, sec := range o.Sections {
		if sec == nil {
			o.Sections[k] = &Section{Kind: SectionKind(k), Align: 1}
		}
	}

	return cr.n, nil
}

// WriteFile writes the object to a file.
func (o *Object) WriteFile(path string) error {
	var buf bytes.Buffer
	if _, err := o.WriteTo(&buf); err != nil {
		return err
	}

	return os.WriteFile(path, buf.Bytes(), 0644)
}

// ReadFile reads an object from a file.
func ReadFile(path string) (*Object, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	o := &Object{}
	if _, err := o.ReadFrom(f); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	return o, nil
}

// -----------------------------------------------------------------------------

type countWriter struct {
	w io.Writer
	n int64
}

func (cw *countWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

type countReader struct {
	r io.Reader
	n int64
}

func (cr *countReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	cr.n += int64(n)
	return n, err
}
