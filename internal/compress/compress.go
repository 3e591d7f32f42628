// Package compress wraps the codecs images and sessions may be stored with.
//
// Names: none|auto|gzip|gz|zstd|zst|lz4|lzma|bzip2|bz2|xz
package compress

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"

	"diskinspect/internal/common"
)

const (
	None  = "none"
	Auto  = "auto"
	Gzip  = "gzip"
	Zstd  = "zstd"
	LZ4   = "lz4"
	XZ    = "xz"
	LZMA  = "lzma"
	Bzip2 = "bzip2"
)

type codec struct {
	magic  []byte
	reader func(io.Reader) (io.ReadCloser, error)
	writer func(io.Writer) (io.WriteCloser, error)
}

var codecs = map[string]codec{
	Gzip: {
		magic: []byte{0x1f, 0x8b},
		reader: func(r io.Reader) (io.ReadCloser, error) {
			return gzip.NewReader(r)
		},
		writer: func(w io.Writer) (io.WriteCloser, error) {
			return gzip.NewWriterLevel(w, gzip.DefaultCompression)
		},
	},
	Zstd: {
		magic: []byte{0x28, 0xb5, 0x2f, 0xfd},
		reader: func(r io.Reader) (io.ReadCloser, error) {
			d, err := zstd.NewReader(r)
			if err != nil {
				return nil, err
			}
			return d.IOReadCloser(), nil
		},
		writer: func(w io.Writer) (io.WriteCloser, error) {
			return zstd.NewWriter(w)
		},
	},
	LZ4: {
		magic: []byte{0x04, 0x22, 0x4d, 0x18},
		reader: func(r io.Reader) (io.ReadCloser, error) {
			return io.NopCloser(lz4.NewReader(r)), nil
		},
		writer: func(w io.Writer) (io.WriteCloser, error) {
			return lz4.NewWriter(w), nil
		},
	},
	XZ: {
		magic: []byte{0xfd, '7', 'z', 'X', 'Z', 0x00},
		reader: func(r io.Reader) (io.ReadCloser, error) {
			xr, err := xz.NewReader(r)
			if err != nil {
				return nil, err
			}
			return io.NopCloser(xr), nil
		},
		writer: func(w io.Writer) (io.WriteCloser, error) {
			return xz.NewWriter(w)
		},
	},
	// lzma "alone" streams carry no reliable magic
	LZMA: {
		reader: func(r io.Reader) (io.ReadCloser, error) {
			lr, err := lzma.NewReader(r)
			if err != nil {
				return nil, err
			}
			return io.NopCloser(lr), nil
		},
		writer: func(w io.Writer) (io.WriteCloser, error) {
			return lzma.NewWriter(w)
		},
	},
	Bzip2: {
		magic: []byte{'B', 'Z', 'h'},
		reader: func(r io.Reader) (io.ReadCloser, error) {
			return bzip2.NewReader(r, &bzip2.ReaderConfig{})
		},
		writer: func(w io.Writer) (io.WriteCloser, error) {
			return bzip2.NewWriter(w, &bzip2.WriterConfig{})
		},
	},
}

// Normalize maps aliases to canonical codec names. Unknown names come back
// lower-cased so the caller's error names what was asked for.
func Normalize(name string) string {
	switch n := strings.ToLower(strings.TrimSpace(name)); n {
	case "", Auto:
		return Auto
	case None, "raw":
		return None
	case "gz":
		return Gzip
	case "zst":
		return Zstd
	case "bz2":
		return Bzip2
	default:
		return n
	}
}

// Names lists the concrete codecs in stable order.
func Names() []string {
	out := make([]string, 0, len(codecs))
	for n := range codecs {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Detect sniffs a codec from leading magic bytes, "none" when nothing matches.
func Detect(data []byte) string {
	for _, n := range Names() {
		m := codecs[n].magic
		if len(m) > 0 && bytes.HasPrefix(data, m) {
			return n
		}
	}
	return None
}

func lookup(name string) (codec, error) {
	c, ok := codecs[name]
	if !ok {
		return codec{}, fmt.Errorf("compression %q: %w", name, common.ErrUnsupported)
	}
	return c, nil
}

// NewReader returns a decompressing reader. With "auto" the stream is
// sniffed first; the detected codec name is returned either way.
func NewReader(r io.Reader, name string) (io.ReadCloser, string, error) {
	name = Normalize(name)
	if name == Auto {
		br := bufio.NewReader(r)
		head, _ := br.Peek(8)
		name = Detect(head)
		r = br
	}
	if name == None {
		return io.NopCloser(r), None, nil
	}
	c, err := lookup(name)
	if err != nil {
		return nil, name, err
	}
	rc, err := c.reader(r)
	if err != nil {
		return nil, name, fmt.Errorf("%s reader: %w", name, err)
	}
	return rc, name, nil
}

// NewWriter returns a compressing writer; "none" and "auto" pass through.
func NewWriter(w io.Writer, name string) (io.WriteCloser, error) {
	name = Normalize(name)
	if name == None || name == Auto {
		return nopWriteCloser{w}, nil
	}
	c, err := lookup(name)
	if err != nil {
		return nil, err
	}
	return c.writer(w)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func DecompressAuto(in []byte) ([]byte, string, error) {
	return decompress(in, Auto)
}

func Decompress(in []byte, name string) ([]byte, error) {
	out, _, err := decompress(in, name)
	return out, err
}

func decompress(in []byte, name string) ([]byte, string, error) {
	rc, kind, err := NewReader(bytes.NewReader(in), name)
	if err != nil {
		return nil, kind, err
	}
	defer rc.Close()
	if kind == None {
		return in, kind, nil
	}
	out, err := io.ReadAll(rc)
	if err != nil {
		return nil, kind, fmt.Errorf("%s decompress: %w", kind, err)
	}
	return out, kind, nil
}

func Compress(in []byte, name string) ([]byte, error) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, name)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(in); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
