// Package source opens disk images for reading. Plain files and block
// devices go through the go-diskfs file backend; compressed images are
// inflated into memory first.
package source

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/diskfs/go-diskfs/backend"
	befile "github.com/diskfs/go-diskfs/backend/file"

	"diskinspect/internal/compress"
	"diskinspect/internal/logger"
)

// MaxInflated bounds how much a compressed image may expand to in memory.
const MaxInflated int64 = 4 << 30

// Source is a read-only image: random access plus a known size. It also
// satisfies backend.File so go-diskfs parsers can read it.
type Source struct {
	name   string
	codec  string
	size   int64
	mtime  time.Time
	r      io.ReaderAt
	sr     *io.SectionReader
	closer io.Closer
}

var _ backend.File = (*Source)(nil)

// Open opens path. compression is a codec name, "auto" to sniff, or "none".
func Open(path, compression string) (*Source, error) {
	name := compress.Normalize(compression)
	if name == compress.Auto {
		kind, err := sniff(path)
		if err != nil {
			return nil, err
		}
		name = kind
	}
	if name == compress.None {
		return openRaw(path)
	}
	return openCompressed(path, name)
}

func sniff(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	head := make([]byte, 8)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("sniff %s: %w", path, err)
	}
	return compress.Detect(head[:n]), nil
}

func openRaw(path string) (*Source, error) {
	st, err := befile.OpenFromPath(path, true)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	size, mtime, err := storageSize(st)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	s := newSource(filepath.Base(path), compress.None, st, size)
	s.mtime = mtime
	s.closer = st
	return s, nil
}

// storageSize asks the OS for the real size; Stat on a block device reports 0.
func storageSize(st backend.Storage) (int64, time.Time, error) {
	fi, err := st.Stat()
	if err != nil {
		return 0, time.Time{}, err
	}
	if fi.Mode().IsRegular() {
		return fi.Size(), fi.ModTime(), nil
	}
	osf, err := st.Sys()
	if err != nil {
		return 0, fi.ModTime(), err
	}
	end, err := osf.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fi.ModTime(), err
	}
	if _, err := osf.Seek(0, io.SeekStart); err != nil {
		return 0, fi.ModTime(), err
	}
	return end, fi.ModTime(), nil
}

func openCompressed(path, codec string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rc, kind, err := compress.NewReader(f, codec)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, MaxInflated+1))
	if err != nil {
		return nil, fmt.Errorf("inflate %s: %w", path, err)
	}
	if int64(len(data)) > MaxInflated {
		return nil, fmt.Errorf("inflate %s: image larger than %d bytes", path, MaxInflated)
	}
	logger.DiskInspectLogger.Info("inflated image", "path", path, "codec", kind, "size", len(data))

	s := OpenBytes(filepath.Base(path), data)
	s.codec = kind
	if fi, err := f.Stat(); err == nil {
		s.mtime = fi.ModTime()
	}
	return s, nil
}

// OpenReader wraps an already open reader of known size.
func OpenReader(name string, r io.ReaderAt, size int64) *Source {
	return newSource(name, compress.None, r, size)
}

// OpenBytes serves an in-memory image.
func OpenBytes(name string, data []byte) *Source {
	return newSource(name, compress.None, bytes.NewReader(data), int64(len(data)))
}

func newSource(name, codec string, r io.ReaderAt, size int64) *Source {
	return &Source{
		name:  name,
		codec: codec,
		size:  size,
		r:     r,
		sr:    io.NewSectionReader(r, 0, size),
	}
}

func (s *Source) Name() string { return s.name }

func (s *Source) Size() int64 { return s.size }

// Codec is the compression the image was stored with, "none" for raw.
func (s *Source) Codec() string { return s.codec }

func (s *Source) ReadAt(p []byte, off int64) (int, error) {
	if off >= s.size {
		return 0, io.EOF
	}
	if rest := s.size - off; int64(len(p)) > rest {
		n, err := s.r.ReadAt(p[:rest], off)
		if err == nil {
			err = io.EOF
		}
		return n, err
	}
	return s.r.ReadAt(p, off)
}

func (s *Source) Read(p []byte) (int, error) { return s.sr.Read(p) }

func (s *Source) Seek(offset int64, whence int) (int64, error) {
	return s.sr.Seek(offset, whence)
}

func (s *Source) Stat() (fs.FileInfo, error) {
	return fileInfo{name: s.name, size: s.size, mtime: s.mtime}, nil
}

func (s *Source) Close() error {
	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	s.closer = nil
	return err
}

type fileInfo struct {
	name  string
	size  int64
	mtime time.Time
}

func (fi fileInfo) Name() string       { return fi.name }
func (fi fileInfo) Size() int64        { return fi.size }
func (fi fileInfo) Mode() fs.FileMode  { return 0o444 }
func (fi fileInfo) ModTime() time.Time { return fi.mtime }
func (fi fileInfo) IsDir() bool        { return false }
func (fi fileInfo) Sys() any           { return nil }
