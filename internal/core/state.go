package core

import (
	"context"
	"errors"
	"fmt"
	"io"

	"diskinspect/internal/disasm"
	"diskinspect/internal/image/partition"
	"diskinspect/internal/logger"
	"diskinspect/internal/report"
	"diskinspect/internal/source"
)

var ErrNoImage = errors.New("no image loaded")

// State is the currently inspected image and what has been decoded from it.
// An image restored from a session has Layout but no Source.
type State struct {
	Source *source.Source
	Image  string
	Codec  string
	Offset int64

	Opt     partition.Options
	Layout  *partition.Layout
	Listing *disasm.Listing

	// reads made by the last Scan, kept for sessions
	regions []Region
	reader  io.ReaderAt
	size    int64
}

func New() *State {
	return &State{}
}

func (s *State) Info() string {
	if s.Layout == nil {
		return "Image: none"
	}
	origin := "image"
	if s.Source == nil {
		origin = "session"
	}
	return fmt.Sprintf("Image: %s (%s)  Scheme: %s  Entries: %d",
		s.Image, origin, s.Layout.Scheme, s.entryCount())
}

func (s *State) entryCount() int {
	l := s.Layout
	if l.Scheme == partition.SchemeGPT {
		return len(l.Entries)
	}
	n := len(l.Logical)
	if l.MBR != nil {
		for _, e := range l.MBR.Entries {
			if !e.IsEmpty() {
				n++
			}
		}
	}
	return n
}

// Load opens path and drops whatever was decoded before. offset skips a
// prefix so a disk embedded in a larger file can be inspected.
func (s *State) Load(path, compression string, offset int64) error {
	src, err := source.Open(path, compression)
	if err != nil {
		return err
	}
	if offset < 0 || (src.Size() > 0 && offset >= src.Size()) {
		src.Close()
		return fmt.Errorf("offset %d outside image of %d bytes", offset, src.Size())
	}
	s.Close()
	s.Source = src
	s.Image = path
	s.Codec = src.Codec()
	s.Offset = offset
	s.size = src.Size() - offset
	s.reader = io.NewSectionReader(src, offset, s.size)
	s.Layout, s.Listing, s.regions = nil, nil, nil
	logger.DiskInspectLogger.Info("image loaded", "path", path, "codec", s.Codec, "size", src.Size(), "offset", offset)
	return nil
}

// Detect probes the loaded image for a partition table without a full scan.
func (s *State) Detect() (partition.Scheme, error) {
	if s.reader == nil {
		return partition.SchemeNone, ErrNoImage
	}
	return partition.DetectScheme(s.reader)
}

// Scan decodes the partition structures, recording every read for SaveSession.
func (s *State) Scan(ctx context.Context, opt partition.Options) error {
	if s.reader == nil {
		return ErrNoImage
	}
	rec := &recorder{r: s.reader}
	l, err := partition.Scan(ctx, rec, s.size, opt)
	if err != nil {
		return err
	}
	s.Opt = opt
	s.Layout = l
	s.regions = rec.regions
	logger.DiskInspectLogger.Info("scan finished", "scheme", l.Scheme,
		"slots", l.SlotsRead, "entries", len(l.Entries), "entry_errors", len(l.EntryErrors))
	return nil
}

// Disassemble decodes the MBR boot code region.
func (s *State) Disassemble(d disasm.Disassembler, origin uint64) error {
	if s.Layout == nil || s.Layout.MBR == nil {
		return ErrNoImage
	}
	l, err := d.Disassemble(s.Layout.MBR.BootCode[:], origin)
	if err != nil {
		return err
	}
	s.Listing = l
	return nil
}

// Verify cross-checks the layout against go-diskfs. It needs the image.
func (s *State) Verify() ([]partition.Mismatch, error) {
	if s.Source == nil || s.Layout == nil {
		return nil, ErrNoImage
	}
	f := source.OpenReader(s.Source.Name(), s.reader, s.size)
	return partition.Verify(f, s.Layout)
}

func (s *State) Report(opt report.Options) (*report.Report, error) {
	if s.Layout == nil {
		return nil, ErrNoImage
	}
	return report.Build(s.Image, s.Codec, s.Layout, s.Listing, opt), nil
}

func (s *State) Close() error {
	if s.Source == nil {
		return nil
	}
	err := s.Source.Close()
	s.Source = nil
	return err
}
