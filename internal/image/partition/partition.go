// Package partition decodes MBR and GPT partitioning structures.
//
// The Decode* functions are pure: they take a byte window and return values.
// Scan is the only place that reads from an image, and it does so in a fixed
// order: sector 0, the GPT header block, then the partition entry array.
package partition

import (
	"context"
	"errors"
	"fmt"
	"io"

	"diskinspect/internal/common"
	"diskinspect/internal/logger"
)

type Scheme int

const (
	SchemeNone Scheme = iota
	SchemeMBR
	SchemeGPT
)

func (s Scheme) String() string {
	switch s {
	case SchemeMBR:
		return "mbr"
	case SchemeGPT:
		return "gpt"
	default:
		return "none"
	}
}

const (
	DefaultMaxEntries = 1024
	maxEBRHops        = 128
	maxEntrySize      = 4096
)

type Options struct {
	SectorSize int
	Convention BitConvention
	// MaxEntries caps how many GPT slots are read whatever the header claims.
	MaxEntries int
	// ForceGPT decodes LBA 1 as a GPT header even without a protective MBR
	// or a valid signature.
	ForceGPT bool
	SkipEBR  bool
}

func (o Options) withDefaults() Options {
	if o.SectorSize <= 0 {
		o.SectorSize = SectorSize
	}
	if o.MaxEntries <= 0 {
		o.MaxEntries = DefaultMaxEntries
	}
	return o
}

// CheckSectorSize accepts 0 (use the default) or a power of two large enough
// to hold a GPT header.
func CheckSectorSize(n int) error {
	if n == 0 {
		return nil
	}
	if n < GPTHeaderSize || n&(n-1) != 0 {
		return fmt.Errorf("sector size %d: %w", n, common.ErrMalformedInput)
	}
	return nil
}

// Layout is everything Scan decoded from one image.
type Layout struct {
	Scheme     Scheme
	SectorSize int
	Size       int64

	MBR        *MBR
	MBRSector  []byte
	Logical    []MBREntry
	LogicalErr error

	GPT         *GPTHeader
	HeaderBlock []byte
	HeaderErr   error
	ArrayLBA    int64
	SlotsRead   int
	Truncated   bool
	Entries     []*GPTEntry
	EntryErrors map[int]error
}

// Scan decodes the partition structures of the image behind r. size may be 0
// when unknown. Only a failure to read sector 0 is returned as an error;
// everything later is recorded in the Layout and scanning goes on.
func Scan(ctx context.Context, r io.ReaderAt, size int64, opt Options) (*Layout, error) {
	if err := CheckSectorSize(opt.SectorSize); err != nil {
		return nil, err
	}
	opt = opt.withDefaults()
	l := &Layout{Scheme: SchemeNone, SectorSize: opt.SectorSize, Size: size, EntryErrors: map[int]error{}}

	sec := make([]byte, SectorSize)
	if err := readFull(r, sec, 0); err != nil {
		return nil, fmt.Errorf("read mbr: %w", err)
	}
	l.MBRSector = sec
	m, err := DecodeMBR(sec)
	if err != nil {
		return nil, err
	}
	l.MBR = m
	l.Scheme = SchemeMBR

	hdr := make([]byte, opt.SectorSize)
	herr := readFull(r, hdr, int64(opt.SectorSize))
	looksGPT := herr == nil && string(hdr[:len(GPTSignature)]) == GPTSignature
	if m.IsProtective() || looksGPT || opt.ForceGPT {
		l.Scheme = SchemeGPT
		if herr != nil {
			l.HeaderErr = fmt.Errorf("read gpt header: %w", herr)
			logger.DiskInspectLogger.Warning("gpt header unreadable", "err", herr)
			return l, nil
		}
		l.HeaderBlock = hdr
		scanGPT(ctx, r, l, opt)
		return l, ctx.Err()
	}

	if !opt.SkipEBR {
		if ext, ok := m.ExtendedEntry(); ok {
			l.Logical, l.LogicalErr = readEBRChain(r, opt.SectorSize, ext.StartLBA)
		}
	}
	return l, nil
}

func scanGPT(ctx context.Context, r io.ReaderAt, l *Layout, opt Options) {
	h, err := DecodeGPTHeader(l.HeaderBlock)
	if h == nil {
		l.HeaderErr = err
		return
	}
	l.GPT = h
	if err != nil {
		l.HeaderErr = err
		logger.DiskInspectLogger.Warning("gpt header decoded with errors, continuing", "err", err)
	}

	entrySize := int64(h.PartitionEntrySize)
	if entrySize < GPTEntryFixedSize || entrySize > maxEntrySize {
		if h.Valid() {
			l.HeaderErr = errors.Join(l.HeaderErr,
				fmt.Errorf("partition entry size %d: %w", entrySize, common.ErrMalformedInput))
			return
		}
		entrySize = GPTDefaultEntrySize
	}

	l.ArrayLBA = h.PartitionArrayLBA
	if l.ArrayLBA < 2 {
		l.ArrayLBA = 2
	}
	offset := l.ArrayLBA * int64(opt.SectorSize)

	count := int64(h.PartitionCount)
	if count > int64(opt.MaxEntries) {
		count = int64(opt.MaxEntries)
		l.Truncated = true
	}
	if l.Size > 0 {
		fit := (l.Size - offset) / entrySize
		if fit < 0 {
			fit = 0
		}
		if count > fit {
			count = fit
			l.Truncated = true
		}
	}
	if l.Truncated {
		logger.DiskInspectLogger.Warning("partition array truncated",
			"claimed", h.PartitionCount, "reading", count)
	}

	buf := make([]byte, entrySize)
	for i := int64(0); i < count; i++ {
		if ctx.Err() != nil {
			return
		}
		slot := int(i) + 1
		if err := readFull(r, buf, offset+i*entrySize); err != nil {
			l.EntryErrors[slot] = fmt.Errorf("read slot %d: %w", slot, err)
			l.Truncated = true
			return
		}
		l.SlotsRead++
		e, err := DecodeGPTEntry(buf, opt.Convention)
		if err != nil {
			l.EntryErrors[slot] = err
			logger.DiskInspectLogger.Warning("gpt entry decode failed", "slot", slot, "err", err)
		}
		if e == nil {
			continue
		}
		e.Index = slot
		l.Entries = append(l.Entries, e)
	}
}

// readEBRChain follows the extended boot records starting at base. Logical
// entries are returned with absolute start LBAs.
func readEBRChain(r io.ReaderAt, sectorSize int, base uint32) ([]MBREntry, error) {
	var out []MBREntry
	next := uint64(base)
	seen := map[uint64]bool{}
	sec := make([]byte, SectorSize)

	for hops := 0; hops < maxEBRHops; hops++ {
		if seen[next] {
			return out, fmt.Errorf("ebr loop at lba %d: %w", next, common.ErrMalformedInput)
		}
		seen[next] = true
		if err := readFull(r, sec, int64(next)*int64(sectorSize)); err != nil {
			return out, fmt.Errorf("read ebr at lba %d: %w", next, err)
		}
		if sec[510] != 0x55 || sec[511] != 0xAA {
			return out, fmt.Errorf("ebr at lba %d: %w", next, common.ErrInvalidSignature)
		}
		ents, _ := DecodeMBRTable(sec[MBRTableOffset:MBRSignatureOffset])
		e1, e2 := ents[0], ents[1]

		if e1.Type != MBRTypeEmpty && e1.Sectors != 0 {
			start := next + uint64(e1.StartLBA)
			if start > 0xffffffff {
				return out, fmt.Errorf("logical partition beyond 2TiB at lba %d: %w", start, common.ErrMalformedInput)
			}
			e1.StartLBA = uint32(start)
			e1.Slot = MBREntryCount + len(out) + 1
			out = append(out, e1)
		}
		if e2.Sectors == 0 || !isExtendedType(e2.Type) {
			return out, nil
		}
		next = uint64(base) + uint64(e2.StartLBA)
	}
	return out, fmt.Errorf("ebr chain longer than %d: %w", maxEBRHops, common.ErrMalformedInput)
}

// DetectScheme reads only enough of r to tell which table is present.
func DetectScheme(r io.ReaderAt) (Scheme, error) {
	sec := make([]byte, SectorSize*2)
	if err := readFull(r, sec[:SectorSize], 0); err != nil {
		return SchemeNone, err
	}
	m, err := DecodeMBR(sec[:SectorSize])
	if err != nil {
		return SchemeNone, err
	}
	if m.IsProtective() {
		return SchemeGPT, nil
	}
	if readFull(r, sec[SectorSize:], SectorSize) == nil && string(sec[SectorSize:SectorSize+8]) == GPTSignature {
		return SchemeGPT, nil
	}
	if m.HasBootSignature() {
		return SchemeMBR, nil
	}
	return SchemeNone, nil
}

func readFull(r io.ReaderAt, buf []byte, off int64) error {
	n, err := r.ReadAt(buf, off)
	if n == len(buf) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return err
}
