// Package report turns a scanned layout into a printable document.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"diskinspect/internal/common"
	"diskinspect/internal/disasm"
	"diskinspect/internal/image/guid"
	"diskinspect/internal/image/partition"
)

// GUID styles.
const (
	GUIDCanonical = "canonical"
	GUIDStored    = "stored"
)

type Options struct {
	// GUIDStyle selects canonical or stored-order GUID text.
	GUIDStyle string
}

type Report struct {
	Image      string          `json:"image"`
	Codec      string          `json:"codec,omitempty"`
	Size       int64           `json:"size"`
	SizeHuman  string          `json:"size_human"`
	Scheme     string          `json:"scheme"`
	SectorSize int             `json:"sector_size"`
	MBR        *MBRSection     `json:"mbr,omitempty"`
	GPT        *GPTSection     `json:"gpt,omitempty"`
	BootCode   []byte          `json:"-"`
	HeaderRaw  []byte          `json:"-"`
	Disasm     *disasm.Listing `json:"disasm,omitempty"`
}

type MBRSection struct {
	BootSignature bool     `json:"boot_signature"`
	Signature     string   `json:"signature"`
	Protective    bool     `json:"protective"`
	ActiveCount   int      `json:"active_count"`
	Entries       []MBRRow `json:"entries"`
	Logical       []MBRRow `json:"logical,omitempty"`
	LogicalError  string   `json:"logical_error,omitempty"`
}

type MBRRow struct {
	Slot      int    `json:"slot"`
	Active    bool   `json:"active"`
	Status    string `json:"status"`
	Type      string `json:"type"`
	TypeName  string `json:"type_name"`
	StartCHS  string `json:"start_chs"`
	EndCHS    string `json:"end_chs"`
	StartLBA  uint32 `json:"start_lba"`
	Sectors   uint32 `json:"sectors"`
	Offset    uint64 `json:"offset"`
	SizeHuman string `json:"size_human"`
	Raw       string `json:"raw"`
}

type GPTSection struct {
	Signature      string         `json:"signature"`
	Valid          bool           `json:"valid"`
	HeaderError    string         `json:"header_error,omitempty"`
	Revision       string         `json:"revision"`
	HeaderSize     uint32         `json:"header_size"`
	HeaderCRC32    string         `json:"header_crc32"`
	CurrentLBA     int64          `json:"current_lba"`
	BackupLBA      int64          `json:"backup_lba"`
	FirstUsableLBA int64          `json:"first_usable_lba"`
	LastUsableLBA  int64          `json:"last_usable_lba"`
	DiskGUID       string         `json:"disk_guid"`
	ArrayLBA       int64          `json:"partition_array_lba"`
	PartitionCount uint32         `json:"partition_count"`
	EntrySize      uint32         `json:"partition_entry_size"`
	ArrayCRC32     string         `json:"partition_array_crc32"`
	ArraySectors   uint64         `json:"partition_array_sectors"`
	SlotsRead      int            `json:"slots_read"`
	Truncated      bool           `json:"truncated"`
	Entries        []GPTRow       `json:"entries"`
	EntryErrors    map[int]string `json:"entry_errors,omitempty"`
}

type GPTRow struct {
	Index      int                  `json:"index"`
	TypeGUID   string               `json:"type_guid"`
	TypeName   string               `json:"type_name"`
	UniqueGUID string               `json:"unique_guid"`
	FirstLBA   int64                `json:"first_lba"`
	LastLBA    int64                `json:"last_lba"`
	Sectors    uint64               `json:"sectors"`
	Offset     uint64               `json:"offset"`
	SizeHuman  string               `json:"size_human"`
	Name       string               `json:"name"`
	Attributes partition.Attributes `json:"attributes"`
}

// Build collects everything printable about l. listing may be nil.
func Build(name, codec string, l *partition.Layout, listing *disasm.Listing, opt Options) *Report {
	g := guidFormatter(opt.GUIDStyle)
	r := &Report{
		Image:      name,
		Codec:      codec,
		Size:       l.Size,
		SizeHuman:  humanize.IBytes(uint64(max(l.Size, 0))),
		Scheme:     l.Scheme.String(),
		SectorSize: l.SectorSize,
		HeaderRaw:  l.HeaderBlock,
		Disasm:     listing,
	}
	ss := uint64(l.SectorSize)

	if m := l.MBR; m != nil {
		r.BootCode = m.BootCode[:]
		sec := &MBRSection{
			BootSignature: m.HasBootSignature(),
			Signature:     fmt.Sprintf("0x%02x%02x", m.Signature[0], m.Signature[1]),
			Protective:    m.IsProtective(),
			ActiveCount:   m.ActiveCount(),
		}
		for _, e := range m.Entries {
			sec.Entries = append(sec.Entries, mbrRow(e, ss))
		}
		for _, e := range l.Logical {
			sec.Logical = append(sec.Logical, mbrRow(e, ss))
		}
		if l.LogicalErr != nil {
			sec.LogicalError = l.LogicalErr.Error()
		}
		r.MBR = sec
	}

	if h := l.GPT; h != nil {
		sec := &GPTSection{
			Signature:      h.SignatureString(),
			Valid:          h.Valid(),
			Revision:       h.RevisionString(),
			HeaderSize:     h.HeaderSize,
			HeaderCRC32:    fmt.Sprintf("0x%08x", h.HeaderCRC32),
			CurrentLBA:     h.CurrentLBA,
			BackupLBA:      h.BackupLBA,
			FirstUsableLBA: h.FirstUsableLBA,
			LastUsableLBA:  h.LastUsableLBA,
			DiskGUID:       g(h.DiskGUID),
			ArrayLBA:       l.ArrayLBA,
			PartitionCount: h.PartitionCount,
			EntrySize:      h.PartitionEntrySize,
			ArrayCRC32:     fmt.Sprintf("0x%08x", h.PartitionArrayCRC32),
			ArraySectors:   common.Sectors(h.EntriesSize(), ss),
			SlotsRead:      l.SlotsRead,
			Truncated:      l.Truncated,
			Entries:        []GPTRow{},
		}
		if l.HeaderErr != nil {
			sec.HeaderError = l.HeaderErr.Error()
		}
		for _, e := range l.Entries {
			sectors := e.Sectors()
			sec.Entries = append(sec.Entries, GPTRow{
				Index:      e.Index,
				TypeGUID:   g(e.TypeGUID),
				TypeName:   e.TypeName(),
				UniqueGUID: g(e.UniqueGUID),
				FirstLBA:   e.FirstLBA,
				LastLBA:    e.LastLBA,
				Sectors:    sectors,
				Offset:     uint64(max(e.FirstLBA, 0)) * ss,
				SizeHuman:  humanize.IBytes(sectors * ss),
				Name:       e.Name,
				Attributes: e.Attributes,
			})
		}
		if len(l.EntryErrors) > 0 {
			sec.EntryErrors = map[int]string{}
			for slot, err := range l.EntryErrors {
				sec.EntryErrors[slot] = err.Error()
			}
		}
		r.GPT = sec
	} else if l.HeaderErr != nil {
		r.GPT = &GPTSection{HeaderError: l.HeaderErr.Error(), Entries: []GPTRow{}}
	}
	return r
}

func mbrRow(e partition.MBREntry, ss uint64) MBRRow {
	raw := make([]string, len(e.Raw))
	for i, b := range e.Raw {
		raw[i] = fmt.Sprintf("0x%02x", b)
	}
	return MBRRow{
		Slot:      e.Slot,
		Active:    e.Active,
		Status:    fmt.Sprintf("0x%02x", e.Status),
		Type:      fmt.Sprintf("0x%02x", e.Type),
		TypeName:  e.TypeName(),
		StartCHS:  chs(e.StartCHS),
		EndCHS:    chs(e.EndCHS),
		StartLBA:  e.StartLBA,
		Sectors:   e.Sectors,
		Offset:    uint64(e.StartLBA) * ss,
		SizeHuman: humanize.IBytes(uint64(e.Sectors) * ss),
		Raw:       strings.Join(raw, " "),
	}
}

func chs(c partition.CHS) string {
	return fmt.Sprintf("%d/%d/%d", c.Cylinder(), c.Head(), c.Sector())
}

func guidFormatter(style string) func(guid.GUID) string {
	if style == GUIDStored {
		return guid.GUID.StoredOrderString
	}
	return guid.GUID.String
}

// ErrorSlots returns the slots with decode errors in ascending order.
func (s *GPTSection) ErrorSlots() []int {
	out := make([]int, 0, len(s.EntryErrors))
	for k := range s.EntryErrors {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
