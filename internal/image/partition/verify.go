package partition

import (
	"fmt"
	"strings"

	"github.com/diskfs/go-diskfs/backend"
	"github.com/diskfs/go-diskfs/partition/gpt"
	"github.com/diskfs/go-diskfs/partition/mbr"
)

// Mismatch is one disagreement between Scan and the go-diskfs parser.
type Mismatch struct {
	Partition int
	Field     string
	Ours      string
	Theirs    string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("partition %d %s: ours=%s go-diskfs=%s", m.Partition, m.Field, m.Ours, m.Theirs)
}

// refPartition is the common shape both parsers are reduced to.
type refPartition struct {
	Start      uint64
	End        uint64
	Type       string
	GUID       string
	Name       string
	Attributes uint64
	Bootable   bool
}

// Verify re-reads the partition table of f with go-diskfs and reports every
// field where the two decoders disagree. go-diskfs checks CRCs, so a damaged
// table comes back as an error rather than as mismatches.
func Verify(f backend.File, l *Layout) ([]Mismatch, error) {
	switch l.Scheme {
	case SchemeGPT:
		t, err := gpt.Read(f, l.SectorSize, l.SectorSize)
		if err != nil {
			return nil, fmt.Errorf("go-diskfs gpt read: %w", err)
		}
		var theirs []refPartition
		for _, p := range t.Partitions {
			if p == nil || p.Type == gpt.Unused {
				continue
			}
			theirs = append(theirs, refPartition{
				Start:      p.Start,
				End:        p.End,
				Type:       string(p.Type),
				GUID:       p.GUID,
				Name:       p.Name,
				Attributes: p.Attributes,
			})
		}
		return compare(oursGPT(l), theirs, true), nil

	case SchemeMBR:
		t, err := mbr.Read(f, l.SectorSize, l.SectorSize)
		if err != nil {
			return nil, fmt.Errorf("go-diskfs mbr read: %w", err)
		}
		var theirs []refPartition
		for _, p := range t.Partitions {
			if p == nil || p.Type == mbr.Empty {
				continue
			}
			theirs = append(theirs, refPartition{
				Start:    uint64(p.Start),
				End:      uint64(p.Start) + uint64(p.Size),
				Type:     fmt.Sprintf("%02x", byte(p.Type)),
				Bootable: p.Bootable,
			})
		}
		return compare(oursMBR(l), theirs, false), nil
	}
	return nil, nil
}

func oursGPT(l *Layout) []refPartition {
	out := make([]refPartition, 0, len(l.Entries))
	for _, e := range l.Entries {
		out = append(out, refPartition{
			Start:      uint64(e.FirstLBA),
			End:        uint64(e.LastLBA),
			Type:       e.TypeGUID.String(),
			GUID:       e.UniqueGUID.String(),
			Name:       e.Name,
			Attributes: e.Attributes.Raw,
		})
	}
	return out
}

func oursMBR(l *Layout) []refPartition {
	var out []refPartition
	if l.MBR == nil {
		return out
	}
	for _, e := range l.MBR.Entries {
		if e.Type == MBRTypeEmpty {
			continue
		}
		out = append(out, refPartition{
			Start:    uint64(e.StartLBA),
			End:      uint64(e.StartLBA) + uint64(e.Sectors),
			Type:     fmt.Sprintf("%02x", e.Type),
			Bootable: e.Active,
		})
	}
	return out
}

func compare(ours, theirs []refPartition, isGPT bool) []Mismatch {
	var out []Mismatch
	if len(ours) != len(theirs) {
		out = append(out, Mismatch{Field: "count",
			Ours: fmt.Sprint(len(ours)), Theirs: fmt.Sprint(len(theirs))})
	}
	n := min(len(ours), len(theirs))
	for i := 0; i < n; i++ {
		a, b := ours[i], theirs[i]
		add := func(field string, x, y any) {
			out = append(out, Mismatch{Partition: i + 1, Field: field, Ours: fmt.Sprint(x), Theirs: fmt.Sprint(y)})
		}
		if a.Start != b.Start {
			add("start", a.Start, b.Start)
		}
		if a.End != b.End {
			add("end", a.End, b.End)
		}
		if !strings.EqualFold(a.Type, b.Type) {
			add("type", a.Type, b.Type)
		}
		if isGPT {
			if !strings.EqualFold(a.GUID, b.GUID) {
				add("guid", a.GUID, b.GUID)
			}
			if a.Name != b.Name {
				add("name", a.Name, b.Name)
			}
			if a.Attributes != b.Attributes {
				add("attributes", fmt.Sprintf("%#x", a.Attributes), fmt.Sprintf("%#x", b.Attributes))
			}
		} else if a.Bootable != b.Bootable {
			add("bootable", a.Bootable, b.Bootable)
		}
	}
	return out
}
