package partition

import (
	"encoding/binary"
	"fmt"

	"diskinspect/internal/common"
)

const (
	SectorSize = 512

	MBRBootCodeSize    = 446
	MBRTableOffset     = 446
	MBREntrySize       = 16
	MBREntryCount      = 4
	MBRTableSize       = MBREntrySize * MBREntryCount
	MBRSignatureOffset = 510

	mbrActive byte = 0x80
)

// CHS is a packed cylinder/head/sector address. Raw holds the three bytes
// in reverse of their on-disk order, which is how the table has always been
// reported by this tool.
type CHS struct {
	Raw [3]byte `json:"raw"`
}

func chsFromDisk(b []byte) CHS {
	return CHS{Raw: [3]byte{b[2], b[1], b[0]}}
}

func (c CHS) disk() [3]byte { return [3]byte{c.Raw[2], c.Raw[1], c.Raw[0]} }

// Head is the first on-disk byte.
func (c CHS) Head() uint8 { return c.disk()[0] }

// Sector is the low six bits of the second on-disk byte.
func (c CHS) Sector() uint8 { return c.disk()[1] & 0x3f }

// Cylinder takes its high two bits from the sector byte.
func (c CHS) Cylinder() uint16 {
	d := c.disk()
	return uint16(d[1]&0xc0)<<2 | uint16(d[2])
}

func (c CHS) String() string {
	return fmt.Sprintf("%02x%02x%02x", c.Raw[0], c.Raw[1], c.Raw[2])
}

type MBREntry struct {
	Slot     int    `json:"slot"`
	Status   byte   `json:"status"`
	Active   bool   `json:"active"`
	Type     byte   `json:"type"`
	StartCHS CHS    `json:"start_chs"`
	EndCHS   CHS    `json:"end_chs"`
	StartLBA uint32 `json:"start_lba"`
	Sectors  uint32 `json:"sectors"`
	Raw      []byte `json:"-"`
}

func (e MBREntry) TypeName() string { return MBRTypeName(e.Type) }

func (e MBREntry) IsEmpty() bool { return e.Type == MBRTypeEmpty && e.Sectors == 0 }

// EndLBA is the last sector covered by the entry, or StartLBA for an empty one.
func (e MBREntry) EndLBA() uint64 {
	if e.Sectors == 0 {
		return uint64(e.StartLBA)
	}
	return uint64(e.StartLBA) + uint64(e.Sectors) - 1
}

// reverseBigEndian32 reads b[3],b[2],b[1],b[0] as a big-endian number, which
// is the little-endian value of b.
func reverseBigEndian32(b []byte) uint32 {
	r := [4]byte{b[3], b[2], b[1], b[0]}
	return binary.BigEndian.Uint32(r[:])
}

// DecodeMBREntry decodes one 16-byte partition table slot. Nothing is
// filtered: empty slots decode to zero values.
func DecodeMBREntry(b []byte) (MBREntry, error) {
	if err := common.Short("mbr entry", b, MBREntrySize); err != nil {
		return MBREntry{}, err
	}
	return MBREntry{
		Status:   b[0],
		Active:   b[0] == mbrActive,
		StartCHS: chsFromDisk(b[1:4]),
		Type:     b[4],
		EndCHS:   chsFromDisk(b[5:8]),
		StartLBA: reverseBigEndian32(b[8:12]),
		Sectors:  reverseBigEndian32(b[12:16]),
		Raw:      append([]byte(nil), b[:MBREntrySize]...),
	}, nil
}

// MarshalBinary writes the entry back in on-disk layout.
func (e MBREntry) MarshalBinary() ([]byte, error) {
	b := make([]byte, MBREntrySize)
	b[0] = e.Status
	if e.Active {
		b[0] = mbrActive
	}
	s, end := e.StartCHS.disk(), e.EndCHS.disk()
	copy(b[1:4], s[:])
	b[4] = e.Type
	copy(b[5:8], end[:])
	binary.LittleEndian.PutUint32(b[8:12], e.StartLBA)
	binary.LittleEndian.PutUint32(b[12:16], e.Sectors)
	return b, nil
}

// DecodeMBRTable splits the 64-byte table into its four slots.
func DecodeMBRTable(b []byte) ([MBREntryCount]MBREntry, error) {
	var out [MBREntryCount]MBREntry
	if err := common.Short("mbr table", b, MBRTableSize); err != nil {
		return out, err
	}
	for i := 0; i < MBREntryCount; i++ {
		e, err := DecodeMBREntry(b[i*MBREntrySize : (i+1)*MBREntrySize])
		if err != nil {
			return out, err
		}
		e.Slot = i + 1
		out[i] = e
	}
	return out, nil
}

type MBR struct {
	BootCode  [MBRBootCodeSize]byte   `json:"-"`
	Entries   [MBREntryCount]MBREntry `json:"entries"`
	Signature [2]byte                 `json:"signature"`
}

// DecodeMBR decodes a whole first sector. The 0x55AA signature is reported
// through HasBootSignature but not enforced.
func DecodeMBR(sec []byte) (*MBR, error) {
	if err := common.Short("mbr", sec, SectorSize); err != nil {
		return nil, err
	}
	m := &MBR{}
	copy(m.BootCode[:], sec[:MBRBootCodeSize])
	ents, err := DecodeMBRTable(sec[MBRTableOffset:MBRSignatureOffset])
	if err != nil {
		return nil, err
	}
	m.Entries = ents
	copy(m.Signature[:], sec[MBRSignatureOffset:SectorSize])
	return m, nil
}

func (m *MBR) HasBootSignature() bool {
	return m.Signature[0] == 0x55 && m.Signature[1] == 0xAA
}

// IsProtective reports whether any slot carries the GPT protective type.
func (m *MBR) IsProtective() bool {
	for _, e := range m.Entries {
		if e.Type == MBRTypeProtective {
			return true
		}
	}
	return false
}

// ExtendedEntry returns the first slot that points to an extended partition.
func (m *MBR) ExtendedEntry() (MBREntry, bool) {
	for _, e := range m.Entries {
		if isExtendedType(e.Type) && e.Sectors != 0 {
			return e, true
		}
	}
	return MBREntry{}, false
}

func (m *MBR) ActiveCount() int {
	n := 0
	for _, e := range m.Entries {
		if e.Active {
			n++
		}
	}
	return n
}
