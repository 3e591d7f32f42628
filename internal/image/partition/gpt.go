package partition

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"

	"golang.org/x/text/encoding/unicode"

	"diskinspect/internal/common"
	"diskinspect/internal/image/guid"
)

const (
	GPTSignature = "EFI PART"

	GPTHeaderSize       = 92
	GPTEntryFixedSize   = 56
	GPTDefaultEntrySize = 128
)

type GPTHeader struct {
	Signature           [8]byte   `json:"-"`
	Revision            uint32    `json:"revision"`
	HeaderSize          uint32    `json:"header_size"`
	HeaderCRC32         uint32    `json:"header_crc32"`
	Reserved            uint32    `json:"reserved"`
	CurrentLBA          int64     `json:"current_lba"`
	BackupLBA           int64     `json:"backup_lba"`
	FirstUsableLBA      int64     `json:"first_usable_lba"`
	LastUsableLBA       int64     `json:"last_usable_lba"`
	DiskGUID            guid.GUID `json:"disk_guid"`
	PartitionArrayLBA   int64     `json:"partition_array_lba"`
	PartitionCount      uint32    `json:"partition_count"`
	PartitionEntrySize  uint32    `json:"partition_entry_size"`
	PartitionArrayCRC32 uint32    `json:"partition_array_crc32"`
}

func (h *GPTHeader) SignatureString() string { return string(h.Signature[:]) }

func (h *GPTHeader) Valid() bool { return h.SignatureString() == GPTSignature }

// RevisionString renders 0x00010000 as "1.0".
func (h *GPTHeader) RevisionString() string {
	return fmt.Sprintf("%d.%d", h.Revision>>16, h.Revision&0xffff)
}

// EntriesSize is the byte length of the partition entry array.
func (h *GPTHeader) EntriesSize() uint64 {
	return uint64(h.PartitionCount) * uint64(h.PartitionEntrySize)
}

// DecodeGPTHeader decodes the first 92 bytes of the header block. A wrong
// signature still yields the decoded header, alongside an error wrapping
// common.ErrInvalidSignature, so damaged images can be inspected anyway.
func DecodeGPTHeader(b []byte) (*GPTHeader, error) {
	if err := common.Short("gpt header", b, GPTHeaderSize); err != nil {
		return nil, err
	}
	le := binary.LittleEndian
	h := &GPTHeader{
		Revision:            le.Uint32(b[8:12]),
		HeaderSize:          le.Uint32(b[12:16]),
		HeaderCRC32:         le.Uint32(b[16:20]),
		Reserved:            le.Uint32(b[20:24]),
		CurrentLBA:          int64(le.Uint64(b[24:32])),
		BackupLBA:           int64(le.Uint64(b[32:40])),
		FirstUsableLBA:      int64(le.Uint64(b[40:48])),
		LastUsableLBA:       int64(le.Uint64(b[48:56])),
		PartitionArrayLBA:   int64(le.Uint64(b[72:80])),
		PartitionCount:      le.Uint32(b[80:84]),
		PartitionEntrySize:  le.Uint32(b[84:88]),
		PartitionArrayCRC32: le.Uint32(b[88:92]),
	}
	copy(h.Signature[:], b[0:8])
	h.DiskGUID, _ = guid.Decode(b[56:72])

	if !h.Valid() {
		return h, fmt.Errorf("gpt header signature %q: %w", h.Signature[:], common.ErrInvalidSignature)
	}
	return h, nil
}

type GPTEntry struct {
	Index      int        `json:"index"`
	TypeGUID   guid.GUID  `json:"type_guid"`
	UniqueGUID guid.GUID  `json:"unique_guid"`
	FirstLBA   int64      `json:"first_lba"`
	LastLBA    int64      `json:"last_lba"`
	Attributes Attributes `json:"attributes"`
	Name       string     `json:"name"`
}

func (e *GPTEntry) TypeName() string { return GPTTypeName(e.TypeGUID) }

// Sectors is the inclusive LBA span, 0 for an inverted range.
func (e *GPTEntry) Sectors() uint64 {
	if e.LastLBA < e.FirstLBA {
		return 0
	}
	return uint64(e.LastLBA-e.FirstLBA) + 1
}

// DecodeGPTEntry decodes one slot of the partition entry array. It returns
// nil, nil for an unused slot (all-zero type GUID). A name that is not valid
// UTF-16 yields the entry together with common.ErrUnsupportedEncoding.
func DecodeGPTEntry(b []byte, conv BitConvention) (*GPTEntry, error) {
	if len(b) >= guid.Size && isAllZero(b[:guid.Size]) {
		return nil, nil
	}
	if err := common.Short("gpt entry", b, GPTEntryFixedSize); err != nil {
		return nil, err
	}
	le := binary.LittleEndian
	e := &GPTEntry{
		FirstLBA: int64(le.Uint64(b[32:40])),
		LastLBA:  int64(le.Uint64(b[40:48])),
	}
	e.TypeGUID, _ = guid.Decode(b[0:16])
	e.UniqueGUID, _ = guid.Decode(b[16:32])
	e.Attributes, _ = DecodeAttributes(b[48:56], conv)

	name, err := decodeName(b[GPTEntryFixedSize:])
	e.Name = name
	if err != nil {
		return e, err
	}
	return e, nil
}

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// decodeName decodes a UTF-16LE name up to its first NUL unit.
func decodeName(b []byte) (string, error) {
	if len(b)%2 != 0 {
		return "", fmt.Errorf("partition name has odd length %d: %w", len(b), common.ErrUnsupportedEncoding)
	}
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(b[i*2:])
	}
	n := 0
	for n < len(units) && units[n] != 0 {
		n++
	}
	if err := checkSurrogates(units[:n]); err != nil {
		return "", err
	}
	out, err := utf16le.NewDecoder().Bytes(b[:n*2])
	if err != nil {
		return "", fmt.Errorf("partition name: %v: %w", err, common.ErrUnsupportedEncoding)
	}
	return string(out), nil
}

func checkSurrogates(units []uint16) error {
	for i := 0; i < len(units); i++ {
		u := rune(units[i])
		if !utf16.IsSurrogate(u) {
			continue
		}
		if u < 0xdc00 && i+1 < len(units) && units[i+1] >= 0xdc00 && units[i+1] <= 0xdfff {
			i++
			continue
		}
		return fmt.Errorf("partition name: unpaired surrogate 0x%04x at unit %d: %w", u, i, common.ErrUnsupportedEncoding)
	}
	return nil
}

func isAllZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
