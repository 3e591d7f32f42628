package partition

import (
	"encoding/binary"
	"fmt"
	"strings"

	"diskinspect/internal/common"
)

// BitConvention selects how an attribute bit position is tested.
type BitConvention int

const (
	// ShiftedMask tests flags & (1<<n), as the UEFI layout intends.
	ShiftedMask BitConvention = iota
	// RawMask tests flags & n. Older dumps of this tool were produced this
	// way, so it is kept for side-by-side comparison.
	RawMask
)

func (c BitConvention) String() string {
	if c == RawMask {
		return "raw"
	}
	return "shifted"
}

func ParseConvention(s string) (BitConvention, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "shifted", "mask":
		return ShiftedMask, nil
	case "raw", "legacy":
		return RawMask, nil
	default:
		return ShiftedMask, fmt.Errorf("unknown bit convention %q: %w", s, common.ErrUnsupported)
	}
}

const AttributesSize = 8

// Attribute bit positions.
const (
	BitPlatformRequired   = 0
	BitEFIFirmwareIgnore  = 1
	BitLegacyBIOSBootable = 2

	BitChromeSuccessfulBoot = 56

	BitWindowsReadOnly    = 60
	BitWindowsShadowCopy  = 61
	BitWindowsHidden      = 62
	BitWindowsNoAutomount = 63
)

// Reserved bits are scanned over [reservedFirst, reservedLast].
const (
	reservedFirst = 3
	reservedLast  = 54
)

type WindowsAttributes struct {
	ReadOnly    bool `json:"read_only"`
	ShadowCopy  bool `json:"shadow_copy"`
	Hidden      bool `json:"hidden"`
	NoAutomount bool `json:"no_automount"`
}

type ChromeOSAttributes struct {
	SuccessfulBoot bool  `json:"successful_boot"`
	TriesRemaining []int `json:"tries_remaining"`
	BootPriority   int   `json:"boot_priority"`
}

// Attributes is the decoded 64-bit GPT attribute field. Windows and ChromeOS
// reuse overlapping type-specific bits, so both groups can be present.
type Attributes struct {
	Raw                uint64              `json:"raw"`
	Convention         BitConvention       `json:"-"`
	PlatformRequired   bool                `json:"platform_required"`
	EFIFirmwareIgnore  bool                `json:"efi_firmware_ignore"`
	LegacyBIOSBootable bool                `json:"legacy_bios_bootable"`
	ReservedBits       []int               `json:"reserved_bits"`
	Windows            *WindowsAttributes  `json:"windows,omitempty"`
	ChromeOS           *ChromeOSAttributes `json:"chromeos,omitempty"`
}

func DecodeAttributes(b []byte, conv BitConvention) (Attributes, error) {
	if err := common.Short("gpt attributes", b, AttributesSize); err != nil {
		return Attributes{}, err
	}
	return AttributesFromUint64(binary.LittleEndian.Uint64(b[:AttributesSize]), conv), nil
}

func AttributesFromUint64(flags uint64, conv BitConvention) Attributes {
	set := func(n uint) bool {
		if conv == RawMask {
			return flags&uint64(n) != 0
		}
		return flags&(uint64(1)<<n) != 0
	}

	a := Attributes{Raw: flags, Convention: conv, ReservedBits: []int{}}
	if conv == RawMask {
		// flags & 0 is never set; bits 0 and 1 land on the next two fields.
		a.EFIFirmwareIgnore = set(1)
		a.LegacyBIOSBootable = set(2)
	} else {
		a.PlatformRequired = set(BitPlatformRequired)
		a.EFIFirmwareIgnore = set(BitEFIFirmwareIgnore)
		a.LegacyBIOSBootable = set(BitLegacyBIOSBootable)
	}

	var chrome *ChromeOSAttributes
	for i := reservedFirst; i <= reservedLast; i++ {
		if !set(uint(i)) {
			continue
		}
		a.ReservedBits = append(a.ReservedBits, i)
		if i > 47 && i < 56 {
			if chrome == nil {
				chrome = &ChromeOSAttributes{TriesRemaining: []int{}}
			}
			if i > 52 {
				chrome.TriesRemaining = append(chrome.TriesRemaining, i)
			} else {
				chrome.BootPriority = i - 48
			}
		}
	}
	if chrome != nil {
		chrome.SuccessfulBoot = set(BitChromeSuccessfulBoot)
		a.ChromeOS = chrome
	}

	w := WindowsAttributes{
		ReadOnly:    set(BitWindowsReadOnly),
		ShadowCopy:  set(BitWindowsShadowCopy),
		Hidden:      set(BitWindowsHidden),
		NoAutomount: set(BitWindowsNoAutomount),
	}
	if w.ReadOnly || w.ShadowCopy || w.Hidden || w.NoAutomount {
		a.Windows = &w
	}
	return a
}

// IsZero reports whether no attribute is set at all.
func (a Attributes) IsZero() bool { return a.Raw == 0 }
