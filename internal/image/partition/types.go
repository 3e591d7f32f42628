package partition

import (
	"fmt"

	"diskinspect/internal/image/guid"
)

const (
	MBRTypeEmpty       byte = 0x00
	MBRTypeExtended    byte = 0x05
	MBRTypeExtendedLBA byte = 0x0f
	MBRTypeLinuxExt    byte = 0x85
	MBRTypeProtective  byte = 0xee
	MBRTypeEFISystem   byte = 0xef
)

var mbrTypeNames = map[byte]string{
	0x00: "Empty",
	0x01: "FAT12",
	0x04: "FAT16 <32M",
	0x05: "Extended",
	0x06: "FAT16",
	0x07: "HPFS/NTFS/exFAT",
	0x0b: "W95 FAT32",
	0x0c: "W95 FAT32 (LBA)",
	0x0e: "W95 FAT16 (LBA)",
	0x0f: "W95 Extended (LBA)",
	0x11: "Hidden FAT12",
	0x17: "Hidden NTFS",
	0x1b: "Hidden W95 FAT32",
	0x1c: "Hidden W95 FAT32 (LBA)",
	0x27: "Hidden NTFS WinRE",
	0x42: "SFS / Windows dynamic",
	0x82: "Linux swap",
	0x83: "Linux",
	0x85: "Linux extended",
	0x8e: "Linux LVM",
	0xa5: "FreeBSD",
	0xa6: "OpenBSD",
	0xa8: "Darwin UFS",
	0xa9: "NetBSD",
	0xaf: "HFS / HFS+",
	0xee: "GPT protective",
	0xef: "EFI (FAT-12/16/32)",
	0xfd: "Linux raid autodetect",
}

// MBRTypeName returns a human name for a partition type byte.
func MBRTypeName(t byte) string {
	if n, ok := mbrTypeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("Unknown (0x%02x)", t)
}

func isExtendedType(t byte) bool {
	switch t {
	case MBRTypeExtended, MBRTypeExtendedLBA, MBRTypeLinuxExt:
		return true
	default:
		return false
	}
}

var gptTypeNames = map[guid.GUID]string{
	guid.MustParse("c12a7328-f81f-11d2-ba4b-00a0c93ec93b"): "EFI System",
	guid.MustParse("024dee41-33e7-11d3-9d69-0008c781f39f"): "MBR partition scheme",
	guid.MustParse("21686148-6449-6e6f-744e-656564454649"): "BIOS boot",
	guid.MustParse("e3c9e316-0b5c-4db8-817d-f92df00215ae"): "Microsoft reserved",
	guid.MustParse("ebd0a0a2-b9e5-4433-87c0-68b6b72699c7"): "Microsoft basic data",
	guid.MustParse("5808c8aa-7e8f-42e0-85d2-e1e90434cfb3"): "Windows LDM metadata",
	guid.MustParse("af9b60a0-1431-4f62-bc68-3311714a69ad"): "Windows LDM data",
	guid.MustParse("de94bba4-06d1-4d40-a16a-bfd50179d6ac"): "Windows recovery environment",
	guid.MustParse("0fc63daf-8483-4772-8e79-3d69d8477de4"): "Linux filesystem",
	guid.MustParse("a19d880f-05fc-4d3b-a006-743f0f84911e"): "Linux RAID",
	guid.MustParse("0657fd6d-a4ab-43c4-84e5-0933c84b4f4f"): "Linux swap",
	guid.MustParse("e6d6d379-f507-44c2-a23c-238f2a3df928"): "Linux LVM",
	guid.MustParse("933ac7e1-2eb4-4f13-b844-0e14e2aef915"): "Linux /home",
	guid.MustParse("3b8f8425-20e0-4f3b-907f-1a25a76f98e8"): "Linux /srv",
	guid.MustParse("ca7d7ccb-63ed-4c53-861c-1742536059cc"): "Linux LUKS",
	guid.MustParse("4f68bce3-e8cd-4db1-96e7-fbcaf984b709"): "Linux root (x86-64)",
	guid.MustParse("bc13c2ff-59e6-4262-a352-b275fd6f7172"): "Linux extended boot",
	guid.MustParse("516e7cb4-6ecf-11d6-8ff8-00022d09712b"): "FreeBSD data",
	guid.MustParse("516e7cba-6ecf-11d6-8ff8-00022d09712b"): "FreeBSD ZFS",
	guid.MustParse("48465300-0000-11aa-aa11-00306543ecac"): "Apple HFS+",
	guid.MustParse("7c3457ef-0000-11aa-aa11-00306543ecac"): "Apple APFS",
	guid.MustParse("6a898cc3-1dd2-11b2-99a6-080020736631"): "Solaris /usr or Apple ZFS",
	guid.MustParse("fe3a2a5d-4f32-41a7-b725-accc3285a309"): "ChromeOS kernel",
	guid.MustParse("3cb8e202-3b7e-47dd-8a3c-7ff2a13cfcec"): "ChromeOS root",
	guid.MustParse("2e0a753d-9e48-43b0-8337-b15192cb1b5e"): "ChromeOS reserved",
	guid.MustParse("cab6e88e-abf3-4102-a07a-d4bb9be3c1d3"): "ChromeOS firmware",
	guid.MustParse("09845860-705f-4bb5-b16c-8a8a099caf52"): "ChromeOS MINIOS",
}

// GPTTypeName returns a human name for a partition type GUID, or "" when
// the type is not known.
func GPTTypeName(g guid.GUID) string {
	if g.IsZero() {
		return "Unused"
	}
	return gptTypeNames[g]
}
