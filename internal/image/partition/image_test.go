package partition

import (
	"encoding/binary"
	"unicode/utf16"

	"diskinspect/internal/image/guid"
)

// Helpers that lay out synthetic images for the tests in this package.

type testMBREntry struct {
	status   byte
	chsStart [3]byte
	typ      byte
	chsEnd   [3]byte
	lba      uint32
	sectors  uint32
}

func (e testMBREntry) bytes() []byte {
	b := make([]byte, MBREntrySize)
	b[0] = e.status
	copy(b[1:4], e.chsStart[:])
	b[4] = e.typ
	copy(b[5:8], e.chsEnd[:])
	binary.LittleEndian.PutUint32(b[8:12], e.lba)
	binary.LittleEndian.PutUint32(b[12:16], e.sectors)
	return b
}

func mbrSector(entries ...testMBREntry) []byte {
	sec := make([]byte, SectorSize)
	for i := range sec[:MBRBootCodeSize] {
		sec[i] = 0x90
	}
	for i, e := range entries {
		copy(sec[MBRTableOffset+i*MBREntrySize:], e.bytes())
	}
	sec[510], sec[511] = 0x55, 0xAA
	return sec
}

type testGPTEntry struct {
	typ   guid.GUID
	uniq  guid.GUID
	first uint64
	last  uint64
	attrs uint64
	name  string
}

func (e testGPTEntry) bytes(size int) []byte {
	b := make([]byte, size)
	copy(b[0:16], e.typ[:])
	copy(b[16:32], e.uniq[:])
	binary.LittleEndian.PutUint64(b[32:40], e.first)
	binary.LittleEndian.PutUint64(b[40:48], e.last)
	binary.LittleEndian.PutUint64(b[48:56], e.attrs)
	for i, u := range utf16.Encode([]rune(e.name)) {
		if 56+i*2+2 > size {
			break
		}
		binary.LittleEndian.PutUint16(b[56+i*2:], u)
	}
	return b
}

type testGPTHeader struct {
	sig       string
	diskGUID  guid.GUID
	arrayLBA  uint64
	count     uint32
	entrySize uint32
}

func (h testGPTHeader) bytes() []byte {
	b := make([]byte, SectorSize)
	copy(b[0:8], h.sig)
	binary.LittleEndian.PutUint32(b[8:12], 0x00010000)
	binary.LittleEndian.PutUint32(b[12:16], GPTHeaderSize)
	binary.LittleEndian.PutUint32(b[16:20], 0xdeadbeef)
	binary.LittleEndian.PutUint64(b[24:32], 1)
	binary.LittleEndian.PutUint64(b[32:40], 2047)
	binary.LittleEndian.PutUint64(b[40:48], 34)
	binary.LittleEndian.PutUint64(b[48:56], 2014)
	copy(b[56:72], h.diskGUID[:])
	binary.LittleEndian.PutUint64(b[72:80], h.arrayLBA)
	binary.LittleEndian.PutUint32(b[80:84], h.count)
	binary.LittleEndian.PutUint32(b[84:88], h.entrySize)
	binary.LittleEndian.PutUint32(b[88:92], 0xcafebabe)
	return b
}

// gptImage returns protective MBR + header + entry array at h.arrayLBA,
// padded to at least minSize bytes.
func gptImage(h testGPTHeader, entries []testGPTEntry, minSize int) []byte {
	img := mbrSector(testMBREntry{typ: MBRTypeProtective, lba: 1, sectors: 0xffffffff})
	img = append(img, h.bytes()...)
	arrayOff := int(h.arrayLBA) * SectorSize
	for len(img) < arrayOff {
		img = append(img, 0)
	}
	for i := 0; h.entrySize >= GPTEntryFixedSize && i < int(h.count); i++ {
		var e testGPTEntry
		if i < len(entries) {
			e = entries[i]
		}
		img = append(img, e.bytes(int(h.entrySize))...)
	}
	for len(img) < minSize {
		img = append(img, 0)
	}
	return img
}

var (
	typeLinux = guid.MustParse("0fc63daf-8483-4772-8e79-3d69d8477de4")
	typeESP   = guid.MustParse("c12a7328-f81f-11d2-ba4b-00a0c93ec93b")
	typeCrOS  = guid.MustParse("fe3a2a5d-4f32-41a7-b725-accc3285a309")
	diskID    = guid.MustParse("6f1c8e2a-1b9d-4d6e-9c55-0a1b2c3d4e5f")
	partA     = guid.MustParse("11111111-2222-3333-4444-555555555555")
	partB     = guid.MustParse("aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee")
)
