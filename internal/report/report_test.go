package report

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diskinspect/internal/disasm"
	"diskinspect/internal/image/guid"
	"diskinspect/internal/image/partition"
)

var (
	linuxType = guid.MustParse("0fc63daf-8483-4772-8e79-3d69d8477de4")
	uniq      = guid.MustParse("11111111-2222-3333-4444-555555555555")
)

// gptDisk lays out a protective MBR, a header and one named entry.
func gptDisk() []byte {
	img := make([]byte, 4*512)
	img[446+4] = 0xee
	binary.LittleEndian.PutUint32(img[446+8:], 1)
	binary.LittleEndian.PutUint32(img[446+12:], 3)
	img[510], img[511] = 0x55, 0xaa

	h := img[512:]
	copy(h, "EFI PART")
	binary.LittleEndian.PutUint32(h[8:], 0x10000)
	binary.LittleEndian.PutUint32(h[12:], 92)
	binary.LittleEndian.PutUint64(h[24:], 1)
	binary.LittleEndian.PutUint64(h[72:], 2)
	binary.LittleEndian.PutUint32(h[80:], 4)
	binary.LittleEndian.PutUint32(h[84:], 128)

	e := img[1024:]
	copy(e[0:], linuxType[:])
	copy(e[16:], uniq[:])
	binary.LittleEndian.PutUint64(e[32:], 2048)
	binary.LittleEndian.PutUint64(e[40:], 4095)
	binary.LittleEndian.PutUint64(e[48:], 1<<60|1<<2)
	for i, c := range "root" {
		binary.LittleEndian.PutUint16(e[56+i*2:], uint16(c))
	}
	return img
}

func layout(t *testing.T) *partition.Layout {
	t.Helper()
	img := gptDisk()
	l, err := partition.Scan(context.Background(), bytes.NewReader(img), int64(len(img)), partition.Options{})
	require.NoError(t, err)
	return l
}

func TestBuildGPT(t *testing.T) {
	r := Build("disk.img", "none", layout(t), nil, Options{})
	assert.Equal(t, "gpt", r.Scheme)
	assert.Equal(t, "2.0 KiB", r.SizeHuman)
	require.NotNil(t, r.MBR)
	assert.True(t, r.MBR.Protective)
	assert.Len(t, r.MBR.Entries, 4)
	assert.Equal(t, "0x00 0x00 0x00 0x00 0xee 0x00 0x00 0x00 0x01 0x00 0x00 0x00 0x03 0x00 0x00 0x00", r.MBR.Entries[0].Raw)

	require.NotNil(t, r.GPT)
	assert.True(t, r.GPT.Valid)
	assert.Equal(t, "1.0", r.GPT.Revision)
	assert.Equal(t, uint64(1), r.GPT.ArraySectors)
	require.Len(t, r.GPT.Entries, 1)
	row := r.GPT.Entries[0]
	assert.Equal(t, "0fc63daf-8483-4772-8e79-3d69d8477de4", row.TypeGUID)
	assert.Equal(t, "Linux filesystem", row.TypeName)
	assert.Equal(t, uint64(2048*512), row.Offset)
	assert.Equal(t, "1.0 MiB", row.SizeHuman)
	assert.Equal(t, "root", row.Name)
	assert.True(t, row.Attributes.LegacyBIOSBootable)
	require.NotNil(t, row.Attributes.Windows)
	assert.True(t, row.Attributes.Windows.ReadOnly)
}

func TestBuildStoredGUIDs(t *testing.T) {
	r := Build("disk.img", "", layout(t), nil, Options{GUIDStyle: GUIDStored})
	assert.Equal(t, linuxType.StoredOrderString(), r.GPT.Entries[0].TypeGUID)
}

func TestWriteText(t *testing.T) {
	l := layout(t)
	listing, err := disasm.New(disasm.Options{}).Disassemble([]byte{0xfa, 0xf4}, 0)
	require.NoError(t, err)
	r := Build("disk.img", "gzip", l, listing, Options{})

	var buf bytes.Buffer
	WriteText(&buf, r, AllSections, false)
	out := buf.String()
	assert.Contains(t, out, "Compression:")
	assert.Contains(t, out, "MBR bytecode operations (not decoded):")
	assert.Contains(t, out, "0x0:\tcli\t\t1 bytes")
	assert.Contains(t, out, "Total size: 2")
	assert.Contains(t, out, "Origin: 0x0 (addresses are load addresses")
	assert.NotContains(t, out, "Undecodable bytes")
	assert.Contains(t, out, "Partition 1: root")
	assert.Contains(t, out, "windows: read-only=true")
	assert.Contains(t, out, `"EFI PART"`)
	assert.NotContains(t, out, "\x1b[")

	buf.Reset()
	WriteText(&buf, r, Sections{GPT: true}, true)
	assert.NotContains(t, buf.String(), "MBR partition table")
	assert.Contains(t, buf.String(), ansiGreen)
}

func TestWriteListingOrigin(t *testing.T) {
	listing, err := disasm.New(disasm.Options{}).Disassemble([]byte{0xfa, 0xbc, 0x00}, disasm.DefaultOrigin)
	require.NoError(t, err)
	var buf bytes.Buffer
	WriteListing(&buf, listing)
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "Origin: 0x7c00 "))
	assert.Contains(t, out, "0x7c00:\tcli")
	assert.Contains(t, out, "Undecodable bytes: 2")
}

func TestWriteJSON(t *testing.T) {
	r := Build("disk.img", "none", layout(t), nil, Options{})
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, r))

	var back map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &back))
	assert.Equal(t, "gpt", back["scheme"])
	g := back["gpt"].(map[string]any)
	assert.Equal(t, float64(4), g["slots_read"])
	entries := g["entries"].([]any)
	require.Len(t, entries, 1)
	assert.Equal(t, "root", entries[0].(map[string]any)["name"])
}

func TestHexDump(t *testing.T) {
	data := make([]byte, 23)
	for i := range data {
		data[i] = byte(i)
	}
	var buf bytes.Buffer
	HexDump(&buf, data)
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "0x00 0x01 0x02 0x03 0x04 0x05 0x06 0x07 0x08 0x09", lines[0])
	assert.Equal(t, "0x14 0x15 0x16", lines[2])
}

func TestBootCodeDumpWidth(t *testing.T) {
	var buf bytes.Buffer
	HexDump(&buf, make([]byte, 446))
	assert.Equal(t, 45, strings.Count(buf.String(), "\n"))
}
