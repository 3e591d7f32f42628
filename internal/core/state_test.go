package core

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diskinspect/internal/common"
	"diskinspect/internal/compress"
	"diskinspect/internal/disasm"
	"diskinspect/internal/image/guid"
	"diskinspect/internal/image/partition"
	"diskinspect/internal/report"
)

var linuxType = guid.MustParse("0fc63daf-8483-4772-8e79-3d69d8477de4")

// gptDisk builds a small GPT image with entries at the given LBA ranges.
func gptDisk(names ...string) []byte {
	img := make([]byte, 64*512)
	copy(img, []byte{0xfa, 0x31, 0xc0, 0xf4})
	img[446+4] = 0xee
	binary.LittleEndian.PutUint32(img[446+8:], 1)
	binary.LittleEndian.PutUint32(img[446+12:], 63)
	img[510], img[511] = 0x55, 0xaa

	h := img[512:]
	copy(h, "EFI PART")
	binary.LittleEndian.PutUint32(h[8:], 0x10000)
	binary.LittleEndian.PutUint32(h[12:], 92)
	binary.LittleEndian.PutUint64(h[24:], 1)
	binary.LittleEndian.PutUint64(h[32:], 63)
	binary.LittleEndian.PutUint64(h[40:], 34)
	binary.LittleEndian.PutUint64(h[48:], 62)
	binary.LittleEndian.PutUint64(h[72:], 2)
	binary.LittleEndian.PutUint32(h[80:], 8)
	binary.LittleEndian.PutUint32(h[84:], 128)

	for i, name := range names {
		e := img[1024+i*128:]
		copy(e, linuxType[:])
		e[16] = byte(i + 1)
		binary.LittleEndian.PutUint64(e[32:], uint64(34+i*4))
		binary.LittleEndian.PutUint64(e[40:], uint64(37+i*4))
		for j, c := range name {
			binary.LittleEndian.PutUint16(e[56+j*2:], uint16(c))
		}
	}
	return img
}

func writeImage(t *testing.T, data []byte, codec string) string {
	t.Helper()
	if codec != "" {
		var err error
		data, err = compress.Compress(data, codec)
		require.NoError(t, err)
	}
	p := filepath.Join(t.TempDir(), "disk.img")
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func loaded(t *testing.T, img []byte, codec string) *State {
	t.Helper()
	st := New()
	require.NoError(t, st.Load(writeImage(t, img, codec), "auto", 0))
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Scan(context.Background(), partition.Options{}))
	return st
}

func TestLoadAndScan(t *testing.T) {
	st := loaded(t, gptDisk("boot", "root"), "")
	assert.Equal(t, partition.SchemeGPT, st.Layout.Scheme)
	require.Len(t, st.Layout.Entries, 2)
	assert.Equal(t, "root", st.Layout.Entries[1].Name)
	assert.Contains(t, st.Info(), "Scheme: gpt  Entries: 2")
	assert.Contains(t, st.Info(), "(image)")
}

func TestLoadCompressed(t *testing.T) {
	st := loaded(t, gptDisk("z"), compress.Zstd)
	assert.Equal(t, compress.Zstd, st.Codec)
	assert.Len(t, st.Layout.Entries, 1)
}

func TestLoadWithOffset(t *testing.T) {
	inner := gptDisk("nested")
	outer := append(make([]byte, 4096), inner...)

	st := New()
	require.NoError(t, st.Load(writeImage(t, outer, ""), "none", 4096))
	defer st.Close()
	require.NoError(t, st.Scan(context.Background(), partition.Options{}))
	require.Len(t, st.Layout.Entries, 1)
	assert.Equal(t, "nested", st.Layout.Entries[0].Name)
	assert.Equal(t, int64(len(inner)), st.Layout.Size)

	assert.Error(t, st.Load(writeImage(t, outer, ""), "none", int64(len(outer))))
}

func TestNoImage(t *testing.T) {
	st := New()
	assert.True(t, errors.Is(st.Scan(context.Background(), partition.Options{}), ErrNoImage))
	_, err := st.Report(report.Options{})
	assert.True(t, errors.Is(err, ErrNoImage))
	_, err = st.ToSession()
	assert.True(t, errors.Is(err, ErrNoImage))
	assert.Equal(t, "Image: none", st.Info())
}

func TestDisassembleBootCode(t *testing.T) {
	st := loaded(t, gptDisk(), "")
	require.NoError(t, st.Disassemble(disasm.New(disasm.Options{}), disasm.DefaultOrigin))
	require.NotNil(t, st.Listing)
	assert.Equal(t, "cli", st.Listing.Instructions[0].Mnemonic)
	assert.Equal(t, uint64(0x7c00), st.Listing.Instructions[0].Address)

	r, err := st.Report(report.Options{})
	require.NoError(t, err)
	assert.Same(t, st.Listing, r.Disasm)
}

func TestSessionRoundTrip(t *testing.T) {
	for _, codec := range []string{"none", compress.Gzip, compress.XZ} {
		t.Run(codec, func(t *testing.T) {
			st := loaded(t, gptDisk("boot", "root", "home"), "")
			require.NoError(t, st.Disassemble(disasm.New(disasm.Options{}), 0))
			p := filepath.Join(t.TempDir(), "nested", "s.json")
			require.NoError(t, st.SaveSession(p, codec))

			back := New()
			require.NoError(t, back.LoadSession(p))
			assert.Nil(t, back.Source)
			assert.Equal(t, st.Image, back.Image)
			assert.Equal(t, st.Layout.SlotsRead, back.Layout.SlotsRead)
			require.Len(t, back.Layout.Entries, 3)
			for i := range st.Layout.Entries {
				assert.Equal(t, *st.Layout.Entries[i], *back.Layout.Entries[i])
			}
			assert.Equal(t, st.Layout.MBRSector, back.Layout.MBRSector)
			assert.Equal(t, st.Listing, back.Listing)
			assert.Contains(t, back.Info(), "(session)")

			_, err := back.Verify()
			assert.True(t, errors.Is(err, ErrNoImage))
		})
	}
}

func TestSessionKeepsConvention(t *testing.T) {
	img := gptDisk("x")
	binary.LittleEndian.PutUint64(img[1024+48:], 61)

	st := New()
	require.NoError(t, st.Load(writeImage(t, img, ""), "none", 0))
	defer st.Close()
	require.NoError(t, st.Scan(context.Background(), partition.Options{Convention: partition.RawMask}))
	p := filepath.Join(t.TempDir(), "s.json")
	require.NoError(t, st.SaveSession(p, "auto"))

	back := New()
	require.NoError(t, back.LoadSession(p))
	assert.Equal(t, partition.RawMask, back.Opt.Convention)
	require.NotNil(t, back.Layout.Entries[0].Attributes.Windows)
	assert.True(t, back.Layout.Entries[0].Attributes.Windows.ShadowCopy)
}

func TestLoadSessionErrors(t *testing.T) {
	st := New()
	assert.Error(t, st.LoadSession(filepath.Join(t.TempDir(), "missing")))

	p := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(p, []byte(`{"version": 99}`), 0o644))
	assert.Error(t, st.LoadSession(p))

	require.NoError(t, os.WriteFile(p, []byte(`not json`), 0o644))
	assert.Error(t, st.LoadSession(p))
}

func TestFromSessionRejectsSectorSize(t *testing.T) {
	sess := &Session{
		Version:    sessionVersion,
		Size:       1024,
		SectorSize: 4,
		Regions:    []Region{{Offset: 0, Data: make([]byte, 8)}},
	}
	st := New()
	err := st.FromSession(sess)
	assert.ErrorIs(t, err, common.ErrMalformedInput)
	assert.Nil(t, st.Layout)

	sess.SectorSize, sess.Size = 512, -1
	assert.ErrorIs(t, st.FromSession(sess), common.ErrMalformedInput)
}

func TestSparseReader(t *testing.T) {
	sp := newSparse([]Region{{Offset: 4, Data: []byte{1, 2, 3}}, {Offset: 0, Data: []byte{9}}}, 10)
	buf := make([]byte, 8)
	n, err := sp.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Equal(t, []byte{9, 0, 0, 0, 1, 2, 3, 0}, buf)

	n, err = sp.ReadAt(buf, 5)
	assert.Equal(t, 5, n)
	assert.Error(t, err)
	assert.Equal(t, []byte{2, 3, 0, 0, 0}, buf[:5])
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"0", 0},
		{"4096", 4096},
		{"1k", 1024},
		{"2M", 2 << 20},
		{"1G", 1 << 30},
		{"63s", 63 * 512},
	}
	for _, tt := range tests {
		got, err := ParseSize(tt.in, 512)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
	for _, bad := range []string{"", "x", "-1", "12q", "1.5M"} {
		_, err := ParseSize(bad, 512)
		assert.ErrorIs(t, err, ErrBadSizeSyntax, bad)
	}
}
