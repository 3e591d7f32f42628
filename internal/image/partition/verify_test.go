package partition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareAgreement(t *testing.T) {
	a := []refPartition{{Start: 34, End: 2047, Type: "0FC63DAF-8483-4772-8E79-3D69D8477DE4", GUID: "X", Name: "root"}}
	b := []refPartition{{Start: 34, End: 2047, Type: "0fc63daf-8483-4772-8e79-3d69d8477de4", GUID: "x", Name: "root"}}
	assert.Empty(t, compare(a, b, true))
}

func TestCompareReportsFields(t *testing.T) {
	ours := []refPartition{
		{Start: 34, End: 100, Type: "a", GUID: "g1", Name: "one", Attributes: 1},
		{Start: 200, End: 300, Type: "b", GUID: "g2", Name: "two"},
	}
	theirs := []refPartition{
		{Start: 34, End: 101, Type: "a", GUID: "g1", Name: "uno", Attributes: 4},
	}
	got := compare(ours, theirs, true)
	require.Len(t, got, 4)
	assert.Equal(t, "count", got[0].Field)
	assert.Equal(t, "2", got[0].Ours)
	assert.Equal(t, Mismatch{Partition: 1, Field: "end", Ours: "100", Theirs: "101"}, got[1])
	assert.Equal(t, "name", got[2].Field)
	assert.Equal(t, Mismatch{Partition: 1, Field: "attributes", Ours: "0x1", Theirs: "0x4"}, got[3])
	assert.Equal(t, "partition 1 end: ours=100 go-diskfs=101", got[1].String())
}

func TestCompareMBRIgnoresGPTFields(t *testing.T) {
	ours := []refPartition{{Start: 1, End: 2, Type: "83", Name: "x", Bootable: true}}
	theirs := []refPartition{{Start: 1, End: 2, Type: "83", Name: "y"}}
	got := compare(ours, theirs, false)
	require.Len(t, got, 1)
	assert.Equal(t, "bootable", got[0].Field)
}

func TestOursFromLayout(t *testing.T) {
	h := testGPTHeader{sig: GPTSignature, arrayLBA: 2, count: 2, entrySize: 128}
	l := scanBytes(t, gptImage(h, []testGPTEntry{{typ: typeLinux, uniq: partA, first: 40, last: 80, attrs: 1 << 60, name: "data"}}, 0), Options{})

	refs := oursGPT(l)
	require.Len(t, refs, 1)
	assert.Equal(t, refPartition{
		Start: 40, End: 80,
		Type:       "0fc63daf-8483-4772-8e79-3d69d8477de4",
		GUID:       "11111111-2222-3333-4444-555555555555",
		Name:       "data",
		Attributes: 1 << 60,
	}, refs[0])

	m := scanBytes(t, mbrSector(testMBREntry{status: 0x80, typ: 0x0c, lba: 8, sectors: 16}), Options{})
	mrefs := oursMBR(m)
	require.Len(t, mrefs, 1)
	assert.Equal(t, refPartition{Start: 8, End: 24, Type: "0c", Bootable: true}, mrefs[0])
}
