package common

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlignUp(t *testing.T) {
	assert.Equal(t, uint64(0), AlignUp(0, 512))
	assert.Equal(t, uint64(512), AlignUp(1, 512))
	assert.Equal(t, uint64(512), AlignUp(512, 512))
	assert.Equal(t, uint64(1024), AlignUp(513, 512))
	assert.Equal(t, uint64(7), AlignUp(7, 0))
}

func TestSectors(t *testing.T) {
	assert.Equal(t, uint64(32), Sectors(128*128, 512))
	assert.Equal(t, uint64(1), Sectors(92, 512))
	assert.Equal(t, uint64(0), Sectors(100, 0))
}

func TestShort(t *testing.T) {
	require.NoError(t, Short("x", make([]byte, 16), 16))
	err := Short("guid", make([]byte, 3), 16)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedInput))
	assert.Contains(t, err.Error(), "need 16 bytes, got 3")
}
