package compress

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diskinspect/internal/common"
)

func payload() []byte {
	b := make([]byte, 64*1024)
	for i := range b {
		b[i] = byte(i * 7 % 251)
	}
	copy(b[510:], []byte{0x55, 0xaa})
	return b
}

func TestRoundTrip(t *testing.T) {
	in := payload()
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			enc, err := Compress(in, name)
			require.NoError(t, err)
			assert.NotEqual(t, in, enc)

			out, err := Decompress(enc, name)
			require.NoError(t, err)
			assert.Equal(t, in, out)
		})
	}
}

func TestDetect(t *testing.T) {
	in := payload()
	for _, name := range []string{Gzip, Zstd, LZ4, XZ, Bzip2} {
		enc, err := Compress(in, name)
		require.NoError(t, err)
		assert.Equal(t, name, Detect(enc), name)

		out, kind, err := DecompressAuto(enc)
		require.NoError(t, err)
		assert.Equal(t, name, kind)
		assert.Equal(t, in, out)
	}
	assert.Equal(t, None, Detect(in))
	assert.Equal(t, None, Detect(nil))
}

func TestAutoPassesRawThrough(t *testing.T) {
	in := payload()
	out, kind, err := DecompressAuto(in)
	require.NoError(t, err)
	assert.Equal(t, None, kind)
	assert.Equal(t, in, out)

	enc, err := Compress(in, "none")
	require.NoError(t, err)
	assert.Equal(t, in, enc)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, Auto, Normalize(""))
	assert.Equal(t, None, Normalize("RAW"))
	assert.Equal(t, Gzip, Normalize("gz"))
	assert.Equal(t, Zstd, Normalize(" zst "))
	assert.Equal(t, Bzip2, Normalize("bz2"))
	assert.Equal(t, "lzo", Normalize("LZO"))
}

func TestUnsupported(t *testing.T) {
	_, err := Compress([]byte("x"), "lzo")
	assert.True(t, errors.Is(err, common.ErrUnsupported))
	_, err = Decompress([]byte("x"), "brotli")
	assert.True(t, errors.Is(err, common.ErrUnsupported))
}

func TestStreamReader(t *testing.T) {
	in := payload()
	enc, err := Compress(in, Zstd)
	require.NoError(t, err)

	rc, kind, err := NewReader(bytes.NewReader(enc), Auto)
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, Zstd, kind)
	out, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestCorruptInput(t *testing.T) {
	_, err := Decompress([]byte{0x1f, 0x8b, 0, 0}, Gzip)
	assert.Error(t, err)
}
