// Package guid decodes the 16-byte GUIDs stored in GPT headers and entries.
//
// On disk the first three fields (4, 2 and 2 bytes) are little-endian
// integers and the last two (2 and 6 bytes) are plain byte strings, so the
// canonical text form swaps the first three groups and keeps the rest.
package guid

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"

	"diskinspect/internal/common"
)

const Size = 16

// GUID holds the bytes exactly as stored on disk.
type GUID [Size]byte

// Zero is the unused-slot marker in a GPT partition array.
var Zero GUID

func Decode(b []byte) (GUID, error) {
	var g GUID
	if err := common.Short("guid", b, Size); err != nil {
		return g, err
	}
	copy(g[:], b[:Size])
	return g, nil
}

func (g GUID) IsZero() bool { return g == Zero }

func (g GUID) Bytes() []byte { return append([]byte(nil), g[:]...) }

// String renders xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx in lowercase.
func (g GUID) String() string {
	var buf [36]byte
	put := func(dst []byte, idx ...int) {
		for i, j := range idx {
			hex.Encode(dst[i*2:i*2+2], g[j:j+1])
		}
	}
	put(buf[0:8], 3, 2, 1, 0)
	buf[8] = '-'
	put(buf[9:13], 5, 4)
	buf[13] = '-'
	put(buf[14:18], 7, 6)
	buf[18] = '-'
	put(buf[19:23], 8, 9)
	buf[23] = '-'
	put(buf[24:36], 10, 11, 12, 13, 14, 15)
	return string(buf[:])
}

// StoredOrderString renders every byte in storage order with the same
// grouping. This is what tools that ignore the mixed endianness print.
func (g GUID) StoredOrderString() string {
	return fmt.Sprintf("%s-%s-%s-%s-%s",
		hex.EncodeToString(g[0:4]), hex.EncodeToString(g[4:6]), hex.EncodeToString(g[6:8]),
		hex.EncodeToString(g[8:10]), hex.EncodeToString(g[10:16]))
}

// Parse is the inverse of String. Braces, urn:uuid: prefixes and upper case
// are accepted.
func Parse(s string) (GUID, error) {
	var g GUID
	u, err := uuid.Parse(s)
	if err != nil {
		return g, fmt.Errorf("guid %q: %v: %w", s, err, common.ErrMalformedInput)
	}
	return FromUUID(u), nil
}

func MustParse(s string) GUID {
	g, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return g
}

// FromUUID converts an RFC 4122 (big-endian) UUID to on-disk order.
func FromUUID(u uuid.UUID) GUID {
	var g GUID
	copy(g[:], u[:])
	swap(&g)
	return g
}

// UUID returns the RFC 4122 byte order.
func (g GUID) UUID() uuid.UUID {
	swap(&g)
	return uuid.UUID(g)
}

func swap(g *GUID) {
	g[0], g[1], g[2], g[3] = g[3], g[2], g[1], g[0]
	g[4], g[5] = g[5], g[4]
	g[6], g[7] = g[7], g[6]
}

func (g GUID) MarshalText() ([]byte, error) { return []byte(g.String()), nil }

func (g *GUID) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*g = v
	return nil
}
