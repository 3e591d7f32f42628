package disasm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diskinspect/internal/common"
)

// cli; xor ax,ax; mov ss,ax; mov sp,0x7c00; sti; jmp $
var bootCode = []byte{0xfa, 0x31, 0xc0, 0x8e, 0xd0, 0xbc, 0x00, 0x7c, 0xfb, 0xeb, 0xfe}

func TestDisassembleIntel(t *testing.T) {
	l, err := New(Options{}).Disassemble(bootCode, DefaultOrigin)
	require.NoError(t, err)
	require.Len(t, l.Instructions, 6)

	first := l.Instructions[0]
	assert.Equal(t, uint64(0x7c00), first.Address)
	assert.Equal(t, "cli", first.Mnemonic)
	assert.Equal(t, 1, first.Size)

	xor := l.Instructions[1]
	assert.Equal(t, "xor", xor.Mnemonic)
	assert.Equal(t, 2, xor.Size)
	assert.Contains(t, xor.Operands, "ax")
	assert.Equal(t, []byte{0x31, 0xc0}, xor.Bytes)

	mov := l.Instructions[3]
	assert.Equal(t, uint64(0x7c05), mov.Address)
	assert.Equal(t, "mov", mov.Mnemonic)
	assert.Equal(t, 3, mov.Size)
	assert.Contains(t, mov.Operands, "0x7c00")

	assert.Equal(t, "jmp", l.Instructions[5].Mnemonic)
	assert.Equal(t, len(bootCode), l.TotalSize)
	assert.Equal(t, 0, l.BadBytes)
}

func TestDisassembleOrigin(t *testing.T) {
	l, err := New(Options{}).Disassemble(bootCode, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), l.Instructions[0].Address)
	assert.Equal(t, uint64(9), l.Instructions[5].Address)
}

func TestDisassembleGNU(t *testing.T) {
	l, err := New(Options{Syntax: GNU}).Disassemble(bootCode[1:3], 0)
	require.NoError(t, err)
	require.Len(t, l.Instructions, 1)
	assert.Contains(t, l.Instructions[0].Operands, "%ax")
}

func TestDisassembleTruncatedTail(t *testing.T) {
	// mov sp, imm16 cut after its first immediate byte
	code := []byte{0xfa, 0xbc, 0x00}
	l, err := New(Options{}).Disassemble(code, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, l.TotalSize)
	assert.Equal(t, 2, l.BadBytes)
	assert.Equal(t, "(bad)", l.Instructions[1].Mnemonic)
	assert.True(t, l.Instructions[1].Bad)
	for _, in := range l.Instructions[1:] {
		assert.Equal(t, "(bad)", in.Mnemonic)
		assert.NotContains(t, in.Mnemonic, "prefix")
	}

	l, err = New(Options{StopOnBad: true}).Disassemble(code, 0)
	require.NoError(t, err)
	assert.Len(t, l.Instructions, 1)
}

func TestDisassembleLonePrefix(t *testing.T) {
	// rep with nothing after it
	l, err := New(Options{}).Disassemble([]byte{0xfb, 0xf3}, 0)
	require.NoError(t, err)
	require.Len(t, l.Instructions, 2)
	assert.Equal(t, "sti", l.Instructions[0].Mnemonic)
	assert.True(t, l.Instructions[1].Bad)
	assert.Equal(t, 1, l.TotalSize)
	assert.Equal(t, 1, l.BadBytes)
}

func TestDisassembleEmpty(t *testing.T) {
	l, err := New(Options{}).Disassemble(nil, DefaultOrigin)
	require.NoError(t, err)
	assert.Empty(t, l.Instructions)
	assert.Equal(t, 0, l.TotalSize)
}

func TestSplit(t *testing.T) {
	mn, ops := split("rep movsb byte ptr es:[di], byte ptr [si]")
	assert.Equal(t, "rep movsb", mn)
	assert.Equal(t, "byte ptr es:[di], byte ptr [si]", ops)

	mn, ops = split("ret")
	assert.Equal(t, "ret", mn)
	assert.Equal(t, "", ops)
}

func TestParseSyntax(t *testing.T) {
	s, err := ParseSyntax("GNU")
	require.NoError(t, err)
	assert.Equal(t, GNU, s)
	s, err = ParseSyntax("")
	require.NoError(t, err)
	assert.Equal(t, Intel, s)
	_, err = ParseSyntax("masm")
	assert.True(t, errors.Is(err, common.ErrUnsupported))
}
